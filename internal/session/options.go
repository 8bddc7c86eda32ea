package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/TimelordUK/logdex/internal/accel"
	"github.com/TimelordUK/logdex/internal/bookmark"
	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
)

// DefaultEventBuffer is the capacity of the event channel
const DefaultEventBuffer = 256

// Options configure a session
type Options struct {
	Index              index.BuildOptions
	BatchLines         int
	Arena              accel.Options
	DisableAccelerated bool
	EventBuffer        int

	// Bookmarks persists bookmark sets per source identity; nil keeps
	// them in memory only
	Bookmarks *bookmark.Store

	Log zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchLines <= 0 {
		o.BatchLines = filter.DefaultBatchLines
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.Index.ProgressInterval <= 0 {
		o.Index.ProgressInterval = index.DefaultProgressInterval
	}
	if o.Index.ChunkSize <= 0 {
		o.Index.ChunkSize = index.DefaultChunkSize
	}
	return o
}

// OptionsFrom converts the engine section of the configuration
func OptionsFrom(cfg config.EngineConfig) Options {
	return Options{
		Index: index.BuildOptions{
			ChunkSize:        cfg.IndexChunkBytes,
			ProgressEvery:    cfg.ProgressEveryChunks,
			ProgressInterval: time.Duration(cfg.ProgressIntervalMs) * time.Millisecond,
		},
		BatchLines: cfg.RebuildBatchLines,
		Arena: accel.Options{
			InitialBytes: cfg.ArenaInitialBytes,
			MaxBytes:     cfg.ArenaMaxBytes,
		},
		DisableAccelerated: cfg.DisableAccelerated,
	}
}
