package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimelordUK/logdex/internal/index"
	"github.com/TimelordUK/logdex/internal/predicate"
)

// ErrRebuildCancelled is returned when a newer request or a close
// interrupts a scan. It is a control signal, not a failure.
var ErrRebuildCancelled = errors.New("rebuild cancelled")

// DefaultBatchLines is how many lines are evaluated between cancellation
// checks and progress reports
const DefaultBatchLines = 4096

// ProgressFunc receives the number of lines evaluated out of total
type ProgressFunc func(done, total int)

// Builder evaluates a predicate over indexed lines
type Builder struct {
	BatchLines int
	Progress   ProgressFunc
	Log        zerolog.Logger
}

func (b Builder) batch() int {
	if b.BatchLines <= 0 {
		return DefaultBatchLines
	}
	return b.BatchLines
}

// Rebuild scans every line currently in idx and returns a map for
// generation gen. Cancellation is checked before every batch.
func (b Builder) Rebuild(ctx context.Context, src io.ReaderAt, idx *index.LineIndex, p *predicate.Predicate, gen uint64, streaming bool) (*Map, error) {
	started := time.Now()
	total := idx.TotalLines()

	lines, err := b.scan(ctx, src, idx, p, 0, total, streaming)
	if err != nil {
		if errors.Is(err, ErrRebuildCancelled) {
			b.Log.Debug().Uint64("gen", gen).Msg("rebuild cancelled")
		}
		return nil, err
	}

	b.Log.Debug().
		Uint64("gen", gen).
		Int("total", total).
		Int("matched", len(lines)).
		Bool("accelerated", p.Accelerated()).
		Int64("fallbacks", p.Fallbacks()).
		Dur("took", time.Since(started)).
		Msg("rebuild complete")
	return NewMap(gen, lines, total), nil
}

// Extend evaluates only the lines appended since m was built and returns
// the extended map along with the newly matched indices
func (b Builder) Extend(ctx context.Context, src io.ReaderAt, idx *index.LineIndex, p *predicate.Predicate, m *Map, streaming bool) (*Map, []int, error) {
	from, total := m.Covered(), idx.TotalLines()
	if total <= from {
		return m, nil, nil
	}

	added, err := b.scan(ctx, src, idx, p, from, total, streaming)
	if err != nil {
		return m, nil, err
	}
	return m.extend(added, total), added, nil
}

func (b Builder) scan(ctx context.Context, src io.ReaderAt, idx *index.LineIndex, p *predicate.Predicate, from, to int, streaming bool) ([]int, error) {
	var (
		matched []int
		buf     []byte
		err     error
		eval    = p.NewEvaluator()
		step    = b.batch()
	)
	for start := from; start < to; start += step {
		if ctx.Err() != nil {
			return nil, ErrRebuildCancelled
		}

		end := min(start+step, to)
		buf, err = idx.ForEachLine(src, start, end, buf, func(i int, line []byte) {
			if eval.Test(line, streaming) {
				matched = append(matched, i)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("reading lines %d-%d: %w", start, end, err)
		}

		if b.Progress != nil {
			b.Progress(end-from, to-from)
		}
	}
	return matched, nil
}
