package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Theme       ThemeConfig      `toml:"theme"`
	LogLevels   LogLevelConfig   `toml:"log_levels"`
	Keybindings KeybindingConfig `toml:"keybindings"`
	Display     DisplayConfig    `toml:"display"`
	Engine      EngineConfig     `toml:"engine"`
	Logging     LoggingConfig    `toml:"logging"`
	Bookmarks   BookmarkConfig   `toml:"bookmarks"`
}

// ThemeConfig defines color schemes
type ThemeConfig struct {
	Name          string         `toml:"name"`
	LineNumbers   string         `toml:"line_numbers"`
	StatusBar     string         `toml:"status_bar"`
	StatusBarText string         `toml:"status_bar_text"`
	Bookmark      string         `toml:"bookmark"`
	Notice        string         `toml:"notice"`
	Levels        LogLevelColors `toml:"levels"`
}

// LogLevelColors defines colors for each log level
type LogLevelColors struct {
	Trace string `toml:"trace"`
	Debug string `toml:"debug"`
	Info  string `toml:"info"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
	Fatal string `toml:"fatal"`
}

// LogLevelConfig defines log level detection patterns
type LogLevelConfig struct {
	TracePatterns []string `toml:"trace_patterns"`
	DebugPatterns []string `toml:"debug_patterns"`
	InfoPatterns  []string `toml:"info_patterns"`
	WarnPatterns  []string `toml:"warn_patterns"`
	ErrorPatterns []string `toml:"error_patterns"`
	FatalPatterns []string `toml:"fatal_patterns"`
}

// KeybindingConfig allows customizing keybindings
type KeybindingConfig struct {
	Quit           []string `toml:"quit"`
	ScrollUp       []string `toml:"scroll_up"`
	ScrollDown     []string `toml:"scroll_down"`
	PageUp         []string `toml:"page_up"`
	PageDown       []string `toml:"page_down"`
	Top            []string `toml:"top"`
	Bottom         []string `toml:"bottom"`
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
	ClearRule      []string `toml:"clear_rule"`
	QuickError     []string `toml:"quick_error"`
	QuickException []string `toml:"quick_exception"`
	IncludeCase    []string `toml:"include_case"`
	ExcludeCase    []string `toml:"exclude_case"`
	RawLines       []string `toml:"raw_lines"`
	Bookmark       []string `toml:"bookmark"`
	NextBookmark   []string `toml:"next_bookmark"`
	PrevBookmark   []string `toml:"prev_bookmark"`
	ClearBookmarks []string `toml:"clear_bookmarks"`
	RawContext     []string `toml:"raw_context"`
	SaveRule       []string `toml:"save_rule"`
	Follow         []string `toml:"follow"`
	Export         []string `toml:"export"`
}

// DisplayConfig holds display options
type DisplayConfig struct {
	ShowLineNumbers bool `toml:"show_line_numbers"`
	TabWidth        int  `toml:"tab_width"`
	WrapLines       bool `toml:"wrap_lines"`
	ContextLines    int  `toml:"context_lines"`
}

// EngineConfig tunes indexing and filtering
type EngineConfig struct {
	IndexChunkBytes     int  `toml:"index_chunk_bytes"`
	ProgressIntervalMs  int  `toml:"progress_interval_ms"`
	ProgressEveryChunks int  `toml:"progress_every_chunks"`
	RebuildBatchLines   int  `toml:"rebuild_batch_lines"`
	ArenaInitialBytes   int  `toml:"arena_initial_bytes"`
	ArenaMaxBytes       int  `toml:"arena_max_bytes"`
	DisableAccelerated  bool `toml:"disable_accelerated"`
}

// LoggingConfig routes diagnostic logs; the viewer never logs to the
// terminal it draws on
type LoggingConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// BookmarkConfig sets where bookmarks persist
type BookmarkConfig struct {
	Dir     string `toml:"dir"`
	Persist bool   `toml:"persist"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Theme: ThemeConfig{
			Name:          "subtle",
			LineNumbers:   "240", // Dark gray
			StatusBar:     "236", // Darker gray background
			StatusBarText: "252", // Light gray text
			Bookmark:      "39",  // Blue
			Notice:        "214", // Orange
			Levels: LogLevelColors{
				Trace: "240", // Dark gray
				Debug: "244", // Medium gray
				Info:  "250", // Light gray (default)
				Warn:  "214", // Orange
				Error: "167", // Soft red
				Fatal: "196", // Bright red
			},
		},
		LogLevels: LogLevelConfig{
			TracePatterns: []string{"[TRC]", "[TRACE]", "TRACE", "TRC"},
			DebugPatterns: []string{"[DBG]", "[DEBUG]", "DEBUG", "DBG"},
			InfoPatterns:  []string{"[INF]", "[INFO]", "INFO", "INF"},
			WarnPatterns:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN", "WRN", "WARNING"},
			ErrorPatterns: []string{"[ERR]", "[ERROR]", "ERROR", "ERR"},
			FatalPatterns: []string{"[FTL]", "[FATAL]", "FATAL", "FTL", "[CRIT]", "CRITICAL"},
		},
		Keybindings: KeybindingConfig{
			Quit:           []string{"q", "ctrl+c"},
			ScrollUp:       []string{"k", "up"},
			ScrollDown:     []string{"j", "down"},
			PageUp:         []string{"b", "pgup", "ctrl+u"},
			PageDown:       []string{"f", "pgdown", "ctrl+d", " "},
			Top:            []string{"g", "home"},
			Bottom:         []string{"G", "end"},
			Include:        []string{"/"},
			Exclude:        []string{"\\"},
			ClearRule:      []string{"c"},
			QuickError:     []string{"e"},
			QuickException: []string{"x"},
			IncludeCase:    []string{"i"},
			ExcludeCase:    []string{"I"},
			RawLines:       []string{"t"},
			Bookmark:       []string{"m"},
			NextBookmark:   []string{"n"},
			PrevBookmark:   []string{"N"},
			ClearBookmarks: []string{"M"},
			RawContext:     []string{"r"},
			SaveRule:       []string{"s"},
			Follow:         []string{"F"},
			Export:         []string{"w"},
		},
		Display: DisplayConfig{
			ShowLineNumbers: true,
			TabWidth:        4,
			WrapLines:       false,
			ContextLines:    10,
		},
		Engine: EngineConfig{
			IndexChunkBytes:     64 * 1024,
			ProgressIntervalMs:  100,
			ProgressEveryChunks: 64,
			RebuildBatchLines:   4096,
			ArenaInitialBytes:   1 << 20,
			ArenaMaxBytes:       64 << 20,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Bookmarks: BookmarkConfig{
			Persist: true,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom loads config from path, falling back to defaults when the file
// does not exist
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	cfg.expand()

	return cfg, nil
}

// expand resolves a leading ~ in configured paths
func (c *Config) expand() {
	c.Logging.Path = expandHome(c.Logging.Path)
	c.Bookmarks.Dir = expandHome(c.Bookmarks.Dir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Save saves config to file
func Save(cfg *Config) error {
	return SaveTo(getConfigPath(), cfg)
}

// SaveTo saves config to path
func SaveTo(configPath string, cfg *Config) error {
	if configPath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "logdex", "config.toml")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "logdex", "config.toml")
}

// GetConfigPath exports the config path for user reference
func GetConfigPath() string {
	return getConfigPath()
}
