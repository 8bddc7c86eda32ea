package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/logdex/internal/bookmark"
	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/follow"
	"github.com/TimelordUK/logdex/internal/logging"
	"github.com/TimelordUK/logdex/internal/rule"
	"github.com/TimelordUK/logdex/internal/session"
	"github.com/TimelordUK/logdex/internal/source"
)

// ruleFlags are shared by every command that filters
type ruleFlags struct {
	file          string
	include       string
	exclude       string
	quick         string
	caseSensitive bool
	raw           bool
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "rule", "", "load a rule from a YAML or JSON file")
	cmd.Flags().StringVarP(&f.include, "include", "i", "", `include query: terms are ANDed, "|" separates OR groups`)
	cmd.Flags().StringVarP(&f.exclude, "exclude", "x", "", "exclude terms, any match hides the line")
	cmd.Flags().StringVarP(&f.quick, "quick", "q", "", "quick filter: error or exception")
	cmd.Flags().BoolVar(&f.caseSensitive, "case", false, "match include and exclude terms case-sensitively")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "always show lines without a log prefix on streams")
}

// build merges the rule file with the flags; flags win
func (f *ruleFlags) build() (rule.Rule, error) {
	var r rule.Rule
	if f.file != "" {
		loaded, err := rule.LoadFile(f.file)
		if err != nil {
			return rule.Rule{}, err
		}
		r = loaded
	}
	if f.include != "" {
		groups, err := rule.ParseQuery(f.include)
		if err != nil {
			return rule.Rule{}, fmt.Errorf("--include: %w", err)
		}
		r.IncludeGroups = groups
	}
	if f.exclude != "" {
		terms, err := rule.ParseTerms(f.exclude)
		if err != nil {
			return rule.Rule{}, fmt.Errorf("--exclude: %w", err)
		}
		r.Excludes = terms
	}
	if f.quick != "" {
		q, err := rule.ParseQuickFilter(f.quick)
		if err != nil {
			return rule.Rule{}, fmt.Errorf("--quick: %w", err)
		}
		r.QuickFilter = q
	}
	if f.caseSensitive {
		r.IncludeCaseSensitive = true
		r.ExcludeCaseSensitive = true
	}
	if f.raw {
		r.ShowRawLogLines = true
	}
	return r.Normalize(), r.Validate()
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

// setupLogging never logs to stdout for the interactive viewer, which owns
// the terminal
func setupLogging(cfg *config.Config, interactive bool) (zerolog.Logger, func() error, error) {
	opts := logging.Options{
		Path:   cfg.Logging.Path,
		Level:  cfg.Logging.Level,
		Stdout: verbose && !interactive,
	}
	if logFile != "" {
		opts.Path = logFile
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	return logging.Configure(opts)
}

func sessionOptions(cfg *config.Config, log zerolog.Logger) session.Options {
	opts := session.OptionsFrom(cfg.Engine)
	opts.Log = log
	if cfg.Bookmarks.Persist {
		dir := cfg.Bookmarks.Dir
		if dir == "" {
			dir = bookmark.DefaultDir()
		}
		opts.Bookmarks = bookmark.NewStore(dir)
	}
	return opts
}

// opened is a source ready to attach plus whatever feeds it
type opened struct {
	src  source.Source
	name string
	// run feeds a stream source until ctx is done; nil for files
	run func(ctx context.Context) error
	// detached feeders block on reads that ctx cannot interrupt, so
	// nobody waits for them
	detached bool
	// stdin is set when the data arrives on standard input
	stdin bool
	close func() error
}

func (o *opened) start(ctx context.Context, g *errgroup.Group) {
	switch {
	case o.run == nil:
	case o.detached:
		go func() { _ = o.run(ctx) }()
	default:
		g.Go(func() error { return o.run(ctx) })
	}
}

// openSource resolves the command arguments. "-" or a piped stdin is a
// live stream; several files, or one with tail set, are merged into a
// stream by a follower.
func openSource(args []string, tail bool, log zerolog.Logger) (*opened, error) {
	if len(args) == 0 {
		if isTerminal(os.Stdin) {
			return nil, errors.New("no input: pass a file or pipe to stdin")
		}
		args = []string{"-"}
	}

	if len(args) == 1 && args[0] == "-" {
		stream := source.NewStream("stdin")
		return &opened{
			src:  stream,
			name: "stdin",
			run: func(ctx context.Context) error {
				return follow.Pipe(ctx, os.Stdin, stream)
			},
			detached: true,
			stdin:    true,
			close:    func() error { return nil },
		}, nil
	}

	if len(args) == 1 && !tail {
		src, err := source.NewFileSource(args[0])
		if err != nil {
			return nil, err
		}
		return &opened{src: src, name: src.Name(), close: func() error { return nil }}, nil
	}

	names := make([]string, len(args))
	abs := make([]string, len(args))
	for i, path := range args {
		names[i] = filepath.Base(path)
		abs[i] = path
		if a, err := filepath.Abs(path); err == nil {
			abs[i] = a
		}
	}
	name := strings.Join(names, "+")
	stream := source.NewStreamWithIdentity(name, source.NamedIdentity("follow:"+strings.Join(abs, "\x00")))

	fl, err := follow.New(args, stream, follow.Options{
		Prime:  follow.DefaultPrime,
		All:    !tail,
		Prefix: len(args) > 1,
		Log:    log,
	})
	if err != nil {
		return nil, err
	}

	o := &opened{src: stream, name: name, close: fl.Close}
	if tail {
		o.run = fl.Run
	} else {
		stream.CloseWrite()
	}
	return o, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
