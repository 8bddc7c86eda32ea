package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/logdex/internal/export"
	"github.com/TimelordUK/logdex/internal/session"
)

var (
	filterRules  ruleFlags
	filterOutput string
	filterCount  bool
	filterQuiet  bool
)

var filterCmd = &cobra.Command{
	Use:   "filter [file...]",
	Short: "Print the lines that match a rule",
	Long: `Applies a rule and writes the matching lines to stdout or a file.
A summary goes to stderr.

Examples:
  logdex filter -q error app.log
  logdex filter -i "db timeout | db refused" -x retry app.log.gz
  logdex filter --rule noisy.yaml -o clean.log a.log b.log
  cat app.log | logdex filter -i panic`,
	RunE: runFilter,
}

func init() {
	filterRules.register(filterCmd)
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "write matching lines to this file")
	filterCmd.Flags().BoolVarP(&filterCount, "count", "c", false, "only print the number of matching lines")
	filterCmd.Flags().BoolVar(&filterQuiet, "quiet", false, "no summary on stderr")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	r, err := filterRules.build()
	if err != nil {
		return err
	}

	in, err := openSource(args, false, log)
	if err != nil {
		return err
	}
	defer in.close()

	opts := sessionOptions(cfg, log)
	opts.Bookmarks = nil
	s := session.New(opts)
	defer s.Close()

	s.SetRule(r)
	if err := s.Attach(in.src); err != nil {
		return err
	}
	gen := s.Status().Requested

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	in.start(ctx, g)

	if err := waitComplete(ctx, s, gen); err != nil {
		return err
	}
	st := s.Status()

	switch {
	case filterCount:
		fmt.Fprintln(cmd.OutOrStdout(), st.TotalFilteredCount)
	case filterOutput != "":
		if _, err := export.WriteFile(filterOutput, s.WriteFiltered); err != nil {
			return err
		}
	default:
		if _, err := s.WriteFiltered(cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	if !filterQuiet {
		printSummary(cmd.ErrOrStderr(), in.name, st)
	}
	return nil
}

// waitComplete blocks until the source is fully indexed and the map of
// gen covers every line
func waitComplete(ctx context.Context, s *session.Session, gen uint64) error {
	if err := s.Await(ctx, gen); err != nil {
		return err
	}
	return s.Wait(ctx, func(st session.Status) bool {
		m := s.Map()
		return st.Sealed && m.Generation() == gen && m.Covered() == st.TotalLines
	})
}

func printSummary(w io.Writer, name string, st session.Status) {
	if f, ok := w.(*os.File); !ok || !isTerminal(f) {
		color.NoColor = true
	}
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	mode := "scan"
	if st.Accelerated {
		mode = "aho-corasick"
	}
	fmt.Fprintf(w, "%s: %s of %s lines matched %s\n",
		name, bold(st.TotalFilteredCount), bold(st.TotalLines), dim("("+mode+")"))
	if !st.Rule.IsEmpty() {
		fmt.Fprintf(w, "  rule: %s\n", st.Rule.Summary())
	}
	if st.DecodeErrors > 0 {
		fmt.Fprintf(w, "  %s\n", color.YellowString("%d lines had invalid UTF-8", st.DecodeErrors))
	}
	if st.Fallbacks > 0 {
		fmt.Fprintf(w, "  %s\n", color.YellowString("%d lines fell back to the scan matcher", st.Fallbacks))
	}
}
