package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/logdex/internal/export"
	"github.com/TimelordUK/logdex/internal/session"
)

var (
	indexShowStart int
	indexShowCount int
	indexSlice     []int
	indexOutDir    string
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Index a log and report line statistics",
	Long: `Builds the line index of a file and reports its size, line count and
encoding problems. It can also print or export a range of raw lines.

Examples:
  logdex index app.log
  logdex index --show-from 1000 --show 20 app.log
  logdex index --slice 5000,6000 --out-dir /tmp app.log.zst`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexShowStart, "show-from", 0, "first line to print (1-based)")
	indexCmd.Flags().IntVar(&indexShowCount, "show", 0, "number of raw lines to print")
	indexCmd.Flags().IntSliceVar(&indexSlice, "slice", nil, "export lines FROM,TO (1-based, inclusive) to a file")
	indexCmd.Flags().StringVar(&indexOutDir, "out-dir", "", "directory for --slice output (default: temp dir)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if len(indexSlice) != 0 && len(indexSlice) != 2 {
		return fmt.Errorf("--slice takes FROM,TO")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	in, err := openSource(args, false, log)
	if err != nil {
		return err
	}
	defer in.close()

	opts := sessionOptions(cfg, log)
	s := session.New(opts)
	defer s.Close()

	started := time.Now()
	if err := s.Attach(in.src); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	in.start(ctx, g)

	if err := waitComplete(ctx, s, s.Status().Requested); err != nil {
		return err
	}
	took := time.Since(started)
	st := s.Status()

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		color.NoColor = true
	}
	label := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(out, "%s %s (%s)\n", label("source:"), st.Source, st.Kind)
	fmt.Fprintf(out, "%s %d\n", label("size:  "), in.src.Size())
	fmt.Fprintf(out, "%s %d\n", label("lines: "), st.TotalLines)
	fmt.Fprintf(out, "%s %s\n", label("took:  "), took.Round(time.Millisecond))
	if st.DecodeErrors > 0 {
		fmt.Fprintf(out, "%s %s\n", label("utf-8: "), color.YellowString("%d invalid lines", st.DecodeErrors))
	}
	if st.Bookmarks > 0 {
		fmt.Fprintf(out, "%s %d\n", label("marks: "), st.Bookmarks)
	}

	if indexShowCount > 0 {
		res, err := s.RawWindow(max(indexShowStart-1, 0), indexShowCount)
		if err != nil {
			return err
		}
		width := len(fmt.Sprint(st.TotalLines))
		for _, rec := range res.Lines {
			mark := " "
			if rec.Bookmarked {
				mark = color.BlueString("●")
			}
			fmt.Fprintf(out, "%s%s %s\n", mark, color.New(color.Faint).Sprintf("%*d", width, rec.OriginalIndex+1), rec.Text)
		}
	}

	if len(indexSlice) == 2 {
		info, err := s.SliceRange(export.NewSlicer(indexOutDir), indexSlice[0]-1, indexSlice[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d lines to %s\n", label("slice: "), info.Lines, info.Path)
	}
	return nil
}
