package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/logdex/internal/session"
	"github.com/TimelordUK/logdex/internal/source"
	"github.com/TimelordUK/logdex/internal/ui"
)

var (
	viewRules  ruleFlags
	viewFollow bool
)

var viewCmd = &cobra.Command{
	Use:   "view [file...]",
	Short: "Browse a log interactively",
	Long: `Opens the interactive viewer. Filtering runs in the background, so
the view stays responsive while a rule is applied to a large file.

Examples:
  logdex view app.log
  logdex view -i "timeout | refused" -x healthcheck app.log
  logdex view -F a.log b.log
  kubectl logs -f pod | logdex view -`,
	RunE: runView,
}

func init() {
	viewRules.register(viewCmd)
	viewCmd.Flags().BoolVarP(&viewFollow, "follow", "F", false, "tail the files and keep the view at the newest line")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	r, err := viewRules.build()
	if err != nil {
		return err
	}

	in, err := openSource(args, viewFollow, log)
	if err != nil {
		return err
	}
	defer in.close()

	s := session.New(sessionOptions(cfg, log))
	s.SetRule(r)
	if err := s.Attach(in.src); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	g, ctx := errgroup.WithContext(ctx)
	in.start(ctx, g)

	model := ui.NewModel(ui.ModelOptions{
		Session:  s,
		Name:     in.name,
		Config:   cfg,
		RulePath: viewRules.file,
		Follow:   viewFollow || in.src.Kind() == source.KindStream,
		Log:      log,
	})
	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if in.stdin {
		// keys come from the terminal while the log arrives on stdin
		progOpts = append(progOpts, tea.WithInputTTY())
	}
	_, runErr := tea.NewProgram(model, progOpts...).Run()

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, source.ErrStreamEnded) {
		log.Warn().Err(err).Msg("feeding stream")
	}
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("closing session")
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer: %w", runErr)
	}
	return nil
}
