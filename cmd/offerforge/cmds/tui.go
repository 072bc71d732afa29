package cmds

import (
	"context"
	stderrors "errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tracing"
	"github.com/go-go-golems/offerforge/pkg/tui"
	"github.com/go-go-golems/offerforge/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTuiCmd() *cobra.Command {
	var pf pipelineFlags
	var altScreen bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal UI for the automated demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(requestContext(cmd))
			defer cancel()

			shutdown, err := tracing.Setup(ctx)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					log.Warn().Err(err).Msg("flush traces")
				}
			}()

			p, err := buildPipeline(cmd, pf)
			if err != nil {
				return err
			}
			eng := p.Engine
			summarize := summarizer(ctx, eng)

			bus, err := tui.NewInMemoryBus()
			if err != nil {
				return err
			}

			r, err := eng.NewRunner(runner.Options{
				StepDelay:   p.StepDelay,
				Observer:    &tui.BusObserver{Pub: bus.Publisher, Summarize: summarize},
				Middlewares: []runner.Middleware{tracing.StepMiddleware(tracing.Tracer())},
			})
			if err != nil {
				return err
			}
			if err := selectSteps(r, pf.Steps, pf.Skip); err != nil {
				return err
			}

			tui.RegisterDomainToUITransformer(bus)
			tui.RegisterUIActionRunner(ctx, bus, &tui.Session{
				Runner:    r,
				OnReset:   eng.Forget,
				Summarize: summarize,
			})

			model := models.NewRootModel(models.RootOptions{
				Brief:      eng.Brief(),
				BackendURL: p.Client.BaseURL(),
				Steps:      tui.NewStepViews(r.Steps(), summarize),
				Publisher:  bus.Publisher,
			})
			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithContext(ctx),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "tui")
			}
			return nil
		},
	}

	addPipelineFlags(cmd.Flags(), &pf, time.Second)
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	return cmd
}
