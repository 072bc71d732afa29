package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tracing"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	onErrorAsk      = "ask"
	onErrorHalt     = "halt"
	onErrorContinue = "continue"
)

type runReport struct {
	runner.Outcome
	ProjectID string            `json:"project_id,omitempty"`
	Summaries map[string]string `json:"summaries"`
}

func newRunCmd() *cobra.Command {
	var pf pipelineFlags
	var onError string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automated demo pipeline without the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch onError {
			case onErrorAsk, onErrorHalt, onErrorContinue:
			default:
				return errors.Errorf("invalid --on-error %q (ask, halt or continue)", onError)
			}

			ctx, stop := signal.NotifyContext(requestContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

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

			observers := []runner.Observer{runner.LogObserver{}}
			if !asJSON {
				observers = append(observers, &printObserver{w: cmd.OutOrStdout(), summarize: summarizer(ctx, eng)})
			}
			tracer := tracing.Tracer()
			r, err := eng.NewRunner(runner.Options{
				StepDelay:   p.StepDelay,
				Observer:    runner.NewMultiObserver(observers...),
				Middlewares: []runner.Middleware{tracing.StepMiddleware(tracer)},
			})
			if err != nil {
				return err
			}
			if err := selectSteps(r, pf.Steps, pf.Skip); err != nil {
				return err
			}

			runCtx, span := tracing.StartRun(ctx, tracer, r.Steps())
			decide := newDecider(onError, cmd.InOrStdin(), cmd.ErrOrStderr())
			out, err := r.Run(runCtx)
			for err == nil && out.State == runner.OutcomeAwaitingDecision {
				d, derr := decide(out.Failed)
				if derr != nil {
					log.Warn().Err(derr).Msg("no decision, halting")
				}
				out, err = r.Resume(runCtx, d)
			}
			tracing.EndRun(span, out, err)
			if err != nil {
				return err
			}

			if asJSON {
				rep := runReport{Outcome: out, Summaries: map[string]string{}}
				for _, s := range out.Steps {
					if s.Enabled {
						rep.Summaries[string(s.ID)] = eng.Summary(ctx, s)
					}
				}
				if proj := eng.Project(); proj != nil {
					rep.ProjectID = proj.ID
				}
				if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s (%d%%)\n", shortRunID(out.RunID), out.State, out.Progress)
			}
			return outcomeError(out)
		},
	}

	addPipelineFlags(cmd.Flags(), &pf, 0)
	cmd.Flags().StringVar(&onError, "on-error", onErrorAsk, "What to do when a step fails: ask, halt or continue")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

// outcomeError turns a run that did not finish cleanly into a non-zero exit.
func outcomeError(out runner.Outcome) error {
	var failed []string
	for _, s := range out.Steps {
		if s.Status == runner.StatusFailed {
			failed = append(failed, string(s.ID))
		}
	}
	switch {
	case out.State == runner.OutcomeHalted && out.Failed != nil:
		return errors.Errorf("run halted: step %s failed: %s", out.Failed.ID, out.Failed.Error)
	case out.State == runner.OutcomeCanceled:
		return errors.New("run canceled")
	case len(failed) > 0:
		return errors.Errorf("run finished with failed steps: %s", strings.Join(failed, ", "))
	}
	return nil
}

type decider func(failed *runner.Step) (runner.Decision, error)

func newDecider(mode string, in io.Reader, prompt io.Writer) decider {
	switch mode {
	case onErrorContinue:
		return func(*runner.Step) (runner.Decision, error) { return runner.DecisionContinue, nil }
	case onErrorHalt:
		return func(*runner.Step) (runner.Decision, error) { return runner.DecisionHalt, nil }
	}
	br := bufio.NewReader(in)
	return func(failed *runner.Step) (runner.Decision, error) {
		name := "step"
		if failed != nil {
			name = failed.Title
		}
		for {
			_, _ = fmt.Fprintf(prompt, "%s failed. [c]ontinue with the next step or [h]alt? ", name)
			line, err := br.ReadString('\n')
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "c", "continue":
				return runner.DecisionContinue, nil
			case "h", "halt":
				return runner.DecisionHalt, nil
			}
			if err != nil {
				return runner.DecisionHalt, errors.Wrap(err, "read decision")
			}
		}
	}
}

// printObserver prints one line per settled step.
type printObserver struct {
	runner.NopObserver
	mu        sync.Mutex
	w         io.Writer
	summarize func(runner.Step) string
}

func (p *printObserver) OnRunStarted(run runner.RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var titles []string
	for _, s := range run.Steps {
		if s.Enabled {
			titles = append(titles, s.Title)
		}
	}
	_, _ = fmt.Fprintf(p.w, "%s run %s: %s\n", styles.IconSystem, shortRunID(run.ID), strings.Join(titles, " → "))
}

// OnStepFinished also fires for failed and canceled steps; each gets its own line.
func (p *printObserver) OnStepFinished(runID string, step runner.Step, progress int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch step.Status {
	case runner.StatusDone:
		_, _ = fmt.Fprintf(p.w, "%s %-20s %s (%d%%)\n", styles.IconSuccess, step.Title, p.summarize(step), progress)
	case runner.StatusFailed:
		_, _ = fmt.Fprintf(p.w, "%s %-20s %s (%d%%)\n", styles.IconError, step.Title, step.Error, progress)
	default:
		_, _ = fmt.Fprintf(p.w, "%s %-20s %s\n", styles.IconPending, step.Title, step.Status)
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ runner.Observer = (*printObserver)(nil)

// summarizer adapts the engine's context-aware summary to the UI signature.
func summarizer(ctx context.Context, eng *engine.Engine) func(runner.Step) string {
	return func(s runner.Step) string { return eng.Summary(ctx, s) }
}
