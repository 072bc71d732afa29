package smoketest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/mockgateway"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newFailuresCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Smoke test: inject backend failures and check that the run continues past them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mock := mockgateway.New(mockgateway.Options{})
			mock.Fail(mockgateway.RouteGenerateOffer, mockgateway.Failure{Status: 500, Message: "IA indisponível"})
			mock.SetServices(map[string]string{"mongodb": "connected", "openai": "not_configured", "stripe": "configured"})
			url, stop, err := serve(mock)
			if err != nil {
				return err
			}
			defer stop()

			out, err := runPipeline(ctx, url, "", true)
			if err != nil {
				return err
			}
			if err := expectStatus(out, map[runner.StepID]runner.Status{
				engine.StepHealth:    runner.StatusFailed,
				engine.StepProject:   runner.StatusDone,
				engine.StepOffer:     runner.StatusFailed,
				engine.StepMaterials: runner.StatusFailed,
				engine.StepLanding:   runner.StatusFailed,
				engine.StepExport:    runner.StatusDone,
			}); err != nil {
				return err
			}
			if out.Progress != 33 {
				return errors.Errorf("progress %d, want 33", out.Progress)
			}
			if n := mock.Calls(mockgateway.RouteGenerateMats); n != 0 {
				return errors.Errorf("materials called %d times after the offer failed", n)
			}

			log.Info().Int("progress", out.Progress).Msg("smoketest failures ok")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "Overall timeout for the smoketest")
	return cmd
}
