package smoketest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/mockgateway"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	var backendURL string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "smoketest",
		Short: "Run the demo pipeline against a backend and check every step (dev-only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if backendURL == "" {
				url, stop, err := serve(mockgateway.New(mockgateway.Options{}))
				if err != nil {
					return err
				}
				defer stop()
				backendURL = url
			}

			outDir, err := os.MkdirTemp("", "offerforge-smoketest-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(outDir) }()

			out, err := runPipeline(ctx, backendURL, outDir, true)
			if err != nil {
				return err
			}
			if out.State != runner.OutcomeCompleted || out.Progress != 100 {
				return errors.Errorf("unexpected outcome %s (%d%%)", out.State, out.Progress)
			}
			if err := expectFiles(outDir, len(engine.DefaultExportKinds)); err != nil {
				return err
			}

			log.Info().Str("backend", backendURL).Msg("smoketest ok")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend-url", "", "Backend to test (defaults to an in-process mock)")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "Overall timeout for the smoke test")

	cmd.AddCommand(
		newE2ECmd(),
		newFailuresCmd(),
	)

	return cmd
}
