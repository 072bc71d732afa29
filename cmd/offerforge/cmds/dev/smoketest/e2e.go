package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newE2ECmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "e2e",
		Short: "Smoke test: build the mock-gateway test app, serve it and run the pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			workDir, err := os.MkdirTemp("", "offerforge-smoketest-e2e-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(workDir) }()

			moduleRoot := findModuleRootFromCaller()
			bin := filepath.Join(workDir, "bin", "mock-gateway")
			if err := os.MkdirAll(filepath.Dir(bin), 0o755); err != nil {
				return err
			}
			if err := buildTestApp(ctx, moduleRoot, "./testapps/cmd/mock-gateway", bin); err != nil {
				return err
			}

			port, err := findFreeTCPPort()
			if err != nil {
				return err
			}
			srv := exec.CommandContext(ctx, bin, "--port", fmt.Sprint(port))
			srv.Stdout = os.Stderr
			srv.Stderr = os.Stderr
			if err := srv.Start(); err != nil {
				return errors.Wrap(err, "start mock-gateway")
			}
			defer func() {
				_ = srv.Process.Kill()
				_ = srv.Wait()
			}()

			baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
			c, err := gateway.New(baseURL)
			if err != nil {
				return err
			}
			if err := waitHealthy(ctx, c); err != nil {
				return err
			}

			outDir := filepath.Join(workDir, "out")
			out, err := runPipeline(ctx, baseURL, outDir, true)
			if err != nil {
				return err
			}
			if out.State != runner.OutcomeCompleted || out.Progress != 100 {
				return errors.Errorf("unexpected outcome %s (%d%%)", out.State, out.Progress)
			}
			if err := expectFiles(outDir, len(engine.DefaultExportKinds)); err != nil {
				return err
			}

			projects, err := c.ListProjects(ctx, gateway.ListProjectsOptions{})
			if err != nil {
				return err
			}
			if len(projects) != 1 || projects[0].Status != gateway.StatusMaterialsGenerated {
				return errors.Errorf("expected one project with materials generated, got %d", len(projects))
			}

			report := map[string]any{"ok": true, "backend": baseURL, "project": projects[0].ID, "progress": out.Progress}
			b, _ := json.MarshalIndent(report, "", "  ")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			log.Info().Msg("smoketest e2e ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout for the smoketest")
	return cmd
}

func buildTestApp(ctx context.Context, moduleRoot string, pkg string, outPath string) error {
	c := exec.CommandContext(ctx, "go", "build", "-o", outPath, pkg)
	c.Dir = moduleRoot
	c.Env = append(os.Environ(), "GOWORK=off")
	b, err := c.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "build %s: %s", pkg, string(b))
	}
	return nil
}
