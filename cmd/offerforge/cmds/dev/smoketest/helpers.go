package smoketest

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
)

func findModuleRootFromCaller() string {
	_, thisFile, _, ok := goruntime.Caller(0)
	if !ok {
		wd, _ := os.Getwd()
		return wd
	}
	// this file: cmd/offerforge/cmds/dev/smoketest/helpers.go
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "..", ".."))
}

func findFreeTCPPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port
	if port <= 0 {
		return 0, errors.New("failed to allocate port")
	}
	return port, nil
}

// serve starts handler on an ephemeral port and returns its base URL.
func serve(handler http.Handler) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 2 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}

func waitHealthy(ctx context.Context, c *gateway.Client) error {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		if _, err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "backend did not become healthy")
		case <-t.C:
		}
	}
}

// runPipeline runs every default step, continuing past failures.
func runPipeline(ctx context.Context, baseURL string, outDir string, checkHealth bool) (runner.Outcome, error) {
	c, err := gateway.New(baseURL, gateway.WithTimeout(5*time.Second))
	if err != nil {
		return runner.Outcome{}, err
	}
	eng, err := engine.New(c, engine.DefaultBrief(), engine.Options{OutputDir: outDir, CheckHealth: checkHealth})
	if err != nil {
		return runner.Outcome{}, err
	}
	r, err := eng.NewRunner(runner.Options{Observer: runner.LogObserver{}})
	if err != nil {
		return runner.Outcome{}, err
	}
	out, err := r.Run(ctx)
	for err == nil && out.State == runner.OutcomeAwaitingDecision {
		out, err = r.Resume(ctx, runner.DecisionContinue)
	}
	return out, err
}

func expectStatus(out runner.Outcome, want map[runner.StepID]runner.Status) error {
	for _, s := range out.Steps {
		w, ok := want[s.ID]
		if !ok {
			continue
		}
		if s.Status != w {
			return errors.Errorf("step %s: status %s, want %s (%s)", s.ID, s.Status, w, s.Error)
		}
	}
	return nil
}

func expectFiles(dir string, n int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != n {
		return errors.Errorf("expected %d exported files in %s, found %d", n, dir, len(entries))
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return errors.Errorf("exported file %s is empty", e.Name())
		}
	}
	return nil
}
