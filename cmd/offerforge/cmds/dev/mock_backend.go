package dev

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-go-golems/offerforge/pkg/mockgateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMockBackendCmd() *cobra.Command {
	var addr string
	var delay time.Duration
	var failures []string
	var services []string

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve an in-memory backend for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := NewMockServer(delay, failures, services)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, "listen")
			}
			httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 2 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			url := "http://" + ln.Addr().String()
			log.Info().Str("url", url).Strs("failures", failures).Msg("mock backend listening")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), url)
			if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8001", "Listen address")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay added to every response")
	cmd.Flags().StringArrayVar(&failures, "fail", nil, "Inject a failure: route[=status[xtimes]], e.g. generate_offer=500 (repeatable)")
	cmd.Flags().StringArrayVar(&services, "service", nil, "Override a health service state: name=state, e.g. openai=not_configured (repeatable)")
	return cmd
}

// NewMockServer builds a mock backend from command-line style failure and service specs.
func NewMockServer(delay time.Duration, failures []string, services []string) (*mockgateway.Server, error) {
	srv := mockgateway.New(mockgateway.Options{Delay: delay})
	for _, f := range failures {
		route, failure, err := mockgateway.ParseFailure(f)
		if err != nil {
			return nil, err
		}
		srv.Fail(route, failure)
	}
	if len(services) > 0 {
		states := map[string]string{"mongodb": "connected", "openai": "configured", "stripe": "configured"}
		for _, s := range services {
			name, state, ok := strings.Cut(s, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, errors.Errorf("invalid --service %q (want name=state)", s)
			}
			states[strings.TrimSpace(name)] = strings.TrimSpace(state)
		}
		srv.SetServices(states)
	}
	return srv, nil
}
