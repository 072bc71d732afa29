package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/offerforge/pkg/mockgateway"
)

type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var port int
	var delay time.Duration
	var failures listFlag
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for ephemeral)")
	flag.DurationVar(&delay, "delay", 0, "Delay added to every response")
	flag.Var(&failures, "fail", "Inject a failure: route[=status[xtimes]] (repeatable)")
	flag.Parse()

	if port == 0 {
		if v := os.Getenv("MOCK_GATEWAY_PORT"); v != "" {
			_, _ = fmt.Sscanf(v, "%d", &port)
		}
	}

	srv := mockgateway.New(mockgateway.Options{Delay: delay})
	for _, f := range failures {
		route, failure, err := mockgateway.ParseFailure(f)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "bad --fail: %v\n", err)
			os.Exit(2)
		}
		srv.Fail(route, failure)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(2)
	}
	_, _ = fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr().String())

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 2 * time.Second,
	}
	if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		_, _ = fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(3)
	}
}
