package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/offerforge/pkg/config"
	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultTimeout = 30 * time.Second

type rootOptions struct {
	Config     string
	BackendURL string
	Timeout    time.Duration
	File       *config.File
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("backend-url", "", "Backend base URL (defaults to $"+config.EnvBackendURL+" or backend_url in the config file)")
	root.PersistentFlags().String("config", "", "Path to config file (defaults to "+config.DefaultConfigFilename+" in the current directory)")
	root.PersistentFlags().Duration("timeout", defaultTimeout, "Timeout for each backend request")
}

// LoadDotEnv loads .env from the working directory; variables already set win.
func LoadDotEnv() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	loaded, err := config.LoadDotEnv(wd)
	if err != nil {
		return err
	}
	if loaded {
		log.Debug().Str("dir", wd).Msg("loaded .env")
	}
	return nil
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(wd)
	} else if cfgPath, err = filepath.Abs(cfgPath); err != nil {
		return rootOptions{}, err
	}
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	backendURL, err := flags.GetString("backend-url")
	if err != nil {
		return rootOptions{}, err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if !flags.Changed("timeout") && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	if timeout <= 0 {
		return rootOptions{}, errors.New("timeout must be > 0")
	}

	return rootOptions{
		Config:     cfgPath,
		BackendURL: backendURL,
		Timeout:    timeout,
		File:       cfg,
	}, nil
}

func newGatewayClient(opts rootOptions) (*gateway.Client, error) {
	url, err := config.ResolveBackendURL(opts.BackendURL, opts.File)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("backend", url).Dur("timeout", opts.Timeout).Msg("backend client")
	return gateway.New(url, gateway.WithTimeout(opts.Timeout))
}

// clientFromCmd resolves the root options and a backend client in one go.
func clientFromCmd(cmd *cobra.Command) (*gateway.Client, rootOptions, error) {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return nil, rootOptions{}, err
	}
	c, err := newGatewayClient(opts)
	if err != nil {
		return nil, rootOptions{}, err
	}
	return c, opts, nil
}

func requestContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
