package cmds

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var asJSON bool
	var requireReady bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show backend health and the state of its services",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			h, err := c.Health(requestContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), h); err != nil {
					return err
				}
			} else {
				names := make([]string, 0, len(h.Services))
				for name := range h.Services {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, h.Services[name]})
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(kv("backend", c.BaseURL()), kv("status", h.Status), kv("checked", h.Timestamp.Format("2006-01-02 15:04:05"))))
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Service", "State"}, rows))
			}

			if !h.Ready() {
				notReady := h.NotReady()
				sort.Strings(notReady)
				log.Warn().Str("status", h.Status).Strs("services", notReady).Msg("backend not ready")
				if requireReady {
					return errors.Errorf("backend not ready: %s", strings.Join(append([]string{h.Status}, notReady...), ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw health response")
	cmd.Flags().BoolVar(&requireReady, "require-ready", false, "Exit with an error unless every service is connected or configured")
	return cmd
}
