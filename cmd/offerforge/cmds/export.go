package cmds

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func writeFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create output dir")
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var kind string
	var includeAssets bool
	var out string

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project as zip, pdf, html or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := gateway.ParseExportKind(kind)
			if err != nil {
				return err
			}
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			res, err := c.Export(requestContext(cmd), args[0], k, includeAssets)
			if err != nil {
				return err
			}
			b, err := res.Decode()
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s.%s", args[0], k.Extension())
			}
			if err := writeFile(out, b); err != nil {
				return err
			}
			log.Info().Str("project", args[0]).Str("type", string(k)).Int("bytes", len(b)).Str("path", out).Msg("export written")
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("type", string(k)),
				kv("size", fmt.Sprintf("%d bytes", len(b))),
				kv("path", out),
				kv("message", orDash(res.Message)),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", string(gateway.ExportZIP), "Export type: zip, pdf, html or json")
	cmd.Flags().BoolVar(&includeAssets, "include-assets", true, "Ask the backend to bundle generated assets")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to <project-id>.<ext>)")
	return cmd
}
