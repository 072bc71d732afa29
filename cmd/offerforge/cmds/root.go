package cmds

import (
	"github.com/go-go-golems/offerforge/cmd/offerforge/cmds/dev"
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(dev.NewCmd())
	root.AddCommand(newHealthCmd())
	root.AddCommand(newProjectsCmd())
	root.AddCommand(newAvatarsCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newPriceCmd())
	root.AddCommand(newMetricsCmd())

	root.AddCommand(newRunCmd())
	root.AddCommand(newTuiCmd())
	return nil
}
