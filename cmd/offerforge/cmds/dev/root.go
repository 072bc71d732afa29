package dev

import (
	"github.com/go-go-golems/offerforge/cmd/offerforge/cmds/dev/smoketest"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "dev",
		Short:  "Developer tooling (dev-only)",
		Hidden: true,
	}

	cmd.AddCommand(newMockBackendCmd())
	cmd.AddCommand(smoketest.NewCmd())
	return cmd
}
