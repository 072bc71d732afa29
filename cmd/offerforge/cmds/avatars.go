package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newAvatarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "avatars",
		Aliases: []string{"avatar"},
		Short:   "Manage customer avatars",
	}
	cmd.AddCommand(newAvatarsListCmd(), newAvatarsCreateCmd())
	return cmd
}

func newAvatarsListCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List avatars",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			avatars, err := c.ListAvatars(requestContext(cmd), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), avatars)
			}
			if len(avatars) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no avatars")
				return nil
			}
			rows := make([][]string, 0, len(avatars))
			for _, a := range avatars {
				rows = append(rows, []string{a.ID, a.Name, orDash(a.AgeRange), orDash(a.IncomeLevel), strings.Join(a.PainPoints, "; ")})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Age", "Income", "Pain points"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of avatars (0 uses the backend default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newAvatarsCreateCmd() *cobra.Command {
	var a gateway.Avatar
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(a.Name) == "" {
				return errors.New("--name is required")
			}
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			out, err := c.CreateAvatar(requestContext(cmd), a)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("id", out.ID),
				kv("name", out.Name),
				kv("age range", orDash(out.AgeRange)),
				kv("interests", orDash(strings.Join(out.Interests, ", "))),
				kv("pain points", orDash(strings.Join(out.PainPoints, ", "))),
				kv("goals", orDash(strings.Join(out.Goals, ", "))),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&a.Name, "name", "", "Avatar name")
	cmd.Flags().StringVar(&a.AgeRange, "age-range", "", "Age range, e.g. 28-45 anos")
	cmd.Flags().StringVar(&a.Gender, "gender", "", "Gender")
	cmd.Flags().StringVar(&a.IncomeLevel, "income", "", "Income level")
	cmd.Flags().StringSliceVar(&a.Interests, "interest", nil, "Interest (repeatable)")
	cmd.Flags().StringSliceVar(&a.PainPoints, "pain-point", nil, "Pain point (repeatable)")
	cmd.Flags().StringSliceVar(&a.Goals, "goal", nil, "Goal (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
