package cmds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Run one AI generation step against an existing project",
	}
	cmd.AddCommand(newGenerateOfferCmd(), newGenerateMaterialsCmd(), newGenerateLandingCmd())
	return cmd
}

func newGenerateOfferCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "offer <project-id>",
		Short: "Generate the offer from the project's brief and pain research",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			o, err := c.GenerateOffer(requestContext(cmd), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), o)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("headline", o.Headline),
				kv("promise", o.MainPromise),
				kv("proof", strings.Join(o.ProofElements, "; ")),
				kv("bonuses", strings.Join(o.Bonuses, "; ")),
				kv("guarantees", strings.Join(o.Guarantees, "; ")),
				kv("price", o.PriceJustification),
				kv("urgency", strings.Join(o.UrgencyElements, "; ")),
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func parseMaterialKinds(in []string) ([]gateway.MaterialKind, error) {
	out := make([]gateway.MaterialKind, 0, len(in))
	for _, s := range in {
		k := gateway.MaterialKind(strings.ToLower(strings.TrimSpace(s)))
		switch k {
		case gateway.MaterialVSL, gateway.MaterialEmails, gateway.MaterialSocial:
			out = append(out, k)
		default:
			return nil, errors.Errorf("invalid material kind %q (supported: vsl, emails, social)", s)
		}
	}
	return out, nil
}

func newGenerateMaterialsCmd() *cobra.Command {
	var kinds []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "materials <project-id>",
		Short: "Generate the VSL script, e-mail sequence and social posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mk, err := parseMaterialKinds(kinds)
			if err != nil {
				return err
			}
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			m, err := c.GenerateMaterials(requestContext(cmd), args[0], mk)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			var rows [][]string
			if v := m.VSLScript; v != nil {
				rows = append(rows, []string{"vsl", v.Title, strconv.Itoa(v.EstimatedDuration) + "s"})
			}
			if e := m.EmailSequence; e != nil {
				for _, mail := range e.Emails {
					rows = append(rows, []string{"email", mail.Subject, e.SequenceName})
				}
			}
			for _, s := range m.SocialContent {
				rows = append(rows, []string{"social", s.Platform, strings.Join(s.Hashtags, " ")})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Kind", "Title", "Detail"}, rows))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kind", []string{"vsl", "emails", "social"}, "Material kinds to generate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newGenerateLandingCmd() *cobra.Command {
	var template string
	var htmlOut string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "landing <project-id>",
		Short: "Generate the landing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			lp, err := c.GenerateLandingPage(requestContext(cmd), args[0], template)
			if err != nil {
				return err
			}
			if htmlOut != "" {
				if err := writeFile(htmlOut, []byte(lp.Markup())); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), lp)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(
				kv("template", lp.TemplateName),
				kv("html", fmt.Sprintf("%d bytes", len(lp.Markup()))),
				kv("generated", lp.GeneratedAt.Format("2006-01-02 15:04:05")),
				kv("written to", orDash(htmlOut)),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", gateway.DefaultLandingTemplate, "Landing page template")
	cmd.Flags().StringVar(&htmlOut, "out", "", "Write the generated HTML to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
