package cmds

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects on the backend",
	}
	cmd.AddCommand(
		newProjectsListCmd(),
		newProjectsGetCmd(),
		newProjectsCreateCmd(),
		newProjectsUpdateCmd(),
		newProjectsDeleteCmd(),
	)
	return cmd
}

func projectRow(p gateway.Project) []string {
	return []string{
		p.ID,
		p.Name,
		p.Status.Label(),
		strconv.Itoa(p.Status.Percent()) + "%",
		p.UpdatedAt.Format("2006-01-02 15:04"),
	}
}

func printProject(cmd *cobra.Command, p *gateway.Project, asJSON bool) error {
	if asJSON {
		if len(p.Raw) > 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(p.Raw))
			return nil
		}
		return printJSON(cmd.OutOrStdout(), p)
	}
	pairs := []pair{
		kv("id", p.ID),
		kv("name", p.Name),
		kv("status", fmt.Sprintf("%s (%d%%)", p.Status.Label(), p.Status.Percent())),
		kv("language", string(p.Language)),
		kv("user", p.UserID),
	}
	if p.Brief != nil {
		pairs = append(pairs,
			kv("niche", p.Brief.Niche),
			kv("promise", p.Brief.Promise),
			kv("price", fmt.Sprintf("%s %s", p.Brief.Currency, strconv.FormatFloat(p.Brief.TargetPrice, 'f', -1, 64))),
		)
	}
	if o := p.GeneratedOffer; o != nil {
		pairs = append(pairs, kv("headline", o.Headline), kv("bonuses", strconv.Itoa(len(o.Bonuses))))
	}
	if m := p.Materials; m != nil {
		pairs = append(pairs, kv("vsl", strconv.FormatBool(m.VSLScript != nil)), kv("social posts", strconv.Itoa(len(m.SocialContent))))
		if m.EmailSequence != nil {
			pairs = append(pairs, kv("emails", strconv.Itoa(len(m.EmailSequence.Emails))))
		}
		if m.LandingPage != nil {
			pairs = append(pairs, kv("landing", m.LandingPage.TemplateName))
		}
	}
	pairs = append(pairs, kv("created", p.CreatedAt.Format("2006-01-02 15:04:05")), kv("updated", p.UpdatedAt.Format("2006-01-02 15:04:05")))
	_, _ = fmt.Fprint(cmd.OutOrStdout(), keyValues(pairs...))
	return nil
}

func newProjectsListCmd() *cobra.Command {
	var userID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			if userID == "" && opts.File != nil {
				userID = opts.File.UserID
			}
			projects, err := c.ListProjects(requestContext(cmd), gateway.ListProjectsOptions{UserID: userID, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), projects)
			}
			if len(projects) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, projectRow(p))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Status", "Progress", "Updated"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Only list projects of this user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of projects (0 uses the backend default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newProjectsGetCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			p, err := c.GetProject(requestContext(cmd), args[0])
			if err != nil {
				return err
			}
			return printProject(cmd, p, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the project as returned by the backend")
	return cmd
}

func newProjectsCreateCmd() *cobra.Command {
	var name string
	var userID string
	var language string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			c, opts, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			if userID == "" && opts.File != nil {
				userID = opts.File.UserID
			}
			if language == "" && opts.File != nil {
				language = opts.File.Language
			}
			if userID == "" {
				return errors.New("--user is required (or user_id in the config file)")
			}
			p, err := c.CreateProject(requestContext(cmd), gateway.CreateProject{Name: name, UserID: userID, Language: gateway.Language(language)})
			if err != nil {
				return err
			}
			log.Info().Str("project", p.ID).Msg("project created")
			return printProject(cmd, p, asJSON)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id")
	cmd.Flags().StringVar(&language, "language", "", "Content language (pt-BR or en-US)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newProjectsUpdateCmd() *cobra.Command {
	var name string
	var status string
	var briefFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project's name, status or brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd gateway.ProjectUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("status") {
				st := gateway.Status(status)
				if !st.Valid() {
					return errors.Errorf("unknown status %q", status)
				}
				upd.Status = &st
			}
			if briefFile != "" {
				raw, err := os.ReadFile(briefFile)
				if err != nil {
					return errors.Wrap(err, "read brief")
				}
				var b gateway.Brief
				if err := yaml.Unmarshal(raw, &b); err != nil {
					return errors.Wrapf(err, "parse brief %s", briefFile)
				}
				upd.Brief = &b
			}
			if upd.Name == nil && upd.Status == nil && upd.Brief == nil {
				return errors.New("nothing to update: pass --name, --status or --brief")
			}

			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			p, err := c.UpdateProject(requestContext(cmd), args[0], upd)
			if err != nil {
				return err
			}
			return printProject(cmd, p, asJSON)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New project name")
	cmd.Flags().StringVar(&status, "status", "", "New status (draft, brief_completed, research_completed, offer_generated, materials_generated, completed)")
	cmd.Flags().StringVar(&briefFile, "brief", "", "YAML file with niche, avatar_id, promise, target_price, currency")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newProjectsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteProject(requestContext(cmd), args[0]); err != nil {
				return err
			}
			log.Info().Str("project", args[0]).Msg("project deleted")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "deleted "+args[0])
			return nil
		},
	}
}
