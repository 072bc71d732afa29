package cmds

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/offerforge/pkg/config"
	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/hooks"
	"github.com/go-go-golems/offerforge/pkg/patch"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// pipelineFlags are shared by run and tui.
type pipelineFlags struct {
	BriefFile   string
	Set         []string
	Unset       []string
	Hooks       string
	HookTimeout time.Duration
	OutDir      string
	StepDelay   time.Duration
	Steps       []string
	Skip        []string
	CheckHealth bool

	MaterialKinds   []string
	LandingTemplate string
	ExportKinds     []string
	ExportFilename  string
}

func addPipelineFlags(fs *pflag.FlagSet, pf *pipelineFlags, defaultDelay time.Duration) {
	fs.StringVar(&pf.BriefFile, "brief", "", "YAML brief file (defaults to brief_file in the config, then the built-in demo brief)")
	fs.StringArrayVar(&pf.Set, "set", nil, "Override a brief field, e.g. --set target_price=497 (repeatable)")
	fs.StringArrayVar(&pf.Unset, "unset", nil, "Clear a brief field (repeatable)")
	fs.StringVar(&pf.Hooks, "hooks", "", "Comma-separated JS hook scripts")
	fs.DurationVar(&pf.HookTimeout, "hook-timeout", 2*time.Second, "Timeout for each hook call")
	fs.StringVar(&pf.OutDir, "out-dir", "", "Write exported files to this directory")
	fs.DurationVar(&pf.StepDelay, "step-delay", defaultDelay, "Pause after each successful step")
	fs.StringSliceVar(&pf.Steps, "steps", nil, "Run only these steps (health, project, offer, materials, landing, export)")
	fs.StringSliceVar(&pf.Skip, "skip", nil, "Disable these steps")
	fs.BoolVar(&pf.CheckHealth, "check-health", false, "Enable the backend health step")
	fs.StringSliceVar(&pf.MaterialKinds, "materials", nil, "Material kinds to generate (default vsl, emails, social)")
	fs.StringVar(&pf.LandingTemplate, "landing-template", "", "Landing page template (default "+gateway.DefaultLandingTemplate+")")
	fs.StringSliceVar(&pf.ExportKinds, "export", nil, "Export kinds (default zip, pdf)")
	fs.StringVar(&pf.ExportFilename, "export-filename", "", "Template for exported file names (default "+engine.DefaultExportFilename+")")
}

type pipeline struct {
	Client *gateway.Client
	Engine *engine.Engine
	// StepDelay is the resolved delay: flag, then config, then the flag default.
	StepDelay time.Duration
}

func (pf pipelineFlags) brief(cfg *config.File) (engine.Brief, error) {
	path := firstNonEmpty(pf.BriefFile, cfg.BriefFile)
	b := engine.DefaultBrief()
	// Config defaults only fill the built-in brief; flags win over both.
	defaults := patch.Patch{Set: map[string]any{}}
	if path != "" {
		var err error
		if b, err = engine.LoadBrief(path); err != nil {
			return engine.Brief{}, err
		}
	} else {
		if cfg.UserID != "" {
			defaults.Set["user_id"] = cfg.UserID
		}
		if cfg.Language != "" {
			defaults.Set["language"] = cfg.Language
		}
	}
	flags, err := patch.Parse(pf.Set, pf.Unset)
	if err != nil {
		return engine.Brief{}, err
	}
	p := patch.Merge(defaults, flags)
	if p.Empty() {
		return b, nil
	}
	return b.ApplyOverrides(p)
}

func (pf pipelineFlags) engineOptions(ctx context.Context, cfg *config.File) (engine.Options, error) {
	opts := engine.Options{
		CheckHealth:     pf.CheckHealth,
		LandingTemplate: firstNonEmpty(pf.LandingTemplate, cfg.LandingTemplate),
		OutputDir:       firstNonEmpty(pf.OutDir, cfg.OutputDir),
		ExportFilename:  firstNonEmpty(pf.ExportFilename, cfg.ExportFilename),
	}
	for _, s := range pf.Steps {
		if runner.StepID(strings.TrimSpace(s)) == engine.StepHealth {
			opts.CheckHealth = true
		}
	}

	materials := pf.MaterialKinds
	if len(materials) == 0 {
		materials = cfg.MaterialKinds
	}
	mk, err := parseMaterialKinds(materials)
	if err != nil {
		return engine.Options{}, err
	}
	opts.MaterialKinds = mk

	exports := pf.ExportKinds
	if len(exports) == 0 {
		exports = cfg.ExportKinds
	}
	for _, s := range exports {
		k, err := gateway.ParseExportKind(s)
		if err != nil {
			return engine.Options{}, err
		}
		opts.ExportKinds = append(opts.ExportKinds, k)
	}

	if paths := hooks.SplitPaths(firstNonEmpty(pf.Hooks, cfg.Hooks)); len(paths) > 0 {
		set, err := hooks.LoadSetFromFiles(ctx, paths, hooks.Options{Timeout: pf.HookTimeout})
		if err != nil {
			return engine.Options{}, err
		}
		for _, m := range set.Modules {
			info := m.Info()
			log.Info().Str("hook", info.Name).Str("path", info.ScriptPath).
				Bool("validate", info.HasValidate).Bool("summarize", info.HasSummarize).
				Msg("loaded hook")
		}
		log.Debug().Strs("order", set.Names()).Msg("hooks run in this order")
		opts.Hooks = set
	}
	return opts, nil
}

func buildPipeline(cmd *cobra.Command, pf pipelineFlags) (*pipeline, error) {
	c, opts, err := clientFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	cfg := opts.File

	b, err := pf.brief(cfg)
	if err != nil {
		return nil, err
	}
	eopts, err := pf.engineOptions(requestContext(cmd), cfg)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(c, b, eopts)
	if err != nil {
		return nil, err
	}

	delay := pf.StepDelay
	if !cmd.Flags().Changed("step-delay") && cfg.StepDelay != nil {
		delay = *cfg.StepDelay
	}
	return &pipeline{Client: c, Engine: eng, StepDelay: delay}, nil
}

// selectSteps applies --steps and --skip to a fresh runner.
func selectSteps(r *runner.Runner, only []string, skip []string) error {
	known := map[runner.StepID]bool{}
	for _, s := range r.Steps() {
		known[s.ID] = true
	}
	parse := func(in []string) ([]runner.StepID, error) {
		var out []runner.StepID
		for _, s := range in {
			id := runner.StepID(strings.TrimSpace(s))
			if id == "" {
				continue
			}
			if !known[id] {
				return nil, errors.Wrapf(runner.ErrUnknownStep, "%s", id)
			}
			out = append(out, id)
		}
		return out, nil
	}

	onlyIDs, err := parse(only)
	if err != nil {
		return err
	}
	skipIDs, err := parse(skip)
	if err != nil {
		return err
	}
	if len(onlyIDs) > 0 {
		want := map[runner.StepID]bool{}
		for _, id := range onlyIDs {
			want[id] = true
		}
		for id := range known {
			if err := r.SetEnabled(id, want[id]); err != nil {
				return err
			}
		}
	}
	for _, id := range skipIDs {
		if err := r.SetEnabled(id, false); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
