// Package engine binds the automation steps to backend calls and owns the project the
// steps share.
package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/hooks"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	StepHealth    runner.StepID = "health"
	StepProject   runner.StepID = "project"
	StepOffer     runner.StepID = "offer"
	StepMaterials runner.StepID = "materials"
	StepLanding   runner.StepID = "landing"
	StepExport    runner.StepID = "export"
)

const DefaultExportFilename = `{{ .Project.Name | snakecase }}.{{ .Kind }}`

var DefaultExportKinds = []gateway.ExportKind{gateway.ExportZIP, gateway.ExportPDF}

var ErrNoProject = errors.New("project not created yet")

// Gateway is the part of the backend client the steps use.
type Gateway interface {
	Health(ctx context.Context) (*gateway.Health, error)
	CreateProject(ctx context.Context, in gateway.CreateProject) (*gateway.Project, error)
	UpdateProject(ctx context.Context, id string, in gateway.ProjectUpdate) (*gateway.Project, error)
	GenerateOffer(ctx context.Context, id string) (*gateway.GeneratedOffer, error)
	GenerateMaterials(ctx context.Context, id string, kinds []gateway.MaterialKind) (*gateway.Materials, error)
	GenerateLandingPage(ctx context.Context, id string, template string) (*gateway.LandingPage, error)
	Export(ctx context.Context, id string, kind gateway.ExportKind, includeAssets bool) (*gateway.ExportResult, error)
}

var _ Gateway = (*gateway.Client)(nil)

type Options struct {
	// CheckHealth enables the health step, which is off by default.
	CheckHealth     bool
	MaterialKinds   []gateway.MaterialKind
	LandingTemplate string
	ExportKinds     []gateway.ExportKind
	// OutputDir, when set, receives the decoded export files.
	OutputDir string
	// ExportFilename is a text/template with sprig functions over FilenameData.
	ExportFilename string
	Hooks          *hooks.Set
}

// FilenameData is the template input for export file names.
type FilenameData struct {
	Project gateway.Project
	Brief   Brief
	Type    gateway.ExportKind
	Kind    string
}

type Engine struct {
	gw       Gateway
	brief    Brief
	opts     Options
	filename *template.Template

	mu      sync.Mutex
	project *gateway.Project
}

func New(gw Gateway, brief Brief, opts Options) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("engine: gateway is required")
	}
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	if len(opts.MaterialKinds) == 0 {
		opts.MaterialKinds = append([]gateway.MaterialKind(nil), gateway.DefaultMaterialKinds...)
	}
	if opts.LandingTemplate == "" {
		opts.LandingTemplate = gateway.DefaultLandingTemplate
	}
	if len(opts.ExportKinds) == 0 {
		opts.ExportKinds = append([]gateway.ExportKind(nil), DefaultExportKinds...)
	}
	if opts.ExportFilename == "" {
		opts.ExportFilename = DefaultExportFilename
	}
	tmpl, err := template.New("export-filename").Funcs(sprig.TxtFuncMap()).Parse(opts.ExportFilename)
	if err != nil {
		return nil, errors.Wrap(err, "parse export filename template")
	}
	return &Engine{gw: gw, brief: brief, opts: opts, filename: tmpl}, nil
}

func (e *Engine) Brief() Brief { return e.brief }

// Project is the project created by the project step, or nil.
func (e *Engine) Project() *gateway.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return nil
	}
	p := *e.project
	return &p
}

// Forget drops the shared project so the next run starts from scratch.
func (e *Engine) Forget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.project = nil
}

func (e *Engine) Defs() []runner.StepDef {
	return []runner.StepDef{
		{
			ID:          StepHealth,
			Title:       "Check backend",
			Description: "Database, AI and payment services are reachable",
			Enabled:     e.opts.CheckHealth,
			Independent: true,
		},
		{
			ID:          StepProject,
			Title:       "Create project",
			Description: "Create the project with the full brief",
			Enabled:     true,
			Independent: true,
		},
		{
			ID:          StepOffer,
			Title:       "Generate AI offer",
			Description: "Headline, proof, bonuses and guarantees",
			Enabled:     true,
			Requires:    []runner.StepID{StepProject},
		},
		{
			ID:          StepMaterials,
			Title:       "Generate materials",
			Description: "VSL script, 5 e-mails and social posts",
			Enabled:     true,
			Requires:    []runner.StepID{StepOffer},
		},
		{
			ID:          StepLanding,
			Title:       "Landing page",
			Description: "Responsive mobile-first template",
			Enabled:     true,
			Requires:    []runner.StepID{StepOffer},
		},
		{
			ID:          StepExport,
			Title:       "Export everything",
			Description: "ZIP, PDF and HTML ready to deploy",
			Enabled:     true,
			Requires:    []runner.StepID{StepProject},
		},
	}
}

func (e *Engine) Actions() map[runner.StepID]runner.Action {
	return map[runner.StepID]runner.Action{
		StepHealth:    e.checkHealth,
		StepProject:   e.createProject,
		StepOffer:     e.generateOffer,
		StepMaterials: e.generateMaterials,
		StepLanding:   e.generateLanding,
		StepExport:    e.exportAll,
	}
}

// NewRunner builds a runner over the engine steps. The hooks middleware runs innermost,
// so a rejected result fails the step inside any outer span.
func (e *Engine) NewRunner(opts runner.Options) (*runner.Runner, error) {
	if e.opts.Hooks != nil {
		opts.Middlewares = append(append([]runner.Middleware(nil), opts.Middlewares...), e.HooksMiddleware())
	}
	return runner.New(e.Defs(), e.Actions(), opts)
}

// HooksMiddleware passes every successful result to the validate hooks.
func (e *Engine) HooksMiddleware() runner.Middleware {
	return func(step runner.Step, next runner.Action) runner.Action {
		return func(ctx context.Context) (any, error) {
			res, err := next(ctx)
			if err != nil {
				return nil, err
			}
			if err := e.opts.Hooks.Validate(ctx, string(step.ID), res); err != nil {
				return nil, err
			}
			return res, nil
		}
	}
}

// Summary is the step summary, overridden by a summarize hook when one answers.
func (e *Engine) Summary(ctx context.Context, step runner.Step) string {
	if step.Status == runner.StatusDone && e.opts.Hooks != nil {
		s, ok, err := e.opts.Hooks.Summarize(ctx, string(step.ID), step.Result)
		if err != nil {
			log.Warn().Err(err).Str("step", string(step.ID)).Msg("summarize hook failed")
		} else if ok {
			return s
		}
	}
	return Summarize(step)
}

func (e *Engine) currentProject() (gateway.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return gateway.Project{}, ErrNoProject
	}
	return *e.project, nil
}

func (e *Engine) checkHealth(ctx context.Context) (any, error) {
	h, err := e.gw.Health(ctx)
	if err != nil {
		return nil, err
	}
	if !h.Ready() {
		return nil, errors.Errorf("backend not ready (status %q, services: %s)", h.Status, strings.Join(h.NotReady(), ", "))
	}
	return HealthResult{Status: h.Status, Services: h.Services}, nil
}

func (e *Engine) createProject(ctx context.Context) (any, error) {
	created, err := e.gw.CreateProject(ctx, gateway.CreateProject{
		Name:     e.brief.Name(),
		UserID:   e.brief.user(),
		Language: e.brief.language(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create project")
	}

	brief := e.brief.GatewayBrief()
	research := e.brief.PainResearch()
	status := gateway.StatusResearchCompleted
	updated, err := e.gw.UpdateProject(ctx, created.ID, gateway.ProjectUpdate{
		Brief:        &brief,
		PainResearch: &research,
		Status:       &status,
	})
	if err != nil {
		return nil, errors.Wrap(err, "update project")
	}

	e.mu.Lock()
	p := *updated
	e.project = &p
	e.mu.Unlock()

	log.Info().Str("project", updated.ID).Str("name", updated.Name).Msg("project created")
	return ProjectResult{Name: updated.Name, ID: updated.ID, Status: string(updated.Status)}, nil
}

func (e *Engine) generateOffer(ctx context.Context) (any, error) {
	p, err := e.currentProject()
	if err != nil {
		return nil, err
	}
	offer, err := e.gw.GenerateOffer(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.project != nil {
		o := *offer
		e.project.GeneratedOffer = &o
		e.project.Status = gateway.StatusOfferGenerated
	}
	e.mu.Unlock()
	return OfferResult{Headline: offer.Headline, Bonuses: len(offer.Bonuses), Guarantees: len(offer.Guarantees)}, nil
}

func (e *Engine) generateMaterials(ctx context.Context) (any, error) {
	p, err := e.currentProject()
	if err != nil {
		return nil, err
	}
	m, err := e.gw.GenerateMaterials(ctx, p.ID, e.opts.MaterialKinds)
	if err != nil {
		return nil, err
	}
	res := MaterialsResult{VSL: VSLMissing, Social: len(m.SocialContent)}
	if m.VSLScript != nil {
		res.VSL = VSLGenerated
	}
	if m.EmailSequence != nil {
		res.Emails = len(m.EmailSequence.Emails)
	}
	return res, nil
}

func (e *Engine) generateLanding(ctx context.Context) (any, error) {
	p, err := e.currentProject()
	if err != nil {
		return nil, err
	}
	lp, err := e.gw.GenerateLandingPage(ctx, p.ID, e.opts.LandingTemplate)
	if err != nil {
		return nil, err
	}
	return LandingResult{Template: lp.TemplateName, SizeKB: sizeKB(len(lp.Markup()))}, nil
}

// exportAll requests every configured kind. A failed kind is logged and skipped; the step
// fails only when none succeeded.
func (e *Engine) exportAll(ctx context.Context) (any, error) {
	p, err := e.currentProject()
	if err != nil {
		return nil, err
	}
	out := ExportResult{}
	var lastErr error
	for _, kind := range e.opts.ExportKinds {
		f, err := e.exportOne(ctx, p, kind)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("project", p.ID).Str("kind", string(kind)).Msg("export failed, skipping")
			lastErr = err
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(lastErr, "every export failed")
	}
	return out, nil
}

func (e *Engine) exportOne(ctx context.Context, p gateway.Project, kind gateway.ExportKind) (ExportFile, error) {
	res, err := e.gw.Export(ctx, p.ID, kind, true)
	if err != nil {
		return ExportFile{}, err
	}
	f := ExportFile{Type: strings.ToUpper(string(kind)), SizeKB: sizeKB(len(res.FileData))}
	if e.opts.OutputDir == "" {
		return f, nil
	}

	data, err := res.Decode()
	if err != nil {
		return ExportFile{}, err
	}
	name, err := e.exportFilename(p, kind)
	if err != nil {
		return ExportFile{}, err
	}
	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		return ExportFile{}, errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(e.opts.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ExportFile{}, errors.Wrap(err, "write export")
	}
	f.Path = path
	log.Info().Str("project", p.ID).Str("kind", string(kind)).Str("path", path).Msg("export written")
	return f, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (e *Engine) exportFilename(p gateway.Project, kind gateway.ExportKind) (string, error) {
	var buf bytes.Buffer
	if err := e.filename.Execute(&buf, FilenameData{Project: p, Brief: e.brief, Type: kind, Kind: kind.Extension()}); err != nil {
		return "", errors.Wrap(err, "render export filename")
	}
	name := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(buf.String()), "_"), "_")
	if name == "" || name == "." || name == ".." {
		return "", errors.Errorf("export filename template rendered %q", buf.String())
	}
	return name, nil
}
