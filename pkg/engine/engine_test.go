package engine

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/hooks"
	"github.com/go-go-golems/offerforge/pkg/mockgateway"
	"github.com/go-go-golems/offerforge/pkg/patch"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (*mockgateway.Server, *gateway.Client) {
	t.Helper()
	srv := mockgateway.New(mockgateway.Options{})
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	c, err := gateway.New(hs.URL)
	require.NoError(t, err)
	return srv, c
}

func newEngineRunner(t *testing.T, gw Gateway, opts Options) (*Engine, *runner.Runner) {
	t.Helper()
	e, err := New(gw, DefaultBrief(), opts)
	require.NoError(t, err)
	r, err := e.NewRunner(runner.Options{})
	require.NoError(t, err)
	return e, r
}

func TestEngine_FullRunAgainstMockBackend(t *testing.T) {
	srv, c := newBackend(t)
	e, r := newEngineRunner(t, c, Options{})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeCompleted, out.State)
	require.Equal(t, 100, out.Progress)

	health, ok := r.Step(StepHealth)
	require.True(t, ok)
	require.False(t, health.Enabled)
	require.Equal(t, runner.StatusPending, health.Status)
	require.Equal(t, 0, srv.Calls(mockgateway.RouteHealth))

	project, _ := r.Step(StepProject)
	pr := project.Result.(ProjectResult)
	require.Equal(t, "AutoDemo: Marketing Digital", pr.Name)
	require.Equal(t, string(gateway.StatusResearchCompleted), pr.Status)
	require.NotEmpty(t, pr.ID)

	stored, ok := srv.Project(pr.ID)
	require.True(t, ok)
	require.Equal(t, "auto-demo", stored.UserID)
	require.Equal(t, gateway.LanguagePTBR, stored.Language)
	require.Equal(t, "auto-demo-avatar", stored.Brief.AvatarID)
	require.Equal(t, "Avatar: Empreendedor Digital (28-45 anos)", stored.Brief.AdditionalNotes)
	require.Len(t, stored.PainResearch.PainPoints, 4)
	require.Equal(t, 3, stored.PainResearch.PainPoints[0].Frequency)
	require.Equal(t, "marketing", stored.PainResearch.PainPoints[0].Category)
	require.Len(t, stored.PainResearch.Reviews, 3)
	require.Len(t, stored.PainResearch.FAQs, 3)

	offer, _ := r.Step(StepOffer)
	or := offer.Result.(OfferResult)
	require.NotEmpty(t, or.Headline)
	require.Equal(t, 3, or.Bonuses)
	require.Equal(t, 2, or.Guarantees)

	materials, _ := r.Step(StepMaterials)
	require.Equal(t, MaterialsResult{VSL: VSLGenerated, Emails: 5, Social: 3}, materials.Result)

	landing, _ := r.Step(StepLanding)
	require.Equal(t, gateway.DefaultLandingTemplate, landing.Result.(LandingResult).Template)

	export, _ := r.Step(StepExport)
	files := export.Result.(ExportResult)
	require.Len(t, files, 2)
	require.Equal(t, "ZIP", files[0].Type)
	require.Equal(t, "PDF", files[1].Type)
	require.Empty(t, files[0].Path)

	require.NotNil(t, e.Project())
	require.Equal(t, pr.ID, e.Project().ID)
	require.Equal(t, gateway.StatusOfferGenerated, e.Project().Status)
}

func TestEngine_HealthStepWhenEnabled(t *testing.T) {
	srv, c := newBackend(t)
	srv.SetServices(map[string]string{"mongodb": "connected", "openai": "not_configured"})
	_, r := newEngineRunner(t, c, Options{CheckHealth: true})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeAwaitingDecision, out.State)
	require.Equal(t, StepHealth, out.Failed.ID)
	require.Contains(t, out.Failed.Error, "openai")

	out, err = r.Resume(context.Background(), runner.DecisionContinue)
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeCompleted, out.State)
	require.Equal(t, 83, out.Progress)
}

func TestEngine_OfferFailureThenContinue(t *testing.T) {
	srv, c := newBackend(t)
	srv.Fail(mockgateway.RouteGenerateOffer, mockgateway.Failure{Message: "IA falhou ao gerar oferta"})
	_, r := newEngineRunner(t, c, Options{})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeAwaitingDecision, out.State)
	require.Equal(t, StepOffer, out.Failed.ID)
	require.Contains(t, out.Failed.Error, "IA falhou ao gerar oferta")

	// materials and landing need the offer; export only needs the project.
	for _, want := range []runner.StepID{StepMaterials, StepLanding} {
		out, err = r.Resume(context.Background(), runner.DecisionContinue)
		require.NoError(t, err)
		require.Equal(t, runner.OutcomeAwaitingDecision, out.State)
		require.Equal(t, want, out.Failed.ID)
		require.Contains(t, out.Failed.Error, runner.ErrPredecessorNotDone.Error())
	}
	require.Equal(t, 0, srv.Calls(mockgateway.RouteGenerateMats))

	out, err = r.Resume(context.Background(), runner.DecisionContinue)
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeCompleted, out.State)
	require.Equal(t, 40, out.Progress)
	export, _ := r.Step(StepExport)
	require.Equal(t, runner.StatusDone, export.Status)
}

func TestEngine_ExportSkipsFailedKinds(t *testing.T) {
	srv, c := newBackend(t)
	dir := t.TempDir()
	_, r := newEngineRunner(t, c, Options{
		ExportKinds:    []gateway.ExportKind{gateway.ExportZIP, gateway.ExportPDF, gateway.ExportJSON},
		OutputDir:      dir,
		ExportFilename: `{{ .Brief.Niche | lower | replace " " "-" }}-{{ .Type }}.{{ .Kind }}`,
	})
	srv.Fail(mockgateway.RouteExport, mockgateway.Failure{Status: http.StatusInternalServerError, Message: "boom", Times: 1})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeCompleted, out.State)

	export, _ := r.Step(StepExport)
	files := export.Result.(ExportResult)
	require.Len(t, files, 2)
	require.Equal(t, "PDF", files[0].Type)
	require.Equal(t, filepath.Join(dir, "marketing-digital-pdf.pdf"), files[0].Path)
	require.Equal(t, filepath.Join(dir, "marketing-digital-json.json"), files[1].Path)

	b, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-", string(b[:5]))
}

func TestEngine_ExportFailsWhenEveryKindFails(t *testing.T) {
	srv, c := newBackend(t)
	_, r := newEngineRunner(t, c, Options{})
	srv.Fail(mockgateway.RouteExport, mockgateway.Failure{Status: http.StatusInternalServerError, Message: "disk full"})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeAwaitingDecision, out.State)
	require.Equal(t, StepExport, out.Failed.ID)
	require.Contains(t, out.Failed.Error, "every export failed")
	require.Contains(t, out.Failed.Error, "disk full")
}

func TestEngine_HooksRejectAndSummarize(t *testing.T) {
	_, c := newBackend(t)
	m, err := hooks.Load(context.Background(), "quality.js", `
register({
  name: "quality",
  validate(step, result) {
    if (step === "materials" && result.emails < 10) return "need at least 10 e-mails";
  },
  summarize(step, result) {
    if (step === "offer") return "bonuses=" + result.bonuses;
  },
});`, hooks.Options{})
	require.NoError(t, err)
	set := &hooks.Set{Modules: []*hooks.Module{m}}

	e, r := newEngineRunner(t, c, Options{Hooks: set})
	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeAwaitingDecision, out.State)
	require.Equal(t, StepMaterials, out.Failed.ID)
	require.Contains(t, out.Failed.Error, "need at least 10 e-mails")

	offer, _ := r.Step(StepOffer)
	require.Equal(t, "bonuses=3", e.Summary(context.Background(), offer))
	project, _ := r.Step(StepProject)
	require.Contains(t, e.Summary(context.Background(), project), "AutoDemo: Marketing Digital")
}

func TestEngine_ForgetDropsProject(t *testing.T) {
	_, c := newBackend(t)
	e, r := newEngineRunner(t, c, Options{})
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, e.Project())

	e.Forget()
	require.Nil(t, e.Project())
	_, err = e.generateOffer(context.Background())
	require.ErrorIs(t, err, ErrNoProject)
}

type fakeGateway struct {
	Gateway
	exports map[gateway.ExportKind]func() (*gateway.ExportResult, error)
	project *gateway.Project
}

func (f *fakeGateway) Export(ctx context.Context, id string, kind gateway.ExportKind, includeAssets bool) (*gateway.ExportResult, error) {
	fn, ok := f.exports[kind]
	if !ok {
		return nil, errors.Errorf("unsupported export %s", kind)
	}
	return fn()
}

func TestEngine_ExportSizesRoundToKB(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, 3000))
	fg := &fakeGateway{exports: map[gateway.ExportKind]func() (*gateway.ExportResult, error){
		gateway.ExportZIP: func() (*gateway.ExportResult, error) {
			return &gateway.ExportResult{Success: true, FileData: payload}, nil
		},
	}}
	e, err := New(fg, DefaultBrief(), Options{ExportKinds: []gateway.ExportKind{gateway.ExportZIP, gateway.ExportHTML}})
	require.NoError(t, err)
	e.project = &gateway.Project{ID: "p1", Name: "AutoDemo: Marketing Digital"}

	res, err := e.exportAll(context.Background())
	require.NoError(t, err)
	// 3000 bytes encode to 4000 base64 characters.
	require.Equal(t, ExportResult{{Type: "ZIP", SizeKB: 4}}, res)
}

func TestEngine_DefaultExportFilename(t *testing.T) {
	e, err := New(&fakeGateway{}, DefaultBrief(), Options{})
	require.NoError(t, err)
	name, err := e.exportFilename(gateway.Project{Name: "AutoDemo: Marketing Digital"}, gateway.ExportHTML)
	require.NoError(t, err)
	require.Regexp(t, `^[A-Za-z0-9._-]+\.zip$`, name)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultBrief(), Options{})
	require.Error(t, err)

	b := DefaultBrief()
	b.Niche = " "
	_, err = New(&fakeGateway{}, b, Options{})
	require.ErrorContains(t, err, "niche")

	_, err = New(&fakeGateway{}, DefaultBrief(), Options{ExportFilename: "{{ .Nope"})
	require.ErrorContains(t, err, "export filename template")
}

func TestBrief_LoadAndOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.yaml")
	require.NoError(t, os.WriteFile(path, []byte("niche: Fitness\ntarget_price: 497\npain_points: |\n  Sem tempo\n\n  Sem motivação\n"), 0o644))

	b, err := LoadBrief(path)
	require.NoError(t, err)
	require.Equal(t, "Fitness", b.Niche)
	require.Equal(t, 497.0, b.TargetPrice)
	require.Equal(t, "BRL", b.Currency)
	require.Equal(t, "AutoDemo: Fitness", b.Name())

	pr := b.PainResearch()
	require.Len(t, pr.PainPoints, 2)
	require.Equal(t, "Sem motivação", pr.PainPoints[1].Description)

	p, err := patch.Parse([]string{"target_price=1997", "project_name=Launch"}, nil)
	require.NoError(t, err)
	b, err = b.ApplyOverrides(p)
	require.NoError(t, err)
	require.Equal(t, 1997.0, b.TargetPrice)
	require.Equal(t, "Launch", b.Name())
	require.Equal(t, "Fitness", b.Niche)
}

func TestSummarize(t *testing.T) {
	require.Equal(t, "pending", Summarize(runner.Step{Status: runner.StatusPending}))
	require.Equal(t, "failed: boom", Summarize(runner.Step{Status: runner.StatusFailed, Error: "boom"}))
	require.Equal(t, "VSL: Gerado, 5 e-mails, 3 social posts",
		Summarize(runner.Step{Status: runner.StatusDone, Result: MaterialsResult{VSL: VSLGenerated, Emails: 5, Social: 3}}))
	require.Equal(t, "ZIP 12 KB, PDF 3 KB",
		Summarize(runner.Step{Status: runner.StatusDone, Result: ExportResult{{Type: "ZIP", SizeKB: 12}, {Type: "PDF", SizeKB: 3}}}))
}
