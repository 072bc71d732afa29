package gateway_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/go-go-golems/offerforge/pkg/mockgateway"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newClient(t *testing.T, opts ...gateway.Option) (*gateway.Client, *mockgateway.Server) {
	t.Helper()
	mock := mockgateway.New(mockgateway.Options{})
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	c, err := gateway.New(srv.URL, opts...)
	require.NoError(t, err)
	return c, mock
}

func seedProject(t *testing.T, c *gateway.Client) *gateway.Project {
	t.Helper()
	ctx := context.Background()
	p, err := c.CreateProject(ctx, gateway.CreateProject{Name: "AutoDemo: Fitness", UserID: "auto-demo", Language: gateway.LanguagePTBR})
	require.NoError(t, err)
	status := gateway.StatusResearchCompleted
	p, err = c.UpdateProject(ctx, p.ID, gateway.ProjectUpdate{
		Status: &status,
		Brief: &gateway.Brief{
			Niche: "Fitness", AvatarID: "auto-demo-avatar", Promise: "Perca 5kg", TargetPrice: 197, Currency: "BRL",
		},
		PainResearch: &gateway.PainResearch{
			PainPoints: []gateway.PainPoint{{Description: "Falta de tempo", Frequency: 3, Source: "auto-demo", Category: "marketing"}},
			Reviews:    []string{"Funcionou"},
		},
	})
	require.NoError(t, err)
	return p
}

func TestNew_RejectsBadURLs(t *testing.T) {
	_, err := gateway.New("")
	require.Error(t, err)
	_, err = gateway.New("ftp://example.com")
	require.Error(t, err)

	c, err := gateway.New("http://example.com/api/")
	require.NoError(t, err)
	require.Equal(t, "http://example.com", c.BaseURL())
}

func TestHealth(t *testing.T) {
	c, mock := newClient(t)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	require.True(t, h.Ready())
	require.False(t, h.Timestamp.IsZero())

	mock.SetServices(map[string]string{"mongodb": "connected", "openai": "not configured"})
	h, err = c.Health(context.Background())
	require.NoError(t, err)
	require.False(t, h.Ready())
	require.Equal(t, []string{"openai"}, h.NotReady())
}

func TestProjectLifecycle(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	p := seedProject(t, c)
	require.NotEmpty(t, p.ID)
	require.Equal(t, gateway.StatusResearchCompleted, p.Status)
	require.Equal(t, "Fitness", p.Brief.Niche)
	require.NotEmpty(t, p.Raw)

	got, err := c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Name, got.Name)
	require.False(t, got.CreatedAt.IsZero())

	list, err := c.ListProjects(ctx, gateway.ListProjectsOptions{UserID: "auto-demo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = c.ListProjects(ctx, gateway.ListProjectsOptions{UserID: "someone-else"})
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	_, err = c.GetProject(ctx, p.ID)
	require.ErrorIs(t, err, gateway.ErrNotFound)
	require.ErrorIs(t, err, gateway.ErrStatus)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	require.Equal(t, "Project not found", gwErr.Message)
}

func TestGenerateSequence(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	p := seedProject(t, c)

	offer, err := c.GenerateOffer(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, offer.Headline)
	require.Len(t, offer.Bonuses, 3)

	m, err := c.GenerateMaterials(ctx, p.ID, gateway.DefaultMaterialKinds)
	require.NoError(t, err)
	require.NotNil(t, m.VSLScript)
	require.Len(t, m.EmailSequence.Emails, 5)
	require.Len(t, m.SocialContent, 3)

	only, err := c.GenerateMaterials(ctx, p.ID, []gateway.MaterialKind{gateway.MaterialVSL})
	require.NoError(t, err)
	require.NotNil(t, only.VSLScript)
	require.Nil(t, only.EmailSequence)

	lp, err := c.GenerateLandingPage(ctx, p.ID, "")
	require.NoError(t, err)
	require.Equal(t, gateway.DefaultLandingTemplate, lp.TemplateName)
	require.Contains(t, lp.Markup(), "<html>")

	stored, err := c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, gateway.StatusMaterialsGenerated, stored.Status)
	require.Contains(t, stored.Materials.LandingPage.Markup(), "<html>")
	require.NotNil(t, stored.FirstAssetGeneratedAt)
}

func TestGenerateOffer_PreconditionIsStatusError(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	p, err := c.CreateProject(ctx, gateway.CreateProject{Name: "bare", UserID: "u"})
	require.NoError(t, err)

	_, err = c.GenerateOffer(ctx, p.ID)
	require.ErrorIs(t, err, gateway.ErrStatus)
	require.Contains(t, err.Error(), "brief and pain research")
}

func TestExport(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	p := seedProject(t, c)

	res, err := c.Export(ctx, p.ID, gateway.ExportZIP, true)
	require.NoError(t, err)
	data, err := res.Decode()
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)

	res, err = c.Export(ctx, p.ID, gateway.ExportPDF, true)
	require.NoError(t, err)
	data, err = res.Decode()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	res, err = c.Export(ctx, p.ID, gateway.ExportJSON, false)
	require.NoError(t, err)
	data, err = res.Decode()
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	_, err = c.Export(ctx, p.ID, gateway.ExportHTML, true)
	require.ErrorIs(t, err, gateway.ErrStatus)
	require.Contains(t, err.Error(), "Landing page not generated yet")
}

func TestApplicationFailure(t *testing.T) {
	c, mock := newClient(t)
	ctx := context.Background()
	p := seedProject(t, c)

	mock.Fail(mockgateway.RouteGenerateOffer, mockgateway.Failure{Message: "IA falhou", Times: 1})
	_, err := c.GenerateOffer(ctx, p.ID)
	require.ErrorIs(t, err, gateway.ErrApplication)
	require.NotErrorIs(t, err, gateway.ErrStatus)
	require.Contains(t, err.Error(), "IA falhou")

	_, err = c.GenerateOffer(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, mock.Calls(mockgateway.RouteGenerateOffer))
}

func TestStatusFailureUsesDetail(t *testing.T) {
	c, mock := newClient(t)
	mock.Fail(mockgateway.RouteMetrics, mockgateway.Failure{Status: http.StatusInternalServerError, Message: "Failed to get metrics: db down"})
	_, err := c.Metrics(context.Background())
	require.ErrorIs(t, err, gateway.ErrStatus)
	require.Contains(t, err.Error(), "Failed to get metrics: db down")
	require.Contains(t, err.Error(), "HTTP 500")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := gateway.New(url, gateway.WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.ErrorIs(t, err, gateway.ErrTransport)
}

func TestDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": 42`))
	}))
	t.Cleanup(srv.Close)

	c, err := gateway.New(srv.URL)
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.ErrorIs(t, err, gateway.ErrDecode)
}

func TestValidationDetailList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","name"],"msg":"field required"}]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := gateway.New(srv.URL)
	require.NoError(t, err)
	_, err = c.CreateProject(context.Background(), gateway.CreateProject{})
	require.ErrorIs(t, err, gateway.ErrStatus)
	require.Contains(t, err.Error(), "field required")
}

func TestPriceSuggestionAndMetrics(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	ps, err := c.PriceSuggestion(ctx, gateway.PriceSuggestionQuery{Niche: "Fitness", TargetPrice: 100, Currency: "BRL"})
	require.NoError(t, err)
	require.InDelta(t, 90.0, ps.SuggestedPrice, 0.001)
	require.Equal(t, "high", ps.MarketAnalysis.Confidence)
	require.Equal(t, "BRL", ps.Currency)

	_, err = c.PriceSuggestion(ctx, gateway.PriceSuggestionQuery{})
	require.Error(t, err)

	seedProject(t, c)
	m, err := c.Metrics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, m.TotalProjects)
}

func TestAvatars(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	a, err := c.CreateAvatar(ctx, gateway.Avatar{Name: "Empreendedor Digital", AgeRange: "28-45"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	list, err := c.ListAvatars(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "28-45", list[0].AgeRange)
}

func TestEmptyProjectIDIsRejected(t *testing.T) {
	c, mock := newClient(t)
	_, err := c.GenerateOffer(context.Background(), "  ")
	require.Error(t, err)
	require.Equal(t, 0, mock.Calls(mockgateway.RouteGenerateOffer))
}

func TestCallsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c, mock := newClient(t, gateway.WithTracerProvider(tp))

	_, err := c.Health(context.Background())
	require.NoError(t, err)

	mock.Fail(mockgateway.RouteMetrics, mockgateway.Failure{Status: http.StatusBadGateway})
	_, err = c.Metrics(context.Background())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "gateway.health", spans[0].Name())
	require.Equal(t, "gateway.metrics", spans[1].Name())
	require.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestTimestampParsing(t *testing.T) {
	var ts gateway.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-05T10:11:12.123456"`), &ts))
	require.Equal(t, 2024, ts.Year())
	require.Equal(t, time.UTC, ts.Location())

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	require.True(t, ts.IsZero())

	require.Error(t, json.Unmarshal([]byte(`"not a date"`), &ts))
}

func TestStatusPercentages(t *testing.T) {
	want := []int{10, 30, 50, 70, 90, 100}
	for i, s := range gateway.Statuses {
		require.Equal(t, want[i], s.Percent(), s)
		require.True(t, s.Valid())
	}
	require.Equal(t, 0, gateway.Status("archived").Percent())
	require.Equal(t, "archived", gateway.Status("archived").Label())
}

func TestParseExportKind(t *testing.T) {
	k, err := gateway.ParseExportKind(" ZIP ")
	require.NoError(t, err)
	require.Equal(t, gateway.ExportZIP, k)
	require.Equal(t, "zip", gateway.ExportHTML.Extension())

	_, err = gateway.ParseExportKind("docx")
	require.Error(t, err)
}
