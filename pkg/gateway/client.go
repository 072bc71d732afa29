package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-go-golems/offerforge/pkg/gateway"

// Client talks to the OfferForge backend. All paths are relative to <base>/api.
type Client struct {
	base   *url.URL
	http   *http.Client
	tracer trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request; zero leaves the http client untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("backend url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("backend url %q must be http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/api")

	c := &Client{
		base:   u,
		http:   &http.Client{},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, call{op: "health", method: http.MethodGet, path: "/health", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, in CreateProject) (*Project, error) {
	var out Project
	if err := c.do(ctx, call{op: "create_project", method: http.MethodPost, path: "/projects", body: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context, opts ListProjectsOptions) ([]Project, error) {
	q := url.Values{}
	if opts.UserID != "" {
		q.Set("user_id", opts.UserID)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var out []Project
	if err := c.do(ctx, call{op: "list_projects", method: http.MethodGet, path: "/projects", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := projectPath(id, "/projects/")
	if err != nil {
		return nil, err
	}
	var out Project
	if err := c.do(ctx, call{op: "get_project", method: http.MethodGet, path: p, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*Project, error) {
	p, err := projectPath(id, "/projects/")
	if err != nil {
		return nil, err
	}
	var out Project
	if err := c.do(ctx, call{op: "update_project", method: http.MethodPut, path: p, body: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	p, err := projectPath(id, "/projects/")
	if err != nil {
		return err
	}
	return c.do(ctx, call{op: "delete_project", method: http.MethodDelete, path: p})
}

func (c *Client) CreateAvatar(ctx context.Context, in Avatar) (*Avatar, error) {
	in.ID = ""
	var out Avatar
	if err := c.do(ctx, call{op: "create_avatar", method: http.MethodPost, path: "/avatars", body: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAvatars(ctx context.Context, limit int) ([]Avatar, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []Avatar
	if err := c.do(ctx, call{op: "list_avatars", method: http.MethodGet, path: "/avatars", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateOffer(ctx context.Context, id string) (*GeneratedOffer, error) {
	p, err := projectPath(id, "/generate/offer/")
	if err != nil {
		return nil, err
	}
	var out struct {
		Offer *GeneratedOffer `json:"offer"`
	}
	if err := c.do(ctx, call{op: "generate_offer", method: http.MethodPost, path: p, out: &out, envelope: true}); err != nil {
		return nil, err
	}
	if out.Offer == nil {
		return nil, &Error{Kind: KindDecode, Op: "generate_offer", Message: "response has no offer"}
	}
	return out.Offer, nil
}

// GenerateMaterials sends the kinds as a bare JSON list; an empty list lets the backend pick its defaults.
func (c *Client) GenerateMaterials(ctx context.Context, id string, kinds []MaterialKind) (*Materials, error) {
	p, err := projectPath(id, "/generate/materials/")
	if err != nil {
		return nil, err
	}
	if kinds == nil {
		kinds = []MaterialKind{}
	}
	var out struct {
		Materials *Materials `json:"materials"`
	}
	if err := c.do(ctx, call{op: "generate_materials", method: http.MethodPost, path: p, body: kinds, out: &out, envelope: true}); err != nil {
		return nil, err
	}
	if out.Materials == nil {
		return nil, &Error{Kind: KindDecode, Op: "generate_materials", Message: "response has no materials"}
	}
	return out.Materials, nil
}

func (c *Client) GenerateLandingPage(ctx context.Context, id string, template string) (*LandingPage, error) {
	p, err := projectPath(id, "/generate/landing-page/")
	if err != nil {
		return nil, err
	}
	if template == "" {
		template = DefaultLandingTemplate
	}
	q := url.Values{"template_name": []string{template}}
	var out struct {
		LandingPage *LandingPage `json:"landing_page"`
	}
	if err := c.do(ctx, call{op: "generate_landing_page", method: http.MethodPost, path: p, query: q, out: &out, envelope: true}); err != nil {
		return nil, err
	}
	if out.LandingPage == nil {
		return nil, &Error{Kind: KindDecode, Op: "generate_landing_page", Message: "response has no landing_page"}
	}
	if out.LandingPage.TemplateName == "" {
		out.LandingPage.TemplateName = template
	}
	return out.LandingPage, nil
}

func (c *Client) Export(ctx context.Context, id string, kind ExportKind, includeAssets bool) (*ExportResult, error) {
	p, err := projectPath(id, "/export/")
	if err != nil {
		return nil, err
	}
	in := ExportRequest{ProjectID: id, ExportType: kind, IncludeAssets: includeAssets}
	var out ExportResult
	if err := c.do(ctx, call{op: "export", method: http.MethodPost, path: p, body: in, out: &out, envelope: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PriceSuggestion(ctx context.Context, in PriceSuggestionQuery) (*PriceSuggestion, error) {
	if strings.TrimSpace(in.Niche) == "" {
		return nil, errors.New("niche is required")
	}
	q := url.Values{}
	q.Set("niche", in.Niche)
	q.Set("target_price", strconv.FormatFloat(in.TargetPrice, 'f', -1, 64))
	if in.Currency != "" {
		q.Set("currency", in.Currency)
	}
	var out PriceSuggestion
	if err := c.do(ctx, call{op: "price_suggestion", method: http.MethodGet, path: "/stripe/price-suggestion", query: q, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Metrics(ctx context.Context) (*Metrics, error) {
	var out Metrics
	if err := c.do(ctx, call{op: "metrics", method: http.MethodGet, path: "/metrics", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func projectPath(id, prefix string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("project id is required")
	}
	return prefix + url.PathEscape(id), nil
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any

	// envelope bodies carry a success flag that must be true.
	envelope bool
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("url.path", "/api"+cl.path),
		))
	started := time.Now()
	status := 0
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		log.Debug().
			Str("op", cl.op).
			Str("method", cl.method).
			Str("path", cl.path).
			Int("status", status).
			Dur("elapsed", time.Since(started)).
			Err(err).
			Msg("gateway call")
	}()

	u := *c.base
	u.Path = u.Path + "/api" + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", cl.op)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: cl.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: cl.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: cl.op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := detailMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Kind: KindStatus, Op: cl.op, StatusCode: resp.StatusCode, Message: msg}
	}

	if cl.envelope {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return &Error{Kind: KindDecode, Op: cl.op, StatusCode: resp.StatusCode, Err: err}
		}
		if env.Success == nil || !*env.Success {
			msg := env.Message
			if msg == "" {
				msg = detailMessage(raw)
			}
			if msg == "" {
				msg = "backend reported failure"
			}
			return &Error{Kind: KindApplication, Op: cl.op, StatusCode: resp.StatusCode, Message: msg}
		}
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return &Error{Kind: KindDecode, Op: cl.op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// detailMessage extracts the backend's "detail" field, which is either a string or a
// list of validation errors with "msg" entries.
func detailMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(env.Detail)
}
