package gateway

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

// Timestamp accepts the backend's naive ISO timestamps (no zone, treated as UTC)
// and any other layout dateparse understands.
type Timestamp struct {
	time.Time
}

const naiveLayout = "2006-01-02T15:04:05.000000"

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(naiveLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return errors.Wrapf(err, "parse timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

type Language string

const (
	LanguagePTBR Language = "pt-BR"
	LanguageENUS Language = "en-US"
)

type Health struct {
	Status    string            `json:"status"`
	Timestamp Timestamp         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Ready is true when the backend is healthy and every service reports connected or configured.
func (h Health) Ready() bool {
	if h.Status != "healthy" {
		return false
	}
	for _, state := range h.Services {
		if state != "connected" && state != "configured" {
			return false
		}
	}
	return true
}

// NotReady lists the services that are neither connected nor configured.
func (h Health) NotReady() []string {
	var out []string
	for name, state := range h.Services {
		if state != "connected" && state != "configured" {
			out = append(out, name)
		}
	}
	return out
}

type Brief struct {
	Niche           string  `json:"niche" yaml:"niche"`
	AvatarID        string  `json:"avatar_id" yaml:"avatar_id"`
	Promise         string  `json:"promise" yaml:"promise"`
	TargetPrice     float64 `json:"target_price" yaml:"target_price"`
	Currency        string  `json:"currency" yaml:"currency"`
	AdditionalNotes string  `json:"additional_notes,omitempty" yaml:"additional_notes,omitempty"`
}

type PainPoint struct {
	Description string `json:"description"`
	Frequency   int    `json:"frequency"`
	Source      string `json:"source"`
	Category    string `json:"category,omitempty"`
}

type PainResearch struct {
	PainPoints  []PainPoint `json:"pain_points"`
	Reviews     []string    `json:"reviews"`
	FAQs        []string    `json:"faqs"`
	ManualInput string      `json:"manual_input,omitempty"`
	CSVData     string      `json:"csv_data,omitempty"`
}

type GeneratedOffer struct {
	Headline           string   `json:"headline"`
	MainPromise        string   `json:"main_promise"`
	ProofElements      []string `json:"proof_elements"`
	Bonuses            []string `json:"bonuses"`
	Guarantees         []string `json:"guarantees"`
	PriceJustification string   `json:"price_justification"`
	UrgencyElements    []string `json:"urgency_elements"`
}

type VSLScript struct {
	Title             string   `json:"title"`
	Hook              string   `json:"hook"`
	ProblemAgitation  string   `json:"problem_agitation"`
	SolutionIntro     string   `json:"solution_intro"`
	Benefits          []string `json:"benefits"`
	SocialProof       string   `json:"social_proof"`
	OfferPresentation string   `json:"offer_presentation"`
	Guarantee         string   `json:"guarantee"`
	CallToAction      string   `json:"call_to_action"`
	EstimatedDuration int      `json:"estimated_duration"`
	Language          Language `json:"language,omitempty"`
}

type Email struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type EmailSequence struct {
	SequenceName string   `json:"sequence_name"`
	Emails       []Email  `json:"emails"`
	Language     Language `json:"language,omitempty"`
}

type SocialContent struct {
	Platform    string   `json:"platform"`
	ContentType string   `json:"content_type"`
	Content     string   `json:"content"`
	Hashtags    []string `json:"hashtags"`
	Language    Language `json:"language,omitempty"`
}

// LandingPage covers both the generate response (html/css/js) and the copy stored on
// the project (html_content/css_content/js_content).
type LandingPage struct {
	TemplateName      string    `json:"template_name"`
	HTML              string    `json:"html,omitempty"`
	CSS               string    `json:"css,omitempty"`
	JS                string    `json:"js,omitempty"`
	HTMLContent       string    `json:"html_content,omitempty"`
	CSSContent        string    `json:"css_content,omitempty"`
	JSContent         string    `json:"js_content,omitempty"`
	IsMobileOptimized bool      `json:"is_mobile_optimized,omitempty"`
	Language          Language  `json:"language,omitempty"`
	GeneratedAt       Timestamp `json:"generated_at"`
}

func (l LandingPage) Markup() string {
	if l.HTML != "" {
		return l.HTML
	}
	return l.HTMLContent
}

type Materials struct {
	VSLScript     *VSLScript      `json:"vsl_script,omitempty"`
	EmailSequence *EmailSequence  `json:"email_sequence,omitempty"`
	SocialContent []SocialContent `json:"social_content,omitempty"`
	LandingPage   *LandingPage    `json:"landing_page,omitempty"`
}

type Project struct {
	ID                    string           `json:"_id"`
	Name                  string           `json:"name"`
	UserID                string           `json:"user_id"`
	Language              Language         `json:"language"`
	Status                Status           `json:"status"`
	Brief                 *Brief           `json:"brief,omitempty"`
	PainResearch          *PainResearch    `json:"pain_research,omitempty"`
	GeneratedOffer        *GeneratedOffer  `json:"generated_offer,omitempty"`
	Materials             *Materials       `json:"materials,omitempty"`
	CreatedAt             Timestamp        `json:"created_at"`
	UpdatedAt             Timestamp        `json:"updated_at"`
	FirstAssetGeneratedAt *Timestamp       `json:"first_asset_generated_at,omitempty"`
	CompletionTime        *float64         `json:"completion_time,omitempty"`
	Exports               []map[string]any `json:"exports,omitempty"`

	// Raw is the body the project was decoded from.
	Raw json.RawMessage `json:"-"`
}

func (p *Project) UnmarshalJSON(b []byte) error {
	type plain Project
	var out plain
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*p = Project(out)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type CreateProject struct {
	Name     string   `json:"name"`
	UserID   string   `json:"user_id"`
	Language Language `json:"language,omitempty"`
}

// ProjectUpdate is a partial update; nil fields are left unchanged by the backend.
type ProjectUpdate struct {
	Name           *string         `json:"name,omitempty"`
	Status         *Status         `json:"status,omitempty"`
	Brief          *Brief          `json:"brief,omitempty"`
	PainResearch   *PainResearch   `json:"pain_research,omitempty"`
	GeneratedOffer *GeneratedOffer `json:"generated_offer,omitempty"`
	Materials      *Materials      `json:"materials,omitempty"`
}

type ListProjectsOptions struct {
	UserID string
	Limit  int
}

type Avatar struct {
	ID          string    `json:"_id,omitempty"`
	Name        string    `json:"name"`
	AgeRange    string    `json:"age_range"`
	Gender      string    `json:"gender,omitempty"`
	Interests   []string  `json:"interests"`
	PainPoints  []string  `json:"pain_points"`
	Goals       []string  `json:"goals"`
	IncomeLevel string    `json:"income_level,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

type MaterialKind string

const (
	MaterialVSL    MaterialKind = "vsl"
	MaterialEmails MaterialKind = "emails"
	MaterialSocial MaterialKind = "social"
)

var DefaultMaterialKinds = []MaterialKind{MaterialVSL, MaterialEmails, MaterialSocial}

const DefaultLandingTemplate = "mobile_modern"

type ExportKind string

const (
	ExportZIP  ExportKind = "zip"
	ExportPDF  ExportKind = "pdf"
	ExportHTML ExportKind = "html"
	ExportJSON ExportKind = "json"
)

func ParseExportKind(s string) (ExportKind, error) {
	switch k := ExportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ExportZIP, ExportPDF, ExportHTML, ExportJSON:
		return k, nil
	}
	return "", errors.Errorf("invalid export type %q (supported: zip, pdf, html, json)", s)
}

// Extension is the file suffix for the decoded payload. html exports arrive zipped.
func (k ExportKind) Extension() string {
	if k == ExportHTML {
		return "zip"
	}
	return string(k)
}

type ExportRequest struct {
	ProjectID     string     `json:"project_id"`
	ExportType    ExportKind `json:"export_type"`
	IncludeAssets bool       `json:"include_assets"`
}

type ExportResult struct {
	Success  bool   `json:"success"`
	FileURL  string `json:"file_url,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Message  string `json:"message"`
}

func (r ExportResult) Decode() ([]byte, error) {
	if r.FileData == "" {
		return nil, errors.New("export has no file data")
	}
	b, err := base64.StdEncoding.DecodeString(r.FileData)
	if err != nil {
		return nil, errors.Wrap(err, "decode export file data")
	}
	return b, nil
}

type PriceSuggestionQuery struct {
	Niche       string
	TargetPrice float64
	Currency    string
}

type PriceSuggestion struct {
	SuggestedPrice  float64            `json:"suggested_price"`
	PriceRange      map[string]float64 `json:"price_range"`
	MarketAnalysis  MarketAnalysis     `json:"market_analysis"`
	Currency        string             `json:"currency"`
	Recommendations []string           `json:"recommendations"`
	Stripe          map[string]any     `json:"stripe_integration,omitempty"`
}

type MarketAnalysis struct {
	Niche       string  `json:"niche"`
	Multiplier  float64 `json:"multiplier"`
	Confidence  string  `json:"confidence"`
	MarketTrend string  `json:"market_trend"`
}

type Metrics struct {
	TotalProjects       int     `json:"total_projects"`
	CompletedProjects   int     `json:"completed_projects"`
	AvgCompletionTime   float64 `json:"avg_completion_time"`
	AvgTimeToFirstAsset float64 `json:"avg_time_to_first_asset"`
	CompletionRate      float64 `json:"completion_rate"`
}
