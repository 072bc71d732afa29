// Package mockgateway is an in-memory stand-in for the OfferForge backend API.
// Generated content is deterministic and derived from the project's brief.
package mockgateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/offerforge/pkg/gateway"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type Route string

const (
	RouteHealth          Route = "health"
	RouteCreateProject   Route = "create_project"
	RouteListProjects    Route = "list_projects"
	RouteGetProject      Route = "get_project"
	RouteUpdateProject   Route = "update_project"
	RouteDeleteProject   Route = "delete_project"
	RouteCreateAvatar    Route = "create_avatar"
	RouteListAvatars     Route = "list_avatars"
	RouteGenerateOffer   Route = "generate_offer"
	RouteGenerateMats    Route = "generate_materials"
	RouteGenerateLanding Route = "generate_landing_page"
	RouteExport          Route = "export"
	RoutePrice           Route = "price_suggestion"
	RouteMetrics         Route = "metrics"
)

// Failure makes a route fail. A zero Status answers 200 with success=false, which only
// makes sense on routes whose responses carry a success flag.
type Failure struct {
	Status  int
	Message string
	// Times limits how many requests fail; 0 fails every request.
	Times int
}

type Options struct {
	// Delay is added before every response.
	Delay    time.Duration
	Services map[string]string
	Now      func() time.Time
}

type Server struct {
	router *mux.Router
	opts   Options

	mu       sync.Mutex
	projects map[string]*gateway.Project
	order    []string
	avatars  []gateway.Avatar
	failures map[Route]*Failure
	calls    map[Route]int
}

var _ http.Handler = (*Server)(nil)

func New(opts Options) *Server {
	if opts.Services == nil {
		opts.Services = map[string]string{
			"mongodb": "connected",
			"openai":  "configured",
			"stripe":  "configured",
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		opts:     opts,
		projects: map[string]*gateway.Project{},
		failures: map[Route]*Failure{},
		calls:    map[Route]int{},
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.route(RouteHealth, s.handleHealth)).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.route(RouteCreateProject, s.handleCreateProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects", s.route(RouteListProjects, s.handleListProjects)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.route(RouteGetProject, s.handleGetProject)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.route(RouteUpdateProject, s.handleUpdateProject)).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id}", s.route(RouteDeleteProject, s.handleDeleteProject)).Methods(http.MethodDelete)
	api.HandleFunc("/avatars", s.route(RouteCreateAvatar, s.handleCreateAvatar)).Methods(http.MethodPost)
	api.HandleFunc("/avatars", s.route(RouteListAvatars, s.handleListAvatars)).Methods(http.MethodGet)
	api.HandleFunc("/generate/offer/{id}", s.route(RouteGenerateOffer, s.handleGenerateOffer)).Methods(http.MethodPost)
	api.HandleFunc("/generate/materials/{id}", s.route(RouteGenerateMats, s.handleGenerateMaterials)).Methods(http.MethodPost)
	api.HandleFunc("/generate/landing-page/{id}", s.route(RouteGenerateLanding, s.handleGenerateLanding)).Methods(http.MethodPost)
	api.HandleFunc("/export/{id}", s.route(RouteExport, s.handleExport)).Methods(http.MethodPost)
	api.HandleFunc("/stripe/price-suggestion", s.route(RoutePrice, s.handlePrice)).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.route(RouteMetrics, s.handleMetrics)).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Fail(route Route, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &f
}

func (s *Server) SetServices(services map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Services = services
}

// Calls reports how many requests reached the route, failed ones included.
func (s *Server) Calls(route Route) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Project returns a copy of a stored project.
func (s *Server) Project(id string) (gateway.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return gateway.Project{}, false
	}
	return *p, true
}

func (s *Server) route(name Route, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.opts.Delay):
			}
		}

		s.mu.Lock()
		s.calls[name]++
		var injected *Failure
		if f, ok := s.failures[name]; ok {
			injected = &Failure{Status: f.Status, Message: f.Message}
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					delete(s.failures, name)
				}
			}
		}
		s.mu.Unlock()

		log.Debug().Str("route", string(name)).Str("method", r.Method).Str("path", r.URL.Path).Bool("injected", injected != nil).Msg("mock backend request")

		if injected != nil {
			msg := injected.Message
			if msg == "" {
				msg = "injected failure"
			}
			if injected.Status == 0 {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msg})
				return
			}
			writeDetail(w, injected.Status, msg)
			return
		}
		h(w, r)
	}
}

func (s *Server) now() gateway.Timestamp {
	return gateway.Timestamp{Time: s.opts.Now().UTC()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	services := make(map[string]string, len(s.opts.Services))
	for k, v := range s.opts.Services {
		services[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, gateway.Health{Status: "healthy", Timestamp: s.now(), Services: services})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in gateway.CreateProject
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.UserID) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and user_id are required")
		return
	}
	if in.Language == "" {
		in.Language = gateway.LanguagePTBR
	}
	now := s.now()
	p := &gateway.Project{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		Name:      in.Name,
		UserID:    in.UserID,
		Language:  in.Language,
		Status:    gateway.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.projects[p.ID] = p
	s.order = append(s.order, p.ID)
	out := *p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit := queryInt(r, "limit", 50)

	s.mu.Lock()
	out := make([]gateway.Project, 0, len(s.order))
	for _, id := range s.order {
		p := s.projects[id]
		if userID != "" && p.UserID != userID {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, *p)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in gateway.ProjectUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	p, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Brief != nil {
		p.Brief = in.Brief
	}
	if in.PainResearch != nil {
		p.PainResearch = in.PainResearch
	}
	if in.GeneratedOffer != nil {
		p.GeneratedOffer = in.GeneratedOffer
	}
	if in.Materials != nil {
		p.Materials = in.Materials
	}
	p.UpdatedAt = s.now()
	out := *p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, ok := s.projects[id]
	if ok {
		delete(s.projects, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully"})
}

func (s *Server) handleCreateAvatar(w http.ResponseWriter, r *http.Request) {
	var in gateway.Avatar
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.AgeRange) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and age_range are required")
		return
	}
	in.ID = uuid.NewString()
	in.CreatedAt = s.now()
	s.mu.Lock()
	s.avatars = append(s.avatars, in)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleListAvatars(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	s.mu.Lock()
	out := append([]gateway.Avatar{}, s.avatars...)
	s.mu.Unlock()
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerateOffer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	p, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if p.Brief == nil || p.PainResearch == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Project must have brief and pain research completed")
		return
	}
	offer := buildOffer(*p.Brief, *p.PainResearch)
	p.GeneratedOffer = &offer
	p.Status = gateway.StatusOfferGenerated
	now := s.now()
	p.UpdatedAt = now
	if p.FirstAssetGeneratedAt == nil {
		p.FirstAssetGeneratedAt = &now
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "offer": offer})
}

func (s *Server) handleGenerateMaterials(w http.ResponseWriter, r *http.Request) {
	var kinds []gateway.MaterialKind
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &kinds) {
			return
		}
	}
	if len(kinds) == 0 {
		kinds = gateway.DefaultMaterialKinds
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	p, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if p.Brief == nil || p.GeneratedOffer == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Project must have brief and generated offer")
		return
	}
	m := buildMaterials(*p.Brief, *p.GeneratedOffer, p.Language, kinds)
	stored := m
	if p.Materials != nil {
		stored.LandingPage = p.Materials.LandingPage
	}
	p.Materials = &stored
	p.Status = gateway.StatusMaterialsGenerated
	p.UpdatedAt = s.now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "materials": m})
}

func (s *Server) handleGenerateLanding(w http.ResponseWriter, r *http.Request) {
	template := r.URL.Query().Get("template_name")
	if template == "" {
		template = gateway.DefaultLandingTemplate
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	p, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	if p.Brief == nil || p.GeneratedOffer == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Project must have brief and generated offer")
		return
	}
	page := buildLandingPage(*p.Brief, *p.GeneratedOffer, template, s.now())
	if p.Materials == nil {
		p.Materials = &gateway.Materials{}
	}
	stored := page
	stored.HTMLContent, stored.CSSContent, stored.JSContent = page.HTML, page.CSS, page.JS
	stored.HTML, stored.CSS, stored.JS = "", "", ""
	stored.IsMobileOptimized = true
	stored.Language = p.Language
	p.Materials.LandingPage = &stored
	p.Status = gateway.StatusMaterialsGenerated
	p.UpdatedAt = s.now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "landing_page": page})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var in gateway.ExportRequest
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	p, ok := s.projects[id]
	var snapshot gateway.Project
	if ok {
		snapshot = *p
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}

	var (
		data []byte
		msg  string
		err  error
	)
	switch gateway.ExportKind(strings.ToLower(string(in.ExportType))) {
	case gateway.ExportZIP:
		data, err = exportZIP(snapshot)
		msg = "Complete project package exported successfully"
	case gateway.ExportPDF:
		data = exportPDF(snapshot)
		msg = "Project exported as PDF successfully"
	case gateway.ExportHTML:
		if snapshot.Materials == nil || snapshot.Materials.LandingPage == nil {
			writeDetail(w, http.StatusBadRequest, "Landing page not generated yet")
			return
		}
		data, err = exportHTML(snapshot)
		msg = "Landing page exported as HTML package successfully"
	case gateway.ExportJSON:
		data, err = json.MarshalIndent(snapshot, "", "  ")
		msg = "Project materials exported as JSON successfully"
	default:
		writeDetail(w, http.StatusBadRequest, "Invalid export type. Supported: zip, pdf, html, json")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to export project: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, gateway.ExportResult{
		Success:  true,
		FileData: encodeBase64(data),
		Message:  msg,
	})
}

var nicheMultipliers = map[string]float64{
	"digital marketing":    1.2,
	"fitness":              0.9,
	"business":             1.4,
	"health":               1.1,
	"education":            0.8,
	"technology":           1.3,
	"finance":              1.5,
	"lifestyle":            0.95,
	"relationships":        1.0,
	"personal development": 1.1,
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	niche := q.Get("niche")
	target, err := strconv.ParseFloat(q.Get("target_price"), 64)
	if niche == "" || err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "niche and numeric target_price are required")
		return
	}
	currency := q.Get("currency")
	if currency == "" {
		currency = "BRL"
	}
	multiplier, known := nicheMultipliers[strings.ToLower(niche)]
	if !known {
		multiplier = 1.0
	}
	suggested := round2(target * multiplier)
	confidence, trend := "medium", "stable"
	if multiplier != 1.0 {
		confidence = "high"
	}
	if multiplier > 1.0 {
		trend = "growing"
	}
	writeJSON(w, http.StatusOK, gateway.PriceSuggestion{
		SuggestedPrice: suggested,
		PriceRange: map[string]float64{
			"budget":   round2(suggested * 0.5),
			"standard": round2(suggested * 0.9),
			"premium":  round2(suggested * 1.3),
			"luxury":   round2(suggested * 2.0),
		},
		MarketAnalysis: gateway.MarketAnalysis{
			Niche:       niche,
			Multiplier:  multiplier,
			Confidence:  confidence,
			MarketTrend: trend,
		},
		Currency: currency,
		Recommendations: []string{
			"Preço otimizado para conversão: " + currency + " " + formatPrice(suggested*0.9),
			"Preço premium para alta margem: " + currency + " " + formatPrice(suggested*1.3),
			"Teste A/B sugerido: " + currency + " " + formatPrice(target) + " vs " + currency + " " + formatPrice(suggested),
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := len(s.projects)
	var completed, materials int
	var firstAsset []float64
	for _, p := range s.projects {
		switch p.Status {
		case gateway.StatusCompleted:
			completed++
		case gateway.StatusMaterialsGenerated:
			materials++
		}
		if p.FirstAssetGeneratedAt != nil {
			firstAsset = append(firstAsset, p.FirstAssetGeneratedAt.Sub(p.CreatedAt.Time).Minutes())
		}
	}
	s.mu.Unlock()

	var avgFirst float64
	if len(firstAsset) > 0 {
		for _, v := range firstAsset {
			avgFirst += v
		}
		avgFirst /= float64(len(firstAsset))
	}
	var rate float64
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
		if m := float64(materials) / float64(total) * 100; m > rate {
			rate = m
		}
	}
	writeJSON(w, http.StatusOK, gateway.Metrics{
		TotalProjects:       total,
		CompletedProjects:   completed + materials,
		AvgCompletionTime:   round2(avgFirst * 1.5),
		AvgTimeToFirstAsset: round2(avgFirst),
		CompletionRate:      round2(rate),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (gateway.Project, bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return gateway.Project{}, false
	}
	return *p, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("mock backend: write response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
