// Package demoserver is a self-contained stand-in for the scanner and
// enrichment services. It answers every remote endpoint with canned results
// from a switchable Profile.
package demoserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/scanners"
)

// DemoServer serves canned scanner and enrichment responses.
type DemoServer struct {
	cfg      Config
	profiles map[int]Profile
	router   chi.Router

	mu      sync.RWMutex
	version int
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	s := &DemoServer{
		cfg:      cfg,
		profiles: Profiles(),
		router:   chi.NewRouter(),
		version:  cfg.InitialVersion,
	}
	if _, ok := s.profiles[s.version]; !ok {
		s.version = 1
	}
	s.routes()
	return s
}

func (s *DemoServer) routes() {
	r := s.router

	r.Post(scanners.EndpointBaseline, s.scan(s.baseline))
	r.Post(scanners.EndpointAxe, s.scan(s.stage(audit.SourceAxe)))
	r.Post(scanners.EndpointPa11y, s.scan(s.stage(audit.SourcePa11y)))
	r.Post(scanners.EndpointKeyboard, s.scan(s.stage(audit.SourceKeyboard)))
	r.Post(scanners.EndpointAxeScore, s.handleAxeScore)
	r.Post(scanners.EndpointMerge, s.handleMerge)
	r.Post(scanners.EndpointInsights, s.handleInsights)
	r.Post(scanners.EndpointFixes, s.handleFixes)

	// Control endpoints for profile switching
	r.Get("/demo/versions", s.getVersionsHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
}

// ServeHTTP implements http.Handler.
func (s *DemoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on cfg.Port until the server fails.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo scanner starting on http://localhost%s\n", addr)
	fmt.Printf("Profiles at http://localhost%s/demo/versions\n", addr)
	return http.ListenAndServe(addr, s)
}

// Version returns the active profile version.
func (s *DemoServer) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetVersion switches the active profile. Unknown versions are rejected.
func (s *DemoServer) SetVersion(v int) error {
	if _, ok := s.profiles[v]; !ok {
		return fmt.Errorf("demoserver: unknown version %d", v)
	}
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
	return nil
}

func (s *DemoServer) profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[s.version]
}

type targetRequest struct {
	URL string `json:"url"`
}

// scan wraps a scan endpoint with request decoding, latency and outage
// simulation.
func (s *DemoServer) scan(fn func(p Profile, target string) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req targetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, "expected {\"url\": ...}")
			return
		}
		if s.cfg.Latency > 0 {
			select {
			case <-time.After(s.cfg.Latency):
			case <-r.Context().Done():
				return
			}
		}
		p := s.profile()
		if p.Unavailable {
			writeError(w, http.StatusServiceUnavailable, "scanner unavailable")
			return
		}
		writeJSON(w, fn(p, req.URL))
	}
}

func (s *DemoServer) baseline(p Profile, target string) any {
	cat := func(name string) *audit.CategoryResult {
		return category(p.Scores[name], tag(p.Baseline[name], audit.SourceBaseline), audit.SourceBaseline)
	}
	return audit.BaselineResult{
		Categories: audit.Categories{
			Performance:   cat(audit.CategoryPerformance),
			Accessibility: cat(audit.CategoryAccessibility),
			BestPractices: cat(audit.CategoryBestPractices),
			SEO:           cat(audit.CategorySEO),
		},
		ScanStats: audit.ScanStats{PagesScanned: 1, TotalPages: 1, ScannedURLs: []string{target}},
	}
}

func (s *DemoServer) stage(tool string) func(Profile, string) any {
	return func(p Profile, _ string) any {
		var issues []audit.Issue
		switch tool {
		case audit.SourceAxe:
			issues = p.Axe
		case audit.SourcePa11y:
			issues = p.Pa11y
		case audit.SourceKeyboard:
			issues = p.Keyboard
		}
		return audit.StageResult{Tool: tool, Issues: tag(issues, tool)}
	}
}

func (s *DemoServer) handleAxeScore(w http.ResponseWriter, r *http.Request) {
	var res audit.StageResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, audit.StageScore{Score: penalize(1, res.Issues)})
}

type mergeRequest struct {
	Baseline audit.Categories   `json:"baseline"`
	Axe      *audit.StageResult `json:"axe"`
	Pa11y    *audit.StageResult `json:"pa11y"`
}

// handleMerge folds rule engine issues into accessibility, dropping issues
// that target a selector already reported, and lowers the score per added
// issue.
func (s *DemoServer) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	out := req.Baseline
	acc := &audit.CategoryResult{Summary: audit.Summary{BySource: map[string]int{}}}
	if b := req.Baseline.Accessibility; b != nil {
		acc.Score = b.Score
		acc.Issues = append(acc.Issues, b.Issues...)
		for k, v := range b.Summary.BySource {
			acc.Summary.BySource[k] = v
		}
	}
	seen := map[string]bool{}
	for _, is := range acc.Issues {
		if is.Selector != "" {
			seen[is.Selector] = true
		}
	}

	var added []audit.Issue
	for _, sr := range []*audit.StageResult{req.Axe, req.Pa11y} {
		if sr == nil {
			continue
		}
		n := 0
		for _, is := range tag(sr.Issues, sr.Tool) {
			if is.Selector != "" && seen[is.Selector] {
				continue
			}
			if is.Selector != "" {
				seen[is.Selector] = true
			}
			added = append(added, is)
			n++
		}
		acc.Summary.BySource[sr.Tool] = n
	}
	acc.Issues = append(acc.Issues, added...)
	acc.Score = penalize(acc.Score, added)
	acc.Summary.Total = len(acc.Issues)
	acc.Summary.BySeverity = severities(acc.Issues)
	out.Accessibility = acc
	writeJSON(w, out)
}

type insightsRequest struct {
	Scores map[string]float64 `json:"scores"`
}

func (s *DemoServer) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	names := make([]string, 0, len(req.Scores))
	for name := range req.Scores {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool { return req.Scores[names[a]] < req.Scores[names[b]] })

	ins := audit.Insights{Summary: "No scores were reported."}
	if len(names) > 0 {
		worst := names[0]
		ins.Summary = fmt.Sprintf("Weakest category is %s at %.0f%%.", worst, req.Scores[worst]*100)
		for _, name := range names {
			if req.Scores[name] < 0.9 {
				ins.Recommendations = append(ins.Recommendations, "Prioritize "+name+" improvements")
			}
		}
	}
	writeJSON(w, ins)
}

type fixesRequest struct {
	Issues []audit.Issue `json:"issues"`
}

func (s *DemoServer) handleFixes(w http.ResponseWriter, r *http.Request) {
	var req fixesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	fixes := make([]audit.Fix, 0, len(req.Issues))
	for _, is := range req.Issues {
		fixes = append(fixes, audit.Fix{
			IssueID:     is.ID,
			Title:       "Fix: " + is.Title,
			Explanation: fmt.Sprintf("Reported by %s for %s.", is.Source, orDefault(is.Selector, "the page")),
		})
	}
	writeJSON(w, map[string]any{"fixes": fixes})
}

// getVersionsHandler lists the profiles and the active one.
func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	type info struct {
		Version     int    `json:"version"`
		Description string `json:"description"`
		Active      bool   `json:"active"`
	}
	current := s.Version()
	out := make([]info, 0, len(s.profiles))
	for v, p := range s.profiles {
		out = append(out, info{Version: v, Description: p.Description, Active: v == current})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Version < out[b].Version })
	writeJSON(w, out)
}

// setVersionHandler switches the active profile (?version=N or form value).
func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	if err := s.SetVersion(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"success": true, "version": v})
}

// --- helpers ---

func category(score float64, issues []audit.Issue, source string) *audit.CategoryResult {
	out := &audit.CategoryResult{Score: score, Issues: issues}
	if out.Issues == nil {
		out.Issues = []audit.Issue{}
	}
	out.Summary = audit.Summary{
		Total:      len(issues),
		BySource:   map[string]int{source: len(issues)},
		BySeverity: severities(issues),
	}
	return out
}

func tag(issues []audit.Issue, source string) []audit.Issue {
	out := make([]audit.Issue, len(issues))
	for i, is := range issues {
		if is.Source == "" {
			is.Source = source
		}
		out[i] = is
	}
	return out
}

func severities(issues []audit.Issue) map[string]int {
	out := map[string]int{}
	for _, is := range issues {
		if is.Severity != "" {
			out[is.Severity]++
		}
	}
	return out
}

// penalize lowers score by a per-severity weight for each issue.
func penalize(score float64, issues []audit.Issue) float64 {
	weights := map[string]float64{"critical": 0.1, "serious": 0.05, "moderate": 0.02, "minor": 0.01}
	for _, is := range issues {
		w, ok := weights[is.Severity]
		if !ok {
			w = 0.01
		}
		score -= w
	}
	if score < 0 {
		return 0
	}
	return score
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
