package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/sitelens/internal/app"
	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/logging"
)

// maxBodyBytes bounds request bodies that are logged and decoded.
const maxBodyBytes = 1 << 20

// Server is the HTTP + WebSocket API surface for sitelens.
type Server struct {
	cfg      Config
	service  *app.Service
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server in front of svc.
func NewServer(cfg Config, svc *app.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: nil service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		service: svc,
		router:  chi.NewRouter(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			// Browser dashboards on other origins stream progress.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/analyze", s.optionsHandler("POST"))
	r.Options("/jobs/analyze", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET"))
	r.Options("/ws/analyze", s.optionsHandler("GET"))
	r.Options("/stats", s.optionsHandler("GET"))

	r.Post("/analyze", s.handleAnalyze)

	// Jobs over REST
	r.Post("/jobs/analyze", s.handleStartAnalyzeJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)

	// WebSocket for job progress
	r.Get("/ws/analyze", s.handleAnalyzeWS)

	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	if r.Body != nil && r.Method == http.MethodPost {
		if body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes)); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(body)})
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
	}
	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s,
		ReadTimeout: s.cfg.ReadTimeout,
		// Analyses and websocket streams outlive any fixed write timeout.
		WriteTimeout: 0,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// analysisStatus maps an analysis error to an HTTP status.
func analysisStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidRequest), errors.Is(err, audit.ErrEmptyTarget):
		return http.StatusBadRequest
	case errors.Is(err, audit.ErrNotConfigured):
		return http.StatusNotImplemented
	case audit.IsFatal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeRequest(r *http.Request) (*audit.AnalysisRequest, error) {
	var req audit.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// --- HTTP handlers ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.logger.Warn("decoding analyze body", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.service.Analyze(r.Context(), req)
	if err != nil {
		status := analysisStatus(err)
		s.logger.Warn("analysis failed",
			logging.Field{Key: "target", Value: req.Target},
			logging.Field{Key: "status", Value: status},
			logging.Field{Key: "error", Value: err})
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("analysis complete", logging.Field{Key: "target", Value: req.Target})
	writeJSON(w, http.StatusOK, res)
}

// Jobs (REST)

func (s *Server) handleStartAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.logger.Warn("decoding analyze job body", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := s.service.StartAnalyzeJob(r.Context(), req)
	if err != nil {
		s.logger.Warn("starting analyze job", logging.Field{Key: "error", Value: err})
		writeError(w, analysisStatus(err), err.Error())
		return
	}
	s.logger.Info("started analyze job", logging.Field{Key: "job_id", Value: job.ID})
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.service.GetJob(jobID)
	if err != nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.service.ListJobs()
	s.logger.Debug("listed jobs", logging.Field{Key: "count", Value: len(jobs)})
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"caches": s.service.CacheStats()}
	if s.cfg.Breakers != nil {
		out["breakers"] = s.cfg.Breakers()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WebSockets

// requestFromQuery reads ?target=&axe=&pa11y=&keyboard=&ai= into a request.
func requestFromQuery(r *http.Request) (*audit.AnalysisRequest, error) {
	q := r.URL.Query()
	req := &audit.AnalysisRequest{Target: q.Get("target")}
	for name, dst := range map[string]*bool{
		"axe":      &req.EnableAxe,
		"pa11y":    &req.EnablePa11y,
		"keyboard": &req.EnableKeyboard,
		"ai":       &req.EnableAI,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid value for " + name)
		}
		*dst = b
	}
	return req, nil
}

func (s *Server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err})
		return
	}
	defer conn.Close()

	job, err := s.service.StartAnalyzeJob(r.Context(), req)
	if err != nil {
		s.logger.Warn("starting analyze job", logging.Field{Key: "error", Value: err})
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("streaming analyze job", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(job)

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Client went away; the job keeps running and stays queryable.
			s.logger.Debug("websocket write failed", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "error", Value: err})
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
