package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/logging"
	"github.com/raysh454/sitelens/internal/memo"
	"github.com/raysh454/sitelens/internal/utils"
)

var (
	ErrInvalidRequest = errors.New("app: invalid analysis request")
	ErrJobNotFound    = errors.New("app: job not found")
)

// Analyzer runs one analysis. *audit.Orchestrator implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req *audit.AnalysisRequest) (*audit.AggregateResult, error)
}

// StatsSource reports named cache statistics.
type StatsSource interface {
	Stats() map[string]memo.Stats
}

// Service is the entry point used by the CLI and the API server: synchronous
// analyses plus background analysis jobs with event streams.
type Service struct {
	analyzer    Analyzer
	logger      logging.Logger
	targets     *memo.Cache[string, string]
	canonical   func(string) (string, error)
	stats       []StatsSource
	eventBuffer int
	retention   time.Duration
	now         func() time.Time

	jobsMu sync.Mutex
	jobs   map[string]*job
}

// NewService builds a Service around analyzer. stats are merged into
// CacheStats.
func NewService(cfg *Config, analyzer Analyzer, logger logging.Logger, stats ...StatsSource) (*Service, error) {
	if analyzer == nil {
		return nil, errors.New("app: nil analyzer")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	buf := cfg.Jobs.EventBuffer
	if buf <= 0 {
		buf = DefaultConfig().Jobs.EventBuffer
	}
	targets := memo.Memoize(utils.CanonicalTarget, memo.Options[string]{
		KeyFunc: func(s string) (string, error) { return s, nil },
		MaxSize: cfg.TargetCacheSize,
	})
	return &Service{
		analyzer:    analyzer,
		logger:      logger.With(logging.Field{Key: "component", Value: "service"}),
		targets:     targets,
		canonical:   targets.Func(),
		stats:       stats,
		eventBuffer: buf,
		retention:   cfg.Jobs.Retention,
		now:         time.Now,
		jobs:        make(map[string]*job),
	}, nil
}

// Analyze canonicalizes the target and runs the analysis synchronously.
func (s *Service) Analyze(ctx context.Context, req *audit.AnalysisRequest) (*audit.AggregateResult, error) {
	prepared, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, prepared)
}

func (s *Service) prepare(req *audit.AnalysisRequest) (*audit.AnalysisRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	target, err := s.canonical(req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	out := *req
	out.Target = target
	return &out, nil
}

// StartAnalyzeJob validates req and runs the analysis in the background.
// The job is detached from ctx cancellation and cannot be canceled.
func (s *Service) StartAnalyzeJob(ctx context.Context, req *audit.AnalysisRequest) (*Job, error) {
	prepared, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	// The job owns the progress sink.
	prepared.Progress = nil
	s.prune()

	j := &job{
		Job: Job{
			ID:        uuid.New().String(),
			Type:      "analyze",
			Target:    prepared.Target,
			Request:   *prepared,
			Status:    JobPending,
			StartedAt: s.now().UTC(),
		},
		events: make(chan JobEvent, s.eventBuffer),
	}
	s.jobsMu.Lock()
	s.jobs[j.ID] = j
	s.jobsMu.Unlock()

	s.emit(j, JobEvent{Type: JobEventStatus, Status: JobPending})
	started := j.snapshot()
	started.Events = j.events

	go s.run(context.WithoutCancel(ctx), j, prepared)

	s.logger.Info("started analysis job",
		logging.Field{Key: "job_id", Value: j.ID},
		logging.Field{Key: "target", Value: j.Target})
	return &started, nil
}

func (s *Service) run(ctx context.Context, j *job, req *audit.AnalysisRequest) {
	defer close(j.events)

	s.update(j, func(j *job) { j.Status = JobRunning })
	s.emit(j, JobEvent{Type: JobEventStatus, Status: JobRunning})

	req.Progress = func(ev audit.ProgressEvent) {
		s.update(j, func(j *job) { j.Progress = ev.Progress })
		s.emit(j, JobEvent{Type: JobEventProgress, Message: ev.Message, Progress: ev.Progress})
	}

	res, err := s.analyzer.Analyze(ctx, req)
	ended := s.now().UTC()
	if err != nil {
		s.update(j, func(j *job) {
			j.Status = JobFailed
			j.Error = err.Error()
			j.EndedAt = &ended
		})
		s.logger.Warn("analysis job failed",
			logging.Field{Key: "job_id", Value: j.ID},
			logging.Field{Key: "error", Value: err})
		s.emit(j, JobEvent{Type: JobEventStatus, Status: JobFailed, Error: err.Error()})
		return
	}

	s.update(j, func(j *job) {
		j.Status = JobDone
		j.Progress = res.Progress
		j.Result = res
		j.EndedAt = &ended
	})
	s.logger.Info("analysis job done", logging.Field{Key: "job_id", Value: j.ID})
	s.emit(j, JobEvent{Type: JobEventResult, Status: JobDone, Progress: res.Progress, Result: res})
}

func (s *Service) update(j *job, fn func(*job)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	fn(j)
}

// emit is a non-blocking send; events are dropped when the buffer is full.
func (s *Service) emit(j *job, ev JobEvent) {
	ev.JobID = j.ID
	select {
	case j.events <- ev:
	default:
		s.logger.Debug("dropped job event",
			logging.Field{Key: "job_id", Value: j.ID},
			logging.Field{Key: "type", Value: string(ev.Type)})
	}
}

// GetJob returns a snapshot of the job with the given ID.
func (s *Service) GetJob(id string) (*Job, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snap := j.snapshot()
	return &snap, nil
}

// ListJobs returns snapshots of every retained job, newest first.
func (s *Service) ListJobs() []Job {
	s.prune()
	s.jobsMu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.snapshot())
	}
	s.jobsMu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

// prune drops finished jobs older than the retention period.
func (s *Service) prune() {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().UTC().Add(-s.retention)
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for id, j := range s.jobs {
		if j.EndedAt != nil && j.EndedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// CacheStats reports the target cache and every registered StatsSource.
func (s *Service) CacheStats() map[string]memo.Stats {
	out := map[string]memo.Stats{"targets": s.targets.Stats()}
	for _, src := range s.stats {
		for name, st := range src.Stats() {
			out[name] = st
		}
	}
	return out
}

// NewFromConfig builds the remote components, the orchestrator and a Service.
// The returned Components must be closed by the caller.
func NewFromConfig(cfg *Config, logger logging.Logger) (*Service, *Components, error) {
	comps, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	orch, err := audit.New(comps.Collaborators, logger)
	if err != nil {
		_ = comps.Close()
		return nil, nil, err
	}
	var stats []StatsSource
	if comps.Enrichment != nil {
		stats = append(stats, comps.Enrichment)
	}
	svc, err := NewService(cfg, orch, logger, stats...)
	if err != nil {
		_ = comps.Close()
		return nil, nil, err
	}
	return svc, comps, nil
}
