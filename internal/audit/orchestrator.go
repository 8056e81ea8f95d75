package audit

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/raysh454/sitelens/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Progress milestones. Baseline progress is forwarded into
// [progressScanStart, progressScanEnd].
const (
	progressStart     = 0
	progressScanStart = 5
	progressScanEnd   = 55
	progressScanned   = 60
	progressMerge     = 65
	progressEnrich    = 75
	progressDone      = 100
)

// Orchestrator runs one analysis per Analyze call: it fans out to the
// baseline and the requested optional analyzers, shapes their results into
// an AggregateResult and optionally enriches it with AI output.
type Orchestrator struct {
	c      Collaborators
	logger logging.Logger
}

// New builds an Orchestrator around explicitly injected collaborators.
func New(c Collaborators, logger logging.Logger) (*Orchestrator, error) {
	if c.Baseline == nil {
		return nil, ErrNoBaseline
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		c:      c,
		logger: logger.With(logging.Field{Key: "component", Value: "audit"}),
	}, nil
}

// fanOutResult holds the settled outputs of the fan-out phase. Optional
// fields are nil when the analyzer was not requested.
type fanOutResult struct {
	baseline *BaselineResult
	axe      *StageResult
	pa11y    *StageResult
	keyboard *StageResult
}

// Analyze runs the full pipeline for req. A *StageError is returned when the
// baseline, an enabled optional analyzer, or a mandatory shaping step fails;
// no partial result is returned in that case. Enrichment failures only leave
// AIInsights or AIFixes nil.
//
// Without pa11y there is no merge: axe and keyboard issues are folded into
// accessibility as is, so they count toward the issues that gate fix
// generation.
//
// Analyze imposes no timeout of its own and does not cancel analyzers that
// are still running when a sibling fails.
func (o *Orchestrator) Analyze(ctx context.Context, req *AnalysisRequest) (*AggregateResult, error) {
	if req == nil || strings.TrimSpace(req.Target) == "" {
		return nil, ErrEmptyTarget
	}
	if err := o.validate(req); err != nil {
		return nil, err
	}

	tools := ToolsEnabled{
		Lighthouse: true,
		AxeCore:    req.EnableAxe,
		Pa11y:      req.EnablePa11y,
		Keyboard:   req.EnableKeyboard,
		AI:         req.EnableAI,
		Axe:        req.EnableAxe,
	}
	log := o.logger.With(logging.Field{Key: "target", Value: req.Target})
	em := newEmitter(req.Progress, log)
	started := time.Now()

	log.Info("analysis started",
		logging.Field{Key: "axe", Value: tools.AxeCore},
		logging.Field{Key: "pa11y", Value: tools.Pa11y},
		logging.Field{Key: "keyboard", Value: tools.Keyboard},
		logging.Field{Key: "ai", Value: tools.AI})
	em.emit("Starting analysis", progressStart)

	fo, err := o.fanOut(ctx, req, em)
	if err != nil {
		log.Error("analysis failed", logging.Field{Key: "error", Value: err})
		return nil, err
	}
	em.emit("Scans complete", progressScanned)

	cats, err := o.shape(ctx, req, fo, em)
	if err != nil {
		log.Error("analysis failed", logging.Field{Key: "error", Value: err})
		return nil, err
	}

	result := &AggregateResult{
		Categories:   cats,
		ScanStats:    fo.baseline.ScanStats,
		ToolsEnabled: tools,
	}
	if err := o.report(ctx, fo, result); err != nil {
		log.Error("analysis failed", logging.Field{Key: "error", Value: err})
		return nil, err
	}

	if req.EnableAI {
		em.emit("Generating AI insights", progressEnrich)
		enriched := o.enrich(ctx, result, log)
		result.AIInsights = enriched.insights
		result.AIFixes = enriched.fixes
	}

	result.Done = true
	result.Progress = progressDone
	em.emit("Analysis complete", progressDone)
	log.Info("analysis complete", logging.Field{Key: "duration", Value: time.Since(started)})
	return result, nil
}

// validate rejects requests for analyzers that were not injected before any
// scan starts.
func (o *Orchestrator) validate(req *AnalysisRequest) error {
	switch {
	case req.EnableAxe && o.c.Axe == nil:
		return &StageError{Stage: StageAxe, Err: ErrNotConfigured}
	case req.EnablePa11y && o.c.Pa11y == nil:
		return &StageError{Stage: StagePa11y, Err: ErrNotConfigured}
	case req.EnableKeyboard && o.c.Keyboard == nil:
		return &StageError{Stage: StageKeyboard, Err: ErrNotConfigured}
	case req.EnablePa11y && o.c.Merger == nil:
		return &StageError{Stage: StageMerge, Err: ErrNotConfigured}
	}
	return nil
}

// fanOut runs every requested analyzer concurrently and waits for all of them.
// A plain errgroup is used so that one failure does not cancel the context
// handed to the others.
func (o *Orchestrator) fanOut(ctx context.Context, req *AnalysisRequest, em *emitter) (*fanOutResult, error) {
	var res fanOutResult

	type stage struct {
		name string
		run  func(context.Context, string) (*StageResult, error)
		out  **StageResult
	}
	var stages []stage
	if req.EnableAxe {
		stages = append(stages, stage{StageAxe, o.RunAxe, &res.axe})
	}
	if req.EnablePa11y {
		stages = append(stages, stage{StagePa11y, o.RunPa11y, &res.pa11y})
	}
	if req.EnableKeyboard {
		stages = append(stages, stage{StageKeyboard, o.RunKeyboard, &res.keyboard})
	}

	total := int32(len(stages) + 1)
	var settled atomic.Int32
	complete := func(msg string) {
		n := settled.Add(1)
		em.emit(msg, progressScanStart+int((progressScanned-progressScanStart)*n/total))
	}

	var g errgroup.Group
	g.Go(func() error {
		b, err := o.RunBaseline(ctx, req.Target, em.band(progressScanStart, progressScanEnd))
		if err != nil {
			return &StageError{Stage: StageBaseline, Err: err}
		}
		if b == nil {
			return &StageError{Stage: StageBaseline, Err: errors.New("no result")}
		}
		res.baseline = b
		complete("Baseline audit complete")
		return nil
	})
	for _, s := range stages {
		g.Go(func() error {
			r, err := s.run(ctx, req.Target)
			if err != nil {
				return &StageError{Stage: s.name, Err: err}
			}
			if r == nil {
				r = &StageResult{Tool: s.name}
			}
			*s.out = r
			complete(s.name + " scan complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &res, nil
}

// shape builds the per-category results. The merger only runs when pa11y was
// requested; otherwise the baseline categories are kept and the remaining
// optional issues are folded into accessibility.
func (o *Orchestrator) shape(ctx context.Context, req *AnalysisRequest, fo *fanOutResult, em *emitter) (Categories, error) {
	cats := fo.baseline.Categories

	if req.EnablePa11y {
		em.emit("Merging results", progressMerge)
		merged, err := o.c.Merger.Merge(ctx, cats, fo.axe, fo.pa11y)
		if err != nil {
			return Categories{}, &StageError{Stage: StageMerge, Err: err}
		}
		if merged == nil {
			return Categories{}, &StageError{Stage: StageMerge, Err: errors.New("no result")}
		}
		cats = *merged
	} else if fo.axe != nil {
		cats.Accessibility = foldIssues(cats.Accessibility, SourceAxe, fo.axe.Issues)
	}

	if fo.keyboard != nil {
		cats.Accessibility = foldIssues(cats.Accessibility, SourceKeyboard, fo.keyboard.Issues)
	}
	return cats, nil
}

// report attaches the per-analyzer summaries.
func (o *Orchestrator) report(ctx context.Context, fo *fanOutResult, result *AggregateResult) error {
	if fo.axe != nil {
		rep := &StageReport{IssueCount: len(fo.axe.Issues), Issues: fo.axe.Issues}
		if o.c.AxeScorer != nil {
			s, err := o.c.AxeScorer.Score(ctx, fo.axe)
			if err != nil {
				return &StageError{Stage: StageAxeScore, Err: err}
			}
			if s != nil {
				score := s.Score
				rep.Score = &score
			}
		}
		result.Axe = rep
	}
	if fo.pa11y != nil {
		result.Pa11y = &StageReport{IssueCount: len(fo.pa11y.Issues), Issues: fo.pa11y.Issues}
	}
	if fo.keyboard != nil {
		result.Keyboard = &StageReport{IssueCount: len(fo.keyboard.Issues), Issues: fo.keyboard.Issues}
	}
	return nil
}

// foldIssues returns a copy of cat with issues appended and tallied under
// source. cat itself is left untouched.
func foldIssues(cat *CategoryResult, source string, issues []Issue) *CategoryResult {
	out := cat.clone()
	if out == nil {
		out = &CategoryResult{}
	}
	if out.Summary.BySource == nil {
		out.Summary.BySource = make(map[string]int)
	}
	for _, is := range issues {
		if is.Source == "" {
			is.Source = source
		}
		if is.Severity != "" {
			if out.Summary.BySeverity == nil {
				out.Summary.BySeverity = make(map[string]int)
			}
			out.Summary.BySeverity[is.Severity]++
		}
		out.Issues = append(out.Issues, is)
	}
	out.Summary.Total += len(issues)
	out.Summary.BySource[source] = len(issues)
	return out
}

// RunBaseline delegates to the baseline analyzer.
func (o *Orchestrator) RunBaseline(ctx context.Context, target string, progress ProgressSink) (*BaselineResult, error) {
	return o.c.Baseline.Scan(ctx, target, progress)
}

// RunAxe delegates to the axe rule engine.
func (o *Orchestrator) RunAxe(ctx context.Context, target string) (*StageResult, error) {
	return runStage(ctx, o.c.Axe, target)
}

// RunPa11y delegates to the pa11y rule engine.
func (o *Orchestrator) RunPa11y(ctx context.Context, target string) (*StageResult, error) {
	return runStage(ctx, o.c.Pa11y, target)
}

// RunKeyboard delegates to the keyboard probe.
func (o *Orchestrator) RunKeyboard(ctx context.Context, target string) (*StageResult, error) {
	return runStage(ctx, o.c.Keyboard, target)
}

func runStage(ctx context.Context, a StageAnalyzer, target string) (*StageResult, error) {
	if a == nil {
		return nil, ErrNotConfigured
	}
	return a.Analyze(ctx, target)
}
