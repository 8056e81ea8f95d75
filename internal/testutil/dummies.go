// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Baseline ──────────────────────────────────────────────────────────

// DummyBaseline implements audit.BaselineAnalyzer. It reports 50% and 100%
// progress through the supplied sink before returning Result.
type DummyBaseline struct {
	Result *audit.BaselineResult
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	Calls int
}

func (d *DummyBaseline) Scan(ctx context.Context, target string, progress audit.ProgressSink) (*audit.BaselineResult, error) {
	d.mu.Lock()
	d.Calls++
	d.mu.Unlock()

	if err := wait(ctx, d.Delay); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(audit.ProgressEvent{Message: "Auditing " + target, Progress: 50})
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if progress != nil {
		progress(audit.ProgressEvent{Message: "Baseline finished", Progress: 100})
	}
	if d.Result != nil {
		return d.Result, nil
	}
	return SampleBaseline(target), nil
}

func (d *DummyBaseline) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

// SampleBaseline returns a baseline with one issue per category.
func SampleBaseline(target string) *audit.BaselineResult {
	cat := func(id, source string, score float64) *audit.CategoryResult {
		return &audit.CategoryResult{
			Score:  score,
			Issues: []audit.Issue{{ID: id, Title: id, Severity: "moderate", Source: source}},
			Summary: audit.Summary{
				Total:    1,
				BySource: map[string]int{source: 1},
			},
		}
	}
	return &audit.BaselineResult{
		Categories: audit.Categories{
			Performance:   cat("render-blocking", audit.SourceBaseline, 0.72),
			Accessibility: cat("color-contrast", audit.SourceBaseline, 0.88),
			BestPractices: cat("console-errors", audit.SourceBaseline, 0.9),
			SEO:           cat("meta-description", audit.SourceBaseline, 0.95),
		},
		ScanStats: audit.ScanStats{PagesScanned: 1, TotalPages: 1, ScannedURLs: []string{target}},
	}
}

// ─── Stage analyzers ───────────────────────────────────────────────────

// DummyStage implements audit.StageAnalyzer.
type DummyStage struct {
	Tool   string
	Issues []audit.Issue
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	Calls int
}

func (d *DummyStage) Analyze(ctx context.Context, target string) (*audit.StageResult, error) {
	d.mu.Lock()
	d.Calls++
	d.mu.Unlock()

	if err := wait(ctx, d.Delay); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return &audit.StageResult{Tool: d.Tool, Issues: append([]audit.Issue(nil), d.Issues...)}, nil
}

func (d *DummyStage) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

// DummyScorer implements audit.Scorer with a fixed score.
type DummyScorer struct {
	Value float64
	Err   error
}

func (d *DummyScorer) Score(_ context.Context, _ *audit.StageResult) (*audit.StageScore, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return &audit.StageScore{Score: d.Value}, nil
}

// DummyMerger implements audit.Merger. It appends pa11y issues to
// accessibility and records its inputs.
type DummyMerger struct {
	Err error

	mu        sync.Mutex
	Calls     int
	LastAxe   *audit.StageResult
	LastPa11y *audit.StageResult
}

func (d *DummyMerger) Merge(_ context.Context, baseline audit.Categories, axe, pa11y *audit.StageResult) (*audit.Categories, error) {
	d.mu.Lock()
	d.Calls++
	d.LastAxe, d.LastPa11y = axe, pa11y
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	merged := baseline
	acc := &audit.CategoryResult{Summary: audit.Summary{BySource: map[string]int{}}}
	if baseline.Accessibility != nil {
		acc.Score = baseline.Accessibility.Score
		acc.Issues = append(acc.Issues, baseline.Accessibility.Issues...)
	}
	for _, sr := range []*audit.StageResult{axe, pa11y} {
		if sr == nil {
			continue
		}
		acc.Issues = append(acc.Issues, sr.Issues...)
		acc.Summary.BySource[sr.Tool] = len(sr.Issues)
	}
	acc.Summary.Total = len(acc.Issues)
	merged.Accessibility = acc
	return &merged, nil
}

func (d *DummyMerger) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

// ─── Enricher ──────────────────────────────────────────────────────────

// DummyEnricher implements audit.Enricher.
type DummyEnricher struct {
	InsightsErr error
	FixesErr    error
	Delay       time.Duration

	mu            sync.Mutex
	InsightsCalls int
	FixesCalls    int
	LastScores    map[string]float64
}

func (d *DummyEnricher) GenerateInsights(ctx context.Context, scores map[string]float64, _ *audit.AggregateResult) (*audit.Insights, error) {
	d.mu.Lock()
	d.InsightsCalls++
	d.LastScores = scores
	d.mu.Unlock()

	if err := wait(ctx, d.Delay); err != nil {
		return nil, err
	}
	if d.InsightsErr != nil {
		return nil, d.InsightsErr
	}
	return &audit.Insights{Summary: "looks fine", Recommendations: []string{"compress images"}}, nil
}

func (d *DummyEnricher) GenerateFixes(ctx context.Context, issues []audit.Issue) ([]audit.Fix, error) {
	d.mu.Lock()
	d.FixesCalls++
	d.mu.Unlock()

	if err := wait(ctx, d.Delay); err != nil {
		return nil, err
	}
	if d.FixesErr != nil {
		return nil, d.FixesErr
	}
	fixes := make([]audit.Fix, 0, len(issues))
	for _, is := range issues {
		fixes = append(fixes, audit.Fix{IssueID: is.ID, Title: "Fix " + is.Title})
	}
	return fixes, nil
}

func (d *DummyEnricher) Counts() (insights, fixes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.InsightsCalls, d.FixesCalls
}

// ErrDummy is a generic failure for tests.
var ErrDummy = errors.New("dummy failure")

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
