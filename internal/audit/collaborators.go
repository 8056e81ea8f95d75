package audit

import "context"

// BaselineAnalyzer runs the mandatory audit (performance, accessibility,
// best practices, SEO) and may report its own progress.
type BaselineAnalyzer interface {
	Scan(ctx context.Context, target string, progress ProgressSink) (*BaselineResult, error)
}

// StageAnalyzer is an optional analyzer: a rule engine or the keyboard probe.
type StageAnalyzer interface {
	Analyze(ctx context.Context, target string) (*StageResult, error)
}

// Scorer scores a rule engine result.
type Scorer interface {
	Score(ctx context.Context, result *StageResult) (*StageScore, error)
}

// Merger combines baseline categories with rule engine results. axe may be nil.
type Merger interface {
	Merge(ctx context.Context, baseline Categories, axe, pa11y *StageResult) (*Categories, error)
}

// Enricher produces AI insights and fixes.
type Enricher interface {
	GenerateInsights(ctx context.Context, scores map[string]float64, full *AggregateResult) (*Insights, error)
	GenerateFixes(ctx context.Context, issues []Issue) ([]Fix, error)
}

// Collaborators are the injected dependencies of an Orchestrator. Only
// Baseline is required; the others are needed when their flag is requested.
type Collaborators struct {
	Baseline BaselineAnalyzer
	Axe      StageAnalyzer
	Pa11y    StageAnalyzer
	Keyboard StageAnalyzer
	// AxeScorer scores the axe result. Optional even when axe runs.
	AxeScorer Scorer
	Merger    Merger
	Enricher  Enricher
}
