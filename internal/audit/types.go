package audit

import "encoding/json"

// Category names used in score snapshots and result JSON.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategoryBestPractices = "bestPractices"
	CategorySEO           = "seo"
)

// Issue sources counted in CategoryResult.Summary.BySource.
const (
	SourceBaseline = "lighthouse"
	SourceAxe      = "axe"
	SourcePa11y    = "pa11y"
	SourceKeyboard = "keyboard"
)

// AnalysisRequest selects a target and the optional analyzers to run.
// The baseline analyzer always runs.
type AnalysisRequest struct {
	Target         string `json:"url"`
	EnableAxe      bool   `json:"includeAxe"`
	EnablePa11y    bool   `json:"includePa11y"`
	EnableKeyboard bool   `json:"includeKeyboard"`
	EnableAI       bool   `json:"includeAI"`

	// Progress receives progress events. May be nil.
	Progress ProgressSink `json:"-"`
}

type Issue struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Source      string `json:"source,omitempty"`
}

type Summary struct {
	Total      int            `json:"total"`
	BySource   map[string]int `json:"bySource,omitempty"`
	BySeverity map[string]int `json:"bySeverity,omitempty"`
}

// CategoryResult is one scored audit category.
type CategoryResult struct {
	Score   float64 `json:"score"`
	Issues  []Issue `json:"issues"`
	Summary Summary `json:"summary"`
}

// Categories groups the per-category results. A nil category was not
// produced by the baseline.
type Categories struct {
	Performance   *CategoryResult `json:"performance,omitempty"`
	Accessibility *CategoryResult `json:"accessibility,omitempty"`
	BestPractices *CategoryResult `json:"bestPractices,omitempty"`
	SEO           *CategoryResult `json:"seo,omitempty"`
}

type ScanStats struct {
	PagesScanned int      `json:"pagesScanned"`
	TotalPages   int      `json:"totalPages"`
	ScannedURLs  []string `json:"scannedUrls"`
}

// BaselineResult is what the baseline analyzer returns.
type BaselineResult struct {
	Categories
	ScanStats ScanStats `json:"scanStats"`
}

// StageResult is the raw output of an optional analyzer. Only Issues is
// interpreted here; Raw is carried for collaborators that need it.
type StageResult struct {
	Tool   string          `json:"tool"`
	Issues []Issue         `json:"issues"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

type StageScore struct {
	Score float64 `json:"score"`
}

// StageReport summarizes one optional analyzer in the aggregate.
type StageReport struct {
	Score      *float64 `json:"score,omitempty"`
	IssueCount int      `json:"issueCount"`
	Issues     []Issue  `json:"issues,omitempty"`
}

type Insights struct {
	Summary         string          `json:"summary"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

type Fix struct {
	IssueID     string `json:"issueId"`
	Title       string `json:"title"`
	Explanation string `json:"explanation,omitempty"`
	Patch       string `json:"patch,omitempty"`
}

// ToolsEnabled records the resolved capability flags. Axe duplicates AxeCore
// for older clients.
type ToolsEnabled struct {
	Lighthouse bool `json:"lighthouse"`
	AxeCore    bool `json:"axeCore"`
	Pa11y      bool `json:"pa11y"`
	Keyboard   bool `json:"keyboard"`
	AI         bool `json:"ai"`
	Axe        bool `json:"axe"`
}

// AggregateResult is the single result of one analysis.
type AggregateResult struct {
	Done     bool `json:"done"`
	Progress int  `json:"progress"`
	Categories

	Axe      *StageReport `json:"axe,omitempty"`
	Pa11y    *StageReport `json:"pa11y,omitempty"`
	Keyboard *StageReport `json:"keyboard,omitempty"`

	AIInsights *Insights `json:"aiInsights"`
	AIFixes    []Fix     `json:"aiFixes"`

	ScanStats    ScanStats    `json:"scanStats"`
	ToolsEnabled ToolsEnabled `json:"toolsEnabled"`
}

// Scores returns category name to score for every present category.
func (c Categories) Scores() map[string]float64 {
	out := make(map[string]float64, 4)
	for name, cat := range c.named() {
		if cat != nil {
			out[name] = cat.Score
		}
	}
	return out
}

// AllIssues returns the issues of every present category in a fixed order.
func (c Categories) AllIssues() []Issue {
	var out []Issue
	for _, cat := range []*CategoryResult{c.Performance, c.Accessibility, c.BestPractices, c.SEO} {
		if cat != nil {
			out = append(out, cat.Issues...)
		}
	}
	return out
}

func (c Categories) named() map[string]*CategoryResult {
	return map[string]*CategoryResult{
		CategoryPerformance:   c.Performance,
		CategoryAccessibility: c.Accessibility,
		CategoryBestPractices: c.BestPractices,
		CategorySEO:           c.SEO,
	}
}

func (r *CategoryResult) clone() *CategoryResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Issues = append([]Issue(nil), r.Issues...)
	out.Summary.BySource = cloneCounts(r.Summary.BySource)
	out.Summary.BySeverity = cloneCounts(r.Summary.BySeverity)
	return &out
}

func cloneCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
