package scanners

import (
	"context"
	"errors"

	"github.com/raysh454/sitelens/internal/audit"
)

type targetRequest struct {
	URL string `json:"url"`
}

// Baseline is the remote baseline audit. The service does not stream, so
// only start and finish are reported.
type Baseline struct {
	c *Client
}

func NewBaseline(c *Client) *Baseline { return &Baseline{c: c} }

func (b *Baseline) Scan(ctx context.Context, target string, progress audit.ProgressSink) (*audit.BaselineResult, error) {
	report(progress, "Running baseline audit", 0)
	var out audit.BaselineResult
	if err := b.c.postJSON(ctx, EndpointBaseline, targetRequest{URL: target}, &out); err != nil {
		return nil, err
	}
	report(progress, "Baseline audit finished", 100)
	return &out, nil
}

func report(sink audit.ProgressSink, msg string, p int) {
	if sink != nil {
		sink(audit.ProgressEvent{Message: msg, Progress: p})
	}
}

// Stage is a remote optional analyzer: axe, pa11y or the keyboard probe.
type Stage struct {
	c        *Client
	tool     string
	endpoint string
}

func NewAxe(c *Client) *Stage      { return &Stage{c: c, tool: audit.SourceAxe, endpoint: EndpointAxe} }
func NewPa11y(c *Client) *Stage    { return &Stage{c: c, tool: audit.SourcePa11y, endpoint: EndpointPa11y} }
func NewKeyboard(c *Client) *Stage { return &Stage{c: c, tool: audit.SourceKeyboard, endpoint: EndpointKeyboard} }

func (s *Stage) Analyze(ctx context.Context, target string) (*audit.StageResult, error) {
	var out audit.StageResult
	if err := s.c.postJSON(ctx, s.endpoint, targetRequest{URL: target}, &out); err != nil {
		return nil, err
	}
	if out.Tool == "" {
		out.Tool = s.tool
	}
	return &out, nil
}

// AxeScorer scores axe results remotely.
type AxeScorer struct {
	c *Client
}

func NewAxeScorer(c *Client) *AxeScorer { return &AxeScorer{c: c} }

func (s *AxeScorer) Score(ctx context.Context, result *audit.StageResult) (*audit.StageScore, error) {
	if result == nil {
		return nil, errors.New("scanners: nil axe result")
	}
	var out audit.StageScore
	if err := s.c.postJSON(ctx, EndpointAxeScore, result, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type mergeRequest struct {
	Baseline audit.Categories   `json:"baseline"`
	Axe      *audit.StageResult `json:"axe"`
	Pa11y    *audit.StageResult `json:"pa11y"`
}

// Merger merges baseline categories with rule engine results remotely.
type Merger struct {
	c *Client
}

func NewMerger(c *Client) *Merger { return &Merger{c: c} }

func (m *Merger) Merge(ctx context.Context, baseline audit.Categories, axe, pa11y *audit.StageResult) (*audit.Categories, error) {
	var out audit.Categories
	if err := m.c.postJSON(ctx, EndpointMerge, mergeRequest{Baseline: baseline, Axe: axe, Pa11y: pa11y}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type insightsRequest struct {
	Scores map[string]float64     `json:"scores"`
	Result *audit.AggregateResult `json:"result"`
}

type fixesRequest struct {
	Issues []audit.Issue `json:"issues"`
}

type fixesResponse struct {
	Fixes []audit.Fix `json:"fixes"`
}

// Enricher calls the remote AI enrichment service.
type Enricher struct {
	c *Client
}

func NewEnricher(c *Client) *Enricher { return &Enricher{c: c} }

func (e *Enricher) GenerateInsights(ctx context.Context, scores map[string]float64, full *audit.AggregateResult) (*audit.Insights, error) {
	var out audit.Insights
	if err := e.c.postJSON(ctx, EndpointInsights, insightsRequest{Scores: scores, Result: full}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Enricher) GenerateFixes(ctx context.Context, issues []audit.Issue) ([]audit.Fix, error) {
	var out fixesResponse
	if err := e.c.postJSON(ctx, EndpointFixes, fixesRequest{Issues: issues}, &out); err != nil {
		return nil, err
	}
	return out.Fixes, nil
}

// ScannerEndpoints lists the endpoints served by the scanner service.
func ScannerEndpoints() []string {
	return []string{EndpointBaseline, EndpointAxe, EndpointPa11y, EndpointKeyboard, EndpointAxeScore, EndpointMerge}
}

// EnrichmentEndpoints lists the endpoints served by the enrichment service.
func EnrichmentEndpoints() []string {
	return []string{EndpointInsights, EndpointFixes}
}
