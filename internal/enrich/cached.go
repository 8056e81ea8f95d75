// Package enrich memoizes AI enrichment so that repeated analyses of an
// unchanged site do not pay for the same model calls twice.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/logging"
	"github.com/raysh454/sitelens/internal/memo"
)

// Config bounds both caches.
type Config struct {
	MaxSize int           `yaml:"cache_size"`
	TTL     time.Duration `yaml:"cache_ttl"`
	// Now overrides the clock used for expiry.
	Now func() time.Time `yaml:"-"`
}

type insightsArgs struct {
	scores map[string]float64
	full   *audit.AggregateResult
}

// Cached wraps an audit.Enricher with one AsyncCache per call. Concurrent
// analyses asking for the same enrichment share one upstream call.
type Cached struct {
	insights *memo.AsyncCache[insightsArgs, *audit.Insights]
	fixes    *memo.AsyncCache[[]audit.Issue, []audit.Fix]
}

func NewCached(inner audit.Enricher, cfg Config, logger logging.Logger) (*Cached, error) {
	if inner == nil {
		return nil, errors.New("enrich: nil enricher")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With(logging.Field{Key: "component", Value: "enrich"})

	insights := func(ctx context.Context, a insightsArgs) (*audit.Insights, error) {
		logger.Debug("insights cache miss", logging.Field{Key: "categories", Value: len(a.scores)})
		return inner.GenerateInsights(ctx, a.scores, a.full)
	}
	fixes := func(ctx context.Context, issues []audit.Issue) ([]audit.Fix, error) {
		logger.Debug("fixes cache miss", logging.Field{Key: "issues", Value: len(issues)})
		return inner.GenerateFixes(ctx, issues)
	}

	return &Cached{
		insights: memo.MemoizeAsync(insights, memo.Options[insightsArgs]{
			KeyFunc: insightsKey,
			MaxSize: cfg.MaxSize,
			TTL:     cfg.TTL,
			Now:     cfg.Now,
		}),
		fixes: memo.MemoizeAsync(fixes, memo.Options[[]audit.Issue]{
			MaxSize: cfg.MaxSize,
			TTL:     cfg.TTL,
			Now:     cfg.Now,
		}),
	}, nil
}

// insightsKey identifies an insights request by what the model is shown to
// reason about: the scores, the scanned pages and the issue identities.
func insightsKey(a insightsArgs) (string, error) {
	k := struct {
		Scores map[string]float64 `json:"s"`
		URLs   []string           `json:"u,omitempty"`
		Issues []string           `json:"i,omitempty"`
	}{Scores: a.scores}
	if a.full != nil {
		k.URLs = a.full.ScanStats.ScannedURLs
		for _, is := range a.full.AllIssues() {
			k.Issues = append(k.Issues, is.Source+":"+is.ID)
		}
	}
	b, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("enrich: insights key: %w", err)
	}
	return string(b), nil
}

func (c *Cached) GenerateInsights(ctx context.Context, scores map[string]float64, full *audit.AggregateResult) (*audit.Insights, error) {
	return c.insights.Call(ctx, insightsArgs{scores: scores, full: full})
}

func (c *Cached) GenerateFixes(ctx context.Context, issues []audit.Issue) ([]audit.Fix, error) {
	return c.fixes.Call(ctx, issues)
}

// Stats reports both caches keyed by "insights" and "fixes".
func (c *Cached) Stats() map[string]memo.Stats {
	return map[string]memo.Stats{
		"insights": c.insights.Stats(),
		"fixes":    c.fixes.Stats(),
	}
}

// Clear drops every settled entry.
func (c *Cached) Clear() {
	c.insights.Clear()
	c.fixes.Clear()
}
