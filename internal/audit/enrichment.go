package audit

import (
	"context"
	"sync"

	"github.com/raysh454/sitelens/internal/logging"
)

// enrichment is the outcome of the AI phase. Each field is nil when its call
// failed or did not run; failures never reach the caller of Analyze.
type enrichment struct {
	insights *Insights
	fixes    []Fix
}

// enrich runs insights and, when there is anything to fix, fixes
// concurrently. The two calls fail independently.
func (o *Orchestrator) enrich(ctx context.Context, result *AggregateResult, log logging.Logger) enrichment {
	var out enrichment
	if o.c.Enricher == nil {
		log.Warn("AI enrichment requested but no enricher is configured")
		return out
	}

	scores := result.Scores()
	issues := result.AllIssues()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		insights, err := o.c.Enricher.GenerateInsights(ctx, scores, result)
		if err != nil {
			log.Warn("generating AI insights failed", logging.Field{Key: "error", Value: err})
			return
		}
		out.insights = insights
	}()

	if len(issues) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fixes, err := o.c.Enricher.GenerateFixes(ctx, issues)
			if err != nil {
				log.Warn("generating AI fixes failed",
					logging.Field{Key: "issues", Value: len(issues)},
					logging.Field{Key: "error", Value: err})
				return
			}
			if fixes == nil {
				fixes = []Fix{}
			}
			out.fixes = fixes
		}()
	} else {
		log.Debug("no issues found, skipping AI fixes")
	}

	wg.Wait()
	return out
}
