package demoserver

import "github.com/raysh454/sitelens/internal/audit"

// Profile is one simulated state of every audited site. Switching profiles
// simulates a site being remediated or breaking between analyses.
type Profile struct {
	Description string
	Scores      map[string]float64
	Baseline    map[string][]audit.Issue
	Axe         []audit.Issue
	Pa11y       []audit.Issue
	Keyboard    []audit.Issue
	// Unavailable makes every scan endpoint answer 503.
	Unavailable bool
}

// Profiles returns the built-in profiles keyed by version.
func Profiles() map[int]Profile {
	return map[int]Profile{
		1: {
			Description: "Legacy site with render blocking assets and missing labels",
			Scores: map[string]float64{
				audit.CategoryPerformance:   0.48,
				audit.CategoryAccessibility: 0.71,
				audit.CategoryBestPractices: 0.79,
				audit.CategorySEO:           0.83,
			},
			Baseline: map[string][]audit.Issue{
				audit.CategoryPerformance: {
					{ID: "render-blocking-resources", Title: "Eliminate render-blocking resources", Severity: "serious"},
					{ID: "uses-optimized-images", Title: "Efficiently encode images", Severity: "moderate"},
				},
				audit.CategoryAccessibility: {
					{ID: "color-contrast", Title: "Background and foreground colors lack contrast", Severity: "serious", Selector: ".hero p"},
				},
				audit.CategoryBestPractices: {
					{ID: "errors-in-console", Title: "Browser errors were logged to the console", Severity: "minor"},
				},
				audit.CategorySEO: {
					{ID: "meta-description", Title: "Document does not have a meta description", Severity: "moderate"},
				},
			},
			Axe: []audit.Issue{
				{ID: "label", Title: "Form elements must have labels", Severity: "critical", Selector: "#newsletter input"},
				{ID: "image-alt", Title: "Images must have alternate text", Severity: "critical", Selector: "img.logo"},
			},
			Pa11y: []audit.Issue{
				{ID: "WCAG2AA.Principle1.Guideline1_3.1_3_1.H44", Title: "Input has no associated label", Severity: "serious", Selector: "#newsletter input"},
			},
			Keyboard: []audit.Issue{
				{ID: "focus-trap", Title: "Focus is trapped inside the cookie banner", Severity: "critical", Selector: "#cookie-banner"},
				{ID: "focus-visible", Title: "Focused links have no visible indicator", Severity: "serious", Selector: "nav a"},
			},
		},
		2: {
			Description: "Remediated site with one remaining contrast issue",
			Scores: map[string]float64{
				audit.CategoryPerformance:   0.91,
				audit.CategoryAccessibility: 0.96,
				audit.CategoryBestPractices: 1,
				audit.CategorySEO:           1,
			},
			Baseline: map[string][]audit.Issue{
				audit.CategoryAccessibility: {
					{ID: "color-contrast", Title: "Background and foreground colors lack contrast", Severity: "moderate", Selector: "footer small"},
				},
			},
		},
		3: {
			Description: "Scanner outage: every scan endpoint fails",
			Unavailable: true,
		},
	}
}
