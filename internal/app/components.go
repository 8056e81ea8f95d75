package app

import (
	"errors"
	"fmt"

	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/enrich"
	"github.com/raysh454/sitelens/internal/logging"
	"github.com/raysh454/sitelens/internal/scanners"
	"github.com/raysh454/sitelens/internal/webclient"
)

// Components are the remote collaborators built from a Config.
type Components struct {
	Collaborators audit.Collaborators
	// Enrichment is nil when enrichment is disabled.
	Enrichment *enrich.Cached

	scanner    *scanners.Client
	enricher   *scanners.Client
	webClients []webclient.WebClient
}

// NewComponents wires the scanner service adapters and, when configured, the
// cached enrichment client.
func NewComponents(cfg *Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	comps := &Components{}

	sc, err := comps.remote(cfg.Scanner, logger, scanners.ScannerEndpoints())
	if err != nil {
		return nil, fmt.Errorf("scanner client: %w", err)
	}
	comps.scanner = sc
	comps.Collaborators = audit.Collaborators{
		Baseline:  scanners.NewBaseline(sc),
		Axe:       scanners.NewAxe(sc),
		Pa11y:     scanners.NewPa11y(sc),
		Keyboard:  scanners.NewKeyboard(sc),
		AxeScorer: scanners.NewAxeScorer(sc),
		Merger:    scanners.NewMerger(sc),
	}

	if cfg.Enrichment.BaseURL == "" {
		logger.Info("AI enrichment disabled: no enrichment base url")
		return comps, nil
	}
	ec, err := comps.remote(cfg.Enrichment.RemoteConfig, logger, scanners.EnrichmentEndpoints())
	if err != nil {
		_ = comps.Close()
		return nil, fmt.Errorf("enrichment client: %w", err)
	}
	comps.enricher = ec
	cached, err := enrich.NewCached(scanners.NewEnricher(ec), enrich.Config{
		MaxSize: cfg.Enrichment.CacheSize,
		TTL:     cfg.Enrichment.CacheTTL,
	}, logger)
	if err != nil {
		_ = comps.Close()
		return nil, err
	}
	comps.Enrichment = cached
	comps.Collaborators.Enricher = cached
	return comps, nil
}

func (c *Components) remote(rc RemoteConfig, logger logging.Logger, endpoints []string) (*scanners.Client, error) {
	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: rc.Timeout}, logger, nil)
	if err != nil {
		return nil, err
	}
	c.webClients = append(c.webClients, wc)
	return scanners.NewClient(scanners.Config{BaseURL: rc.BaseURL, Breaker: rc.Breaker}, wc, logger, endpoints...)
}

// BreakerStates reports every remote endpoint's circuit breaker state.
func (c *Components) BreakerStates() map[string]string {
	out := map[string]string{}
	for _, cl := range []*scanners.Client{c.scanner, c.enricher} {
		if cl == nil {
			continue
		}
		for ep, st := range cl.BreakerStates() {
			out[ep] = st
		}
	}
	return out
}

// Close releases the HTTP clients.
func (c *Components) Close() error {
	var errs []error
	for _, wc := range c.webClients {
		if err := wc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
