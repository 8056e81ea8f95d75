package scanners_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raysh454/sitelens/internal/audit"
	"github.com/raysh454/sitelens/internal/scanners"
	"github.com/raysh454/sitelens/internal/testutil"
	"github.com/raysh454/sitelens/internal/webclient"
	"github.com/sony/gobreaker"
)

func newScannerClient(t *testing.T, ts *httptest.Server, br scanners.BreakerConfig, endpoints ...string) *scanners.Client {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	if len(endpoints) == 0 {
		endpoints = append(scanners.ScannerEndpoints(), scanners.EnrichmentEndpoints()...)
	}
	c, err := scanners.NewClient(scanners.Config{BaseURL: ts.URL + "/", Breaker: br}, wc, &testutil.DummyLogger{}, endpoints...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func decode(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("decode request: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()
	wc, _ := webclient.NewNetHTTPClient(webclient.Config{}, nil, nil)
	for _, base := range []string{"", "ftp://scanner", "not a url", "http://"} {
		if _, err := scanners.NewClient(scanners.Config{BaseURL: base}, wc, nil); !errors.Is(err, scanners.ErrInvalidBaseURL) {
			t.Errorf("base %q: expected ErrInvalidBaseURL, got %v", base, err)
		}
	}
}

func TestBaseline_Scan(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != scanners.EndpointBaseline {
			http.NotFound(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var req struct{ URL string }
		decode(t, r, &req)
		writeJSON(w, testutil.SampleBaseline(req.URL))
	}))
	defer ts.Close()

	var events []audit.ProgressEvent
	b := scanners.NewBaseline(newScannerClient(t, ts, scanners.BreakerConfig{}))
	res, err := b.Scan(context.Background(), "https://example.com/", func(ev audit.ProgressEvent) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Accessibility == nil || res.Accessibility.Score != 0.88 {
		t.Errorf("unexpected accessibility: %+v", res.Accessibility)
	}
	if len(res.ScanStats.ScannedURLs) != 1 || res.ScanStats.ScannedURLs[0] != "https://example.com/" {
		t.Errorf("unexpected scan stats: %+v", res.ScanStats)
	}
	if len(events) != 2 || events[0].Progress != 0 || events[1].Progress != 100 {
		t.Errorf("unexpected progress: %+v", events)
	}
}

func TestStage_DefaultsTool(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"issues": []audit.Issue{{ID: r.URL.Path}}})
	}))
	defer ts.Close()
	c := newScannerClient(t, ts, scanners.BreakerConfig{})

	for _, s := range []struct {
		stage *scanners.Stage
		tool  string
		path  string
	}{
		{scanners.NewAxe(c), "axe", scanners.EndpointAxe},
		{scanners.NewPa11y(c), "pa11y", scanners.EndpointPa11y},
		{scanners.NewKeyboard(c), "keyboard", scanners.EndpointKeyboard},
	} {
		res, err := s.stage.Analyze(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("%s: %v", s.tool, err)
		}
		if res.Tool != s.tool || len(res.Issues) != 1 || res.Issues[0].ID != s.path {
			t.Errorf("%s: unexpected result %+v", s.tool, res)
		}
	}
}

func TestMergerScorerEnricher(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case scanners.EndpointAxeScore:
			writeJSON(w, audit.StageScore{Score: 0.6})
		case scanners.EndpointMerge:
			var req struct {
				Baseline audit.Categories
				Axe      *audit.StageResult
				Pa11y    *audit.StageResult
			}
			decode(t, r, &req)
			if req.Axe != nil {
				t.Error("expected null axe in merge request")
			}
			writeJSON(w, audit.Categories{Accessibility: &audit.CategoryResult{Score: 0.5}})
		case scanners.EndpointInsights:
			writeJSON(w, audit.Insights{Summary: "ok"})
		case scanners.EndpointFixes:
			writeJSON(w, map[string]any{"fixes": []audit.Fix{{IssueID: "a"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	c := newScannerClient(t, ts, scanners.BreakerConfig{})
	ctx := context.Background()

	score, err := scanners.NewAxeScorer(c).Score(ctx, &audit.StageResult{Tool: "axe"})
	if err != nil || score.Score != 0.6 {
		t.Errorf("Score = %+v, %v", score, err)
	}
	if _, err := scanners.NewAxeScorer(c).Score(ctx, nil); err == nil {
		t.Error("expected error for nil result")
	}

	merged, err := scanners.NewMerger(c).Merge(ctx, audit.Categories{}, nil, &audit.StageResult{Tool: "pa11y"})
	if err != nil || merged.Accessibility == nil || merged.Accessibility.Score != 0.5 {
		t.Errorf("Merge = %+v, %v", merged, err)
	}

	e := scanners.NewEnricher(c)
	in, err := e.GenerateInsights(ctx, map[string]float64{"seo": 1}, &audit.AggregateResult{})
	if err != nil || in.Summary != "ok" {
		t.Errorf("GenerateInsights = %+v, %v", in, err)
	}
	fixes, err := e.GenerateFixes(ctx, []audit.Issue{{ID: "a"}})
	if err != nil || len(fixes) != 1 || fixes[0].IssueID != "a" {
		t.Errorf("GenerateFixes = %+v, %v", fixes, err)
	}
}

func TestClient_UnexpectedStatus(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scanner exploded", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := scanners.NewAxe(newScannerClient(t, ts, scanners.BreakerConfig{})).Analyze(context.Background(), "https://example.com/")
	if !errors.Is(err, scanners.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	if _, err := scanners.NewPa11y(newScannerClient(t, ts, scanners.BreakerConfig{})).Analyze(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClient_EndpointNotEnabled(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}))
	defer ts.Close()

	c := newScannerClient(t, ts, scanners.BreakerConfig{}, scanners.EndpointBaseline)
	if _, err := scanners.NewKeyboard(c).Analyze(context.Background(), "x"); err == nil {
		t.Fatal("expected error for disabled endpoint")
	}
}

func TestClient_BreakerTripsPerEndpoint(t *testing.T) {
	t.Parallel()
	var axeCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == scanners.EndpointAxe {
			axeCalls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, audit.StageResult{})
	}))
	defer ts.Close()

	c := newScannerClient(t, ts, scanners.BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	axe := scanners.NewAxe(c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := axe.Analyze(ctx, "x"); !errors.Is(err, scanners.ErrUnexpectedStatus) {
			t.Fatalf("call %d: expected ErrUnexpectedStatus, got %v", i, err)
		}
	}
	if _, err := axe.Analyze(ctx, "x"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if n := axeCalls.Load(); n != 2 {
		t.Errorf("expected open breaker to short-circuit, server saw %d calls", n)
	}
	if st := c.BreakerStates(); st[scanners.EndpointAxe] != "open" || st[scanners.EndpointPa11y] != "closed" {
		t.Errorf("unexpected breaker states: %v", st)
	}
	if _, err := scanners.NewPa11y(c).Analyze(ctx, "x"); err != nil {
		t.Errorf("other endpoints must stay available: %v", err)
	}
}

func TestClient_CancellationDoesNotTrip(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the disconnect is only observed once the body has been consumed
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer ts.Close()
	defer close(release)

	c := newScannerClient(t, ts, scanners.BreakerConfig{ConsecutiveFailures: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := scanners.NewAxe(c).Analyze(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := c.BreakerStates()[scanners.EndpointAxe]; st != "closed" {
		t.Errorf("expected breaker closed after cancellation, got %s", st)
	}
}
