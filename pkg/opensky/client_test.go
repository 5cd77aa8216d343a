package opensky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unklstewy/opensky-prox/pkg/config"
)

type staticSettings struct {
	cfg config.FeedConfig
}

func (s *staticSettings) Feed() config.FeedConfig { return s.cfg }

// sampleStates is a small /states/all payload: two complete rows, one row
// with a missing position, and one row that is too short.
func sampleStates() [][]any {
	return [][]any{
		{"abc123", "AAA100  ", "Germany", nil, float64(1700000000), 8.6821, 50.1109, 10000.0, false, 250.0, 90.0},
		{"def456", "BBB200  ", "France", nil, float64(1700000010), 2.3522, 48.8566, 9000.0, false, 230.0, 180.0},
		{"bad001", "CCC300  ", "Spain", nil, float64(1700000020), nil, nil, 8000.0, false, 210.0, 270.0},
		{"short1"},
	}
}

func statesHandler(t *testing.T, requests *int32, states [][]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		if r.URL.Path != "/states/all" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"time":   1700000000,
			"states": states,
		})
	}
}

func testFeedConfig(baseURL string) config.FeedConfig {
	return config.FeedConfig{
		BaseURL:          baseURL,
		Enabled:          true,
		RateLimitSeconds: 0.001,
		TimeoutSeconds:   2.0,
		CacheTTLSeconds:  60.0,
	}
}

func TestGetByIcao24(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	telemetry, err := client.GetByIcao24(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("GetByIcao24 failed: %v", err)
	}

	if telemetry.Icao24 != "abc123" {
		t.Errorf("expected lowercased icao24 'abc123', got %q", telemetry.Icao24)
	}
	if telemetry.Callsign == nil || *telemetry.Callsign != "AAA100" {
		t.Errorf("expected trimmed callsign 'AAA100', got %v", telemetry.Callsign)
	}
	if telemetry.Latitude != 50.1109 || telemetry.Longitude != 8.6821 {
		t.Errorf("unexpected position: %f, %f", telemetry.Latitude, telemetry.Longitude)
	}
	if telemetry.LastContact != 1700000000 {
		t.Errorf("unexpected last contact: %d", telemetry.LastContact)
	}
}

func TestGetByIcao24NotFound(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	_, err := client.GetByIcao24(context.Background(), "ffffff")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetByIcao24MalformedRow(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	// bad001's row has null coordinates; a direct lookup must fail loudly
	// rather than fabricate a partial record.
	_, err := client.GetByIcao24(context.Background(), "bad001")
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error for malformed row, got %v", err)
	}
}

func TestGetByIcao24CacheHit(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	if _, err := client.GetByIcao24(context.Background(), "abc123"); err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	if _, err := client.GetByIcao24(context.Background(), "abc123"); err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("expected 1 feed request, got %d", got)
	}
}

func TestGetByIcao24StaleUnderRatePressure(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	cfg := testFeedConfig(server.URL)
	cfg.CacheTTLSeconds = 0.02
	cfg.RateLimitSeconds = 60.0
	client := NewClient(&staticSettings{cfg: cfg})

	first, err := client.GetByIcao24(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}

	// Entry expires, but the feed was just queried; the stale value is
	// served instead of blocking a minute behind the rate gate.
	time.Sleep(40 * time.Millisecond)

	second, err := client.GetByIcao24(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("stale lookup failed: %v", err)
	}
	if second.Icao24 != first.Icao24 || second.LastContact != first.LastContact {
		t.Errorf("stale lookup returned different telemetry: %+v vs %+v", second, first)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("expected 1 feed request, got %d", got)
	}
}

func TestFetchSnapshotCoalescesConcurrentCallers(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"time": 1700000000, "states": sampleStates()})
	}))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetByCallsign(context.Background(), "AAA100")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("expected concurrent callers to share 1 request, got %d", got)
	}
}

func TestBearerRetryAfterUnauthorized(t *testing.T) {
	var tokenRequests, stateRequests int32

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenRequests, 1)
		token := "token1"
		if n > 1 {
			token = "token2"
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 1800})
	}))
	defer tokenServer.Close()

	var lastAuth string
	statesServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&stateRequests, 1)
		lastAuth = r.Header.Get("Authorization")
		if lastAuth == "Bearer token1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"time": 1700000000, "states": sampleStates()})
	}))
	defer statesServer.Close()

	cfg := testFeedConfig(statesServer.URL)
	cfg.AuthURL = tokenServer.URL
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	client := NewClient(&staticSettings{cfg: cfg})

	if _, err := client.GetByIcao24(context.Background(), "abc123"); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if got := atomic.LoadInt32(&tokenRequests); got != 2 {
		t.Errorf("expected 2 token exchanges, got %d", got)
	}
	if got := atomic.LoadInt32(&stateRequests); got != 2 {
		t.Errorf("expected 2 states requests, got %d", got)
	}
	if lastAuth != "Bearer token2" {
		t.Errorf("expected retry with fresh token, got Authorization %q", lastAuth)
	}
}

func TestUnauthorizedWithoutBearerIsNotRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	_, err := client.GetByIcao24(context.Background(), "abc123")
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("expected a single request without retry, got %d", got)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"time": 1700000000, "states": [][]any{}})
	}))
	defer server.Close()

	cfg := testFeedConfig(server.URL)
	cfg.TimeoutSeconds = 0.02
	client := NewClient(&staticSettings{cfg: cfg})

	_, err := client.GetByIcao24(context.Background(), "abc123")
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestGetByCallsigns(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	telemetry, err := client.GetByCallsigns(context.Background(), []string{"aaa100", "BBB200", "CCC300", "ZZZ999"})
	if err != nil {
		t.Fatalf("batch lookup failed: %v", err)
	}

	// CCC300's row is malformed and silently dropped; ZZZ999 is absent.
	if len(telemetry) != 2 {
		t.Fatalf("expected 2 results, got %d", len(telemetry))
	}
	seen := map[string]bool{}
	for _, item := range telemetry {
		seen[item.Icao24] = true
	}
	if !seen["abc123"] || !seen["def456"] {
		t.Errorf("unexpected result set: %v", seen)
	}
}

func TestGetByCallsignsEmptyInput(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	telemetry, err := client.GetByCallsigns(context.Background(), []string{"", "   "})
	if err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if len(telemetry) != 0 {
		t.Errorf("expected no results, got %d", len(telemetry))
	}
	if got := atomic.LoadInt32(&requests); got != 0 {
		t.Errorf("expected no feed request for empty batch, got %d", got)
	}
}

func TestValidateCallsigns(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	client := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})

	statuses, err := client.ValidateCallsigns(context.Background(), []string{"AAA100", "ZZZ999"})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}

	want := map[string]string{"AAA100": StatusValid, "ZZZ999": StatusNoData}
	for _, status := range statuses {
		if want[status.Callsign] != status.Status {
			t.Errorf("callsign %s: expected %s, got %s", status.Callsign, want[status.Callsign], status.Status)
		}
	}
}

func TestPing(t *testing.T) {
	var requests int32
	server := httptest.NewServer(statesHandler(t, &requests, sampleStates()))
	defer server.Close()

	reachable := NewClient(&staticSettings{cfg: testFeedConfig(server.URL)})
	if got := reachable.Ping(context.Background()); got != PingReachable {
		t.Errorf("expected %q, got %q", PingReachable, got)
	}

	disabledCfg := testFeedConfig(server.URL)
	disabledCfg.Enabled = false
	disabled := NewClient(&staticSettings{cfg: disabledCfg})
	if got := disabled.Ping(context.Background()); got != PingDisabled {
		t.Errorf("expected %q, got %q", PingDisabled, got)
	}

	deadCfg := testFeedConfig("http://127.0.0.1:1")
	deadCfg.TimeoutSeconds = 0.1
	dead := NewClient(&staticSettings{cfg: deadCfg})
	if got := dead.Ping(context.Background()); got != PingUnreachable {
		t.Errorf("expected %q, got %q", PingUnreachable, got)
	}
}
