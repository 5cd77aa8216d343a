package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/unklstewy/opensky-prox/pkg/cache"
	"github.com/unklstewy/opensky-prox/pkg/config"
)

// Defaults applied when the feed configuration leaves a knob unset.
const (
	// DefaultRateInterval is the minimum spacing between snapshot
	// requests (OpenSky: one /states/all call per 5 seconds)
	DefaultRateInterval = 5 * time.Second

	// DefaultTimeout bounds each feed and token round trip
	DefaultTimeout = 5 * time.Second

	// DefaultCacheTTL is how long per-aircraft telemetry stays fresh
	DefaultCacheTTL = 10 * time.Second
)

// Feed ping outcomes.
const (
	PingDisabled    = "disabled"
	PingReachable   = "reachable"
	PingUnreachable = "unreachable"
)

// SettingsProvider supplies the current feed configuration. Settings may
// change at runtime; the client re-reads them before every fetch.
type SettingsProvider interface {
	Feed() config.FeedConfig
}

// Client fetches live state vectors from the OpenSky Network API.
//
// One Client should be created per process and shared by all request
// handlers: it owns the telemetry cache, the snapshot rate gate, and the
// credential broker, so separate instances would defeat the rate limits.
type Client struct {
	settings   SettingsProvider
	httpClient *http.Client
	broker     *tokenBroker
	cache      *cache.Cache[Telemetry]

	// gate spaces snapshot dispatches; sf coalesces concurrent callers
	// onto the request already in flight.
	gate     *rate.Limiter
	sf       singleflight.Group
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	lastFetchAt time.Time
}

// NewClient creates a feed client. Interval, timeout, and cache TTL are
// taken from the settings at construction time; URLs and credentials are
// re-read on every fetch.
func NewClient(settings SettingsProvider) *Client {
	cfg := settings.Feed()
	interval := secondsOr(cfg.RateLimitSeconds, DefaultRateInterval)
	timeout := secondsOr(cfg.TimeoutSeconds, DefaultTimeout)
	ttl := secondsOr(cfg.CacheTTLSeconds, DefaultCacheTTL)

	return &Client{
		settings:   settings,
		httpClient: &http.Client{},
		broker:     newTokenBroker(timeout),
		cache:      cache.New[Telemetry](ttl),
		gate:       rate.NewLimiter(rate.Every(interval), 1),
		interval:   interval,
		timeout:    timeout,
	}
}

func secondsOr(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// GetByIcao24 returns telemetry for one aircraft by its ICAO24 address.
//
// A fresh cache hit returns immediately. On a miss while the feed was
// queried within the rate interval, a stale cache entry is preferred over
// blocking behind the gate: under rate pressure availability beats
// freshness. Otherwise a gated snapshot fetch is performed and the
// matching row normalized and cached.
func (c *Client) GetByIcao24(ctx context.Context, icao24 string) (Telemetry, error) {
	key := strings.ToLower(strings.TrimSpace(icao24))

	if value, stale, ok := c.cache.Lookup(key, true); ok {
		if !stale {
			return value, nil
		}
		c.mu.Lock()
		last := c.lastFetchAt
		c.mu.Unlock()
		if !last.IsZero() && time.Since(last) < c.interval {
			return value, nil
		}
	}

	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return Telemetry{}, err
	}

	for _, state := range snap.States {
		id, ok := stringAt(state, stateIcao24)
		if !ok || strings.ToLower(id) != key {
			continue
		}
		telemetry, nerr := normalizeState(state)
		if nerr != nil {
			return Telemetry{}, newError(KindUnavailable, "malformed state vector for "+key, nerr)
		}
		c.cache.Set(key, telemetry)
		return telemetry, nil
	}

	return Telemetry{}, newError(KindNotFound, "aircraft not found: "+key, nil)
}

// GetByCallsign returns telemetry for the first aircraft in the current
// snapshot whose callsign matches, case-insensitively.
func (c *Client) GetByCallsign(ctx context.Context, callsign string) (Telemetry, error) {
	target := NormalizeCallsign(callsign)

	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return Telemetry{}, err
	}

	for _, state := range snap.States {
		if stateCallsignValue(state) != target {
			continue
		}
		telemetry, nerr := normalizeState(state)
		if nerr != nil {
			return Telemetry{}, newError(KindUnavailable, "malformed state vector for "+target, nerr)
		}
		c.cache.Set(telemetry.Icao24, telemetry)
		return telemetry, nil
	}

	return Telemetry{}, newError(KindNotFound, "aircraft not found: "+target, nil)
}

// GetByCallsigns returns telemetry for every aircraft in the current
// snapshot whose callsign is in the requested set. Best effort: unmatched
// identifiers are simply absent from the result, and malformed rows are
// skipped rather than failing the batch.
func (c *Client) GetByCallsigns(ctx context.Context, callsigns []string) ([]Telemetry, error) {
	targets := make(map[string]struct{}, len(callsigns))
	for _, callsign := range callsigns {
		if normalized := NormalizeCallsign(callsign); normalized != "" {
			targets[normalized] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return []Telemetry{}, nil
	}

	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	telemetry := make([]Telemetry, 0, len(targets))
	for _, state := range snap.States {
		value := stateCallsignValue(state)
		if value == "" {
			continue
		}
		if _, wanted := targets[value]; !wanted {
			continue
		}
		normalized, nerr := normalizeState(state)
		if nerr != nil {
			continue
		}
		c.cache.Set(normalized.Icao24, normalized)
		telemetry = append(telemetry, normalized)
	}

	return telemetry, nil
}

// ValidateCallsigns classifies each identifier as currently reporting
// ("valid") or well-formed but absent from the snapshot ("no-data").
// Format rejection happens upstream; inputs are assumed pre-filtered.
func (c *Client) ValidateCallsigns(ctx context.Context, callsigns []string) ([]CallsignStatus, error) {
	targets := make(map[string]struct{}, len(callsigns))
	for _, callsign := range callsigns {
		targets[NormalizeCallsign(callsign)] = struct{}{}
	}

	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	reporting := make(map[string]struct{})
	for _, state := range snap.States {
		value := stateCallsignValue(state)
		if value == "" {
			continue
		}
		if _, wanted := targets[value]; wanted {
			reporting[value] = struct{}{}
		}
	}

	statuses := make([]CallsignStatus, 0, len(callsigns))
	for _, callsign := range callsigns {
		status := StatusNoData
		if _, found := reporting[NormalizeCallsign(callsign)]; found {
			status = StatusValid
		}
		statuses = append(statuses, CallsignStatus{Callsign: callsign, Status: status})
	}

	return statuses, nil
}

// Ping reports feed reachability for health checks: "disabled" when the
// feed is turned off in settings, otherwise "reachable" or "unreachable"
// based on a gated snapshot fetch.
func (c *Client) Ping(ctx context.Context) string {
	if !c.settings.Feed().Enabled {
		return PingDisabled
	}
	if _, err := c.fetchSnapshot(ctx); err != nil {
		return PingUnreachable
	}
	return PingReachable
}

// CacheEntryCount returns the number of live telemetry cache entries,
// for health and diagnostics reporting.
func (c *Client) CacheEntryCount() int {
	return c.cache.Size()
}

// fetchSnapshot fetches /states/all, coalescing concurrent callers onto
// one request and spacing dispatches by the rate interval. Every caller
// of the shared attempt observes the same result; a caller whose own
// context ends stops waiting without cancelling the shared fetch.
func (c *Client) fetchSnapshot(ctx context.Context) (*snapshot, error) {
	ch := c.sf.DoChan("states", func() (any, error) {
		cfg := c.settings.Feed()

		if err := c.gate.Wait(context.Background()); err != nil {
			return nil, newError(KindUnavailable, "rate gate", err)
		}

		// The gate timestamp marks the dispatch moment, not the time
		// the caller arrived.
		c.mu.Lock()
		c.lastFetchAt = time.Now()
		c.mu.Unlock()

		return c.fetchStates(cfg, true)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, newError(KindTimeout, "snapshot fetch cancelled", ctx.Err())
	}
}

// fetchStates performs one GET /states/all round trip. A 401 under a
// bearer token invalidates the token and retries exactly once with a
// freshly obtained one; a second 401 is fatal.
func (c *Client) fetchStates(cfg config.FeedConfig, allowRetry bool) (*snapshot, error) {
	auth, err := c.broker.Header(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/states/all", nil)
	if err != nil {
		return nil, newError(KindUnavailable, "building states request", err)
	}
	if auth.value != "" {
		req.Header.Set("Authorization", auth.value)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isDeadlineError(err) {
			return nil, newError(KindTimeout, "states request timed out", err)
		}
		return nil, newError(KindUnavailable, "states request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && auth.scheme == schemeBearer && allowRetry {
		c.broker.Invalidate(auth.token)
		return c.fetchStates(cfg, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(KindUnavailable,
			fmt.Sprintf("states endpoint returned status %d", resp.StatusCode), nil)
	}

	var snap snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, newError(KindUnavailable, "parsing states response", err)
	}

	return &snap, nil
}
