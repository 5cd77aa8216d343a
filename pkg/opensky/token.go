package opensky

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unklstewy/opensky-prox/pkg/config"
)

const (
	// tokenExpiryMargin treats a token as expired this long before the
	// feed's reported TTL, so a token never dies mid-request.
	tokenExpiryMargin = 60 * time.Second

	// defaultTokenTTLSeconds applies when the token endpoint omits
	// expires_in.
	defaultTokenTTLSeconds = 1800
)

type authScheme string

const (
	schemeBearer authScheme = "bearer"
	schemeBasic  authScheme = "basic"
	schemeNone   authScheme = "none"
)

// authHeader is a resolved Authorization header. value is empty for
// anonymous access; token carries the raw bearer token so a 401 can
// invalidate exactly the credential that failed.
type authHeader struct {
	value  string
	scheme authScheme
	token  string
}

// tokenResponse mirrors the JSON from the OAuth2 token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// tokenBroker manages the Authorization header for feed requests.
//
// Credential precedence follows the configuration: OAuth2 client
// credentials, then Basic, then anonymous. The OAuth2 path caches the
// access token until shortly before expiry and coalesces concurrent
// refreshes onto a single exchange; every waiter observes the same
// outcome, success or failure.
type tokenBroker struct {
	httpClient *http.Client
	timeout    time.Duration

	sf singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenBroker(timeout time.Duration) *tokenBroker {
	return &tokenBroker{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Header resolves the Authorization header for the current configuration.
// OAuth2 failures are returned as errors; the broker never silently falls
// back from configured client credentials to Basic.
func (b *tokenBroker) Header(ctx context.Context, cfg config.FeedConfig) (authHeader, error) {
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		token, err := b.accessToken(ctx, cfg)
		if err != nil {
			return authHeader{}, err
		}
		return authHeader{value: "Bearer " + token, scheme: schemeBearer, token: token}, nil
	}

	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		return authHeader{value: "Basic " + credentials, scheme: schemeBasic}, nil
	}

	return authHeader{scheme: schemeNone}, nil
}

// Invalidate drops the cached token, but only if it is still the one that
// failed. A concurrent caller may already have fetched a fresh token;
// that one must survive.
func (b *tokenBroker) Invalidate(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == token {
		b.token = ""
		b.expiresAt = time.Time{}
	}
}

// accessToken returns a cached non-expired token or performs a single
// shared exchange.
func (b *tokenBroker) accessToken(ctx context.Context, cfg config.FeedConfig) (string, error) {
	b.mu.Lock()
	if b.token != "" && time.Now().Before(b.expiresAt) {
		token := b.token
		b.mu.Unlock()
		return token, nil
	}
	b.mu.Unlock()

	// The exchange runs detached from any single caller's context so a
	// cancelled waiter cannot fail the refresh for everyone else.
	ch := b.sf.DoChan("token", func() (any, error) {
		return b.exchange(cfg)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", newError(KindTimeout, "token exchange cancelled", ctx.Err())
	}
}

// exchange performs the OAuth2 client-credentials grant and caches the
// resulting token with the safety margin applied.
func (b *tokenBroker) exchange(cfg config.FeedConfig) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(KindAuth, "building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if isDeadlineError(err) {
			return "", newError(KindTimeout, "token exchange timed out", err)
		}
		return "", newError(KindAuth, "token exchange failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newError(KindAuth, "token endpoint returned status "+resp.Status, nil)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", newError(KindAuth, "parsing token response", err)
	}
	if payload.AccessToken == "" {
		return "", newError(KindAuth, "token response missing access_token", nil)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenTTLSeconds
	}

	b.mu.Lock()
	b.token = payload.AccessToken
	b.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryMargin)
	b.mu.Unlock()

	return payload.AccessToken, nil
}
