package config

import (
	"strings"
	"sync"
)

// FeedSettings holds the feed configuration behind a lock so it can be
// updated at runtime without restarting the process. The telemetry client
// reads the current settings before every fetch.
type FeedSettings struct {
	mu  sync.RWMutex
	cfg FeedConfig
}

// NewFeedSettings wraps an initial feed configuration.
func NewFeedSettings(cfg FeedConfig) *FeedSettings {
	return &FeedSettings{cfg: cfg}
}

// Feed returns a copy of the current feed configuration.
func (s *FeedSettings) Feed() FeedConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// FeedUpdate carries a partial settings change. Only non-empty fields are
// applied; blank fields leave the current value untouched, so a client can
// update the base URL without re-submitting credentials.
type FeedUpdate struct {
	BaseURL      string `json:"baseUrl"`
	AuthURL      string `json:"authUrl"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Update applies the non-empty fields of u and returns the resulting
// configuration.
func (s *FeedSettings) Update(u FeedUpdate) FeedConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	applyIfSet(&s.cfg.BaseURL, u.BaseURL)
	applyIfSet(&s.cfg.AuthURL, u.AuthURL)
	applyIfSet(&s.cfg.Username, u.Username)
	applyIfSet(&s.cfg.Password, u.Password)
	applyIfSet(&s.cfg.ClientID, u.ClientID)
	applyIfSet(&s.cfg.ClientSecret, u.ClientSecret)

	return s.cfg
}

func applyIfSet(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}
