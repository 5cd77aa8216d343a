package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unklstewy/opensky-prox/internal/db"
	"github.com/unklstewy/opensky-prox/internal/location"
	"github.com/unklstewy/opensky-prox/pkg/config"
	"github.com/unklstewy/opensky-prox/pkg/distance"
	"github.com/unklstewy/opensky-prox/pkg/geo"
	"github.com/unklstewy/opensky-prox/pkg/opensky"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "disabled"
	if s.watchlist != nil {
		database = "enabled"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  "ok",
		"uptime_seconds":          int(time.Since(s.startedAt).Seconds()),
		"opensky_status":          s.feed.Ping(r.Context()),
		"cache_entries":           s.feed.CacheEntryCount(),
		"location_ingest_status":  s.locations.IngestStatus(),
		"last_location_timestamp": s.locations.LastTimestamp(),
		"database":                database,
	})
}

func (s *Server) handleGetAircraftByIcao24(w http.ResponseWriter, r *http.Request) {
	icao24 := chi.URLParam(r, "icao24")
	if !opensky.IsValidIcao24(icao24) {
		http.Error(w, "Invalid ICAO24 address", http.StatusBadRequest)
		return
	}

	telemetry, err := s.feed.GetByIcao24(r.Context(), icao24)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, telemetry)
}

func (s *Server) handleGetAircraftByCallsign(w http.ResponseWriter, r *http.Request) {
	callsign := chi.URLParam(r, "callsign")
	if !opensky.IsValidCallsign(callsign) {
		http.Error(w, "Invalid callsign", http.StatusBadRequest)
		return
	}

	telemetry, err := s.feed.GetByCallsign(r.Context(), callsign)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, telemetry)
}

func (s *Server) handleValidateCallsigns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Callsigns []string `json:"callsigns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	callsigns := dedupeCallsigns(req.Callsigns)
	if len(callsigns) == 0 {
		http.Error(w, "No callsigns provided", http.StatusBadRequest)
		return
	}
	for _, callsign := range callsigns {
		if !opensky.IsValidCallsign(callsign) {
			http.Error(w, fmt.Sprintf("Invalid callsign %q", callsign), http.StatusBadRequest)
			return
		}
	}

	statuses, err := s.feed.ValidateCallsigns(r.Context(), callsigns)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": statuses,
	})
}

func (s *Server) handleDistanceAircraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat       float64  `json:"lat"`
		Lon       float64  `json:"lon"`
		Callsigns []string `json:"callsigns"`
		Icao24s   []string `json:"icao24s"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, ok := s.rankAircraft(w, r, distance.UserLocation{Lat: req.Lat, Lon: req.Lon}, req.Callsigns, req.Icao24s)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDistanceFleets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat    float64               `json:"lat"`
		Lon    float64               `json:"lon"`
		Fleets []distance.FleetGroup `json:"fleets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	proximity, ok := s.rankFleets(w, r, distance.UserLocation{Lat: req.Lat, Lon: req.Lon}, req.Fleets)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fleets": proximity,
	})
}

// handleDistanceCompute ranks individual aircraft and fleet groups against
// the same snapshot in one request.
func (s *Server) handleDistanceCompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserLocation distance.UserLocation `json:"user_location"`
		Callsigns    []string              `json:"callsigns"`
		Icao24s      []string              `json:"icao24s"`
		Groups       []distance.FleetGroup `json:"groups"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !geo.ValidCoordinates(req.UserLocation.Lat, req.UserLocation.Lon) {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}

	callsigns := dedupeCallsigns(req.Callsigns)
	icao24s := dedupeIcao24s(req.Icao24s)

	// One fetch covers both rankings: group members join the batch so the
	// snapshot is shared.
	batch := callsigns
	for _, group := range req.Groups {
		batch = append(batch, dedupeCallsigns(group.Callsigns)...)
	}

	positions, err := s.feed.Positions(r.Context(), dedupeCallsigns(batch), icao24s)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	identifiers := append(append([]string{}, callsigns...), icao24s...)
	summary := distance.BuildDistanceResults(req.UserLocation, positions, identifiers)
	fleets := distance.BuildGroupProximity(req.UserLocation, positions, req.Groups)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"fleets":  fleets,
	})
}

func (s *Server) rankAircraft(w http.ResponseWriter, r *http.Request, loc distance.UserLocation, rawCallsigns, rawIcao24s []string) (distance.Summary, bool) {
	if !geo.ValidCoordinates(loc.Lat, loc.Lon) {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return distance.Summary{}, false
	}

	callsigns := dedupeCallsigns(rawCallsigns)
	icao24s := dedupeIcao24s(rawIcao24s)
	if len(callsigns) == 0 && len(icao24s) == 0 {
		http.Error(w, "No identifiers provided", http.StatusBadRequest)
		return distance.Summary{}, false
	}

	positions, err := s.feed.Positions(r.Context(), callsigns, icao24s)
	if err != nil {
		s.writeFeedError(w, err)
		return distance.Summary{}, false
	}

	identifiers := append(append([]string{}, callsigns...), icao24s...)
	return distance.BuildDistanceResults(loc, positions, identifiers), true
}

func (s *Server) rankFleets(w http.ResponseWriter, r *http.Request, loc distance.UserLocation, groups []distance.FleetGroup) ([]distance.FleetProximity, bool) {
	if !geo.ValidCoordinates(loc.Lat, loc.Lon) {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return nil, false
	}
	if len(groups) == 0 {
		http.Error(w, "No fleet groups provided", http.StatusBadRequest)
		return nil, false
	}

	batch := make([]string, 0)
	for _, group := range groups {
		batch = append(batch, dedupeCallsigns(group.Callsigns)...)
	}

	positions, err := s.feed.Positions(r.Context(), dedupeCallsigns(batch), nil)
	if err != nil {
		s.writeFeedError(w, err)
		return nil, false
	}

	return distance.BuildGroupProximity(loc, positions, groups), true
}

// handleGetSettings returns the current feed settings with secrets
// redacted: the client learns whether a credential is set, never its value.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, redactedSettings(s.settings))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update config.FeedUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.settings.Update(update)
	respondJSON(w, http.StatusOK, redactedSettings(s.settings))
}

func (s *Server) handleUserLocation(w http.ResponseWriter, r *http.Request) {
	var update location.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !geo.ValidCoordinates(update.Latitude, update.Longitude) {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}
	if update.Source != "" && update.Source != location.SourceGPS && update.Source != location.SourceManual {
		http.Error(w, "Invalid location source", http.StatusBadRequest)
		return
	}

	stored := s.locations.Set(update)
	respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	if s.watchlist == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.watchlist.List(r.Context())
	if err != nil {
		log.Printf("Error listing watchlist: %v", err)
		http.Error(w, "Failed to list watchlist", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	if s.watchlist == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	var entry db.WatchedAircraft
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if entry.Icao24 != "" && !opensky.IsValidIcao24(strings.TrimSpace(entry.Icao24)) {
		http.Error(w, "Invalid ICAO24 address", http.StatusBadRequest)
		return
	}
	if entry.Callsign != "" && !opensky.IsValidCallsign(entry.Callsign) {
		http.Error(w, "Invalid callsign", http.StatusBadRequest)
		return
	}
	if entry.Icao24 == "" && entry.Callsign == "" {
		http.Error(w, "Watchlist entry needs an icao24 or a callsign", http.StatusBadRequest)
		return
	}

	stored, err := s.watchlist.Add(r.Context(), entry)
	if err != nil {
		log.Printf("Error adding watchlist entry: %v", err)
		http.Error(w, "Failed to add watchlist entry", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	if s.watchlist == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid watchlist id", http.StatusBadRequest)
		return
	}

	if err := s.watchlist.Remove(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Watchlist entry not found", http.StatusNotFound)
			return
		}
		log.Printf("Error removing watchlist entry: %v", err)
		http.Error(w, "Failed to remove watchlist entry", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleListFleets(w http.ResponseWriter, r *http.Request) {
	if s.fleets == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	groups, err := s.fleets.ListGroups(r.Context())
	if err != nil {
		log.Printf("Error listing fleet groups: %v", err)
		http.Error(w, "Failed to list fleet groups", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fleets": groups,
		"count":  len(groups),
	})
}

func (s *Server) handleSaveFleet(w http.ResponseWriter, r *http.Request) {
	if s.fleets == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	var group distance.FleetGroup
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		http.Error(w, "Fleet group needs a name", http.StatusBadRequest)
		return
	}
	for _, callsign := range group.Callsigns {
		if !opensky.IsValidCallsign(callsign) {
			http.Error(w, fmt.Sprintf("Invalid callsign %q", callsign), http.StatusBadRequest)
			return
		}
	}

	if err := s.fleets.SaveGroup(r.Context(), group); err != nil {
		log.Printf("Error saving fleet group: %v", err)
		http.Error(w, "Failed to save fleet group", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleDeleteFleet(w http.ResponseWriter, r *http.Request) {
	if s.fleets == nil {
		http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.fleets.DeleteGroup(r.Context(), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Fleet group not found", http.StatusNotFound)
			return
		}
		log.Printf("Error deleting fleet group: %v", err)
		http.Error(w, "Failed to delete fleet group", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Helper functions

// writeFeedError maps feed error kinds to HTTP statuses.
func (s *Server) writeFeedError(w http.ResponseWriter, err error) {
	switch {
	case opensky.IsInvalidFormat(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case opensky.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case opensky.IsTimeout(err):
		log.Printf("Feed timeout: %v", err)
		http.Error(w, "Feed request timed out", http.StatusGatewayTimeout)
	case opensky.IsAuthError(err), opensky.IsUnavailable(err):
		log.Printf("Feed unavailable: %v", err)
		http.Error(w, "Feed unavailable", http.StatusBadGateway)
	default:
		log.Printf("Unexpected feed error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// dedupeCallsigns normalizes (trim, uppercase), drops blanks, and removes
// duplicates while preserving order.
func dedupeCallsigns(callsigns []string) []string {
	seen := make(map[string]struct{}, len(callsigns))
	out := make([]string, 0, len(callsigns))
	for _, callsign := range callsigns {
		normalized := opensky.NormalizeCallsign(callsign)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// dedupeIcao24s normalizes (trim, lowercase), drops blanks, and removes
// duplicates while preserving order.
func dedupeIcao24s(icao24s []string) []string {
	seen := make(map[string]struct{}, len(icao24s))
	out := make([]string, 0, len(icao24s))
	for _, icao24 := range icao24s {
		normalized := strings.ToLower(strings.TrimSpace(icao24))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// redactedSettings is the settings payload with secrets reduced to a
// configured/empty marker.
func redactedSettings(settings *config.FeedSettings) map[string]interface{} {
	cfg := settings.Feed()
	return map[string]interface{}{
		"baseUrl":      cfg.BaseURL,
		"authUrl":      cfg.AuthURL,
		"authMode":     cfg.AuthMode(),
		"username":     redact(cfg.Username),
		"password":     redact(cfg.Password),
		"clientId":     redact(cfg.ClientID),
		"clientSecret": redact(cfg.ClientSecret),
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "configured"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
