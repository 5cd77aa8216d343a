// Package opensky provides a rate-limited, cached client for the OpenSky
// Network live-state API.
//
// The client fetches full state-vector snapshots from /states/all,
// normalizes the raw fixed-position arrays into typed telemetry, and
// serves per-aircraft lookups from a TTL cache. Concurrent callers are
// coalesced onto a single in-flight request, and snapshot fetches are
// spaced to respect OpenSky's rate limits.
//
// API documentation: https://openskynetwork.github.io/opensky-api/
package opensky

import (
	"errors"
	"strings"
)

// Telemetry is one aircraft's last-known state, normalized from a raw
// state vector. A Telemetry value is only constructed when every required
// field deserializes successfully; it is immutable once built and is
// superseded, not mutated, by the next snapshot.
type Telemetry struct {
	// Icao24 is the 24-bit transponder address as 6 lowercase hex chars
	Icao24 string `json:"icao24"`

	// Callsign is the reported flight identifier, trimmed; nil when the
	// aircraft reports none
	Callsign *string `json:"callsign"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// AltitudeM is barometric altitude in meters
	AltitudeM float64 `json:"altitude_m"`

	// VelocityMps is ground speed in meters per second
	VelocityMps float64 `json:"velocity_mps"`

	// HeadingDeg is the true track in degrees (0-360)
	HeadingDeg float64 `json:"heading_deg"`

	// LastContact is the feed-reported last update, epoch seconds
	LastContact int64 `json:"last_contact"`
}

// snapshot mirrors the JSON shape returned by /states/all. Each state row
// is a fixed-position heterogeneous array.
type snapshot struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// State vector positions used during normalization.
// See https://openskynetwork.github.io/opensky-api/rest.html#response
const (
	stateIcao24      = 0
	stateCallsign    = 1
	stateLastContact = 4
	stateLongitude   = 5
	stateLatitude    = 6
	stateAltitude    = 7
	stateVelocity    = 9
	stateHeading     = 10
)

var errIncompleteState = errors.New("incomplete state vector")

// normalizeState converts a raw state row into Telemetry. Every required
// position must type-check; otherwise the row is rejected as a whole so
// partial records never reach the cache.
func normalizeState(state []any) (Telemetry, error) {
	icao24, okID := stringAt(state, stateIcao24)
	lastContact, okLC := numberAt(state, stateLastContact)
	longitude, okLon := numberAt(state, stateLongitude)
	latitude, okLat := numberAt(state, stateLatitude)
	altitude, okAlt := numberAt(state, stateAltitude)
	velocity, okVel := numberAt(state, stateVelocity)
	heading, okHdg := numberAt(state, stateHeading)

	if !okID || !okLC || !okLon || !okLat || !okAlt || !okVel || !okHdg {
		return Telemetry{}, errIncompleteState
	}

	t := Telemetry{
		Icao24:      strings.ToLower(icao24),
		Latitude:    latitude,
		Longitude:   longitude,
		AltitudeM:   altitude,
		VelocityMps: velocity,
		HeadingDeg:  heading,
		LastContact: int64(lastContact),
	}

	// Blank callsigns stay nil; the feed pads them with spaces.
	if callsign, ok := stringAt(state, stateCallsign); ok {
		if trimmed := strings.TrimSpace(callsign); trimmed != "" {
			t.Callsign = &trimmed
		}
	}

	return t, nil
}

func stringAt(state []any, index int) (string, bool) {
	if index >= len(state) {
		return "", false
	}
	s, ok := state[index].(string)
	return s, ok
}

func numberAt(state []any, index int) (float64, bool) {
	if index >= len(state) {
		return 0, false
	}
	n, ok := state[index].(float64)
	return n, ok
}

// stateCallsignValue returns the trimmed, uppercased callsign of a raw
// state row, or "" when the row reports none.
func stateCallsignValue(state []any) string {
	callsign, ok := stringAt(state, stateCallsign)
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(callsign))
}
