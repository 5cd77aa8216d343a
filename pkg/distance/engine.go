// Package distance ranks aircraft positions by great-circle distance from
// a user location. All functions are pure: they never mutate their inputs
// and hold no state, so results are recomputed on every request.
package distance

import (
	"sort"
	"strings"

	"github.com/unklstewy/opensky-prox/pkg/geo"
)

// UserLocation is the reference point distances are measured from.
type UserLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position is one aircraft's last-known position as fed to the engine.
type Position struct {
	Callsign   string  `json:"callsign"`
	Icao24     string  `json:"icao24,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltitudeM  float64 `json:"altitude_m"`
	LastUpdate string  `json:"last_update"`
}

// Result is a resolved identifier with its computed distance.
type Result struct {
	Callsign   string  `json:"callsign"`
	Icao24     string  `json:"icao24,omitempty"`
	DistanceKm float64 `json:"distance_km"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltitudeM  float64 `json:"altitude_m"`
	LastUpdate string  `json:"last_update"`
}

// Summary is the outcome of one ranking request.
type Summary struct {
	// Results is sorted ascending by distance.
	Results []Result `json:"results"`

	// Missing holds normalized identifiers absent from the position set.
	Missing []string `json:"missing"`

	// Closest is the nearest result, or nil when nothing resolved.
	Closest *Result `json:"closest"`
}

// FleetGroup names a set of callsigns to be ranked together.
type FleetGroup struct {
	Name      string   `json:"name"`
	Callsigns []string `json:"callsigns"`
}

// FleetProximity is the per-group aggregation result.
type FleetProximity struct {
	GroupName       string   `json:"group_name"`
	ClosestAircraft *Result  `json:"closest_aircraft"`
	MembersRanked   []Result `json:"members_ranked"`
	Missing         []string `json:"missing"`
}

// NormalizeCallsign trims whitespace and uppercases an identifier.
func NormalizeCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// BuildDistanceResults resolves each requested identifier against the
// position set, computes distances from the user location, and returns the
// results sorted ascending by distance.
//
// Identifiers match case-insensitively against callsigns (uppercased) and
// ICAO24 addresses (lowercased). When multiple positions share a key, the
// last one wins. Unresolved identifiers are reported in Missing in their
// normalized form. Duplicate identifiers each produce their own result row;
// de-duplication is the caller's job. The sort is stable, so equal
// distances keep first-resolved order.
func BuildDistanceResults(loc UserLocation, positions []Position, identifiers []string) Summary {
	lookup := make(map[string]Position, len(positions)*2)
	for _, pos := range positions {
		lookup[strings.ToUpper(pos.Callsign)] = pos
		if pos.Icao24 != "" {
			lookup[strings.ToLower(pos.Icao24)] = pos
		}
	}

	results := make([]Result, 0, len(identifiers))
	missing := make([]string, 0)

	for _, identifier := range identifiers {
		normalized := NormalizeCallsign(identifier)
		entry, found := lookup[normalized]
		if !found {
			entry, found = lookup[strings.ToLower(strings.TrimSpace(identifier))]
		}
		if !found {
			missing = append(missing, normalized)
			continue
		}

		results = append(results, Result{
			Callsign:   strings.ToUpper(entry.Callsign),
			Icao24:     entry.Icao24,
			DistanceKm: geo.DistanceKm(loc.Lat, loc.Lon, entry.Lat, entry.Lon),
			Lat:        entry.Lat,
			Lon:        entry.Lon,
			AltitudeM:  entry.AltitudeM,
			LastUpdate: entry.LastUpdate,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	summary := Summary{Results: results, Missing: missing}
	if len(results) > 0 {
		closest := results[0]
		summary.Closest = &closest
	}
	return summary
}

// BuildGroupProximity runs BuildDistanceResults independently for each
// fleet group. Groups may overlap in membership; each is resolved against
// the full position set.
func BuildGroupProximity(loc UserLocation, positions []Position, groups []FleetGroup) []FleetProximity {
	out := make([]FleetProximity, 0, len(groups))
	for _, group := range groups {
		summary := BuildDistanceResults(loc, positions, group.Callsigns)
		out = append(out, FleetProximity{
			GroupName:       group.Name,
			ClosestAircraft: summary.Closest,
			MembersRanked:   summary.Results,
			Missing:         summary.Missing,
		})
	}
	return out
}
