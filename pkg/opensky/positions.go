package opensky

import (
	"context"
	"time"

	"github.com/unklstewy/opensky-prox/pkg/distance"
)

// Position converts telemetry into the shape the distance engine expects.
// Aircraft without a callsign fall back to their ICAO24 address so they
// remain addressable in ranking output.
func (t Telemetry) Position() distance.Position {
	callsign := t.Icao24
	if t.Callsign != nil {
		callsign = *t.Callsign
	}
	return distance.Position{
		Callsign:   NormalizeCallsign(callsign),
		Icao24:     t.Icao24,
		Lat:        t.Latitude,
		Lon:        t.Longitude,
		AltitudeM:  t.AltitudeM,
		LastUpdate: time.Unix(t.LastContact, 0).UTC().Format(time.RFC3339),
	}
}

// Positions resolves a mixed identifier set into distance-engine positions.
// The callsign batch shares one snapshot fetch and its error is fatal;
// per-ICAO24 lookups are best effort and individual failures (not
// reporting, malformed row) leave that aircraft out of the result.
func (c *Client) Positions(ctx context.Context, callsigns, icao24s []string) ([]distance.Position, error) {
	positions := make([]distance.Position, 0, len(callsigns)+len(icao24s))

	if len(callsigns) > 0 {
		telemetry, err := c.GetByCallsigns(ctx, callsigns)
		if err != nil {
			return nil, err
		}
		for _, t := range telemetry {
			positions = append(positions, t.Position())
		}
	}

	for _, icao24 := range icao24s {
		t, err := c.GetByIcao24(ctx, icao24)
		if err != nil {
			continue
		}
		positions = append(positions, t.Position())
	}

	return positions, nil
}
