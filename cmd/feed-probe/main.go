package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/unklstewy/opensky-prox/pkg/config"
	"github.com/unklstewy/opensky-prox/pkg/distance"
	"github.com/unklstewy/opensky-prox/pkg/geo"
	"github.com/unklstewy/opensky-prox/pkg/opensky"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	latFlag    = flag.Float64("lat", 50.1109, "Observer latitude")
	lonFlag    = flag.Float64("lon", 8.6821, "Observer longitude")
	callsigns  = flag.String("callsigns", "", "Comma-separated callsigns to probe")
	icao24Flag = flag.String("icao24", "", "Single ICAO24 address to probe")
)

// main is a one-shot probe to verify OpenSky feed connectivity and the
// distance ranking against live data.
func main() {
	flag.Parse()

	log.Println("OpenSky Feed Probe")
	log.Println("=====================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	settings := config.NewFeedSettings(cfg.Feed)
	client := opensky.NewClient(settings)

	log.Printf("Feed: %s (auth: %s)", settings.Feed().BaseURL, settings.Feed().AuthMode())
	log.Printf("Observer: %.4f, %.4f", *latFlag, *lonFlag)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("Ping: %s", client.Ping(ctx))

	if *icao24Flag != "" {
		probeIcao24(ctx, client, *icao24Flag)
	}

	identifiers := make([]string, 0)
	for _, callsign := range strings.Split(*callsigns, ",") {
		if normalized := opensky.NormalizeCallsign(callsign); normalized != "" {
			identifiers = append(identifiers, normalized)
		}
	}
	if len(identifiers) > 0 {
		probeRanking(ctx, client, identifiers)
	}

	log.Println("=====================================")
	log.Println("Probe complete!")
}

func probeIcao24(ctx context.Context, client *opensky.Client, icao24 string) {
	if !opensky.IsValidIcao24(icao24) {
		log.Fatalf("Invalid ICAO24 address: %s", icao24)
	}

	telemetry, err := client.GetByIcao24(ctx, icao24)
	if err != nil {
		log.Printf("ICAO24 %s lookup failed: %v", icao24, err)
		return
	}

	callsign := "(none)"
	if telemetry.Callsign != nil {
		callsign = *telemetry.Callsign
	}
	log.Printf("\nAircraft %s:", telemetry.Icao24)
	log.Printf("  Callsign: %s", callsign)
	log.Printf("  Position: %.4f, %.4f", telemetry.Latitude, telemetry.Longitude)
	log.Printf("  Altitude: %.0f m", telemetry.AltitudeM)
	log.Printf("  Speed:    %.0f m/s", telemetry.VelocityMps)
	log.Printf("  Heading:  %.0f°", telemetry.HeadingDeg)
	log.Printf("  Distance: %.2f km", geo.DistanceKm(*latFlag, *lonFlag, telemetry.Latitude, telemetry.Longitude))
}

func probeRanking(ctx context.Context, client *opensky.Client, identifiers []string) {
	positions, err := client.Positions(ctx, identifiers, nil)
	if err != nil {
		log.Fatalf("Failed to fetch positions: %v", err)
	}

	summary := distance.BuildDistanceResults(
		distance.UserLocation{Lat: *latFlag, Lon: *lonFlag}, positions, identifiers)

	log.Printf("\nRanked %d of %d identifiers:", len(summary.Results), len(identifiers))
	for i, result := range summary.Results {
		log.Printf("  %d. %-10s %8.2f km  (%.4f, %.4f)  %s",
			i+1, result.Callsign, result.DistanceKm, result.Lat, result.Lon, result.LastUpdate)
	}
	if len(summary.Missing) > 0 {
		log.Printf("Missing: %s", strings.Join(summary.Missing, ", "))
	}
}
