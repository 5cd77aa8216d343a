// OpenSky Prox Web Server
// Serves the REST API: live telemetry lookups, distance rankings, and
// watchlist/fleet persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/opensky-prox/internal/db"
	"github.com/unklstewy/opensky-prox/internal/location"
	"github.com/unklstewy/opensky-prox/pkg/config"
	"github.com/unklstewy/opensky-prox/pkg/opensky"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	settings  *config.FeedSettings
	feed      *opensky.Client
	locations *location.Store
	watchlist *db.WatchlistRepository
	fleets    *db.FleetRepository
	startedAt time.Time
}

func main() {
	flag.Parse()

	log.Println("🚀 Starting OpenSky Prox server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	settings := config.NewFeedSettings(cfg.Feed)
	feed := opensky.NewClient(settings)

	srv := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		settings:  settings,
		feed:      feed,
		locations: location.NewStore(),
		startedAt: time.Now(),
	}

	// Persistence is optional: without a database the server still serves
	// telemetry and distance rankings, just no watchlist or fleets.
	if cfg.Database.Enabled {
		database, err := db.Connect(cfg.Database)
		if err != nil {
			log.Printf("⚠️  Database unavailable, persistence disabled: %v", err)
		} else {
			defer database.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := database.InitSchema(ctx); err != nil {
				log.Printf("⚠️  Schema init failed: %v", err)
			}
			cancel()

			srv.watchlist = db.NewWatchlistRepository(database)
			srv.fleets = db.NewFleetRepository(database)
			log.Println("✅ Connected to database")
		}
	}

	srv.setupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("📡 Server listening on http://%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("   Feed: %s (auth: %s)", settings.Feed().BaseURL, settings.Feed().AuthMode())

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n👋 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped")
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/aircraft/{icao24}", s.handleGetAircraftByIcao24)
		r.Get("/aircraft/callsign/{callsign}", s.handleGetAircraftByCallsign)
		r.Post("/aircraft/validate", s.handleValidateCallsigns)

		r.Post("/distance/aircraft", s.handleDistanceAircraft)
		r.Post("/distance/fleets", s.handleDistanceFleets)
		r.Post("/distance/compute", s.handleDistanceCompute)

		r.Get("/settings/api", s.handleGetSettings)
		r.Post("/settings/api", s.handleUpdateSettings)

		r.Post("/user/location", s.handleUserLocation)

		r.Get("/watchlist", s.handleListWatchlist)
		r.Post("/watchlist", s.handleAddWatchlist)
		r.Delete("/watchlist/{id}", s.handleRemoveWatchlist)

		r.Get("/fleets", s.handleListFleets)
		r.Post("/fleets", s.handleSaveFleet)
		r.Delete("/fleets/{name}", s.handleDeleteFleet)
	})
}
