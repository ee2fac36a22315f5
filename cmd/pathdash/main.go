package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pathdash/internal/config"
	"pathdash/internal/engine"
	"pathdash/internal/geo"
	"pathdash/internal/location"
	"pathdash/internal/path"
	"pathdash/internal/prefs"
	"pathdash/internal/repository"
	"pathdash/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the preferences database")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := prefs.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open preferences database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client := path.NewClient(cfg.APIBaseURL, cfg.AlertsURL, cfg.AlertsRTURL, logger)
	repo := repository.New(client, cfg.ArrivalsInterval.Std(), cfg.AlertsInterval.Std(), logger)

	// An empty arrivals payload usually means the feed hiccuped; reloading
	// everything is how it recovers.
	eng := engine.New(cfg.RederiveInterval.Std(), func() {
		repo.InvalidateStations()
		repo.Refresh()
	}, logger)

	manual := location.NewManual()
	sources := []location.Source{manual}
	if cfg.DefaultLat != engine.DefaultLocation.Lat || cfg.DefaultLon != engine.DefaultLocation.Lon {
		// The operator pinned this install to a spot; treat it as a fix.
		sources = append(sources, location.NewStatic(geo.Coordinate{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon}))
	}

	go eng.Run(ctx, engine.Inputs{
		Locations: location.Merge(ctx, sources...),
		Stations:  repo.WatchStations(ctx),
		Arrivals:  repo.PollArrivals(ctx),
		Alerts:    repo.PollAlerts(ctx),
	})

	srv := server.New(cfg.Port, eng, store, manual, repo, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
