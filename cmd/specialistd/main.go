// specialistd serves the bus and movie booking specialists over HTTP,
// together with their agent cards.
//
// Configuration comes from BOOKING_* environment variables; see
// src/config. Examples:
//
//	BOOKING_MODEL_PROVIDER=gemini BOOKING_MODEL_API_KEY=... go run ./cmd/specialistd
//	go run ./cmd/specialistd -addr :8001 -utcp
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"

	agent "github.com/Protocol-Lattice/booking-agents"
	"github.com/Protocol-Lattice/booking-agents/src/audit"
	"github.com/Protocol-Lattice/booking-agents/src/booking"
	"github.com/Protocol-Lattice/booking-agents/src/config"
	"github.com/Protocol-Lattice/booking-agents/src/service"
	"github.com/Protocol-Lattice/booking-agents/src/session"
)

var (
	flagAddr = flag.String("addr", "", "Listen address (overrides BOOKING_ADDR)")
	flagUTCP = flag.Bool("utcp", false, "Resolve booking tools through an in-process UTCP provider")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	profile, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *flagAddr != "" {
		profile.Addr = *flagAddr
	}

	level := slog.LevelInfo
	if profile.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	model, err := profile.NewModel(ctx)
	if err != nil {
		logger.Error("model init failed", "provider", profile.ModelProvider, "error", err)
		os.Exit(1)
	}

	var store session.Store
	if profile.DatabaseURL != "" {
		pg, err := session.NewPostgresStore(ctx, profile.DatabaseURL)
		if err != nil {
			logger.Error("postgres store init failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		store = session.NewMemoryStore()
		logger.Warn("no BOOKING_DATABASE_URL set, sessions are in-memory only")
	}

	auditLog, err := audit.Connect(ctx, profile.MongoURL, logger)
	if err != nil {
		logger.Error("audit log init failed", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close(ctx)

	busTools, movieTools := booking.BusTools(), booking.MovieTools()
	if *flagUTCP {
		client, err := utcp.NewUTCPClient(ctx, nil, nil, nil)
		if err != nil {
			logger.Error("utcp client init failed", "error", err)
			os.Exit(1)
		}
		if busTools, err = agent.ResolveToolsViaUTCP(ctx, client, "bus_booking", busTools); err != nil {
			logger.Error("utcp bus tool registration failed", "error", err)
			os.Exit(1)
		}
		if movieTools, err = agent.ResolveToolsViaUTCP(ctx, client, "movie_booking", movieTools); err != nil {
			logger.Error("utcp movie tool registration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("booking tools resolved through utcp provider")
	}

	busAgent, err := booking.NewBusAgent(model, busTools, logger)
	if err != nil {
		logger.Error("bus agent init failed", "error", err)
		os.Exit(1)
	}
	movieAgent, err := booking.NewMovieAgent(model, movieTools, logger)
	if err != nil {
		logger.Error("movie agent init failed", "error", err)
		os.Exit(1)
	}

	srv := service.New(service.Options{
		Store:         store,
		Audit:         auditLog,
		PublicBaseURL: profile.PublicBaseURL,
		Logger:        logger,
	})
	srv.Host(service.NewSpecialist(busAgent, booking.BusCapabilities))
	srv.Host(service.NewSpecialist(movieAgent, booking.MovieCapabilities))

	go func() {
		logger.Info("specialist service listening", "addr", profile.Addr, "base_url", profile.PublicBaseURL)
		if err := srv.Start(profile.Addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
