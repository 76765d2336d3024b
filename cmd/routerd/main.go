// routerd serves the client routing agent. It discovers specialist agents
// via their cards, opens sessions with them, and forwards user queries,
// exposing the same HTTP surface as the specialists so it can itself be
// delegated to.
//
// Example:
//
//	BOOKING_ADDR=:8002 \
//	BOOKING_PUBLIC_BASE_URL=http://localhost:8002 \
//	BOOKING_SESSION_API_BASE=http://localhost:8001 \
//	BOOKING_DISCOVERY_URLS=http://localhost:8001/bus_booking_agent,http://localhost:8001/movie_ticket_agent \
//	go run ./cmd/routerd
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

	"github.com/Protocol-Lattice/booking-agents/src/audit"
	"github.com/Protocol-Lattice/booking-agents/src/config"
	"github.com/Protocol-Lattice/booking-agents/src/discovery"
	"github.com/Protocol-Lattice/booking-agents/src/router"
	"github.com/Protocol-Lattice/booking-agents/src/service"
	"github.com/Protocol-Lattice/booking-agents/src/session"
)

var flagAddr = flag.String("addr", "", "Listen address (overrides BOOKING_ADDR)")

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

	if len(profile.DiscoveryURLs) == 0 {
		logger.Warn("no BOOKING_DISCOVERY_URLS configured, router has no specialists to delegate to")
	}

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
	}

	auditLog, err := audit.Connect(ctx, profile.MongoURL, logger)
	if err != nil {
		logger.Error("audit log init failed", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close(ctx)

	routing, err := router.New(router.Options{
		Model:          model,
		Cards:          discovery.NewCardClient(logger),
		DiscoveryURLs:  profile.DiscoveryURLs,
		SessionAPIBase: profile.SessionAPIBase,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("router init failed", "error", err)
		os.Exit(1)
	}

	srv := service.New(service.Options{
		Store:         store,
		Audit:         auditLog,
		PublicBaseURL: profile.PublicBaseURL,
		Logger:        logger,
	})
	srv.Host(routing)

	go func() {
		logger.Info("router service listening", "addr", profile.Addr, "discovery_urls", profile.DiscoveryURLs)
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
