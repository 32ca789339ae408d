package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bouncehub/internal/commentary"
	"bouncehub/internal/commentary/anthropic"
	"bouncehub/internal/event"
	"bouncehub/internal/hub"
	"bouncehub/internal/identity"
	"bouncehub/internal/location"
	"bouncehub/internal/notify"
	"bouncehub/internal/platform/config"
	"bouncehub/internal/platform/httpserver"
	"bouncehub/internal/platform/logger"
	platformredis "bouncehub/internal/platform/redis"
	"bouncehub/internal/presence"
	"bouncehub/internal/transport/ws"
)

// main wires dependencies and owns the process lifecycle. Everything with
// behavior lives in internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	bus, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	if bus != nil {
		defer bus.Close()
	}

	var (
		directory event.Directory
		locations location.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("opening database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("pinging database", "error", err)
			os.Exit(1)
		}
		directory = event.NewPostgresDirectory(db)
		locations = location.NewPostgresStore(db)
	} else {
		log.Warn("no DATABASE_URL, using in-memory stores")
		directory = event.NewMemoryDirectory()
		locations = location.NewMemoryStore()
	}

	var busConn *redis.Client
	if bus != nil {
		busConn = bus.Client
	}
	connections := hub.New(log, busConn)

	var gen commentary.Generator
	if cfg.AnthropicAPIKey != "" {
		gen = anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	} else {
		log.Warn("no ANTHROPIC_API_KEY, commentary disabled")
	}
	engines := commentary.NewRegistry(log, gen, presence.NewCommentaryOutput(connections), commentary.DefaultConfig())
	defer engines.Shutdown()

	deps := presence.Deps{
		Log:       log,
		Hub:       connections,
		Engines:   engines,
		Rosters:   presence.NewRosters(),
		Locations: locations,
		Directory: directory,
		Notifier:  notify.NewLogNotifier(log),
	}

	verifier := identity.NewJWTVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
	handler := ws.NewHandler(log, deps, verifier, cfg.PublicBaseURL)

	var health ws.HealthFunc
	if bus != nil {
		health = bus.Health
	}
	router := ws.NewRouter(log, handler, health)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := connections.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
