package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"tutorly/internal/app"
	"tutorly/internal/config"
	"tutorly/internal/server"
	"tutorly/internal/util"
	"tutorly/pkg/ai"
	"tutorly/pkg/quota"
	"tutorly/pkg/storage"
	"tutorly/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	guestTTL, err := config.ParseTTL(cfg.GuestSessionTTL)
	if err != nil {
		log.Fatalf("failed to parse guest session TTL: %v", err)
	}
	presignTTL, err := config.ParseTTL(cfg.PresignTTL)
	if err != nil {
		log.Fatalf("failed to parse presign TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	maxConns := cfg.DBMaxConns
	if maxConns <= 0 {
		maxConns = 20
	}
	gormStore, err := store.Open(cfg.DatabaseURL, maxConns)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}
	guests, err := store.NewGuestStore(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("failed to init guest sessions: %v", err)
	}
	defer guests.Close()

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	}

	appCore := app.New(app.Config{
		Store:           gormStore,
		Ledger:          quota.NewLedger(gormStore.DB()),
		Sessions:        sessions,
		Guests:          guests,
		Generator:       ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel),
		Objects:         objects,
		SessionTTL:      sessionTTL,
		GuestSessionTTL: guestTTL,
		SystemPrompt:    cfg.SystemPrompt,
		HistoryLimit:    cfg.HistoryLimit,
		PresignTTL:      presignTTL,
	})

	httpServer, err := server.New(server.Config{
		App:                    appCore,
		RedisAddr:              cfg.RedisAddr,
		RedisPassword:          cfg.RedisPassword,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		ChatRateLimitPerMinute: cfg.ChatRateLimitPerMinute,
		MaxUploadBytes:         cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", addr, err)
	}
	if cfg.MaxConcurrentConns > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConcurrentConns)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
