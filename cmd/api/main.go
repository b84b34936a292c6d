package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scorecard-insights-go/internal/auth"
	"scorecard-insights-go/internal/config"
	"scorecard-insights-go/internal/httpapi"
	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/pipeline"
	"scorecard-insights-go/internal/realtime"
	"scorecard-insights-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Environment: cfg.Log.Environment, Level: cfg.Log.Level})
	log.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := store.InstallNotifyTrigger(ctx, db, cfg.Realtime.Channel); err != nil {
		log.WithError(err).Fatal("failed to install change trigger")
	}

	conversations := store.NewConversationStore(db, log)
	catalog := store.NewCachedCatalog(store.NewProductStore(db, log), cfg.Catalog.TTL)
	profiles := store.NewProfileStore(db)

	refresher := pipeline.New(conversations, catalog, cfg.Server.FetchTimeout, log)

	hub := realtime.NewHub(cfg.Server.AllowedOrigins, log)
	go hub.Run(ctx)
	refresher.OnUpdate(func(s pipeline.Snapshot) {
		hub.Broadcast(realtime.Message{Type: "refresh", Generation: s.Generation, State: string(s.State), FetchedAt: s.FetchedAt})
	})

	if _, err := refresher.SetScope(ctx, pipeline.Scope{}); err != nil {
		log.WithError(err).Warn("initial load failed, waiting for changes")
	}

	feed := realtime.NewFeed(realtime.NewPostgresSource(cfg.Database.URL, cfg.Realtime.Channel, log), realtime.FeedOptions{
		SubscribeTimeout: cfg.Realtime.SubscribeTimeout,
		ReconnectBase:    cfg.Realtime.ReconnectBase,
		MaxRetries:       cfg.Realtime.MaxRetries,
	}, log)
	go func() {
		err := feed.Run(ctx, refresher.OnChange(catalog.Invalidate))
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		log.WithError(err).Error("change feed stopped, dashboards will not auto-refresh")
		hub.Broadcast(realtime.Message{Type: "feed_disconnected", Generation: refresher.Snapshot().Generation})
	}()

	api := httpapi.NewServer(httpapi.Options{
		Snapshots: refresher,
		Notifier:  hub,
		Auth:      auth.Middleware(auth.NewVerifier(cfg.Auth.JWTSecret), profiles, log),
		Location:  cfg.Location,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
