package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shbak-bot/internal/bot"
	"shbak-bot/internal/config"
	"shbak-bot/internal/giveaway"
	"shbak-bot/internal/modules/audit"
	"shbak-bot/internal/modules/warnings"
	"shbak-bot/internal/store"
	"shbak-bot/internal/xp"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	st := store.Open(cfg.DataPath, logger)

	auditLogger := audit.NewLogger(logger, cfg.Audit)
	xpEngine := xp.New(cfg.XP, st, logger)
	warningsModule := warnings.New(cfg.Moderation, st, auditLogger, logger)
	giveawayManager := giveaway.New(logger)

	botSvc, err := bot.New(cfg, logger, st, xpEngine, warningsModule, giveawayManager, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
