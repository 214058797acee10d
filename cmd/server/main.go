package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/netaai/neta-chat/internal/activity"
	"github.com/netaai/neta-chat/internal/ai"
	"github.com/netaai/neta-chat/internal/auth"
	"github.com/netaai/neta-chat/internal/chat"
	"github.com/netaai/neta-chat/internal/config"
	"github.com/netaai/neta-chat/internal/db"
	"github.com/netaai/neta-chat/internal/httpapi"
	"github.com/netaai/neta-chat/internal/httpapi/handlers"
	"github.com/netaai/neta-chat/internal/observability"
	"github.com/netaai/neta-chat/internal/session"
	"github.com/netaai/neta-chat/internal/store/redisstore"
)

func fatal(msg string, err error) {
	observability.Logger().Error(msg, "err", err)
	os.Exit(1)
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.ImageModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	return reg
}

func main() {
	cfg := config.Load()
	log := observability.Logger()

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		fatal("db open", err)
	}
	if err := db.Migrate(gdb,
		&auth.User{},
		&session.Profile{},
		&chat.Chat{},
		&chat.Message{},
		&activity.Entry{},
	); err != nil {
		fatal("db migrate", err)
	}

	var media handlers.MediaStore
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		// images are then returned inline as data URLs
		log.Warn("redis unavailable, generated images won't be stored", "addr", cfg.RedisAddr, "err", err)
	} else {
		media = rds
	}
	cancelPing()
	defer rds.Close()

	var act handlers.ActivityLog
	if cfg.RabbitURL != "" {
		act = activity.NewLog(gdb)
	}

	reg := newRegistry(cfg)
	if _, err := reg.Get(context.Background(), cfg.AIProvider, ""); err != nil {
		fatal("ai provider", err)
	}

	h := handlers.NewHandler(gdb, cfg, reg, media, act)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("functions server listening", "addr", srv.Addr, "provider", cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
