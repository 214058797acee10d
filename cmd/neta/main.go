package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/netaai/neta-chat/internal/ai"
	"github.com/netaai/neta-chat/internal/auth"
	"github.com/netaai/neta-chat/internal/chat"
	"github.com/netaai/neta-chat/internal/config"
	"github.com/netaai/neta-chat/internal/db"
	"github.com/netaai/neta-chat/internal/observability"
	"github.com/netaai/neta-chat/internal/session"
	"github.com/netaai/neta-chat/internal/settings"
	"github.com/netaai/neta-chat/internal/store/rabbitmq"
)

func fatal(msg string, err error) {
	observability.Logger().Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	// stdout belongs to the conversation
	observability.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg := config.Load()
	log := observability.Logger()

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		fatal("db open", err)
	}
	if err := db.Migrate(gdb, &auth.User{}, &session.Profile{}, &chat.Chat{}, &chat.Message{}); err != nil {
		fatal("db migrate", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identity := auth.NewProvider(gdb, cfg.JWTSecret)
	sessions := session.NewStore()
	bridge := session.NewBridge(identity, sessions, session.NewProfileRepo(gdb))
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("auth bridge stopped", "err", err)
		}
	}()

	var activity chat.ActivityPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Warn("activity publishing disabled", "err", err)
		} else {
			defer pub.Close()
			activity = pub
		}
	}

	functions := ai.NewFunctionsClient(cfg.FunctionsURL, sessions)
	chats := chat.NewStore()
	svc := chat.NewService(chat.NewRepo(gdb, sessions), chats, functions, functions, chat.Options{
		Activity:       activity,
		SerializeSends: cfg.SerializeSends,
	})

	prefs, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		log.Warn("using default settings", "err", err)
	}

	r := &repl{
		ctx:      ctx,
		cfg:      cfg,
		identity: identity,
		sessions: sessions,
		chats:    chats,
		svc:      svc,
		prefs:    prefs,
		out:      os.Stdout,
	}
	r.run(os.Stdin)
}
