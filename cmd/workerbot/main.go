// Package main is the entry point for the shift-monitoring service: it
// loads configuration, wires the store/supervisor/API façade together, and
// blocks until SIGINT/SIGTERM trigger a graceful shutdown.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"pvz-shift-monitor/internal/api"
	"pvz-shift-monitor/internal/cleanup"
	"pvz-shift-monitor/internal/domain/geofilter"
	"pvz-shift-monitor/internal/infra/config"
	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/notify"
	"pvz-shift-monitor/internal/store"
	"pvz-shift-monitor/internal/supervisor"
)

const retentionDays = 30

func main() {
	log.SetFlags(0)
	log.SetPrefix(time.Now().Format("2006-01-02 15:04:05 "))

	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := config.Load(*envPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	env := config.Env()

	logger.Init(env.LogLevel)
	logger.SetWriters(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   env.LogPath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}), nil)
	for _, msg := range config.Warnings() {
		logger.Warnf("config: %s", msg)
	}

	st, err := store.Open(env.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	geo, err := geofilter.New()
	if err != nil {
		log.Fatalf("failed to load geo filter dictionaries: %v", err)
	}

	var sender notify.Sender
	if env.BotToken != "" {
		sender = notify.NewBotSender(env.BotToken, 25)
	} else {
		logger.Warnf("BOT_TOKEN not set, notifications are disabled")
	}

	sup := supervisor.New()
	apiServer := api.New(st, sup, geo, sender)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	sched := cleanup.New(st, retentionDays)
	go sched.Run(cleanupCtx)

	seedBlacklistChat(ctx, st, env.BlacklistChat)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- apiServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Infof("workerbot: shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			logger.Errorf("workerbot: api server failed: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("workerbot: api shutdown: %v", err)
	}
	cancelCleanup()

	logger.Infof("workerbot: graceful shutdown complete")
}

// seedBlacklistChat registers the configured default blacklist chat on
// first run, so a fresh deployment has at least one scope to search.
func seedBlacklistChat(ctx context.Context, st *store.Store, chatUsername string) {
	if chatUsername == "" {
		return
	}
	existing, err := st.ListBlacklistChats(ctx, chatUsername)
	if err != nil {
		logger.Warnf("workerbot: seed blacklist chat: %v", err)
		return
	}
	if len(existing) > 0 {
		return
	}
	if err := st.AddBlacklistChat(ctx, store.BlacklistChatEntry{ChatUsername: chatUsername}); err != nil {
		logger.Warnf("workerbot: seed blacklist chat: %v", err)
	}
}
