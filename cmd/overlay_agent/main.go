package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
	"github.com/dgnsrekt/tv_trader/internal/api"
	"github.com/dgnsrekt/tv_trader/internal/broker"
	"github.com/dgnsrekt/tv_trader/internal/chartbridge"
	"github.com/dgnsrekt/tv_trader/internal/config"
	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/engine"
	"github.com/dgnsrekt/tv_trader/internal/feed"
	"github.com/dgnsrekt/tv_trader/internal/journal"
	"github.com/dgnsrekt/tv_trader/internal/netutil"
	"github.com/dgnsrekt/tv_trader/internal/notify"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
	"github.com/dgnsrekt/tv_trader/internal/statestore"
	"github.com/dgnsrekt/tv_trader/internal/stream"
	"github.com/dgnsrekt/tv_trader/internal/ticks"
)

// fallbackAddrs is tried in order when the preferred bind address is taken.
var fallbackAddrs = []string{"127.0.0.1:8288", "127.0.0.1:8289", "127.0.0.1:8290", "127.0.0.1:8291"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("overlay_agent config loaded",
		"bind_addr", cfg.BindAddr,
		"broker_base_url", cfg.BrokerBaseURL,
		"feed_url", cfg.FeedURL,
		"state_dir", cfg.StateDir,
		"journal_dir", cfg.JournalDir,
		"bridge_enabled", cfg.BridgeEnabled,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, fallbackAddrs, cfg.AutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	stateStore, err := statestore.NewStore(cfg.StateDir)
	if err != nil {
		slog.Error("failed to create state store", "dir", cfg.StateDir, "error", err)
		os.Exit(1)
	}

	acctStore, err := accounts.NewStore(stateStore)
	if err != nil {
		slog.Error("failed to load account configs", "error", err)
		os.Exit(1)
	}

	journalWriter := journal.NewWriter(cfg.JournalDir, cfg.BufferSize, cfg.MaxFileSizeMB)
	defer func() {
		if err := journalWriter.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}()

	var notifier *notify.Notifier
	if cfg.NotifyEndpoint != "" {
		notifier = notify.New(cfg.NotifyEndpoint, &http.Client{Timeout: 10 * time.Second})
	}

	table := ticks.Parse(cfg.TickTable)
	surface := overlay.NewSurface(table)
	gateway := broker.NewClient(cfg.BrokerBaseURL, time.Duration(cfg.BrokerTimeoutMS)*time.Millisecond)
	events := stream.NewBroker()

	eng := engine.New(table, surface, acctStore, gateway, journalWriter, notifier, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedClient := feed.NewClient(cfg.FeedURL, feed.Handlers{
		Accounts:  eng.HandleAccounts,
		Positions: eng.HandlePositions,
		Orders:    eng.HandleOrders,
		Quote:     eng.HandleQuote,
	})
	go func() {
		if err := feedClient.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("broker feed stopped", "error", err)
		}
	}()

	if cfg.BridgeEnabled {
		bridge := chartbridge.New(cfg, func(frame coords.Frame) {
			if _, err := eng.SetViewport(ctx, frame); err != nil {
				slog.Debug("viewport update rejected", "error", err)
			}
		})
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("chart bridge stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(eng, events)}

	go func() {
		slog.Info("overlay_agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("overlay_agent server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("overlay_agent shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
