package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/NicolasHaas/chatroom/pkg/datastore"
	"github.com/NicolasHaas/chatroom/pkg/logging"
	"github.com/NicolasHaas/chatroom/pkg/server"
	"github.com/NicolasHaas/chatroom/pkg/version"
)

func main() {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "YAML config file path")
	addr := flag.String("addr", "", "TCP bind address (overrides config)")
	accountsDB := flag.String("accounts-db", "", "accounts SQLite database path (overrides config)")
	messagesDB := flag.String("messages-db", "", "message log SQLite database path (overrides config)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	cfg, err := server.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *accountsDB != "" {
		cfg.AccountsDB = *accountsDB
	}
	if *messagesDB != "" {
		cfg.MessagesDB = *messagesDB
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	slog.Info("chatroom server starting", "version", version.String())

	accounts, err := datastore.OpenAccounts(cfg.AccountsDB)
	if err != nil {
		slog.Error("open accounts database", "err", err)
		os.Exit(1)
	}
	messages, err := datastore.OpenMessages(cfg.MessagesDB)
	if err != nil {
		_ = accounts.Close()
		slog.Error("open messages database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Accounts: accounts, Messages: messages})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
