package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emersion/go-message/mail"
	"github.com/joho/godotenv"

	"github.io/infrasutra/databoxmail/internal/compose"
	"github.io/infrasutra/databoxmail/internal/config"
	"github.io/infrasutra/databoxmail/internal/dispatch"
	"github.io/infrasutra/databoxmail/internal/ledger"
	"github.io/infrasutra/databoxmail/internal/report"
	"github.io/infrasutra/databoxmail/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(logOutput(cfg.Transport), &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.CheckCRL {
		logger.Warn("certificate revocation check is turned off")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("forwarding failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetLocation(loc)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	l, err := ledger.Load(cfg.LedgerPath)
	if err != nil {
		return err
	}
	logger.Info("ledger loaded", "path", l.Path(), "forwarded", l.Len())

	tr, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}

	sender, err := mail.ParseAddress(cfg.Sender)
	if err != nil {
		return err
	}

	d := &dispatch.Dispatcher{
		Store:             db,
		Ledger:            l,
		Composer:          compose.New(cfg.Sender, loc, report.New(cfg.CheckCRL)),
		Transport:         tr,
		Sender:            sender.Address,
		RecipientSent:     cfg.RecipientSent,
		RecipientReceived: cfg.RecipientReceived,
		Logger:            logger,
	}

	summary, err := d.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("forwarding complete", "run_id", summary.RunID, "accounts", summary.Accounts, "sent", summary.Sent, "skipped", summary.Skipped)
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load(), nil
}

// logOutput keeps log lines out of the message stream when messages are
// printed to stdout.
func logOutput(transport string) io.Writer {
	if transport == config.TransportStdout {
		return os.Stderr
	}
	return os.Stdout
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
