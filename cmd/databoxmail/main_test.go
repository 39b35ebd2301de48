package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/databoxmail/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestLogOutput(t *testing.T) {
	assert.Equal(t, os.Stderr, logOutput(config.TransportStdout))
	assert.Equal(t, os.Stdout, logOutput(config.TransportSMTP))
	assert.Equal(t, os.Stdout, logOutput(config.TransportMbox))
}

func TestNewTransport(t *testing.T) {
	cfg := config.Config{
		SMTP: config.SMTPConfig{Server: "localhost:25"},
		IMAP: config.IMAPConfig{Server: "localhost:993", Folder: "INBOX"},
		Mbox: config.MboxConfig{Path: filepath.Join(t.TempDir(), "databox.mbox")},
	}

	for _, name := range []string{
		config.TransportSMTP,
		config.TransportIMAP,
		config.TransportMbox,
		config.TransportStdout,
	} {
		t.Run(name, func(t *testing.T) {
			c := cfg
			c.Transport = name

			tr, err := newTransport(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, name, tr.Name())
		})
	}
}

func TestNewTransport_Unknown(t *testing.T) {
	_, err := newTransport(context.Background(), config.Config{Transport: "fax"})
	assert.ErrorIs(t, err, config.ErrUnknownTransport)
}
