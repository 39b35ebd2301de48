package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DB_PATH", "LEDGER_PATH", "TRANSPORT", "SMTP_SENDER", "RECIPIENT_SENT",
	"RECIPIENT_RECEIVED", "CHECK_CRL", "TZ", "LOG_LEVEL",
	"SMTP_SERVER", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_STARTTLS", "SMTP_HELO", "SMTP_TIMEOUT",
	"IMAP_SERVER", "IMAP_USERNAME", "IMAP_PASSWORD", "IMAP_FOLDER", "IMAP_TLS",
	"MBOX_PATH", "SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY",
}

// clearEnv blanks every key; blank values fall back like unset ones.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func validConfig() Config {
	cfg := defaults()
	cfg.Sender = "forwarder@example.com"
	cfg.RecipientSent = "Sent Databox Msg <archive@example.com>"
	cfg.RecipientReceived = "Received Databox Msg <archive@example.com>"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "databox.db", cfg.DBPath)
	assert.Equal(t, "mailed-message-ids.txt", cfg.LedgerPath)
	assert.Equal(t, TransportSMTP, cfg.Transport)
	assert.Equal(t, "localhost:25", cfg.SMTP.Server)
	assert.Equal(t, 30, cfg.SMTP.TimeoutSeconds)
	assert.Equal(t, "INBOX", cfg.IMAP.Folder)
	assert.True(t, cfg.IMAP.TLS)
	assert.False(t, cfg.CheckCRL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSPORT", "MBOX")
	t.Setenv("SMTP_SENDER", " forwarder@example.com ")
	t.Setenv("CHECK_CRL", "true")
	t.Setenv("SMTP_STARTTLS", "1")
	t.Setenv("SMTP_TIMEOUT", "5")
	t.Setenv("IMAP_TLS", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MBOX_PATH", "/var/mail/databox")

	cfg := Load()
	assert.Equal(t, TransportMbox, cfg.Transport)
	assert.Equal(t, "forwarder@example.com", cfg.Sender)
	assert.True(t, cfg.CheckCRL)
	assert.True(t, cfg.SMTP.StartTLS)
	assert.Equal(t, 5, cfg.SMTP.TimeoutSeconds)
	assert.False(t, cfg.IMAP.TLS)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/mail/databox", cfg.Mbox.Path)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_TIMEOUT", "soon")
	t.Setenv("CHECK_CRL", "maybe")

	cfg := Load()
	assert.Equal(t, 30, cfg.SMTP.TimeoutSeconds)
	assert.False(t, cfg.CheckCRL)
}

func TestLoadFromFile_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "databoxmail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport: imap
sender: forwarder@example.com
recipient_sent: sent@example.com
recipient_received: received@example.com
check_crl: true
imap:
  server: imap.example.com:993
  username: archive
  folder: Databox
`), 0o600))
	t.Setenv("IMAP_FOLDER", "Archive")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, TransportIMAP, cfg.Transport)
	assert.Equal(t, "imap.example.com:993", cfg.IMAP.Server)
	assert.Equal(t, "Archive", cfg.IMAP.Folder)
	assert.True(t, cfg.IMAP.TLS)
	assert.True(t, cfg.CheckCRL)
	assert.Equal(t, "mailed-message-ids.txt", cfg.LedgerPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: [smtp"), 0o600))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid smtp", mutate: func(*Config) {}},
		{name: "valid stdout", mutate: func(c *Config) { c.Transport = TransportStdout }},
		{name: "missing sender", mutate: func(c *Config) { c.Sender = "" }, wantErr: ErrMissingSender},
		{name: "missing recipient", mutate: func(c *Config) { c.RecipientReceived = "" }, wantErr: ErrMissingRecipient},
		{
			name:    "same recipients",
			mutate:  func(c *Config) { c.RecipientReceived = c.RecipientSent },
			wantErr: ErrSameRecipients,
		},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "fax" }, wantErr: ErrUnknownTransport},
		{name: "smtp without server", mutate: func(c *Config) { c.SMTP.Server = "" }, wantErr: ErrTransportSettings},
		{
			name:    "imap without server",
			mutate:  func(c *Config) { c.Transport = TransportIMAP },
			wantErr: ErrTransportSettings,
		},
		{
			name:    "ses without region",
			mutate:  func(c *Config) { c.Transport = TransportSES },
			wantErr: ErrTransportSettings,
		},
		{
			name: "ses with region",
			mutate: func(c *Config) {
				c.Transport = TransportSES
				c.SES.Region = "eu-central-1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_MalformedAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Sender = "not an address"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.RecipientSent = "Sent <broken"
	assert.Error(t, cfg.Validate())
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.TimeZone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.TimeZone = "Mars/Olympus_Mons"
	_, err = cfg.Location()
	assert.Error(t, err)
	assert.Error(t, cfg.Validate())
}
