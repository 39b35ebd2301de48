package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"gopkg.in/yaml.v3"
)

const (
	TransportSMTP   = "smtp"
	TransportIMAP   = "imap"
	TransportMbox   = "mbox"
	TransportSES    = "ses"
	TransportStdout = "stdout"
)

var (
	ErrMissingSender     = errors.New("sender address is required")
	ErrMissingRecipient  = errors.New("both recipient addresses are required")
	ErrSameRecipients    = errors.New("sent and received recipients must differ")
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrTransportSettings = errors.New("incomplete transport settings")
)

type Config struct {
	DBPath            string `yaml:"db_path"`
	LedgerPath        string `yaml:"ledger_path"`
	Transport         string `yaml:"transport"`
	Sender            string `yaml:"sender"`
	RecipientSent     string `yaml:"recipient_sent"`
	RecipientReceived string `yaml:"recipient_received"`

	// CheckCRL reports whether certificate revocation lists were consulted
	// when the messages were verified.
	CheckCRL bool   `yaml:"check_crl"`
	TimeZone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	SMTP SMTPConfig `yaml:"smtp"`
	IMAP IMAPConfig `yaml:"imap"`
	Mbox MboxConfig `yaml:"mbox"`
	SES  SESConfig  `yaml:"ses"`
}

type SMTPConfig struct {
	Server    string `yaml:"server"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	StartTLS  bool   `yaml:"starttls"`
	HelloName string `yaml:"helo"`

	// TimeoutSeconds bounds each SMTP command and the message submission.
	TimeoutSeconds int `yaml:"timeout"`
}

type IMAPConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Folder   string `yaml:"folder"`
	TLS      bool   `yaml:"tls"`
}

type MboxConfig struct {
	Path string `yaml:"path"`
}

type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Load reads the configuration from the environment on top of the defaults.
func Load() Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFromFile reads a YAML file as the base layer; environment variables
// still take precedence.
func LoadFromFile(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() Config {
	return Config{
		DBPath:     "databox.db",
		LedgerPath: "mailed-message-ids.txt",
		Transport:  TransportSMTP,
		LogLevel:   "info",
		SMTP:       SMTPConfig{Server: "localhost:25", TimeoutSeconds: 30},
		IMAP:       IMAPConfig{Folder: "INBOX", TLS: true},
		Mbox:       MboxConfig{Path: "databox.mbox"},
	}
}

func (c *Config) applyEnv() {
	c.DBPath = getEnvString("DB_PATH", c.DBPath)
	c.LedgerPath = getEnvString("LEDGER_PATH", c.LedgerPath)
	c.Transport = strings.ToLower(getEnvString("TRANSPORT", c.Transport))
	c.Sender = getEnvString("SMTP_SENDER", c.Sender)
	c.RecipientSent = getEnvString("RECIPIENT_SENT", c.RecipientSent)
	c.RecipientReceived = getEnvString("RECIPIENT_RECEIVED", c.RecipientReceived)
	c.CheckCRL = getEnvBool("CHECK_CRL", c.CheckCRL)
	c.TimeZone = getEnvString("TZ", c.TimeZone)
	c.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", c.LogLevel))

	c.SMTP.Server = getEnvString("SMTP_SERVER", c.SMTP.Server)
	c.SMTP.Username = getEnvString("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnvString("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.StartTLS = getEnvBool("SMTP_STARTTLS", c.SMTP.StartTLS)
	c.SMTP.HelloName = getEnvString("SMTP_HELO", c.SMTP.HelloName)
	c.SMTP.TimeoutSeconds = getEnvInt("SMTP_TIMEOUT", c.SMTP.TimeoutSeconds)

	c.IMAP.Server = getEnvString("IMAP_SERVER", c.IMAP.Server)
	c.IMAP.Username = getEnvString("IMAP_USERNAME", c.IMAP.Username)
	c.IMAP.Password = getEnvString("IMAP_PASSWORD", c.IMAP.Password)
	c.IMAP.Folder = getEnvString("IMAP_FOLDER", c.IMAP.Folder)
	c.IMAP.TLS = getEnvBool("IMAP_TLS", c.IMAP.TLS)

	c.Mbox.Path = getEnvString("MBOX_PATH", c.Mbox.Path)

	c.SES.Region = getEnvString("SES_REGION", c.SES.Region)
	c.SES.AccessKeyID = getEnvString("SES_ACCESS_KEY_ID", c.SES.AccessKeyID)
	c.SES.SecretAccessKey = getEnvString("SES_SECRET_ACCESS_KEY", c.SES.SecretAccessKey)
}

// Validate checks the addresses and the settings of the selected transport.
func (c Config) Validate() error {
	if c.Sender == "" {
		return ErrMissingSender
	}
	if _, err := mail.ParseAddress(c.Sender); err != nil {
		return fmt.Errorf("parse sender: %w", err)
	}
	if c.RecipientSent == "" || c.RecipientReceived == "" {
		return ErrMissingRecipient
	}
	for _, rcpt := range []string{c.RecipientSent, c.RecipientReceived} {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("parse recipient %q: %w", rcpt, err)
		}
	}
	if c.RecipientSent == c.RecipientReceived {
		return ErrSameRecipients
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Transport {
	case TransportSMTP:
		if c.SMTP.Server == "" {
			return fmt.Errorf("%w: SMTP_SERVER", ErrTransportSettings)
		}
	case TransportIMAP:
		if c.IMAP.Server == "" || c.IMAP.Username == "" {
			return fmt.Errorf("%w: IMAP_SERVER and IMAP_USERNAME", ErrTransportSettings)
		}
	case TransportMbox:
		if c.Mbox.Path == "" {
			return fmt.Errorf("%w: MBOX_PATH", ErrTransportSettings)
		}
	case TransportSES:
		if c.SES.Region == "" {
			return fmt.Errorf("%w: SES_REGION", ErrTransportSettings)
		}
	case TransportStdout:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}
	return nil
}

// Location resolves TimeZone; empty means the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	return loc, nil
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}
