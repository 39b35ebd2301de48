// Package imapappend stores each message in an IMAP folder with APPEND instead
// of submitting it over SMTP.
package imapappend

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.io/infrasutra/databoxmail/internal/transport"
)

const dialTimeout = 5 * time.Second

type Config struct {
	Addr     string
	Username string
	Password string
	Folder   string

	// UseTLS dials with implicit TLS; tests use plain connections.
	UseTLS    bool
	TLSConfig *tls.Config
}

type Appender struct {
	cfg    Config
	client *client.Client
	now    func() time.Time
}

func New(cfg Config) *Appender {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &Appender{cfg: cfg, now: time.Now}
}

func (a *Appender) Name() string {
	return "imap"
}

func (a *Appender) Open(_ context.Context) error {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		c   *client.Client
		err error
	)
	if a.cfg.UseTLS {
		c, err = client.DialWithDialerTLS(dialer, a.cfg.Addr, a.cfg.TLSConfig)
	} else {
		c, err = client.DialWithDialer(dialer, a.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", a.cfg.Addr, err)
	}

	if err := c.Login(a.cfg.Username, a.cfg.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("imap login: %w", err)
	}

	a.client = c
	return nil
}

// Send appends msg to the configured folder. The envelope is not used: the
// folder is the destination.
func (a *Appender) Send(_ context.Context, _, _ string, msg []byte) error {
	if a.client == nil {
		return transport.ErrNotOpen
	}
	if err := a.client.Append(a.cfg.Folder, nil, a.now(), bytes.NewBuffer(msg)); err != nil {
		return fmt.Errorf("imap append to %s: %w", a.cfg.Folder, err)
	}
	return nil
}

func (a *Appender) Close() error {
	if a.client == nil {
		return nil
	}
	c := a.client
	a.client = nil
	if err := c.Logout(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}
