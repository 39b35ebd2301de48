// Package smtprelay submits messages to an SMTP relay over a single session.
package smtprelay

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/databoxmail/internal/transport"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Addr      string
	Username  string
	Password  string
	StartTLS  bool
	HelloName string

	// TLSConfig is used for STARTTLS; nil means verify against the host name.
	TLSConfig *tls.Config
	Timeout   time.Duration
}

type Relay struct {
	cfg    Config
	client *smtp.Client
}

func New(cfg Config) *Relay {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Relay{cfg: cfg}
}

func (r *Relay) Name() string {
	return "smtp"
}

// Open dials the relay, greets it and authenticates when credentials are set.
func (r *Relay) Open(_ context.Context) error {
	var (
		c   *smtp.Client
		err error
	)
	if r.cfg.StartTLS {
		c, err = smtp.DialStartTLS(r.cfg.Addr, r.cfg.TLSConfig)
	} else {
		c, err = smtp.Dial(r.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", r.cfg.Addr, err)
	}
	c.CommandTimeout = r.cfg.Timeout
	c.SubmissionTimeout = r.cfg.Timeout

	if r.cfg.HelloName != "" {
		if err := c.Hello(r.cfg.HelloName); err != nil {
			c.Close()
			return fmt.Errorf("smtp hello: %w", err)
		}
	}

	if r.cfg.Username != "" {
		auth := sasl.NewPlainClient("", r.cfg.Username, r.cfg.Password)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	r.client = c
	return nil
}

func (r *Relay) Send(_ context.Context, from, to string, msg []byte) error {
	if r.client == nil {
		return transport.ErrNotOpen
	}
	if err := r.client.SendMail(from, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// Close ends the session with QUIT.
func (r *Relay) Close() error {
	if r.client == nil {
		return nil
	}
	c := r.client
	r.client = nil
	if err := c.Quit(); err != nil {
		c.Close()
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}
