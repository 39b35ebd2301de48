// Package testutil runs in-process mail servers for transport and dispatch
// tests.
package testutil

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ReceivedMessage is one accepted SMTP transaction.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
}

// RelayConfig controls the behaviour of a test relay.
type RelayConfig struct {
	// Username and Password enable AUTH PLAIN; MAIL is refused until the
	// client authenticates.
	Username string
	Password string

	// RejectRecipients lists addresses refused at RCPT.
	RejectRecipients []string
}

type relayBackend struct {
	cfg      RelayConfig
	mu       sync.Mutex
	messages []ReceivedMessage
	sessions int
}

func (b *relayBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	b.mu.Lock()
	b.sessions++
	b.mu.Unlock()
	return &relaySession{backend: b}, nil
}

type relaySession struct {
	backend       *relayBackend
	from          string
	to            []string
	authenticated bool
}

func (s *relaySession) authEnabled() bool {
	return s.backend.cfg.Username != ""
}

func (s *relaySession) AuthMechanisms() []string {
	if s.authEnabled() {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *relaySession) Auth(mech string) (sasl.Server, error) {
	if !s.authEnabled() {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.cfg.Username && password == s.backend.cfg.Password {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	if s.authEnabled() && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	for _, rejected := range s.backend.cfg.RejectRecipients {
		if strings.EqualFold(rejected, to) {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 1, 1},
				Message:      "mailbox unavailable",
			}
		}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.messages = append(s.backend.messages, ReceivedMessage{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Data: data,
	})
	return nil
}

func (s *relaySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *relaySession) Logout() error {
	return nil
}

// SMTPRelay is a go-smtp server listening on a random loopback port.
type SMTPRelay struct {
	Addr    string
	server  *smtp.Server
	backend *relayBackend
}

func NewSMTPRelay(t *testing.T, cfg RelayConfig) *SMTPRelay {
	t.Helper()

	be := &relayBackend{cfg: cfg}
	s := smtp.NewServer(be)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxRecipients = 10
	s.MaxMessageBytes = 25 << 20

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		if err := s.Serve(listener); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			t.Logf("smtp relay stopped: %v", err)
		}
	}()

	relay := &SMTPRelay{Addr: listener.Addr().String(), server: s, backend: be}
	t.Cleanup(func() { _ = s.Close() })
	return relay
}

func (r *SMTPRelay) Messages() []ReceivedMessage {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	return append([]ReceivedMessage(nil), r.backend.messages...)
}

// Sessions reports how many connections the relay accepted.
func (r *SMTPRelay) Sessions() int {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	return r.backend.sessions
}
