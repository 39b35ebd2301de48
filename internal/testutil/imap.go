package testutil

import (
	"net"
	"testing"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
)

// The memory backend ships a single user with these credentials.
const (
	IMAPUsername = "username"
	IMAPPassword = "password"
)

type IMAPServer struct {
	Addr    string
	Backend *memory.Backend
}

func NewIMAPServer(t *testing.T) *IMAPServer {
	t.Helper()

	be := memory.New()
	s := server.New(be)
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()
	t.Cleanup(func() { _ = s.Close() })

	return &IMAPServer{Addr: listener.Addr().String(), Backend: be}
}
