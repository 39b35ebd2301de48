// Package mboxfile archives messages into a local mbox file.
package mboxfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/emersion/go-mbox"

	"github.io/infrasutra/databoxmail/internal/transport"
)

type Archive struct {
	path string
	file *os.File
	now  func() time.Time
}

func New(path string) *Archive {
	return &Archive{path: path, now: time.Now}
}

func (a *Archive) Name() string {
	return "mbox"
}

func (a *Archive) Open(_ context.Context) error {
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o660)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	a.file = f
	return nil
}

// Send writes msg as one mbox entry whose separator line names from. The
// entry is terminated and synced to disk before Send returns.
func (a *Archive) Send(_ context.Context, from, _ string, msg []byte) error {
	if a.file == nil {
		return transport.ErrNotOpen
	}

	mw := mbox.NewWriter(a.file)
	w, err := mw.CreateMessage(from, a.now())
	if err != nil {
		return fmt.Errorf("create mbox entry: %w", err)
	}
	if _, err := w.Write(bytes.ReplaceAll(msg, []byte("\r\n"), []byte("\n"))); err != nil {
		return fmt.Errorf("write mbox entry: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish mbox entry: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("sync mbox: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	f := a.file
	a.file = nil
	return f.Close()
}
