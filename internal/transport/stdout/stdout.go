// Package stdout prints composed messages instead of delivering them.
//
// A printed message counts as delivered: its id is committed to the ledger
// like with any other transport, so this is not a dry run.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

const separator = "========================================\n"

type Printer struct {
	writer io.Writer
}

func New() *Printer {
	return &Printer{writer: os.Stdout}
}

func NewWithWriter(w io.Writer) *Printer {
	return &Printer{writer: w}
}

func (p *Printer) Name() string {
	return "stdout"
}

func (p *Printer) Open(_ context.Context) error {
	return nil
}

// Send writes the envelope followed by the raw message. Unlike a mail
// provider a failed write is reported, since the caller commits on success.
func (p *Printer) Send(_ context.Context, from, to string, msg []byte) error {
	var b strings.Builder
	b.WriteString(separator)
	fmt.Fprintf(&b, "Envelope-From: %s\n", from)
	fmt.Fprintf(&b, "Envelope-To: %s\n", to)
	fmt.Fprintf(&b, "Size: %s\n\n", formatSize(len(msg)))
	b.WriteString(strings.ReplaceAll(string(msg), "\r\n", "\n"))
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (p *Printer) Close() error {
	return nil
}

func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
