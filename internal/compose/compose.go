// Package compose turns a data-box message into a MIME email: a quoted-printable
// text summary followed by one base64 part per attachment.
package compose

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.io/infrasutra/databoxmail/internal/databox"
	"github.io/infrasutra/databoxmail/internal/report"
)

const (
	DateWarning       = "WARNING: CURRENT TIME USED AS A MESSAGE DATE!"
	Preamble          = "Please use the MIME-aware mail reader."
	attachmentHeading = "*** Attachments ***"

	tagSent     = "SENT"
	tagReceived = "RECEIVED"
)

type Composer struct {
	Sender   string
	Location *time.Location
	Reporter *report.Reporter
	Now      func() time.Time
}

func New(sender string, loc *time.Location, reporter *report.Reporter) *Composer {
	return &Composer{Sender: sender, Location: loc, Reporter: reporter, Now: time.Now}
}

// Email is the composed form of one message. It only lives for one send.
type Email struct {
	Subject      string
	From         *mail.Address
	To           *mail.Address
	Date         time.Time
	DateFallback bool
	Body         string
	Attachments  []Part
}

type Part struct {
	Filename    string
	ContentType string
	Params      map[string]string
	Content     []byte
}

// Compose builds the email for msg. isSent selects which timestamp becomes the
// Date header; recipientHeader is written to To as given.
func (c *Composer) Compose(account databox.Account, msg *databox.Message, isSent bool, recipientHeader string) (*Email, error) {
	from, err := mail.ParseAddress(c.Sender)
	if err != nil {
		return nil, fmt.Errorf("parse sender %q: %w", c.Sender, err)
	}
	to, err := mail.ParseAddress(recipientHeader)
	if err != nil {
		return nil, fmt.Errorf("parse recipient %q: %w", recipientHeader, err)
	}

	tag := tagReceived
	date := msg.AcceptanceTime
	if isSent {
		tag = tagSent
		date = msg.DeliveryTime
	}

	body := c.Reporter.Render(msg)
	fallback := date.IsZero()
	if fallback {
		date = c.now()
		body = DateWarning + "\n\n" + body
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n" + attachmentHeading + "\n")
	parts := make([]Part, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		b.WriteString(att.Description + "\n")

		filename := ASCIIFilename(att.Description)
		ctype, params := ContentType(att.MimeType, filename)
		parts = append(parts, Part{
			Filename:    filename,
			ContentType: ctype,
			Params:      params,
			Content:     att.Content,
		})
	}

	return &Email{
		Subject:      fmt.Sprintf("[%s %s %d] %s", account.Username, tag, msg.ID, msg.Annotation),
		From:         from,
		To:           to,
		Date:         date.In(c.location()),
		DateFallback: fallback,
		Body:         b.String(),
		Attachments:  parts,
	}, nil
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Composer) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// WriteTo writes e as a multipart/mixed document.
func (e *Email) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	var h mail.Header
	h.SetSubject(e.Subject)
	h.SetAddressList("From", []*mail.Address{e.From})
	h.SetAddressList("To", []*mail.Address{e.To})
	h.SetDate(e.Date)
	h.Set("MIME-Version", "1.0")

	mw, err := mail.CreateWriter(&preambleWriter{w: cw, text: Preamble + "\r\n"}, h)
	if err != nil {
		return cw.n, fmt.Errorf("create mail writer: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return cw.n, fmt.Errorf("create text part: %w", err)
	}
	if _, err := io.WriteString(tw, e.Body); err != nil {
		return cw.n, fmt.Errorf("write text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return cw.n, fmt.Errorf("close text part: %w", err)
	}

	for _, p := range e.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(p.ContentType, p.Params)
		ah.Set("Content-Transfer-Encoding", "base64")
		ah.SetFilename(p.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return cw.n, fmt.Errorf("create attachment %q: %w", p.Filename, err)
		}
		if _, err := aw.Write(p.Content); err != nil {
			return cw.n, fmt.Errorf("write attachment %q: %w", p.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return cw.n, fmt.Errorf("close attachment %q: %w", p.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return cw.n, fmt.Errorf("close mail writer: %w", err)
	}
	return cw.n, nil
}

func (e *Email) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Envelope returns the bare address for the SMTP envelope recipient.
func (e *Email) Envelope() string {
	return e.To.Address
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// preambleWriter inserts text once, right after the blank line that ends
// the top-level header and before the first multipart boundary.
type preambleWriter struct {
	w    io.Writer
	text string
	tail []byte
	done bool
}

var headerEnd = []byte("\r\n\r\n")

func (pw *preambleWriter) Write(p []byte) (int, error) {
	if pw.done {
		return pw.w.Write(p)
	}

	seen := append(pw.tail, p...)
	i := bytes.Index(seen, headerEnd)
	if i < 0 {
		if len(seen) > len(headerEnd)-1 {
			seen = seen[len(seen)-(len(headerEnd)-1):]
		}
		pw.tail = append([]byte(nil), seen...)
		return pw.w.Write(p)
	}

	cut := i + len(headerEnd) - len(pw.tail)
	pw.done, pw.tail = true, nil
	if _, err := pw.w.Write(p[:cut]); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(pw.w, pw.text); err != nil {
		return cut, err
	}
	if _, err := pw.w.Write(p[cut:]); err != nil {
		return cut, err
	}
	return len(p), nil
}
