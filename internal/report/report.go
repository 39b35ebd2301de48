// Package report renders the plain-text status summary that forms the body of
// every forwarded message.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.io/infrasutra/databoxmail/internal/databox"
)

const (
	notAvailable = "Not available"
	notPresent   = "Not present"
	valid        = "Valid"
	invalid      = "Invalid"

	timeLayout = "2006-01-02 15:04:05"

	signatureMismatch = "Message signature and content do not correspond!"
	crlCheckOff       = "Certificate revocation check is turned off!"
)

type Reporter struct {
	// CheckCRL reflects whether certificate revocation checking is enabled.
	CheckCRL bool
	Now      func() time.Time
}

func New(checkCRL bool) *Reporter {
	return &Reporter{CheckCRL: checkCRL, Now: time.Now}
}

type builder struct {
	lines []string
}

func (b *builder) row(label, value string) {
	if value == "" {
		value = notAvailable
	}
	b.lines = append(b.lines, fmt.Sprintf("%-20s %s", label, value))
}

func (b *builder) heading(title string) {
	b.lines = append(b.lines, "*** "+title+" ***")
}

func (b *builder) blank() {
	b.lines = append(b.lines, "")
}

// Render produces the summary for msg. The output depends only on msg, the
// CRL setting and Now.
func (r *Reporter) Render(msg *databox.Message) string {
	b := &builder{}

	b.heading("Identification")
	b.row("ID:", strconv.FormatInt(msg.ID, 10))
	b.row("Subject:", msg.Annotation)
	if text, ok := databox.TypeDescription(msg.Type); ok {
		b.row("Message type:", text)
	}
	b.blank()
	b.row("From:", msg.Sender)
	b.row("Sender Address:", msg.SenderAddress)
	b.blank()
	b.row("To:", msg.Recipient)
	b.row("Recipient Address:", msg.RecipientAddress)
	b.blank()
	for _, ref := range referenceFields(msg) {
		if ref.value != "" {
			b.row(ref.label, ref.value)
		}
	}
	b.blank()

	b.heading("Status")
	b.row("Delivery time:", formatTime(msg.DeliveryTime))
	b.row("Acceptance time:", formatTime(msg.AcceptanceTime))
	b.row("Status:", fmt.Sprintf("%d - %s", msg.Status, msg.StatusDescription()))
	if len(msg.Events) > 0 {
		b.row("Events:", " ")
		for _, ev := range msg.Events {
			b.row("  ", fmt.Sprintf("%s - %s", orNotAvailable(formatTime(ev.Time)), ev.Description))
		}
	}
	b.blank()

	b.heading("Signature")
	b.row("Message signature:", r.signatureText(msg))
	if msg.Verification.Attempted && msg.Verification.MessageValid {
		b.row("Signing certificate:", r.certificateText(msg))
	}
	b.row("Timestamp:", timestampText(msg))
	b.blank()

	return strings.Join(b.lines, "\n")
}

func (r *Reporter) signatureText(msg *databox.Message) string {
	v := msg.Verification
	switch {
	case !v.Attempted:
		return notPresent
	case v.MessageValid:
		return valid
	default:
		return invalid + " - " + signatureMismatch
	}
}

func (r *Reporter) certificateText(msg *databox.Message) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	at := msg.VerificationDate(now())

	text := invalid
	if cert := msg.Verification.Certificate; cert != nil && cert.ValidAt(at, !r.CheckCRL) {
		text = valid
	}
	if !r.CheckCRL {
		text += " (" + crlCheckOff + ")"
	}
	return text
}

func timestampText(msg *databox.Message) string {
	v := msg.Verification
	var text string
	switch v.Timestamp {
	case databox.TimestampAbsent:
		return notPresent
	case databox.TimestampValid:
		text = valid
	default:
		text = "Invalid!"
	}
	if v.Token != nil {
		text = fmt.Sprintf("%s (%s)", text, orNotAvailable(formatTime(v.Token.GenTime)))
	}
	return text
}

type referenceField struct {
	label string
	value string
}

func referenceFields(msg *databox.Message) []referenceField {
	return []referenceField{
		{"Our file mark:", msg.SenderIdent},
		{"Our reference number:", msg.SenderRefNumber},
		{"Your file mark:", msg.RecipientIdent},
		{"Your reference number:", msg.RecipientRefNumber},
		{"To hands:", msg.ToHands},
		{"Law:", msg.LegalTitleLaw},
		{"Year:", msg.LegalTitleYear},
		{"Section:", msg.LegalTitleSect},
		{"Paragraph:", msg.LegalTitlePar},
		{"Letter:", msg.LegalTitlePoint},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func orNotAvailable(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
