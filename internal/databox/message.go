// Package databox holds the message records kept in a local data-box store.
package databox

import "time"

type Account struct {
	Username string
	Name     string
}

type Message struct {
	ID         int64
	Type       string
	Annotation string

	Sender           string
	SenderAddress    string
	Recipient        string
	RecipientAddress string

	SenderIdent        string
	SenderRefNumber    string
	RecipientIdent     string
	RecipientRefNumber string
	ToHands            string
	LegalTitleLaw      string
	LegalTitleYear     string
	LegalTitleSect     string
	LegalTitlePar      string
	LegalTitlePoint    string

	// Zero values mean the store has no timestamp.
	DeliveryTime   time.Time
	AcceptanceTime time.Time

	Status       int
	Events       []Event
	Verification Verification
	Attachments  []Attachment
}

type Event struct {
	Time        time.Time
	Description string
}

type Attachment struct {
	Description string
	MimeType    string
	Content     []byte
}

var statusDescriptions = map[int]string{
	1:  "Message has been submitted",
	2:  "Time stamp has been added to the message",
	3:  "Message did not pass the antivirus check and was deleted",
	4:  "Message has been delivered to the data box",
	5:  "Message has been accepted by fiction",
	6:  "Message has been accepted by the recipient",
	7:  "Message has been read",
	8:  "Message could not be delivered",
	9:  "Message content has been deleted",
	10: "Message has been moved to the data vault",
}

// StatusDescription returns the human readable meaning of m.Status.
func (m *Message) StatusDescription() string {
	if text, ok := statusDescriptions[m.Status]; ok {
		return text
	}
	return "Unknown status"
}

var typeDescriptions = map[string]string{
	"V": "Public message",
	"K": "Commercial message paid by the sender",
	"E": "Commercial message paid by a postage credit",
	"G": "Commercial message paid by a sponsor",
	"I": "Initiatory commercial message with prepaid reply",
	"O": "Reply to an initiatory commercial message",
	"X": "Initiatory commercial message with expired reply",
	"Y": "Initiatory commercial message with used reply",
}

// TypeDescription reports the text for a message type code and whether the
// code is known.
func TypeDescription(code string) (string, bool) {
	text, ok := typeDescriptions[code]
	return text, ok
}

// VerificationDate is the reference date the signing certificate is
// evaluated at.
func (m *Message) VerificationDate(fallback time.Time) time.Time {
	if m.Verification.Token != nil && !m.Verification.Token.GenTime.IsZero() {
		return m.Verification.Token.GenTime
	}
	if !m.AcceptanceTime.IsZero() {
		return m.AcceptanceTime
	}
	return fallback
}
