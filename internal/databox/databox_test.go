package databox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCertificateWindow_ValidAt(t *testing.T) {
	notBefore := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inside := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	revoked, clean := true, false

	tests := []struct {
		name      string
		revoked   *bool
		at        time.Time
		ignoreCRL bool
		want      bool
	}{
		{name: "inside, not revoked", revoked: &clean, at: inside, want: true},
		{name: "inside, revoked", revoked: &revoked, at: inside, ignoreCRL: true, want: false},
		{name: "before window", revoked: &clean, at: notBefore.Add(-time.Second), want: false},
		{name: "after window", revoked: &clean, at: notAfter.Add(time.Second), want: false},
		{name: "on the boundary", revoked: &clean, at: notAfter, want: true},
		{name: "no crl data, ignored", at: inside, ignoreCRL: true, want: true},
		{name: "no crl data, required", at: inside, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := CertificateWindow{NotBefore: notBefore, NotAfter: notAfter, Revoked: tt.revoked}
			assert.Equal(t, tt.want, w.ValidAt(tt.at, tt.ignoreCRL))
		})
	}
}

func TestMessage_VerificationDate(t *testing.T) {
	fallback := time.Date(2024, 9, 9, 9, 9, 9, 0, time.UTC)
	accepted := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	stamped := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	m := &Message{}
	assert.Equal(t, fallback, m.VerificationDate(fallback))

	m.AcceptanceTime = accepted
	assert.Equal(t, accepted, m.VerificationDate(fallback))

	m.Verification.Token = &TimestampToken{}
	assert.Equal(t, accepted, m.VerificationDate(fallback))

	m.Verification.Token.GenTime = stamped
	assert.Equal(t, stamped, m.VerificationDate(fallback))
}

func TestMessage_StatusDescription(t *testing.T) {
	assert.Equal(t, "Message has been accepted by the recipient", (&Message{Status: 6}).StatusDescription())
	assert.Equal(t, "Unknown status", (&Message{Status: 42}).StatusDescription())
}

func TestTypeDescription(t *testing.T) {
	text, ok := TypeDescription("V")
	assert.True(t, ok)
	assert.Equal(t, "Public message", text)

	_, ok = TypeDescription("")
	assert.False(t, ok)
}
