package databox

import "time"

// Verification carries the outcome of signature and timestamp checks computed
// outside this program. Nothing here performs cryptography.
type Verification struct {
	Attempted    bool
	MessageValid bool
	Certificate  CertificateCheck
	Timestamp    TimestampResult
	Token        *TimestampToken
}

type TimestampResult int

const (
	TimestampAbsent TimestampResult = iota
	TimestampValid
	TimestampInvalid
)

type TimestampToken struct {
	GenTime time.Time
}

// CertificateCheck evaluates the signing certificate at a reference date.
type CertificateCheck interface {
	ValidAt(at time.Time, ignoreMissingCRL bool) bool
}

// CertificateWindow is the stored result of certificate path validation: the
// validity window and the revocation state, if it was ever checked.
type CertificateWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
	Revoked   *bool
}

func (w CertificateWindow) ValidAt(at time.Time, ignoreMissingCRL bool) bool {
	if at.Before(w.NotBefore) || at.After(w.NotAfter) {
		return false
	}
	if w.Revoked == nil {
		return ignoreMissingCRL
	}
	return !*w.Revoked
}
