package entity

import (
	"time"

	"github.com/google/uuid"
)

// Signature meaning constants (21 CFR Part 11 style)
const (
	MeaningApproved   = "approved"
	MeaningReviewed   = "reviewed"
	MeaningAuthorized = "authorized"
	MeaningVerified   = "verified"
)

var validMeanings = map[string]bool{
	MeaningApproved:   true,
	MeaningReviewed:   true,
	MeaningAuthorized: true,
	MeaningVerified:   true,
}

// Signature is an immutable, non-repudiable record of an approval
// authorization. It is created once, attached to the StepRecord that
// produced it, and never updated.
type Signature struct {
	SignedBy          string    `json:"signed_by"`
	SignedByName      string    `json:"signed_by_name"`
	SignedAt          time.Time `json:"signed_at"`
	Meaning           string    `json:"meaning"`
	Reason            string    `json:"reason"`
	CertificateSerial string    `json:"certificate_serial"`
	IPAddress         string    `json:"ip_address"`
	Verified          bool      `json:"verified"`
}

// NewSignature mints a signature with a fresh certificate serial.
func NewSignature(signedBy, signedByName, meaning, reason, ipAddress string) *Signature {
	return &Signature{
		SignedBy:          signedBy,
		SignedByName:      signedByName,
		SignedAt:          time.Now(),
		Meaning:           meaning,
		Reason:            reason,
		CertificateSerial: uuid.NewString(),
		IPAddress:         ipAddress,
		Verified:          true,
	}
}

// IsValidMeaning returns true for a recognized signature meaning.
func IsValidMeaning(meaning string) bool {
	return validMeanings[meaning]
}
