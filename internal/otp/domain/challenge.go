package domain

import "time"

// Challenge represents an OTP challenge (stored in otp_challenges table).
// A challenge is single-use and single-target: the code validates only
// against the exact challenge token it was issued with.
type Challenge struct {
	Token        string
	Email        string
	OrgID        *int64 // nil for generic flows not bound to an organization
	CodeHash     string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time // nil until successfully verified
	AttemptCount int
	// Superseded marks a challenge replaced by a newer one for the same
	// (email, org) target; it can no longer verify.
	Superseded bool
}
