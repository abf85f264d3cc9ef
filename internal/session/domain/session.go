package domain

import "time"

// VerifiedSession is the short-lived, server-held proof that a submitter
// completed OTP verification for (email, org). It gates request creation
// and expires on its own; expiry is checked at read time.
type VerifiedSession struct {
	Token     string
	Email     string
	OrgID     int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
