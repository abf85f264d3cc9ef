package notification

import (
	"strings"
	"testing"
	"time"
)

func TestOTPMessage_ContainsCodeAndExpiry(t *testing.T) {
	expires := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	m := OTPMessage("482913", "Acme Corp", expires)
	if !strings.Contains(m.TextBody, "482913") {
		t.Error("text body missing code")
	}
	if !strings.Contains(m.HTMLBody, "482913") {
		t.Error("html body missing code")
	}
	if !strings.Contains(m.Subject, "Acme Corp") {
		t.Errorf("subject = %q, missing org name", m.Subject)
	}
}

func TestSubmissionMessage(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := SubmissionMessage(77, "Erasure", "Acme Corp", due)
	if !strings.Contains(m.Subject, "#77") {
		t.Errorf("subject = %q, missing reference", m.Subject)
	}
	if !strings.Contains(m.TextBody, "Erasure") {
		t.Error("text body missing request type")
	}
	if !strings.Contains(m.TextBody, "1 June 2026") {
		t.Errorf("text body missing due date: %q", m.TextBody)
	}
}

func TestClosureMessage_OptionalComments(t *testing.T) {
	m := ClosureMessage(77, "Acme Corp", "resolved")
	if !strings.Contains(m.TextBody, "resolved") {
		t.Error("closure comments missing from text body")
	}
	m = ClosureMessage(77, "Acme Corp", "")
	if strings.Contains(m.TextBody, "Notes:") {
		t.Error("empty comments should not produce a Notes section")
	}
}
