package notification

import (
	"context"
	"log"
)

// ConsoleSender logs mail to stdout instead of delivering it. Used in
// development and tests; selected by an explicit config flag passed to the
// constructor of whatever owns the Sender, never by ambient global state.
type ConsoleSender struct{}

// NewConsoleSender returns a ConsoleSender.
func NewConsoleSender() *ConsoleSender { return &ConsoleSender{} }

// Send logs the envelope and text body. HTML is omitted; it duplicates text.
func (s *ConsoleSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	log.Printf("mail (test mode): to=%s subject=%q\n%s", to, subject, textBody)
	return nil
}
