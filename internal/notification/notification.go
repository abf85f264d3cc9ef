// Package notification defines the mail sender contract and the portal's
// message builders. Delivery is best-effort everywhere: a send failure is
// logged by the caller and never rolls back the operation that triggered it.
package notification

import (
	"context"
	"fmt"
	"time"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Message is a rendered email ready for a Sender.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// OTPMessage builds the passcode delivery email.
func OTPMessage(code, orgName string, expiresAt time.Time) Message {
	subject := fmt.Sprintf("%s: your verification code", orgName)
	text := fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires at %s. If you did not request this code, ignore this email.",
		code, expiresAt.Format(time.RFC1123))
	html := fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>.</p><p>It expires at %s. If you did not request this code, ignore this email.</p>",
		code, expiresAt.Format(time.RFC1123))
	return Message{Subject: subject, HTMLBody: html, TextBody: text}
}

// SubmissionMessage builds the acknowledgement sent after a request is created.
func SubmissionMessage(requestID int64, requestType, orgName string, dueDate time.Time) Message {
	subject := fmt.Sprintf("Request #%d received - %s", requestID, orgName)
	text := fmt.Sprintf(
		"Your %s request has been received by %s and assigned reference #%d.\n\nExpected completion date: %s.",
		requestType, orgName, requestID, dueDate.Format("2 January 2006"))
	html := fmt.Sprintf(
		"<p>Your %s request has been received by %s and assigned reference <strong>#%d</strong>.</p><p>Expected completion date: %s.</p>",
		requestType, orgName, requestID, dueDate.Format("2 January 2006"))
	return Message{Subject: subject, HTMLBody: html, TextBody: text}
}

// StatusChangeMessage builds the notification sent when a request moves to a
// new status.
func StatusChangeMessage(requestID int64, orgName, newStatus string) Message {
	subject := fmt.Sprintf("Request #%d update - %s", requestID, orgName)
	text := fmt.Sprintf("Your request #%d is now %s.", requestID, newStatus)
	html := fmt.Sprintf("<p>Your request <strong>#%d</strong> is now %s.</p>", requestID, newStatus)
	return Message{Subject: subject, HTMLBody: html, TextBody: text}
}

// ClosureMessage builds the notification sent when a request is closed.
func ClosureMessage(requestID int64, orgName, closureComments string) Message {
	subject := fmt.Sprintf("Request #%d closed - %s", requestID, orgName)
	text := fmt.Sprintf("Your request #%d has been closed.", requestID)
	if closureComments != "" {
		text += "\n\nNotes: " + closureComments
	}
	html := fmt.Sprintf("<p>Your request <strong>#%d</strong> has been closed.</p>", requestID)
	if closureComments != "" {
		html += fmt.Sprintf("<p>Notes: %s</p>", closureComments)
	}
	return Message{Subject: subject, HTMLBody: html, TextBody: text}
}
