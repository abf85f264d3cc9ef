// Package events defines the portal's domain event stream. Events are
// emitted after state changes (request created, status changed, OTP
// verified) and fan out through Kafka to downstream consumers.
package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event types the portal emits.
const (
	TypeRequestCreated = "request_created"
	TypeRequestUpdated = "request_updated"
	TypeRequestClosed  = "request_closed"
	TypeOTPRequested   = "otp_requested"
	TypeOTPVerified    = "otp_verified"
	TypeTokenIssued    = "token_issued"
)

// Event is one portal domain event. The JSON field names are the wire
// contract with downstream consumers; changing them breaks the worker.
type Event struct {
	ID        string            `json:"id"`
	OrgID     string            `json:"orgId"`
	EventType string            `json:"eventType"`
	Source    string            `json:"source"`
	Actor     string            `json:"actor,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// New returns an event stamped with a fresh ID and the current time.
func New(orgID, eventType, actor string, metadata map[string]string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		EventType: eventType,
		Source:    "portal-api",
		Actor:     actor,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// Emitter publishes events to the stream. Implementations must tolerate nil
// events and be safe for concurrent use.
type Emitter interface {
	Emit(ctx context.Context, event *Event) error
	Close() error
}

// EmitAsync publishes the event in the background so the request path never
// waits on the broker. Failures are logged and dropped.
func EmitAsync(emitter Emitter, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := emitter.Emit(ctx, event); err != nil {
			log.Printf("events: async emit %s failed: %v", event.EventType, err)
		}
	}()
}
