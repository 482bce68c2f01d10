// pkg/audit/audit.go
package audit

import (
	"context"
	"time"

	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
)

// Event types emitted by the session service and revocation engine.
const (
	EventSessionIssued     = "session.issued"
	EventSessionTerminated = "session.terminated"
	EventSessionRevoked    = "session.revoked"
)

// Event is one session lifecycle record. Carries no credential material.
type Event struct {
	Type       string `json:"type"`
	Subject    string `json:"subject"`
	Username   string `json:"username"`
	ProductKey string `json:"productKey,omitempty"`
	At         int64  `json:"at"` // epoch seconds
}

// Emitter publishes lifecycle events. Emission is best-effort everywhere:
// callers log failures and move on.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// NewEvent stamps an event for an identity.
func NewEvent(typ string, id auth.Identity, key catalog.ProductKey) Event {
	return Event{
		Type:       typ,
		Subject:    id.Subject,
		Username:   id.Username,
		ProductKey: string(key),
		At:         time.Now().Unix(),
	}
}

// noopEmitter discards events; used when no relay target is configured.
type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, Event) error { return nil }
