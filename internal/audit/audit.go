// Package audit emits provisioning audit events. Emission is best-effort:
// failures are logged and never affect the provisioning caller.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the pipeline.
const (
	ActionCompleted = "provision.completed"
	ActionFailed    = "provision.failed"
)

// Event is one provisioning audit record. Never carries key material or
// tokens.
type Event struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	UID          string    `json:"uid"`
	RegdNo       string    `json:"regdNo"`
	UsedFallback bool      `json:"usedFallback"`
	Warnings     int       `json:"warnings"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Emitter records one audit event. Implementations must be best-effort and
// must not block the pipeline on downstream failures.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// NewEvent stamps identity and time onto an event.
func NewEvent(action, uid, regdNo string, usedFallback bool, warnings int, detail string) Event {
	return Event{
		ID:           uuid.New().String(),
		Action:       action,
		UID:          uid,
		RegdNo:       regdNo,
		UsedFallback: usedFallback,
		Warnings:     warnings,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	}
}

// LogEmitter writes events to the process log. Used when no broker is
// configured.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, e Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("audit: marshal event %s: %v", e.Action, err)
		return
	}
	log.Printf("audit: %s", raw)
}
