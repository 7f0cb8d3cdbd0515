// Package audit records who did what to the registry. Consent is a legal
// artifact, so grants, revocations, and disbursements leave an append-only
// trail; vault shortfalls are recorded here too since they indicate an
// upstream accounting bug.
package audit

import (
	"context"
	"time"
)

// Action labels one audited registry operation.
type Action string

const (
	ActionStudyInitialized      Action = "study_initialized"
	ActionStudyClosed           Action = "study_closed"
	ActionParticipantRegistered Action = "participant_registered"
	ActionConsentGranted        Action = "consent_granted"
	ActionConsentRevoked        Action = "consent_revoked"
	ActionRewardClaimed         Action = "reward_claimed"
	ActionVaultShortfall        Action = "vault_shortfall"
)

// Event is one audit record. Actor is the invoking identity; Study and
// Subject are set when the action targets them. Device carries the parsed
// client attribution for consent events.
type Event struct {
	Action    Action            `json:"action"`
	Actor     string            `json:"actor"`
	Subject   string            `json:"subject,omitempty"`
	Study     string            `json:"study,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Device    string            `json:"device,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Store is the append-only sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Emitter is what services depend on. Publishers implementing it may be
// best-effort (channel + worker) or synchronous (Kafka produce, memory
// append); callers that need fail-closed semantics check the error.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
