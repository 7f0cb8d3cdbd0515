// Package consent is the core state machine of the registry. One record may
// ever exist per (participant, study) pair: NoRecord → Granted → Revoked,
// with Revoked terminal. The record anchors the proof token minted for the
// grant and the claimed flag that makes reward disbursement exactly-once.
package consent

import (
	"time"

	id "recrusearch/pkg/domain"
)

// State of a consent record. There is no state for "never consented": absence
// of a record is that state.
type State string

const (
	StateGranted State = "granted"
	StateRevoked State = "revoked"
)

// Record is the authoritative consent state for one (participant, study)
// pair. Never deleted, never replaced; the only mutations are
// Granted→Revoked and the one-way claimed flag.
type Record struct {
	Participant id.Identity
	Study       id.StudyID
	ProofToken  id.TokenRef
	State       State
	Claimed     bool
	GrantedAt   time.Time
	RevokedAt   *time.Time
}

func (r Record) Key() id.ConsentKey {
	return id.ConsentKey{Participant: r.Participant, Study: r.Study}
}

func (r Record) IsGranted() bool { return r.State == StateGranted }
func (r Record) IsRevoked() bool { return r.State == StateRevoked }
