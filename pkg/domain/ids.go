// Package domain holds the strongly typed identifiers shared across the
// registry. IDs are UUIDs behind distinct types so a participant identity can
// never be passed where a study id is expected; construct them via the Parse
// functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "recrusearch/pkg/domain-errors"
)

// Identity is a cryptographically verifiable actor reference (researcher or
// participant). The execution environment guarantees the invoker identity on
// each call co-signed it; services compare it against stored owners.
type Identity uuid.UUID

// StudyID identifies one study record.
type StudyID uuid.UUID

// TokenRef references a uniquely minted non-fungible proof token.
type TokenRef uuid.UUID

func ParseIdentity(s string) (Identity, error) {
	u, err := parseUUID(s, "identity")
	return Identity(u), err
}

func ParseStudyID(s string) (StudyID, error) {
	u, err := parseUUID(s, "study id")
	return StudyID(u), err
}

func ParseTokenRef(s string) (TokenRef, error) {
	u, err := parseUUID(s, "token ref")
	return TokenRef(u), err
}

func NewStudyID() StudyID { return StudyID(uuid.New()) }

func (i Identity) String() string { return uuid.UUID(i).String() }
func (i Identity) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (s StudyID) String() string { return uuid.UUID(s).String() }
func (s StudyID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }

func (t TokenRef) String() string { return uuid.UUID(t).String() }
func (t TokenRef) IsNil() bool    { return uuid.UUID(t) == uuid.Nil }

// ConsentKey uniquely identifies the one consent record a (participant, study)
// pair may ever have.
type ConsentKey struct {
	Participant Identity
	Study       StudyID
}

func (k ConsentKey) String() string {
	return k.Participant.String() + "/" + k.Study.String()
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil uuid")
	}
	return u, nil
}
