// Package minting is the seam to the unique-token collaborator. A consent
// grant requests exactly one non-fungible proof token; if minting fails the
// whole grant fails and no record is created.
package minting

import (
	"context"

	"github.com/google/uuid"

	id "recrusearch/pkg/domain"
)

// Minter produces one unique token reference owned by the given identity.
type Minter interface {
	MintUniqueToken(ctx context.Context, owner id.Identity) (id.TokenRef, error)
}

// UUIDMinter is the in-process implementation: token references are fresh
// UUIDs, unique by construction. A chain-backed implementation would satisfy
// the same interface.
type UUIDMinter struct{}

func NewUUIDMinter() *UUIDMinter { return &UUIDMinter{} }

func (m *UUIDMinter) MintUniqueToken(_ context.Context, _ id.Identity) (id.TokenRef, error) {
	return id.TokenRef(uuid.New()), nil
}
