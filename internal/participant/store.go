package participant

import (
	"context"

	id "recrusearch/pkg/domain"
)

// Store persists participant profiles.
//
// Create returns sentinel.ErrConflict when a profile already exists for the
// identity; re-registration is an error, never a silent update.
type Store interface {
	Create(ctx context.Context, profile Profile) error
	FindByIdentity(ctx context.Context, identity id.Identity) (Profile, error)
}

// Reader is the read-only surface the consent module depends on.
type Reader interface {
	FindByIdentity(ctx context.Context, identity id.Identity) (Profile, error)
}
