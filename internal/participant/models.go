package participant

import (
	"time"

	id "recrusearch/pkg/domain"
)

// Profile is one subject's self-registered record: one per identity for the
// lifetime of the system. CredentialRef is nullable and stays nullable; a
// nil pointer is "absent", distinguishable from a present-but-empty value
// (which ParseMetadataRef rejects at the boundary).
type Profile struct {
	Identity      id.Identity
	MetadataRef   id.MetadataRef
	CredentialRef *id.MetadataRef
	CreatedAt     time.Time
}

func (p Profile) HasCredential() bool { return p.CredentialRef != nil }
