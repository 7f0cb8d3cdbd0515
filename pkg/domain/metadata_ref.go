package domain

import dErrors "recrusearch/pkg/domain-errors"

// MetadataRef is an opaque pointer to off-chain descriptive content (for
// example an IPFS CID). The registry never interprets it, only bounds it.
//
// Invariant: non-empty and at most MaxMetadataRefLen bytes.
type MetadataRef string

// MaxMetadataRefLen bounds stored references; CIDv1 strings fit comfortably.
const MaxMetadataRefLen = 256

// ParseMetadataRef constructs a MetadataRef from external input.
func ParseMetadataRef(s string) (MetadataRef, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "metadata ref cannot be empty")
	}
	if len(s) > MaxMetadataRefLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "metadata ref too long")
	}
	return MetadataRef(s), nil
}

// ParseOptionalMetadataRef parses a nullable reference. A nil input stays nil,
// which is distinguishable from a present-but-empty value (rejected).
func ParseOptionalMetadataRef(s *string) (*MetadataRef, error) {
	if s == nil {
		return nil, nil
	}
	ref, err := ParseMetadataRef(*s)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (m MetadataRef) String() string { return string(m) }
