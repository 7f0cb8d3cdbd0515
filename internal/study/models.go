package study

import (
	"time"

	id "recrusearch/pkg/domain"
)

// Status is the study lifecycle state. Active→Closed only; there is no reopen.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Study is one researcher-owned study record. The researcher identity is
// immutable for the record's lifetime; only it may close the study. The reward
// vault is pre-associated at creation and funded from the researcher's
// custody.
type Study struct {
	ID           id.StudyID
	Researcher   id.Identity
	MetadataRef  id.MetadataRef
	RewardAmount int64
	Status       Status
	CreatedAt    time.Time
}

func (s Study) IsActive() bool { return s.Status == StatusActive }
func (s Study) IsClosed() bool { return s.Status == StatusClosed }
