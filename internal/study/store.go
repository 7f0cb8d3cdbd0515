package study

import (
	"context"

	id "recrusearch/pkg/domain"
)

// Store persists study records.
//
// Create returns sentinel.ErrConflict if the id already exists. Close is a
// compare-and-set Active→Closed: sentinel.ErrNotFound when the study is
// missing, sentinel.ErrInvalidState when it is already closed.
type Store interface {
	Create(ctx context.Context, record Study) error
	FindByID(ctx context.Context, studyID id.StudyID) (Study, error)
	Close(ctx context.Context, studyID id.StudyID) error
}

// Reader is the read-only surface other modules (consent, reward) depend on.
type Reader interface {
	FindByID(ctx context.Context, studyID id.StudyID) (Study, error)
}
