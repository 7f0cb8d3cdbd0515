package study

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"recrusearch/internal/audit"
	"recrusearch/internal/funds"
	"recrusearch/internal/ledger"
	"recrusearch/internal/platform/metrics"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/requestcontext"
)

// Service orchestrates the study registry. Creation allocates the study
// record and funds its reward vault from the owner's custody in one ledger
// transaction; either both happen or neither does.
type Service struct {
	studies Store
	funds   funds.Store
	tx      ledger.TxRunner
	auditor audit.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(studies Store, fundsStore funds.Store, tx ledger.TxRunner, auditor audit.Emitter, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		studies: studies,
		funds:   fundsStore,
		tx:      tx,
		auditor: auditor,
		metrics: m,
		logger:  logger,
	}
}

// Initialize creates a study with a funded reward vault.
//
// Errors: CodeInvalidInput when rewardAmount is not positive or the owner's
// custody cannot fund it; CodeUnauthorized when the invoker is not the owner.
func (s *Service) Initialize(ctx context.Context, invoker, owner id.Identity, metadataRef id.MetadataRef, rewardAmount int64) (Study, error) {
	if rewardAmount <= 0 {
		return Study{}, dErrors.New(dErrors.CodeInvalidInput, "reward amount must be positive")
	}
	if invoker != owner {
		return Study{}, dErrors.New(dErrors.CodeUnauthorized, "study owner must co-sign creation")
	}

	record := Study{
		ID:           id.NewStudyID(),
		Researcher:   owner,
		MetadataRef:  metadataRef,
		RewardAmount: rewardAmount,
		Status:       StatusActive,
		CreatedAt:    requestcontext.Now(ctx),
	}

	// Fund first, create second: the transfer is the step that can fail on a
	// well-formed request, and the memory ledger cannot roll back a created
	// study. Under Postgres both steps share the ambient transaction anyway.
	err := s.tx.RunInTx(ctx, record.ID.String(), func(ctx context.Context) error {
		err := s.funds.Transfer(ctx, funds.CustodyAccount(owner), funds.VaultAccount(record.ID), rewardAmount)
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.New(dErrors.CodeInvalidInput, "owner custody cannot fund the reward pool")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "fund reward vault")
		}
		if err := s.studies.Create(ctx, record); err != nil {
			// Fresh UUID, so a collision is effectively unreachable; refund
			// keeps the memory ledger consistent if it ever happens.
			_ = s.funds.Transfer(ctx, funds.VaultAccount(record.ID), funds.CustodyAccount(owner), rewardAmount)
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "study id collision")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create study")
		}
		return nil
	})
	if err != nil {
		return Study{}, err
	}

	s.metrics.StudiesCreated.Inc()
	s.emit(ctx, audit.Event{
		Action: audit.ActionStudyInitialized,
		Actor:  owner.String(),
		Study:  record.ID.String(),
		Detail: map[string]string{"reward_amount": strconv.FormatInt(rewardAmount, 10)},
	})
	return record, nil
}

// Close transitions Active→Closed. Only the owning researcher may close, and
// a closed study stays closed.
func (s *Service) Close(ctx context.Context, invoker id.Identity, studyID id.StudyID) error {
	record, err := s.studies.FindByID(ctx, studyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "study does not exist")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "find study")
	}
	if record.Researcher != invoker {
		return dErrors.New(dErrors.CodeUnauthorized, "only the study owner may close it")
	}

	err = s.tx.RunInTx(ctx, studyID.String(), func(ctx context.Context) error {
		switch err := s.studies.Close(ctx, studyID); {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "study does not exist")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeStudyInactive, "study is already closed")
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "close study")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.StudiesClosed.Inc()
	s.emit(ctx, audit.Event{
		Action: audit.ActionStudyClosed,
		Actor:  invoker.String(),
		Study:  studyID.String(),
	})
	return nil
}

// Get returns one study record.
func (s *Service) Get(ctx context.Context, studyID id.StudyID) (Study, error) {
	record, err := s.studies.FindByID(ctx, studyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Study{}, dErrors.New(dErrors.CodeNotFound, "study does not exist")
	}
	if err != nil {
		return Study{}, dErrors.Wrap(err, dErrors.CodeInternal, "find study")
	}
	return record, nil
}

// VaultBalance reports the current reward vault funding for a study.
func (s *Service) VaultBalance(ctx context.Context, studyID id.StudyID) (int64, error) {
	if _, err := s.Get(ctx, studyID); err != nil {
		return 0, err
	}
	return s.funds.Balance(ctx, funds.VaultAccount(studyID))
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}
