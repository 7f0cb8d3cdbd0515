package consent

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recrusearch/internal/audit"
	"recrusearch/internal/ledger"
	"recrusearch/internal/minting"
	"recrusearch/internal/participant"
	"recrusearch/internal/platform/metrics"
	"recrusearch/internal/study"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/requestcontext"
)

// StatusCache is the optional read accelerator for consent state. The store
// stays authoritative; every state change invalidates the cached entry.
type StatusCache interface {
	Get(ctx context.Context, key id.ConsentKey) (string, bool, error)
	Set(ctx context.Context, key id.ConsentKey, state string) error
	Invalidate(ctx context.Context, key id.ConsentKey) error
}

// Service is the consent state machine. Grant and Revoke run inside the
// ledger transaction boundary keyed by the (participant, study) pair, so
// same-pair races serialize while disjoint pairs proceed independently.
type Service struct {
	consents Store
	studies  study.Reader
	profiles participant.Reader
	minter   minting.Minter
	tx       ledger.TxRunner
	cache    StatusCache
	auditor  audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables the consent-status cache.
func WithCache(cache StatusCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithAuditor sets the audit emitter.
func WithAuditor(auditor audit.Emitter) Option {
	return func(s *Service) { s.auditor = auditor }
}

func NewService(
	consents Store,
	studies study.Reader,
	profiles participant.Reader,
	minter minting.Minter,
	tx ledger.TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		consents: consents,
		studies:  studies,
		profiles: profiles,
		minter:   minter,
		tx:       tx,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("recrusearch/consent"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant creates the one consent record a pair may ever have and binds a
// freshly minted proof token to it.
//
// Errors: CodeUnauthorized when the invoker is not the participant; CodeNotFound when the
// study or profile does not exist; CodeStudyInactive when the study is
// closed; CodeAlreadyConsented when any record exists for the pair, Granted
// or Revoked alike.
func (s *Service) Grant(ctx context.Context, invoker, participantID id.Identity, studyID id.StudyID) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Grant",
		trace.WithAttributes(
			attribute.String("participant", participantID.String()),
			attribute.String("study", studyID.String()),
		))
	defer span.End()

	if invoker != participantID {
		return Record{}, dErrors.New(dErrors.CodeUnauthorized, "consent must be co-signed by the participant")
	}
	if _, err := s.profiles.FindByIdentity(ctx, participantID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, dErrors.New(dErrors.CodeNotFound, "participant profile does not exist")
		}
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "find profile")
	}
	studyRecord, err := s.studies.FindByID(ctx, studyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, dErrors.New(dErrors.CodeNotFound, "study does not exist")
		}
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "find study")
	}
	if !studyRecord.IsActive() {
		return Record{}, dErrors.New(dErrors.CodeStudyInactive, "study is not accepting consent")
	}

	key := id.ConsentKey{Participant: participantID, Study: studyID}
	var record Record
	err = s.tx.RunInTx(ctx, key.String(), func(ctx context.Context) error {
		if _, err := s.consents.Find(ctx, key); err == nil {
			// Rejected identically whether the existing record is Granted or
			// Revoked: the pair's record is unique for the system's lifetime.
			return dErrors.New(dErrors.CodeAlreadyConsented, "consent already recorded for this study")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "find consent")
		}

		proofToken, err := s.minter.MintUniqueToken(ctx, participantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mint proof token")
		}

		record = Record{
			Participant: participantID,
			Study:       studyID,
			ProofToken:  proofToken,
			State:       StateGranted,
			GrantedAt:   requestcontext.Now(ctx),
		}
		if err := s.consents.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyConsented, "consent already recorded for this study")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create consent")
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	s.metrics.ConsentsGranted.Inc()
	s.cacheSet(ctx, key, string(StateGranted))
	s.emit(ctx, audit.Event{
		Action:    audit.ActionConsentGranted,
		Actor:     participantID.String(),
		Subject:   participantID.String(),
		Study:     studyID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.Device(ctx),
		Detail:    map[string]string{"proof_token": record.ProofToken.String()},
	})
	return record, nil
}

// Revoke transitions the pair's record Granted→Revoked. Revoked is terminal.
//
// Errors: CodeUnauthorized when the invoker is not the participant; CodeNotConsented when
// no record exists or it is already Revoked.
func (s *Service) Revoke(ctx context.Context, invoker, participantID id.Identity, studyID id.StudyID) error {
	ctx, span := s.tracer.Start(ctx, "consent.Revoke",
		trace.WithAttributes(
			attribute.String("participant", participantID.String()),
			attribute.String("study", studyID.String()),
		))
	defer span.End()

	if invoker != participantID {
		return dErrors.New(dErrors.CodeUnauthorized, "only the consenting participant may revoke")
	}

	key := id.ConsentKey{Participant: participantID, Study: studyID}
	err := s.tx.RunInTx(ctx, key.String(), func(ctx context.Context) error {
		switch err := s.consents.Revoke(ctx, key, requestcontext.Now(ctx)); {
		case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeNotConsented, "no granted consent for this study")
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "revoke consent")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ConsentsRevoked.Inc()
	s.cacheInvalidate(ctx, key)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionConsentRevoked,
		Actor:     participantID.String(),
		Subject:   participantID.String(),
		Study:     studyID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.Device(ctx),
	})
	return nil
}

// Get returns the pair's record, bypassing the cache.
//
// Errors: CodeNotFound when no record exists.
func (s *Service) Get(ctx context.Context, participantID id.Identity, studyID id.StudyID) (Record, error) {
	key := id.ConsentKey{Participant: participantID, Study: studyID}
	record, err := s.consents.Find(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Record{}, dErrors.New(dErrors.CodeNotFound, "no consent record for this pair")
	}
	if err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "find consent")
	}
	return record, nil
}

// Status reports the pair's state through the cache when one is configured.
// Absence of a record reports as "none".
func (s *Service) Status(ctx context.Context, participantID id.Identity, studyID id.StudyID) (string, error) {
	key := id.ConsentKey{Participant: participantID, Study: studyID}
	if s.cache != nil {
		if state, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return state, nil
		} else if err != nil {
			s.logger.WarnContext(ctx, "consent cache read failed", "error", err)
		}
	}
	record, err := s.consents.Find(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "none", nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "find consent")
	}
	s.cacheSet(ctx, key, string(record.State))
	return string(record.State), nil
}

func (s *Service) cacheSet(ctx context.Context, key id.ConsentKey, state string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, state); err != nil {
		s.logger.WarnContext(ctx, "consent cache write failed", "error", err)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, key id.ConsentKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "consent cache invalidation failed", "error", err)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
