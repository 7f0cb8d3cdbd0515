package participant

import (
	"context"
	"errors"
	"log/slog"

	"recrusearch/internal/audit"
	"recrusearch/internal/platform/metrics"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/requestcontext"
)

// Service manages the identity and profile registry. Registration is strictly
// self-service: the identity being registered must be the invoker.
type Service struct {
	profiles Store
	auditor  audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(profiles Store, auditor audit.Emitter, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{profiles: profiles, auditor: auditor, metrics: m, logger: logger}
}

// Register creates a profile for the invoking identity.
//
// Errors: CodeUnauthorized when the invoker is not the identity; CodeAlreadyExists when a
// profile for the identity already exists (re-registration is rejected, not
// treated as an update).
func (s *Service) Register(ctx context.Context, invoker, identity id.Identity, metadataRef id.MetadataRef, credentialRef *id.MetadataRef) (Profile, error) {
	if invoker != identity {
		return Profile{}, dErrors.New(dErrors.CodeUnauthorized, "participants must register themselves")
	}

	profile := Profile{
		Identity:      identity,
		MetadataRef:   metadataRef,
		CredentialRef: credentialRef,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Profile{}, dErrors.New(dErrors.CodeAlreadyExists, "profile already registered for this identity")
		}
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "create profile")
	}

	s.metrics.ParticipantsRegistered.Inc()
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionParticipantRegistered,
			Actor:   identity.String(),
			Subject: identity.String(),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionParticipantRegistered, "error", err)
		}
	}
	return profile, nil
}

// Get returns the profile for an identity.
func (s *Service) Get(ctx context.Context, identity id.Identity) (Profile, error) {
	profile, err := s.profiles.FindByIdentity(ctx, identity)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Profile{}, dErrors.New(dErrors.CodeNotFound, "no profile for this identity")
	}
	if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "find profile")
	}
	return profile, nil
}
