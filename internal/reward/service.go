// Package reward disburses exactly one study reward per granted consent. The
// claimed flag on the consent record is the exactly-once gate; the transfer
// out of the study vault and the flag flip commit or fail together.
package reward

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recrusearch/internal/audit"
	"recrusearch/internal/consent"
	"recrusearch/internal/funds"
	"recrusearch/internal/ledger"
	"recrusearch/internal/platform/metrics"
	"recrusearch/internal/study"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/requestcontext"
)

type Service struct {
	consents consent.Store
	studies  study.Reader
	funds    funds.Store
	tx       ledger.TxRunner
	auditor  audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(
	consents consent.Store,
	studies study.Reader,
	fundsStore funds.Store,
	tx ledger.TxRunner,
	auditor audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		consents: consents,
		studies:  studies,
		funds:    fundsStore,
		tx:       tx,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("recrusearch/reward"),
	}
}

// Claim pays the study's reward into the participant's custody account and
// flips the consent record's claimed flag, both in one transaction boundary
// keyed by the (participant, study) pair. Returns the amount disbursed.
//
// Errors: CodeUnauthorized when the invoker is not the participant; CodeConsentRequired
// when no record exists or consent is revoked (revoking forfeits an unclaimed
// reward); CodeAlreadyClaimed on a second claim; CodeNotFound when the study
// record is gone; CodeInsufficientVaultBalance when the vault cannot cover
// the reward.
func (s *Service) Claim(ctx context.Context, invoker, participantID id.Identity, studyID id.StudyID) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reward.Claim",
		trace.WithAttributes(
			attribute.String("participant", participantID.String()),
			attribute.String("study", studyID.String()),
		))
	defer span.End()

	if invoker != participantID {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "rewards are claimed by the consenting participant")
	}

	key := id.ConsentKey{Participant: participantID, Study: studyID}
	var amount int64
	err := s.tx.RunInTx(ctx, key.String(), func(ctx context.Context) error {
		record, err := s.consents.Find(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConsentRequired, "no consent on record for this study")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "find consent")
		}
		if record.Claimed {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "reward already claimed")
		}
		if !record.IsGranted() {
			return dErrors.New(dErrors.CodeConsentRequired, "consent was revoked; reward is forfeit")
		}

		studyRecord, err := s.studies.FindByID(ctx, studyID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "study does not exist")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "find study")
		}
		amount = studyRecord.RewardAmount

		vault := funds.VaultAccount(studyID)
		custody := funds.CustodyAccount(participantID)
		if err := s.funds.Transfer(ctx, vault, custody, amount); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return s.reportShortfall(ctx, studyID, participantID, amount)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "disburse reward")
		}

		if err := s.consents.MarkClaimed(ctx, key); err != nil {
			// The pair is serialized by the tx key, so a failure here means
			// the store itself broke; hand the funds back.
			if refundErr := s.funds.Transfer(ctx, custody, vault, amount); refundErr != nil {
				s.logger.ErrorContext(ctx, "reward refund failed after claim-flag failure",
					"study", studyID.String(),
					"participant", participantID.String(),
					"error", refundErr,
				)
			}
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyClaimed, "reward already claimed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark consent claimed")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RewardsClaimed.Inc()
	s.metrics.RewardsDisbursed.Add(float64(amount))
	s.emit(ctx, audit.Event{
		Action:    audit.ActionRewardClaimed,
		Actor:     participantID.String(),
		Subject:   participantID.String(),
		Study:     studyID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.Device(ctx),
		Detail:    map[string]string{"amount": strconv.FormatInt(amount, 10)},
	})
	return amount, nil
}

// reportShortfall records the integrity failure loudly before rejecting the
// claim: a granted consent could not be paid because the vault ran dry.
func (s *Service) reportShortfall(ctx context.Context, studyID id.StudyID, participantID id.Identity, amount int64) error {
	s.logger.ErrorContext(ctx, "reward vault cannot cover a granted consent",
		"study", studyID.String(),
		"participant", participantID.String(),
		"reward_amount", amount,
	)
	s.metrics.VaultShortfalls.Inc()
	s.emit(ctx, audit.Event{
		Action:    audit.ActionVaultShortfall,
		Actor:     participantID.String(),
		Subject:   participantID.String(),
		Study:     studyID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    map[string]string{"reward_amount": strconv.FormatInt(amount, 10)},
	})
	return dErrors.New(dErrors.CodeInsufficientVaultBalance, "reward vault cannot cover this claim")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
