package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// clientEvaluationBackoffBase is the first retry delay; it doubles per
// failed attempt.
const clientEvaluationBackoffBase = 2 * time.Second

// EvaluationService hands the verified client data to the tenant system for
// the final verdict. Transient evaluation errors are retried with backoff
// up to the configured attempt limit.
type EvaluationService struct {
	db         *sql.DB
	identities store.IdentityVerificationStore
	documents  store.DocumentStore
	adapter    provider.OnboardingAdapter
	limits     *LimitService
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewEvaluationService(
	db *sql.DB,
	stores store.Stores,
	adapter provider.OnboardingAdapter,
	limits *LimitService,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *EvaluationService {
	return &EvaluationService{
		db:         db,
		identities: stores.IdentityVerifications,
		documents:  stores.Documents,
		adapter:    adapter,
		limits:     limits,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// ProcessClientEvaluation asks the tenant system for its verdict and settles
// it on the identity verification. Errored attempts are retried with
// doubling backoff; exhausting the attempt limit fails the verification.
func (s *EvaluationService) ProcessClientEvaluation(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	verificationID, err := s.latestVerificationID(ctx, identity)
	if err != nil {
		return err
	}

	req := provider.EvaluateClientRequest{
		ProcessID:              identity.ProcessID,
		UserID:                 owner.UserID,
		IdentityVerificationID: identity.ID,
		VerificationID:         verificationID,
	}

	maxAttempts := s.cfg.Identity.ClientEvaluationMaxFailedAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErrorDetail string
	backoff := clientEvaluationBackoffBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := s.adapter.EvaluateClient(ctx, req)
		switch {
		case err != nil:
			s.metrics.ProviderErrors.WithLabelValues("adapter", string(provider.GetCategory(err))).Inc()
			lastErrorDetail = err.Error()
		case response.ErrorOccurred:
			lastErrorDetail = response.ErrorDetail
		case response.Accepted:
			return s.evaluationAccepted(ctx, owner, identity)
		default:
			return s.evaluationRejected(ctx, owner, identity)
		}

		s.logger.WarnContext(ctx, "client evaluation attempt failed",
			"identity_verification_id", identity.ID,
			"attempt", attempt,
			"error_detail", lastErrorDetail,
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return s.evaluationExhausted(ctx, owner, identity, lastErrorDetail)
}

func (s *EvaluationService) evaluationAccepted(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseClientEvaluation, models.StatusAccepted); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Action:                 string(audit.EventClientEvaluationAccepted),
		})
	})
}

func (s *EvaluationService) evaluationRejected(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		documents, err := s.documents.ListUsedForVerification(ctx, identity.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, doc := range documents {
			if doc.Status != models.DocumentAccepted {
				continue
			}
			doc.Status = models.DocumentRejected
			doc.RejectReason = models.ErrorDocumentVerificationRejected
			doc.RejectOrigin = models.OriginClientEvaluation
			doc.UpdatedAt = now
			if err := s.documents.Update(ctx, doc); err != nil {
				return err
			}
		}

		identity.RejectReason = models.ErrorDocumentVerificationRejected
		identity.RejectOrigin = models.OriginClientEvaluation
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseClientEvaluation, models.StatusRejected); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Action:                 string(audit.EventClientEvaluationRejected),
		})
	})
}

func (s *EvaluationService) evaluationExhausted(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, lastErrorDetail string) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		identity.ErrorDetail = models.ErrorMaxFailedAttemptsClientEvaluation
		identity.ErrorOrigin = models.OriginProcessLimitCheck
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseClientEvaluation, models.StatusFailed); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Action:                 string(audit.EventClientEvaluationFailed),
			Detail:                 lastErrorDetail,
		})
	})
}

// latestVerificationID returns the verification id shared by the documents
// of the final verification round.
func (s *EvaluationService) latestVerificationID(ctx context.Context, identity *models.IdentityVerification) (string, error) {
	documents, err := s.documents.ListUsedForVerification(ctx, identity.ID)
	if err != nil {
		return "", err
	}
	for _, doc := range documents {
		if doc.VerificationID != "" {
			return doc.VerificationID, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidState, "no verification id available for client evaluation")
}
