package service

import (
	"context"
	"log/slog"
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
)

// LimitService enforces the process error score and the document upload
// count. Exceeding a limit terminates the process and its verification
// entities with the canonical error detail.
type LimitService struct {
	processes  store.ProcessStore
	identities store.IdentityVerificationStore
	documents  store.DocumentStore
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewLimitService(
	stores store.Stores,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LimitService {
	return &LimitService{
		processes:  stores.Processes,
		identities: stores.IdentityVerifications,
		documents:  stores.Documents,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// IncrementErrorScore raises the process error score by the given amount
// and returns the updated process. The caller runs inside a transaction
// holding the process row lock.
func (s *LimitService) IncrementErrorScore(ctx context.Context, processID string, increment int) (*models.Process, error) {
	process, err := s.processes.FindByIDForUpdate(ctx, processID)
	if err != nil {
		return nil, err
	}
	process.ErrorScore += increment
	process.UpdatedAt = time.Now()
	if err := s.processes.Update(ctx, process); err != nil {
		return nil, err
	}
	return process, nil
}

// CheckErrorScoreLimit fails the process and its identity verification when
// the error score exceeds the configured maximum. Returns a process limit
// error in that case so callers can surface it.
func (s *LimitService) CheckErrorScoreLimit(ctx context.Context, process *models.Process, identity *models.IdentityVerification) error {
	if process.ErrorScore <= s.cfg.Onboarding.MaxProcessErrorScore {
		return nil
	}

	s.logger.WarnContext(ctx, "process error score exceeded",
		"process_id", process.ID,
		"error_score", process.ErrorScore,
	)

	now := time.Now()
	process.Status = models.ProcessFailed
	process.ErrorDetail = models.ErrorMaxProcessErrorScoreExceeded
	process.ErrorOrigin = models.OriginProcessLimitCheck
	process.UpdatedAt = now
	process.FailedAt = &now
	if err := s.processes.Update(ctx, process); err != nil {
		return err
	}

	if identity != nil {
		identity.Status = models.StatusFailed
		identity.ErrorDetail = models.ErrorMaxProcessErrorScoreExceeded
		identity.ErrorOrigin = models.OriginProcessLimitCheck
		identity.UpdatedAt = now
		identity.FailedAt = &now
		if err := s.identities.Update(ctx, identity); err != nil {
			return err
		}
	}

	s.metrics.ProcessesFailed.Inc()
	event := audit.Event{
		ProcessID: process.ID,
		Action:    string(audit.EventLimitExceeded),
		Detail:    models.ErrorMaxProcessErrorScoreExceeded,
	}
	if identity != nil {
		event.IdentityVerificationID = identity.ID
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return err
	}

	return dErrors.New(dErrors.CodeProcessLimitReached, "max error score exceeded for onboarding process")
}

// CheckDocumentUploadLimit fails the identity verification when the number
// of uploaded documents exceeds the configured maximum.
func (s *LimitService) CheckDocumentUploadLimit(ctx context.Context, identity *models.IdentityVerification) error {
	documents, err := s.documents.ListByIdentityVerification(ctx, identity.ID)
	if err != nil {
		return err
	}
	if len(documents) <= s.cfg.Identity.MaxDocumentUploads {
		return nil
	}

	now := time.Now()
	identity.Status = models.StatusFailed
	identity.ErrorDetail = models.ErrorMaxFailedAttemptsDocumentUpload
	identity.ErrorOrigin = models.OriginProcessLimitCheck
	identity.UpdatedAt = now
	identity.FailedAt = &now
	if err := s.identities.Update(ctx, identity); err != nil {
		return err
	}

	var ids []string
	for _, doc := range documents {
		ids = append(ids, doc.ID)
	}
	if _, err := s.documents.Terminate(ctx, ids, models.ErrorMaxFailedAttemptsDocumentUpload, models.OriginProcessLimitCheck); err != nil {
		return err
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventLimitExceeded),
		Detail:                 "max document uploads exceeded",
	}); err != nil {
		return err
	}

	return dErrors.New(dErrors.CodeProcessLimitReached, "max failed attempts reached for document upload")
}
