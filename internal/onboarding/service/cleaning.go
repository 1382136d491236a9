package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// CleaningService expires stale workflow entities. Every job terminates its
// targets in bulk statements and reports the number of rows changed, so the
// reconciliation runner can meter the churn.
type CleaningService struct {
	db         *sql.DB
	processes  store.ProcessStore
	identities store.IdentityVerificationStore
	documents  store.DocumentStore
	otps       store.OtpStore
	payloads   store.PayloadStore
	cfg        *config.Config
	auditor    Auditor
	logger     *slog.Logger
}

func NewCleaningService(
	db *sql.DB,
	stores store.Stores,
	cfg *config.Config,
	auditor Auditor,
	logger *slog.Logger,
) *CleaningService {
	return &CleaningService{
		db:         db,
		processes:  stores.Processes,
		identities: stores.IdentityVerifications,
		documents:  stores.Documents,
		otps:       stores.Otps,
		payloads:   stores.Payloads,
		cfg:        cfg,
		auditor:    auditor,
		logger:     logger,
	}
}

// TerminateExpiredProcessActivations fails processes whose activation was
// never committed within the activation window.
func (s *CleaningService) TerminateExpiredProcessActivations(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Onboarding.ActivationExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.processes.FindIDsByStatusCreatedBefore(ctx, models.ProcessActivationInProgress, before)
		if err != nil {
			return err
		}
		changed, err = s.terminateProcessesCascading(ctx, ids, models.ErrorProcessExpiredActivation)
		return err
	})
	return changed, err
}

// TerminateExpiredProcessVerifications fails processes whose identity
// verification exceeded the verification window.
func (s *CleaningService) TerminateExpiredProcessVerifications(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Identity.VerificationExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.processes.FindIDsByStatusCreatedBefore(ctx, models.ProcessVerificationInProgress, before)
		if err != nil {
			return err
		}
		changed, err = s.terminateProcessesCascading(ctx, ids, models.ErrorProcessExpiredVerification)
		return err
	})
	return changed, err
}

// TerminateExpiredProcesses fails every unfinished process older than the
// overall process lifetime, regardless of its stage.
func (s *CleaningService) TerminateExpiredProcesses(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Onboarding.ProcessExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.processes.FindIDsCreatedBefore(ctx, before)
		if err != nil {
			return err
		}
		changed, err = s.terminateProcessesCascading(ctx, ids, models.ErrorProcessExpired)
		return err
	})
	return changed, err
}

// terminateProcessesCascading fails the processes and, in the same
// transaction, their unfinished identity verifications and documents.
func (s *CleaningService) terminateProcessesCascading(ctx context.Context, processIDs []string, errorDetail string) (int64, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	changed, err := s.processes.Terminate(ctx, processIDs, errorDetail, models.OriginCleanup)
	if err != nil {
		return 0, err
	}

	ivIDs, err := s.identities.FindNotCompletedIDsByProcessIDs(ctx, processIDs)
	if err != nil {
		return changed, err
	}
	if len(ivIDs) > 0 {
		if _, err := s.identities.Terminate(ctx, ivIDs, errorDetail, models.OriginCleanup); err != nil {
			return changed, err
		}
		docIDs, err := s.documents.FindIDsByIdentityVerificationIDs(ctx, ivIDs, models.DocumentStatusesNotFinished)
		if err != nil {
			return changed, err
		}
		if len(docIDs) > 0 {
			if _, err := s.documents.Terminate(ctx, docIDs, errorDetail, models.OriginCleanup); err != nil {
				return changed, err
			}
		}
	}

	return changed, s.auditor.Emit(ctx, audit.Event{
		Action: string(audit.EventEntityExpired),
		Detail: fmt.Sprintf("%s: %d processes", errorDetail, changed),
	})
}

// TerminateExpiredIdentityVerifications fails unfinished identity
// verifications past the verification window whose process has not been
// cleaned yet, together with their open documents.
func (s *CleaningService) TerminateExpiredIdentityVerifications(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Identity.VerificationExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.identities.FindNotCompletedIDs(ctx, before)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		changed, err = s.identities.Terminate(ctx, ids, models.ErrorDocumentVerificationExpired, models.OriginCleanup)
		if err != nil {
			return err
		}
		docIDs, err := s.documents.FindIDsByIdentityVerificationIDs(ctx, ids, models.DocumentStatusesNotFinished)
		if err != nil {
			return err
		}
		if len(docIDs) > 0 {
			if _, err := s.documents.Terminate(ctx, docIDs, models.ErrorDocumentVerificationExpired, models.OriginCleanup); err != nil {
				return err
			}
		}
		return s.auditor.Emit(ctx, audit.Event{
			Action: string(audit.EventEntityExpired),
			Detail: fmt.Sprintf("expired: %d identity verifications", changed),
		})
	})
	return changed, err
}

// TerminateExpiredDocumentVerifications fails documents stuck in a
// non-terminal status past the verification window.
func (s *CleaningService) TerminateExpiredDocumentVerifications(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Identity.VerificationExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.documents.FindExpiredIDs(ctx, models.DocumentStatusesNotFinished, before)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		changed, err = s.documents.Terminate(ctx, ids, models.ErrorDocumentVerificationExpired, models.OriginCleanup)
		if err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Action: string(audit.EventEntityExpired),
			Detail: fmt.Sprintf("expired: %d documents", changed),
		})
	})
	return changed, err
}

// TerminateExpiredOtps fails active OTP codes past their validity window.
func (s *CleaningService) TerminateExpiredOtps(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Onboarding.OtpExpiration)
	var changed int64
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		ids, err := s.otps.FindExpiredIDs(ctx, before)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		changed, err = s.otps.Terminate(ctx, ids)
		if err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Action: string(audit.EventEntityExpired),
			Detail: fmt.Sprintf("expired: %d otp codes", changed),
		})
	})
	return changed, err
}

// CleanupDocumentPayloads deletes raw document bytes past the retention
// window. Payload rows only bridge upload and submit; long retention of raw
// identity documents is a liability.
func (s *CleaningService) CleanupDocumentPayloads(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.cfg.Identity.DataRetention)
	deleted, err := s.payloads.DeleteCreatedBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.auditor.Emit(ctx, audit.Event{
		Action: string(audit.EventPayloadsCleaned),
		Detail: fmt.Sprintf("%d payloads deleted", deleted),
	})
}
