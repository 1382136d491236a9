package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// ProcessService manages the onboarding process lifecycle. A user has at
// most one active process; the invariant is enforced by lookup, not by a
// database constraint.
type ProcessService struct {
	db         *sql.DB
	processes  store.ProcessStore
	identities store.IdentityVerificationStore
	cfg        *config.Config
	auditor    Auditor
	logger     *slog.Logger
}

func NewProcessService(
	db *sql.DB,
	stores store.Stores,
	cfg *config.Config,
	auditor Auditor,
	logger *slog.Logger,
) *ProcessService {
	return &ProcessService{
		db:         db,
		processes:  stores.Processes,
		identities: stores.IdentityVerifications,
		cfg:        cfg,
		auditor:    auditor,
		logger:     logger,
	}
}

// StartOnboarding returns the user's active process or creates a new one.
func (s *ProcessService) StartOnboarding(ctx context.Context, userID, activationID string) (*models.Process, error) {
	var process *models.Process
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.processes.FindActiveByUserID(ctx, userID)
		if err == nil {
			if existing.ActivationID != activationID {
				return dErrors.New(dErrors.CodeConflict, "onboarding process exists for another activation")
			}
			process = existing
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}

		now := time.Now()
		process = &models.Process{
			ID:           uuid.NewString(),
			UserID:       userID,
			ActivationID: activationID,
			Status:       models.ProcessActivationInProgress,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.processes.Create(ctx, process); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:    models.NewOwnerID(userID, activationID).SecuredUserID(),
			ProcessID: process.ID,
			Action:    string(audit.EventProcessStarted),
		})
	})
	if err != nil {
		return nil, err
	}
	return process, nil
}

// ActivationCommitted moves the process into the verification stage once
// the credential activation succeeds.
func (s *ProcessService) ActivationCommitted(ctx context.Context, processID string) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		process, err := s.processes.FindByIDForUpdate(ctx, processID)
		if err != nil {
			return err
		}
		if process.Status != models.ProcessActivationInProgress {
			return dErrors.New(dErrors.CodeInvalidState, "process is not in activation stage")
		}
		process.Status = models.ProcessVerificationInProgress
		process.UpdatedAt = time.Now()
		return s.processes.Update(ctx, process)
	})
}

// FindProcess returns the process for the owner's activation and verifies
// ownership.
func (s *ProcessService) FindProcess(ctx context.Context, owner models.OwnerID) (*models.Process, error) {
	process, err := s.processes.FindByActivationID(ctx, owner.ActivationID)
	if err != nil {
		return nil, err
	}
	if process.UserID != owner.UserID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "process does not belong to user")
	}
	return process, nil
}

// FinishProcess marks the process finished. Called after the identity
// verification completes as accepted.
func (s *ProcessService) FinishProcess(ctx context.Context, processID string) error {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		return err
	}
	if process.Status == models.ProcessFinished {
		return nil
	}
	now := time.Now()
	process.Status = models.ProcessFinished
	process.UpdatedAt = now
	process.FinishedAt = &now
	if err := s.processes.Update(ctx, process); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "onboarding process finished", "process_id", process.ID)
	return s.auditor.Emit(ctx, audit.Event{
		ProcessID: process.ID,
		Action:    string(audit.EventProcessFinished),
	})
}

// FailProcess marks the process failed with the given canonical detail.
func (s *ProcessService) FailProcess(ctx context.Context, processID, errorDetail string, origin models.ErrorOrigin) error {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		return err
	}
	if process.Status == models.ProcessFailed {
		return nil
	}
	now := time.Now()
	process.Status = models.ProcessFailed
	process.ErrorDetail = errorDetail
	process.ErrorOrigin = origin
	process.UpdatedAt = now
	process.FailedAt = &now
	if err := s.processes.Update(ctx, process); err != nil {
		return err
	}
	return s.auditor.Emit(ctx, audit.Event{
		ProcessID: process.ID,
		Action:    string(audit.EventProcessFailed),
		Detail:    errorDetail,
	})
}
