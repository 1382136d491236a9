// Package store persists the onboarding entities. Postgres is the
// production backend; the memory implementation backs tests and single-node
// development. Relationships are foreign-key ids resolved by explicit
// lookups, never embedded object graphs.
package store

import (
	"context"
	"time"

	"onboard/internal/onboarding/models"
)

// ProcessStore persists onboarding processes.
type ProcessStore interface {
	Create(ctx context.Context, process *models.Process) error
	Update(ctx context.Context, process *models.Process) error
	FindByID(ctx context.Context, id string) (*models.Process, error)
	// FindByIDForUpdate locks the process row for the current transaction.
	// Load-bearing for serializing concurrent drivers of one process.
	FindByIDForUpdate(ctx context.Context, id string) (*models.Process, error)
	FindByActivationID(ctx context.Context, activationID string) (*models.Process, error)
	FindActiveByUserID(ctx context.Context, userID string) (*models.Process, error)
	// FindIDsByStatusCreatedBefore supports expiration scans.
	FindIDsByStatusCreatedBefore(ctx context.Context, status models.ProcessStatus, before time.Time) ([]string, error)
	FindIDsCreatedBefore(ctx context.Context, before time.Time) ([]string, error)
	// Terminate marks all ids failed with the canonical error in one
	// statement and returns the number of rows changed.
	Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error)
}

// IdentityVerificationStore persists identity verifications.
type IdentityVerificationStore interface {
	Create(ctx context.Context, iv *models.IdentityVerification) error
	Update(ctx context.Context, iv *models.IdentityVerification) error
	FindByID(ctx context.Context, id string) (*models.IdentityVerification, error)
	// FindLatestByActivationID returns the newest verification for the
	// activation, ordered by creation timestamp.
	FindLatestByActivationID(ctx context.Context, activationID string) (*models.IdentityVerification, error)
	ListByPhaseAndStatus(ctx context.Context, phase models.Phase, status models.Status) ([]*models.IdentityVerification, error)
	FindNotCompletedIDs(ctx context.Context, before time.Time) ([]string, error)
	FindNotCompletedIDsByProcessIDs(ctx context.Context, processIDs []string) ([]string, error)
	Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error)
}

// DocumentStore persists document verifications.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.DocumentVerification) error
	Update(ctx context.Context, doc *models.DocumentVerification) error
	FindByID(ctx context.Context, id string) (*models.DocumentVerification, error)
	ListByIdentityVerification(ctx context.Context, ivID string) ([]*models.DocumentVerification, error)
	// ListUsedForVerification returns non-disposed documents flagged for the
	// final cross-document verification.
	ListUsedForVerification(ctx context.Context, ivID string) ([]*models.DocumentVerification, error)
	ListWithPhoto(ctx context.Context, ivID string) ([]*models.DocumentVerification, error)
	ListByStatusCreatedBefore(ctx context.Context, status models.DocumentStatus, before time.Time) ([]*models.DocumentVerification, error)
	ListByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.DocumentVerification, error)
	FindExpiredIDs(ctx context.Context, statuses []models.DocumentStatus, before time.Time) ([]string, error)
	FindIDsByIdentityVerificationIDs(ctx context.Context, ivIDs []string, statuses []models.DocumentStatus) ([]string, error)
	Terminate(ctx context.Context, ids []string, errorDetail string, origin models.ErrorOrigin) (int64, error)
}

// DocumentResultStore persists per-round provider results.
type DocumentResultStore interface {
	Create(ctx context.Context, result *models.DocumentResult) error
	// FindLatestForDocument returns the newest result for the document and
	// processing phase; latest wins by creation timestamp.
	FindLatestForDocument(ctx context.Context, documentID string, phase models.ProcessingPhase) (*models.DocumentResult, error)
	ListForDocument(ctx context.Context, documentID string) ([]*models.DocumentResult, error)
}

// PayloadStore holds raw document bytes until submitted upstream.
type PayloadStore interface {
	Create(ctx context.Context, payload *models.DocumentPayload) error
	FindByID(ctx context.Context, id string) (*models.DocumentPayload, error)
	Delete(ctx context.Context, id string) error
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// OtpStore persists one-time codes.
type OtpStore interface {
	Create(ctx context.Context, otp *models.Otp) error
	Update(ctx context.Context, otp *models.Otp) error
	// FindNewestByProcessAndType returns the current OTP of the type.
	FindNewestByProcessAndType(ctx context.Context, processID string, otpType models.OtpType) (*models.Otp, error)
	FindExpiredIDs(ctx context.Context, before time.Time) ([]string, error)
	Terminate(ctx context.Context, ids []string) (int64, error)
}

// ScaResultStore persists strong-customer-authentication results.
type ScaResultStore interface {
	Create(ctx context.Context, result *models.ScaResult) error
	Update(ctx context.Context, result *models.ScaResult) error
	// FindLatestByIdentityVerification returns the authoritative newest row.
	FindLatestByIdentityVerification(ctx context.Context, ivID string) (*models.ScaResult, error)
}

// Stores bundles every entity store for wiring.
type Stores struct {
	Processes             ProcessStore
	IdentityVerifications IdentityVerificationStore
	Documents             DocumentStore
	DocumentResults       DocumentResultStore
	Payloads              PayloadStore
	Otps                  OtpStore
	ScaResults            ScaResultStore
}
