package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service/mocks"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewFor(prometheus.NewRegistry())
}

func testConfig() *config.Config {
	return &config.Config{
		Identity: config.IdentityVerification{
			PresenceCheckEnabled:   true,
			OtpVerificationEnabled: true,
			MaxDocumentUploads:     10,
			VerificationExpiration: time.Hour,
			DataRetention:          24 * time.Hour,
		},
		Onboarding: config.Onboarding{
			MaxProcessErrorScore: 400,
			MaxOtpFailedAttempts: 5,
			OtpLength:            8,
			OtpExpiration:        5 * time.Minute,
			OtpResendPeriod:      30 * time.Second,
			ProcessExpiration:    3 * time.Hour,
			ActivationExpiration: 5 * time.Minute,
		},
	}
}

// relaxedAuditor returns an auditor accepting any emission. Tests asserting
// on audit content set explicit expectations instead.
func relaxedAuditor(ctrl *gomock.Controller) *mocks.MockAuditor {
	auditor := mocks.NewMockAuditor(ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return auditor
}

func seedProcess(t *testing.T, stores store.Stores, owner models.OwnerID) *models.Process {
	t.Helper()
	now := time.Now()
	process := &models.Process{
		ID:           uuid.NewString(),
		UserID:       owner.UserID,
		ActivationID: owner.ActivationID,
		Status:       models.ProcessVerificationInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := stores.Processes.Create(t.Context(), process); err != nil {
		t.Fatalf("seed process: %v", err)
	}
	return process
}

func seedIdentity(t *testing.T, stores store.Stores, owner models.OwnerID, processID string, phase models.Phase, status models.Status) *models.IdentityVerification {
	t.Helper()
	now := time.Now()
	identity := &models.IdentityVerification{
		ID:           uuid.NewString(),
		ProcessID:    processID,
		ActivationID: owner.ActivationID,
		UserID:       owner.UserID,
		Phase:        phase,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := stores.IdentityVerifications.Create(t.Context(), identity); err != nil {
		t.Fatalf("seed identity verification: %v", err)
	}
	return identity
}

func seedDocument(t *testing.T, stores store.Stores, identity *models.IdentityVerification, docType models.DocumentType, status models.DocumentStatus, uploadID string) *models.DocumentVerification {
	t.Helper()
	now := time.Now()
	doc := &models.DocumentVerification{
		ID:                     uuid.NewString(),
		IdentityVerificationID: identity.ID,
		ActivationID:           identity.ActivationID,
		Type:                   docType,
		Status:                 status,
		UploadID:               uploadID,
		UsedForVerification:    true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := stores.Documents.Create(t.Context(), doc); err != nil {
		t.Fatalf("seed document verification: %v", err)
	}
	return doc
}
