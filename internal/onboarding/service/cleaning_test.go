package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service/mocks"
	"onboard/internal/onboarding/store"
)

type cleaningTestEnv struct {
	service *CleaningService
	stores  store.Stores
}

func newCleaningTestEnv(t *testing.T) *cleaningTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	stores := store.NewMemory().Stores()
	service := NewCleaningService(nil, stores, testConfig(), relaxedAuditor(ctrl), testLogger())
	return &cleaningTestEnv{service: service, stores: stores}
}

func seedProcessAt(t *testing.T, stores store.Stores, status models.ProcessStatus, createdAt time.Time) *models.Process {
	t.Helper()
	process := &models.Process{
		ID:           uuid.NewString(),
		UserID:       "user-1",
		ActivationID: uuid.NewString(),
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, stores.Processes.Create(t.Context(), process))
	return process
}

func seedIdentityAt(t *testing.T, stores store.Stores, processID string, phase models.Phase, status models.Status, createdAt time.Time) *models.IdentityVerification {
	t.Helper()
	identity := &models.IdentityVerification{
		ID:        uuid.NewString(),
		ProcessID: processID,
		UserID:    "user-1",
		Phase:     phase,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, stores.IdentityVerifications.Create(t.Context(), identity))
	return identity
}

func seedDocumentAt(t *testing.T, stores store.Stores, identityID string, status models.DocumentStatus, createdAt time.Time) *models.DocumentVerification {
	t.Helper()
	doc := &models.DocumentVerification{
		ID:                     uuid.NewString(),
		IdentityVerificationID: identityID,
		Type:                   models.DocumentTypeIDCard,
		Status:                 status,
		UsedForVerification:    true,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
	require.NoError(t, stores.Documents.Create(t.Context(), doc))
	return doc
}

func Test_TerminateExpiredProcessActivations(t *testing.T) {
	env := newCleaningTestEnv(t)
	stale := seedProcessAt(t, env.stores, models.ProcessActivationInProgress, time.Now().Add(-time.Hour))
	fresh := seedProcessAt(t, env.stores, models.ProcessActivationInProgress, time.Now())
	verifying := seedProcessAt(t, env.stores, models.ProcessVerificationInProgress, time.Now().Add(-time.Hour))

	changed, err := env.service.TerminateExpiredProcessActivations(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failed, err := env.stores.Processes.FindByID(t.Context(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessFailed, failed.Status)
	assert.Equal(t, models.ErrorProcessExpiredActivation, failed.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, failed.ErrorOrigin)
	require.NotNil(t, failed.FailedAt)

	for _, untouched := range []*models.Process{fresh, verifying} {
		got, err := env.stores.Processes.FindByID(t.Context(), untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, untouched.Status, got.Status)
	}
}

func Test_TerminateExpiredProcessActivations_Cascades(t *testing.T) {
	env := newCleaningTestEnv(t)
	old := time.Now().Add(-time.Hour)
	process := seedProcessAt(t, env.stores, models.ProcessActivationInProgress, old)
	identity := seedIdentityAt(t, env.stores, process.ID, models.PhaseDocumentUpload, models.StatusInProgress, old)
	openDoc := seedDocumentAt(t, env.stores, identity.ID, models.DocumentUploadInProgress, old)
	acceptedDoc := seedDocumentAt(t, env.stores, identity.ID, models.DocumentAccepted, old)

	changed, err := env.service.TerminateExpiredProcessActivations(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failedIdentity, err := env.stores.IdentityVerifications.FindByID(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failedIdentity.Status)
	assert.Equal(t, models.ErrorProcessExpiredActivation, failedIdentity.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, failedIdentity.ErrorOrigin)

	failedDoc, err := env.stores.Documents.FindByID(t.Context(), openDoc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFailed, failedDoc.Status)
	assert.Equal(t, models.ErrorProcessExpiredActivation, failedDoc.ErrorDetail)

	keptDoc, err := env.stores.Documents.FindByID(t.Context(), acceptedDoc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentAccepted, keptDoc.Status)
}

func Test_TerminateExpiredProcessVerifications(t *testing.T) {
	env := newCleaningTestEnv(t)
	stale := seedProcessAt(t, env.stores, models.ProcessVerificationInProgress, time.Now().Add(-2*time.Hour))
	fresh := seedProcessAt(t, env.stores, models.ProcessVerificationInProgress, time.Now())

	changed, err := env.service.TerminateExpiredProcessVerifications(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failed, err := env.stores.Processes.FindByID(t.Context(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessFailed, failed.Status)
	assert.Equal(t, models.ErrorProcessExpiredVerification, failed.ErrorDetail)

	kept, err := env.stores.Processes.FindByID(t.Context(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessVerificationInProgress, kept.Status)
}

func Test_TerminateExpiredProcesses(t *testing.T) {
	env := newCleaningTestEnv(t)
	old := time.Now().Add(-4 * time.Hour)
	activating := seedProcessAt(t, env.stores, models.ProcessActivationInProgress, old)
	verifying := seedProcessAt(t, env.stores, models.ProcessVerificationInProgress, old)
	finished := seedProcessAt(t, env.stores, models.ProcessFinished, old)
	fresh := seedProcessAt(t, env.stores, models.ProcessVerificationInProgress, time.Now())

	changed, err := env.service.TerminateExpiredProcesses(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	for _, stale := range []*models.Process{activating, verifying} {
		got, err := env.stores.Processes.FindByID(t.Context(), stale.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProcessFailed, got.Status)
		assert.Equal(t, models.ErrorProcessExpired, got.ErrorDetail)
	}
	for _, untouched := range []*models.Process{finished, fresh} {
		got, err := env.stores.Processes.FindByID(t.Context(), untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, untouched.Status, got.Status)
	}
}

func Test_TerminateExpiredIdentityVerifications(t *testing.T) {
	env := newCleaningTestEnv(t)
	old := time.Now().Add(-2 * time.Hour)
	stale := seedIdentityAt(t, env.stores, "proc-1", models.PhaseDocumentVerification, models.StatusInProgress, old)
	openDoc := seedDocumentAt(t, env.stores, stale.ID, models.DocumentVerificationPending, old)
	completed := seedIdentityAt(t, env.stores, "proc-2", models.PhaseCompleted, models.StatusAccepted, old)
	fresh := seedIdentityAt(t, env.stores, "proc-3", models.PhaseDocumentUpload, models.StatusInProgress, time.Now())

	changed, err := env.service.TerminateExpiredIdentityVerifications(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failed, err := env.stores.IdentityVerifications.FindByID(t.Context(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, models.ErrorDocumentVerificationExpired, failed.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, failed.ErrorOrigin)

	failedDoc, err := env.stores.Documents.FindByID(t.Context(), openDoc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFailed, failedDoc.Status)
	assert.Equal(t, models.ErrorDocumentVerificationExpired, failedDoc.ErrorDetail)

	for _, untouched := range []*models.IdentityVerification{completed, fresh} {
		got, err := env.stores.IdentityVerifications.FindByID(t.Context(), untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, untouched.Status, got.Status)
	}
}

func Test_TerminateExpiredDocumentVerifications(t *testing.T) {
	env := newCleaningTestEnv(t)
	old := time.Now().Add(-2 * time.Hour)
	stuck := seedDocumentAt(t, env.stores, "iv-1", models.DocumentVerificationInProgress, old)
	accepted := seedDocumentAt(t, env.stores, "iv-1", models.DocumentAccepted, old)
	fresh := seedDocumentAt(t, env.stores, "iv-1", models.DocumentVerificationInProgress, time.Now())

	changed, err := env.service.TerminateExpiredDocumentVerifications(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failed, err := env.stores.Documents.FindByID(t.Context(), stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFailed, failed.Status)
	assert.Equal(t, models.ErrorDocumentVerificationExpired, failed.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, failed.ErrorOrigin)

	for _, untouched := range []*models.DocumentVerification{accepted, fresh} {
		got, err := env.stores.Documents.FindByID(t.Context(), untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, untouched.Status, got.Status)
	}
}

func Test_TerminateExpiredOtps(t *testing.T) {
	env := newCleaningTestEnv(t)
	old := time.Now().Add(-time.Hour)
	stale := &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: "proc-1",
		Type:      models.OtpTypeUserVerification,
		Status:    models.OtpActive,
		CreatedAt: old,
		UpdatedAt: old,
	}
	require.NoError(t, env.stores.Otps.Create(t.Context(), stale))
	verified := &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: "proc-2",
		Type:      models.OtpTypeUserVerification,
		Status:    models.OtpVerified,
		CreatedAt: old,
		UpdatedAt: old,
	}
	require.NoError(t, env.stores.Otps.Create(t.Context(), verified))
	fresh := &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: "proc-3",
		Type:      models.OtpTypeUserVerification,
		Status:    models.OtpActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, env.stores.Otps.Create(t.Context(), fresh))

	changed, err := env.service.TerminateExpiredOtps(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	failed, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), "proc-1", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpFailed, failed.Status)
	assert.Equal(t, models.ErrorOtpCanceled, failed.ErrorDetail)
	require.NotNil(t, failed.FailedAt)

	kept, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), "proc-2", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpVerified, kept.Status)

	active, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), "proc-3", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpActive, active.Status)
}

func Test_CleanupDocumentPayloads(t *testing.T) {
	env := newCleaningTestEnv(t)
	stale := &models.DocumentPayload{
		ID:        uuid.NewString(),
		Filename:  "front.jpg",
		Data:      []byte("image bytes"),
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, env.stores.Payloads.Create(t.Context(), stale))
	fresh := &models.DocumentPayload{
		ID:        uuid.NewString(),
		Filename:  "back.jpg",
		Data:      []byte("image bytes"),
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.stores.Payloads.Create(t.Context(), fresh))

	deleted, err := env.service.CleanupDocumentPayloads(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = env.stores.Payloads.FindByID(t.Context(), stale.ID)
	require.Error(t, err)

	kept, err := env.stores.Payloads.FindByID(t.Context(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "back.jpg", kept.Filename)
}

// None of the jobs emit audit events when nothing expired.
func Test_CleaningJobs_NoopWithoutCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	stores := store.NewMemory().Stores()
	auditor := mocks.NewMockAuditor(ctrl)
	service := NewCleaningService(nil, stores, testConfig(), auditor, testLogger())

	jobs := []func(context.Context) (int64, error){
		service.TerminateExpiredProcessActivations,
		service.TerminateExpiredProcessVerifications,
		service.TerminateExpiredProcesses,
		service.TerminateExpiredIdentityVerifications,
		service.TerminateExpiredDocumentVerifications,
		service.TerminateExpiredOtps,
		service.CleanupDocumentPayloads,
	}
	for _, job := range jobs {
		changed, err := job(t.Context())
		require.NoError(t, err)
		assert.Zero(t, changed)
	}
}
