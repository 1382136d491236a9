package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/models"
	dErrors "onboard/pkg/domain-errors"
)

func newProcess(status models.ProcessStatus, createdAt time.Time) *models.Process {
	return &models.Process{
		ID:           uuid.NewString(),
		UserID:       "user-1",
		ActivationID: uuid.NewString(),
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func Test_Processes_FindByID_ReturnsCopy(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()

	process := newProcess(models.ProcessActivationInProgress, time.Now())
	require.NoError(t, stores.Processes.Create(ctx, process))

	found, err := stores.Processes.FindByID(ctx, process.ID)
	require.NoError(t, err)

	found.Status = models.ProcessFailed

	again, err := stores.Processes.FindByID(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessActivationInProgress, again.Status)
}

func Test_Processes_FindByID_NotFound(t *testing.T) {
	stores := NewMemory().Stores()

	_, err := stores.Processes.FindByID(t.Context(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_Processes_Update_UnknownID(t *testing.T) {
	stores := NewMemory().Stores()

	process := newProcess(models.ProcessActivationInProgress, time.Now())
	err := stores.Processes.Update(t.Context(), process)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_Processes_FindActiveByUserID_PicksNewest(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	older := newProcess(models.ProcessActivationInProgress, now.Add(-time.Hour))
	newer := newProcess(models.ProcessVerificationInProgress, now)
	finished := newProcess(models.ProcessFinished, now.Add(time.Minute))
	require.NoError(t, stores.Processes.Create(ctx, older))
	require.NoError(t, stores.Processes.Create(ctx, newer))
	require.NoError(t, stores.Processes.Create(ctx, finished))

	found, err := stores.Processes.FindActiveByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)
}

func Test_Processes_FindActiveByUserID_NoActive(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()

	finished := newProcess(models.ProcessFinished, time.Now())
	require.NoError(t, stores.Processes.Create(ctx, finished))

	_, err := stores.Processes.FindActiveByUserID(ctx, "user-1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_Processes_FindByActivationID(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()

	process := newProcess(models.ProcessActivationInProgress, time.Now())
	require.NoError(t, stores.Processes.Create(ctx, process))

	found, err := stores.Processes.FindByActivationID(ctx, process.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, process.ID, found.ID)

	_, err = stores.Processes.FindByActivationID(ctx, "unknown")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_Processes_FindIDsByStatusCreatedBefore_Sorted(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	cutoff := time.Now()

	var wantIDs []string
	for range 3 {
		p := newProcess(models.ProcessActivationInProgress, cutoff.Add(-time.Hour))
		require.NoError(t, stores.Processes.Create(ctx, p))
		wantIDs = append(wantIDs, p.ID)
	}
	fresh := newProcess(models.ProcessActivationInProgress, cutoff.Add(time.Hour))
	wrongStatus := newProcess(models.ProcessVerificationInProgress, cutoff.Add(-time.Hour))
	require.NoError(t, stores.Processes.Create(ctx, fresh))
	require.NoError(t, stores.Processes.Create(ctx, wrongStatus))

	ids, err := stores.Processes.FindIDsByStatusCreatedBefore(ctx, models.ProcessActivationInProgress, cutoff)
	require.NoError(t, err)

	assert.IsIncreasing(t, ids)
	assert.ElementsMatch(t, wantIDs, ids)
}

func Test_Processes_FindIDsCreatedBefore_SkipsTerminal(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	cutoff := time.Now()

	active := newProcess(models.ProcessVerificationInProgress, cutoff.Add(-time.Hour))
	finished := newProcess(models.ProcessFinished, cutoff.Add(-time.Hour))
	failed := newProcess(models.ProcessFailed, cutoff.Add(-time.Hour))
	require.NoError(t, stores.Processes.Create(ctx, active))
	require.NoError(t, stores.Processes.Create(ctx, finished))
	require.NoError(t, stores.Processes.Create(ctx, failed))

	ids, err := stores.Processes.FindIDsCreatedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, ids)
}

func Test_Processes_Terminate_SkipsAlreadyFailed(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()

	active := newProcess(models.ProcessVerificationInProgress, time.Now())
	failed := newProcess(models.ProcessFailed, time.Now())
	require.NoError(t, stores.Processes.Create(ctx, active))
	require.NoError(t, stores.Processes.Create(ctx, failed))

	changed, err := stores.Processes.Terminate(ctx, []string{active.ID, failed.ID, "missing"}, "expired", models.OriginCleanup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	terminated, err := stores.Processes.FindByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessFailed, terminated.Status)
	assert.Equal(t, "expired", terminated.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, terminated.ErrorOrigin)
	require.NotNil(t, terminated.FailedAt)
}

func newIdentity(processID string, phase models.Phase, status models.Status, createdAt time.Time) *models.IdentityVerification {
	return &models.IdentityVerification{
		ID:           uuid.NewString(),
		ProcessID:    processID,
		ActivationID: uuid.NewString(),
		UserID:       "user-1",
		Phase:        phase,
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func Test_Identities_FindLatestByActivationID(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	older := newIdentity("process-1", models.PhaseCompleted, models.StatusFailed, now.Add(-time.Hour))
	newer := newIdentity("process-1", models.PhaseDocumentUpload, models.StatusInProgress, now)
	newer.ActivationID = older.ActivationID
	require.NoError(t, stores.IdentityVerifications.Create(ctx, older))
	require.NoError(t, stores.IdentityVerifications.Create(ctx, newer))

	found, err := stores.IdentityVerifications.FindLatestByActivationID(ctx, older.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)
}

func Test_Identities_ListByPhaseAndStatus_OrderedByCreation(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	second := newIdentity("process-1", models.PhaseDocumentUpload, models.StatusInProgress, now)
	first := newIdentity("process-2", models.PhaseDocumentUpload, models.StatusInProgress, now.Add(-time.Hour))
	other := newIdentity("process-3", models.PhaseDocumentVerification, models.StatusInProgress, now)
	require.NoError(t, stores.IdentityVerifications.Create(ctx, second))
	require.NoError(t, stores.IdentityVerifications.Create(ctx, first))
	require.NoError(t, stores.IdentityVerifications.Create(ctx, other))

	listed, err := stores.IdentityVerifications.ListByPhaseAndStatus(ctx, models.PhaseDocumentUpload, models.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)
}

func Test_Identities_FindNotCompletedIDsByProcessIDs(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	open := newIdentity("process-1", models.PhaseOtpVerification, models.StatusVerificationPending, now)
	completed := newIdentity("process-1", models.PhaseCompleted, models.StatusAccepted, now)
	otherProcess := newIdentity("process-2", models.PhaseDocumentUpload, models.StatusInProgress, now)
	require.NoError(t, stores.IdentityVerifications.Create(ctx, open))
	require.NoError(t, stores.IdentityVerifications.Create(ctx, completed))
	require.NoError(t, stores.IdentityVerifications.Create(ctx, otherProcess))

	ids, err := stores.IdentityVerifications.FindNotCompletedIDsByProcessIDs(ctx, []string{"process-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID}, ids)
}

func newDocument(ivID string, status models.DocumentStatus, createdAt time.Time) *models.DocumentVerification {
	return &models.DocumentVerification{
		ID:                     uuid.NewString(),
		IdentityVerificationID: ivID,
		Type:                   models.DocumentTypeIDCard,
		Side:                   models.CardSideFront,
		Status:                 status,
		UsedForVerification:    true,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
}

func Test_Documents_ListUsedForVerification_ExcludesDisposed(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	used := newDocument("iv-1", models.DocumentAccepted, now)
	disposed := newDocument("iv-1", models.DocumentDisposed, now)
	unused := newDocument("iv-1", models.DocumentAccepted, now)
	unused.UsedForVerification = false
	require.NoError(t, stores.Documents.Create(ctx, used))
	require.NoError(t, stores.Documents.Create(ctx, disposed))
	require.NoError(t, stores.Documents.Create(ctx, unused))

	listed, err := stores.Documents.ListUsedForVerification(ctx, "iv-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, used.ID, listed[0].ID)
}

func Test_Documents_ListWithPhoto(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	withPhoto := newDocument("iv-1", models.DocumentAccepted, now)
	withPhoto.PhotoID = "photo-1"
	withoutPhoto := newDocument("iv-1", models.DocumentAccepted, now)
	require.NoError(t, stores.Documents.Create(ctx, withPhoto))
	require.NoError(t, stores.Documents.Create(ctx, withoutPhoto))

	listed, err := stores.Documents.ListWithPhoto(ctx, "iv-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, withPhoto.ID, listed[0].ID)
}

func Test_Documents_FindExpiredIDs_FiltersByStatusSet(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	cutoff := time.Now()

	pending := newDocument("iv-1", models.DocumentVerificationPending, cutoff.Add(-time.Hour))
	accepted := newDocument("iv-1", models.DocumentAccepted, cutoff.Add(-time.Hour))
	fresh := newDocument("iv-1", models.DocumentVerificationPending, cutoff.Add(time.Hour))
	require.NoError(t, stores.Documents.Create(ctx, pending))
	require.NoError(t, stores.Documents.Create(ctx, accepted))
	require.NoError(t, stores.Documents.Create(ctx, fresh))

	ids, err := stores.Documents.FindExpiredIDs(ctx, models.DocumentStatusesNotFinished, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID}, ids)
}

func Test_Documents_Terminate_SkipsAlreadyFailed(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	open := newDocument("iv-1", models.DocumentUploadInProgress, now)
	failed := newDocument("iv-1", models.DocumentFailed, now)
	require.NoError(t, stores.Documents.Create(ctx, open))
	require.NoError(t, stores.Documents.Create(ctx, failed))

	changed, err := stores.Documents.Terminate(ctx, []string{open.ID, failed.ID}, "expired", models.OriginCleanup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	terminated, err := stores.Documents.FindByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFailed, terminated.Status)
	assert.Equal(t, "expired", terminated.ErrorDetail)
}

func Test_Results_FindLatestForDocument_PicksNewestInPhase(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	older := &models.DocumentResult{
		ID:                     uuid.NewString(),
		DocumentVerificationID: "doc-1",
		Phase:                  models.ProcessingPhaseUpload,
		ExtractedData:          `{"name":"old"}`,
		CreatedAt:              now.Add(-time.Hour),
	}
	newer := &models.DocumentResult{
		ID:                     uuid.NewString(),
		DocumentVerificationID: "doc-1",
		Phase:                  models.ProcessingPhaseUpload,
		ExtractedData:          `{"name":"new"}`,
		CreatedAt:              now,
	}
	otherPhase := &models.DocumentResult{
		ID:                     uuid.NewString(),
		DocumentVerificationID: "doc-1",
		Phase:                  models.ProcessingPhaseVerification,
		CreatedAt:              now.Add(time.Hour),
	}
	require.NoError(t, stores.DocumentResults.Create(ctx, older))
	require.NoError(t, stores.DocumentResults.Create(ctx, newer))
	require.NoError(t, stores.DocumentResults.Create(ctx, otherPhase))

	latest, err := stores.DocumentResults.FindLatestForDocument(ctx, "doc-1", models.ProcessingPhaseUpload)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	listed, err := stores.DocumentResults.ListForDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, older.ID, listed[0].ID)
}

func Test_Payloads_DeleteCreatedBefore(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	cutoff := time.Now()

	stale := &models.DocumentPayload{
		ID:        uuid.NewString(),
		Filename:  "front.jpg",
		Data:      []byte("img"),
		CreatedAt: cutoff.Add(-time.Hour),
	}
	fresh := &models.DocumentPayload{
		ID:        uuid.NewString(),
		Filename:  "back.jpg",
		Data:      []byte("img"),
		CreatedAt: cutoff.Add(time.Hour),
	}
	require.NoError(t, stores.Payloads.Create(ctx, stale))
	require.NoError(t, stores.Payloads.Create(ctx, fresh))

	deleted, err := stores.Payloads.DeleteCreatedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = stores.Payloads.FindByID(ctx, stale.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = stores.Payloads.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func newOtp(processID string, status models.OtpStatus, createdAt time.Time) *models.Otp {
	return &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: processID,
		Type:      models.OtpTypeUserVerification,
		CodeHash:  "hash",
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func Test_Otps_FindNewestByProcessAndType(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	older := newOtp("process-1", models.OtpFailed, now.Add(-time.Hour))
	newer := newOtp("process-1", models.OtpActive, now)
	otherType := newOtp("process-1", models.OtpActive, now.Add(time.Hour))
	otherType.Type = models.OtpTypeActivation
	require.NoError(t, stores.Otps.Create(ctx, older))
	require.NoError(t, stores.Otps.Create(ctx, newer))
	require.NoError(t, stores.Otps.Create(ctx, otherType))

	found, err := stores.Otps.FindNewestByProcessAndType(ctx, "process-1", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)
}

func Test_Otps_Terminate_OnlyActive(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	active := newOtp("process-1", models.OtpActive, now)
	verified := newOtp("process-2", models.OtpVerified, now)
	require.NoError(t, stores.Otps.Create(ctx, active))
	require.NoError(t, stores.Otps.Create(ctx, verified))

	changed, err := stores.Otps.Terminate(ctx, []string{active.ID, verified.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	canceled, err := stores.Otps.FindNewestByProcessAndType(ctx, "process-1", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpFailed, canceled.Status)
	assert.Equal(t, models.ErrorOtpCanceled, canceled.ErrorDetail)
	assert.Equal(t, models.OriginOtpVerification, canceled.ErrorOrigin)

	kept, err := stores.Otps.FindNewestByProcessAndType(ctx, "process-2", models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpVerified, kept.Status)
}

func Test_Otps_FindExpiredIDs_ActiveOnly(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	cutoff := time.Now()

	staleActive := newOtp("process-1", models.OtpActive, cutoff.Add(-time.Hour))
	staleVerified := newOtp("process-2", models.OtpVerified, cutoff.Add(-time.Hour))
	freshActive := newOtp("process-3", models.OtpActive, cutoff.Add(time.Hour))
	require.NoError(t, stores.Otps.Create(ctx, staleActive))
	require.NoError(t, stores.Otps.Create(ctx, staleVerified))
	require.NoError(t, stores.Otps.Create(ctx, freshActive))

	ids, err := stores.Otps.FindExpiredIDs(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{staleActive.ID}, ids)
}

func Test_ScaResults_FindLatestByIdentityVerification(t *testing.T) {
	stores := NewMemory().Stores()
	ctx := t.Context()
	now := time.Now()

	older := &models.ScaResult{
		ID:                     uuid.NewString(),
		IdentityVerificationID: "iv-1",
		ProcessID:              "process-1",
		PresenceCheckResult:    models.ScaFailed,
		CreatedAt:              now.Add(-time.Hour),
	}
	newer := &models.ScaResult{
		ID:                     uuid.NewString(),
		IdentityVerificationID: "iv-1",
		ProcessID:              "process-1",
		PresenceCheckResult:    models.ScaSuccess,
		CreatedAt:              now,
	}
	require.NoError(t, stores.ScaResults.Create(ctx, older))
	require.NoError(t, stores.ScaResults.Create(ctx, newer))

	latest, err := stores.ScaResults.FindLatestByIdentityVerification(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	_, err = stores.ScaResults.FindLatestByIdentityVerification(ctx, "iv-2")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
