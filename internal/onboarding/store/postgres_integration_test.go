//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/tx"
	"onboard/pkg/testutil/containers"
)

func newPostgresStores(t *testing.T) (store.Stores, *containers.PostgresContainer) {
	t.Helper()
	pc := containers.NewPostgresContainer(t)
	require.NoError(t, pc.Apply(t.Context(), store.Schema))
	return store.NewPostgres(pc.DB).Stores(), pc
}

func insertProcess(t *testing.T, stores store.Stores, status models.ProcessStatus, createdAt time.Time) *models.Process {
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

func Test_PostgresProcesses_RoundTrip(t *testing.T) {
	stores, _ := newPostgresStores(t)
	ctx := t.Context()

	process := insertProcess(t, stores, models.ProcessActivationInProgress, time.Now())

	found, err := stores.Processes.FindByID(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, process.ID, found.ID)
	assert.Equal(t, models.ProcessActivationInProgress, found.Status)

	found.Status = models.ProcessVerificationInProgress
	found.UpdatedAt = time.Now()
	require.NoError(t, stores.Processes.Update(ctx, found))

	byActivation, err := stores.Processes.FindByActivationID(ctx, process.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessVerificationInProgress, byActivation.Status)

	active, err := stores.Processes.FindActiveByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, process.ID, active.ID)

	_, err = stores.Processes.FindByID(ctx, uuid.NewString())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_PostgresProcesses_Terminate(t *testing.T) {
	stores, _ := newPostgresStores(t)
	ctx := t.Context()

	active := insertProcess(t, stores, models.ProcessVerificationInProgress, time.Now())
	failed := insertProcess(t, stores, models.ProcessFailed, time.Now())

	changed, err := stores.Processes.Terminate(ctx, []string{active.ID, failed.ID}, "expired", models.OriginCleanup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	terminated, err := stores.Processes.FindByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessFailed, terminated.Status)
	assert.Equal(t, "expired", terminated.ErrorDetail)
	assert.Equal(t, models.OriginCleanup, terminated.ErrorOrigin)
	require.NotNil(t, terminated.FailedAt)
}

func Test_PostgresIdentities_ListByPhaseAndStatus(t *testing.T) {
	stores, _ := newPostgresStores(t)
	ctx := t.Context()
	now := time.Now()

	process := insertProcess(t, stores, models.ProcessVerificationInProgress, now)

	newIV := func(phase models.Phase, status models.Status, createdAt time.Time) *models.IdentityVerification {
		iv := &models.IdentityVerification{
			ID:           uuid.NewString(),
			ProcessID:    process.ID,
			ActivationID: process.ActivationID,
			UserID:       process.UserID,
			Phase:        phase,
			Status:       status,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}
		require.NoError(t, stores.IdentityVerifications.Create(ctx, iv))
		return iv
	}

	second := newIV(models.PhaseDocumentUpload, models.StatusInProgress, now)
	first := newIV(models.PhaseDocumentUpload, models.StatusInProgress, now.Add(-time.Hour))
	newIV(models.PhaseDocumentVerification, models.StatusInProgress, now)

	listed, err := stores.IdentityVerifications.ListByPhaseAndStatus(ctx, models.PhaseDocumentUpload, models.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)

	latest, err := stores.IdentityVerifications.FindLatestByActivationID(ctx, process.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func Test_PostgresOtps_NewestAndTerminate(t *testing.T) {
	stores, _ := newPostgresStores(t)
	ctx := t.Context()
	now := time.Now()

	process := insertProcess(t, stores, models.ProcessVerificationInProgress, now)

	newOtp := func(status models.OtpStatus, createdAt time.Time) *models.Otp {
		otp := &models.Otp{
			ID:        uuid.NewString(),
			ProcessID: process.ID,
			Type:      models.OtpTypeUserVerification,
			CodeHash:  "hash",
			Status:    status,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		require.NoError(t, stores.Otps.Create(ctx, otp))
		return otp
	}

	newOtp(models.OtpFailed, now.Add(-time.Hour))
	active := newOtp(models.OtpActive, now)

	newest, err := stores.Otps.FindNewestByProcessAndType(ctx, process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, active.ID, newest.ID)

	changed, err := stores.Otps.Terminate(ctx, []string{active.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	canceled, err := stores.Otps.FindNewestByProcessAndType(ctx, process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpFailed, canceled.Status)
	assert.Equal(t, models.ErrorOtpCanceled, canceled.ErrorDetail)
}

func Test_PostgresPayloads_DeleteCreatedBefore(t *testing.T) {
	stores, _ := newPostgresStores(t)
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

	kept, err := stores.Payloads.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), kept.Data)
}

func Test_PostgresTx_RollbackDiscardsWrites(t *testing.T) {
	stores, pc := newPostgresStores(t)
	ctx := t.Context()

	processID := uuid.NewString()
	boom := errors.New("boom")

	err := tx.Run(ctx, pc.DB, func(ctx context.Context) error {
		process := &models.Process{
			ID:           processID,
			UserID:       "user-1",
			ActivationID: uuid.NewString(),
			Status:       models.ProcessActivationInProgress,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := stores.Processes.Create(ctx, process); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = stores.Processes.FindByID(ctx, processID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_PostgresTx_CommitPersistsWrites(t *testing.T) {
	stores, pc := newPostgresStores(t)
	ctx := t.Context()

	processID := uuid.NewString()

	err := tx.Run(ctx, pc.DB, func(ctx context.Context) error {
		return stores.Processes.Create(ctx, &models.Process{
			ID:           processID,
			UserID:       "user-1",
			ActivationID: uuid.NewString(),
			Status:       models.ProcessActivationInProgress,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		})
	})
	require.NoError(t, err)

	found, err := stores.Processes.FindByID(ctx, processID)
	require.NoError(t, err)
	assert.Equal(t, processID, found.ID)
}
