package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	providermocks "onboard/internal/onboarding/provider/mocks"
	"onboard/internal/onboarding/store"
	dErrors "onboard/pkg/domain-errors"
)

type otpTestEnv struct {
	service  *OtpService
	stores   store.Stores
	adapter  *providermocks.MockOnboardingAdapter
	owner    models.OwnerID
	process  *models.Process
	identity *models.IdentityVerification
}

func newOtpTestEnv(t *testing.T) *otpTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	stores := store.NewMemory().Stores()
	cfg := testConfig()
	cfg.Identity.PresenceCheckEnabled = false
	m := testMetrics()
	logger := testLogger()
	auditor := relaxedAuditor(ctrl)
	adapter := providermocks.NewMockOnboardingAdapter(ctrl)
	limits := NewLimitService(stores, cfg, auditor, m, logger)

	owner := models.NewOwnerID("user-1", "activation-1")
	process := seedProcess(t, stores, owner)
	identity := seedIdentity(t, stores, owner, process.ID, models.PhaseOtpVerification, models.StatusVerificationPending)

	return &otpTestEnv{
		service:  NewOtpService(nil, stores, adapter, nil, limits, cfg, auditor, m, logger),
		stores:   stores,
		adapter:  adapter,
		owner:    owner,
		process:  process,
		identity: identity,
	}
}

// expectOtpDelivery captures the plaintext code handed to the delivery
// adapter.
func (env *otpTestEnv) expectOtpDelivery(code *string) {
	env.adapter.EXPECT().
		SendOtpCode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req provider.SendOtpRequest) error {
			*code = req.OtpCode
			return nil
		})
}

func Test_SendOtp_And_Verify(t *testing.T) {
	env := newOtpTestEnv(t)
	var code string
	env.expectOtpDelivery(&code)

	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))
	require.Len(t, code, env.service.cfg.Onboarding.OtpLength)

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, code)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.Expired)
	assert.Equal(t, env.process.ID, result.ProcessID)

	otp, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpVerified, otp.Status)
	assert.NotNil(t, otp.VerifiedAt)

	verified, err := env.service.IsUserVerifiedUsingOtp(t.Context(), env.process.ID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func Test_VerifyOtp_SettlesScaWithoutPresence(t *testing.T) {
	env := newOtpTestEnv(t)
	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, code)
	require.NoError(t, err)
	require.True(t, result.Verified)

	// With the presence check disabled the OTP alone settles the result.
	sca, err := env.stores.ScaResults.FindLatestByIdentityVerification(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScaSuccess, sca.OtpResult)
	assert.Equal(t, models.ScaSuccess, sca.Result)
}

func Test_VerifyOtp_WrongCode(t *testing.T) {
	env := newOtpTestEnv(t)
	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, "00000000")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, env.service.cfg.Onboarding.MaxOtpFailedAttempts-1, result.RemainingAttempts)

	otp, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpActive, otp.Status)
	assert.Equal(t, 1, otp.FailedAttempts)

	sca, err := env.stores.ScaResults.FindLatestByIdentityVerification(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScaFailed, sca.OtpResult)
}

func Test_VerifyOtp_AttemptsExhausted(t *testing.T) {
	env := newOtpTestEnv(t)
	env.service.cfg.Onboarding.MaxOtpFailedAttempts = 2
	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, "wrong")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemainingAttempts)

	result, err = env.service.VerifyOtp(t.Context(), env.owner, env.identity, "wrong")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, 0, result.RemainingAttempts)

	otp, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpFailed, otp.Status)
	assert.Equal(t, models.ErrorMaxFailedAttemptsOtp, otp.ErrorDetail)

	// The exhausted OTP counted against the process error score.
	process, err := env.stores.Processes.FindByID(t.Context(), env.process.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, process.ErrorScore)

	// A settled OTP no longer accepts codes.
	result, err = env.service.VerifyOtp(t.Context(), env.owner, env.identity, "wrong")
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func Test_VerifyOtp_Expired(t *testing.T) {
	env := newOtpTestEnv(t)
	hash, err := hashOtpCode("12345678")
	require.NoError(t, err)
	created := time.Now().Add(-env.service.cfg.Onboarding.OtpExpiration - time.Minute)
	require.NoError(t, env.stores.Otps.Create(t.Context(), &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: env.process.ID,
		Type:      models.OtpTypeUserVerification,
		CodeHash:  hash,
		Status:    models.OtpActive,
		CreatedAt: created,
		UpdatedAt: created,
	}))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, "12345678")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.True(t, result.Expired)
}

func Test_VerifyOtp_NoOtp(t *testing.T) {
	env := newOtpTestEnv(t)

	_, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, "12345678")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeOtpFailed))
}

func Test_ResendOtp(t *testing.T) {
	env := newOtpTestEnv(t)
	env.service.cfg.Onboarding.OtpResendPeriod = 0
	var first, second string
	env.expectOtpDelivery(&first)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	firstOtp, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)

	env.expectOtpDelivery(&second)
	require.NoError(t, env.service.ResendOtp(t.Context(), env.owner, env.identity))

	current, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.NotEqual(t, firstOtp.ID, current.ID)
	assert.Equal(t, models.OtpActive, current.Status)
	assert.NotEqual(t, first, second)

	// The superseded code no longer verifies.
	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, first)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func Test_ResendOtp_TooSoon(t *testing.T) {
	env := newOtpTestEnv(t)
	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	err := env.service.ResendOtp(t.Context(), env.owner, env.identity)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_VerifyOtp_PresenceCheckRewind(t *testing.T) {
	env := newOtpTestEnv(t)
	env.service.cfg.Identity.PresenceCheckEnabled = true
	now := time.Now()
	require.NoError(t, env.stores.ScaResults.Create(t.Context(), &models.ScaResult{
		ID:                     uuid.NewString(),
		IdentityVerificationID: env.identity.ID,
		ProcessID:              env.process.ID,
		PresenceCheckResult:    models.ScaFailed,
		CreatedAt:              now,
		UpdatedAt:              now,
	}))

	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, code)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, 0, result.RemainingAttempts)

	// The correct code with a failed presence check rewinds the workflow.
	assert.Equal(t, models.PhasePresenceCheck, env.identity.Phase)
	assert.Equal(t, models.StatusNotInitialized, env.identity.Status)

	otp, err := env.stores.Otps.FindNewestByProcessAndType(t.Context(), env.process.ID, models.OtpTypeUserVerification)
	require.NoError(t, err)
	assert.Equal(t, models.OtpFailed, otp.Status)

	sca, err := env.stores.ScaResults.FindLatestByIdentityVerification(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScaFailed, sca.Result)

	process, err := env.stores.Processes.FindByID(t.Context(), env.process.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, process.ErrorScore)
}

func Test_VerifyOtp_PresenceCheckPassed(t *testing.T) {
	env := newOtpTestEnv(t)
	env.service.cfg.Identity.PresenceCheckEnabled = true
	now := time.Now()
	require.NoError(t, env.stores.ScaResults.Create(t.Context(), &models.ScaResult{
		ID:                     uuid.NewString(),
		IdentityVerificationID: env.identity.ID,
		ProcessID:              env.process.ID,
		PresenceCheckResult:    models.ScaSuccess,
		CreatedAt:              now,
		UpdatedAt:              now,
	}))

	var code string
	env.expectOtpDelivery(&code)
	require.NoError(t, env.service.SendOtp(t.Context(), env.owner, env.identity))

	result, err := env.service.VerifyOtp(t.Context(), env.owner, env.identity, code)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	sca, err := env.stores.ScaResults.FindLatestByIdentityVerification(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScaSuccess, sca.Result)
	assert.Equal(t, models.ScaSuccess, sca.OtpResult)
}
