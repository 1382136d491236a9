package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/redis"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// OtpVerifyResult is the outcome of an OTP verification attempt.
type OtpVerifyResult struct {
	ProcessID         string
	Verified          bool
	Expired           bool
	RemainingAttempts int
}

// OtpService issues and verifies one-time codes. Codes are stored as
// argon2id hashes; the plaintext leaves the service only through the
// delivery adapter.
type OtpService struct {
	db         *sql.DB
	otps       store.OtpStore
	identities store.IdentityVerificationStore
	scaResults store.ScaResultStore
	adapter    provider.OnboardingAdapter
	redis      *redis.Client
	limits     *LimitService
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewOtpService(
	db *sql.DB,
	stores store.Stores,
	adapter provider.OnboardingAdapter,
	redisClient *redis.Client,
	limits *LimitService,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OtpService {
	return &OtpService{
		db:         db,
		otps:       stores.Otps,
		identities: stores.IdentityVerifications,
		scaResults: stores.ScaResults,
		adapter:    adapter,
		redis:      redisClient,
		limits:     limits,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// SendOtp creates a fresh user verification OTP and delivers it.
func (s *OtpService) SendOtp(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	return s.issueOtp(ctx, owner, identity, audit.EventOtpSent)
}

// ResendOtp cancels the current OTP and issues a new one. Resends are
// rate limited by the configured resend period.
func (s *OtpService) ResendOtp(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	current, err := s.otps.FindNewestByProcessAndType(ctx, identity.ProcessID, models.OtpTypeUserVerification)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	if current != nil {
		if time.Since(current.CreatedAt) < s.cfg.Onboarding.OtpResendPeriod {
			return dErrors.New(dErrors.CodeBadRequest, "OTP resend requested too soon")
		}
		if current.Status == models.OtpActive {
			if err := s.markOtpFailed(ctx, current, models.ErrorOtpCanceled); err != nil {
				return err
			}
		}
	}
	return s.issueOtp(ctx, owner, identity, audit.EventOtpResent)
}

func (s *OtpService) issueOtp(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, action audit.AuditEvent) error {
	// The redis guard absorbs duplicate submits racing ahead of the
	// resend-period check against the persisted OTP.
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, "otp-issue:"+identity.ProcessID, "1", time.Minute).Result()
		if err == nil && !acquired && action == audit.EventOtpResent {
			return dErrors.New(dErrors.CodeBadRequest, "OTP resend requested too soon")
		}
	}

	code, err := generateOtpCode(s.cfg.Onboarding.OtpLength)
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}
	hash, err := hashOtpCode(code)
	if err != nil {
		return err
	}

	now := time.Now()
	otp := &models.Otp{
		ID:        uuid.NewString(),
		ProcessID: identity.ProcessID,
		Type:      models.OtpTypeUserVerification,
		CodeHash:  hash,
		Status:    models.OtpActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return err
	}

	if err := s.adapter.SendOtpCode(ctx, provider.SendOtpRequest{
		ProcessID: identity.ProcessID,
		UserID:    owner.UserID,
		OtpCode:   code,
		Resend:    action == audit.EventOtpResent,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeOtpDeliveryFailed, "OTP delivery failed")
	}

	s.metrics.OtpCodesSent.Inc()
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                otp.ID,
		Action:                 string(action),
	})
}

// VerifyOtp checks the submitted code against the newest user verification
// OTP and records the SCA outcome. When the presence check is enabled and
// its latest result is not a success, a correct code still fails the SCA
// and rewinds the identity verification to the presence check phase.
func (s *OtpService) VerifyOtp(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, code string) (OtpVerifyResult, error) {
	var result OtpVerifyResult
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		var err error
		result, err = s.verifyOtp(ctx, owner, identity, code)
		return err
	})
	return result, err
}

func (s *OtpService) verifyOtp(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, code string) (OtpVerifyResult, error) {
	result := OtpVerifyResult{ProcessID: identity.ProcessID}

	otp, err := s.otps.FindNewestByProcessAndType(ctx, identity.ProcessID, models.OtpTypeUserVerification)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return result, dErrors.New(dErrors.CodeOtpFailed, "no OTP found for process")
		}
		return result, err
	}

	maxAttempts := s.cfg.Onboarding.MaxOtpFailedAttempts
	result.RemainingAttempts = maxAttempts - otp.FailedAttempts

	if otp.Status != models.OtpActive {
		return result, nil
	}

	if time.Since(otp.CreatedAt) > s.cfg.Onboarding.OtpExpiration {
		result.Expired = true
		return result, nil
	}

	verified := verifyOtpCode(code, otp.CodeHash)
	if !verified {
		otp.FailedAttempts++
		otp.UpdatedAt = time.Now()
		result.RemainingAttempts = maxAttempts - otp.FailedAttempts
		if otp.FailedAttempts >= maxAttempts {
			result.RemainingAttempts = 0
			if err := s.markOtpFailed(ctx, otp, models.ErrorMaxFailedAttemptsOtp); err != nil {
				return result, err
			}
			if err := s.countOtpFailure(ctx, identity); err != nil {
				return result, err
			}
		} else if err := s.otps.Update(ctx, otp); err != nil {
			return result, err
		}
		if err := s.recordScaOtpResult(ctx, identity, models.ScaFailed); err != nil {
			return result, err
		}
		return result, s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Subject:                otp.ID,
			Action:                 string(audit.EventOtpFailed),
		})
	}

	if err := s.recordScaOtpResult(ctx, identity, models.ScaSuccess); err != nil {
		return result, err
	}

	if s.cfg.Identity.PresenceCheckEnabled {
		passed, err := s.verifyPresenceCheck(ctx, owner, identity, otp)
		if err != nil {
			return result, err
		}
		if !passed {
			result.RemainingAttempts = 0
			return result, nil
		}
	}

	now := time.Now()
	otp.Status = models.OtpVerified
	otp.UpdatedAt = now
	otp.VerifiedAt = &now
	if err := s.otps.Update(ctx, otp); err != nil {
		return result, err
	}

	result.Verified = true
	result.RemainingAttempts = maxAttempts - otp.FailedAttempts
	return result, s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                otp.ID,
		Action:                 string(audit.EventOtpVerified),
	})
}

// verifyPresenceCheck cross-checks the SCA presence outcome when a correct
// OTP code arrives. A missing or failed presence result cancels the OTP,
// rewinds the identity verification to the presence check phase and counts
// against the process error score.
func (s *OtpService) verifyPresenceCheck(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, otp *models.Otp) (bool, error) {
	sca, err := s.scaResults.FindLatestByIdentityVerification(ctx, identity.ID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, err
	}
	if sca != nil && sca.PresenceCheckResult == models.ScaSuccess {
		if sca.OtpResult == models.ScaSuccess {
			sca.Result = models.ScaSuccess
			sca.UpdatedAt = time.Now()
			if err := s.scaResults.Update(ctx, sca); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	s.logger.InfoContext(ctx, "presence check did not pass, rewinding to presence check phase",
		"identity_verification_id", identity.ID,
	)

	if sca != nil {
		sca.Result = models.ScaFailed
		sca.UpdatedAt = time.Now()
		if err := s.scaResults.Update(ctx, sca); err != nil {
			return false, err
		}
	}

	identity.ErrorDetail = ""
	identity.ErrorOrigin = ""
	identity.RejectReason = ""
	identity.RejectOrigin = ""
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusNotInitialized); err != nil {
		return false, err
	}

	if err := s.markOtpFailed(ctx, otp, models.ErrorOtpCanceled); err != nil {
		return false, err
	}
	if err := s.countOtpFailure(ctx, identity); err != nil {
		return false, err
	}

	return false, s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                otp.ID,
		Action:                 string(audit.EventOtpFailed),
		Detail:                 models.ErrorOtpCanceled,
	})
}

func (s *OtpService) countOtpFailure(ctx context.Context, identity *models.IdentityVerification) error {
	process, err := s.limits.IncrementErrorScore(ctx, identity.ProcessID, 1)
	if err != nil {
		return err
	}
	err = s.limits.CheckErrorScoreLimit(ctx, process, identity)
	if dErrors.HasCode(err, dErrors.CodeProcessLimitReached) {
		// The limit termination is recorded on the entities; the verify
		// response reports the failed attempt.
		return nil
	}
	return err
}

func (s *OtpService) markOtpFailed(ctx context.Context, otp *models.Otp, detail string) error {
	now := time.Now()
	otp.Status = models.OtpFailed
	otp.ErrorDetail = detail
	otp.ErrorOrigin = models.OriginOtpVerification
	otp.UpdatedAt = now
	otp.FailedAt = &now
	return s.otps.Update(ctx, otp)
}

func (s *OtpService) recordScaOtpResult(ctx context.Context, identity *models.IdentityVerification, outcome models.ScaOutcome) error {
	sca, err := s.scaResults.FindLatestByIdentityVerification(ctx, identity.ID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
		now := time.Now()
		sca = &models.ScaResult{
			ID:                     uuid.NewString(),
			IdentityVerificationID: identity.ID,
			ProcessID:              identity.ProcessID,
			OtpResult:              outcome,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		settleScaResult(sca, s.cfg.Identity)
		return s.scaResults.Create(ctx, sca)
	}
	sca.OtpResult = outcome
	settleScaResult(sca, s.cfg.Identity)
	sca.UpdatedAt = time.Now()
	return s.scaResults.Update(ctx, sca)
}

// settleScaResult folds the component outcomes into the overall result. Any
// failed component fails the whole authentication; it succeeds once every
// enabled component has reported success.
func settleScaResult(sca *models.ScaResult, cfg config.IdentityVerification) {
	if sca.OtpResult == models.ScaFailed || sca.PresenceCheckResult == models.ScaFailed {
		sca.Result = models.ScaFailed
		return
	}
	if cfg.OtpVerificationEnabled && sca.OtpResult != models.ScaSuccess {
		return
	}
	if cfg.PresenceCheckEnabled && sca.PresenceCheckResult != models.ScaSuccess {
		return
	}
	sca.Result = models.ScaSuccess
}

// IsUserVerifiedUsingOtp reports whether the newest user verification OTP
// of the process is verified.
func (s *OtpService) IsUserVerifiedUsingOtp(ctx context.Context, processID string) (bool, error) {
	otp, err := s.otps.FindNewestByProcessAndType(ctx, processID, models.OtpTypeUserVerification)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return otp.Status == models.OtpVerified, nil
}

func generateOtpCode(length int) (string, error) {
	var sb strings.Builder
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

const (
	otpHashTime    = 1
	otpHashMemory  = 64 * 1024
	otpHashThreads = 4
	otpHashKeyLen  = 32
)

func hashOtpCode(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate otp salt: %w", err)
	}
	key := argon2.IDKey([]byte(code), salt, otpHashTime, otpHashMemory, otpHashThreads, otpHashKeyLen)
	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(key), nil
}

func verifyOtpCode(code, encoded string) bool {
	salt64, key64, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(salt64)
	if err != nil {
		return false
	}
	key, err := base64.RawStdEncoding.DecodeString(key64)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(code), salt, otpHashTime, otpHashMemory, otpHashThreads, otpHashKeyLen)
	return subtle.ConstantTimeCompare(candidate, key) == 1
}
