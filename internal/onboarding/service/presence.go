package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// sessionAttrImageUploaded marks that the reference photo was already
// uploaded to the vendor, so a re-init skips the upload.
const sessionAttrImageUploaded = "imageUploaded"

const errSessionDeserialize = "Unable to deserialize session info"

// PresenceService runs the liveness check against the presence provider:
// uploading the reference photo from a verified document, opening the vendor
// session and settling its outcome into the identity verification and the
// SCA record.
type PresenceService struct {
	db         *sql.DB
	identities store.IdentityVerificationStore
	documents  store.DocumentStore
	scaResults store.ScaResultStore
	provider   provider.PresenceProvider
	photos     provider.DocumentProvider
	limits     *LimitService
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewPresenceService(
	db *sql.DB,
	stores store.Stores,
	presenceProvider provider.PresenceProvider,
	documentProvider provider.DocumentProvider,
	limits *LimitService,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PresenceService {
	return &PresenceService{
		db:         db,
		identities: stores.IdentityVerifications,
		documents:  stores.Documents,
		scaResults: stores.ScaResults,
		provider:   presenceProvider,
		photos:     documentProvider,
		limits:     limits,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// InitPresenceCheck uploads the reference person photo, opens a vendor
// session and moves the identity verification into the in-progress presence
// check state. The opaque vendor session is persisted on the identity
// verification for the later result poll.
func (s *PresenceService) InitPresenceCheck(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	session, err := loadSessionInfo(identity)
	if err != nil {
		// A fresh init tolerates a corrupted leftover session.
		session = provider.SessionInfo{}
	}
	if session.Attributes == nil {
		session.Attributes = map[string]any{}
	}

	if uploaded, _ := session.Attributes[sessionAttrImageUploaded].(bool); !uploaded {
		photo, err := s.selectReferencePhoto(ctx, identity)
		if err != nil {
			return err
		}
		if err := s.provider.InitPresenceCheck(ctx, owner, photo); err != nil {
			s.metrics.ProviderErrors.WithLabelValues("presence", string(provider.GetCategory(err))).Inc()
			return dErrors.Wrap(err, dErrors.CodePresenceCheckFailed, "initializing presence check failed")
		}
		session.Attributes[sessionAttrImageUploaded] = true
	}

	started, err := s.provider.StartPresenceCheck(ctx, owner)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("presence", string(provider.GetCategory(err))).Inc()
		return dErrors.Wrap(err, dErrors.CodePresenceCheckFailed, "starting presence check failed")
	}
	if started.Attributes == nil {
		started.Attributes = map[string]any{}
	}
	started.Attributes[sessionAttrImageUploaded] = true

	raw, err := json.Marshal(started)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "serializing session info failed")
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		identity.SessionInfo = string(raw)
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusInProgress); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Action:                 string(audit.EventPresenceCheckInitialized),
		})
	})
}

// CheckPresenceVerification polls the vendor session outcome and settles a
// finished one. A session still in progress leaves the state untouched.
func (s *PresenceService) CheckPresenceVerification(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	session, err := loadSessionInfo(identity)
	if err != nil {
		return tx.Run(ctx, s.db, func(ctx context.Context) error {
			identity.ErrorDetail = errSessionDeserialize
			identity.ErrorOrigin = models.OriginPresenceCheck
			return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusFailed)
		})
	}

	result, err := s.provider.GetResult(ctx, owner, session)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("presence", string(provider.GetCategory(err))).Inc()
		return dErrors.Wrap(err, dErrors.CodePresenceCheckFailed, "fetching presence check result failed")
	}
	if result.Status == provider.PresenceCheckInProgress {
		return nil
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		switch result.Status {
		case provider.PresenceCheckAccepted:
			return s.presenceAccepted(ctx, owner, identity, result)
		case provider.PresenceCheckRejected:
			return s.presenceRejected(ctx, owner, identity, result)
		case provider.PresenceCheckFailed:
			return s.presenceFailed(ctx, owner, identity, result)
		default:
			return dErrors.Newf(dErrors.CodeInvalidState, "unexpected presence check status %q", result.Status)
		}
	})
}

func (s *PresenceService) presenceAccepted(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, result provider.PresenceCheckResult) error {
	if result.Photo == nil {
		return dErrors.New(dErrors.CodePresenceCheckFailed, "accepted presence check is missing a person photo")
	}

	now := time.Now()
	selfie := &models.DocumentVerification{
		ID:                     uuid.NewString(),
		IdentityVerificationID: identity.ID,
		ActivationID:           owner.ActivationID,
		Type:                   models.DocumentTypeSelfiePhoto,
		Status:                 models.DocumentAccepted,
		Filename:               result.Photo.Filename,
		UsedForVerification:    s.cfg.Identity.VerifySelfieWithDocuments,
		CreatedAt:              now,
		UpdatedAt:              now,
		VerifiedAt:             &now,
	}
	if err := s.documents.Create(ctx, selfie); err != nil {
		return err
	}

	if err := s.recordScaPresenceResult(ctx, identity, models.ScaSuccess); err != nil {
		return err
	}
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusAccepted); err != nil {
		return err
	}
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                selfie.ID,
		Action:                 string(audit.EventPresenceCheckAccepted),
	})
}

func (s *PresenceService) presenceRejected(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, result provider.PresenceCheckResult) error {
	identity.RejectReason = result.RejectReason
	identity.RejectOrigin = models.OriginPresenceCheck
	if err := s.recordScaPresenceResult(ctx, identity, models.ScaFailed); err != nil {
		return err
	}
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusRejected); err != nil {
		return err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventPresenceCheckRejected),
		Detail:                 result.RejectReason,
	}); err != nil {
		return err
	}
	return s.countPresenceFailure(ctx, identity)
}

func (s *PresenceService) presenceFailed(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, result provider.PresenceCheckResult) error {
	identity.ErrorDetail = result.ErrorDetail
	identity.ErrorOrigin = models.OriginPresenceCheck
	if err := s.recordScaPresenceResult(ctx, identity, models.ScaFailed); err != nil {
		return err
	}
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhasePresenceCheck, models.StatusFailed); err != nil {
		return err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventPresenceCheckFailed),
		Detail:                 result.ErrorDetail,
	}); err != nil {
		return err
	}
	return s.countPresenceFailure(ctx, identity)
}

func (s *PresenceService) countPresenceFailure(ctx context.Context, identity *models.IdentityVerification) error {
	process, err := s.limits.IncrementErrorScore(ctx, identity.ProcessID, 1)
	if err != nil {
		return err
	}
	err = s.limits.CheckErrorScoreLimit(ctx, process, identity)
	if dErrors.HasCode(err, dErrors.CodeProcessLimitReached) {
		// The termination is already recorded on the entities.
		return nil
	}
	return err
}

// CleanupPresenceCheck removes the person's data at the vendor once the
// process no longer needs it. Disabled deployments keep vendor retention.
func (s *PresenceService) CleanupPresenceCheck(ctx context.Context, owner models.OwnerID) error {
	if !s.cfg.Identity.PresenceCheckCleanupEnabled {
		return nil
	}
	if err := s.provider.CleanupIdentityData(ctx, owner); err != nil {
		s.metrics.ProviderErrors.WithLabelValues("presence", string(provider.GetCategory(err))).Inc()
		return dErrors.Wrap(err, dErrors.CodePresenceCheckFailed, "presence check cleanup failed")
	}
	return nil
}

// selectReferencePhoto picks the person photo from the verified documents,
// preferring document types in the configured order.
func (s *PresenceService) selectReferencePhoto(ctx context.Context, identity *models.IdentityVerification) (models.Image, error) {
	documents, err := s.documents.ListWithPhoto(ctx, identity.ID)
	if err != nil {
		return models.Image{}, err
	}
	if len(documents) == 0 {
		return models.Image{}, dErrors.New(dErrors.CodeInvalidState, "no document with a person photo available")
	}

	selected := documents[0]
	for _, preferred := range models.PreferredPhotoSources {
		found := false
		for _, doc := range documents {
			if doc.Type == preferred {
				selected = doc
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	photo, err := s.photos.GetPhoto(ctx, selected.PhotoID)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
		return models.Image{}, dErrors.Wrap(err, dErrors.CodePresenceCheckFailed, "fetching person photo failed")
	}
	return photo, nil
}

func (s *PresenceService) recordScaPresenceResult(ctx context.Context, identity *models.IdentityVerification, outcome models.ScaOutcome) error {
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
			PresenceCheckResult:    outcome,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		settleScaResult(sca, s.cfg.Identity)
		return s.scaResults.Create(ctx, sca)
	}
	sca.PresenceCheckResult = outcome
	settleScaResult(sca, s.cfg.Identity)
	sca.UpdatedAt = time.Now()
	return s.scaResults.Update(ctx, sca)
}

func loadSessionInfo(identity *models.IdentityVerification) (provider.SessionInfo, error) {
	if identity.SessionInfo == "" {
		return provider.SessionInfo{}, nil
	}
	var session provider.SessionInfo
	if err := json.Unmarshal([]byte(identity.SessionInfo), &session); err != nil {
		return provider.SessionInfo{}, dErrors.Wrap(err, dErrors.CodeInternal, "deserializing session info failed")
	}
	return session, nil
}
