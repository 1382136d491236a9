package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/statemachine"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/tx"
)

// moveToPhaseAndStatus persists a phase/status change on the identity
// verification. The pair must belong to the enumerated valid set; anything
// else is a programming error surfaced immediately.
func moveToPhaseAndStatus(
	ctx context.Context,
	identities store.IdentityVerificationStore,
	m *metrics.Metrics,
	auditor Auditor,
	identity *models.IdentityVerification,
	phase models.Phase,
	status models.Status,
) error {
	if !statemachine.ValidPhaseStatus(phase, status) {
		return dErrors.Newf(dErrors.CodeInternal, "invalid identity verification state %s/%s", phase, status)
	}
	now := time.Now()
	identity.Phase = phase
	identity.Status = status
	identity.UpdatedAt = now
	if phase == models.PhaseCompleted && status == models.StatusAccepted {
		identity.VerifiedAt = &now
	}
	if status == models.StatusFailed {
		identity.FailedAt = &now
	}
	if err := identities.Update(ctx, identity); err != nil {
		return err
	}
	m.StateTransitions.WithLabelValues(string(phase), string(status)).Inc()
	return auditor.Emit(ctx, audit.Event{
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventStateChanged),
		Detail:                 string(phase) + "/" + string(status),
	})
}

// IdentityService is the workflow entry point. It owns the state machine and
// implements its guards and actions by delegating to the focused services.
// Every event fires inside one transaction so an action failure rolls the
// whole transition back.
type IdentityService struct {
	db         *sql.DB
	processes  store.ProcessStore
	identities store.IdentityVerificationStore
	documents  store.DocumentStore
	docs       *DocumentService
	verify     *VerificationService
	presence   *PresenceService
	otps       *OtpService
	process    *ProcessService
	precheck   *PrecompleteCheck
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	machine    *statemachine.Machine
}

func NewIdentityService(
	db *sql.DB,
	stores store.Stores,
	docs *DocumentService,
	verify *VerificationService,
	presence *PresenceService,
	otps *OtpService,
	process *ProcessService,
	precheck *PrecompleteCheck,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *IdentityService {
	s := &IdentityService{
		db:         db,
		processes:  stores.Processes,
		identities: stores.IdentityVerifications,
		documents:  stores.Documents,
		docs:       docs,
		verify:     verify,
		presence:   presence,
		otps:       otps,
		process:    process,
		precheck:   precheck,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
	s.machine = statemachine.New(s, statemachine.WithLogger(logger))
	return s
}

// send fires one event with the process row locked, serializing concurrent
// drivers of the same process.
func (s *IdentityService) send(ctx context.Context, event statemachine.Event, ec *statemachine.EventContext) (statemachine.State, error) {
	var state statemachine.State
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.processes.FindByIDForUpdate(ctx, ec.ProcessID); err != nil {
			return err
		}
		var err error
		state, err = s.machine.Send(ctx, event, ec)
		return err
	})
	return state, err
}

// InitIdentityVerification starts a new identity verification for the
// process of the owner's activation.
func (s *IdentityService) InitIdentityVerification(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error) {
	process, err := s.process.FindProcess(ctx, owner)
	if err != nil {
		return nil, err
	}
	ec := &statemachine.EventContext{Owner: owner, ProcessID: process.ID}
	if _, err := s.send(ctx, statemachine.EventIdentityVerificationInit, ec); err != nil {
		return nil, err
	}
	return ec.Identity, nil
}

// FindIdentityVerification returns the newest identity verification of the
// owner's activation.
func (s *IdentityService) FindIdentityVerification(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error) {
	identity, err := s.identities.FindLatestByActivationID(ctx, owner.ActivationID)
	if err != nil {
		return nil, err
	}
	if identity.UserID != owner.UserID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity verification does not belong to user")
	}
	return identity, nil
}

// SubmitDocuments submits the documents and advances the workflow when the
// upload phase completed.
func (s *IdentityService) SubmitDocuments(ctx context.Context, owner models.OwnerID, submitted []models.SubmittedDocument) ([]*models.DocumentVerification, error) {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return nil, err
	}
	if identity.Phase != models.PhaseDocumentUpload {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "documents cannot be submitted in phase %s", identity.Phase)
	}

	documents, err := s.docs.SubmitDocuments(ctx, owner, identity, submitted)
	if err != nil {
		return nil, err
	}

	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	if _, err := s.send(ctx, statemachine.EventNextState, ec); err != nil && !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return nil, err
	}
	return documents, nil
}

// statesDrivenOnStatus lists the states a status call may advance: states
// waiting on asynchronous provider results or configuration-dependent
// branching.
var statesDrivenOnStatus = map[statemachine.State]bool{
	statemachine.StateDocumentUploadInProgress:          true,
	statemachine.StateDocumentUploadVerificationPending: true,
	statemachine.StateDocumentVerificationInProgress:    true,
	statemachine.StateDocumentVerificationAccepted:      true,
	statemachine.StateDocumentVerificationFinalAccepted: true,
	statemachine.StateClientEvaluationInProgress:        true,
	statemachine.StateClientEvaluationAccepted:          true,
	statemachine.StatePresenceCheckVerificationPending:  true,
	statemachine.StateOtpVerificationPending:            true,
}

// Status returns the owner's identity verification, first advancing the
// workflow when it sits in a state waiting on asynchronous results.
func (s *IdentityService) Status(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error) {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return nil, err
	}

	state, err := statemachine.FromPhaseAndStatus(identity.Phase, identity.Status)
	if err != nil {
		return nil, err
	}
	if !statesDrivenOnStatus[state] {
		return identity, nil
	}

	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	if _, err := s.send(ctx, statemachine.EventNextState, ec); err != nil && !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return nil, err
	}
	return ec.Identity, nil
}

// InitPresenceCheckFlow starts the presence check for the owner's identity
// verification.
func (s *IdentityService) InitPresenceCheckFlow(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error) {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return nil, err
	}
	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	if _, err := s.send(ctx, statemachine.EventPresenceCheckInit, ec); err != nil {
		return nil, err
	}
	return ec.Identity, nil
}

// SubmitPresenceCheckFlow records that the user finished the vendor
// liveness session; the outcome is settled by the reconciliation poll.
func (s *IdentityService) SubmitPresenceCheckFlow(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error) {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return nil, err
	}
	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	if _, err := s.send(ctx, statemachine.EventPresenceCheckSubmitted, ec); err != nil {
		return nil, err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventPresenceCheckSubmitted),
	}); err != nil {
		return nil, err
	}
	return ec.Identity, nil
}

// ResendOtpFlow resends the user verification OTP through the machine so
// the enabled-guard and state checks apply.
func (s *IdentityService) ResendOtpFlow(ctx context.Context, owner models.OwnerID) error {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return err
	}
	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	_, err = s.send(ctx, statemachine.EventOtpVerificationResend, ec)
	return err
}

// VerifyOtpFlow verifies the submitted OTP code and, on success, drives the
// workflow toward completion.
func (s *IdentityService) VerifyOtpFlow(ctx context.Context, owner models.OwnerID, code string) (OtpVerifyResult, error) {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return OtpVerifyResult{}, err
	}
	result, err := s.otps.VerifyOtp(ctx, owner, identity, code)
	if err != nil {
		return OtpVerifyResult{}, err
	}
	if !result.Verified {
		return result, nil
	}
	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	if _, err := s.send(ctx, statemachine.EventNextState, ec); err != nil && !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return OtpVerifyResult{}, err
	}
	return result, nil
}

// Advance re-drives a stalled identity verification. Used by the
// reconciliation jobs; the owner is reconstructed from the entity.
func (s *IdentityService) Advance(ctx context.Context, identity *models.IdentityVerification) error {
	owner := models.NewOwnerID(identity.UserID, identity.ActivationID)
	ec := &statemachine.EventContext{Owner: owner, ProcessID: identity.ProcessID, Identity: identity}
	_, err := s.send(ctx, statemachine.EventNextState, ec)
	if dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return nil
	}
	return err
}

// Cleanup cancels the current identity verification on the user's request:
// documents are terminated, vendor-side data is removed and the workflow
// rewinds to a fresh document upload.
func (s *IdentityService) Cleanup(ctx context.Context, owner models.OwnerID) error {
	identity, err := s.FindIdentityVerification(ctx, owner)
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		documents, err := s.documents.ListByIdentityVerification(ctx, identity.ID)
		if err != nil {
			return err
		}
		var ids []string
		for _, doc := range documents {
			if doc.Status == models.DocumentDisposed || doc.Status == models.DocumentFailed {
				continue
			}
			ids = append(ids, doc.ID)
		}
		if len(ids) > 0 {
			if _, err := s.documents.Terminate(ctx, ids, models.ErrorOtpCanceled, models.OriginUserRequest); err != nil {
				return err
			}
		}

		if err := s.docs.CleanupDocuments(ctx, owner, documents); err != nil {
			// Vendor-side cleanup is best effort; the local reset proceeds.
			s.logger.WarnContext(ctx, "document cleanup failed",
				"identity_verification_id", identity.ID, "error", err,
			)
		}
		if err := s.presence.CleanupPresenceCheck(ctx, owner); err != nil {
			s.logger.WarnContext(ctx, "presence check cleanup failed",
				"identity_verification_id", identity.ID, "error", err,
			)
		}

		identity.ErrorDetail = ""
		identity.ErrorOrigin = ""
		identity.RejectReason = ""
		identity.RejectOrigin = ""
		identity.SessionInfo = ""
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentUpload, models.StatusInProgress); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Action:                 string(audit.EventVerificationTerminated),
			Detail:                 models.ErrorOtpCanceled,
		})
	})
}

// Guards.

// ProcessMatches checks that the event's process exists, belongs to the
// acting owner and is still in its verification stage.
func (s *IdentityService) ProcessMatches(ctx context.Context, ec *statemachine.EventContext) (bool, error) {
	process, err := s.processes.FindByID(ctx, ec.ProcessID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if process.UserID != ec.Owner.UserID || process.ActivationID != ec.Owner.ActivationID {
		return false, nil
	}
	return process.Status == models.ProcessVerificationInProgress, nil
}

func (s *IdentityService) PresenceCheckEnabled() bool {
	return s.cfg.Identity.PresenceCheckEnabled
}

func (s *IdentityService) OtpVerificationEnabled() bool {
	return s.cfg.Identity.OtpVerificationEnabled
}

// AllDocumentsUploadPending reports whether every submitted document left
// the upload stage and the required document types are present.
func (s *IdentityService) AllDocumentsUploadPending(ctx context.Context, ec *statemachine.EventContext) (bool, error) {
	documents, err := s.documents.ListByIdentityVerification(ctx, ec.Identity.ID)
	if err != nil {
		return false, err
	}
	var active []*models.DocumentVerification
	for _, doc := range documents {
		if doc.Status == models.DocumentDisposed {
			continue
		}
		if doc.Status == models.DocumentUploadInProgress {
			return false, nil
		}
		active = append(active, doc)
	}
	if len(active) == 0 {
		return false, nil
	}
	return requiredTypesUploaded(active), nil
}

// requiredTypesUploaded applies the required-document-types rule over the
// documents that made it past the upload stage.
func requiredTypesUploaded(documents []*models.DocumentVerification) bool {
	var uploaded []*models.DocumentVerification
	for _, doc := range documents {
		switch doc.Status {
		case models.DocumentVerificationPending, models.DocumentVerificationInProgress, models.DocumentAccepted:
			uploaded = append(uploaded, doc)
		}
	}
	if !twoDistinctDocumentsPresent(uploaded) {
		return false
	}
	if !containsPrimaryDocument(uploaded) {
		return false
	}
	return containsSecondDocument(uploaded)
}

// DocumentsVerificationPending reports whether a verification round can
// start: there are documents flagged for verification and at least one of
// them awaits it.
func (s *IdentityService) DocumentsVerificationPending(ctx context.Context, ec *statemachine.EventContext) (bool, error) {
	documents, err := s.documents.ListUsedForVerification(ctx, ec.Identity.ID)
	if err != nil {
		return false, err
	}
	if len(documents) == 0 {
		return false, nil
	}
	for _, doc := range documents {
		if doc.Status == models.DocumentVerificationPending {
			return true, nil
		}
	}
	return false, nil
}

// OtpVerified reports whether the newest user verification OTP is verified.
func (s *IdentityService) OtpVerified(ctx context.Context, ec *statemachine.EventContext) (bool, error) {
	return s.otps.IsUserVerifiedUsingOtp(ctx, ec.Identity.ProcessID)
}

// Actions.

// InitVerification creates the identity verification record and attaches it
// to the event context.
func (s *IdentityService) InitVerification(ctx context.Context, ec *statemachine.EventContext) error {
	now := time.Now()
	identity := &models.IdentityVerification{
		ID:           uuid.NewString(),
		ProcessID:    ec.ProcessID,
		ActivationID: ec.Owner.ActivationID,
		UserID:       ec.Owner.UserID,
		Phase:        models.PhaseDocumentUpload,
		Status:       models.StatusInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return err
	}
	ec.Identity = identity
	s.metrics.StateTransitions.WithLabelValues(string(identity.Phase), string(identity.Status)).Inc()
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 ec.Owner.SecuredUserID(),
		ProcessID:              ec.ProcessID,
		IdentityVerificationID: identity.ID,
		Action:                 string(audit.EventVerificationInitialized),
	})
}

func (s *IdentityService) MoveTo(ctx context.Context, ec *statemachine.EventContext, phase models.Phase, status models.Status) error {
	return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, ec.Identity, phase, status)
}

// StartDocumentVerification begins the per-document verification round.
// A verification-class failure settles the entity as failed instead of
// erroring the machine; the user resubmits documents.
func (s *IdentityService) StartDocumentVerification(ctx context.Context, ec *statemachine.EventContext) error {
	err := s.verify.StartVerification(ctx, ec.Owner, ec.Identity)
	if err == nil {
		return nil
	}
	if !dErrors.HasCode(err, dErrors.CodeDocumentVerification) {
		return err
	}
	s.logger.WarnContext(ctx, "document verification start failed",
		"identity_verification_id", ec.Identity.ID, "error", err,
	)
	ec.Identity.ErrorDetail = err.Error()
	ec.Identity.ErrorOrigin = models.OriginDocumentVerification
	return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, ec.Identity, models.PhaseDocumentVerification, models.StatusFailed)
}

func (s *IdentityService) ExecuteFinalDocumentVerification(ctx context.Context, ec *statemachine.EventContext) error {
	return s.verify.ExecuteFinalDocumentVerification(ctx, ec.Owner, ec.Identity)
}

func (s *IdentityService) InitPresenceCheck(ctx context.Context, ec *statemachine.EventContext) error {
	return s.presence.InitPresenceCheck(ctx, ec.Owner, ec.Identity)
}

func (s *IdentityService) CheckPresenceVerification(ctx context.Context, ec *statemachine.EventContext) error {
	return s.presence.CheckPresenceVerification(ctx, ec.Owner, ec.Identity)
}

func (s *IdentityService) SendOtp(ctx context.Context, ec *statemachine.EventContext) error {
	return s.otps.SendOtp(ctx, ec.Owner, ec.Identity)
}

func (s *IdentityService) ResendOtp(ctx context.Context, ec *statemachine.EventContext) error {
	return s.otps.ResendOtp(ctx, ec.Owner, ec.Identity)
}

// ProcessVerificationResult runs the precomplete check and settles the
// identity verification into its completed state, finishing or failing the
// process accordingly.
func (s *IdentityService) ProcessVerificationResult(ctx context.Context, ec *statemachine.EventContext) error {
	identity := ec.Identity

	if identity.Status == models.StatusRejected || identity.Status == models.StatusFailed {
		// An earlier step already settled the verdict.
		return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseCompleted, identity.Status)
	}

	result, err := s.precheck.Evaluate(ctx, identity)
	if err != nil {
		return err
	}
	if !result.Successful {
		s.logger.WarnContext(ctx, "precomplete check failed",
			"identity_verification_id", identity.ID, "error_detail", result.ErrorDetail,
		)
		identity.ErrorDetail = result.ErrorDetail
		identity.ErrorOrigin = models.OriginFinalValidation
		if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseCompleted, models.StatusFailed); err != nil {
			return err
		}
		return s.process.FailProcess(ctx, identity.ProcessID, result.ErrorDetail, models.OriginFinalValidation)
	}

	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseCompleted, models.StatusAccepted); err != nil {
		return err
	}
	return s.process.FinishProcess(ctx, identity.ProcessID)
}
