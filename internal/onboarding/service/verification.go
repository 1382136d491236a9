package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/metrics"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	pstrings "onboard/pkg/platform/strings"
	"onboard/pkg/platform/tx"
)

// VerificationService drives the cross-document verification rounds: the
// per-document round over pending documents and the final round over all
// accepted documents together.
type VerificationService struct {
	db         *sql.DB
	documents  store.DocumentStore
	results    store.DocumentResultStore
	identities store.IdentityVerificationStore
	provider   provider.DocumentProvider
	limits     *LimitService
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewVerificationService(
	db *sql.DB,
	stores store.Stores,
	documentProvider provider.DocumentProvider,
	limits *LimitService,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		db:         db,
		documents:  stores.Documents,
		results:    stores.DocumentResults,
		identities: stores.IdentityVerifications,
		provider:   documentProvider,
		limits:     limits,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// wrapProviderError maps a provider failure onto a domain error code. A
// remote transport fault keeps its retryable remote-communication code,
// everything else settles as a document verification error.
func wrapProviderError(err error, msg string) error {
	if provider.IsRemote(err) {
		return dErrors.Wrap(err, dErrors.CodeRemoteCommunication, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeDocumentVerification, msg)
}

// StartVerification sends every document pending verification to the
// provider as one batch and marks them in progress under the returned
// verification id.
func (s *VerificationService) StartVerification(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	documents, err := s.documents.ListUsedForVerification(ctx, identity.ID)
	if err != nil {
		return err
	}
	var pending []*models.DocumentVerification
	var uploadIDs []string
	for _, doc := range documents {
		if doc.Status != models.DocumentVerificationPending {
			continue
		}
		pending = append(pending, doc)
		uploadIDs = append(uploadIDs, doc.UploadID)
	}
	if len(pending) == 0 {
		return nil
	}

	result, err := s.provider.VerifyDocuments(ctx, owner, uploadIDs)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
		return wrapProviderError(err, "starting document verification failed")
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		now := time.Now()
		for _, doc := range pending {
			doc.Status = models.DocumentVerificationInProgress
			doc.VerificationID = result.VerificationID
			doc.UpdatedAt = now
			if err := s.documents.Update(ctx, doc); err != nil {
				return err
			}
		}
		return s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Subject:                result.VerificationID,
			Action:                 string(audit.EventDocumentVerificationStarted),
		})
	})
}

// CheckVerificationResult polls the provider for every in-progress
// verification batch of the identity verification and applies finished
// outcomes. Batches still in progress are left untouched.
func (s *VerificationService) CheckVerificationResult(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	documents, err := s.documents.ListByIdentityVerification(ctx, identity.ID)
	if err != nil {
		return err
	}
	batches := make(map[string][]*models.DocumentVerification)
	for _, doc := range documents {
		if doc.Status != models.DocumentVerificationInProgress || doc.VerificationID == "" {
			continue
		}
		batches[doc.VerificationID] = append(batches[doc.VerificationID], doc)
	}

	for verificationID, batch := range batches {
		result, err := s.provider.GetVerificationResult(ctx, owner, verificationID)
		if err != nil {
			s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
			if provider.IsRetryable(err) {
				// Transient vendor fault; the batch stays in progress and
				// the next reconciliation pass polls it again.
				s.logger.WarnContext(ctx, "fetching document verification result failed",
					"verification_id", verificationID, "error", err,
				)
				continue
			}
			return wrapProviderError(err, "fetching document verification result failed")
		}
		if result.Status == provider.VerificationInProgress {
			continue
		}
		if err := tx.Run(ctx, s.db, func(ctx context.Context) error {
			return s.applyVerificationResult(ctx, owner, identity, batch, result)
		}); err != nil {
			return err
		}
	}

	if identity.Phase == models.PhaseDocumentVerification && identity.Status == models.StatusInProgress {
		return tx.Run(ctx, s.db, func(ctx context.Context) error {
			return s.settleDocumentVerification(ctx, identity)
		})
	}
	return nil
}

// settleDocumentVerification derives the identity verification status from
// its document statuses once no document is mid-verification: any failure
// wins over any rejection, which wins over full acceptance.
func (s *VerificationService) settleDocumentVerification(ctx context.Context, identity *models.IdentityVerification) error {
	documents, err := s.documents.ListUsedForVerification(ctx, identity.ID)
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		return nil
	}

	accepted := 0
	var failed, rejected *models.DocumentVerification
	for _, doc := range documents {
		switch doc.Status {
		case models.DocumentVerificationInProgress, models.DocumentVerificationPending, models.DocumentUploadInProgress:
			return nil
		case models.DocumentAccepted:
			accepted++
		case models.DocumentFailed:
			failed = doc
		case models.DocumentRejected:
			rejected = doc
		}
	}

	switch {
	case failed != nil:
		identity.ErrorDetail = failed.ErrorDetail
		identity.ErrorOrigin = models.OriginDocumentVerification
		return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerification, models.StatusFailed)
	case rejected != nil:
		identity.RejectReason = rejected.RejectReason
		identity.RejectOrigin = models.OriginDocumentVerification
		return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerification, models.StatusRejected)
	case accepted == len(documents):
		return moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerification, models.StatusAccepted)
	default:
		return nil
	}
}

// applyVerificationResult settles one finished verification batch onto its
// documents. The provider verdict applies to the whole batch; per-document
// extracted data is matched by upload id when present.
func (s *VerificationService) applyVerificationResult(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, batch []*models.DocumentVerification, result provider.VerificationResult) error {
	now := time.Now()

	var rejectReason string
	if result.Status == provider.VerificationRejected {
		reasons, err := s.provider.ParseRejectionReasons(result)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeDocumentVerification, "parsing rejection reasons failed")
		}
		rejectReason = strings.Join(pstrings.DedupeAndTrim(reasons), "; ")
		if rejectReason == "" {
			rejectReason = result.RejectReason
		}
	}

	for _, doc := range batch {
		record := &models.DocumentResult{
			ID:                     uuid.NewString(),
			DocumentVerificationID: doc.ID,
			Phase:                  models.ProcessingPhaseVerification,
			ExtractedData:          extractedDataFor(doc.UploadID, result.Results),
			CreatedAt:              now,
		}

		switch result.Status {
		case provider.VerificationAccepted:
			doc.Status = models.DocumentAccepted
			doc.VerifiedAt = &now
		case provider.VerificationRejected:
			doc.Status = models.DocumentRejected
			doc.RejectReason = rejectReason
			doc.RejectOrigin = models.OriginDocumentVerification
			record.RejectReason = rejectReason
		case provider.VerificationFailed:
			doc.Status = models.DocumentFailed
			doc.ErrorDetail = result.ErrorDetail
			doc.ErrorOrigin = models.OriginDocumentVerification
			record.ErrorDetail = result.ErrorDetail
			record.ErrorOrigin = models.OriginDocumentVerification
		default:
			return dErrors.Newf(dErrors.CodeInvalidState, "unexpected verification status %q", result.Status)
		}
		doc.UpdatedAt = now

		if err := s.results.Create(ctx, record); err != nil {
			return err
		}
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
	}

	action := audit.EventDocumentVerificationAccepted
	detail := ""
	switch result.Status {
	case provider.VerificationRejected:
		action = audit.EventDocumentVerificationRejected
		detail = rejectReason
	case provider.VerificationFailed:
		action = audit.EventDocumentVerificationFailed
		detail = result.ErrorDetail
	}
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                result.VerificationID,
		Action:                 string(action),
		Detail:                 detail,
	})
}

func extractedDataFor(uploadID string, results []provider.SubmitResult) string {
	for _, r := range results {
		if r.UploadID == uploadID {
			return r.ExtractedData
		}
	}
	return ""
}

// ExecuteFinalDocumentVerification verifies all accepted documents together
// in one synchronous provider round and moves the identity verification to
// the matching final-phase state. A rejected or failed round counts one
// against the process error score regardless of how many documents it
// fans out to.
func (s *VerificationService) ExecuteFinalDocumentVerification(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification) error {
	documents, err := s.documents.ListUsedForVerification(ctx, identity.ID)
	if err != nil {
		return err
	}
	var uploadIDs []string
	var accepted []*models.DocumentVerification
	for _, doc := range documents {
		if doc.Status != models.DocumentAccepted {
			continue
		}
		accepted = append(accepted, doc)
		uploadIDs = append(uploadIDs, doc.UploadID)
	}
	if len(accepted) == 0 {
		return dErrors.New(dErrors.CodeInvalidState, "no accepted documents for final verification")
	}

	result, err := s.provider.VerifyDocuments(ctx, owner, uploadIDs)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
		return wrapProviderError(err, "final document verification failed")
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		switch result.Status {
		case provider.VerificationAccepted:
			return s.finalVerificationAccepted(ctx, owner, identity, result)
		case provider.VerificationRejected:
			return s.finalVerificationRejected(ctx, owner, identity, accepted, result)
		case provider.VerificationFailed:
			return s.finalVerificationFailed(ctx, owner, identity, accepted, result)
		case provider.VerificationInProgress:
			// The workflow depends on the verdict being available before the
			// phase transition is committed.
			return dErrors.New(dErrors.CodeInternal, "only sync mode is supported for final verification")
		default:
			return dErrors.Newf(dErrors.CodeInvalidState, "unexpected final verification status %q", result.Status)
		}
	})
}

func (s *VerificationService) finalVerificationAccepted(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, result provider.VerificationResult) error {
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerificationFinal, models.StatusAccepted); err != nil {
		return err
	}
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                result.VerificationID,
		Action:                 string(audit.EventDocumentVerificationAccepted),
	})
}

func (s *VerificationService) finalVerificationRejected(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, documents []*models.DocumentVerification, result provider.VerificationResult) error {
	reasons, err := s.provider.ParseRejectionReasons(result)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDocumentVerification, "parsing rejection reasons failed")
	}
	rejectReason := strings.Join(pstrings.DedupeAndTrim(reasons), "; ")
	if rejectReason == "" {
		rejectReason = result.RejectReason
	}

	now := time.Now()
	for _, doc := range documents {
		doc.Status = models.DocumentRejected
		doc.RejectReason = rejectReason
		doc.RejectOrigin = models.OriginFinalValidation
		doc.UpdatedAt = now
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
	}

	identity.RejectReason = rejectReason
	identity.RejectOrigin = models.OriginFinalValidation
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerificationFinal, models.StatusRejected); err != nil {
		return err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                result.VerificationID,
		Action:                 string(audit.EventDocumentVerificationRejected),
		Detail:                 rejectReason,
	}); err != nil {
		return err
	}
	return s.countVerificationFailure(ctx, identity)
}

func (s *VerificationService) finalVerificationFailed(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, documents []*models.DocumentVerification, result provider.VerificationResult) error {
	now := time.Now()
	for _, doc := range documents {
		doc.Status = models.DocumentFailed
		doc.ErrorDetail = result.ErrorDetail
		doc.ErrorOrigin = models.OriginFinalValidation
		doc.UpdatedAt = now
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
	}

	identity.ErrorDetail = result.ErrorDetail
	identity.ErrorOrigin = models.OriginFinalValidation
	if err := moveToPhaseAndStatus(ctx, s.identities, s.metrics, s.auditor, identity, models.PhaseDocumentVerificationFinal, models.StatusFailed); err != nil {
		return err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                result.VerificationID,
		Action:                 string(audit.EventDocumentVerificationFailed),
		Detail:                 result.ErrorDetail,
	}); err != nil {
		return err
	}
	return s.countVerificationFailure(ctx, identity)
}

// countVerificationFailure adds exactly one to the process error score and
// enforces the limit. A breached limit fails the process and surfaces as a
// limit error to the caller.
func (s *VerificationService) countVerificationFailure(ctx context.Context, identity *models.IdentityVerification) error {
	process, err := s.limits.IncrementErrorScore(ctx, identity.ProcessID, 1)
	if err != nil {
		return err
	}
	return s.limits.CheckErrorScoreLimit(ctx, process, identity)
}
