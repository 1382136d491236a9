package service

import (
	"context"
	"database/sql"
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
	pstrings "onboard/pkg/platform/strings"
	"onboard/pkg/platform/tx"
)

// DocumentService submits documents to the verification provider,
// classifies provider responses into document statuses, and pairs
// two-sided documents. Superseded documents are never mutated in place;
// resubmission creates a new row and disposes the original.
type DocumentService struct {
	db         *sql.DB
	documents  store.DocumentStore
	results    store.DocumentResultStore
	payloads   store.PayloadStore
	identities store.IdentityVerificationStore
	provider   provider.DocumentProvider
	limits     *LimitService
	cfg        *config.Config
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewDocumentService(
	db *sql.DB,
	stores store.Stores,
	documentProvider provider.DocumentProvider,
	limits *LimitService,
	cfg *config.Config,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		db:         db,
		documents:  stores.Documents,
		results:    stores.DocumentResults,
		payloads:   stores.Payloads,
		identities: stores.IdentityVerifications,
		provider:   documentProvider,
		limits:     limits,
		cfg:        cfg,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// UploadDocument stores a raw document payload for a later submit.
func (s *DocumentService) UploadDocument(ctx context.Context, owner models.OwnerID, filename string, data []byte) (*models.DocumentPayload, error) {
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "empty document payload")
	}
	payload := &models.DocumentPayload{
		ID:           uuid.NewString(),
		ActivationID: owner.ActivationID,
		Filename:     filename,
		Data:         data,
		CreatedAt:    time.Now(),
	}
	if err := s.payloads.Create(ctx, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// SubmitDocuments validates the submitted documents, creates their
// verification rows, sends them to the provider and classifies the
// per-document results. A provider error outcome stops processing the
// remaining documents of the batch.
func (s *DocumentService) SubmitDocuments(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, submitted []models.SubmittedDocument) ([]*models.DocumentVerification, error) {
	if len(submitted) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no documents submitted")
	}
	for _, doc := range submitted {
		if err := validateResubmitLinkage(doc); err != nil {
			return nil, err
		}
	}

	var created []*models.DocumentVerification
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.limits.CheckDocumentUploadLimit(ctx, identity); err != nil {
			return err
		}

		var loaded []models.SubmittedDocument
		for _, doc := range submitted {
			resolved, err := s.resolvePayload(ctx, doc)
			if err != nil {
				return err
			}
			loaded = append(loaded, resolved)
		}

		for _, doc := range loaded {
			if doc.Resubmit {
				if err := s.disposeOriginal(ctx, owner, identity, doc.OriginalDocumentID); err != nil {
					return err
				}
			}
			entity := s.newDocumentVerification(identity, owner, doc)
			if err := s.documents.Create(ctx, entity); err != nil {
				return err
			}
			created = append(created, entity)
		}

		results, err := s.provider.SubmitDocuments(ctx, owner, loaded)
		if err != nil {
			s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
			return err
		}
		if len(results) != len(created) {
			return dErrors.New(dErrors.CodeDocumentVerification, "provider returned unexpected number of submit results")
		}

		for i, entity := range created {
			halt, err := s.processSubmitResult(ctx, owner, identity, entity, results[i])
			if err != nil {
				return err
			}
			if halt {
				break
			}
		}

		pairTwoSidedDocuments(created)
		for _, entity := range created {
			if err := s.documents.Update(ctx, entity); err != nil {
				return err
			}
		}

		for _, doc := range loaded {
			if doc.PayloadID == "" {
				continue
			}
			if err := s.payloads.Delete(ctx, doc.PayloadID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateResubmitLinkage(doc models.SubmittedDocument) error {
	if doc.Resubmit && doc.OriginalDocumentID == "" {
		return dErrors.New(dErrors.CodeDocumentSubmitRejected, "missing original document id for resubmit")
	}
	if !doc.Resubmit && doc.OriginalDocumentID != "" {
		return dErrors.New(dErrors.CodeDocumentSubmitRejected, "original document id set without resubmit")
	}
	return nil
}

func (s *DocumentService) resolvePayload(ctx context.Context, doc models.SubmittedDocument) (models.SubmittedDocument, error) {
	if len(doc.Data) > 0 || doc.PayloadID == "" {
		return doc, nil
	}
	payload, err := s.payloads.FindByID(ctx, doc.PayloadID)
	if err != nil {
		return doc, err
	}
	doc.Data = payload.Data
	if doc.Filename == "" {
		doc.Filename = payload.Filename
	}
	return doc, nil
}

func (s *DocumentService) disposeOriginal(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, originalID string) error {
	original, err := s.documents.FindByID(ctx, originalID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeDocumentSubmitRejected, "original document not found for resubmit")
		}
		return err
	}
	if original.IdentityVerificationID != identity.ID {
		return dErrors.New(dErrors.CodeDocumentSubmitRejected, "original document belongs to another identity verification")
	}
	now := time.Now()
	original.Status = models.DocumentDisposed
	original.UsedForVerification = false
	original.UpdatedAt = now
	original.DisposedAt = &now
	if err := s.documents.Update(ctx, original); err != nil {
		return err
	}
	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                original.ID,
		Action:                 string(audit.EventDocumentDisposed),
	})
}

func (s *DocumentService) newDocumentVerification(identity *models.IdentityVerification, owner models.OwnerID, doc models.SubmittedDocument) *models.DocumentVerification {
	now := time.Now()
	usedForVerification := true
	if doc.Type == models.DocumentTypeSelfiePhoto || doc.Type == models.DocumentTypeSelfieVideo {
		usedForVerification = s.cfg.Identity.VerifySelfieWithDocuments
	}
	return &models.DocumentVerification{
		ID:                     uuid.NewString(),
		IdentityVerificationID: identity.ID,
		ActivationID:           owner.ActivationID,
		Type:                   doc.Type,
		Side:                   doc.Side,
		Status:                 models.DocumentUploadInProgress,
		Filename:               doc.Filename,
		OriginalDocumentID:     doc.OriginalDocumentID,
		UsedForVerification:    usedForVerification,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// processSubmitResult classifies one provider submit result into a
// document status. The returned halt flag is set on a provider error
// outcome; the caller stops classifying the remaining batch.
func (s *DocumentService) processSubmitResult(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, entity *models.DocumentVerification, result provider.SubmitResult) (bool, error) {
	now := time.Now()
	entity.UploadID = result.UploadID
	entity.UpdatedAt = now

	record := &models.DocumentResult{
		ID:                     uuid.NewString(),
		DocumentVerificationID: entity.ID,
		Phase:                  models.ProcessingPhaseUpload,
		ExtractedData:          result.ExtractedData,
		RejectReason:           result.RejectReason,
		ErrorDetail:            result.ErrorDetail,
		CreatedAt:              now,
	}

	switch {
	case result.ErrorDetail != "":
		entity.Status = models.DocumentFailed
		entity.ErrorDetail = result.ErrorDetail
		entity.ErrorOrigin = models.OriginDocumentVerification
		record.ErrorOrigin = models.OriginDocumentVerification
		if err := s.results.Create(ctx, record); err != nil {
			return false, err
		}
		return true, s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Subject:                entity.ID,
			Action:                 string(audit.EventDocumentVerificationFailed),
			Detail:                 result.ErrorDetail,
		})

	case result.RejectReason != "":
		entity.Status = models.DocumentRejected
		entity.RejectReason = result.RejectReason
		entity.RejectOrigin = models.OriginDocumentVerification
		if err := s.results.Create(ctx, record); err != nil {
			return false, err
		}
		return false, s.auditor.Emit(ctx, audit.Event{
			UserID:                 owner.SecuredUserID(),
			ProcessID:              identity.ProcessID,
			IdentityVerificationID: identity.ID,
			Subject:                entity.ID,
			Action:                 string(audit.EventDocumentVerificationRejected),
			Detail:                 result.RejectReason,
		})

	case result.ExtractedData == "" || result.ExtractedData == models.NoDataExtracted:
		// Still async at the vendor; a reconciliation pass polls it later.
		entity.Status = models.DocumentUploadInProgress
		entity.UploadedAt = &now
		return false, nil

	default:
		entity.UploadedAt = &now
		if result.ExtractedPhotoID != "" {
			entity.PhotoID = result.ExtractedPhotoID
		}
		if err := s.results.Create(ctx, record); err != nil {
			return false, err
		}
		return false, s.acceptUploadedDocument(ctx, owner, identity, entity)
	}
}

// acceptUploadedDocument routes a successfully extracted document to its
// next status depending on type and configuration.
func (s *DocumentService) acceptUploadedDocument(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, entity *models.DocumentVerification) error {
	selfie := entity.Type == models.DocumentTypeSelfiePhoto || entity.Type == models.DocumentTypeSelfieVideo

	switch {
	case selfie && s.cfg.Identity.SelfieVerificationOnSubmitAccepted:
		entity.Status = models.DocumentAccepted
	case selfie:
		entity.Status = models.DocumentVerificationPending
	case s.cfg.Identity.DocumentVerificationOnSubmit:
		result, err := s.provider.VerifyDocuments(ctx, owner, []string{entity.UploadID})
		if err != nil {
			s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
			return err
		}
		entity.Status = models.DocumentVerificationInProgress
		entity.VerificationID = result.VerificationID
	default:
		entity.Status = models.DocumentVerificationPending
	}

	return s.auditor.Emit(ctx, audit.Event{
		UserID:                 owner.SecuredUserID(),
		ProcessID:              identity.ProcessID,
		IdentityVerificationID: identity.ID,
		Subject:                entity.ID,
		Action:                 string(audit.EventDocumentSubmitted),
		Detail:                 string(entity.Status),
	})
}

// CleanupDocuments deletes the vendor-side uploads behind the given
// documents. Documents without an upload yet are skipped.
func (s *DocumentService) CleanupDocuments(ctx context.Context, owner models.OwnerID, documents []*models.DocumentVerification) error {
	var uploadIDs []string
	for _, doc := range documents {
		if doc.UploadID != "" {
			uploadIDs = append(uploadIDs, doc.UploadID)
		}
	}
	if len(uploadIDs) == 0 {
		return nil
	}
	if err := s.provider.CleanupDocuments(ctx, owner, pstrings.DedupeAndTrim(uploadIDs)); err != nil {
		s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
		return err
	}
	return nil
}

// CheckDocumentSubmit polls the provider for a document still uploading
// and reclassifies it by the submit outcome rules.
func (s *DocumentService) CheckDocumentSubmit(ctx context.Context, owner models.OwnerID, identity *models.IdentityVerification, entity *models.DocumentVerification) error {
	result, err := s.provider.CheckDocumentUpload(ctx, owner, *entity)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("document", string(provider.GetCategory(err))).Inc()
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.processSubmitResult(ctx, owner, identity, entity, result); err != nil {
			return err
		}
		return s.documents.Update(ctx, entity)
	})
}

// pairTwoSidedDocuments cross-links fronts and backs of two-sided document
// types by setting OtherSideID on the opposite side. The per-request batch
// is small, so the quadratic match is fine.
func pairTwoSidedDocuments(documents []*models.DocumentVerification) {
	for _, doc := range documents {
		if !doc.Type.TwoSided() || doc.OtherSideID != "" {
			continue
		}
		for _, other := range documents {
			if other == doc || other.Type != doc.Type || other.Side == doc.Side {
				continue
			}
			doc.OtherSideID = other.ID
			other.OtherSideID = doc.ID
			break
		}
	}
}
