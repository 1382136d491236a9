// Package mock ships built-in adapters that accept everything. They keep
// development and tests independent of vendor sandboxes.
package mock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
)

// Name is the registry key of the mock adapters.
const Name = "mock"

// DocumentProvider accepts every document and extracts a fixed payload.
type DocumentProvider struct{}

func (DocumentProvider) SubmitDocuments(_ context.Context, owner models.OwnerID, documents []models.SubmittedDocument) ([]provider.SubmitResult, error) {
	results := make([]provider.SubmitResult, 0, len(documents))
	for _, doc := range documents {
		results = append(results, provider.SubmitResult{
			DocumentID:       doc.DocumentID,
			UploadID:         uuid.NewString(),
			ExtractedData:    extractedData(owner, doc.Type),
			ExtractedPhotoID: extractedPhotoID(doc.Type, doc.Side),
		})
	}
	return results, nil
}

func (DocumentProvider) CheckDocumentUpload(_ context.Context, owner models.OwnerID, document models.DocumentVerification) (provider.SubmitResult, error) {
	return provider.SubmitResult{
		DocumentID:       document.ID,
		UploadID:         document.UploadID,
		ExtractedData:    extractedData(owner, document.Type),
		ExtractedPhotoID: extractedPhotoID(document.Type, document.Side),
	}, nil
}

func (DocumentProvider) VerifyDocuments(_ context.Context, _ models.OwnerID, uploadIDs []string) (provider.VerificationResult, error) {
	results := make([]provider.SubmitResult, 0, len(uploadIDs))
	for _, id := range uploadIDs {
		results = append(results, provider.SubmitResult{UploadID: id, ExtractedData: "{\"verified\":true}"})
	}
	return provider.VerificationResult{
		VerificationID: uuid.NewString(),
		Status:         provider.VerificationAccepted,
		Results:        results,
		Score:          100,
	}, nil
}

func (p DocumentProvider) GetVerificationResult(ctx context.Context, owner models.OwnerID, verificationID string) (provider.VerificationResult, error) {
	result, err := p.VerifyDocuments(ctx, owner, nil)
	if err != nil {
		return provider.VerificationResult{}, err
	}
	result.VerificationID = verificationID
	return result, nil
}

func (DocumentProvider) GetPhoto(_ context.Context, photoID string) (models.Image, error) {
	return models.Image{Filename: "photo-" + photoID + ".jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}, nil
}

func (DocumentProvider) CleanupDocuments(context.Context, models.OwnerID, []string) error {
	return nil
}

func (DocumentProvider) ParseRejectionReasons(result provider.VerificationResult) ([]string, error) {
	if result.RejectReason == "" {
		return nil, nil
	}
	return []string{result.RejectReason}, nil
}

func extractedData(owner models.OwnerID, docType models.DocumentType) string {
	return fmt.Sprintf("{\"type\":%q,\"subject\":%q}", docType, owner.ActivationID)
}

// extractedPhotoID fakes the person photo extraction. Only the front face
// of a physical document carries one.
func extractedPhotoID(docType models.DocumentType, side models.CardSide) string {
	if side == models.CardSideBack {
		return ""
	}
	for _, source := range models.PreferredPhotoSources {
		if docType == source {
			return uuid.NewString()
		}
	}
	return ""
}

// PresenceProvider accepts every liveness session.
type PresenceProvider struct{}

func (PresenceProvider) InitPresenceCheck(context.Context, models.OwnerID, models.Image) error {
	return nil
}

func (PresenceProvider) StartPresenceCheck(_ context.Context, owner models.OwnerID) (provider.SessionInfo, error) {
	return provider.SessionInfo{Attributes: map[string]any{
		"sessionToken": uuid.NewString(),
		"activationId": owner.ActivationID,
	}}, nil
}

func (PresenceProvider) GetResult(context.Context, models.OwnerID, provider.SessionInfo) (provider.PresenceCheckResult, error) {
	return provider.PresenceCheckResult{
		Status: provider.PresenceCheckAccepted,
		Photo:  &models.Image{Filename: "selfie.jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}},
	}, nil
}

func (PresenceProvider) CleanupIdentityData(context.Context, models.OwnerID) error {
	return nil
}

// OnboardingAdapter approves every client and drops OTP codes on the floor;
// codes surface through logs in development.
type OnboardingAdapter struct{}

func (OnboardingAdapter) SendOtpCode(context.Context, provider.SendOtpRequest) error {
	return nil
}

func (OnboardingAdapter) EvaluateClient(context.Context, provider.EvaluateClientRequest) (provider.EvaluateClientResponse, error) {
	return provider.EvaluateClientResponse{Accepted: true}, nil
}

// ActivationClient reports every activation as active.
type ActivationClient struct{}

func (ActivationClient) FetchActivationStatus(context.Context, string) (models.ActivationStatus, error) {
	return models.ActivationActive, nil
}
