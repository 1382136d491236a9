package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	providermocks "onboard/internal/onboarding/provider/mocks"
	"onboard/internal/onboarding/store"
	dErrors "onboard/pkg/domain-errors"
)

type documentTestEnv struct {
	service  *DocumentService
	stores   store.Stores
	provider *providermocks.MockDocumentProvider
	owner    models.OwnerID
	identity *models.IdentityVerification
}

func newDocumentTestEnv(t *testing.T) *documentTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	stores := store.NewMemory().Stores()
	cfg := testConfig()
	m := testMetrics()
	logger := testLogger()
	auditor := relaxedAuditor(ctrl)
	documentProvider := providermocks.NewMockDocumentProvider(ctrl)
	limits := NewLimitService(stores, cfg, auditor, m, logger)

	owner := models.NewOwnerID("user-1", "activation-1")
	process := seedProcess(t, stores, owner)
	identity := seedIdentity(t, stores, owner, process.ID, models.PhaseDocumentUpload, models.StatusInProgress)

	return &documentTestEnv{
		service:  NewDocumentService(nil, stores, documentProvider, limits, cfg, auditor, m, logger),
		stores:   stores,
		provider: documentProvider,
		owner:    owner,
		identity: identity,
	}
}

func idCardSubmission() []models.SubmittedDocument {
	return []models.SubmittedDocument{
		{Type: models.DocumentTypeIDCard, Side: models.CardSideFront, Filename: "front.jpg", Data: []byte("front")},
		{Type: models.DocumentTypeIDCard, Side: models.CardSideBack, Filename: "back.jpg", Data: []byte("back")},
	}
}

func extractedResults(n int) []provider.SubmitResult {
	results := make([]provider.SubmitResult, n)
	for i := range results {
		results[i] = provider.SubmitResult{
			UploadID:      "upload-" + string(rune('a'+i)),
			ExtractedData: `{"documentNumber":"123"}`,
		}
	}
	return results
}

func Test_UploadDocument(t *testing.T) {
	env := newDocumentTestEnv(t)

	payload, err := env.service.UploadDocument(t.Context(), env.owner, "front.jpg", []byte("image-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, env.owner.ActivationID, payload.ActivationID)

	stored, err := env.stores.Payloads.FindByID(t.Context(), payload.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), stored.Data)
}

func Test_UploadDocument_EmptyData(t *testing.T) {
	env := newDocumentTestEnv(t)

	_, err := env.service.UploadDocument(t.Context(), env.owner, "front.jpg", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_SubmitDocuments_AcceptedAndPaired(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return(extractedResults(2), nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, idCardSubmission())
	require.NoError(t, err)
	require.Len(t, created, 2)

	front, back := created[0], created[1]
	assert.Equal(t, models.DocumentVerificationPending, front.Status)
	assert.Equal(t, models.DocumentVerificationPending, back.Status)
	assert.Equal(t, back.ID, front.OtherSideID)
	assert.Equal(t, front.ID, back.OtherSideID)
	assert.NotNil(t, front.UploadedAt)

	stored, err := env.stores.Documents.FindByID(t.Context(), front.ID)
	require.NoError(t, err)
	assert.Equal(t, back.ID, stored.OtherSideID)
}

func Test_SubmitDocuments_Empty(t *testing.T) {
	env := newDocumentTestEnv(t)

	_, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_SubmitDocuments_Rejected(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return([]provider.SubmitResult{{UploadID: "upload-a", RejectReason: "document unreadable"}}, nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, models.DocumentRejected, created[0].Status)
	assert.Equal(t, "document unreadable", created[0].RejectReason)
	assert.Equal(t, models.OriginDocumentVerification, created[0].RejectOrigin)

	results, err := env.stores.DocumentResults.ListForDocument(t.Context(), created[0].ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ProcessingPhaseUpload, results[0].Phase)
	assert.Equal(t, "document unreadable", results[0].RejectReason)
}

func Test_SubmitDocuments_ProviderErrorHaltsBatch(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return([]provider.SubmitResult{
			{UploadID: "upload-a", ErrorDetail: "vendor timeout"},
			{UploadID: "upload-b", ExtractedData: `{"documentNumber":"123"}`},
		}, nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, idCardSubmission())
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, models.DocumentFailed, created[0].Status)
	assert.Equal(t, "vendor timeout", created[0].ErrorDetail)
	// The second document of the batch is left to the reconciliation pass.
	assert.Equal(t, models.DocumentUploadInProgress, created[1].Status)
}

func Test_SubmitDocuments_StillProcessingAtVendor(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return([]provider.SubmitResult{{UploadID: "upload-a", ExtractedData: models.NoDataExtracted}}, nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, models.DocumentUploadInProgress, created[0].Status)
	assert.Equal(t, "upload-a", created[0].UploadID)
	assert.NotNil(t, created[0].UploadedAt)
}

func Test_SubmitDocuments_VerificationOnSubmit(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.service.cfg.Identity.DocumentVerificationOnSubmit = true
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return(extractedResults(1), nil)
	env.provider.EXPECT().
		VerifyDocuments(gomock.Any(), env.owner, []string{"upload-a"}).
		Return(provider.VerificationResult{VerificationID: "verification-1"}, nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, models.DocumentVerificationInProgress, created[0].Status)
	assert.Equal(t, "verification-1", created[0].VerificationID)
}

func Test_SubmitDocuments_SelfieAcceptedOnSubmit(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.service.cfg.Identity.SelfieVerificationOnSubmitAccepted = true
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return(extractedResults(1), nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypeSelfiePhoto, Filename: "selfie.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.DocumentAccepted, created[0].Status)
}

func Test_SubmitDocuments_ResolvesPayload(t *testing.T) {
	env := newDocumentTestEnv(t)
	payload, err := env.service.UploadDocument(t.Context(), env.owner, "passport.jpg", []byte("stored-bytes"))
	require.NoError(t, err)

	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		DoAndReturn(func(_ any, _ models.OwnerID, docs []models.SubmittedDocument) ([]provider.SubmitResult, error) {
			require.Len(t, docs, 1)
			assert.Equal(t, []byte("stored-bytes"), docs[0].Data)
			assert.Equal(t, "passport.jpg", docs[0].Filename)
			return extractedResults(1), nil
		})

	_, err = env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, PayloadID: payload.ID},
	})
	require.NoError(t, err)

	// The blob is dropped once the provider has the document.
	_, err = env.stores.Payloads.FindByID(t.Context(), payload.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func Test_SubmitDocuments_ResubmitDisposesOriginal(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return(extractedResults(1), nil).
		Times(2)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	original := created[0]

	resubmitted, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport2.jpg", Data: []byte("img2"), Resubmit: true, OriginalDocumentID: original.ID},
	})
	require.NoError(t, err)
	require.Len(t, resubmitted, 1)
	assert.Equal(t, original.ID, resubmitted[0].OriginalDocumentID)

	disposed, err := env.stores.Documents.FindByID(t.Context(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentDisposed, disposed.Status)
	assert.False(t, disposed.UsedForVerification)
	assert.NotNil(t, disposed.DisposedAt)
}

func Test_SubmitDocuments_ResubmitLinkage(t *testing.T) {
	env := newDocumentTestEnv(t)

	_, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Data: []byte("img"), Resubmit: true},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDocumentSubmitRejected))

	_, err = env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Data: []byte("img"), OriginalDocumentID: "doc-1"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDocumentSubmitRejected))
}

func Test_SubmitDocuments_UploadLimit(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.service.cfg.Identity.MaxDocumentUploads = 1
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return(extractedResults(2), nil)

	_, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, idCardSubmission())
	require.NoError(t, err)

	_, err = env.service.SubmitDocuments(t.Context(), env.owner, env.identity, idCardSubmission())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProcessLimitReached))

	failed, err := env.stores.IdentityVerifications.FindByID(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, models.ErrorMaxFailedAttemptsDocumentUpload, failed.ErrorDetail)
}

func Test_CheckDocumentSubmit(t *testing.T) {
	env := newDocumentTestEnv(t)
	env.provider.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return([]provider.SubmitResult{{UploadID: "upload-a", ExtractedData: models.NoDataExtracted}}, nil)

	created, err := env.service.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypePassport, Filename: "passport.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	entity := created[0]
	require.Equal(t, models.DocumentUploadInProgress, entity.Status)

	env.provider.EXPECT().
		CheckDocumentUpload(gomock.Any(), env.owner, gomock.Any()).
		Return(provider.SubmitResult{UploadID: "upload-a", ExtractedData: `{"documentNumber":"123"}`}, nil)

	require.NoError(t, env.service.CheckDocumentSubmit(t.Context(), env.owner, env.identity, entity))
	assert.Equal(t, models.DocumentVerificationPending, entity.Status)

	stored, err := env.stores.Documents.FindByID(t.Context(), entity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentVerificationPending, stored.Status)
}
