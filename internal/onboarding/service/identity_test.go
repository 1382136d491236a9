package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/provider"
	providermocks "onboard/internal/onboarding/provider/mocks"
	"onboard/internal/onboarding/service/mocks"
	"onboard/internal/onboarding/store"
)

type identityTestEnv struct {
	service     *IdentityService
	documentSvc *DocumentService
	presenceSvc *PresenceService
	stores      store.Stores
	docs        *providermocks.MockDocumentProvider
	presence    *providermocks.MockPresenceProvider
	owner       models.OwnerID
	process     *models.Process
	identity    *models.IdentityVerification
}

func newIdentityTestEnv(t *testing.T) *identityTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	stores := store.NewMemory().Stores()
	cfg := testConfig()
	m := testMetrics()
	logger := testLogger()
	auditor := relaxedAuditor(ctrl)
	documentProvider := providermocks.NewMockDocumentProvider(ctrl)
	presenceProvider := providermocks.NewMockPresenceProvider(ctrl)
	adapter := providermocks.NewMockOnboardingAdapter(ctrl)
	activation := mocks.NewMockActivationClient(ctrl)

	limits := NewLimitService(stores, cfg, auditor, m, logger)
	documents := NewDocumentService(nil, stores, documentProvider, limits, cfg, auditor, m, logger)
	verify := NewVerificationService(nil, stores, documentProvider, limits, cfg, auditor, m, logger)
	presenceSvc := NewPresenceService(nil, stores, presenceProvider, documentProvider, limits, cfg, auditor, m, logger)
	otps := NewOtpService(nil, stores, adapter, nil, limits, cfg, auditor, m, logger)
	process := NewProcessService(nil, stores, cfg, auditor, logger)
	precheck := NewPrecompleteCheck(stores.Documents, stores.Otps, stores.ScaResults, activation, cfg.Identity)

	owner := models.NewOwnerID("user-1", "activation-1")
	proc := seedProcess(t, stores, owner)
	identity := seedIdentity(t, stores, owner, proc.ID, models.PhasePresenceCheck, models.StatusFailed)

	return &identityTestEnv{
		service:     NewIdentityService(nil, stores, documents, verify, presenceSvc, otps, process, precheck, cfg, auditor, m, logger),
		documentSvc: documents,
		presenceSvc: presenceSvc,
		stores:      stores,
		docs:        documentProvider,
		presence:    presenceProvider,
		owner:       owner,
		process:     proc,
		identity:    identity,
	}
}

func Test_Cleanup_ResetsDocumentsAndIdentity(t *testing.T) {
	env := newIdentityTestEnv(t)
	env.identity.ErrorDetail = "presenceCheckFailed"
	env.identity.ErrorOrigin = models.OriginPresenceCheck
	env.identity.SessionInfo = `{"token":"abc"}`
	require.NoError(t, env.stores.IdentityVerifications.Update(t.Context(), env.identity))

	accepted := seedDocument(t, env.stores, env.identity, models.DocumentTypeIDCard, models.DocumentAccepted, "upload-front")
	pending := seedDocument(t, env.stores, env.identity, models.DocumentTypeIDCard, models.DocumentVerificationPending, "upload-back")
	failed := seedDocument(t, env.stores, env.identity, models.DocumentTypeSelfiePhoto, models.DocumentFailed, "")

	env.service.cfg.Identity.PresenceCheckCleanupEnabled = true
	env.docs.EXPECT().CleanupDocuments(gomock.Any(), env.owner, gomock.Any()).
		DoAndReturn(func(_ any, _ models.OwnerID, uploadIDs []string) error {
			assert.ElementsMatch(t, []string{"upload-front", "upload-back"}, uploadIDs)
			return nil
		})
	env.presence.EXPECT().CleanupIdentityData(gomock.Any(), env.owner).Return(nil)

	require.NoError(t, env.service.Cleanup(t.Context(), env.owner))

	for _, id := range []string{accepted.ID, pending.ID} {
		doc, err := env.stores.Documents.FindByID(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, models.DocumentFailed, doc.Status)
		assert.Equal(t, models.ErrorOtpCanceled, doc.ErrorDetail)
		assert.Equal(t, models.OriginUserRequest, doc.ErrorOrigin)
	}

	// The already failed document keeps its original error attribution.
	doc, err := env.stores.Documents.FindByID(t.Context(), failed.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.ErrorDetail)

	identity, err := env.stores.IdentityVerifications.FindByID(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDocumentUpload, identity.Phase)
	assert.Equal(t, models.StatusInProgress, identity.Status)
	assert.Empty(t, identity.ErrorDetail)
	assert.Empty(t, identity.ErrorOrigin)
	assert.Empty(t, identity.SessionInfo)
}

func Test_SubmitDocuments_PhotoFlowsIntoPresenceCheck(t *testing.T) {
	env := newIdentityTestEnv(t)
	env.identity.Phase = models.PhaseDocumentUpload
	env.identity.Status = models.StatusInProgress
	require.NoError(t, env.stores.IdentityVerifications.Update(t.Context(), env.identity))

	env.docs.EXPECT().
		SubmitDocuments(gomock.Any(), env.owner, gomock.Any()).
		Return([]provider.SubmitResult{
			{UploadID: "upload-a", ExtractedData: `{"documentNumber":"123"}`, ExtractedPhotoID: "photo-1"},
			{UploadID: "upload-b", ExtractedData: `{"documentNumber":"123"}`},
		}, nil)

	created, err := env.documentSvc.SubmitDocuments(t.Context(), env.owner, env.identity, []models.SubmittedDocument{
		{Type: models.DocumentTypeIDCard, Side: models.CardSideFront, Filename: "front.jpg", Data: []byte("front")},
		{Type: models.DocumentTypeIDCard, Side: models.CardSideBack, Filename: "back.jpg", Data: []byte("back")},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "photo-1", created[0].PhotoID)
	assert.Empty(t, created[1].PhotoID)

	stored, err := env.stores.Documents.FindByID(t.Context(), created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "photo-1", stored.PhotoID)

	photo := models.Image{Filename: "person.jpg", Data: []byte{0xFF, 0xD8}}
	env.docs.EXPECT().GetPhoto(gomock.Any(), "photo-1").Return(photo, nil)
	env.presence.EXPECT().InitPresenceCheck(gomock.Any(), env.owner, photo).Return(nil)
	env.presence.EXPECT().StartPresenceCheck(gomock.Any(), env.owner).
		Return(provider.SessionInfo{Attributes: map[string]any{"sessionToken": "tok"}}, nil)

	require.NoError(t, env.presenceSvc.InitPresenceCheck(t.Context(), env.owner, env.identity))
	assert.Equal(t, models.PhasePresenceCheck, env.identity.Phase)
	assert.Equal(t, models.StatusInProgress, env.identity.Status)
}

func Test_Cleanup_VendorFailureStillResets(t *testing.T) {
	env := newIdentityTestEnv(t)
	seedDocument(t, env.stores, env.identity, models.DocumentTypePassport, models.DocumentAccepted, "upload-1")

	env.docs.EXPECT().CleanupDocuments(gomock.Any(), env.owner, []string{"upload-1"}).
		Return(errors.New("vendor down"))

	require.NoError(t, env.service.Cleanup(t.Context(), env.owner))

	identity, err := env.stores.IdentityVerifications.FindByID(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDocumentUpload, identity.Phase)
	assert.Equal(t, models.StatusInProgress, identity.Status)
}

func Test_Cleanup_NoUploadsSkipsVendorCall(t *testing.T) {
	env := newIdentityTestEnv(t)
	seedDocument(t, env.stores, env.identity, models.DocumentTypePassport, models.DocumentUploadInProgress, "")

	// No CleanupDocuments expectation: nothing was uploaded yet.
	require.NoError(t, env.service.Cleanup(t.Context(), env.owner))

	identity, err := env.stores.IdentityVerifications.FindByID(t.Context(), env.identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDocumentUpload, identity.Phase)
	assert.Equal(t, models.StatusInProgress, identity.Status)
}
