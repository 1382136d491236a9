package service

import (
	"context"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	dErrors "onboard/pkg/domain-errors"
)

// PrecompleteResult is the verdict of the precomplete evaluation.
type PrecompleteResult struct {
	Successful  bool
	ErrorDetail string
}

func precompleteFailed(detail string) PrecompleteResult {
	return PrecompleteResult{ErrorDetail: detail}
}

// PrecompleteInput is the read-only snapshot the precomplete decision runs
// on. Documents holds the processed documents of the identity verification,
// meaning those in a terminal processing status.
type PrecompleteInput struct {
	Identity            *models.IdentityVerification
	Documents           []*models.DocumentVerification
	UserVerificationOtp *models.Otp
	ActivationOtp       *models.Otp
	ActivationStatus    models.ActivationStatus
	ScaResult           *models.ScaResult

	PresenceCheckEnabled   bool
	OtpVerificationEnabled bool
}

// EvaluatePrecomplete validates all critical conditions before an identity
// verification may finish as accepted. The state machine should never let
// an invalid verification reach this point; the check works as a safety
// stop. It is deterministic and side-effect free so retries are idempotent.
// Checks short-circuit on the first failure, in order.
func EvaluatePrecomplete(in PrecompleteInput) PrecompleteResult {
	for _, doc := range in.Documents {
		if doc.Status != models.DocumentAccepted {
			return precompleteFailed("Some documents not accepted")
		}
	}

	if !RequiredDocumentTypesPresent(in.Documents) {
		return precompleteFailed("Required documents not present")
	}

	if !precompletePhaseAndStatusValid(in) {
		return precompleteFailed("Not valid phase and state")
	}

	if in.PresenceCheckEnabled && in.Identity.RejectOrigin == models.OriginPresenceCheck {
		return precompleteFailed("Presence check did not pass")
	}

	if in.OtpVerificationEnabled && !otpVerified(in.UserVerificationOtp) {
		return precompleteFailed("Not valid user verification OTP")
	}

	if !otpVerified(in.ActivationOtp) {
		return precompleteFailed("Not valid activation OTP")
	}

	if in.ActivationStatus != models.ActivationActive {
		return precompleteFailed("Activation is not valid")
	}

	// With an SCA component enabled a successful result must be present.
	// With both disabled only a recorded failure blocks.
	scaRequired := in.PresenceCheckEnabled || in.OtpVerificationEnabled
	if scaRequired && in.ScaResult == nil {
		return precompleteFailed("Did not pass SCA")
	}
	if in.ScaResult != nil && in.ScaResult.Result != models.ScaSuccess {
		return precompleteFailed("Did not pass SCA")
	}

	return PrecompleteResult{Successful: true}
}

func otpVerified(otp *models.Otp) bool {
	return otp != nil && otp.Status == models.OtpVerified
}

func precompletePhaseAndStatusValid(in PrecompleteInput) bool {
	phase, status := in.Identity.Phase, in.Identity.Status
	switch {
	case phase == models.PhaseOtpVerification && status == models.StatusVerificationPending:
		return true
	case phase == models.PhasePresenceCheck && status == models.StatusAccepted:
		return !in.OtpVerificationEnabled
	case phase == models.PhaseClientEvaluation && status == models.StatusAccepted:
		return !in.OtpVerificationEnabled && !in.PresenceCheckEnabled
	default:
		return false
	}
}

var physicalDocumentTypes = []models.DocumentType{
	models.DocumentTypeIDCard,
	models.DocumentTypePassport,
	models.DocumentTypeDrivingLicense,
}

// RequiredDocumentTypesPresent validates presence of all required accepted
// documents: a primary document (both sides of an ID card, or a travel
// passport) plus a distinct second document (e.g. a driving licence).
func RequiredDocumentTypesPresent(documents []*models.DocumentVerification) bool {
	var accepted []*models.DocumentVerification
	for _, doc := range documents {
		if doc.Status == models.DocumentAccepted {
			accepted = append(accepted, doc)
		}
	}

	if !twoDistinctDocumentsPresent(accepted) {
		return false
	}
	if !containsPrimaryDocument(accepted) {
		return false
	}
	return containsSecondDocument(accepted)
}

func twoDistinctDocumentsPresent(documents []*models.DocumentVerification) bool {
	types := make(map[models.DocumentType]bool)
	for _, doc := range documents {
		for _, physical := range physicalDocumentTypes {
			if doc.Type == physical {
				types[doc.Type] = true
			}
		}
	}
	return len(types) == 2
}

func containsPrimaryDocument(documents []*models.DocumentVerification) bool {
	return containsBothSidesOfID(documents) || containsType(documents, models.DocumentTypePassport)
}

func containsSecondDocument(documents []*models.DocumentVerification) bool {
	return containsType(documents, models.DocumentTypeDrivingLicense) ||
		containsType(documents, models.DocumentTypePassport) ||
		containsBothSidesOfID(documents)
}

func containsBothSidesOfID(documents []*models.DocumentVerification) bool {
	sides := make(map[models.CardSide]bool)
	for _, doc := range documents {
		if doc.Type == models.DocumentTypeIDCard {
			sides[doc.Side] = true
		}
	}
	return len(sides) == 2
}

func containsType(documents []*models.DocumentVerification, docType models.DocumentType) bool {
	for _, doc := range documents {
		if doc.Type == docType {
			return true
		}
	}
	return false
}

// documentStatusesProcessed lists the terminal processing outcomes the
// precomplete check evaluates.
var documentStatusesProcessed = map[models.DocumentStatus]bool{
	models.DocumentAccepted: true,
	models.DocumentRejected: true,
	models.DocumentFailed:   true,
}

// PrecompleteCheck loads the precomplete snapshot from persisted state and
// evaluates it.
type PrecompleteCheck struct {
	documents  store.DocumentStore
	otps       store.OtpStore
	scaResults store.ScaResultStore
	activation ActivationClient
	cfg        config.IdentityVerification
}

func NewPrecompleteCheck(
	documents store.DocumentStore,
	otps store.OtpStore,
	scaResults store.ScaResultStore,
	activation ActivationClient,
	cfg config.IdentityVerification,
) *PrecompleteCheck {
	return &PrecompleteCheck{
		documents:  documents,
		otps:       otps,
		scaResults: scaResults,
		activation: activation,
		cfg:        cfg,
	}
}

// Evaluate gathers the snapshot for the identity verification and runs the
// precomplete decision.
func (c *PrecompleteCheck) Evaluate(ctx context.Context, identity *models.IdentityVerification) (PrecompleteResult, error) {
	documents, err := c.documents.ListUsedForVerification(ctx, identity.ID)
	if err != nil {
		return PrecompleteResult{}, err
	}
	var processed []*models.DocumentVerification
	for _, doc := range documents {
		if documentStatusesProcessed[doc.Status] {
			processed = append(processed, doc)
		}
	}

	userOtp, err := c.findOtp(ctx, identity.ProcessID, models.OtpTypeUserVerification)
	if err != nil {
		return PrecompleteResult{}, err
	}
	activationOtp, err := c.findOtp(ctx, identity.ProcessID, models.OtpTypeActivation)
	if err != nil {
		return PrecompleteResult{}, err
	}

	scaResult, err := c.scaResults.FindLatestByIdentityVerification(ctx, identity.ID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return PrecompleteResult{}, err
	}

	activationStatus, err := c.activation.FetchActivationStatus(ctx, identity.ActivationID)
	if err != nil {
		return PrecompleteResult{}, err
	}

	return EvaluatePrecomplete(PrecompleteInput{
		Identity:               identity,
		Documents:              processed,
		UserVerificationOtp:    userOtp,
		ActivationOtp:          activationOtp,
		ActivationStatus:       activationStatus,
		ScaResult:              scaResult,
		PresenceCheckEnabled:   c.cfg.PresenceCheckEnabled,
		OtpVerificationEnabled: c.cfg.OtpVerificationEnabled,
	}), nil
}

func (c *PrecompleteCheck) findOtp(ctx context.Context, processID string, otpType models.OtpType) (*models.Otp, error) {
	otp, err := c.otps.FindNewestByProcessAndType(ctx, processID, otpType)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return otp, nil
}
