package models

// ProcessStatus is the lifecycle status of an onboarding process.
type ProcessStatus string

const (
	ProcessActivationInProgress   ProcessStatus = "ACTIVATION_IN_PROGRESS"
	ProcessVerificationInProgress ProcessStatus = "VERIFICATION_IN_PROGRESS"
	ProcessFinished               ProcessStatus = "FINISHED"
	ProcessFailed                 ProcessStatus = "FAILED"
)

// Phase is the coarse-grained stage of an identity verification.
type Phase string

const (
	PhaseDocumentUpload            Phase = "DOCUMENT_UPLOAD"
	PhaseDocumentVerification      Phase = "DOCUMENT_VERIFICATION"
	PhaseDocumentVerificationFinal Phase = "DOCUMENT_VERIFICATION_FINAL"
	PhaseClientEvaluation          Phase = "CLIENT_EVALUATION"
	PhasePresenceCheck             Phase = "PRESENCE_CHECK"
	PhaseOtpVerification           Phase = "OTP_VERIFICATION"
	PhaseCompleted                 Phase = "COMPLETED"
)

// Status is the fine-grained state within a phase.
type Status string

const (
	StatusNotInitialized      Status = "NOT_INITIALIZED"
	StatusInProgress          Status = "IN_PROGRESS"
	StatusVerificationPending Status = "VERIFICATION_PENDING"
	StatusAccepted            Status = "ACCEPTED"
	StatusRejected            Status = "REJECTED"
	StatusFailed              Status = "FAILED"
)

// DocumentType classifies a submitted document.
type DocumentType string

const (
	DocumentTypeIDCard         DocumentType = "ID_CARD"
	DocumentTypePassport       DocumentType = "PASSPORT"
	DocumentTypeDrivingLicense DocumentType = "DRIVING_LICENSE"
	DocumentTypeSelfiePhoto    DocumentType = "SELFIE_PHOTO"
	DocumentTypeSelfieVideo    DocumentType = "SELFIE_VIDEO"
	DocumentTypeUnknown        DocumentType = "UNKNOWN"
)

// TwoSided reports whether the document type carries a front and a back side.
func (t DocumentType) TwoSided() bool {
	return t == DocumentTypeIDCard
}

// PreferredPhotoSources orders document types by preference when selecting
// the person photo for the presence check.
var PreferredPhotoSources = []DocumentType{
	DocumentTypeIDCard,
	DocumentTypePassport,
	DocumentTypeDrivingLicense,
}

// CardSide distinguishes the two faces of a two-sided document.
type CardSide string

const (
	CardSideFront CardSide = "FRONT"
	CardSideBack  CardSide = "BACK"
)

// DocumentStatus is the lifecycle status of a document verification.
type DocumentStatus string

const (
	DocumentUploadInProgress       DocumentStatus = "UPLOAD_IN_PROGRESS"
	DocumentVerificationPending    DocumentStatus = "VERIFICATION_PENDING"
	DocumentVerificationInProgress DocumentStatus = "VERIFICATION_IN_PROGRESS"
	DocumentAccepted               DocumentStatus = "ACCEPTED"
	DocumentRejected               DocumentStatus = "REJECTED"
	DocumentFailed                 DocumentStatus = "FAILED"
	DocumentDisposed               DocumentStatus = "DISPOSED"
)

// DocumentStatusesNotFinished lists every non-terminal document status,
// used by expiration scans.
var DocumentStatusesNotFinished = []DocumentStatus{
	DocumentUploadInProgress,
	DocumentVerificationPending,
	DocumentVerificationInProgress,
}

// ProcessingPhase distinguishes the provider round a document result was
// recorded for.
type ProcessingPhase string

const (
	ProcessingPhaseUpload       ProcessingPhase = "UPLOAD"
	ProcessingPhaseVerification ProcessingPhase = "VERIFICATION"
)

// OtpType distinguishes activation OTPs from user verification OTPs.
type OtpType string

const (
	OtpTypeActivation       OtpType = "ACTIVATION"
	OtpTypeUserVerification OtpType = "USER_VERIFICATION"
)

// OtpStatus is the lifecycle status of an OTP code.
type OtpStatus string

const (
	OtpActive   OtpStatus = "ACTIVE"
	OtpVerified OtpStatus = "VERIFIED"
	OtpFailed   OtpStatus = "FAILED"
)

// ScaOutcome records the result of one strong-customer-authentication step.
type ScaOutcome string

const (
	ScaSuccess ScaOutcome = "SUCCESS"
	ScaFailed  ScaOutcome = "FAILED"
)

// ErrorOrigin names the workflow step that produced an error or rejection.
type ErrorOrigin string

const (
	OriginDocumentVerification ErrorOrigin = "DOCUMENT_VERIFICATION"
	OriginPresenceCheck        ErrorOrigin = "PRESENCE_CHECK"
	OriginOtpVerification      ErrorOrigin = "OTP_VERIFICATION"
	OriginClientEvaluation     ErrorOrigin = "CLIENT_EVALUATION"
	OriginProcessLimitCheck    ErrorOrigin = "PROCESS_LIMIT_CHECK"
	OriginFinalValidation      ErrorOrigin = "FINAL_VALIDATION"
	OriginUserRequest          ErrorOrigin = "USER_REQUEST"
	OriginCleanup              ErrorOrigin = "CLEANUP"
)

// ActivationStatus mirrors the activation state reported by the external
// auth server.
type ActivationStatus string

const (
	ActivationCreated       ActivationStatus = "CREATED"
	ActivationPendingCommit ActivationStatus = "PENDING_COMMIT"
	ActivationActive        ActivationStatus = "ACTIVE"
	ActivationBlocked       ActivationStatus = "BLOCKED"
	ActivationRemoved       ActivationStatus = "REMOVED"
)

// Canonical error details recorded on terminated entities.
const (
	ErrorMaxFailedAttemptsOtp              = "maxFailedAttempts"
	ErrorMaxFailedAttemptsDocumentUpload   = "maxFailedAttemptsDocumentUpload"
	ErrorMaxFailedAttemptsClientEvaluation = "maxFailedAttemptsClientEvaluation"
	ErrorMaxProcessErrorScoreExceeded      = "maxProcessErrorScoreExceeded"
	ErrorProcessExpiredActivation          = "expiredProcessActivation"
	ErrorProcessExpiredVerification        = "expiredProcessOnboarding"
	ErrorProcessExpired                    = "expiredProcess"
	ErrorDocumentVerificationExpired       = "expired"
	ErrorOtpCanceled                       = "canceled"
	ErrorPresenceCheckRejected             = "presenceCheckRejected"
	ErrorDocumentVerificationRejected      = "documentVerificationRejected"
)
