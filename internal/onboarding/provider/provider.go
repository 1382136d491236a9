// Package provider defines the capability contracts for pluggable
// verification vendors. Adapters are stateless per call; all workflow state
// lives in the entities.
package provider

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"onboard/internal/onboarding/models"
)

// SubmitResult is the provider's answer for one submitted document.
// ErrorDetail signals a hard provider failure; RejectReason a content
// rejection. A correct adapter never sets both.
type SubmitResult struct {
	DocumentID       string
	UploadID         string
	ExtractedData    string
	ExtractedPhotoID string
	RejectReason     string
	ErrorDetail      string
}

// VerificationStatus is the provider-side status of a cross-document
// verification.
type VerificationStatus string

const (
	VerificationAccepted   VerificationStatus = "ACCEPTED"
	VerificationRejected   VerificationStatus = "REJECTED"
	VerificationFailed     VerificationStatus = "FAILED"
	VerificationInProgress VerificationStatus = "IN_PROGRESS"
)

// VerificationResult is the outcome of verifying a set of uploads.
type VerificationResult struct {
	VerificationID string
	Status         VerificationStatus
	Results        []SubmitResult
	Score          int
	RejectReason   string
	ErrorDetail    string
}

// PresenceCheckStatus is the provider-side status of a liveness session.
type PresenceCheckStatus string

const (
	PresenceCheckAccepted   PresenceCheckStatus = "ACCEPTED"
	PresenceCheckRejected   PresenceCheckStatus = "REJECTED"
	PresenceCheckFailed     PresenceCheckStatus = "FAILED"
	PresenceCheckInProgress PresenceCheckStatus = "IN_PROGRESS"
)

// PresenceCheckResult carries the outcome of one liveness session, with the
// captured selfie photo when accepted.
type PresenceCheckResult struct {
	Status       PresenceCheckStatus
	Photo        *models.Image
	RejectReason string
	ErrorDetail  string
}

// SessionInfo is an opaque vendor session blob, persisted on the identity
// verification between calls.
type SessionInfo struct {
	Attributes map[string]any `json:"sessionAttributes"`
}

// SendOtpRequest asks the tenant system to deliver an OTP code to the user.
type SendOtpRequest struct {
	ProcessID string
	UserID    string
	OtpCode   string
	Resend    bool
	Language  string
}

// EvaluateClientRequest asks the tenant system to evaluate the verified
// client data.
type EvaluateClientRequest struct {
	ProcessID              string
	UserID                 string
	IdentityVerificationID string
	VerificationID         string
}

// EvaluateClientResponse is the tenant system's verdict.
type EvaluateClientResponse struct {
	Accepted      bool
	ErrorOccurred bool
	ErrorDetail   string
}

// DocumentProvider verifies identity documents.
type DocumentProvider interface {
	// SubmitDocuments uploads the documents and returns one result per
	// document. Extraction may still be running; a result without extracted
	// data is polled later via CheckDocumentUpload.
	SubmitDocuments(ctx context.Context, owner models.OwnerID, documents []models.SubmittedDocument) ([]SubmitResult, error)
	// CheckDocumentUpload is an idempotent poll for an async submission.
	CheckDocumentUpload(ctx context.Context, owner models.OwnerID, document models.DocumentVerification) (SubmitResult, error)
	// VerifyDocuments runs the cross-document verification over uploads.
	VerifyDocuments(ctx context.Context, owner models.OwnerID, uploadIDs []string) (VerificationResult, error)
	// GetVerificationResult polls an async verification.
	GetVerificationResult(ctx context.Context, owner models.OwnerID, verificationID string) (VerificationResult, error)
	// GetPhoto fetches a person photo extracted from a document.
	GetPhoto(ctx context.Context, photoID string) (models.Image, error)
	// CleanupDocuments deletes uploaded documents at the vendor.
	CleanupDocuments(ctx context.Context, owner models.OwnerID, uploadIDs []string) error
	// ParseRejectionReasons extracts human-readable reasons from a result.
	ParseRejectionReasons(result VerificationResult) ([]string, error)
}

// PresenceProvider runs liveness checks.
type PresenceProvider interface {
	// InitPresenceCheck uploads the reference person photo.
	InitPresenceCheck(ctx context.Context, owner models.OwnerID, photo models.Image) error
	// StartPresenceCheck opens a session and returns its opaque info.
	StartPresenceCheck(ctx context.Context, owner models.OwnerID) (SessionInfo, error)
	// GetResult fetches the session outcome.
	GetResult(ctx context.Context, owner models.OwnerID, session SessionInfo) (PresenceCheckResult, error)
	// CleanupIdentityData removes the person's data at the vendor.
	CleanupIdentityData(ctx context.Context, owner models.OwnerID) error
}

// OnboardingAdapter integrates the tenant system: OTP delivery and final
// client evaluation.
type OnboardingAdapter interface {
	SendOtpCode(ctx context.Context, req SendOtpRequest) error
	EvaluateClient(ctx context.Context, req EvaluateClientRequest) (EvaluateClientResponse, error)
}
