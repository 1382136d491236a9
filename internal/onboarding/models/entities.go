package models

import "time"

// NoDataExtracted marks a provider submit result that carries no extracted
// data yet, meaning the upload is still being processed at the vendor.
const NoDataExtracted = "{}"

// Process is a single onboarding attempt for a user. At most one active
// process per user is a logical invariant enforced by store queries.
type Process struct {
	ID           string
	UserID       string
	ActivationID string
	Status       ProcessStatus
	ErrorScore   int
	ErrorDetail  string
	ErrorOrigin  ErrorOrigin
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
	FailedAt     *time.Time
}

// IdentityVerification tracks one pass of a user through the verification
// workflow. The (Phase, Status) pair must always be a member of the valid
// set enumerated by the state machine.
type IdentityVerification struct {
	ID           string
	ProcessID    string
	ActivationID string
	UserID       string
	Phase        Phase
	Status       Status
	ErrorDetail  string
	ErrorOrigin  ErrorOrigin
	RejectReason string
	RejectOrigin ErrorOrigin
	SessionInfo  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	VerifiedAt   *time.Time
	FailedAt     *time.Time
}

// DocumentVerification is one submitted document. Resubmission never mutates
// a superseded row; it creates a new one and marks the original DISPOSED,
// forming an append-only lineage via OriginalDocumentID.
type DocumentVerification struct {
	ID                     string
	IdentityVerificationID string
	ActivationID           string
	Type                   DocumentType
	Side                   CardSide
	Status                 DocumentStatus
	Filename               string
	UploadID               string
	VerificationID         string
	PhotoID                string
	OtherSideID            string
	OriginalDocumentID     string
	UsedForVerification    bool
	ErrorDetail            string
	ErrorOrigin            ErrorOrigin
	RejectReason           string
	RejectOrigin           ErrorOrigin
	CreatedAt              time.Time
	UpdatedAt              time.Time
	UploadedAt             *time.Time
	VerifiedAt             *time.Time
	DisposedAt             *time.Time
}

// DocumentResult records one provider round-trip for a document. Multiple
// results may exist per document; the latest by CreatedAt wins.
type DocumentResult struct {
	ID                     string
	DocumentVerificationID string
	Phase                  ProcessingPhase
	ExtractedData          string
	RejectReason           string
	ErrorDetail            string
	ErrorOrigin            ErrorOrigin
	CreatedAt              time.Time
}

// DocumentPayload holds the raw uploaded bytes until the document reaches
// the provider; the blob is deleted after a successful submit or past the
// retention window.
type DocumentPayload struct {
	ID           string
	ActivationID string
	Filename     string
	Data         []byte
	CreatedAt    time.Time
}

// Otp is a one-time code bound to a process. At most one OTP is current per
// (process, type), determined by max CreatedAt.
type Otp struct {
	ID             string
	ProcessID      string
	Type           OtpType
	CodeHash       string
	Status         OtpStatus
	FailedAttempts int
	ErrorDetail    string
	ErrorOrigin    ErrorOrigin
	CreatedAt      time.Time
	UpdatedAt      time.Time
	VerifiedAt     *time.Time
	FailedAt       *time.Time
}

// ScaResult records one strong-customer-authentication attempt consisting of
// a presence check and an OTP verification. The latest row is authoritative.
type ScaResult struct {
	ID                     string
	IdentityVerificationID string
	ProcessID              string
	PresenceCheckResult    ScaOutcome
	OtpResult              ScaOutcome
	Result                 ScaOutcome
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SubmittedDocument is one document of a submit request.
type SubmittedDocument struct {
	DocumentID         string
	Type               DocumentType
	Side               CardSide
	Filename           string
	Data               []byte
	PayloadID          string
	Resubmit           bool
	OriginalDocumentID string
}

// Image is an opaque photo blob passed between providers.
type Image struct {
	Filename string
	Data     []byte
}
