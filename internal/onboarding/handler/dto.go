package handler

import "encoding/json"

// ProcessResponse reports the onboarding process state.
type ProcessResponse struct {
	ProcessID string `json:"processId"`
	Status    string `json:"status"`
}

// IdentityStatusResponse reports the identity verification state.
type IdentityStatusResponse struct {
	ID     string `json:"id"`
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

// DocumentUploadRequest carries one raw document blob. Data is base64 in
// transit, decoded by encoding/json.
type DocumentUploadRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// DocumentUploadResponse returns the stored payload id for a later submit.
type DocumentUploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// SubmittedDocumentRequest is one document of a submit request. Either
// UploadID references a previously uploaded payload or Data carries the
// bytes inline.
type SubmittedDocumentRequest struct {
	Type               string `json:"type"`
	Side               string `json:"side,omitempty"`
	Filename           string `json:"filename"`
	Data               []byte `json:"data,omitempty"`
	UploadID           string `json:"uploadId,omitempty"`
	Resubmit           bool   `json:"resubmit,omitempty"`
	OriginalDocumentID string `json:"originalDocumentId,omitempty"`
}

// DocumentSubmitRequest submits one or more documents for verification.
type DocumentSubmitRequest struct {
	Documents []SubmittedDocumentRequest `json:"documents"`
}

// DocumentMetadata describes one document verification without the payload.
type DocumentMetadata struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Side         string `json:"side,omitempty"`
	Status       string `json:"status"`
	Filename     string `json:"filename"`
	ErrorDetail  string `json:"errorDetail,omitempty"`
	RejectReason string `json:"rejectReason,omitempty"`
}

// DocumentSubmitResponse reports the created document verifications.
type DocumentSubmitResponse struct {
	Documents []DocumentMetadata `json:"documents"`
}

// PresenceCheckResponse returns the provider session attributes the client
// needs to run the liveness check.
type PresenceCheckResponse struct {
	SessionAttributes json.RawMessage `json:"sessionAttributes,omitempty"`
}

// OtpVerifyRequest carries the user-entered OTP code.
type OtpVerifyRequest struct {
	OtpCode string `json:"otpCode"`
}

// OtpVerifyResponse reports the OTP verification outcome.
type OtpVerifyResponse struct {
	ProcessID         string `json:"processId"`
	Verified          bool   `json:"verified"`
	Expired           bool   `json:"expired"`
	RemainingAttempts int    `json:"remainingAttempts"`
}
