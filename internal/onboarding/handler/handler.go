// Package handler exposes the onboarding workflow over HTTP. Handlers stay
// thin: decode, resolve the authenticated owner, delegate to the services.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/internal/transport/http/shared"
	dErrors "onboard/pkg/domain-errors"
)

// ProcessService defines the process lifecycle operations.
type ProcessService interface {
	StartOnboarding(ctx context.Context, userID, activationID string) (*models.Process, error)
	ActivationCommitted(ctx context.Context, processID string) error
	FindProcess(ctx context.Context, owner models.OwnerID) (*models.Process, error)
}

// IdentityService defines the identity verification workflow operations.
type IdentityService interface {
	InitIdentityVerification(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error)
	Status(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error)
	SubmitDocuments(ctx context.Context, owner models.OwnerID, submitted []models.SubmittedDocument) ([]*models.DocumentVerification, error)
	InitPresenceCheckFlow(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error)
	SubmitPresenceCheckFlow(ctx context.Context, owner models.OwnerID) (*models.IdentityVerification, error)
	ResendOtpFlow(ctx context.Context, owner models.OwnerID) error
	VerifyOtpFlow(ctx context.Context, owner models.OwnerID, code string) (service.OtpVerifyResult, error)
	Cleanup(ctx context.Context, owner models.OwnerID) error
}

// DocumentService defines the payload upload operation.
type DocumentService interface {
	UploadDocument(ctx context.Context, owner models.OwnerID, filename string, data []byte) (*models.DocumentPayload, error)
}

// Handler handles the onboarding endpoints.
type Handler struct {
	logger       *slog.Logger
	processes    ProcessService
	identity     IdentityService
	documents    DocumentService
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new onboarding Handler.
func New(
	processes ProcessService,
	identity IdentityService,
	documents DocumentService,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		processes:    processes,
		identity:     identity,
		documents:    documents,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the onboarding routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Post("/api/onboarding/start", h.handleStartOnboarding)
	router.Post("/api/onboarding/activation/commit", h.handleActivationCommit)
	router.Get("/api/onboarding/status", h.handleProcessStatus)

	router.Post("/api/identity/init", h.handleInitIdentityVerification)
	router.Get("/api/identity/status", h.handleIdentityStatus)
	router.Post("/api/identity/document/upload", h.handleDocumentUpload)
	router.Post("/api/identity/document/submit", h.handleDocumentSubmit)
	router.Post("/api/identity/presence-check/init", h.handlePresenceCheckInit)
	router.Post("/api/identity/presence-check/submit", h.handlePresenceCheckSubmit)
	router.Post("/api/identity/otp/resend", h.handleOtpResend)
	router.Post("/api/identity/otp/verify", h.handleOtpVerify)
	router.Post("/api/identity/cleanup", h.handleCleanup)

	r.Mount("/", router)
}

// owner resolves the authenticated owner from the request context. The auth
// middleware guarantees both claims on every route registered above.
func (h *Handler) owner(ctx context.Context) (models.OwnerID, error) {
	userID := middleware.GetUserID(ctx)
	activationID := middleware.GetActivationID(ctx)
	if userID == "" || activationID == "" {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		return models.OwnerID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return models.NewOwnerID(userID, activationID), nil
}

func (h *Handler) handleStartOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	process, err := h.processes.StartOnboarding(ctx, owner.UserID, owner.ActivationID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to start onboarding")
		return
	}
	shared.WriteJSON(w, http.StatusOK, ProcessResponse{
		ProcessID: process.ID,
		Status:    string(process.Status),
	})
}

func (h *Handler) handleActivationCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	process, err := h.processes.FindProcess(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to find onboarding process")
		return
	}
	if err := h.processes.ActivationCommitted(ctx, process.ID); err != nil {
		h.writeServiceError(ctx, w, err, "failed to commit activation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	process, err := h.processes.FindProcess(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to find onboarding process")
		return
	}
	shared.WriteJSON(w, http.StatusOK, ProcessResponse{
		ProcessID: process.ID,
		Status:    string(process.Status),
	})
}

func (h *Handler) handleInitIdentityVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	identity, err := h.identity.InitIdentityVerification(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to init identity verification")
		return
	}
	shared.WriteJSON(w, http.StatusOK, identityStatusResponse(identity))
}

func (h *Handler) handleIdentityStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	identity, err := h.identity.Status(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to read identity verification status")
		return
	}
	shared.WriteJSON(w, http.StatusOK, identityStatusResponse(identity))
}

func (h *Handler) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req DocumentUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid document upload request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Data) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document data is required"))
		return
	}

	payload, err := h.documents.UploadDocument(ctx, owner, req.Filename, req.Data)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to upload document")
		return
	}
	shared.WriteJSON(w, http.StatusOK, DocumentUploadResponse{
		ID:       payload.ID,
		Filename: payload.Filename,
	})
}

func (h *Handler) handleDocumentSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req DocumentSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid document submit request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Documents) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "documents are required"))
		return
	}

	submitted := make([]models.SubmittedDocument, 0, len(req.Documents))
	for _, doc := range req.Documents {
		submitted = append(submitted, models.SubmittedDocument{
			Type:               models.DocumentType(doc.Type),
			Side:               models.CardSide(doc.Side),
			Filename:           doc.Filename,
			Data:               doc.Data,
			PayloadID:          doc.UploadID,
			Resubmit:           doc.Resubmit,
			OriginalDocumentID: doc.OriginalDocumentID,
		})
	}

	documents, err := h.identity.SubmitDocuments(ctx, owner, submitted)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to submit documents")
		return
	}

	resp := DocumentSubmitResponse{Documents: make([]DocumentMetadata, 0, len(documents))}
	for _, doc := range documents {
		resp.Documents = append(resp.Documents, documentMetadata(doc))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePresenceCheckInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	identity, err := h.identity.InitPresenceCheckFlow(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to init presence check")
		return
	}

	resp := PresenceCheckResponse{}
	if identity.SessionInfo != "" {
		resp.SessionAttributes = json.RawMessage(identity.SessionInfo)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePresenceCheckSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if _, err := h.identity.SubmitPresenceCheckFlow(ctx, owner); err != nil {
		h.writeServiceError(ctx, w, err, "failed to submit presence check")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOtpResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.identity.ResendOtpFlow(ctx, owner); err != nil {
		h.writeServiceError(ctx, w, err, "failed to resend otp")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOtpVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req OtpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid otp verify request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.OtpCode == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "otp code is required"))
		return
	}

	result, err := h.identity.VerifyOtpFlow(ctx, owner, req.OtpCode)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to verify otp")
		return
	}
	shared.WriteJSON(w, http.StatusOK, OtpVerifyResponse{
		ProcessID:         result.ProcessID,
		Verified:          result.Verified,
		Expired:           result.Expired,
		RemainingAttempts: result.RemainingAttempts,
	})
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.owner(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.identity.Cleanup(ctx, owner); err != nil {
		h.writeServiceError(ctx, w, err, "failed to clean up identity verification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError logs and renders a service failure. Client-caused codes
// keep their message; everything else collapses to a generic internal error.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	requestID := middleware.GetRequestID(ctx)
	code := dErrors.CodeOf(err)
	if shared.ToHTTPStatus(code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestID,
		"error", err.Error(),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
}

func identityStatusResponse(identity *models.IdentityVerification) IdentityStatusResponse {
	return IdentityStatusResponse{
		ID:     identity.ID,
		Phase:  string(identity.Phase),
		Status: string(identity.Status),
	}
}

func documentMetadata(doc *models.DocumentVerification) DocumentMetadata {
	return DocumentMetadata{
		ID:           doc.ID,
		Type:         string(doc.Type),
		Side:         string(doc.Side),
		Status:       string(doc.Status),
		Filename:     doc.Filename,
		ErrorDetail:  doc.ErrorDetail,
		RejectReason: doc.RejectReason,
	}
}
