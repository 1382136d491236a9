package batch

import (
	"context"
	"log/slog"
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
)

// Services bundles everything the standard job set needs.
type Services struct {
	Stores      store.Stores
	Identity    *service.IdentityService
	Documents   *service.DocumentService
	Verify      *service.VerificationService
	Evaluations *service.EvaluationService
	Cleaning    *service.CleaningService
}

// StandardJobs builds the reconciliation jobs of the onboarding workflow.
func StandardJobs(cfg *config.Config, deps Services, logger *slog.Logger) []Job {
	return []Job{
		{
			Name:     "document-submit-check",
			Interval: cfg.Batch.SubmitCheckInterval,
			Run:      documentSubmitCheck(cfg, deps, logger),
		},
		{
			Name:     "document-verification-check",
			Interval: cfg.Batch.VerificationCheckInterval,
			Run:      documentVerificationCheck(deps, logger),
		},
		{
			Name:     "state-machine-sync",
			Interval: cfg.Batch.StateMachineSyncInterval,
			Run:      stateMachineSync(deps, logger),
		},
		{
			Name:     "client-evaluation",
			Interval: cfg.Batch.ClientEvaluationInterval,
			Run:      clientEvaluation(deps, logger),
		},
		{
			Name:     "cleaning",
			Interval: cfg.Batch.CleaningInterval,
			Run:      cleaning(deps, logger),
		},
	}
}

// documentSubmitCheck polls the provider for documents whose submission is
// still being processed at the vendor and reclassifies finished ones.
func documentSubmitCheck(cfg *config.Config, deps Services, logger *slog.Logger) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		older := time.Now().Add(-cfg.Batch.SubmitCheckOlderThan)
		documents, err := deps.Stores.Documents.ListByStatusCreatedBefore(ctx, models.DocumentUploadInProgress, older)
		if err != nil {
			return 0, err
		}
		var changed int64
		for _, doc := range documents {
			identity, err := deps.Stores.IdentityVerifications.FindByID(ctx, doc.IdentityVerificationID)
			if err != nil {
				logger.WarnContext(ctx, "submit check skipped document", "document_id", doc.ID, "error", err)
				continue
			}
			owner := models.NewOwnerID(identity.UserID, identity.ActivationID)
			if err := deps.Documents.CheckDocumentSubmit(ctx, owner, identity, doc); err != nil {
				logger.WarnContext(ctx, "submit check failed for document", "document_id", doc.ID, "error", err)
				continue
			}
			if doc.Status != models.DocumentUploadInProgress {
				changed++
			}
		}
		return changed, nil
	}
}

// documentVerificationCheck polls provider verification results for
// identity verifications mid document verification and settles finished
// rounds.
func documentVerificationCheck(deps Services, logger *slog.Logger) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		identities, err := deps.Stores.IdentityVerifications.ListByPhaseAndStatus(ctx, models.PhaseDocumentVerification, models.StatusInProgress)
		if err != nil {
			return 0, err
		}
		var changed int64
		for _, identity := range identities {
			owner := models.NewOwnerID(identity.UserID, identity.ActivationID)
			if err := deps.Verify.CheckVerificationResult(ctx, owner, identity); err != nil {
				logger.WarnContext(ctx, "verification check failed", "identity_verification_id", identity.ID, "error", err)
				continue
			}
			if identity.Status != models.StatusInProgress {
				changed++
			}
		}
		return changed, nil
	}
}

// stateMachineSyncStates lists the persisted states the sync job re-drives.
var stateMachineSyncStates = []struct {
	phase  models.Phase
	status models.Status
}{
	{models.PhaseDocumentUpload, models.StatusVerificationPending},
	{models.PhaseDocumentVerification, models.StatusInProgress},
	{models.PhaseDocumentVerification, models.StatusAccepted},
	{models.PhaseDocumentVerificationFinal, models.StatusAccepted},
	{models.PhasePresenceCheck, models.StatusVerificationPending},
	{models.PhaseOtpVerification, models.StatusVerificationPending},
}

// stateMachineSync fires the next-state event for identity verifications
// sitting in states that can progress without user input.
func stateMachineSync(deps Services, logger *slog.Logger) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		var changed int64
		for _, st := range stateMachineSyncStates {
			identities, err := deps.Stores.IdentityVerifications.ListByPhaseAndStatus(ctx, st.phase, st.status)
			if err != nil {
				return changed, err
			}
			for _, identity := range identities {
				phase, status := identity.Phase, identity.Status
				if err := deps.Identity.Advance(ctx, identity); err != nil {
					logger.WarnContext(ctx, "state machine sync failed", "identity_verification_id", identity.ID, "error", err)
					continue
				}
				if identity.Phase != phase || identity.Status != status {
					changed++
				}
			}
		}
		return changed, nil
	}
}

// clientEvaluation runs the tenant system evaluation for identity
// verifications in the evaluation phase and advances settled ones.
func clientEvaluation(deps Services, logger *slog.Logger) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		identities, err := deps.Stores.IdentityVerifications.ListByPhaseAndStatus(ctx, models.PhaseClientEvaluation, models.StatusInProgress)
		if err != nil {
			return 0, err
		}
		var changed int64
		for _, identity := range identities {
			owner := models.NewOwnerID(identity.UserID, identity.ActivationID)
			if err := deps.Evaluations.ProcessClientEvaluation(ctx, owner, identity); err != nil {
				logger.WarnContext(ctx, "client evaluation failed", "identity_verification_id", identity.ID, "error", err)
				continue
			}
			if identity.Status == models.StatusInProgress {
				continue
			}
			changed++
			if err := deps.Identity.Advance(ctx, identity); err != nil {
				logger.WarnContext(ctx, "advancing after client evaluation failed", "identity_verification_id", identity.ID, "error", err)
			}
		}
		return changed, nil
	}
}

// cleaning expires stale entities and drops retained document payloads.
func cleaning(deps Services, logger *slog.Logger) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		passes := []struct {
			name string
			run  func(ctx context.Context) (int64, error)
		}{
			{"process-activations", deps.Cleaning.TerminateExpiredProcessActivations},
			{"process-verifications", deps.Cleaning.TerminateExpiredProcessVerifications},
			{"processes", deps.Cleaning.TerminateExpiredProcesses},
			{"identity-verifications", deps.Cleaning.TerminateExpiredIdentityVerifications},
			{"documents", deps.Cleaning.TerminateExpiredDocumentVerifications},
			{"otps", deps.Cleaning.TerminateExpiredOtps},
			{"payloads", deps.Cleaning.CleanupDocumentPayloads},
		}
		var changed int64
		for _, pass := range passes {
			n, err := pass.run(ctx)
			changed += n
			if err != nil {
				logger.WarnContext(ctx, "cleaning pass failed", "pass", pass.name, "error", err)
			}
		}
		return changed, nil
	}
}
