// Package service orchestrates the identity onboarding workflow. It sits
// between the transport layer and the entity stores, owns all transactional
// boundaries, and drives the state machine through its dependency surface.
package service

import (
	"context"

	"onboard/internal/onboarding/models"
	"onboard/pkg/platform/audit"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Auditor records audit events. The publisher implementation derives the
// category from the action and fills in a missing timestamp.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ActivationClient reports the credential activation state from the
// external auth server.
type ActivationClient interface {
	FetchActivationStatus(ctx context.Context, activationID string) (models.ActivationStatus, error)
}

func auditEvent(action audit.AuditEvent, owner models.OwnerID, processID string, identity *models.IdentityVerification) audit.Event {
	event := audit.Event{
		UserID:    owner.SecuredUserID(),
		ProcessID: processID,
		Action:    string(action),
	}
	if identity != nil {
		event.IdentityVerificationID = identity.ID
	}
	return event
}
