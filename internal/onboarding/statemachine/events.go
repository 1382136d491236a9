package statemachine

import "onboard/internal/onboarding/models"

// Event triggers an external transition.
type Event string

const (
	EventIdentityVerificationInit Event = "IDENTITY_VERIFICATION_INIT"
	EventNextState                Event = "EVENT_NEXT_STATE"
	EventPresenceCheckInit        Event = "PRESENCE_CHECK_INIT"
	EventPresenceCheckSubmitted   Event = "PRESENCE_CHECK_SUBMITTED"
	EventOtpVerificationResend    Event = "OTP_VERIFICATION_RESEND"
)

// EventContext carries the acting owner and the entity being driven through
// the machine. Identity is nil only for the init event; the init action
// fills it in.
type EventContext struct {
	Owner     models.OwnerID
	ProcessID string
	Identity  *models.IdentityVerification
}
