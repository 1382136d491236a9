package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: process lifecycle, document submission, verification outcomes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: OTP failures, limit violations, presence check rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: state transitions, OTP resends, batch cleanup runs.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID carries the secured (hashed) user identifier, never the raw one.
	UserID                 string
	ProcessID              string
	IdentityVerificationID string
	// Subject names the entity the action applies to, such as a document or
	// OTP id, when it differs from the identity verification.
	Subject string
	Action  string
	// Detail holds the outcome or error detail in canonical form.
	Detail    string
	RequestID string
}

type AuditEvent string

const (
	// Process events
	EventProcessStarted  AuditEvent = "process_started"
	EventProcessFinished AuditEvent = "process_finished"
	EventProcessFailed   AuditEvent = "process_failed"

	// Identity verification events
	EventVerificationInitialized AuditEvent = "identity_verification_initialized"
	EventVerificationTerminated  AuditEvent = "identity_verification_terminated"
	EventStateChanged            AuditEvent = "state_changed"

	// Document events
	EventDocumentSubmitted            AuditEvent = "document_submitted"
	EventDocumentDisposed             AuditEvent = "document_disposed"
	EventDocumentVerificationStarted  AuditEvent = "document_verification_started"
	EventDocumentVerificationAccepted AuditEvent = "document_verification_accepted"
	EventDocumentVerificationRejected AuditEvent = "document_verification_rejected"
	EventDocumentVerificationFailed   AuditEvent = "document_verification_failed"

	// Presence check events
	EventPresenceCheckInitialized AuditEvent = "presence_check_initialized"
	EventPresenceCheckSubmitted   AuditEvent = "presence_check_submitted"
	EventPresenceCheckAccepted    AuditEvent = "presence_check_accepted"
	EventPresenceCheckRejected    AuditEvent = "presence_check_rejected"
	EventPresenceCheckFailed      AuditEvent = "presence_check_failed"

	// OTP events
	EventOtpSent     AuditEvent = "otp_sent"
	EventOtpResent   AuditEvent = "otp_resent"
	EventOtpVerified AuditEvent = "otp_verified"
	EventOtpFailed   AuditEvent = "otp_failed"

	// Client evaluation events
	EventClientEvaluationAccepted AuditEvent = "client_evaluation_accepted"
	EventClientEvaluationRejected AuditEvent = "client_evaluation_rejected"
	EventClientEvaluationFailed   AuditEvent = "client_evaluation_failed"

	// Limit and maintenance events
	EventLimitExceeded   AuditEvent = "limit_exceeded"
	EventEntityExpired   AuditEvent = "entity_expired"
	EventPayloadsCleaned AuditEvent = "payloads_cleaned"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventProcessStarted:               CategoryCompliance,
	EventProcessFinished:              CategoryCompliance,
	EventProcessFailed:                CategoryCompliance,
	EventVerificationInitialized:      CategoryCompliance,
	EventVerificationTerminated:       CategoryCompliance,
	EventDocumentSubmitted:            CategoryCompliance,
	EventDocumentDisposed:             CategoryCompliance,
	EventDocumentVerificationAccepted: CategoryCompliance,
	EventDocumentVerificationRejected: CategoryCompliance,
	EventClientEvaluationAccepted:     CategoryCompliance,
	EventClientEvaluationRejected:     CategoryCompliance,
	EventOtpVerified:                  CategoryCompliance,
	EventPresenceCheckAccepted:        CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventOtpFailed:                  CategorySecurity,
	EventPresenceCheckRejected:      CategorySecurity,
	EventPresenceCheckFailed:        CategorySecurity,
	EventDocumentVerificationFailed: CategorySecurity,
	EventClientEvaluationFailed:     CategorySecurity,
	EventLimitExceeded:              CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventStateChanged:                CategoryOperations,
	EventDocumentVerificationStarted: CategoryOperations,
	EventPresenceCheckInitialized:    CategoryOperations,
	EventPresenceCheckSubmitted:      CategoryOperations,
	EventOtpSent:                     CategoryOperations,
	EventOtpResent:                   CategoryOperations,
	EventEntityExpired:               CategoryOperations,
	EventPayloadsCleaned:             CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
