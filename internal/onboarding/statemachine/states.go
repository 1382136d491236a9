package statemachine

import (
	"fmt"

	dErrors "onboard/pkg/domain-errors"

	"onboard/internal/onboarding/models"
)

// State is one node of the onboarding workflow. Concrete states map to
// exactly one (phase, status) pair; choice states are transient branch
// points never persisted.
type State string

const (
	StateInitial State = "INITIAL"

	StateDocumentUploadInProgress          State = "DOCUMENT_UPLOAD_IN_PROGRESS"
	StateDocumentUploadVerificationPending State = "DOCUMENT_UPLOAD_VERIFICATION_PENDING"

	StateDocumentVerificationInProgress State = "DOCUMENT_VERIFICATION_IN_PROGRESS"
	StateDocumentVerificationAccepted   State = "DOCUMENT_VERIFICATION_ACCEPTED"
	StateDocumentVerificationRejected   State = "DOCUMENT_VERIFICATION_REJECTED"
	StateDocumentVerificationFailed     State = "DOCUMENT_VERIFICATION_FAILED"

	StateDocumentVerificationFinalInProgress State = "DOCUMENT_VERIFICATION_FINAL_IN_PROGRESS"
	StateDocumentVerificationFinalAccepted   State = "DOCUMENT_VERIFICATION_FINAL_ACCEPTED"
	StateDocumentVerificationFinalRejected   State = "DOCUMENT_VERIFICATION_FINAL_REJECTED"
	StateDocumentVerificationFinalFailed     State = "DOCUMENT_VERIFICATION_FINAL_FAILED"

	StateClientEvaluationInProgress State = "CLIENT_EVALUATION_IN_PROGRESS"
	StateClientEvaluationAccepted   State = "CLIENT_EVALUATION_ACCEPTED"
	StateClientEvaluationRejected   State = "CLIENT_EVALUATION_REJECTED"
	StateClientEvaluationFailed     State = "CLIENT_EVALUATION_FAILED"

	StatePresenceCheckNotInitialized      State = "PRESENCE_CHECK_NOT_INITIALIZED"
	StatePresenceCheckInProgress          State = "PRESENCE_CHECK_IN_PROGRESS"
	StatePresenceCheckVerificationPending State = "PRESENCE_CHECK_VERIFICATION_PENDING"
	StatePresenceCheckRejected            State = "PRESENCE_CHECK_REJECTED"
	StatePresenceCheckFailed              State = "PRESENCE_CHECK_FAILED"

	StateOtpVerificationPending State = "OTP_VERIFICATION_PENDING"

	StateCompletedAccepted State = "COMPLETED_ACCEPTED"
	StateCompletedRejected State = "COMPLETED_REJECTED"
	StateCompletedFailed   State = "COMPLETED_FAILED"

	choiceDocumentUpload                 State = "CHOICE_DOCUMENT_UPLOAD"
	choiceDocumentVerificationProcessing State = "CHOICE_DOCUMENT_VERIFICATION_PROCESSING"
	choiceClientEvaluationProcessing     State = "CHOICE_CLIENT_EVALUATION_PROCESSING"
	choiceClientEvaluationAccepted       State = "CHOICE_CLIENT_EVALUATION_ACCEPTED"
	choicePresenceCheckProcessing        State = "CHOICE_PRESENCE_CHECK_PROCESSING"
	choiceOtpVerification                State = "CHOICE_OTP_VERIFICATION"
	choiceVerificationProcessing         State = "CHOICE_VERIFICATION_PROCESSING"
)

type phaseStatus struct {
	phase  models.Phase
	status models.Status
}

// statePhaseStatus is the total, injective mapping from concrete states to
// (phase, status) pairs. StateInitial has no phase; it exists only before
// the first identity verification record.
var statePhaseStatus = map[State]phaseStatus{
	StateDocumentUploadInProgress:          {models.PhaseDocumentUpload, models.StatusInProgress},
	StateDocumentUploadVerificationPending: {models.PhaseDocumentUpload, models.StatusVerificationPending},

	StateDocumentVerificationInProgress: {models.PhaseDocumentVerification, models.StatusInProgress},
	StateDocumentVerificationAccepted:   {models.PhaseDocumentVerification, models.StatusAccepted},
	StateDocumentVerificationRejected:   {models.PhaseDocumentVerification, models.StatusRejected},
	StateDocumentVerificationFailed:     {models.PhaseDocumentVerification, models.StatusFailed},

	StateDocumentVerificationFinalInProgress: {models.PhaseDocumentVerificationFinal, models.StatusInProgress},
	StateDocumentVerificationFinalAccepted:   {models.PhaseDocumentVerificationFinal, models.StatusAccepted},
	StateDocumentVerificationFinalRejected:   {models.PhaseDocumentVerificationFinal, models.StatusRejected},
	StateDocumentVerificationFinalFailed:     {models.PhaseDocumentVerificationFinal, models.StatusFailed},

	StateClientEvaluationInProgress: {models.PhaseClientEvaluation, models.StatusInProgress},
	StateClientEvaluationAccepted:   {models.PhaseClientEvaluation, models.StatusAccepted},
	StateClientEvaluationRejected:   {models.PhaseClientEvaluation, models.StatusRejected},
	StateClientEvaluationFailed:     {models.PhaseClientEvaluation, models.StatusFailed},

	StatePresenceCheckNotInitialized:      {models.PhasePresenceCheck, models.StatusNotInitialized},
	StatePresenceCheckInProgress:          {models.PhasePresenceCheck, models.StatusInProgress},
	StatePresenceCheckVerificationPending: {models.PhasePresenceCheck, models.StatusVerificationPending},
	StatePresenceCheckRejected:            {models.PhasePresenceCheck, models.StatusRejected},
	StatePresenceCheckFailed:              {models.PhasePresenceCheck, models.StatusFailed},

	StateOtpVerificationPending: {models.PhaseOtpVerification, models.StatusVerificationPending},

	StateCompletedAccepted: {models.PhaseCompleted, models.StatusAccepted},
	StateCompletedRejected: {models.PhaseCompleted, models.StatusRejected},
	StateCompletedFailed:   {models.PhaseCompleted, models.StatusFailed},
}

// phaseStatusState is the inverse lookup, built once at package init.
// A duplicate mapping is a programming error caught immediately.
var phaseStatusState = func() map[phaseStatus]State {
	inverse := make(map[phaseStatus]State, len(statePhaseStatus))
	for state, ps := range statePhaseStatus {
		if existing, ok := inverse[ps]; ok {
			panic(fmt.Sprintf("duplicate state mapping: %s and %s both map to %s/%s", existing, state, ps.phase, ps.status))
		}
		inverse[ps] = state
	}
	return inverse
}()

// IsChoice reports whether the state is a transient branch point.
func (s State) IsChoice() bool {
	switch s {
	case choiceDocumentUpload, choiceDocumentVerificationProcessing,
		choiceClientEvaluationProcessing, choiceClientEvaluationAccepted,
		choicePresenceCheckProcessing, choiceOtpVerification,
		choiceVerificationProcessing:
		return true
	}
	return false
}

// Terminal reports whether the state ends the workflow.
func (s State) Terminal() bool {
	return s == StateCompletedAccepted || s == StateCompletedRejected || s == StateCompletedFailed
}

// PhaseStatus returns the (phase, status) pair the state persists as.
// Choice states and StateInitial have no pair.
func (s State) PhaseStatus() (models.Phase, models.Status, bool) {
	ps, ok := statePhaseStatus[s]
	if !ok {
		return "", "", false
	}
	return ps.phase, ps.status, true
}

// FromPhaseAndStatus resolves the persisted (phase, status) pair back to a
// state. An unmapped pair is a fatal configuration error.
func FromPhaseAndStatus(phase models.Phase, status models.Status) (State, error) {
	state, ok := phaseStatusState[phaseStatus{phase, status}]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidState, "unexpected identity verification state %s/%s", phase, status)
	}
	return state, nil
}

// ValidPhaseStatus reports whether the pair belongs to the enumerated set.
func ValidPhaseStatus(phase models.Phase, status models.Status) bool {
	_, ok := phaseStatusState[phaseStatus{phase, status}]
	return ok
}
