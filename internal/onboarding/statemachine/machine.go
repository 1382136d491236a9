// Package statemachine sequences the identity verification workflow. The
// machine is a plain transition table plus a driver function: external
// transitions keyed by (state, event), choice states as ordered guard
// branches with a default. Actions run inside the caller's transaction
// scope; a failed action marks the invocation errored and nothing further
// fires.
package statemachine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "onboard/pkg/domain-errors"

	"onboard/internal/onboarding/models"
)

// Guard decides whether a branch may be taken. Guards are predicates over
// the entity snapshot plus configuration; they must not mutate state.
type Guard func(ctx context.Context, ec *EventContext) (bool, error)

// Action performs the side effects of a transition.
type Action func(ctx context.Context, ec *EventContext) error

// Deps supplies the guards and actions the transition table binds to.
// Implementations live in the service layer; the machine stays plain data.
type Deps interface {
	// Guards.
	ProcessMatches(ctx context.Context, ec *EventContext) (bool, error)
	PresenceCheckEnabled() bool
	OtpVerificationEnabled() bool
	AllDocumentsUploadPending(ctx context.Context, ec *EventContext) (bool, error)
	DocumentsVerificationPending(ctx context.Context, ec *EventContext) (bool, error)
	OtpVerified(ctx context.Context, ec *EventContext) (bool, error)

	// Actions.
	InitVerification(ctx context.Context, ec *EventContext) error
	MoveTo(ctx context.Context, ec *EventContext, phase models.Phase, status models.Status) error
	StartDocumentVerification(ctx context.Context, ec *EventContext) error
	ExecuteFinalDocumentVerification(ctx context.Context, ec *EventContext) error
	InitPresenceCheck(ctx context.Context, ec *EventContext) error
	CheckPresenceVerification(ctx context.Context, ec *EventContext) error
	SendOtp(ctx context.Context, ec *EventContext) error
	ResendOtp(ctx context.Context, ec *EventContext) error
	ProcessVerificationResult(ctx context.Context, ec *EventContext) error
}

type branch struct {
	guard  Guard // nil means always
	target State
	action Action // nil means none
}

type transitionKey struct {
	source State
	event  Event
}

// Machine is the workflow driver. Safe for concurrent use; all mutable
// state lives in the entities the caller passes in.
type Machine struct {
	deps        Deps
	logger      *slog.Logger
	tracer      trace.Tracer
	transitions map[transitionKey][]branch
	choices     map[State][]branch
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New builds the machine and its transition table.
func New(deps Deps, opts ...Option) *Machine {
	m := &Machine{
		deps:   deps,
		logger: slog.Default(),
		tracer: otel.Tracer("onboard/statemachine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.buildTable()
	return m
}

func (m *Machine) buildTable() {
	d := m.deps

	statusIs := func(status models.Status) Guard {
		return func(_ context.Context, ec *EventContext) (bool, error) {
			return ec.Identity != nil && ec.Identity.Status == status, nil
		}
	}
	enabled := func(f func() bool) Guard {
		return func(context.Context, *EventContext) (bool, error) {
			return f(), nil
		}
	}

	m.transitions = map[transitionKey][]branch{
		{StateInitial, EventIdentityVerificationInit}: {
			{guard: d.ProcessMatches, target: StateDocumentUploadInProgress, action: d.InitVerification},
		},
		{StateDocumentUploadInProgress, EventNextState}: {
			{target: choiceDocumentUpload},
		},
		{StateDocumentUploadVerificationPending, EventNextState}: {
			{guard: d.DocumentsVerificationPending, target: StateDocumentVerificationInProgress, action: d.StartDocumentVerification},
		},
		{StateDocumentVerificationInProgress, EventNextState}: {
			{target: choiceDocumentVerificationProcessing},
		},
		{StateDocumentVerificationAccepted, EventNextState}: {
			{target: StateDocumentVerificationFinalInProgress, action: d.ExecuteFinalDocumentVerification},
		},
		{StateDocumentVerificationFinalAccepted, EventNextState}: {
			{target: StateClientEvaluationInProgress},
		},
		{StateClientEvaluationInProgress, EventNextState}: {
			{target: choiceClientEvaluationProcessing},
		},
		{StateClientEvaluationAccepted, EventNextState}: {
			{target: choiceClientEvaluationAccepted},
		},
		{StatePresenceCheckNotInitialized, EventPresenceCheckInit}: {
			{guard: m.all(d.ProcessMatches, enabled(d.PresenceCheckEnabled)), target: StatePresenceCheckInProgress, action: d.InitPresenceCheck},
		},
		{StatePresenceCheckInProgress, EventPresenceCheckInit}: {
			// Restarting an in-flight session is allowed; the limit service
			// bounds the number of attempts.
			{guard: m.all(d.ProcessMatches, enabled(d.PresenceCheckEnabled)), target: StatePresenceCheckInProgress, action: d.InitPresenceCheck},
		},
		{StatePresenceCheckInProgress, EventPresenceCheckSubmitted}: {
			{guard: enabled(d.PresenceCheckEnabled), target: StatePresenceCheckVerificationPending},
		},
		{StatePresenceCheckVerificationPending, EventNextState}: {
			{target: choicePresenceCheckProcessing, action: d.CheckPresenceVerification},
		},
		{StateOtpVerificationPending, EventOtpVerificationResend}: {
			{guard: m.all(d.ProcessMatches, enabled(d.OtpVerificationEnabled)), target: StateOtpVerificationPending, action: d.ResendOtp},
		},
		{StateOtpVerificationPending, EventNextState}: {
			{guard: d.OtpVerified, target: choiceVerificationProcessing},
			{target: StateOtpVerificationPending},
		},
	}

	m.choices = map[State][]branch{
		choiceDocumentUpload: {
			{guard: d.AllDocumentsUploadPending, target: StateDocumentUploadVerificationPending},
			{target: StateDocumentUploadInProgress},
		},
		choiceDocumentVerificationProcessing: {
			{guard: statusIs(models.StatusAccepted), target: StateDocumentVerificationAccepted},
			{guard: statusIs(models.StatusRejected), target: StateDocumentVerificationRejected},
			{guard: statusIs(models.StatusFailed), target: StateDocumentVerificationFailed},
			{target: StateDocumentVerificationInProgress},
		},
		choiceClientEvaluationProcessing: {
			{guard: statusIs(models.StatusAccepted), target: StateClientEvaluationAccepted},
			{guard: statusIs(models.StatusRejected), target: StateClientEvaluationRejected},
			{guard: statusIs(models.StatusFailed), target: StateClientEvaluationFailed},
			{target: StateClientEvaluationInProgress},
		},
		choiceClientEvaluationAccepted: {
			{guard: enabled(d.PresenceCheckEnabled), target: StatePresenceCheckNotInitialized},
			{guard: enabled(d.OtpVerificationEnabled), target: StateOtpVerificationPending, action: d.SendOtp},
			{target: choiceVerificationProcessing},
		},
		choicePresenceCheckProcessing: {
			{guard: statusIs(models.StatusAccepted), target: choiceOtpVerification},
			{guard: statusIs(models.StatusRejected), target: StatePresenceCheckRejected},
			{guard: statusIs(models.StatusFailed), target: StatePresenceCheckFailed},
			{target: StatePresenceCheckVerificationPending},
		},
		choiceOtpVerification: {
			{guard: enabled(d.OtpVerificationEnabled), target: StateOtpVerificationPending, action: d.SendOtp},
			{target: choiceVerificationProcessing},
		},
		choiceVerificationProcessing: {
			{guard: statusIs(models.StatusAccepted), target: StateCompletedAccepted},
			{guard: statusIs(models.StatusRejected), target: StateCompletedRejected},
			{target: StateCompletedFailed},
		},
	}
}

// all combines guards; every guard must pass.
func (m *Machine) all(guards ...Guard) Guard {
	return func(ctx context.Context, ec *EventContext) (bool, error) {
		for _, g := range guards {
			ok, err := g(ctx, ec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Send fires one event against the entity in the context and drives the
// machine through any chained choice states. The INIT event starts at
// INITIAL; any other event restores the state from the persisted
// (phase, status) pair. Returns the final concrete state.
func (m *Machine) Send(ctx context.Context, event Event, ec *EventContext) (State, error) {
	ctx, span := m.tracer.Start(ctx, "statemachine.send",
		trace.WithAttributes(attribute.String("event", string(event))))
	defer span.End()

	current, err := m.currentState(event, ec)
	if err != nil {
		return "", err
	}

	branches, ok := m.transitions[transitionKey{current, event}]
	if !ok {
		m.logger.Warn("event not accepted", "event", event, "state", current, "process_id", ec.ProcessID)
		return current, dErrors.Newf(dErrors.CodeInvalidState, "event %s not accepted in state %s", event, current)
	}
	next, err := m.takeBranch(ctx, branches, ec, event, current)
	if err != nil {
		return current, err
	}
	return next, nil
}

func (m *Machine) currentState(event Event, ec *EventContext) (State, error) {
	if event == EventIdentityVerificationInit {
		return StateInitial, nil
	}
	if ec.Identity == nil {
		return "", dErrors.New(dErrors.CodeInvalidState, "missing identity verification for event")
	}
	return FromPhaseAndStatus(ec.Identity.Phase, ec.Identity.Status)
}

func (m *Machine) takeBranch(ctx context.Context, branches []branch, ec *EventContext, event Event, source State) (State, error) {
	for _, b := range branches {
		if b.guard != nil {
			ok, err := b.guard(ctx, ec)
			if err != nil {
				return source, err
			}
			if !ok {
				continue
			}
		}
		return m.enter(ctx, b, ec, source)
	}
	m.logger.Warn("no branch matched", "event", event, "state", source, "process_id", ec.ProcessID)
	return source, dErrors.Newf(dErrors.CodeInvalidState, "event %s has no matching branch in state %s", event, source)
}

// enter runs the branch action and settles into the target state. A choice
// target is evaluated immediately; its branches may chain further choices.
func (m *Machine) enter(ctx context.Context, b branch, ec *EventContext, source State) (State, error) {
	before := m.snapshot(ec)

	if b.action != nil {
		if err := b.action(ctx, ec); err != nil {
			m.logger.Warn("action failed", "state", source, "target", b.target, "process_id", ec.ProcessID, "error", err)
			return source, err
		}
	}

	if b.target.IsChoice() {
		if b.target == choiceVerificationProcessing {
			if err := m.deps.ProcessVerificationResult(ctx, ec); err != nil {
				return source, err
			}
		}
		next, err := m.takeBranch(ctx, m.choices[b.target], ec, "", b.target)
		if err != nil {
			return source, err
		}
		return next, nil
	}

	// The action may have settled the entity into a diverging state, for
	// example a start-verification failure persisting FAILED. Respect it.
	if m.snapshot(ec) != before {
		if state, err := FromPhaseAndStatus(ec.Identity.Phase, ec.Identity.Status); err == nil && state != b.target {
			m.logger.Info("state changed", "state", state, "process_id", ec.ProcessID)
			return state, nil
		}
	}

	if phase, status, ok := b.target.PhaseStatus(); ok {
		if ec.Identity == nil || ec.Identity.Phase != phase || ec.Identity.Status != status {
			if err := m.deps.MoveTo(ctx, ec, phase, status); err != nil {
				return source, err
			}
		}
	}
	m.logger.Info("state changed", "state", b.target, "process_id", ec.ProcessID)
	return b.target, nil
}

func (m *Machine) snapshot(ec *EventContext) phaseStatus {
	if ec.Identity == nil {
		return phaseStatus{}
	}
	return phaseStatus{ec.Identity.Phase, ec.Identity.Status}
}
