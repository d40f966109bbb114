package rsvp

import (
	"errors"
	"fmt"

	"github.com/whtouche/gather-sub002/internal/models"
)

// Store-level sentinels.
var (
	// ErrCapacityFull is returned by the store when admitting one more YES
	// would exceed the event's capacity.
	ErrCapacityFull = errors.New("event capacity reached")
	// ErrNoRSVP is returned by the store when withdrawing and no RSVP exists.
	ErrNoRSVP = errors.New("no rsvp for this event and user")
)

// Kind is the machine-readable admission failure category. Callers branch on
// Kind, never on message text.
type Kind string

const (
	KindNotFound                    Kind = "NOT_FOUND"
	KindInvalidResponse             Kind = "INVALID_RESPONSE"
	KindStateBlocked                Kind = "STATE_BLOCKED"
	KindAtCapacity                  Kind = "AT_CAPACITY"
	KindAtCapacityWaitlistAvailable Kind = "AT_CAPACITY_WAITLIST_AVAILABLE"
	KindInternal                    Kind = "INTERNAL"
)

// StateReason narrows KindStateBlocked to the lifecycle phase that refused
// the transition.
type StateReason string

const (
	ReasonNotPublished   StateReason = "not-published"
	ReasonCancelled      StateReason = "cancelled"
	ReasonCompleted      StateReason = "completed"
	ReasonOngoing        StateReason = "ongoing"
	ReasonDeadlinePassed StateReason = "deadline-passed"
)

// AdmissionError is a typed admission failure.
type AdmissionError struct {
	Kind    Kind
	Reason  StateReason // set only for KindStateBlocked
	Message string
	Err     error // wrapped cause, if any
}

func (e *AdmissionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AdmissionError) Unwrap() error { return e.Err }

// KindOf extracts the admission kind from err, or "" when err is not an
// AdmissionError.
func KindOf(err error) Kind {
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func errNotFound(what string) *AdmissionError {
	return &AdmissionError{Kind: KindNotFound, Message: what + " not found"}
}

func errInvalidResponse(got models.Response) *AdmissionError {
	return &AdmissionError{Kind: KindInvalidResponse, Message: fmt.Sprintf("response %q is not one of YES, NO, MAYBE", got)}
}

func errInternal(err error) *AdmissionError {
	return &AdmissionError{Kind: KindInternal, Message: "admission failed", Err: err}
}

// errStateBlocked maps a non-PUBLISHED effective state to its refusal reason.
func errStateBlocked(state models.EffectiveState) *AdmissionError {
	var reason StateReason
	var msg string
	switch state {
	case models.EffectiveDraft:
		reason, msg = ReasonNotPublished, "event is not published"
	case models.EffectiveCancelled:
		reason, msg = ReasonCancelled, "event is cancelled"
	case models.EffectiveCompleted:
		reason, msg = ReasonCompleted, "event is completed"
	case models.EffectiveOngoing:
		reason, msg = ReasonOngoing, "event has already started"
	case models.EffectiveClosed:
		reason, msg = ReasonDeadlinePassed, "rsvp deadline has passed"
	default:
		reason, msg = ReasonNotPublished, fmt.Sprintf("event state %s forbids rsvp changes", state)
	}
	return &AdmissionError{Kind: KindStateBlocked, Reason: reason, Message: msg}
}
