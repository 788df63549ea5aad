// Package fsm implements the payment status state machine: a declarative
// transition table plus a caller-supplied Resolver for branching events,
// per spec §4.3.
package fsm

import (
	"fmt"

	"secure-payment-gateway/internal/core/domain"
)

// Event names a requested transition trigger.
type Event string

const (
	EventInit            Event = "init"
	EventReady           Event = "ready"
	EventFormShow        Event = "form_show"
	EventAuthStart       Event = "auth_start"
	EventAuthOK          Event = "auth_ok"
	EventAuthFail        Event = "auth_fail"
	EventConfirmStart    Event = "confirm_start"
	EventConfirmOK       Event = "confirm_ok"
	EventCapture         Event = "capture"
	EventCancel          Event = "cancel"
	EventReverse         Event = "reverse"
	EventRefundFull      Event = "refund_full"
	EventRefundPartial   Event = "refund_partial"
	EventRefundRemainder Event = "refund_remainder"
	EventExpirySweep     Event = "expiry_sweep"
)

// ErrInvalidTransition is returned when the (from, event) pair has no edge
// in the table. Any other write must fail this way per §4.3.
type ErrInvalidTransition struct {
	From domain.Status
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: no edge for status %q on event %q", e.From, e.Event)
}

// rule is one table row: the set of legal destinations for (from, event).
// Rules with more than one destination require a Resolver at Apply time to
// pick the outcome (e.g. capture -> CAPTURED or COMPLETED).
type rule struct {
	to []domain.Status
}

// table mirrors §4.3's transition table exactly. The zero-value "from" (—)
// represents creation, handled separately by Init below.
var table = map[domain.Status]map[Event]rule{
	domain.StatusInit: {
		EventReady:     {to: []domain.Status{domain.StatusNew}},
		EventFormShow:  {to: []domain.Status{domain.StatusFormShowed}},
		EventCancel:    {to: []domain.Status{domain.StatusCancelled}},
		EventExpirySweep: {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusNew: {
		EventFormShow:    {to: []domain.Status{domain.StatusFormShowed}},
		EventCancel:      {to: []domain.Status{domain.StatusCancelled}},
		EventExpirySweep: {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusFormShowed: {
		EventAuthStart:   {to: []domain.Status{domain.StatusAuthorizing}},
		EventAuthFail:    {to: []domain.Status{domain.StatusAuthFail, domain.StatusRejected}},
		EventExpirySweep: {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusAuthorizing: {
		EventAuthOK:      {to: []domain.Status{domain.StatusAuthorized}},
		EventAuthFail:    {to: []domain.Status{domain.StatusAuthFail, domain.StatusRejected}},
		EventExpirySweep: {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusAuthorized: {
		EventConfirmStart: {to: []domain.Status{domain.StatusConfirming}},
		EventReverse:      {to: []domain.Status{domain.StatusCancelled}},
		EventExpirySweep:  {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusConfirming: {
		EventConfirmOK:   {to: []domain.Status{domain.StatusConfirmed}},
		EventExpirySweep: {to: []domain.Status{domain.StatusExpired, domain.StatusDeadlineExpired}},
	},
	domain.StatusConfirmed: {
		EventCapture:       {to: []domain.Status{domain.StatusCaptured, domain.StatusCompleted}},
		EventRefundFull:    {to: []domain.Status{domain.StatusRefunded}},
		EventRefundPartial: {to: []domain.Status{domain.StatusPartiallyRefunded}},
	},
	domain.StatusCaptured: {
		EventRefundFull:    {to: []domain.Status{domain.StatusRefunded}},
		EventRefundPartial: {to: []domain.Status{domain.StatusPartiallyRefunded}},
	},
	domain.StatusCompleted: {
		EventRefundFull:    {to: []domain.Status{domain.StatusRefunded}},
		EventRefundPartial: {to: []domain.Status{domain.StatusPartiallyRefunded}},
	},
	domain.StatusPartiallyRefunded: {
		EventRefundRemainder: {to: []domain.Status{domain.StatusRefunded}},
	},
}

// nonTerminalStatuses lists every status the expiry sweep may act on;
// kept distinct from the per-status table above because "any non-terminal"
// in §4.3 spans the whole table, not just the rows listed there.
var nonTerminalStatuses = []domain.Status{
	domain.StatusInit, domain.StatusNew, domain.StatusFormShowed,
	domain.StatusAuthorizing, domain.StatusAuthorized, domain.StatusConfirming,
	domain.StatusPartiallyRefunded, domain.StatusProcessing,
}

// Resolver picks one destination out of a rule's candidate set (used for
// the few events with a branch: capture, auth_fail, expiry_sweep). It must
// return one of the `candidates`; any other value is a programming error.
type Resolver func(candidates []domain.Status) domain.Status

// Init returns the creation status; there is no "from" state to check.
func Init() domain.Status {
	return domain.StatusInit
}

// Apply validates and resolves a transition, returning the destination
// status. If the rule has multiple candidate destinations, resolve must be
// supplied and must return one of them.
func Apply(from domain.Status, event Event, resolve Resolver) (domain.Status, error) {
	if event == EventExpirySweep {
		eligible := false
		for _, s := range nonTerminalStatuses {
			if s == from {
				eligible = true
				break
			}
		}
		if !eligible {
			return "", &ErrInvalidTransition{From: from, Event: event}
		}
	}

	rules, ok := table[from]
	if !ok {
		return "", &ErrInvalidTransition{From: from, Event: event}
	}
	r, ok := rules[event]
	if !ok {
		return "", &ErrInvalidTransition{From: from, Event: event}
	}
	if len(r.to) == 1 {
		return r.to[0], nil
	}
	if resolve == nil {
		return "", fmt.Errorf("fsm: event %q from %q is ambiguous and requires a resolver", event, from)
	}
	chosen := resolve(r.to)
	for _, candidate := range r.to {
		if candidate == chosen {
			return chosen, nil
		}
	}
	return "", fmt.Errorf("fsm: resolver returned %q, not one of %v", chosen, r.to)
}

// CanTransition reports whether an edge exists for (from, event) without
// resolving a branch, useful for guard checks before loading a full Payment.
func CanTransition(from domain.Status, event Event) bool {
	rules, ok := table[from]
	if !ok {
		return false
	}
	_, ok = rules[event]
	return ok
}
