package order

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// Happy path:
//
//	Pending ──> Assigned ───────┐
//	   │                        v
//	   └──> ManualAssigned ──> Accepted ──> OnTheWayToStore ──> ArrivedAtStore
//	                                                                 │
//	        Delivered <── OnTheWayToCustomer <── PickingUpOrder <────┘
//
// Cancelled is reachable from every non-terminal status. It is set by the
// dispatch backend only. Delivered and Cancelled are terminal.
type Status int

const (
	// Unknown helps catch uninitialized Status values.
	Unknown Status = iota
	Pending
	Assigned
	ManualAssigned
	Accepted
	OnTheWayToStore
	ArrivedAtStore
	PickingUpOrder
	OnTheWayToCustomer
	Delivered
	Cancelled
)

var statusStrings = map[Status]string{
	Pending:            "PENDING",
	Assigned:           "ASSIGNED",
	ManualAssigned:     "MANUAL_ASSIGNED",
	Accepted:           "ACCEPTED",
	OnTheWayToStore:    "ON_THE_WAY_TO_STORE",
	ArrivedAtStore:     "ARRIVED_AT_STORE",
	PickingUpOrder:     "PICKING_UP_ORDER",
	OnTheWayToCustomer: "ON_THE_WAY_TO_CUSTOMER",
	Delivered:          "DELIVERED",
	Cancelled:          "CANCELLED",
}

var statusLabels = map[Status]string{
	Pending:            "Pending",
	Assigned:           "Assigned",
	ManualAssigned:     "Manually assigned",
	Accepted:           "Accepted",
	OnTheWayToStore:    "On the way to the restaurant",
	ArrivedAtStore:     "Arrived at the restaurant",
	PickingUpOrder:     "Picking up the order",
	OnTheWayToCustomer: "On the way to the customer",
	Delivered:          "Delivered",
	Cancelled:          "Cancelled",
}

// successors holds the courier-driven forward step of every status that has
// one. ManualAssigned is missing on purpose: leaving it requires a claim
// through AcceptOrder, which also writes the assignee. Pending is moved by
// the upstream allocator only.
var successors = map[Status]Status{
	Assigned:           Accepted,
	Accepted:           OnTheWayToStore,
	OnTheWayToStore:    ArrivedAtStore,
	ArrivedAtStore:     PickingUpOrder,
	PickingUpOrder:     OnTheWayToCustomer,
	OnTheWayToCustomer: Delivered,
}

// ParseStatus converts the persisted representation (e.g. "MANUAL_ASSIGNED")
// into a Status.
func ParseStatus(s string) (Status, error) {
	for status, str := range statusStrings {
		if str == s {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause(
		"status",
		fmt.Errorf("%q is not a known status", s),
	)
}

// Statuses returns every valid status in lifecycle order.
func Statuses() []Status {
	return []Status{
		Pending, Assigned, ManualAssigned, Accepted, OnTheWayToStore,
		ArrivedAtStore, PickingUpOrder, OnTheWayToCustomer, Delivered, Cancelled,
	}
}

// Validate checks that s is one of the defined statuses.
func (s Status) Validate() error {
	if _, ok := statusStrings[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the persisted representation, "UNKNOWN" for invalid values.
func (s Status) String() string {
	if str, ok := statusStrings[s]; ok {
		return str
	}
	return "UNKNOWN"
}

// Label returns a human readable name for display.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled
}

// RequiresCourier reports whether an order in s must carry an assignee.
// Cancelled is excluded since an open offer can be withdrawn.
func (s Status) RequiresCourier() bool {
	return s >= Accepted && s <= Delivered
}

// Successor returns the single courier-driven next status.
func (s Status) Successor() (Status, bool) {
	next, ok := successors[s]
	return next, ok
}

// CanTransitionTo reports whether any actor may move an order from s to
// next. It is wider than Successor: it also admits allocator moves out of
// Pending, claims out of ManualAssigned and cancellation.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || next.Validate() != nil {
		return false
	}
	if next == Cancelled {
		return true
	}
	switch s {
	case Pending:
		return next == Assigned || next == ManualAssigned
	case ManualAssigned:
		return next == Accepted
	default:
		successor, ok := s.Successor()
		return ok && successor == next
	}
}

// Advance returns next when it is the successor of s.
func (s Status) Advance(next Status) (Status, error) {
	successor, ok := s.Successor()
	if !ok || successor != next {
		return Unknown, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not the successor of %s", next, s),
		)
	}
	return next, nil
}

// Accept returns Accepted when s is an open manual offer.
func (s Status) Accept() (Status, error) {
	if s != ManualAssigned {
		return Unknown, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to accept", s),
		)
	}
	return Accepted, nil
}
