package order

import (
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Assignee is the courier written into an order by a claim.
type Assignee struct {
	ID   kernel.ID
	Name string
}

// Precondition is checked against the current record right before a patch is
// written. Stores evaluate it atomically with the write, which is what keeps
// two couriers from claiming the same offer.
type Precondition struct {
	// Status the record must still be in. Unknown disables the check.
	Status Status
	// Unassigned requires an empty assignee.
	Unassigned bool
}

// Check returns nil when o satisfies the precondition. A failed claim
// (Unassigned set) is reported as NotAvailable, anything else as
// IllegalTransition towards next.
func (p Precondition) Check(o *Order, next Status) error {
	statusMatches := p.Status == Unknown || o.status == p.Status
	if p.Unassigned {
		if !statusMatches || !o.assignedCourierID.IsZero() {
			return NewNotAvailableError(o.id.String(), o.status)
		}
		return nil
	}
	if !statusMatches {
		return NewIllegalTransitionError(o.id.String(), o.status, next)
	}
	return nil
}

// Patch is a partial update of an order. Zero fields are left untouched.
type Patch struct {
	Status          Status
	Assignee        *Assignee
	ClearCandidates bool
	DeliveredAt     *int64
	Precondition    Precondition
}

// NewAcceptPatch claims an open manual offer for courier.
func NewAcceptPatch(courier Assignee) Patch {
	return Patch{
		Status:          Accepted,
		Assignee:        &courier,
		ClearCandidates: true,
		Precondition: Precondition{
			Status:     ManualAssigned,
			Unassigned: true,
		},
	}
}

// NewAdvancePatch moves an order from expected to next. deliveredAt must be
// set exactly when next is Delivered.
func NewAdvancePatch(expected, next Status, deliveredAt *int64) Patch {
	return Patch{
		Status:       next,
		DeliveredAt:  deliveredAt,
		Precondition: Precondition{Status: expected},
	}
}

// Validate rejects patches that can never be applied.
func (p Patch) Validate() error {
	if p.Status != Unknown {
		if err := p.Status.Validate(); err != nil {
			return err
		}
	}
	if p.Assignee != nil && p.Assignee.ID.IsZero() {
		return errs.NewValueIsRequiredError("assignee id")
	}
	if p.Status == Unknown && p.Assignee == nil && !p.ClearCandidates && p.DeliveredAt == nil {
		return errs.NewValueIsRequiredError("patch")
	}
	return nil
}
