package order

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order was not created
	// through NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

	confirmationCodePattern = regexp.MustCompile(`^[0-9]{4}$`)
)

// Params carries every field of an order record. It is the input of NewOrder
// and RestoreOrder.
type Params struct {
	ID                  kernel.ID
	DisplayID           string
	RestaurantName      string
	Items               []Item
	Subtotal            kernel.Money
	DeliveryFee         kernel.Money
	Total               kernel.Money
	Customer            Customer
	PickupLocationURL   string
	CustomerURL         string
	DeliveryAddress     string
	DeliveryReferences  string
	PaymentMethod       string
	ConfirmationCode    string
	Status              Status
	AssignedCourierID   kernel.ID
	AssignedCourierName string
	CandidateCourierIDs []kernel.ID
	CreatedAt           int64
	DeliveredAt         *int64
	Revision            int64
}

// Order is a delivery order as seen by couriers. It is the aggregate root of
// the dispatch core.
//
// Invariants:
//   - deliveredAt is set iff status is Delivered, and never before createdAt
//   - an assignee is present for every status from Accepted to Delivered
//   - candidates are present only while the order is an open manual offer
//   - confirmationCode is exactly four digits
//   - Delivered and Cancelled orders accept no further patches
type Order struct {
	id                  kernel.ID
	displayID           string
	restaurantName      string
	items               []Item
	subtotal            kernel.Money
	deliveryFee         kernel.Money
	total               kernel.Money
	customer            Customer
	pickupLocationURL   string
	customerURL         string
	deliveryAddress     string
	deliveryReferences  string
	paymentMethod       string
	confirmationCode    string
	status              Status
	assignedCourierID   kernel.ID
	assignedCourierName string
	candidateCourierIDs []kernel.ID
	createdAt           int64
	deliveredAt         *int64

	// revision is the store generation of the last write to this record.
	revision int64

	isConstructed bool
}

// NewOrder creates an order the way the upstream allocator publishes it:
// Pending, Assigned or an open ManualAssigned offer.
func NewOrder(p Params) (*Order, error) {
	switch p.Status {
	case Pending, Assigned, ManualAssigned:
	default:
		return nil, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid initial status", p.Status),
		)
	}
	return RestoreOrder(p)
}

// RestoreOrder rebuilds an order in any state, e.g. from a store snapshot.
// All invariants are checked and reported together.
func RestoreOrder(p Params) (*Order, error) {
	o := &Order{
		restaurantName:      p.RestaurantName,
		subtotal:            p.Subtotal,
		deliveryFee:         p.DeliveryFee,
		total:               p.Total,
		customer:            p.Customer,
		pickupLocationURL:   p.PickupLocationURL,
		customerURL:         p.CustomerURL,
		deliveryAddress:     p.DeliveryAddress,
		deliveryReferences:  p.DeliveryReferences,
		paymentMethod:       p.PaymentMethod,
		assignedCourierID:   p.AssignedCourierID,
		assignedCourierName: p.AssignedCourierName,
		candidateCourierIDs: slices.Clone(p.CandidateCourierIDs),
		items:               slices.Clone(p.Items),
		deliveredAt:         copyTimestamp(p.DeliveredAt),
		isConstructed:       true,
	}

	if err := errors.Join(
		o.setID(p.ID, p.DisplayID),
		o.setConfirmationCode(p.ConfirmationCode),
		o.setStatus(p.Status),
		o.setCreatedAt(p.CreatedAt),
		o.setRevision(p.Revision),
	); err != nil {
		return nil, err
	}

	if err := o.validateState(); err != nil {
		return nil, err
	}

	return o, nil
}

// Validate ensures the order was created through a constructor.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares orders by id.
func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.ID {
	return o.id
}

func (o *Order) DisplayID() string {
	return o.displayID
}

func (o *Order) RestaurantName() string {
	return o.restaurantName
}

func (o *Order) Items() []Item {
	return slices.Clone(o.items)
}

func (o *Order) Subtotal() kernel.Money {
	return o.subtotal
}

// DeliveryFee is the courier's earning for the order.
func (o *Order) DeliveryFee() kernel.Money {
	return o.deliveryFee
}

func (o *Order) Total() kernel.Money {
	return o.total
}

func (o *Order) Customer() Customer {
	return o.customer
}

func (o *Order) PickupLocationURL() string {
	return o.pickupLocationURL
}

func (o *Order) CustomerURL() string {
	return o.customerURL
}

func (o *Order) DeliveryAddress() string {
	return o.deliveryAddress
}

func (o *Order) DeliveryReferences() string {
	return o.deliveryReferences
}

func (o *Order) PaymentMethod() string {
	return o.paymentMethod
}

func (o *Order) ConfirmationCode() string {
	return o.confirmationCode
}

func (o *Order) Status() Status {
	return o.status
}

// AssignedCourierID is zero until a courier is assigned.
func (o *Order) AssignedCourierID() kernel.ID {
	return o.assignedCourierID
}

func (o *Order) AssignedCourierName() string {
	return o.assignedCourierName
}

func (o *Order) CandidateCourierIDs() []kernel.ID {
	return slices.Clone(o.candidateCourierIDs)
}

// CreatedAt is the creation time in epoch milliseconds.
func (o *Order) CreatedAt() int64 {
	return o.createdAt
}

// DeliveredAt is the delivery time in epoch milliseconds, nil until delivered.
func (o *Order) DeliveredAt() *int64 {
	return copyTimestamp(o.deliveredAt)
}

func (o *Order) Revision() int64 {
	return o.revision
}

// IsAssignedTo reports whether courierID is the order's assignee.
func (o *Order) IsAssignedTo(courierID kernel.ID) bool {
	return !o.assignedCourierID.IsZero() && o.assignedCourierID.IsEqual(courierID)
}

// IsOpenOffer reports whether any courier may still claim the order.
func (o *Order) IsOpenOffer() bool {
	return o.status == ManualAssigned && o.assignedCourierID.IsZero()
}

// MatchesCode compares code with the confirmation code byte for byte.
func (o *Order) MatchesCode(code string) bool {
	return o.confirmationCode == code
}

// EffectiveTimestamp is deliveredAt when set, createdAt otherwise.
func (o *Order) EffectiveTimestamp() int64 {
	if o.deliveredAt != nil {
		return *o.deliveredAt
	}
	return o.createdAt
}

// SetRevision records the store generation of the record. Revisions never go
// backwards.
func (o *Order) SetRevision(revision int64) error {
	if revision < o.revision {
		return errs.NewValueIsOutOfRangeError("revision", revision, o.revision, "unbounded")
	}
	o.revision = revision
	return nil
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.items = slices.Clone(o.items)
	c.candidateCourierIDs = slices.Clone(o.candidateCourierIDs)
	c.deliveredAt = copyTimestamp(o.deliveredAt)
	return &c
}

// Apply checks the patch precondition and the status transition, then
// writes the patch. The order is left untouched on error.
func (o *Order) Apply(p Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := p.Precondition.Check(o, p.Status); err != nil {
		return err
	}
	if o.status.IsTerminal() {
		return NewIllegalTransitionError(o.id.String(), o.status, p.Status)
	}
	if p.Status != Unknown && p.Status != o.status && !o.status.CanTransitionTo(p.Status) {
		return NewIllegalTransitionError(o.id.String(), o.status, p.Status)
	}

	next := o.Clone()
	if p.Status != Unknown {
		next.status = p.Status
	}
	if p.Assignee != nil {
		next.assignedCourierID = p.Assignee.ID
		next.assignedCourierName = p.Assignee.Name
	}
	if p.ClearCandidates {
		next.candidateCourierIDs = nil
	}
	if p.DeliveredAt != nil {
		next.deliveredAt = copyTimestamp(p.DeliveredAt)
	}

	if err := next.validateState(); err != nil {
		return err
	}

	*o = *next
	return nil
}

func (o *Order) setID(id kernel.ID, displayID string) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	o.displayID = displayID
	if o.displayID == "" {
		o.displayID = id.String()
	}
	return nil
}

func (o *Order) setConfirmationCode(code string) error {
	if !confirmationCodePattern.MatchString(code) {
		return errs.NewValueIsInvalidErrorWithCause(
			"confirmation code",
			errors.New("must be exactly 4 digits"),
		)
	}
	o.confirmationCode = code
	return nil
}

func (o *Order) setStatus(status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}
	o.status = status
	return nil
}

func (o *Order) setCreatedAt(createdAt int64) error {
	if createdAt <= 0 {
		return errs.NewValueIsInvalidErrorWithCause(
			"created at",
			fmt.Errorf("%d is not a valid epoch millisecond timestamp", createdAt),
		)
	}
	o.createdAt = createdAt
	return nil
}

func (o *Order) setRevision(revision int64) error {
	if revision < 0 {
		return errs.NewValueIsOutOfRangeError("revision", revision, 0, "unbounded")
	}
	o.revision = revision
	return nil
}

// validateState checks the cross-field invariants.
func (o *Order) validateState() error {
	var err error

	if (o.deliveredAt != nil) != (o.status == Delivered) {
		err = errors.Join(err, errs.NewValueIsInvalidErrorWithCause(
			"delivered at",
			fmt.Errorf("must be set iff status is %s, status is %s", Delivered, o.status),
		))
	}
	if o.deliveredAt != nil && *o.deliveredAt < o.createdAt {
		err = errors.Join(err, errs.NewValueIsOutOfRangeError("delivered at", *o.deliveredAt, o.createdAt, "unbounded"))
	}
	if o.status.RequiresCourier() && o.assignedCourierID.IsZero() {
		err = errors.Join(err, errs.NewValueIsRequiredErrorWithCause(
			"assigned courier id",
			fmt.Errorf("status %s requires an assignee", o.status),
		))
	}
	if len(o.candidateCourierIDs) > 0 && !o.IsOpenOffer() {
		err = errors.Join(err, errs.NewValueIsInvalidErrorWithCause(
			"candidate courier ids",
			errors.New("candidates are kept only on open manual offers"),
		))
	}

	return err
}

func copyTimestamp(ts *int64) *int64 {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
