package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotAvailable      = errors.New("order is not available")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrCodeMismatch      = errors.New("confirmation code mismatch")
)

// NotAvailableError is returned when a claim loses: the offer was already
// taken by another courier, withdrawn or finished.
type NotAvailableError struct {
	OrderID string
	Status  Status
}

func NewNotAvailableError(orderID string, status Status) *NotAvailableError {
	return &NotAvailableError{OrderID: orderID, Status: status}
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("%s: %s is %s", ErrNotAvailable, e.OrderID, e.Status)
}

func (e *NotAvailableError) Unwrap() error {
	return ErrNotAvailable
}

// IllegalTransitionError is returned when the requested status is not the
// defined successor of the current one.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func NewIllegalTransitionError(orderID string, from, to Status) *IllegalTransitionError {
	return &IllegalTransitionError{OrderID: orderID, From: from, To: to}
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrIllegalTransition, e.OrderID, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// CodeMismatchError is returned when the entered confirmation code differs.
// The entered value is not kept.
type CodeMismatchError struct {
	OrderID string
}

func NewCodeMismatchError(orderID string) *CodeMismatchError {
	return &CodeMismatchError{OrderID: orderID}
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeMismatch, e.OrderID)
}

func (e *CodeMismatchError) Unwrap() error {
	return ErrCodeMismatch
}
