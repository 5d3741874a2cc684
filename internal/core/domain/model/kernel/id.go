package kernel

import (
	"strings"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/google/uuid"
)

// ErrIDIsNotConstructed is returned when validating a zero-value ID.
var ErrIDIsNotConstructed = errs.NewValueIsRequiredError("ID must be created via NewID or IDFromString")

// ID identifies an order or a courier. Stores assign ids in their own format
// (push keys, numeric strings, UUIDs), so the value is kept as an opaque
// string and compared byte for byte.
//
// Example:
//
//	orderID := kernel.NewID()
//
//	courierID, err := kernel.IDFromString("rider-17")
//	if err != nil {
//	    return err
//	}
type ID struct {
	value string
	guard guard.ConstructorGuard
}

// NewID generates a random version 4 UUID identifier. Used by stores and
// seeding tools that assign ids themselves.
func NewID() ID {
	return ID{
		value: uuid.NewString(),
		guard: guard.NewConstructorGuard(),
	}
}

// IDFromString wraps an identifier received from a store or a client.
// Surrounding whitespace is trimmed; an empty result is rejected.
func IDFromString(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ID{}, errs.NewValueIsRequiredError("id")
	}

	return ID{
		value: trimmed,
		guard: guard.NewConstructorGuard(),
	}, nil
}

// MustIDFromString is IDFromString for literals known to be valid. It panics on
// empty input and is meant for tests and seeding code.
func MustIDFromString(s string) ID {
	id, err := IDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw identifier.
func (i ID) String() string {
	return i.value
}

// IsEqual reports whether both ids hold the same value.
func (i ID) IsEqual(other ID) bool {
	return i.value == other.value
}

// IsZero reports whether the id was never set, e.g. the assignee of an
// unclaimed order.
func (i ID) IsZero() bool {
	return i.value == ""
}

// Validate returns ErrIDIsNotConstructed for zero values.
func (i ID) Validate() error {
	return i.guard.Validate(ErrIDIsNotConstructed)
}

// Less orders ids lexicographically. Used as a deterministic tie breaker.
func (i ID) Less(other ID) bool {
	return i.value < other.value
}
