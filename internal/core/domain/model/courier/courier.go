package courier

import (
	"errors"
	"strings"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

// Domain errors for courier operations.
var (
	// ErrNameIsRequired is returned when a courier has an empty display name.
	ErrNameIsRequired = errs.NewValueIsRequiredError("display name")
	// ErrCourierIsNotConstructed is returned when using an improperly initialized Courier.
	ErrCourierIsNotConstructed = errors.New("Courier must be created via NewCourier or RestoreCourier constructor")
	// ErrCourierIsNotApproved is returned when an unapproved courier tries to open a session.
	ErrCourierIsNotApproved = errors.New("courier is not approved")
)

// Presence is the last reported online/active state of a courier. It is
// owned by the presence collaborator and read here for display only.
type Presence struct {
	Online bool
	Active bool
	// LastSeen is epoch milliseconds, 0 when never reported.
	LastSeen int64
}

// Courier is the identity of a delivery agent consuming the order feed.
// Approval is decided upstream; this core only reads it.
type Courier struct {
	id          kernel.ID
	displayName string
	approved    bool
	presence    Presence
	guard       guard.ConstructorGuard
}

// NewCourier creates a not yet approved courier without presence data.
func NewCourier(id kernel.ID, displayName string) (*Courier, error) {
	return RestoreCourier(id, displayName, false, Presence{})
}

// RestoreCourier rebuilds a courier from the directory.
func RestoreCourier(id kernel.ID, displayName string, approved bool, presence Presence) (*Courier, error) {
	c := &Courier{
		approved: approved,
		presence: presence,
		guard:    guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		c.setID(id),
		c.setDisplayName(displayName),
	); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate ensures the courier was created through a constructor.
func (c *Courier) Validate() error {
	if c == nil {
		return ErrCourierIsNotConstructed
	}
	return c.guard.Validate(ErrCourierIsNotConstructed)
}

func (c *Courier) ID() kernel.ID {
	return c.id
}

func (c *Courier) DisplayName() string {
	return c.displayName
}

func (c *Courier) IsApproved() bool {
	return c.approved
}

func (c *Courier) Presence() Presence {
	return c.presence
}

// Assignee returns the identity written into orders the courier claims.
func (c *Courier) Assignee() (kernel.ID, string) {
	return c.id, c.displayName
}

// CanOpenSession returns ErrCourierIsNotApproved for unapproved couriers.
func (c *Courier) CanOpenSession() error {
	if !c.approved {
		return ErrCourierIsNotApproved
	}
	return nil
}

func (c *Courier) setID(id kernel.ID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	c.id = id
	return nil
}

func (c *Courier) setDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameIsRequired
	}
	c.displayName = name
	return nil
}
