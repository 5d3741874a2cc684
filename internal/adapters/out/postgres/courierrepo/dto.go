// Package courierrepo reads couriers and their approval from PostgreSQL.
package courierrepo

import (
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
)

// CourierDTO is one row of the couriers table. Approval is owned by the
// upstream courier administration; this service only reads it.
type CourierDTO struct {
	ID          string `gorm:"type:text;primaryKey"`
	DisplayName string `gorm:"type:varchar(255);not null"`
	Approved    bool   `gorm:"not null;default:false"`
	Online      bool   `gorm:"not null;default:false"`
	Active      bool   `gorm:"not null;default:false"`
	LastSeen    int64  `gorm:"not null;default:0"`
}

func (CourierDTO) TableName() string {
	return "couriers"
}

func fromDomain(c *courier.Courier) CourierDTO {
	presence := c.Presence()
	return CourierDTO{
		ID:          c.ID().String(),
		DisplayName: c.DisplayName(),
		Approved:    c.IsApproved(),
		Online:      presence.Online,
		Active:      presence.Active,
		LastSeen:    presence.LastSeen,
	}
}

func toDomain(dto CourierDTO) (*courier.Courier, error) {
	id, err := kernel.IDFromString(dto.ID)
	if err != nil {
		return nil, err
	}

	return courier.RestoreCourier(id, dto.DisplayName, dto.Approved, courier.Presence{
		Online:   dto.Online,
		Active:   dto.Active,
		LastSeen: dto.LastSeen,
	})
}
