package courierrepo

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
)

var (
	_ ports.CourierRepository = (*GormCourierRepository)(nil)
	_ ports.AuthGateway       = (*GormCourierRepository)(nil)
)

// GormCourierRepository implements CourierRepository and AuthGateway using GORM.
type GormCourierRepository struct {
	db *gorm.DB
}

func NewGormCourierRepository(db *gorm.DB) *GormCourierRepository {
	return &GormCourierRepository{db: db}
}

// Add saves a new courier.
func (r *GormCourierRepository) Add(ctx context.Context, aggregate *courier.Courier) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.NewValueIsInvalidErrorWithCause("courier", err)
		}
		return errs.NewStoreUnavailableError("add courier", err)
	}
	return nil
}

// Get returns errs.ObjectNotFoundError for unknown ids.
func (r *GormCourierRepository) Get(ctx context.Context, id kernel.ID) (*courier.Courier, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto CourierDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("courier", id.String())
		}
		return nil, errs.NewStoreUnavailableError("get courier", err)
	}

	return toDomain(dto)
}

// IsApproved reports false for unknown couriers and an error only when the
// database cannot answer.
func (r *GormCourierRepository) IsApproved(ctx context.Context, id kernel.ID) (bool, error) {
	var approved []bool
	err := r.db.WithContext(ctx).
		Model(&CourierDTO{}).
		Where("id = ?", id.String()).
		Limit(1).
		Pluck("approved", &approved).Error
	if err != nil {
		return false, errs.NewStoreUnavailableError("check courier approval", err)
	}
	return len(approved) == 1 && approved[0], nil
}

// SetApproved changes the approval flag. It stands in for the upstream
// administration in tests and seeding.
func (r *GormCourierRepository) SetApproved(ctx context.Context, id kernel.ID, approved bool) error {
	result := r.db.WithContext(ctx).Model(&CourierDTO{}).Where("id = ?", id.String()).Update("approved", approved)
	if result.Error != nil {
		return errs.NewStoreUnavailableError("set courier approval", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("courier", id.String())
	}
	return nil
}

// Migrate creates the couriers table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&CourierDTO{})
}
