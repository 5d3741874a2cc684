package orderrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ ports.OrderStore      = (*GormOrderRepository)(nil)
	_ ports.OrderRepository = (*GormOrderRepository)(nil)
)

// GormOrderRepository implements OrderStore and OrderRepository using GORM.
// Pushes come from a ChangeFeed; without one SubscribeAll fails.
type GormOrderRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

func NewGormOrderRepository(db *gorm.DB, feed *ChangeFeed) *GormOrderRepository {
	return &GormOrderRepository{
		db:   db,
		feed: feed,
	}
}

// Add inserts a new order and returns its revision.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) (int64, error) {
	if err := aggregate.Validate(); err != nil {
		return 0, err
	}

	dto := fromDomain(aggregate)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		revision, err := nextRevision(tx)
		if err != nil {
			return err
		}
		dto.Revision = revision
		return tx.Create(&dto).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, errs.NewValueIsInvalidErrorWithCause("order", err)
	}
	if err != nil {
		return 0, errs.NewStoreUnavailableError("add order", err)
	}

	return dto.Revision, nil
}

// Get returns errs.ObjectNotFoundError for unknown ids.
func (r *GormOrderRepository) Get(ctx context.Context, id kernel.ID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, errs.NewStoreUnavailableError("get order", err)
	}

	return toDomain(dto)
}

func (r *GormOrderRepository) FetchAll(ctx context.Context) (ports.Snapshot, error) {
	snapshot, err := fetchAll(ctx, r.db)
	if err != nil {
		return ports.Snapshot{}, errs.NewStoreUnavailableError("fetch all orders", err)
	}
	return snapshot, nil
}

func (r *GormOrderRepository) SubscribeAll(ctx context.Context, onSnapshot ports.SnapshotHandler) (func(), error) {
	if r.feed == nil {
		return nil, errs.NewStoreUnavailableError("subscribe all", errors.New("change feed is not configured"))
	}
	return r.feed.Subscribe(ctx, onSnapshot)
}

// ApplyPatch locks the row, checks the patch against the stored order and
// writes it with a fresh revision in one transaction. Of two concurrent
// claims on the same offer exactly one commits; the other reads the
// committed assignee and fails with order.NotAvailableError.
func (r *GormOrderRepository) ApplyPatch(ctx context.Context, orderID kernel.ID, patch order.Patch) (int64, error) {
	if err := orderID.Validate(); err != nil {
		return 0, err
	}
	if err := patch.Validate(); err != nil {
		return 0, err
	}

	var revision int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dto OrderDTO
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			First(&dto, "id = ?", orderID.String()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewObjectNotFoundError("order", orderID.String())
		}
		if err != nil {
			return err
		}

		current, err := toDomain(dto)
		if err != nil {
			return err
		}
		if err := current.Apply(patch); err != nil {
			return err
		}

		next := fromDomain(current)
		row := tx.Raw(`
			UPDATE orders SET
				status = ?,
				assigned_courier_id = ?,
				assigned_courier_name = ?,
				candidate_courier_ids = CAST(? AS jsonb),
				delivered_at = ?,
				revision = nextval('order_revision_seq')
			WHERE id = ? AND revision = ?
			RETURNING revision
		`,
			next.Status,
			next.AssignedCourierID,
			next.AssignedCourierName,
			candidatesJSON(next.CandidateCourierIDs),
			next.DeliveredAt,
			next.ID,
			dto.Revision,
		).Row()
		if err := row.Scan(&revision); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return order.NewIllegalTransitionError(orderID.String(), current.Status(), patch.Status)
			}
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		return revision, nil
	case errors.Is(err, order.ErrNotAvailable),
		errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, errs.ErrObjectNotFound),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return 0, err
	default:
		return 0, errs.NewStoreUnavailableError("apply patch", err)
	}
}

func nextRevision(tx *gorm.DB) (int64, error) {
	var revision int64
	if err := tx.Raw(`SELECT nextval('order_revision_seq')`).Row().Scan(&revision); err != nil {
		return 0, err
	}
	return revision, nil
}

// fetchAll reads every order in one statement. The snapshot revision is the
// highest row revision.
func fetchAll(ctx context.Context, db *gorm.DB) (ports.Snapshot, error) {
	var dtos []OrderDTO
	if err := db.WithContext(ctx).Order("id").Find(&dtos).Error; err != nil {
		return ports.Snapshot{}, err
	}

	snapshot := ports.Snapshot{Orders: make([]*order.Order, 0, len(dtos))}
	for _, dto := range dtos {
		o, err := toDomain(dto)
		if err != nil {
			return ports.Snapshot{}, err
		}
		snapshot.Orders = append(snapshot.Orders, o)
		snapshot.Revision = max(snapshot.Revision, dto.Revision)
	}

	return snapshot, nil
}

func candidatesJSON(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
