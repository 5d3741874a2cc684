package orderrepo

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel fed by the orders trigger.
const DefaultNotifyChannel = "orders_changed"

// Migrate creates the orders table, the revision sequence and the trigger
// that notifies channel on every row change.
func Migrate(ctx context.Context, db *gorm.DB, channel string) error {
	if channel == "" {
		channel = DefaultNotifyChannel
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&OrderDTO{}); err != nil {
			return fmt.Errorf("failed to migrate orders table: %w", err)
		}

		statements := []string{
			`CREATE SEQUENCE IF NOT EXISTS order_revision_seq`,
			`CREATE OR REPLACE FUNCTION notify_orders_changed() RETURNS trigger AS $$
			BEGIN
				PERFORM pg_notify(TG_ARGV[0], COALESCE(NEW.id, OLD.id));
				RETURN NULL;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS orders_changed ON orders`,
			fmt.Sprintf(`CREATE TRIGGER orders_changed
				AFTER INSERT OR UPDATE OR DELETE ON orders
				FOR EACH ROW EXECUTE FUNCTION notify_orders_changed(%s)`, pq.QuoteLiteral(channel)),
		}
		for _, statement := range statements {
			if err := tx.Exec(statement).Error; err != nil {
				return fmt.Errorf("failed to migrate orders trigger: %w", err)
			}
		}
		return nil
	})
}
