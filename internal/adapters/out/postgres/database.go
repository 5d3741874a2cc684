// Package postgres opens the dispatch database and prepares its schema.
//
// Usage:
//
//	dsn := postgres.DSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)
//	db, err := postgres.Open(dsn)
//	if err != nil {
//	    return err
//	}
//	if err := postgres.Migrate(ctx, db, cfg.OrdersNotifyChannel); err != nil {
//	    return err
//	}
//
// The same DSN is handed to orderrepo.NewChangeFeed, which keeps its own
// lib/pq connection for LISTEN.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"dispatch/internal/adapters/out/postgres/courierrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"

	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a key/value connection string understood by both pgx and lib/pq.
func DSN(host, port, user, password, dbname, sslmode string) string {
	parts := []string{
		"host=" + quote(host),
		"port=" + quote(port),
		"user=" + quote(user),
		"password=" + quote(password),
		"dbname=" + quote(dbname),
	}
	if sslmode != "" {
		parts = append(parts, "sslmode="+quote(sslmode))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Open connects with duplicate-key errors translated to gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgresdriver.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates the couriers and orders tables, the revision sequence and
// the change trigger.
func Migrate(ctx context.Context, db *gorm.DB, notifyChannel string) error {
	if err := courierrepo.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate couriers: %w", err)
	}
	if err := orderrepo.Migrate(ctx, db, notifyChannel); err != nil {
		return err
	}
	return nil
}
