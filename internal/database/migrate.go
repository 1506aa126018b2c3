package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		user_id        BIGINT       NOT NULL,
		parking_lot_id VARCHAR(255) NOT NULL,
		confirmed      BOOLEAN      NOT NULL DEFAULT FALSE,
		late_at        DATETIME(3)  NOT NULL,
		left_lot       BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at     DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_reservations_parking_lot (parking_lot_id),
		INDEX idx_reservations_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the reservation schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
