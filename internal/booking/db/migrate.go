package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-rental/internal/models"
)

// Migrate creates the bookings table when it is missing. Dev and test
// bootstrap only; the SQL migrations own the production schema, including the
// range-exclusion constraint.
func Migrate(ctx context.Context, bunDB *bun.DB) error {
	_, err := bunDB.NewCreateTable().
		Model((*models.Booking)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
