package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-rental/internal/models"
)

// ErrNotFound is returned when no vehicle matches the lookup.
var ErrNotFound = errors.New("vehicle not found")

// DB is the vehicle catalog store. The booking flow consumes it only for
// existence and pricing; hosts manage their listings through it.
type DB struct {
	Bun *bun.DB
}

// FindVehicleByID → fetch one active vehicle by id
func (d *DB) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := d.Bun.NewSelect().
		Model(&vehicle).
		Where("id = ?", id).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListVehicles → paginated listing of active vehicles
func (d *DB) ListVehicles(ctx context.Context, limit, offset int) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := d.Bun.NewSelect().
		Model(&vehicles).
		Where("active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	return vehicles, nil
}

// CreateVehicle → insert a new listing
func (d *DB) CreateVehicle(ctx context.Context, vehicle models.Vehicle) error {
	_, err := d.Bun.NewInsert().Model(&vehicle).Exec(ctx)
	return err
}

// Migrate creates the vehicles table when it is missing (dev/test bootstrap).
func Migrate(ctx context.Context, bunDB *bun.DB) error {
	_, err := bunDB.NewCreateTable().
		Model((*models.Vehicle)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
