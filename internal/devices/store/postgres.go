package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mobilefix/internal/devices/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
)

// Postgres persists devices via database/sql on a shared handle.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed device store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, device *models.Device) error {
	device.ID = id.NewDeviceID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, brand, model, owner_id) VALUES ($1, $2, $3, $4)`,
		device.ID.String(), device.Brand, device.Model, device.OwnerID.String(),
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, device *models.Device) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET brand = $2, model = $3, owner_id = $4 WHERE id = $1`,
		device.ID.String(), device.Brand, device.Model, device.OwnerID.String(),
	)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) FindByID(ctx context.Context, deviceID id.DeviceID) (*models.Device, error) {
	var device models.Device
	var rawID, rawOwner string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand, model, owner_id FROM devices WHERE id = $1`, deviceID.String(),
	).Scan(&rawID, &device.Brand, &device.Model, &rawOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find device: %w", err)
	}
	if err := hydrate(&device, rawID, rawOwner); err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.Device, error) {
	return s.findMany(ctx, `SELECT id, brand, model, owner_id FROM devices`)
}

func (s *Postgres) ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Device, error) {
	return s.findMany(ctx, `SELECT id, brand, model, owner_id FROM devices WHERE owner_id = $1`, ownerID.String())
}

func (s *Postgres) ListByBrand(ctx context.Context, brand string) ([]*models.Device, error) {
	return s.findMany(ctx, `SELECT id, brand, model, owner_id FROM devices WHERE brand = $1`, brand)
}

func (s *Postgres) ListByBrandAndModel(ctx context.Context, brand, model string) ([]*models.Device, error) {
	return s.findMany(ctx,
		`SELECT id, brand, model, owner_id FROM devices WHERE brand = $1 AND model = $2`, brand, model)
}

func (s *Postgres) CountByOwnerID(ctx context.Context, ownerID id.UserID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE owner_id = $1`, ownerID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return count, nil
}

func (s *Postgres) ExistsByID(ctx context.Context, deviceID id.DeviceID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, deviceID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check device existence: %w", err)
	}
	return exists, nil
}

// Delete removes the device and its repairs in one transaction, repairs
// first.
func (s *Postgres) Delete(ctx context.Context, deviceID id.DeviceID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete device: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	did := deviceID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM repairs WHERE device_id = $1`, did); err != nil {
		return fmt.Errorf("cascade repairs: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, did)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteByOwnerID removes every device owned by a user along with their
// repairs. Used by the user store's cascade; zero deletions is not an
// error.
func (s *Postgres) DeleteByOwnerID(ctx context.Context, ownerID id.UserID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete devices by owner: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	uid := ownerID.String()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM repairs WHERE device_id IN (SELECT id FROM devices WHERE owner_id = $1)`, uid); err != nil {
		return fmt.Errorf("cascade repairs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE owner_id = $1`, uid); err != nil {
		return fmt.Errorf("delete devices: %w", err)
	}

	return tx.Commit()
}

func (s *Postgres) findMany(ctx context.Context, query string, args ...any) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Device, 0)
	for rows.Next() {
		var device models.Device
		var rawID, rawOwner string
		if err := rows.Scan(&rawID, &device.Brand, &device.Model, &rawOwner); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		if err := hydrate(&device, rawID, rawOwner); err != nil {
			return nil, err
		}
		result = append(result, &device)
	}
	return result, rows.Err()
}

func hydrate(device *models.Device, rawID, rawOwner string) error {
	parsedID, err := id.ParseDeviceID(rawID)
	if err != nil {
		return fmt.Errorf("stored device id invalid: %w", err)
	}
	ownerID, err := id.ParseUserID(rawOwner)
	if err != nil {
		return fmt.Errorf("stored owner id invalid: %w", err)
	}
	device.ID = parsedID
	device.OwnerID = ownerID
	return nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
