package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mobilefix/internal/repairs/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
	"mobilefix/pkg/requestcontext"
)

const repairColumns = `id, description, request_date, estimated_date, status, cost, device_id, technician_id`

// Postgres persists repairs via database/sql on a shared handle.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed repair store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, repair *models.Repair) error {
	repair.ID = id.NewRepairID()
	if repair.RequestDate.IsZero() {
		now := requestcontext.Now(ctx)
		repair.RequestDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if repair.Status == "" {
		repair.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repairs (id, description, request_date, estimated_date, status, cost, device_id, technician_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		repair.ID.String(), repair.Description, repair.RequestDate, nullTime(repair.EstimatedDate),
		repair.Status.String(), repair.Cost, repair.DeviceID.String(), nullUserID(repair.TechnicianID),
	)
	if err != nil {
		return fmt.Errorf("insert repair: %w", err)
	}
	return nil
}

// Update replaces every column except request_date, which is immutable
// after creation.
func (s *Postgres) Update(ctx context.Context, repair *models.Repair) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repairs SET description = $2, estimated_date = $3, status = $4, cost = $5,
		        device_id = $6, technician_id = $7
		 WHERE id = $1`,
		repair.ID.String(), repair.Description, nullTime(repair.EstimatedDate), repair.Status.String(),
		repair.Cost, repair.DeviceID.String(), nullUserID(repair.TechnicianID),
	)
	if err != nil {
		return fmt.Errorf("update repair: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) FindByID(ctx context.Context, repairID id.RepairID) (*models.Repair, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+repairColumns+` FROM repairs WHERE id = $1`, repairID.String())
	repair, err := scanRepair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return repair, nil
}

func (s *Postgres) ExistsByID(ctx context.Context, repairID id.RepairID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM repairs WHERE id = $1)`, repairID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check repair existence: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs`)
}

func (s *Postgres) ListByDeviceID(ctx context.Context, deviceID id.DeviceID) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs WHERE device_id = $1`, deviceID.String())
}

// ListByDeviceOwnerID joins through devices so the per-owner listing is a
// single query.
func (s *Postgres) ListByDeviceOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Repair, error) {
	return s.findMany(ctx,
		`SELECT r.id, r.description, r.request_date, r.estimated_date, r.status, r.cost, r.device_id, r.technician_id
		 FROM repairs r
		 JOIN devices d ON d.id = r.device_id
		 WHERE d.owner_id = $1`, ownerID.String())
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.Status) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs WHERE status = $1`, status.String())
}

func (s *Postgres) ListByTechnicianID(ctx context.Context, technicianID id.UserID) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs WHERE technician_id = $1`, technicianID.String())
}

func (s *Postgres) ListByStatusAndTechnician(ctx context.Context, status models.Status, technicianID id.UserID) ([]*models.Repair, error) {
	return s.findMany(ctx,
		`SELECT `+repairColumns+` FROM repairs WHERE status = $1 AND technician_id = $2`,
		status.String(), technicianID.String())
}

func (s *Postgres) ListByRequestDateRange(ctx context.Context, from, to time.Time) ([]*models.Repair, error) {
	return s.findMany(ctx,
		`SELECT `+repairColumns+` FROM repairs WHERE request_date BETWEEN $1 AND $2`, from, to)
}

func (s *Postgres) ListUnassigned(ctx context.Context) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs WHERE technician_id IS NULL`)
}

func (s *Postgres) ListAssigned(ctx context.Context) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs WHERE technician_id IS NOT NULL`)
}

func (s *Postgres) CountByTechnicianAndStatus(ctx context.Context, technicianID id.UserID, status models.Status) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repairs WHERE technician_id = $1 AND status = $2`,
		technicianID.String(), status.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count repairs: %w", err)
	}
	return count, nil
}

func (s *Postgres) ListByStatusOrderedByRequestDateDesc(ctx context.Context, status models.Status) ([]*models.Repair, error) {
	return s.findMany(ctx,
		`SELECT `+repairColumns+` FROM repairs WHERE status = $1 ORDER BY request_date DESC`, status.String())
}

func (s *Postgres) ListAllOrderedByCostDesc(ctx context.Context) ([]*models.Repair, error) {
	return s.findMany(ctx, `SELECT `+repairColumns+` FROM repairs ORDER BY cost DESC`)
}

func (s *Postgres) TotalCompletedCostByDevice(ctx context.Context, deviceID id.DeviceID) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM repairs WHERE device_id = $1 AND status = $2`,
		deviceID.String(), models.StatusCompleted.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum repair cost: %w", err)
	}
	return total, nil
}

func (s *Postgres) Delete(ctx context.Context, repairID id.RepairID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repairs WHERE id = $1`, repairID.String())
	if err != nil {
		return fmt.Errorf("delete repair: %w", err)
	}
	return requireRow(res)
}

// DeleteByDeviceID removes every repair on a device; the device store's
// cascade uses it. Zero deletions is not an error.
func (s *Postgres) DeleteByDeviceID(ctx context.Context, deviceID id.DeviceID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repairs WHERE device_id = $1`, deviceID.String())
	if err != nil {
		return fmt.Errorf("delete repairs by device: %w", err)
	}
	return nil
}

// ClearTechnician unassigns the technician from every repair referencing
// them; the user store's delete uses it.
func (s *Postgres) ClearTechnician(ctx context.Context, technicianID id.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE repairs SET technician_id = NULL WHERE technician_id = $1`, technicianID.String())
	if err != nil {
		return fmt.Errorf("clear technician assignments: %w", err)
	}
	return nil
}

func (s *Postgres) findMany(ctx context.Context, query string, args ...any) ([]*models.Repair, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repairs: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Repair, 0)
	for rows.Next() {
		repair, err := scanRepair(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, repair)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRepair(row scanner) (*models.Repair, error) {
	var repair models.Repair
	var rawID, rawStatus, rawDevice string
	var rawTechnician sql.NullString
	var estimated sql.NullTime

	err := row.Scan(&rawID, &repair.Description, &repair.RequestDate, &estimated,
		&rawStatus, &repair.Cost, &rawDevice, &rawTechnician)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan repair: %w", err)
	}

	parsedID, err := id.ParseRepairID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored repair id invalid: %w", err)
	}
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("stored status invalid: %w", err)
	}
	deviceID, err := id.ParseDeviceID(rawDevice)
	if err != nil {
		return nil, fmt.Errorf("stored device id invalid: %w", err)
	}

	repair.ID = parsedID
	repair.Status = status
	repair.DeviceID = deviceID
	if estimated.Valid {
		t := estimated.Time
		repair.EstimatedDate = &t
	}
	if rawTechnician.Valid {
		techID, err := id.ParseUserID(rawTechnician.String)
		if err != nil {
			return nil, fmt.Errorf("stored technician id invalid: %w", err)
		}
		repair.TechnicianID = &techID
	}
	return &repair, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(userID *id.UserID) sql.NullString {
	if userID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: userID.String(), Valid: true}
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
