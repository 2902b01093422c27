package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
)

// Postgres unique_violation error code, translated to sentinel.ErrConflict
// so the service never sees driver detail.
const uniqueViolation = "23505"

// Postgres persists users via database/sql. The UNIQUE constraints on
// username and email are the final authority on uniqueness; the service's
// check-then-insert is only a fast path for friendly errors.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed user store on a shared handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	user.ID = id.NewUserID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, role) VALUES ($1, $2, $3, $4, $5)`,
		user.ID.String(), user.Username, user.Email, user.Password, user.Role.String(),
	)
	if err != nil {
		return translateErr(err, "insert user")
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $2, email = $3, password = $4, role = $5 WHERE id = $1`,
		user.ID.String(), user.Username, user.Email, user.Password, user.Role.String(),
	)
	if err != nil {
		return translateErr(err, "update user")
	}
	return requireRow(res)
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, `SELECT id, username, email, password, role FROM users WHERE id = $1`, userID.String())
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `SELECT id, username, email, password, role FROM users WHERE username = $1`, username)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT id, username, email, password, role FROM users WHERE email = $1`, email)
}

func (s *Postgres) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return s.findMany(ctx, `SELECT id, username, email, password, role FROM users WHERE role = $1`, role.String())
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.findMany(ctx, `SELECT id, username, email, password, role FROM users`)
}

func (s *Postgres) ExistsByID(ctx context.Context, userID id.UserID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID.String())
}

func (s *Postgres) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *Postgres) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

// Delete removes the user and its ownership subtree in one transaction:
// repairs of owned devices first, then the devices, then the user. Repairs
// assigned to the user as technician are unassigned, not deleted.
func (s *Postgres) Delete(ctx context.Context, userID id.UserID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	uid := userID.String()
	if _, err := tx.ExecContext(ctx,
		`UPDATE repairs SET technician_id = NULL WHERE technician_id = $1`, uid); err != nil {
		return fmt.Errorf("clear technician assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM repairs WHERE device_id IN (SELECT id FROM devices WHERE owner_id = $1)`, uid); err != nil {
		return fmt.Errorf("cascade repairs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM devices WHERE owner_id = $1`, uid); err != nil {
		return fmt.Errorf("cascade devices: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	var rawID, rawRole string
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&rawID, &user.Username, &user.Email, &user.Password, &rawRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := hydrate(&user, rawID, rawRole); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Postgres) findMany(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		var user models.User
		var rawID, rawRole string
		if err := rows.Scan(&rawID, &user.Username, &user.Email, &user.Password, &rawRole); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if err := hydrate(&user, rawID, rawRole); err != nil {
			return nil, err
		}
		result = append(result, &user)
	}
	return result, rows.Err()
}

func (s *Postgres) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return exists, nil
}

// hydrate rejects rows whose stored role left the closed enum set; that is
// a data-integrity error, not a default.
func hydrate(user *models.User, rawID, rawRole string) error {
	parsedID, err := id.ParseUserID(rawID)
	if err != nil {
		return fmt.Errorf("stored user id invalid: %w", err)
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return fmt.Errorf("stored role invalid: %w", err)
	}
	user.ID = parsedID
	user.Role = role
	return nil
}

func translateErr(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
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
