// Package service orchestrates account management: creation, lookups,
// updates, and the cascading delete that removes a user's devices and
// their repairs.
package service

import (
	"context"
	"errors"
	"log/slog"

	"mobilefix/internal/audit"
	"mobilefix/internal/platform/metrics"
	"mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
	"mobilefix/pkg/platform/sentinel"
)

// UserStore is the persistence contract the service needs. Both the memory
// and Postgres stores satisfy it.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	ExistsByID(ctx context.Context, userID id.UserID) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, userID id.UserID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns user lifecycle rules.
type Service struct {
	users          UserStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(users UserStore, opts ...Option) *Service {
	s := &Service{users: users}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers an account. Username and email must be unused.
func (s *Service) Create(ctx context.Context, username, email, password, role string) (*models.View, error) {
	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := models.NewUser(username, email, password, parsedRole)
	if err != nil {
		return nil, err
	}

	// Friendly pre-checks; the store's unique constraints close the race.
	taken, err := s.users.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
	}
	taken, err = s.users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logAudit(ctx, audit.ActionUserCreated, "user", user.ID.String(), user.Username)
	s.metrics.IncrementUsersCreated()

	return models.NewView(user), nil
}

// GetByID returns a single user.
func (s *Service) GetByID(ctx context.Context, userID id.UserID) (*models.View, error) {
	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewView(user), nil
}

// GetByUsername returns the user holding the given username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.View, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get user")
	}
	return models.NewView(user), nil
}

// GetByEmail returns the user registered under the given email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.View, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get user")
	}
	return models.NewView(user), nil
}

// ListByRole filters accounts by role. An unknown role is rejected, not
// treated as an empty filter.
func (s *Service) ListByRole(ctx context.Context, role string) ([]*models.View, error) {
	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByRole(ctx, parsedRole)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return views(users), nil
}

// ListAll returns every account.
func (s *Service) ListAll(ctx context.Context) ([]*models.View, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return views(users), nil
}

// ExistsByUsername reports whether the username is taken.
func (s *Service) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	return exists, nil
}

// ExistsByEmail reports whether the email is registered.
func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	return exists, nil
}

// Update replaces the account's fields. A blank password keeps the stored
// one; a non-blank password must meet the usual rule.
func (s *Service) Update(ctx context.Context, userID id.UserID, username, email, password, role string) (*models.View, error) {
	existing, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	if password == "" {
		password = existing.Password
	}
	updated, err := models.NewUser(username, email, password, parsedRole)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID

	if updated.Username != existing.Username {
		taken, err := s.users.ExistsByUsername(ctx, updated.Username)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
		}
		if taken {
			return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
		}
	}
	if updated.Email != existing.Email {
		taken, err := s.users.ExistsByEmail(ctx, updated.Email)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		if taken {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
	}

	if err := s.users.Update(ctx, updated); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "username or email is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}

	s.logAudit(ctx, audit.ActionUserUpdated, "user", updated.ID.String(), updated.Username)

	return models.NewView(updated), nil
}

// Delete removes the account, its devices, and their repairs. Repairs the
// user was assigned to as technician are unassigned, not deleted.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user")
	}

	s.logAudit(ctx, audit.ActionUserDeleted, "user", userID.String(), "")
	return nil
}

func (s *Service) findByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get user")
	}
	return user, nil
}

func (s *Service) logAudit(ctx context.Context, action, entity, entityID, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"entity", entity,
			"entity_id", entityID,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	})
}

func views(users []*models.User) []*models.View {
	out := make([]*models.View, 0, len(users))
	for _, u := range users {
		out = append(out, models.NewView(u))
	}
	return out
}
