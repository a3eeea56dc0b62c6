package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/model"
	"github.com/albizan/shortify-backend/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore persists accounts in the users table.
type UserStore struct {
	db *DB
}

const userColumns = `id, name, email, password, is_active, created_at, updated_at`

// Create inserts a new user, filling in ID and both timestamps.
// A duplicate email returns apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exists")
		}
		return fmt.Errorf("sqldb: creating user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqldb: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail matches the address exactly as stored.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMsg("user not found")
		}
		return nil, fmt.Errorf("sqldb: getting user by email: %w", err)
	}
	return user, nil
}

// Activate sets is_active. Activating an already active user succeeds.
func (s *UserStore) Activate(ctx context.Context, id string) error {
	res, err := s.db.exec(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		true, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqldb: activating user %s: %w", id, err)
	}
	return expectOneRow(res, "user", id)
}

// Update writes every mutable column of user and bumps UpdatedAt.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := s.db.exec(ctx,
		`UPDATE users SET name = ?, email = ?, password = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exists")
		}
		return fmt.Errorf("sqldb: updating user %s: %w", user.ID, err)
	}
	return expectOneRow(res, "user", user.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// expectOneRow turns a zero-row UPDATE or DELETE into NotFound.
func expectOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
