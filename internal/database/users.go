package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"microblog/internal/models"
)

const userColumns = `id, username, email, password, is_admin`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var password sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &password, &u.IsAdmin); err != nil {
		return nil, err
	}
	u.PasswordHash = password.String
	return &u, nil
}

func (d *DB) queryUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(d.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts u, assigning it a new id. An empty PasswordHash is
// stored as NULL.
func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = uuid.NewString()
	var password sql.NullString
	if u.PasswordHash != "" {
		password = sql.NullString{String: u.PasswordHash, Valid: true}
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, is_admin, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, password, u.IsAdmin, toUnix(time.Now()))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q/%q: %w", u.Username, u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUserByID returns the user with id, or nil.
func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := d.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	return u, nil
}

// GetAdminByUsername returns the admin account called username, or nil.
func (d *DB) GetAdminByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := d.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? AND is_admin = 1`, username)
	if err != nil {
		return nil, fmt.Errorf("querying admin %s: %w", username, err)
	}
	return u, nil
}

// FindUserByUsernameOrEmail returns the oldest user whose username or email
// matches, or nil.
func (d *DB) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	u, err := d.queryUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		username, email)
	if err != nil {
		return nil, fmt.Errorf("querying user %s/%s: %w", username, email, err)
	}
	return u, nil
}

// UpsertAdmin creates u as an admin unless a user with the same email
// already exists, in which case the existing row is returned untouched.
func (d *DB) UpsertAdmin(ctx context.Context, u *models.User) (*models.User, bool, error) {
	existing, err := d.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, u.Email)
	if err != nil {
		return nil, false, fmt.Errorf("querying user %s: %w", u.Email, err)
	}
	if existing != nil {
		return existing, false, nil
	}
	u.IsAdmin = true
	if err := d.CreateUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}
