package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord is the row stored in the users table.
type UserRecord struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// User drops the password hash.
func (r UserRecord) User() User {
	return User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		FullName:  r.FullName,
		Role:      r.Role,
		CreatedAt: r.CreatedAt,
	}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// FindByUsername returns ErrUserNotFound when no row matches.
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	// Create inserts rec and fills ID/CreatedAt. It returns ErrUsernameTaken
	// when the username already exists; the check and the insert are one statement.
	Create(ctx context.Context, rec *UserRecord) error
	List(ctx context.Context) ([]UserRecord, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, username, email, full_name, password_hash, role, created_at FROM users WHERE username=$1`
	var u UserRecord
	err := r.db.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, rec *UserRecord) error {
	const q = `INSERT INTO users (username, email, full_name, password_hash, role)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (username) DO NOTHING
RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, rec.Username, rec.Email, rec.FullName, rec.PasswordHash, rec.Role).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user %q: %w", rec.Username, err)
	}
	return nil
}

// List returns every user ordered by id.
func (r *PgUserRepository) List(ctx context.Context) ([]UserRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, username, email, full_name, password_hash, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	items := make([]UserRecord, 0)
	for rows.Next() {
		var u UserRecord
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
