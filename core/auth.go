package core

import (
	"context"
	"errors"
	"time"
)

// Well-known roles. Any other non-empty string is a valid role that simply
// passes neither gate.
const (
	RoleAdmin  = "admin"
	RoleAITeam = "ai_team"
)

// User represents an authenticated principal returned to handlers.
type User struct {
	ID        int64
	Username  string
	Email     string
	FullName  string
	Role      string
	CreatedAt time.Time
}

// View is the public projection of u. It never carries the password hash.
func (u User) View() UserView {
	return UserView{
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers every reason a bearer token is rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned by repositories when no row matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a create collides with an existing username.
	ErrUsernameTaken = errors.New("username already registered")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (User, error)
	Login(ctx context.Context, username, password string) (TokenResponse, error)
	ResolveToken(ctx context.Context, token string) (User, error)
	CreateUser(ctx context.Context, req UserCreate) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
