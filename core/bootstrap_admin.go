package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// BootstrapUser describes the account Bootstrap ensures exists.
type BootstrapUser struct {
	Username string
	Password string
	Role     string
	Email    string
	FullName string
}

// Bootstrap creates u unless a user with the same username already exists.
// It is idempotent and safe to run concurrently: the existence check is
// repeated atomically by the insert.
func Bootstrap(ctx context.Context, repo UserRepository, hasher PasswordHasher, u BootstrapUser) (bool, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || u.Password == "" || strings.TrimSpace(u.Role) == "" {
		return false, errors.New("bootstrap user needs username, password and role")
	}

	if _, err := repo.FindByUsername(ctx, u.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(u.Password)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	rec := &UserRecord{
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: hash,
		Role:         strings.TrimSpace(u.Role),
	}
	if err := repo.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BootstrapAdmin creates the configured admin account at API startup.
// When no password is configured one is generated and written to
// cfg.InitialAdminPasswordPath, or logged when that is empty.
func BootstrapAdmin(ctx context.Context, repo UserRepository, hasher PasswordHasher, cfg Config, logger *zap.Logger) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		p, err := generatePassword(24)
		if err != nil {
			return err
		}
		password = p
		generated = true
	}

	created, err := Bootstrap(ctx, repo, hasher, BootstrapUser{
		Username: cfg.AdminUsername,
		Password: password,
		Role:     RoleAdmin,
		Email:    "admin@example.com",
		FullName: "Administrator",
	})
	if err != nil {
		return err
	}
	if !created {
		logger.Debug("bootstrap admin already present", zap.String("username", cfg.AdminUsername))
		return nil
	}
	if !generated {
		logger.Info("initial admin created", zap.String("username", cfg.AdminUsername))
		return nil
	}

	if cfg.InitialAdminPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		logger.Info("initial admin created; credentials written to file",
			zap.String("username", cfg.AdminUsername), zap.String("path", cfg.InitialAdminPasswordPath))
	} else {
		logger.Info("initial admin created",
			zap.String("username", cfg.AdminUsername), zap.String("password", password))
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
