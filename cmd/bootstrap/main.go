// Command bootstrap ensures a single user account exists. Running it again
// with the same username is a no-op.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"authgate-prototype/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	user, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "bootstrap.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer func() { _ = logger.Sync() }()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	created, err := core.Bootstrap(ctx, core.NewPgUserRepository(db), core.NewBcryptHasher(cfg.BcryptCost), user)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	if created {
		logger.Info("user created", zap.String("username", user.Username), zap.String("role", user.Role))
	} else {
		logger.Info("user already exists; nothing to do", zap.String("username", user.Username))
	}
}

// parseFlags reads the account to bootstrap. Username and password default to
// the configured admin so a CONFIG_FILE value is honoured.
func parseFlags(cfg core.Config, args []string) (core.BootstrapUser, error) {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	username := fs.String("username", cfg.AdminUsername, "username to create")
	password := fs.String("password", cfg.AdminPassword, "plaintext password (defaults to admin_password / $ADMIN_PASSWORD)")
	role := fs.String("role", core.RoleAdmin, "role to assign")
	email := fs.String("email", "admin@example.com", "email address")
	fullName := fs.String("full-name", "Administrator", "display name")
	if err := fs.Parse(args); err != nil {
		return core.BootstrapUser{}, err
	}
	return core.BootstrapUser{
		Username: *username,
		Password: *password,
		Role:     *role,
		Email:    *email,
		FullName: *fullName,
	}, nil
}
