package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ValidationError reports a malformed request; its message is safe to return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RepositoryAuthService wires the user repository, password hasher and token service.
type RepositoryAuthService struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    *TokenService
	tokenTTL  time.Duration
	logger    *zap.Logger
	dummyHash string
}

func NewRepositoryAuthService(users UserRepository, hasher PasswordHasher, tokens *TokenService, tokenTTL time.Duration, logger *zap.Logger) *RepositoryAuthService {
	// Unknown usernames are checked against this digest so both login failure
	// paths pay for one bcrypt comparison.
	dummy, err := hasher.Hash("authgate-unknown-user")
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}
	return &RepositoryAuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		logger:    logger,
		dummyHash: dummy,
	}
}

// Authenticate checks a username/password pair. Unknown user and wrong
// password are indistinguishable to the caller.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (User, error) {
	// Usernames are stored trimmed by CreateUser.
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return u.User(), nil
}

// Login authenticates and issues a bearer token with the configured TTL.
func (s *RepositoryAuthService) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return TokenResponse{}, err
	}
	token, expiresAt, err := s.tokens.Issue(u.Username, s.tokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	s.logger.Info("user logged in", zap.String("username", u.Username), zap.Time("expires_at", expiresAt))
	return TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// ResolveToken maps a bearer token to its user. A valid token whose subject
// no longer resolves is reported as ErrInvalidToken.
func (s *RepositoryAuthService) ResolveToken(ctx context.Context, token string) (User, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	u, err := s.users.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	return u.User(), nil
}

func (s *RepositoryAuthService) CreateUser(ctx context.Context, req UserCreate) (User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.TrimSpace(req.Role)
	if req.Username == "" || req.Password == "" || req.Role == "" {
		return User{}, &ValidationError{Message: "username, password and user_role are required"}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return User{}, &ValidationError{Message: fmt.Sprintf("password rejected: %v", err)}
	}
	rec := &UserRecord{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, rec); err != nil {
		return User{}, err
	}
	s.logger.Info("user created", zap.String("username", rec.Username), zap.String("role", rec.Role))
	return rec.User(), nil
}

func (s *RepositoryAuthService) ListUsers(ctx context.Context) ([]User, error) {
	recs, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.User())
	}
	return out, nil
}
