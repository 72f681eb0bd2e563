// Package service holds the account and task-list operations. Every task
// operation resolves the owning account by username, mutates its embedded
// list in memory and persists the whole account.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-task-tracker/internal/auth"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-task-tracker/internal/service")

const (
	// Minimum is counted in characters.
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// AuthResult is returned by Register and Authenticate.
type AuthResult struct {
	Token string `json:"token"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64                `json:"expiresIn"`
	User      model.AccountSummary `json:"user"`
}

// AccountService handles registration and authentication.
type AccountService struct {
	repo   repository.AccountRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo repository.AccountRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager) *AccountService {
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account and issues a session token.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Register")
	defer span.End()

	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, model.ErrRequiredFields
	}
	// Display-name forms parse too; only a bare address is accepted.
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, model.ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return nil, model.ErrPasswordTooLong
	}
	span.SetAttributes(attribute.String("account.username", username))

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Tasks:        []model.Task{},
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	return s.issue(account)
}

func (s *AccountService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return model.ErrUsernameTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

// Authenticate verifies an email/password pair and issues a session token.
// Unknown email and wrong password fail identically.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Authenticate")
	defer span.End()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.ErrRequiredFields
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if !s.Verify(account, password) {
		span.SetAttributes(attribute.Bool("auth.password_match", false))
		return nil, model.ErrInvalidCredentials
	}

	return s.issue(account)
}

// Verify compares a candidate password against the account's stored hash.
func (s *AccountService) Verify(account *model.Account, candidate string) bool {
	return s.hasher.Verify(candidate, account.PasswordHash)
}

// Profile returns the public view of an account.
func (s *AccountService) Profile(ctx context.Context, username string) (*model.AccountSummary, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Profile",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	summary := account.Summary()
	return &summary, nil
}

func (s *AccountService) issue(account *model.Account) (*AuthResult, error) {
	token, err := s.tokens.Generate(account.ID, account.Username, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresIn: s.tokens.TTL(), User: account.Summary()}, nil
}
