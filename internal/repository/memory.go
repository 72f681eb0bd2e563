package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MemoryAccountRepository provides an in-memory storage for accounts.
type MemoryAccountRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*model.Account
	byEmail    map[string]string
}

// NewMemoryAccountRepository creates a new MemoryAccountRepository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byUsername: make(map[string]*model.Account),
		byEmail:    make(map[string]string),
	}
}

// FindByUsername retrieves a copy of the account with the given username.
func (r *MemoryAccountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	_, span := tracer.Start(ctx, "MemoryAccountRepository.FindByUsername",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byUsername[username]
	if !ok {
		span.SetAttributes(attribute.Bool("account.found", false))
		return nil, model.ErrUserNotFound
	}

	span.SetAttributes(attribute.Bool("account.found", true))
	return account.Clone(), nil
}

// FindByEmail retrieves a copy of the account with the given email.
func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	_, span := tracer.Start(ctx, "MemoryAccountRepository.FindByEmail")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byEmail[email]
	if !ok {
		span.SetAttributes(attribute.Bool("account.found", false))
		return nil, model.ErrUserNotFound
	}

	span.SetAttributes(attribute.Bool("account.found", true))
	return r.byUsername[username].Clone(), nil
}

// Create stores a new account.
func (r *MemoryAccountRepository) Create(ctx context.Context, account *model.Account) error {
	_, span := tracer.Start(ctx, "MemoryAccountRepository.Create",
		trace.WithAttributes(attribute.String("account.username", account.Username)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[account.Username]; ok {
		return model.ErrUsernameTaken
	}
	if _, ok := r.byEmail[account.Email]; ok {
		return model.ErrEmailTaken
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Version = 1

	r.byUsername[account.Username] = account.Clone()
	r.byEmail[account.Email] = account.Username

	span.SetAttributes(attribute.String("account.id", account.ID))
	return nil
}

// Persist replaces the stored account if nobody wrote it since it was read.
func (r *MemoryAccountRepository) Persist(ctx context.Context, account *model.Account) error {
	_, span := tracer.Start(ctx, "MemoryAccountRepository.Persist",
		trace.WithAttributes(
			attribute.String("account.username", account.Username),
			attribute.Int64("account.version", account.Version),
			attribute.Int("task.count", len(account.Tasks)),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byUsername[account.Username]
	if !ok {
		return model.ErrUserNotFound
	}
	if stored.Version != account.Version {
		span.SetAttributes(attribute.Bool("account.stale", true))
		return model.ErrConcurrentUpdate
	}

	account.Version++
	account.UpdatedAt = time.Now()
	r.byUsername[account.Username] = account.Clone()
	return nil
}

// Count returns the current number of accounts.
func (r *MemoryAccountRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byUsername)), nil
}
