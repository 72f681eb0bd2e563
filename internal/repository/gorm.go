package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// accountRecord is the row layout: identity columns plus the task list kept
// as a single JSON document, so an account is still written in one statement.
type accountRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;not null;size:100"`
	Email        string `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string `gorm:"not null"`
	ProfileImage string `gorm:"not null;default:''"`
	Tasks        string `gorm:"type:text;not null"`
	Version      int64  `gorm:"not null;default:1"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for accountRecord.
func (accountRecord) TableName() string {
	return "accounts"
}

func toRecord(a *model.Account) (*accountRecord, error) {
	tasks, err := json.Marshal(a.TaskList())
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return &accountRecord{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		ProfileImage: a.ProfileImage,
		Tasks:        string(tasks),
		Version:      a.Version,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}, nil
}

func (rec *accountRecord) toModel() (*model.Account, error) {
	tasks := []model.Task{}
	if rec.Tasks != "" {
		if err := json.Unmarshal([]byte(rec.Tasks), &tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks of %q: %w", rec.Username, err)
		}
	}
	return &model.Account{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		ProfileImage: rec.ProfileImage,
		Tasks:        tasks,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// OpenSQLite opens (or creates) a SQLite database and migrates the accounts table.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the accounts table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&accountRecord{}); err != nil {
		return fmt.Errorf("failed to migrate accounts table: %w", err)
	}
	return nil
}

// GormAccountRepository handles account persistence using GORM.
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository.
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByUsername finds an account by username.
func (r *GormAccountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "GormAccountRepository.FindByUsername",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	return r.first(ctx, span, "username = ?", username)
}

// FindByEmail finds an account by email.
func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "GormAccountRepository.FindByEmail")
	defer span.End()

	return r.first(ctx, span, "email = ?", email)
}

func (r *GormAccountRepository) first(ctx context.Context, span trace.Span, query string, arg any) (*model.Account, error) {
	var rec accountRecord
	if err := r.db.WithContext(ctx).First(&rec, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetAttributes(attribute.Bool("account.found", false))
			return nil, model.ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	span.SetAttributes(attribute.Bool("account.found", true))
	return rec.toModel()
}

// Create inserts a new account row.
func (r *GormAccountRepository) Create(ctx context.Context, account *model.Account) error {
	ctx, span := tracer.Start(ctx, "GormAccountRepository.Create",
		trace.WithAttributes(attribute.String("account.username", account.Username)),
	)
	defer span.End()

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Version = 1

	rec, err := toRecord(account)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return r.duplicateError(ctx, account)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// duplicateError works out which unique column collided.
func (r *GormAccountRepository) duplicateError(ctx context.Context, account *model.Account) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&accountRecord{}).
		Where("username = ?", account.Username).Count(&count).Error; err == nil && count > 0 {
		return model.ErrUsernameTaken
	}
	if err := r.db.WithContext(ctx).Model(&accountRecord{}).
		Where("email = ?", account.Email).Count(&count).Error; err == nil && count > 0 {
		return model.ErrEmailTaken
	}
	return model.ErrAccountExists
}

// Persist rewrites the account row, including the whole task document, if the
// stored version still matches.
func (r *GormAccountRepository) Persist(ctx context.Context, account *model.Account) error {
	ctx, span := tracer.Start(ctx, "GormAccountRepository.Persist",
		trace.WithAttributes(
			attribute.String("account.username", account.Username),
			attribute.Int64("account.version", account.Version),
			attribute.Int("task.count", len(account.Tasks)),
		),
	)
	defer span.End()

	rec, err := toRecord(account)
	if err != nil {
		return err
	}
	now := time.Now()

	result := r.db.WithContext(ctx).Model(&accountRecord{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]any{
			"email":         rec.Email,
			"password_hash": rec.PasswordHash,
			"profile_image": rec.ProfileImage,
			"tasks":         rec.Tasks,
			"version":       account.Version + 1,
			"updated_at":    now,
		})
	if err := result.Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to persist account: %w", err)
	}
	if result.RowsAffected == 0 {
		span.SetAttributes(attribute.Bool("account.stale", true))
		return model.ErrConcurrentUpdate
	}

	account.Version++
	account.UpdatedAt = now
	return nil
}

// Count returns the number of accounts.
func (r *GormAccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&accountRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
