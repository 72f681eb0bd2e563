// Package repository persists accounts, each as one document holding the
// embedded task list.
package repository

import (
	"context"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-task-tracker/internal/repository")

// AccountRepository is the account store. Persist replaces the whole account
// document and succeeds only when the stored version still equals
// account.Version; on success it increments account.Version.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	Persist(ctx context.Context, account *model.Account) error
	Count(ctx context.Context) (int64, error)
}
