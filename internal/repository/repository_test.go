package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupGormRepo creates a repository over a private in-memory SQLite database.
func setupGormRepo(t *testing.T) AccountRepository {
	t.Helper()

	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return NewGormAccountRepository(db)
}

func setupMongoRepo(t *testing.T) AccountRepository {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB repository tests")
	}

	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	db := client.Database("tasktracker_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo, err := NewMongoAccountRepository(ctx, db)
	require.NoError(t, err)
	return repo
}

var backends = map[string]func(t *testing.T) AccountRepository{
	"memory": func(*testing.T) AccountRepository { return NewMemoryAccountRepository() },
	"gorm":   setupGormRepo,
	"mongo":  setupMongoRepo,
}

func newAccount(username string) *model.Account {
	return &model.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "$2a$10$notarealhashbutlongenough",
		Tasks:        []model.Task{},
	}
}

func sampleTask(title string) *model.NewTaskInput {
	return &model.NewTaskInput{
		Title:     title,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Priority:  model.PriorityMedium,
	}
}

func TestAccountRepository(t *testing.T) {
	for name, setup := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("create and find", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()

				acc := newAccount("alice")
				require.NoError(t, repo.Create(ctx, acc))
				assert.Equal(t, int64(1), acc.Version)

				found, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				assert.Equal(t, acc.ID, found.ID)
				assert.Equal(t, "alice@x.com", found.Email)
				assert.NotNil(t, found.Tasks)
				assert.Empty(t, found.Tasks)

				byEmail, err := repo.FindByEmail(ctx, "alice@x.com")
				require.NoError(t, err)
				assert.Equal(t, "alice", byEmail.Username)

				count, err := repo.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(1), count)
			})

			t.Run("unknown account", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()

				_, err := repo.FindByUsername(ctx, "nobody")
				assert.ErrorIs(t, err, model.ErrUserNotFound)
				assert.ErrorIs(t, err, model.ErrNotFound)

				_, err = repo.FindByEmail(ctx, "nobody@x.com")
				assert.ErrorIs(t, err, model.ErrUserNotFound)
			})

			t.Run("duplicate username and email", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()

				require.NoError(t, repo.Create(ctx, newAccount("alice")))

				dupName := newAccount("alice")
				dupName.Email = "other@x.com"
				err := repo.Create(ctx, dupName)
				assert.ErrorIs(t, err, model.ErrUsernameTaken)
				assert.ErrorIs(t, err, model.ErrConflict)

				dupEmail := newAccount("bob")
				dupEmail.Email = "alice@x.com"
				err = repo.Create(ctx, dupEmail)
				assert.ErrorIs(t, err, model.ErrEmailTaken)
			})

			t.Run("persist replaces task document", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, newAccount("alice")))

				acc, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				acc.AppendTask("t1", sampleTask("Buy milk"), time.Now())
				acc.AppendTask("t2", sampleTask("Walk dog"), time.Now())
				require.NoError(t, repo.Persist(ctx, acc))
				assert.Equal(t, int64(2), acc.Version)

				reloaded, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, reloaded.Tasks, 2)
				assert.Equal(t, "Buy milk", reloaded.Tasks[0].Title)
				assert.Equal(t, "Walk dog", reloaded.Tasks[1].Title)
				assert.Equal(t, model.StatusPending, reloaded.Tasks[0].Status)
				assert.True(t, reloaded.Tasks[0].StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

				reloaded.RemoveTask("t1")
				require.NoError(t, repo.Persist(ctx, reloaded))

				final, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, final.Tasks, 1)
				assert.Equal(t, "t2", final.Tasks[0].ID)
			})

			t.Run("stale persist is rejected", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, newAccount("alice")))

				first, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				second, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)

				first.AppendTask("t1", sampleTask("first writer"), time.Now())
				require.NoError(t, repo.Persist(ctx, first))

				second.AppendTask("t2", sampleTask("second writer"), time.Now())
				err = repo.Persist(ctx, second)
				assert.ErrorIs(t, err, model.ErrConcurrentUpdate)
				assert.ErrorIs(t, err, model.ErrConflict)

				stored, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, stored.Tasks, 1)
				assert.Equal(t, "first writer", stored.Tasks[0].Title)
			})

			t.Run("returned accounts are copies", func(t *testing.T) {
				repo := setup(t)
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, newAccount("alice")))

				acc, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				acc.AppendTask("t1", sampleTask("not persisted"), time.Now())

				again, err := repo.FindByUsername(ctx, "alice")
				require.NoError(t, err)
				assert.Empty(t, again.Tasks)
			})
		})
	}
}

func TestMongoDocumentMapping(t *testing.T) {
	acc := newAccount("carol")
	acc.Tasks = nil
	acc.Version = 3

	doc := toDocument(acc)
	assert.NotNil(t, doc.Tasks)
	assert.Equal(t, int64(3), doc.Version)

	back := doc.toModel()
	assert.Equal(t, acc.ID, back.ID)
	assert.Equal(t, acc.PasswordHash, back.PasswordHash)
	assert.NotNil(t, back.Tasks)
}
