package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	usersCollection   = "users"
	usernameIndexName = "username_unique"
	emailIndexName    = "email_unique"
)

// accountDocument is the BSON layout of one user document.
type accountDocument struct {
	ID           string       `bson:"_id"`
	Username     string       `bson:"username"`
	Email        string       `bson:"email"`
	PasswordHash string       `bson:"password"`
	ProfileImage string       `bson:"profileImage"`
	Tasks        []model.Task `bson:"tasks"`
	Version      int64        `bson:"version"`
	CreatedAt    time.Time    `bson:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt"`
}

func toDocument(a *model.Account) *accountDocument {
	return &accountDocument{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		ProfileImage: a.ProfileImage,
		Tasks:        a.TaskList(),
		Version:      a.Version,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d *accountDocument) toModel() *model.Account {
	tasks := d.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &model.Account{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		ProfileImage: d.ProfileImage,
		Tasks:        tasks,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// MongoAccountRepository stores one document per account in the users collection.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

// NewMongoAccountRepository creates the repository and ensures the unique
// username and email indexes exist.
func NewMongoAccountRepository(ctx context.Context, db *mongo.Database) (*MongoAccountRepository, error) {
	coll := db.Collection(usersCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndexName),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndexName),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user indexes: %w", err)
	}
	return &MongoAccountRepository{coll: coll}, nil
}

// FindByUsername finds an account by username.
func (r *MongoAccountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "MongoAccountRepository.FindByUsername",
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	defer span.End()

	return r.findOne(ctx, span, bson.M{"username": username})
}

// FindByEmail finds an account by email.
func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "MongoAccountRepository.FindByEmail")
	defer span.End()

	return r.findOne(ctx, span, bson.M{"email": email})
}

func (r *MongoAccountRepository) findOne(ctx context.Context, span trace.Span, filter bson.M) (*model.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			span.SetAttributes(attribute.Bool("account.found", false))
			return nil, model.ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	span.SetAttributes(attribute.Bool("account.found", true))
	return doc.toModel(), nil
}

// Create inserts a new account document.
func (r *MongoAccountRepository) Create(ctx context.Context, account *model.Account) error {
	ctx, span := tracer.Start(ctx, "MongoAccountRepository.Create",
		trace.WithAttributes(attribute.String("account.username", account.Username)),
	)
	defer span.End()

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Version = 1

	if _, err := r.coll.InsertOne(ctx, toDocument(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			switch {
			case strings.Contains(err.Error(), usernameIndexName):
				return model.ErrUsernameTaken
			case strings.Contains(err.Error(), emailIndexName):
				return model.ErrEmailTaken
			default:
				return model.ErrAccountExists
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Persist replaces the account document if the stored version still matches.
func (r *MongoAccountRepository) Persist(ctx context.Context, account *model.Account) error {
	ctx, span := tracer.Start(ctx, "MongoAccountRepository.Persist",
		trace.WithAttributes(
			attribute.String("account.username", account.Username),
			attribute.Int64("account.version", account.Version),
			attribute.Int("task.count", len(account.Tasks)),
		),
	)
	defer span.End()

	next := toDocument(account)
	next.Version = account.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": account.ID, "version": account.Version}, next)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to persist account: %w", err)
	}
	if res.MatchedCount == 0 {
		span.SetAttributes(attribute.Bool("account.stale", true))
		return model.ErrConcurrentUpdate
	}

	account.Version = next.Version
	account.UpdatedAt = next.UpdatedAt
	return nil
}

// Count returns the number of account documents.
func (r *MongoAccountRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}
