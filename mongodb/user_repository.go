package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/lunatv/authd/domain"
)

const connectTimeout = 10 * time.Second

// UserRepository implements domain.UserRepository on MongoDB. Uniqueness of
// usernames and LinuxDo linkage is enforced by indexes, making the insert
// the authority on conflicts rather than any prior existence check.
type UserRepository struct {
	client  *mongo.Client
	users   *mongo.Collection
	pending *mongo.Collection
}

// NewUserRepository connects to MongoDB and ensures the indexes the
// uniqueness invariants depend on.
func NewUserRepository(ctx context.Context, uri, dbName string) (*UserRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetMonitor(otelmongo.NewMonitor())
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(dbName)
	repo := &UserRepository{
		client:  client,
		users:   db.Collection(UsersCollection),
		pending: db.Collection(PendingUsersCollection),
	}
	if err := repo.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Partial so accounts without a linkage don't collide on the
			// missing field.
			Keys: bson.D{{Key: "linuxdo_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"linuxdo_id": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = r.pending.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create pending user index: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (r *UserRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *UserRepository) UserExists(ctx context.Context, username string) (bool, error) {
	count, err := r.users.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, account *domain.Account) error {
	_, err := r.users.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "linuxdo_id") {
				return domain.ErrIdentityLinked
			}
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByLinuxDoID(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	err := r.users.FindOne(ctx, bson.M{"linuxdo_id": id}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by linuxdo id: %w", err)
	}
	return &account, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, account *domain.Account) error {
	res, err := r.users.ReplaceOne(ctx, bson.M{"username": account.Username}, account)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CreatePendingUser(ctx context.Context, pending *domain.PendingUser) error {
	_, err := r.pending.InsertOne(ctx, pending)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create pending user: %w", err)
	}
	return nil
}

func (r *UserRepository) PendingUserExists(ctx context.Context, username string) (bool, error) {
	count, err := r.pending.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check pending username: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) ListPendingUsers(ctx context.Context) ([]*domain.PendingUser, error) {
	cursor, err := r.pending.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "registered_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.PendingUser
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode pending users: %w", err)
	}
	return out, nil
}

func (r *UserRepository) RegistrationStats(ctx context.Context) (*domain.RegistrationStats, error) {
	total, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	pendingCount, err := r.pending.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count pending users: %w", err)
	}
	return &domain.RegistrationStats{
		TotalUsers:   int(total),
		PendingUsers: int(pendingCount),
	}, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
