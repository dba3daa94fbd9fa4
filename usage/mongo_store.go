package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfilesCollection holds one document per account
const ProfilesCollection = "profiles"

// MongoStore keeps profiles in MongoDB
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(ProfilesCollection), now: time.Now}
}

// EnsureIndexes creates the unique email index
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create profile index: %w", err)
	}
	return nil
}

func (m *MongoStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Profile, error) {
	var profile models.Profile
	err := m.coll.FindOne(ctx, filter).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &profile, nil
}

// CreateProfile inserts a profile with zero usage. If another request created
// the same email first, that profile is returned.
func (m *MongoStore) CreateProfile(ctx context.Context, email string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := m.now()
	profile := models.Profile{
		ID:         uuid.NewString(),
		Email:      normalizeEmail(email),
		UsageCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := m.coll.InsertOne(ctx, profile)
	if mongo.IsDuplicateKeyError(err) {
		return m.findOne(ctx, bson.M{"email": profile.Email})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &profile, nil
}

// IncrementUsage increments usage_count only while it is below limit
func (m *MongoStore) IncrementUsage(ctx context.Context, id string, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": id, "usage_count": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": m.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var profile models.Profile
	err := m.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either the profile is gone or it is already at the limit
		if _, getErr := m.findOne(ctx, bson.M{"_id": id}); getErr != nil {
			return 0, getErr
		}
		return 0, ErrLimitReached
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return profile.UsageCount, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
