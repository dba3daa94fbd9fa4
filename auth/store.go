package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CodesCollection holds at most one pending code per email
const CodesCollection = "login_codes"

// ErrCodeNotFound is what CodeStore.Get returns when no code is pending
var ErrCodeNotFound = errors.New("login code not found")

// CodeStore keeps pending one-time codes keyed by email
type CodeStore interface {
	Save(ctx context.Context, code models.LoginCode) error
	Get(ctx context.Context, email string) (*models.LoginCode, error)
	Delete(ctx context.Context, email string) error
	// AddAttempt counts one wrong guess and returns the new total
	AddAttempt(ctx context.Context, email string) (int, error)
}

// MongoCodeStore keeps login codes in MongoDB
type MongoCodeStore struct {
	coll *mongo.Collection
}

func NewMongoCodeStore(db *mongo.Database) *MongoCodeStore {
	return &MongoCodeStore{coll: db.Collection(CodesCollection)}
}

// EnsureIndexes lets MongoDB drop codes once they expire
func (s *MongoCodeStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create login code index: %w", err)
	}
	return nil
}

// Save replaces any earlier code for the same email
func (s *MongoCodeStore) Save(ctx context.Context, code models.LoginCode) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": code.Email}, code, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save login code: %w", err)
	}
	return nil
}

func (s *MongoCodeStore) Get(ctx context.Context, email string) (*models.LoginCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var code models.LoginCode
	err := s.coll.FindOne(ctx, bson.M{"_id": email}).Decode(&code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login code: %w", err)
	}
	return &code, nil
}

func (s *MongoCodeStore) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": email}); err != nil {
		return fmt.Errorf("failed to delete login code: %w", err)
	}
	return nil
}

func (s *MongoCodeStore) AddAttempt(ctx context.Context, email string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var code models.LoginCode
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": email}, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrCodeNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count login attempt: %w", err)
	}
	return code.Attempts, nil
}
