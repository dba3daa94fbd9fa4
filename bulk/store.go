package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrJobNotFound = errors.New("bulk job not found")

// JobStore persists bulk job records
type JobStore interface {
	Create(ctx context.Context, job *models.BulkJob) error
	Update(ctx context.Context, job *models.BulkJob) error
	Get(ctx context.Context, id string) (*models.BulkJob, error)
}

// ProgressStore holds the live progress of running jobs
type ProgressStore interface {
	Set(ctx context.Context, jobID string, p models.Progress) error
	// Get returns nil without error when no snapshot exists
	Get(ctx context.Context, jobID string) (*models.Progress, error)
}

// ArtifactStore keeps the exported result files
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignGet returns "" when the store cannot hand out direct links
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// EventPublisher announces finished jobs
type EventPublisher interface {
	PublishJSON(subject string, v any) error
}

// JobsCollection holds one document per bulk job
const JobsCollection = "bulk_jobs"

// MongoJobStore keeps bulk jobs in MongoDB
type MongoJobStore struct {
	coll *mongo.Collection
}

func NewMongoJobStore(db *mongo.Database) *MongoJobStore {
	return &MongoJobStore{coll: db.Collection(JobsCollection)}
}

// EnsureIndexes indexes jobs by owner and age
func (s *MongoJobStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk job index: %w", err)
	}
	return nil
}

func (s *MongoJobStore) Create(ctx context.Context, job *models.BulkJob) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("failed to insert bulk job: %w", err)
	}
	return nil
}

func (s *MongoJobStore) Update(ctx context.Context, job *models.BulkJob) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": job.ID}, job, options.Replace())
	if err != nil {
		return fmt.Errorf("failed to update bulk job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *MongoJobStore) Get(ctx context.Context, id string) (*models.BulkJob, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var job models.BulkJob
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bulk job: %w", err)
	}
	return &job, nil
}

// ProgressTTL bounds how long a snapshot outlives its job
const ProgressTTL = 24 * time.Hour

// RedisProgressStore keeps progress snapshots as JSON strings
type RedisProgressStore struct {
	client *redis.Client
}

func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{client: client}
}

func progressKey(jobID string) string {
	return fmt.Sprintf("bulk_generate:job:%s", jobID)
}

func (r *RedisProgressStore) Set(ctx context.Context, jobID string, p models.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, progressKey(jobID), data, ProgressTTL).Err(); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

func (r *RedisProgressStore) Get(ctx context.Context, jobID string) (*models.Progress, error) {
	val, err := r.client.Get(ctx, progressKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	var p models.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}
