package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store keeps bulk result files in an S3 bucket
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Store initializes the S3 client for the given bucket
func NewS3Store(ctx context.Context, region, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

// Put uploads data under objectKey
func (s *S3Store) Put(ctx context.Context, objectKey, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

// Get downloads the object stored under objectKey
func (s *S3Store) Get(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file from S3: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// PresignGet generates a presigned download URL for an object
func (s *S3Store) PresignGet(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return request.URL, nil
}

// LocalStore keeps bulk result files on disk when no bucket is configured.
// It cannot presign, so downloads are streamed by the server.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) path(objectKey string) (string, error) {
	clean := filepath.Clean("/" + objectKey)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *LocalStore) Put(_ context.Context, objectKey, _ string, data []byte) error {
	p, err := l.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist file: %w", err)
	}
	return nil
}

func (l *LocalStore) Get(_ context.Context, objectKey string) ([]byte, error) {
	p, err := l.path(objectKey)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// PresignGet always returns an empty URL
func (l *LocalStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
