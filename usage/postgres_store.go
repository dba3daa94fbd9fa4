package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/raushankrgupta/product-descriptions-ai/models"
)

// Querier is the subset of *pgxpool.Pool the store needs, so tests can use pgxmock
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createProfilesTable = `
CREATE TABLE IF NOT EXISTS profiles (
	id          UUID PRIMARY KEY,
	email       TEXT NOT NULL UNIQUE,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const profileColumns = "id, email, usage_count, created_at, updated_at"

// PostgresStore keeps profiles in the profiles table
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the profiles table when missing
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createProfilesTable); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var profile models.Profile
	err := row.Scan(&profile.ID, &profile.Email, &profile.UsageCount, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &profile, nil
}

func (p *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProfileNotFound
	}
	row := p.db.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	return scanProfile(row)
}

func (p *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := p.db.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE email = $1", normalizeEmail(email))
	return scanProfile(row)
}

// CreateProfile inserts a zero-usage profile; an existing email returns the stored row
func (p *PostgresStore) CreateProfile(ctx context.Context, email string) (*models.Profile, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO profiles (id, email, usage_count)
		VALUES ($1, $2, 0)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+profileColumns,
		uuid.NewString(), normalizeEmail(email))
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// IncrementUsage bumps usage_count in a single conditional UPDATE
func (p *PostgresStore) IncrementUsage(ctx context.Context, id string, limit int) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, `
		UPDATE profiles
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND usage_count < $2
		RETURNING usage_count`, id, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := p.GetProfile(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, ErrLimitReached
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}
