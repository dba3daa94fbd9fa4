// Package usage enforces the per-account generation quota.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/metrics"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
)

// DefaultLimit is the number of free generations per account
const DefaultLimit = 3

const (
	LoginRequiredMessage = "Please log in to generate content."
	LimitReachedMessage  = "You have reached your free usage limit for this account."
	BulkLimitMessage     = "You have reached your free usage limit. Please register to continue."
	UsageNotSavedWarning = "Your content was generated, but your usage could not be updated."
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrLimitReached is returned by IncrementUsage when the stored count is already at the limit
	ErrLimitReached = errors.New("usage limit reached")
)

// SessionStore persists profiles and their usage counters
type SessionStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, email string) (*models.Profile, error)
	// IncrementUsage adds one to the counter only while it is below limit and returns the new count
	IncrementUsage(ctx context.Context, id string, limit int) (int, error)
}

// State is where a session stands against the quota
type State int

const (
	Unauthenticated State = iota
	UnderLimit
	AtLimit
)

func (s State) String() string {
	switch s {
	case UnderLimit:
		return "under_limit"
	case AtLimit:
		return "at_limit"
	default:
		return "unauthenticated"
	}
}

// Gate hands out sessions bound to one store and one limit
type Gate struct {
	store  SessionStore
	limit  int
	logger logrus.FieldLogger
}

func NewGate(store SessionStore, limit int, logger logrus.FieldLogger) *Gate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gate{store: store, limit: limit, logger: logger}
}

func (g *Gate) Limit() int { return g.limit }

func (g *Gate) Store() SessionStore { return g.store }

// Begin loads the profile of userID. An empty userID gives an unauthenticated session.
func (g *Gate) Begin(ctx context.Context, userID string) (*Session, error) {
	s := &Session{gate: g}
	if userID == "" {
		return s, nil
	}
	profile, err := g.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	s.profile = profile
	return s, nil
}

// Result is a successful gated generation
type Result struct {
	Response   *models.GenerateResponse
	UsageCount int
	// Warning is set when the content was produced but the counter could not be saved
	Warning string
}

// Session tracks one account's quota for the length of a request or a bulk run.
// It is not safe for concurrent use.
type Session struct {
	gate    *Gate
	profile *models.Profile
}

// Profile returns a copy of the loaded profile, or nil when unauthenticated
func (s *Session) Profile() *models.Profile {
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *Session) UsageCount() int {
	if s.profile == nil {
		return 0
	}
	return s.profile.UsageCount
}

func (s *Session) Limit() int { return s.gate.limit }

func (s *Session) State() State {
	switch {
	case s.profile == nil:
		return Unauthenticated
	case s.IsLimitReached():
		return AtLimit
	default:
		return UnderLimit
	}
}

// IsLimitReached reports usage >= limit. Unauthenticated sessions are never "at limit".
func (s *Session) IsLimitReached() bool {
	return s.profile != nil && s.profile.UsageCount >= s.gate.limit
}

// Generate runs gen for info when the quota allows it and charges one use on success.
// Failed generations are free. A result whose charge loses the race for the last
// slot is withheld.
func (s *Session) Generate(ctx context.Context, gen generation.Generator, info models.ProductInfo) (*Result, error) {
	switch s.State() {
	case Unauthenticated:
		return nil, models.ValidationError{Message: LoginRequiredMessage}
	case AtLimit:
		metrics.UsageDenials.WithLabelValues("single").Inc()
		return nil, models.QuotaExceededError{Message: LimitReachedMessage}
	}

	resp, err := gen.Generate(ctx, info)
	if err != nil {
		metrics.GenerationRequests.WithLabelValues("single", metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.GenerationRequests.WithLabelValues("single", metrics.OutcomeSuccess).Inc()

	result := &Result{Response: resp}
	err = s.Record(ctx)
	if errors.Is(err, ErrLimitReached) {
		// a concurrent request used the last slot while this one was generating
		metrics.UsageDenials.WithLabelValues("single").Inc()
		return nil, models.QuotaExceededError{Message: LimitReachedMessage}
	}
	if err != nil {
		s.gate.logger.WithError(err).WithField("user_id", s.profile.ID).Warn("Failed to update usage count")
		result.Warning = UsageNotSavedWarning
	}
	result.UsageCount = s.profile.UsageCount
	return result, nil
}

// CheckBulk refuses a bulk run for sessions that cannot generate
func (s *Session) CheckBulk() error {
	switch s.State() {
	case Unauthenticated:
		return models.ValidationError{Message: LoginRequiredMessage}
	case AtLimit:
		metrics.UsageDenials.WithLabelValues("bulk").Inc()
		return models.QuotaExceededError{Message: BulkLimitMessage}
	}
	return nil
}

// Allow reports whether one more generation fits in the quota
func (s *Session) Allow() error {
	switch s.State() {
	case Unauthenticated:
		return models.ValidationError{Message: LoginRequiredMessage}
	case AtLimit:
		metrics.UsageDenials.WithLabelValues("bulk_item").Inc()
		return models.QuotaExceededError{Message: LimitReachedMessage}
	}
	return nil
}

// Record charges one generation to the stored counter. The in-memory count
// follows the store; a lost race against the limit leaves the session at limit.
func (s *Session) Record(ctx context.Context) error {
	if s.profile == nil {
		return models.ValidationError{Message: LoginRequiredMessage}
	}
	count, err := s.gate.store.IncrementUsage(ctx, s.profile.ID, s.gate.limit)
	if errors.Is(err, ErrLimitReached) {
		s.profile.UsageCount = s.gate.limit
		return err
	}
	if err != nil {
		return err
	}
	s.profile.UsageCount = count
	return nil
}
