package usage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, info models.ProductInfo) (*models.GenerateResponse, error) {
	args := m.Called(ctx, info)
	resp, _ := args.Get(0).(*models.GenerateResponse)
	return resp, args.Error(1)
}

// memoryStore is an in-memory SessionStore
type memoryStore struct {
	mu           sync.Mutex
	profiles     map[string]*models.Profile
	incrementErr error
	increments   int
}

func newMemoryStore(profiles ...models.Profile) *memoryStore {
	s := &memoryStore{profiles: make(map[string]*models.Profile)}
	for i := range profiles {
		p := profiles[i]
		s.profiles[p.ID] = &p
	}
	return s
}

func (s *memoryStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *memoryStore) CreateProfile(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Profile{ID: "id-" + email, Email: email, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *memoryStore) IncrementUsage(_ context.Context, id string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrementErr != nil {
		return 0, s.incrementErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return 0, ErrProfileNotFound
	}
	if p.UsageCount >= limit {
		return 0, ErrLimitReached
	}
	p.UsageCount++
	s.increments++
	return p.UsageCount, nil
}

func (s *memoryStore) usage(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].UsageCount
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var productInfo = models.ProductInfo{
	ProductName: "Mug",
	Description: "Ceramic",
	Tone:        "friendly",
	Language:    "en",
	ContentType: models.ContentTypeProductDescription,
}

func TestGate_Begin(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", Email: "a@example.com", UsageCount: 1})
	gate := NewGate(store, DefaultLimit, quietLogger())

	t.Run("anonymous", func(t *testing.T) {
		s, err := gate.Begin(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, s.State())
		assert.Nil(t, s.Profile())
		assert.False(t, s.IsLimitReached())
	})

	t.Run("known user", func(t *testing.T) {
		s, err := gate.Begin(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, UnderLimit, s.State())
		assert.Equal(t, 1, s.UsageCount())
		assert.Equal(t, 3, s.Limit())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := gate.Begin(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestSession_Generate_AtLimitRefusesWithoutCallingGenerator(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 3})
	gate := NewGate(store, 3, quietLogger())
	gen := &mockGenerator{}

	s, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, AtLimit, s.State())
	assert.True(t, s.IsLimitReached())

	_, err = s.Generate(context.Background(), gen, productInfo)

	var quota models.QuotaExceededError
	require.True(t, errors.As(err, &quota))
	assert.Equal(t, LimitReachedMessage, quota.Message)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Equal(t, 3, store.usage("u1"))
}

func TestSession_Generate_Unauthenticated(t *testing.T) {
	gate := NewGate(newMemoryStore(), 3, quietLogger())
	gen := &mockGenerator{}

	s, err := gate.Begin(context.Background(), "")
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), gen, productInfo)

	assert.Equal(t, models.ValidationError{Message: LoginRequiredMessage}, err)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSession_Generate_SuccessIncrementsByOne(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 2})
	gate := NewGate(store, 3, quietLogger())
	resp := &models.GenerateResponse{Descriptions: []string{"d1"}}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, productInfo).Return(resp, nil).Once()

	s, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)
	result, err := s.Generate(context.Background(), gen, productInfo)

	require.NoError(t, err)
	assert.Same(t, resp, result.Response)
	assert.Equal(t, 3, result.UsageCount)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 3, store.usage("u1"))
	assert.Equal(t, AtLimit, s.State())
	gen.AssertExpectations(t)

	// the fourth attempt is refused
	_, err = s.Generate(context.Background(), gen, productInfo)
	var quota models.QuotaExceededError
	assert.True(t, errors.As(err, &quota))
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestSession_Generate_FailureDoesNotIncrement(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 0})
	gate := NewGate(store, 3, quietLogger())
	genErr := errors.New("Model overloaded")
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, productInfo).Return(nil, genErr)

	s, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), gen, productInfo)

	assert.ErrorIs(t, err, genErr)
	assert.Equal(t, 0, store.usage("u1"))
	assert.Equal(t, 0, s.UsageCount())
	assert.Equal(t, UnderLimit, s.State())
}

func TestSession_Generate_IncrementFailureKeepsResult(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 1})
	store.incrementErr = errors.New("connection reset")
	gate := NewGate(store, 3, quietLogger())
	resp := &models.GenerateResponse{Descriptions: []string{"d1"}}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, productInfo).Return(resp, nil)

	s, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)
	result, err := s.Generate(context.Background(), gen, productInfo)

	require.NoError(t, err)
	assert.Same(t, resp, result.Response)
	assert.Equal(t, UsageNotSavedWarning, result.Warning)
	assert.Equal(t, 1, result.UsageCount)
	assert.Equal(t, 1, store.usage("u1"))
}

func TestSession_Generate_LostRaceWithholdsResult(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 2})
	gate := NewGate(store, 3, quietLogger())
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, productInfo).Return(&models.GenerateResponse{Descriptions: []string{"d1"}}, nil)

	first, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)
	second, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)

	result, err := first.Generate(context.Background(), gen, productInfo)
	require.NoError(t, err)
	assert.Equal(t, 3, result.UsageCount)

	result, err = second.Generate(context.Background(), gen, productInfo)
	assert.Nil(t, result)
	var qe models.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, LimitReachedMessage, qe.Message)
	assert.Equal(t, AtLimit, second.State())
	assert.Equal(t, 3, store.usage("u1"))
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestSession_Record_LostRace(t *testing.T) {
	store := newMemoryStore(models.Profile{ID: "u1", UsageCount: 2})
	gate := NewGate(store, 3, quietLogger())

	s, err := gate.Begin(context.Background(), "u1")
	require.NoError(t, err)

	// another request uses the last slot after this session loaded its profile
	_, err = store.IncrementUsage(context.Background(), "u1", 3)
	require.NoError(t, err)

	err = s.Record(context.Background())
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, AtLimit, s.State())
	assert.Equal(t, 3, store.usage("u1"))
}

func TestSession_CheckBulk(t *testing.T) {
	store := newMemoryStore(
		models.Profile{ID: "fresh", UsageCount: 0},
		models.Profile{ID: "spent", UsageCount: 3},
	)
	gate := NewGate(store, 3, quietLogger())

	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{name: "under limit", userID: "fresh"},
		{name: "at limit", userID: "spent", wantErr: models.QuotaExceededError{Message: BulkLimitMessage}},
		{name: "anonymous", userID: "", wantErr: models.ValidationError{Message: LoginRequiredMessage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := gate.Begin(context.Background(), tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, s.CheckBulk())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "under_limit", UnderLimit.String())
	assert.Equal(t, "at_limit", AtLimit.String())
}
