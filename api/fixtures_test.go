package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/auth"
	"github.com/raushankrgupta/product-descriptions-ai/bulk"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/usage"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
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

type profileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	seq      int
}

func (s *profileStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, usage.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *profileStore) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, usage.ErrProfileNotFound
}

func (s *profileStore) CreateProfile(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p := &models.Profile{ID: fmt.Sprintf("new-%d", s.seq), Email: email}
	s.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *profileStore) IncrementUsage(_ context.Context, id string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return 0, usage.ErrProfileNotFound
	}
	if p.UsageCount >= limit {
		return p.UsageCount, usage.ErrLimitReached
	}
	p.UsageCount++
	return p.UsageCount, nil
}

func (s *profileStore) usage(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].UsageCount
}

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]models.BulkJob
}

func (m *memoryJobs) Create(_ context.Context, job *models.BulkJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) Update(_ context.Context, job *models.BulkJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) Get(_ context.Context, id string) (*models.BulkJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, bulk.ErrJobNotFound
	}
	return &job, nil
}

type memoryProgress struct {
	mu   sync.Mutex
	last map[string]models.Progress
}

func (m *memoryProgress) Set(_ context.Context, jobID string, p models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[jobID] = p
	return nil
}

func (m *memoryProgress) Get(_ context.Context, jobID string) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.last[jobID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type memoryCodes struct {
	mu    sync.Mutex
	codes map[string]models.LoginCode
}

func (m *memoryCodes) Save(_ context.Context, code models.LoginCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Email] = code
	return nil
}

func (m *memoryCodes) Get(_ context.Context, email string) (*models.LoginCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[email]
	if !ok {
		return nil, auth.ErrCodeNotFound
	}
	return &c, nil
}

func (m *memoryCodes) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

func (m *memoryCodes) AddAttempt(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[email]
	if !ok {
		return 0, auth.ErrCodeNotFound
	}
	c.Attempts++
	m.codes[email] = c
	return c.Attempts, nil
}

type captureMailer struct {
	mu   sync.Mutex
	sent []utils.Mail
	err  error
}

func (c *captureMailer) Send(m utils.Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

type memoryContacts struct {
	saved []models.ContactMessage
	err   error
}

func (m *memoryContacts) Insert(_ context.Context, msg *models.ContactMessage) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *msg)
	return nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	backend  *mockGenerator
	gen      *mockGenerator
	profiles *profileStore
	codes    *memoryCodes
	mailer   *captureMailer
	contacts *memoryContacts
	tokens   *utils.TokenIssuer
}

func newTestEnv(t *testing.T, profiles ...models.Profile) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		backend:  &mockGenerator{},
		gen:      &mockGenerator{},
		profiles: &profileStore{profiles: map[string]*models.Profile{}},
		codes:    &memoryCodes{codes: map[string]models.LoginCode{}},
		mailer:   &captureMailer{},
		contacts: &memoryContacts{},
		tokens:   utils.NewTokenIssuer("test-secret", time.Hour),
	}
	for i := range profiles {
		p := profiles[i]
		env.profiles.profiles[p.ID] = &p
	}

	artifacts, err := utils.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	gate := usage.NewGate(env.profiles, usage.DefaultLimit, logger)
	env.server = NewServer(Deps{
		Backend:   env.backend,
		Generator: env.gen,
		Gate:      gate,
		Bulk: bulk.NewService(bulk.Deps{
			Gate:      gate,
			Generator: env.gen,
			Jobs:      &memoryJobs{jobs: map[string]models.BulkJob{}},
			Progress:  &memoryProgress{last: map[string]models.Progress{}},
			Artifacts: artifacts,
			Logger:    logger,
		}),
		Auth:           auth.NewService(env.codes, env.profiles, env.tokens, env.mailer, 15*time.Minute, logger),
		Google:         auth.NewGoogleProvider("", "", ""),
		Contacts:       env.contacts,
		Mailer:         env.mailer,
		ContactEmail:   "support@example.com",
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	env.handler = env.server.Routes()
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.tokens.GenerateToken(userID, userID+"@example.com")
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
