// AngelaMos | 2026
// fixtures_test.go

package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/config"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/notify"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: t0}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:       strings.Repeat("a", 32),
		RefreshSecret:      strings.Repeat("r", 32),
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "marketplace-auth",
		Audience:           "marketplace-api",
	}
}

// memStore mirrors the Postgres stores: unique email and username, expiry
// filtered digest lookups, copy-in copy-out rows.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]Credential
	saves int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]Credential)}
}

func (m *memStore) Create(_ context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Email == c.Email {
			return fmt.Errorf("create: %w", core.DuplicateError("email"))
		}
		if c.Username != "" && row.Username == c.Username {
			return fmt.Errorf("create: %w", core.DuplicateError("username"))
		}
	}

	c.CreatedAt = t0
	c.UpdatedAt = t0
	m.rows[c.ID] = *c
	return nil
}

func (m *memStore) find(match func(Credential) bool) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if match(row) {
			out := row
			return &out, nil
		}
	}
	return nil, fmt.Errorf("find: %w", core.ErrNotFound)
}

func (m *memStore) FindByID(_ context.Context, id string) (*Credential, error) {
	return m.find(func(c Credential) bool { return c.ID == id })
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*Credential, error) {
	return m.find(func(c Credential) bool { return c.Email == email })
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*Credential, error) {
	return m.find(func(c Credential) bool { return c.Username != "" && c.Username == username })
}

func (m *memStore) FindByVerificationDigest(
	_ context.Context,
	digest string,
	now time.Time,
) (*Credential, error) {
	return m.find(func(c Credential) bool {
		return c.VerificationDigest != nil && *c.VerificationDigest == digest &&
			c.VerificationExpiresAt != nil && c.VerificationExpiresAt.After(now)
	})
}

func (m *memStore) FindByResetDigest(
	_ context.Context,
	digest string,
	now time.Time,
) (*Credential, error) {
	return m.find(func(c Credential) bool {
		return c.ResetDigest != nil && *c.ResetDigest == digest &&
			c.ResetExpiresAt != nil && c.ResetExpiresAt.After(now)
	})
}

func (m *memStore) FindByRefreshDigest(_ context.Context, digest string) (*Credential, error) {
	return m.find(func(c Credential) bool {
		return c.RefreshDigest != nil && *c.RefreshDigest == digest
	})
}

func (m *memStore) Save(_ context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[c.ID]; !ok {
		return fmt.Errorf("save: %w", core.ErrNotFound)
	}
	m.saves++
	m.rows[c.ID] = *c
	return nil
}

func (m *memStore) get(t *testing.T, email string) Credential {
	t.Helper()
	c, err := m.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return *c
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *recordingSink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) Submit(msg notify.Message) error {
	return s.Send(context.Background(), msg)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSink) last(t *testing.T) notify.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

var linkToken = regexp.MustCompile(`/(?:verify-email|reset-password)/([0-9a-f]{64})`)

func tokenFromMessage(t *testing.T, msg notify.Message) string {
	t.Helper()
	m := linkToken.FindStringSubmatch(msg.Text)
	require.Len(t, m, 2, "no token link in %q", msg.Text)
	return m[1]
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	next    int
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (b *memBlob) Upload(_ context.Context, file io.Reader, folder string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	key := fmt.Sprintf("%s/obj-%d", folder, b.next)
	b.objects[key] = data
	return key, nil
}

func (b *memBlob) SignedURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key + "?sig=1", nil
}

func (b *memBlob) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return errors.New("no such object")
	}
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

type harness struct {
	svc    *Service
	store  *memStore
	sink   *recordingSink
	async  *recordingSink
	blob   *memBlob
	clock  *testClock
	issuer *TokenIssuer
}

type harnessOption func(*ServiceConfig)

func withRotation() harnessOption {
	return func(c *ServiceConfig) { c.Policy.RotateRefreshOnUse = true }
}

func newHarness(t *testing.T, kind principal.Kind, opts ...harnessOption) *harness {
	t.Helper()

	clock := newTestClock()

	issuer, err := NewTokenIssuer(testJWTConfig(), WithIssuerClock(clock.Now))
	require.NoError(t, err)

	hasher, err := core.NewPasswordHasher(core.Argon2Params{
		Time:    1,
		Memory:  8 * 1024,
		Threads: 1,
		KeyLen:  32,
	})
	require.NoError(t, err)

	h := &harness{
		store:  newMemStore(),
		sink:   &recordingSink{},
		async:  &recordingSink{},
		blob:   newMemBlob(),
		clock:  clock,
		issuer: issuer,
	}

	cfg := ServiceConfig{
		Kind:   kind,
		Store:  h.store,
		Issuer: issuer,
		Hasher: hasher,
		Sink:   h.sink,
		Async:  h.async,
		Blob:   h.blob,
		Composer: notify.Composer{
			AppName: "Marketplace",
			From:    "no-reply@marketplace.test",
			Now:     clock.Now,
		},
		Policy: Policy{
			VerificationTTL:        20 * time.Minute,
			ResetTTL:               5 * time.Minute,
			BlockingRegisterNotify: kind == principal.KindAdmin,
			PublicBaseURL:          "http://localhost:8080/",
			PhoneRegion:            "PK",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	h.svc, err = NewService(cfg, WithClock(clock.Now))
	require.NoError(t, err)

	return h
}

// notifications returns whichever sink the kind registers through.
func (h *harness) notifications() *recordingSink {
	if h.svc.Kind() == principal.KindUser {
		return h.async
	}
	return h.sink
}

func (h *harness) registerVerified(t *testing.T, in RegisterInput) Credential {
	t.Helper()
	ctx := context.Background()

	_, err := h.svc.Register(ctx, in)
	require.NoError(t, err)

	token := tokenFromMessage(t, h.notifications().last(t))
	require.NoError(t, h.svc.VerifyEmail(ctx, token))

	return h.store.get(t, strings.ToLower(in.Email))
}

func userInput(email, username string) RegisterInput {
	return RegisterInput{
		Email:    email,
		Username: username,
		Name:     "Ayesha Khan",
		Password: "correct horse battery",
		Phone:    "0300 1234567",
	}
}

func adminInput(email, role string) RegisterInput {
	return RegisterInput{
		Email:    email,
		Name:     "Ops Admin",
		Password: "correct horse battery",
		Role:     role,
	}
}

func requireAppError(t *testing.T, err error, sentinel error, status int) {
	t.Helper()
	require.Error(t, err)

	var appErr *core.AppError
	require.True(t, errors.As(err, &appErr), "expected *core.AppError, got %v", err)
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, status, appErr.StatusCode)
}

func pngBytes() *bytes.Reader {
	return bytes.NewReader([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
}
