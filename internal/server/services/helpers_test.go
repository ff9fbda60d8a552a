package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger keeps every entry so tests can assert on what was logged.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	with    []any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: append(append([]any{}, l.with...), args...)})
}

func (l *recordingLogger) Debug(_ context.Context, msg string, args ...any) {
	l.add("DEBUG", msg, args)
}
func (l *recordingLogger) Info(_ context.Context, msg string, args ...any) { l.add("INFO", msg, args) }
func (l *recordingLogger) Warn(_ context.Context, msg string, args ...any) { l.add("WARN", msg, args) }
func (l *recordingLogger) Error(_ context.Context, msg string, args ...any) {
	l.add("ERROR", msg, args)
}

func (l *recordingLogger) With(args ...any) logging.Logger {
	return &recordingLogger{mu: l.mu, entries: l.entries, with: append(append([]any{}, l.with...), args...)}
}

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range *l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type env struct {
	clock  *fakeClock
	codec  *auth.Codec
	repos  *repomanager.MemoryRepositoryManager
	svc    *AuthService
	guard  *Guard
	logger *recordingLogger
}

var (
	keysOnce sync.Once
	keyPEM   [2][]byte
	keysErr  error
)

func testProvider(t *testing.T) *keys.Provider {
	t.Helper()
	keysOnce.Do(func() {
		keyPEM[0], keyPEM[1], keysErr = keys.Generate("ES256")
	})
	require.NoError(t, keysErr)

	p, err := keys.New("ES256", keyPEM[0], keyPEM[1])
	require.NoError(t, err)
	return p
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := auth.NewCodec(testProvider(t), auth.WithClock(clock.Now))
	require.NoError(t, err)

	cfg := &config.Config{AccessTokenTTL: testAccessTTL, RefreshTokenTTL: testRefreshTTL}
	repos := repomanager.NewMemoryRepositoryManager()
	logger := newRecordingLogger()

	return &env{
		clock:  clock,
		codec:  codec,
		repos:  repos,
		svc:    NewAuthService(cfg, repos, codec, password.Bcrypt{}, logger, WithClock(clock.Now)),
		guard:  NewGuard(codec, repos.Users()),
		logger: logger,
	}
}

type fixtureUser struct {
	*models.User
	Password string
}

func (e *env) register(t *testing.T) fixtureUser {
	t.Helper()
	pw := gofakeit.Password(true, true, true, false, false, 16)
	u, err := e.svc.Register(context.Background(), gofakeit.Username()+fmt.Sprint(gofakeit.Number(1, 1e6)), gofakeit.Email(), pw)
	require.NoError(t, err)
	return fixtureUser{User: u, Password: pw}
}
