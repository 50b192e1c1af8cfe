package insurai_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	insurai "github.com/goliatone/go-insurai"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) insurai.Clock {
	return func() time.Time { return t }
}

type testConfig struct {
	signingKey string
	expiration int
	issuer     string
	audience   []string
	scheme     string
}

func (c testConfig) GetSigningKey() string   { return c.signingKey }
func (c testConfig) GetTokenExpiration() int { return c.expiration }
func (c testConfig) GetIssuer() string       { return c.issuer }
func (c testConfig) GetAudience() []string   { return c.audience }
func (c testConfig) GetAuthScheme() string   { return c.scheme }

func defaultTestConfig() testConfig {
	return testConfig{signingKey: testSigningKey, expiration: 1, issuer: "insurai-test", scheme: "Bearer"}
}

// newTestRepo opens an isolated in-memory database with every table created.
func newTestRepo(t *testing.T) insurai.RepositoryManager {
	t.Helper()
	db, err := insurai.OpenDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := insurai.NewRepositoryManager(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func createAccount(t *testing.T, repo insurai.RepositoryManager, kind insurai.AccountKind, name, email string, active bool) *insurai.Account {
	t.Helper()
	account, err := repo.Accounts().Create(context.Background(), &insurai.Account{
		Kind:         kind,
		Name:         name,
		Email:        email,
		PasswordHash: "unused",
		Active:       active,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	})
	require.NoError(t, err)
	return account
}

func createClaim(t *testing.T, repo insurai.RepositoryManager, employeeID int64, status insurai.ClaimStatus, hrID *int64) *insurai.Claim {
	t.Helper()
	claim, err := repo.Claims().Create(context.Background(), &insurai.Claim{
		Title:        "Hospital stay",
		Description:  "Three nights",
		Amount:       decimal.RequireFromString("1250.50"),
		Status:       status,
		ClaimDate:    testNow,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
		EmployeeID:   employeeID,
		AssignedHrID: hrID,
		Documents:    []string{"receipt.pdf"},
	})
	require.NoError(t, err)
	return claim
}

type sentEvent struct {
	Kind      insurai.EventKind
	Recipient insurai.Recipient
	Payload   map[string]any
}

// mockNotifier accepts every enqueue and keeps the calls for inspection.
type mockNotifier struct {
	mock.Mock
	enqueue *mock.Call
}

func newMockNotifier() *mockNotifier {
	n := &mockNotifier{}
	n.enqueue = n.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return n
}

func (n *mockNotifier) Enqueue(ctx context.Context, kind insurai.EventKind, recipient insurai.Recipient, payload map[string]any) error {
	args := n.Called(ctx, kind, recipient, payload)
	return args.Error(0)
}

// failWith makes every later enqueue return err after being recorded.
func (n *mockNotifier) failWith(err error) {
	n.enqueue.Unset()
	n.enqueue = n.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(err)
}

// Events lists the enqueued events in call order.
func (n *mockNotifier) Events() []sentEvent {
	var out []sentEvent
	for _, call := range n.Calls {
		if call.Method != "Enqueue" {
			continue
		}
		out = append(out, sentEvent{
			Kind:      call.Arguments.Get(1).(insurai.EventKind),
			Recipient: call.Arguments.Get(2).(insurai.Recipient),
			Payload:   call.Arguments.Get(3).(map[string]any),
		})
	}
	return out
}

type sideEffectFailure struct {
	Hook string
	Err  error
}

type sideEffectRecorder struct {
	mu       sync.Mutex
	failures []sideEffectFailure
}

func (r *sideEffectRecorder) Handle(_ context.Context, hook string, _ insurai.ClaimEvent, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, sideEffectFailure{Hook: hook, Err: err})
}

func (r *sideEffectRecorder) Failures() []sideEffectFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sideEffectFailure(nil), r.failures...)
}

// quietLogger drops every line.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func auditActions(t *testing.T, repo insurai.RepositoryManager, filter insurai.AuditFilter) []string {
	t.Helper()
	entries, err := repo.AuditLogs().Query(context.Background(), filter)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
