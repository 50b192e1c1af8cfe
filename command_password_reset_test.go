package insurai_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	insurai "github.com/goliatone/go-insurai"
)

type resetFixture struct {
	*accountsFixture
	now      time.Time
	notifier *mockNotifier
	requests *insurai.InitializePasswordResetHandler
	resets   *insurai.FinalizePasswordResetHandler
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	f := &resetFixture{
		accountsFixture: newAccountsFixture(t),
		now:             testNow,
		notifier:        newMockNotifier(),
	}
	clock := func() time.Time { return f.now }
	auditLog := insurai.NewAuditRecorder(f.repo.AuditLogs(), insurai.WithAuditClock(clock))
	f.requests = insurai.NewInitializePasswordResetHandler(f.repo, f.notifier, auditLog, quietLogger{}).WithClock(clock)
	f.resets = insurai.NewFinalizePasswordResetHandler(f.repo, insurai.NewBcryptHasher(bcrypt.MinCost), auditLog, quietLogger{}).
		WithClock(clock)
	return f
}

func (f *resetFixture) finalize(token, password string) error {
	return f.resets.Execute(context.Background(), insurai.FinalizePasswordResetMessage{
		Session:  token,
		Password: password,
	})
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	erin := f.register(t, insurai.AccountEmployee, "Erin", "erin@example.com", "old-password")

	reset, err := f.requests.Request(ctx, " ERIN@example.com ")
	require.NoError(t, err)
	require.NotNil(t, reset)
	assert.NotEqual(t, uuid.Nil, reset.ID)
	assert.Equal(t, erin.ID, reset.AccountID)
	assert.Equal(t, insurai.ResetRequestedStatus, reset.Status)
	assert.True(t, reset.ExpiresAt.Equal(testNow.Add(insurai.DefaultPasswordResetTTL)))

	f.notifier.AssertNumberOfCalls(t, "Enqueue", 1)
	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, insurai.EventPasswordReset, events[0].Kind)
	assert.Equal(t, "erin@example.com", events[0].Recipient.Email)
	assert.Equal(t, "/employee/password/reset/"+reset.ID.String(), events[0].Payload["reset_link"])

	require.NoError(t, f.finalize(reset.ID.String(), "new-password"))

	_, err = f.auther.Login(ctx, insurai.AccountEmployee, "erin@example.com", "new-password")
	require.NoError(t, err)
	_, err = f.auther.Login(ctx, insurai.AccountEmployee, "erin@example.com", "old-password")
	assert.True(t, insurai.IsAuthFailure(err))

	stored, err := f.repo.PasswordResets().GetByID(ctx, reset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, insurai.ResetChangedStatus, stored.Status)
	require.NotNil(t, stored.ResetAt)

	actions := auditActions(t, f.repo, insurai.AuditFilter{TargetType: "employee"})
	assert.Contains(t, actions, "password_reset_requested")
	assert.Contains(t, actions, "password_reset")
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	f := newResetFixture(t)
	f.register(t, insurai.AccountEmployee, "Erin", "erin@example.com", "old-password")

	reset, err := f.requests.Request(context.Background(), "erin@example.com")
	require.NoError(t, err)
	require.NoError(t, f.finalize(reset.ID.String(), "first-password"))

	err = f.finalize(reset.ID.String(), "second-password")
	require.Error(t, err)
	assert.True(t, insurai.HasTextCode(err, insurai.TextCodeResetTokenUsed))

	_, err = f.auther.Login(context.Background(), insurai.AccountEmployee, "erin@example.com", "first-password")
	assert.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	f.register(t, insurai.AccountEmployee, "Erin", "erin@example.com", "old-password")

	reset, err := f.requests.Request(ctx, "erin@example.com")
	require.NoError(t, err)

	f.now = testNow.Add(insurai.DefaultPasswordResetTTL + time.Minute)
	err = f.finalize(reset.ID.String(), "new-password")
	require.Error(t, err)
	assert.True(t, insurai.HasTextCode(err, insurai.TextCodeResetTokenExpired))
	assert.True(t, insurai.IsValidationError(err))

	_, err = f.auther.Login(ctx, insurai.AccountEmployee, "erin@example.com", "old-password")
	assert.NoError(t, err)

	stored, err := f.repo.PasswordResets().GetByID(ctx, reset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, insurai.ResetRequestedStatus, stored.Status)

	// a fresh request issues a new token that works
	f.now = testNow.Add(time.Hour)
	fresh, err := f.requests.Request(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, reset.ID, fresh.ID)
	assert.NoError(t, f.finalize(fresh.ID.String(), "new-password"))
}

func TestPasswordResetIgnoresUnknownAccounts(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	createAccount(t, f.repo, insurai.AccountEmployee, "Idle", "idle@example.com", false)
	f.register(t, insurai.AccountHR, "Hana", "hana@example.com", "password")

	for _, email := range []string{"ghost@example.com", "idle@example.com", "hana@example.com"} {
		reset, err := f.requests.Request(ctx, email)
		require.NoError(t, err, email)
		assert.Nil(t, reset, email)
	}
	f.notifier.AssertNotCalled(t, "Enqueue")

	_, err := f.requests.Request(ctx, "not-an-email")
	assert.True(t, insurai.IsValidationError(err))
}

func TestPasswordResetRejectsUnknownTokens(t *testing.T) {
	f := newResetFixture(t)

	assert.True(t, insurai.IsNotFound(f.finalize("not-a-token", "new-password")))
	assert.True(t, insurai.IsNotFound(f.finalize(uuid.NewString(), "new-password")))
	assert.True(t, insurai.IsValidationError(f.finalize(uuid.NewString(), "123")))
}

func TestPasswordResetHandlersAreCommanders(t *testing.T) {
	f := newResetFixture(t)
	f.register(t, insurai.AccountEmployee, "Erin", "erin@example.com", "old-password")

	var requests command.Commander[insurai.InitializePasswordResetMessage] = f.requests
	var resp *insurai.InitializePasswordResetResponse
	msg := insurai.InitializePasswordResetMessage{
		Email:      "erin@example.com",
		OnResponse: func(r *insurai.InitializePasswordResetResponse) { resp = r },
	}
	assert.Equal(t, "account.password_reset", msg.Type())
	require.NoError(t, requests.Execute(context.Background(), msg))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Reset)

	var resets command.Commander[insurai.FinalizePasswordResetMessage] = f.resets
	assert.NoError(t, resets.Execute(context.Background(), insurai.FinalizePasswordResetMessage{
		Session:  resp.Reset.ID.String(),
		Password: "new-password",
	}))
}
