package insurai_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insurai "github.com/goliatone/go-insurai"
)

var employeeRecipient = insurai.Recipient{Role: insurai.RoleEmployee, ID: 7, Email: "erin@example.com", Name: "Erin"}

type deliveryFailures struct {
	mu       sync.Mutex
	channels []string
	errs     []error
}

func (f *deliveryFailures) Handle(_ context.Context, _ insurai.Notification, channel string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.errs = append(f.errs, err)
}

func (f *deliveryFailures) Channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channels...)
}

func TestDispatcherDeliversToEveryChannel(t *testing.T) {
	var (
		mu        sync.Mutex
		delivered []insurai.Notification
	)
	failures := &deliveryFailures{}
	failing := insurai.ChannelFunc{ChannelName: "smtp", Fn: func(context.Context, insurai.Notification) error {
		return errors.New("connection refused")
	}}
	recording := insurai.ChannelFunc{ChannelName: "log", Fn: func(_ context.Context, n insurai.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, n)
		return nil
	}}

	d := insurai.NewDispatcher([]insurai.NotificationChannel{failing, recording},
		insurai.WithDispatcherWorkers(1),
		insurai.WithDispatcherClock(fixedClock(testNow)),
		insurai.WithDispatcherLogger(quietLogger{}),
		insurai.WithDeliveryErrorHandler(failures.Handle),
	)

	payload := map[string]any{"claim_id": 42, "status": "APPROVED"}
	require.NoError(t, d.Enqueue(context.Background(), insurai.EventClaimStatusChanged, employeeRecipient, payload))
	payload["status"] = "MUTATED"
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, delivered, 1)
	n := delivered[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, insurai.EventClaimStatusChanged, n.Kind)
	assert.Equal(t, "InsurAI - Claim #42 Status Update: APPROVED", n.Subject)
	assert.Equal(t, "APPROVED", n.Payload["status"])
	assert.Equal(t, testNow, n.CreatedAt)

	assert.Equal(t, []string{"smtp"}, failures.Channels())
	assert.True(t, insurai.HasTextCode(failures.errs[0], insurai.TextCodeSideEffect))
}

func TestDispatcherRejectsWrongRecipientRole(t *testing.T) {
	d := insurai.NewDispatcher(nil, insurai.WithDispatcherLogger(quietLogger{}))
	defer d.Close(context.Background())

	err := d.Enqueue(context.Background(), insurai.EventClaimAssigned, employeeRecipient, nil)
	require.Error(t, err)
	assert.True(t, insurai.HasTextCode(err, insurai.TextCodeSideEffect))

	err = d.Enqueue(context.Background(), insurai.EventKind("PARTY"), employeeRecipient, nil)
	assert.Error(t, err)

	err = d.Enqueue(context.Background(), insurai.EventQueryAnswered, insurai.Recipient{Role: insurai.RoleEmployee}, nil)
	assert.Error(t, err)
}

func TestDispatcherQueueFullNeverBlocks(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	blocking := insurai.ChannelFunc{ChannelName: "slow", Fn: func(context.Context, insurai.Notification) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}}

	d := insurai.NewDispatcher([]insurai.NotificationChannel{blocking},
		insurai.WithDispatcherWorkers(1),
		insurai.WithDispatcherQueueSize(1),
		insurai.WithDeliveryTimeout(time.Minute),
		insurai.WithDispatcherLogger(quietLogger{}),
	)

	ctx := context.Background()
	require.NoError(t, d.Enqueue(ctx, insurai.EventQueryAnswered, employeeRecipient, nil))
	<-started
	require.NoError(t, d.Enqueue(ctx, insurai.EventQueryAnswered, employeeRecipient, nil))

	err := d.Enqueue(ctx, insurai.EventQueryAnswered, employeeRecipient, nil)
	require.Error(t, err)
	assert.True(t, insurai.HasTextCode(err, insurai.TextCodeSideEffect))

	close(release)
	require.NoError(t, d.Close(ctx))
}

func TestDispatcherRecoversChannelPanic(t *testing.T) {
	var delivered atomic.Int32
	failures := &deliveryFailures{}
	panicking := insurai.ChannelFunc{ChannelName: "broken", Fn: func(context.Context, insurai.Notification) error {
		panic("nil template")
	}}
	counting := insurai.ChannelFunc{ChannelName: "count", Fn: func(context.Context, insurai.Notification) error {
		delivered.Add(1)
		return nil
	}}

	d := insurai.NewDispatcher([]insurai.NotificationChannel{panicking, counting},
		insurai.WithDispatcherWorkers(2),
		insurai.WithDeliveryErrorHandler(failures.Handle),
	)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Enqueue(context.Background(), insurai.EventEnrollmentApproved, employeeRecipient, map[string]any{"policy_name": "Gold"}))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(3), delivered.Load())
	assert.Equal(t, []string{"broken", "broken", "broken"}, failures.Channels())
}

func TestDispatcherCloseDrainsAndRejectsLateEvents(t *testing.T) {
	var delivered atomic.Int32
	counting := insurai.ChannelFunc{ChannelName: "count", Fn: func(context.Context, insurai.Notification) error {
		time.Sleep(time.Millisecond)
		delivered.Add(1)
		return nil
	}}

	d := insurai.NewDispatcher([]insurai.NotificationChannel{counting}, insurai.WithDispatcherWorkers(2))
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Enqueue(context.Background(), insurai.EventPolicyStatusChanged, employeeRecipient, nil))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(20), delivered.Load())

	err := d.Enqueue(context.Background(), insurai.EventPolicyStatusChanged, employeeRecipient, nil)
	assert.True(t, insurai.HasTextCode(err, insurai.TextCodeSideEffect))
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcherDeliveryIgnoresCallerCancellation(t *testing.T) {
	seen := make(chan error, 1)
	channel := insurai.ChannelFunc{ChannelName: "ctx", Fn: func(ctx context.Context, _ insurai.Notification) error {
		seen <- ctx.Err()
		return nil
	}}
	d := insurai.NewDispatcher([]insurai.NotificationChannel{channel}, insurai.WithDispatcherWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Enqueue(ctx, insurai.EventQueryAnswered, employeeRecipient, nil))
	cancel()
	require.NoError(t, d.Close(context.Background()))

	assert.NoError(t, <-seen)
}

func TestEventRecipientRules(t *testing.T) {
	cases := map[insurai.EventKind]insurai.Role{
		insurai.EventClaimStatusChanged:  insurai.RoleEmployee,
		insurai.EventClaimAssigned:       insurai.RoleHR,
		insurai.EventQuerySubmitted:      insurai.RoleAgent,
		insurai.EventQueryAnswered:       insurai.RoleEmployee,
		insurai.EventEnrollmentApproved:  insurai.RoleEmployee,
		insurai.EventReimbursementStatus: insurai.RoleEmployee,
		insurai.EventPolicyRenewalDue:    insurai.RoleEmployee,
		insurai.EventPolicyStatusChanged: insurai.RoleEmployee,
		insurai.EventPasswordReset:       insurai.RoleEmployee,
	}
	assert.Len(t, insurai.EventKinds(), len(cases))
	for kind, want := range cases {
		role, ok := kind.RecipientRole()
		assert.True(t, ok, kind)
		assert.Equal(t, want, role, kind)
	}

	kind, err := insurai.ParseEventKind(" claim_assigned ")
	require.NoError(t, err)
	assert.Equal(t, insurai.EventClaimAssigned, kind)

	_, err = insurai.ParseEventKind("nope")
	assert.True(t, insurai.IsValidationError(err))
}

func TestSubjects(t *testing.T) {
	tests := []struct {
		kind    insurai.EventKind
		payload map[string]any
		want    string
	}{
		{insurai.EventClaimAssigned, map[string]any{"claim_id": 9}, "InsurAI - New Claim Assignment #9 - Action Required"},
		{insurai.EventQuerySubmitted, map[string]any{"query_id": 3}, "InsurAI - New Employee Query #3 - Response Required"},
		{insurai.EventQueryAnswered, map[string]any{"query_id": 3}, "InsurAI - Your Query #3 Has Been Answered"},
		{insurai.EventReimbursementStatus, map[string]any{"claim_id": 9, "status": "PAID"}, "InsurAI - Reimbursement PAID for Claim #9"},
		{insurai.EventPolicyRenewalDue, map[string]any{"policy_name": "Gold", "days_remaining": 5}, "URGENT: InsurAI - Policy Renewal Alert: Gold"},
		{insurai.EventPolicyRenewalDue, map[string]any{"policy_name": "Gold", "days_remaining": 12}, "Important: InsurAI - Policy Renewal Alert: Gold"},
		{insurai.EventPolicyRenewalDue, map[string]any{"policy_name": "Gold", "days_remaining": 30}, "InsurAI - Policy Renewal Alert: Gold"},
		{insurai.EventPolicyStatusChanged, map[string]any{"policy_name": "Gold", "status": "Expired"}, "InsurAI - Policy Status Update: Gold - Expired"},
		{insurai.EventPasswordReset, map[string]any{"reset_link": "/employee/password/reset/x"}, "InsurAI - Password Reset Request"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, insurai.Subject(tt.kind, tt.payload))
	}
}

func TestRenewalUrgency(t *testing.T) {
	assert.Equal(t, insurai.UrgencyCritical, insurai.RenewalUrgencyFor(0))
	assert.Equal(t, insurai.UrgencyCritical, insurai.RenewalUrgencyFor(7))
	assert.Equal(t, insurai.UrgencyHigh, insurai.RenewalUrgencyFor(8))
	assert.Equal(t, insurai.UrgencyHigh, insurai.RenewalUrgencyFor(15))
	assert.Equal(t, insurai.UrgencyNormal, insurai.RenewalUrgencyFor(16))
}
