package redisnotify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	insurai "github.com/goliatone/go-insurai"
)

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	return args.Get(0).(*redis.IntCmd)
}

func TestChannelPushesEnvelope(t *testing.T) {
	pusher := &mockPusher{}
	var pushed []any
	pusher.On("RPush", mock.Anything, DefaultListKey, mock.Anything).
		Run(func(args mock.Arguments) { pushed = args.Get(2).([]any) }).
		Return(redis.NewIntResult(1, nil)).
		Once()
	ch := New(pusher, "")

	n := insurai.Notification{
		ID:        "n-1",
		Kind:      insurai.EventClaimAssigned,
		Recipient: insurai.Recipient{Role: insurai.RoleHR, ID: 7, Email: "hr@example.com"},
		Subject:   "InsurAI - New Claim Assigned",
		Payload:   map[string]any{"claim_id": 42},
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ch.Deliver(context.Background(), n))

	assert.Equal(t, "redis", ch.Name())
	pusher.AssertExpectations(t)
	require.Len(t, pushed, 1)

	raw, ok := pushed[0].([]byte)
	require.True(t, ok)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, "n-1", env.Notification.ID)
	assert.Equal(t, insurai.EventClaimAssigned, env.Notification.Kind)
	assert.Equal(t, int64(7), env.Notification.Recipient.ID)
	assert.EqualValues(t, 42, env.Notification.Payload["claim_id"])
}

func TestChannelWrapsPushFailure(t *testing.T) {
	pusher := &mockPusher{}
	pusher.On("RPush", mock.Anything, "custom", mock.Anything).
		Return(redis.NewIntResult(0, errors.New("connection refused")))
	ch := New(pusher, "custom")

	err := ch.Deliver(context.Background(), insurai.Notification{ID: "n-2"})
	require.Error(t, err)
	pusher.AssertCalled(t, "RPush", mock.Anything, "custom", mock.Anything)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryExternal, richErr.Category)
	assert.Equal(t, "n-2", richErr.Metadata["notification_id"])
}

func TestNewClientRequiresAddr(t *testing.T) {
	_, _, err := NewClient("", "", 0, "")
	assert.Error(t, err)
}
