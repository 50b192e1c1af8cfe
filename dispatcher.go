package insurai

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultDispatcherWorkers = 4
	DefaultDispatcherQueue   = 256
	DefaultDeliveryTimeout   = 10 * time.Second
)

// NotificationChannel delivers a notification to one transport.
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// ChannelFunc adapts a function into a NotificationChannel.
type ChannelFunc struct {
	ChannelName string
	Fn          func(ctx context.Context, n Notification) error
}

func (c ChannelFunc) Name() string {
	return c.ChannelName
}

func (c ChannelFunc) Deliver(ctx context.Context, n Notification) error {
	if c.Fn == nil {
		return nil
	}
	return c.Fn(ctx, n)
}

// DeliveryErrorHandler receives delivery failures. It runs on a worker
// goroutine and must not block for long.
type DeliveryErrorHandler func(ctx context.Context, n Notification, channel string, err error)

// DispatcherOption customizes the dispatcher.
type DispatcherOption func(*AsyncDispatcher)

func WithDispatcherWorkers(n int) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithDispatcherQueueSize(n int) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDeliveryTimeout bounds each channel delivery attempt.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithDispatcherClock(clock Clock) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDeliveryErrorHandler overrides how delivery failures are reported.
// The default handler logs them.
func WithDeliveryErrorHandler(handler DeliveryErrorHandler) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if handler != nil {
			d.onError = handler
		}
	}
}

// AsyncDispatcher queues notifications and delivers them on a worker pool.
// Each event is delivered to every channel independently; a failure or panic
// on one event never affects another.
type AsyncDispatcher struct {
	channels  []NotificationChannel
	workers   int
	queueSize int
	timeout   time.Duration
	logger    Logger
	now       Clock
	onError   DeliveryErrorHandler

	queue  chan queuedNotification
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type queuedNotification struct {
	ctx          context.Context
	notification Notification
}

var _ Notifier = (*AsyncDispatcher)(nil)

// NewDispatcher builds a dispatcher and starts its workers.
func NewDispatcher(channels []NotificationChannel, opts ...DispatcherOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		workers:   DefaultDispatcherWorkers,
		queueSize: DefaultDispatcherQueue,
		timeout:   DefaultDeliveryTimeout,
		logger:    defLogger{},
		now:       time.Now,
	}
	for _, ch := range channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.onError == nil {
		d.onError = d.logDeliveryError
	}

	d.queue = make(chan queuedNotification, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue validates the event against its recipient rule and queues it.
// It never waits for delivery and never blocks on a full queue.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, kind EventKind, recipient Recipient, payload map[string]any) error {
	if err := checkRecipient(kind, recipient); err != nil {
		return wrapError(ErrSideEffect, err, map[string]any{"kind": kind, "stage": "enqueue"})
	}

	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		Subject:   Subject(kind, payload),
		Payload:   clonePayload(payload),
		CreatedAt: d.now().UTC(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return newError(ErrSideEffect, map[string]any{"kind": kind, "reason": "dispatcher closed"})
	}

	select {
	case d.queue <- queuedNotification{ctx: context.WithoutCancel(ctx), notification: n}:
		return nil
	default:
		return newError(ErrSideEffect, map[string]any{"kind": kind, "reason": "queue full", "notification_id": n.ID})
	}
}

// Close stops accepting events and waits for queued ones to drain.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for item := range d.queue {
		for _, ch := range d.channels {
			d.deliver(item.ctx, ch, item.notification)
		}
	}
}

func (d *AsyncDispatcher) deliver(parent context.Context, ch NotificationChannel, n Notification) {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("channel panic: %v", r)
			}
		}()
		return ch.Deliver(ctx, n)
	}()

	if err != nil {
		d.onError(ctx, n, ch.Name(), wrapError(ErrSideEffect, err, map[string]any{
			"channel":         ch.Name(),
			"notification_id": n.ID,
			"kind":            n.Kind,
		}))
		return
	}
	d.logger.Debug("notification delivered", "channel", ch.Name(), "kind", n.Kind, "id", n.ID)
}

func (d *AsyncDispatcher) logDeliveryError(_ context.Context, n Notification, channel string, err error) {
	args := []any{"channel", channel, "kind", n.Kind, "id", n.ID, "error", err}
	for _, attr := range goerrors.ToSlogAttributes(err) {
		args = append(args, attr)
	}
	d.logger.Error("notification delivery failed", args...)
}

func clonePayload(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
