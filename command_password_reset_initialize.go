package insurai

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultPasswordResetTTL is how long a reset link stays redeemable.
const DefaultPasswordResetTTL = 30 * time.Minute

// InitializePasswordResetMessage asks for a reset link for an employee
// account.
type InitializePasswordResetMessage struct {
	Email      string                                      `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (m InitializePasswordResetMessage) Type() string { return "account.password_reset" }

func (m InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.EmailFormat),
	)
}

// InitializePasswordResetResponse carries the created reset. Reset is nil
// when no active employee matched the email.
type InitializePasswordResetResponse struct {
	Reset *PasswordReset
}

// PasswordResetPath is the portal path a reset link points at.
func PasswordResetPath(reset *PasswordReset) string {
	return "/employee/password/reset/" + reset.ID.String()
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	auditor  Auditor
	now      Clock
	ttl      time.Duration
	logger   Logger
}

var _ command.Commander[InitializePasswordResetMessage] = (*InitializePasswordResetHandler)(nil)

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier Notifier, auditor Auditor, logger Logger) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		auditor:  normalizeAuditor(auditor),
		now:      time.Now,
		ttl:      DefaultPasswordResetTTL,
		logger:   normalizeLogger(logger),
	}
}

func (h *InitializePasswordResetHandler) WithClock(clock Clock) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) WithTTL(ttl time.Duration) *InitializePasswordResetHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

// Request runs the reset request for email and returns the created reset,
// or nil when nothing was issued.
func (h *InitializePasswordResetHandler) Request(ctx context.Context, email string) (*PasswordReset, error) {
	var reset *PasswordReset
	msg := InitializePasswordResetMessage{
		Email:      email,
		OnResponse: func(resp *InitializePasswordResetResponse) { reset = resp.Reset },
	}
	if err := h.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return reset, nil
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, msg InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, msg InitializePasswordResetMessage) error {
	msg.Email = normalizeEmail(msg.Email)
	if err := msg.Validate(); err != nil {
		return fromValidation(err, "invalid password reset request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{}
	var account *Account

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.Accounts().GetByEmailTx(ctx, tx, AccountEmployee, msg.Email)
		if err != nil {
			// unknown emails get the same answer as known ones
			if IsNotFound(err) {
				return nil
			}
			return err
		}
		if !found.Active {
			return nil
		}

		now := h.now().UTC()
		reset := &PasswordReset{
			AccountID: found.ID,
			Kind:      found.Kind,
			Email:     found.Email,
			Status:    ResetRequestedStatus,
			ExpiresAt: now.Add(h.ttl),
			CreatedAt: now,
		}
		created, err := h.repo.PasswordResets().CreateTx(ctx, tx, reset)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}
		resp.Reset = created
		account = found
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not initialize password reset")
	}

	if resp.Reset != nil {
		h.deliver(ctx, account, resp.Reset)
	}

	if msg.OnResponse != nil {
		msg.OnResponse(resp)
	}
	return nil
}

func (h *InitializePasswordResetHandler) deliver(ctx context.Context, account *Account, reset *PasswordReset) {
	ctx = context.WithoutCancel(ctx)

	if h.notifier != nil {
		payload := map[string]any{
			"employee_name": account.Name,
			"reset_link":    PasswordResetPath(reset),
			"expires_at":    reset.ExpiresAt.Format(time.RFC3339),
		}
		if err := h.notifier.Enqueue(ctx, EventPasswordReset, RecipientFromAccount(account), payload); err != nil {
			h.logger.Error("password reset notification failed", "account_id", account.ID, "error", err)
		}
	}

	actor := Identity{Subject: account.Email, Role: account.Kind.Role()}
	entry := auditEntry(actor, "password_reset_requested", account.Kind.String(), account.ID, map[string]any{
		"expires_at": reset.ExpiresAt.Format(time.RFC3339),
	})
	if err := h.auditor.Append(ctx, entry); err != nil {
		h.logger.Error("password reset audit failed", "account_id", account.ID, "error", err)
	}
}
