package insurai

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage redeems the reset token in Session with a
// new password.
type FinalizePasswordResetMessage struct {
	Session  string `json:"-"`
	Password string `json:"password"`
}

func (m FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

func (m FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Session, validation.Required),
		validation.Field(&m.Password, validation.Required, validation.Length(6, 72)),
	)
}

type FinalizePasswordResetHandler struct {
	repo    RepositoryManager
	hasher  PasswordAuthenticator
	auditor Auditor
	now     Clock
	logger  Logger
}

var _ command.Commander[FinalizePasswordResetMessage] = (*FinalizePasswordResetHandler)(nil)

func NewFinalizePasswordResetHandler(repo RepositoryManager, hasher PasswordAuthenticator, auditor Auditor, logger Logger) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:    repo,
		hasher:  hasher,
		auditor: normalizeAuditor(auditor),
		now:     time.Now,
		logger:  normalizeLogger(logger),
	}
}

func (h *FinalizePasswordResetHandler) WithClock(clock Clock) *FinalizePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, msg FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, msg FinalizePasswordResetMessage) error {
	if err := msg.Validate(); err != nil {
		return fromValidation(err, "invalid password reset")
	}

	id, err := uuid.Parse(msg.Session)
	if err != nil {
		return notFound("password reset", msg.Session)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.hasher.HashPassword(msg.Password)
	if err != nil {
		return err
	}

	var reset *PasswordReset
	now := h.now().UTC()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err = h.repo.PasswordResets().GetByIDTx(ctx, tx, id.String())
		if err != nil {
			return repoError(err, "password_resets.get", "password reset", id.String())
		}

		if reset.Status != ResetRequestedStatus {
			return newError(ErrResetTokenUsed, map[string]any{"reset_id": reset.ID.String()})
		}

		if reset.Expired(now) {
			return newError(ErrResetTokenExpired, map[string]any{
				"reset_id":   reset.ID.String(),
				"expired_at": reset.ExpiresAt,
			})
		}

		ok, err := h.repo.Accounts().SetPasswordHashTx(ctx, tx, reset.Kind, reset.AccountID, hash, now)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(reset.Kind.String(), reset.AccountID)
		}

		// status guard makes concurrent redemptions of one token race on
		// a single row update
		used := &PasswordReset{ID: reset.ID, Status: ResetChangedStatus, ResetAt: &now}
		if _, err := h.repo.PasswordResets().UpdateTx(ctx, tx, used,
			repository.UpdateBy("status", "=", ResetRequestedStatus),
		); err != nil {
			if repository.IsSQLExpectedCountViolation(err) {
				return newError(ErrResetTokenUsed, map[string]any{"reset_id": reset.ID.String()})
			}
			return storageError(err, "password_resets.update")
		}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not finalize password reset")
	}

	actor := Identity{Subject: reset.Email, Role: reset.Kind.Role()}
	entry := auditEntry(actor, "password_reset", reset.Kind.String(), reset.AccountID, nil)
	if err := h.auditor.Append(context.WithoutCancel(ctx), entry); err != nil {
		h.logger.Error("password reset audit failed", "account_id", reset.AccountID, "error", err)
	}
	return nil
}
