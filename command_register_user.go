package insurai

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Kind     AccountKind `json:"-"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	// Actor is the caller. A zero actor registers the account as its own
	// actor.
	Actor      Identity               `json:"-"`
	OnResponse func(account *Account) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Kind, validation.Required, validation.In(AccountEmployee, AccountHR, AccountAgent, AccountAdmin)),
		validation.Field(&e.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 72)),
	)
}

// RegisterAccountHandler creates accounts. HR and Agent accounts are only
// registered by ADMIN callers; employees register themselves.
type RegisterAccountHandler struct {
	repo    RepositoryManager
	hasher  PasswordAuthenticator
	auditor Auditor
	now     Clock
	logger  Logger
}

var _ command.Commander[RegisterAccountMessage] = (*RegisterAccountHandler)(nil)

func NewRegisterAccountHandler(repo RepositoryManager, hasher PasswordAuthenticator, auditor Auditor, logger Logger) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:    repo,
		hasher:  hasher,
		auditor: normalizeAuditor(auditor),
		now:     time.Now,
		logger:  normalizeLogger(logger),
	}
}

// Register runs msg on behalf of actor and returns the stored account.
func (h *RegisterAccountHandler) Register(ctx context.Context, actor Identity, msg RegisterAccountMessage) (*Account, error) {
	var account *Account
	msg.Actor = actor
	msg.OnResponse = func(a *Account) { account = a }
	if err := h.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return account, nil
}

// Execute registers the account in msg and hands it to msg.OnResponse.
func (h *RegisterAccountHandler) Execute(ctx context.Context, msg RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
	}

	account, err := h.execute(ctx, msg.Actor, msg)
	if err != nil {
		return err
	}
	if msg.OnResponse != nil {
		msg.OnResponse(account)
	}
	return nil
}

func (h *RegisterAccountHandler) execute(ctx context.Context, actor Identity, msg RegisterAccountMessage) (*Account, error) {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = normalizeEmail(msg.Email)
	if err := msg.Validate(); err != nil {
		return nil, fromValidation(err, "invalid registration")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	account := &Account{
		Kind:         msg.Kind,
		Name:         msg.Name,
		Email:        msg.Email,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, msg.Kind, msg.Email); err == nil {
			return newError(ErrDuplicateAccount, map[string]any{"kind": msg.Kind, "email": msg.Email})
		} else if !IsNotFound(err) {
			return err
		}

		if _, err := h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not register account")
	}

	if actor.IsZero() {
		actor = Identity{Subject: account.Email, Role: account.Kind.Role()}
	}
	entry := auditEntry(actor, "register_"+msg.Kind.String(), msg.Kind.String(), account.ID, map[string]any{"email": account.Email})
	if err := h.auditor.Append(context.WithoutCancel(ctx), entry); err != nil {
		h.logger.Error("registration audit failed", "kind", msg.Kind, "id", account.ID, "error", err)
	}

	return account, nil
}
