package insurai

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// UserDirectory owns the active flag, name and email of Employee, HR and
// Agent accounts. Callers must have passed the ADMIN gate.
type UserDirectory struct {
	accounts Accounts
	auditor  Auditor
	now      Clock
	logger   Logger
}

// DirectoryOption customizes the directory.
type DirectoryOption func(*UserDirectory)

func WithDirectoryClock(clock Clock) DirectoryOption {
	return func(d *UserDirectory) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDirectoryAuditor records directory mutations. Audit failures are
// logged and do not fail the mutation.
func WithDirectoryAuditor(auditor Auditor) DirectoryOption {
	return func(d *UserDirectory) {
		d.auditor = normalizeAuditor(auditor)
	}
}

func WithDirectoryLogger(logger Logger) DirectoryOption {
	return func(d *UserDirectory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewUserDirectory(accounts Accounts, opts ...DirectoryOption) *UserDirectory {
	d := &UserDirectory{
		accounts: accounts,
		auditor:  noopAuditor{},
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

var _ AccountLookup = (*UserDirectory)(nil)

func (d *UserDirectory) Get(ctx context.Context, kind AccountKind, id int64) (*Account, error) {
	if !kind.IsValid() {
		return nil, notFound(string(kind), id)
	}
	return d.accounts.GetByID(ctx, kind, id)
}

func (d *UserDirectory) FindByEmail(ctx context.Context, kind AccountKind, email string) (*Account, error) {
	return d.accounts.GetByEmail(ctx, kind, email)
}

func (d *UserDirectory) List(ctx context.Context, kind AccountKind) ([]*Account, error) {
	return d.accounts.List(ctx, kind)
}

// SetActive toggles the active flag.
func (d *UserDirectory) SetActive(ctx context.Context, actor Identity, kind AccountKind, id int64, active bool) error {
	if err := d.checkKind(kind, id); err != nil {
		return err
	}
	ok, err := d.accounts.SetActive(ctx, kind, id, active, d.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return notFound(kind.String(), id)
	}
	d.record(ctx, actor, "set_active", kind, id, map[string]any{"active": active})
	return nil
}

// Update applies a partial update. Absent or blank fields keep their value.
func (d *UserDirectory) Update(ctx context.Context, actor Identity, kind AccountKind, id int64, update AccountUpdate) error {
	if err := d.checkKind(kind, id); err != nil {
		return err
	}

	name := nonBlank(update.Name)
	email := nonBlank(update.Email)
	if email != nil {
		if err := validation.Validate(*email, is.EmailFormat); err != nil {
			return fromValidation(validation.Errors{"email": err}, "invalid account update")
		}
	}

	ok, err := d.accounts.Update(ctx, kind, id, name, email, d.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return notFound(kind.String(), id)
	}

	details := map[string]any{}
	if name != nil {
		details["name"] = *name
	}
	if email != nil {
		details["email"] = normalizeEmail(*email)
	}
	d.record(ctx, actor, "update", kind, id, details)
	return nil
}

// Delete removes the account. Deletion is terminal.
func (d *UserDirectory) Delete(ctx context.Context, actor Identity, kind AccountKind, id int64) error {
	if err := d.checkKind(kind, id); err != nil {
		return err
	}
	ok, err := d.accounts.Delete(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(kind.String(), id)
	}
	d.record(ctx, actor, "delete", kind, id, nil)
	return nil
}

func (d *UserDirectory) checkKind(kind AccountKind, id int64) error {
	switch kind {
	case AccountEmployee, AccountHR, AccountAgent:
		return nil
	}
	return notFound(kind.String(), id)
}

func (d *UserDirectory) record(ctx context.Context, actor Identity, action string, kind AccountKind, id int64, details map[string]any) {
	entry := auditEntry(actor, action, kind.String(), id, details)
	if err := d.auditor.Append(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Error("directory audit failed", "action", action, "kind", kind, "id", id, "error", err)
	}
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
