package insurai

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts stores Employee, HR, Agent and Admin records.
type Accounts interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	GetByID(ctx context.Context, kind AccountKind, id int64) (*Account, error)
	GetByEmail(ctx context.Context, kind AccountKind, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, kind AccountKind, email string) (*Account, error)
	List(ctx context.Context, kind AccountKind) ([]*Account, error)
	FirstActive(ctx context.Context, kind AccountKind) (*Account, error)
	SetActive(ctx context.Context, kind AccountKind, id int64, active bool, at time.Time) (bool, error)
	Update(ctx context.Context, kind AccountKind, id int64, name, email *string, at time.Time) (bool, error)
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, kind AccountKind, id int64, hash string, at time.Time) (bool, error)
	Delete(ctx context.Context, kind AccountKind, id int64) (bool, error)
}

// int64Handlers adapts autoincrement models to the generic repository,
// which keys records by UUID. The database assigns the ID on insert.
func int64Handlers[T any](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(T) uuid.UUID {
			return uuid.Nil
		},
		SetID: func(T, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
	}
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{
		Repository: repository.NewRepository(db, int64Handlers(func() *Account {
			return &Account{}
		})),
		db: db,
	}
}

func (a *accounts) Create(ctx context.Context, account *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, account)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	account.Email = normalizeEmail(account.Email)
	if _, err := a.Repository.CreateTx(ctx, tx, account); err != nil {
		if isUniqueViolation(err) {
			return nil, wrapError(ErrDuplicateAccount, err, map[string]any{
				"kind":  account.Kind,
				"email": account.Email,
			})
		}
		return nil, storageError(err, "accounts.create")
	}
	return account, nil
}

func (a *accounts) GetByID(ctx context.Context, kind AccountKind, id int64) (*Account, error) {
	record, err := a.Repository.Get(ctx,
		repository.SelectBy("kind", "=", kind.String()),
		repository.SelectByID(int64String(id)),
	)
	if err != nil {
		return nil, repoError(err, "accounts.get", kind.String(), id)
	}
	return record, nil
}

func (a *accounts) GetByEmail(ctx context.Context, kind AccountKind, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, kind, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, kind AccountKind, email string) (*Account, error) {
	record, err := a.Repository.GetTx(ctx, tx,
		repository.SelectBy("kind", "=", kind.String()),
		repository.SelectBy("email", "=", normalizeEmail(email)),
	)
	if err != nil {
		return nil, repoError(err, "accounts.get_by_email", kind.String(), email)
	}
	return record, nil
}

func (a *accounts) List(ctx context.Context, kind AccountKind) ([]*Account, error) {
	records, _, err := a.Repository.List(ctx,
		repository.SelectBy("kind", "=", kind.String()),
		repository.OrderBy("id ASC"),
		unbounded,
	)
	if err != nil {
		return nil, storageError(err, "accounts.list")
	}
	return records, nil
}

func (a *accounts) FirstActive(ctx context.Context, kind AccountKind) (*Account, error) {
	record, err := a.Repository.Get(ctx,
		repository.SelectBy("kind", "=", kind.String()),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.active = ?", true)
		}),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, repoError(err, "accounts.first_active", "active "+kind.String(), nil)
	}
	return record, nil
}

func (a *accounts) SetActive(ctx context.Context, kind AccountKind, id int64, active bool, at time.Time) (bool, error) {
	res, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", at).
		Where("kind = ?", kind).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "accounts.set_active")
}

func (a *accounts) Update(ctx context.Context, kind AccountKind, id int64, name, email *string, at time.Time) (bool, error) {
	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("updated_at = ?", at).
		Where("kind = ?", kind).
		Where("id = ?", id)
	if name != nil {
		q = q.Set("name = ?", *name)
	}
	if email != nil {
		q = q.Set("email = ?", normalizeEmail(*email))
	}

	res, err := q.Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return false, wrapError(ErrDuplicateAccount, err, map[string]any{"kind": kind, "id": id})
	}
	return affected(res, err, "accounts.update")
}

func (a *accounts) SetPasswordHashTx(ctx context.Context, tx bun.IDB, kind AccountKind, id int64, hash string, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", at).
		Where("kind = ?", kind).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "accounts.set_password")
}

func (a *accounts) Delete(ctx context.Context, kind AccountKind, id int64) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*Account)(nil)).
		Where("kind = ?", kind).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "accounts.delete")
}

// unbounded lifts the default page size applied by repository listings.
var unbounded = repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Limit(0).Offset(0)
})

// repoError maps generic repository failures onto the portal error set.
func repoError(err error, op, entity string, id any) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return notFound(entity, id)
	}
	return storageError(err, op)
}

func affected(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, storageError(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(err, op)
	}
	return n > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func int64String(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(repository.MapDatabaseError(err, "sqlite")) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
