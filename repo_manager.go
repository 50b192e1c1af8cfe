package insurai

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Migrate(ctx context.Context) error
	Accounts() Accounts
	Claims() Claims
	AuditLogs() AuditStore
	Queries() EmployeeQueries
	Policies() Policies
	PasswordResets() repository.Repository[*PasswordReset]
}

func NewPasswordResetsRepository(db *bun.DB) repository.Repository[*PasswordReset] {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db        *bun.DB
	accounts  Accounts
	claims    Claims
	auditLogs AuditStore
	queries   EmployeeQueries
	policies  Policies
	resets    repository.Repository[*PasswordReset]
	dbConfig  persistence.Config
}

// RepositoryManagerOption tunes NewRepositoryManager.
type RepositoryManagerOption func(*mngr)

// WithPersistenceConfig sets the options the migration client runs with.
func WithPersistenceConfig(cfg persistence.Config) RepositoryManagerOption {
	return func(m *mngr) {
		if cfg != nil {
			m.dbConfig = cfg
		}
	}
}

func NewRepositoryManager(db *bun.DB, opts ...RepositoryManagerOption) RepositoryManager {
	m := &mngr{
		db:        db,
		accounts:  NewAccountsRepository(db),
		claims:    NewClaimsRepository(db),
		auditLogs: NewAuditRepository(db),
		queries:   NewEmployeeQueriesRepository(db),
		policies:  NewPoliciesRepository(db),
		resets:    NewPasswordResetsRepository(db),
		dbConfig:  PersistenceConfig{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.claims == nil {
		return errors.New("repository claims should be initialized")
	}

	if m.auditLogs == nil {
		return errors.New("repository audit logs should be initialized")
	}

	if m.queries == nil || m.policies == nil {
		return errors.New("repository queries and policies should be initialized")
	}

	if m.resets == nil {
		return errors.New("repository password resets should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Migrate applies the embedded SQL migrations for the dialect of db.
// Applied migrations are tracked, so running it again is a no-op.
func (m mngr) Migrate(ctx context.Context) error {
	client, err := persistence.New(m.dbConfig, m.db.DB, m.db.Dialect())
	if err != nil {
		return storageError(err, "migrate.connect")
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return storageError(err, "migrate.files")
	}
	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return storageError(err, "migrate.validate")
	}

	if err := client.Migrate(ctx); err != nil {
		return storageError(err, "migrate")
	}
	return nil
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Claims() Claims {
	return m.claims
}

func (m mngr) AuditLogs() AuditStore {
	return m.auditLogs
}

func (m mngr) Queries() EmployeeQueries {
	return m.queries
}

func (m mngr) Policies() Policies {
	return m.policies
}

func (m mngr) PasswordResets() repository.Repository[*PasswordReset] {
	return m.resets
}

// PersistenceConfig configures the migration client. The zero value is
// usable.
type PersistenceConfig struct {
	Debug       bool
	PingTimeout time.Duration
}

var _ persistence.Config = PersistenceConfig{}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return "sqlite"
}

func (c PersistenceConfig) GetServer() string {
	return ""
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return ""
}
