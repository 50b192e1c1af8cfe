package insurai

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultDSN is an in-memory database shared across one connection.
const DefaultDSN = "file::memory:?cache=shared"

// OpenDB opens a SQLite backed bun.DB. SQLite allows a single writer, so the
// pool is capped at one connection.
func OpenDB(dsn string) (*bun.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, storageError(err, "open")
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
