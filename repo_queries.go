package insurai

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// EmployeeQueries stores employee questions and agent answers.
type EmployeeQueries interface {
	Create(ctx context.Context, query *EmployeeQuery) (*EmployeeQuery, error)
	GetByID(ctx context.Context, id int64) (*EmployeeQuery, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]*EmployeeQuery, error)
	ListByAgent(ctx context.Context, agentID int64, pendingOnly bool) ([]*EmployeeQuery, error)
	// Answer only writes while the response is still empty.
	Answer(ctx context.Context, id int64, response string, at time.Time) (bool, error)
}

type employeeQueries struct {
	db *bun.DB
}

var _ EmployeeQueries = (*employeeQueries)(nil)

func NewEmployeeQueriesRepository(db *bun.DB) EmployeeQueries {
	return &employeeQueries{db: db}
}

func (r *employeeQueries) Create(ctx context.Context, query *EmployeeQuery) (*EmployeeQuery, error) {
	if _, err := r.db.NewInsert().Model(query).Exec(ctx); err != nil {
		return nil, storageError(err, "queries.create")
	}
	return query, nil
}

func (r *employeeQueries) GetByID(ctx context.Context, id int64) (*EmployeeQuery, error) {
	record := &EmployeeQuery{}
	err := r.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("query", id)
		}
		return nil, storageError(err, "queries.get")
	}
	return record, nil
}

func (r *employeeQueries) ListByEmployee(ctx context.Context, employeeID int64) ([]*EmployeeQuery, error) {
	records := []*EmployeeQuery{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.employee_id = ?", employeeID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "queries.list_employee")
	}
	return records, nil
}

func (r *employeeQueries) ListByAgent(ctx context.Context, agentID int64, pendingOnly bool) ([]*EmployeeQuery, error) {
	records := []*EmployeeQuery{}
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.agent_id = ?", agentID)
	if pendingOnly {
		q = q.Where("?TableAlias.response IS NULL")
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, storageError(err, "queries.list_agent")
	}
	return records, nil
}

func (r *employeeQueries) Answer(ctx context.Context, id int64, response string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*EmployeeQuery)(nil)).
		Set("response = ?", response).
		Set("answered_at = ?", at).
		Where("id = ?", id).
		Where("response IS NULL").
		Exec(ctx)
	return affected(res, err, "queries.answer")
}
