package insurai

import (
	"context"
	"strconv"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ClaimFilter narrows claim listings. Zero values match everything.
type ClaimFilter struct {
	EmployeeID   *int64
	AssignedHrID *int64
	Status       ClaimStatus
	FraudOnly    bool
}

// ClaimTransition is a compare-and-set on the claim status. The update only
// applies while the stored status still equals From.
type ClaimTransition struct {
	From         ClaimStatus
	To           ClaimStatus
	AssignedHrID *int64
	Remarks      *string
	SetRemarks   bool
	At           time.Time
}

// Claims is the claim storage collaborator.
type Claims interface {
	Create(ctx context.Context, claim *Claim) (*Claim, error)
	CreateTx(ctx context.Context, tx bun.IDB, claim *Claim) (*Claim, error)
	GetByID(ctx context.Context, id int64) (*Claim, error)
	List(ctx context.Context, filter ClaimFilter) ([]*Claim, error)
	// TransitionStatus returns false when no row matched id and From.
	TransitionStatus(ctx context.Context, id int64, t ClaimTransition) (bool, error)
	SetFraud(ctx context.Context, id int64, flag bool, reason *string, at time.Time) (bool, error)
}

type claims struct {
	repository.Repository[*Claim]
	db *bun.DB
}

var _ Claims = (*claims)(nil)

func NewClaimsRepository(db *bun.DB) Claims {
	return &claims{
		Repository: repository.NewRepository(db, int64Handlers(func() *Claim {
			return &Claim{}
		})),
		db: db,
	}
}

func (r *claims) Create(ctx context.Context, claim *Claim) (*Claim, error) {
	return r.CreateTx(ctx, r.db, claim)
}

func (r *claims) CreateTx(ctx context.Context, tx bun.IDB, claim *Claim) (*Claim, error) {
	if claim.Documents == nil {
		claim.Documents = []string{}
	}
	if _, err := r.Repository.CreateTx(ctx, tx, claim); err != nil {
		return nil, storageError(err, "claims.create")
	}
	return claim, nil
}

func (r *claims) GetByID(ctx context.Context, id int64) (*Claim, error) {
	record, err := r.Repository.GetByID(ctx, int64String(id))
	if err != nil {
		return nil, repoError(err, "claims.get", "claim", id)
	}
	return record, nil
}

func (r *claims) List(ctx context.Context, filter ClaimFilter) ([]*Claim, error) {
	criteria := []repository.SelectCriteria{unbounded, repository.OrderBy("id ASC")}
	if filter.EmployeeID != nil {
		criteria = append(criteria, repository.SelectBy("employee_id", "=", strconv.FormatInt(*filter.EmployeeID, 10)))
	}
	if filter.AssignedHrID != nil {
		criteria = append(criteria, repository.SelectBy("assigned_hr_id", "=", strconv.FormatInt(*filter.AssignedHrID, 10)))
	}
	if filter.Status != "" {
		criteria = append(criteria, repository.SelectBy("status", "=", string(filter.Status)))
	}
	if filter.FraudOnly {
		criteria = append(criteria, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.fraud_flag = ?", true)
		}))
	}
	records, _, err := r.Repository.List(ctx, criteria...)
	if err != nil {
		return nil, storageError(err, "claims.list")
	}
	return records, nil
}

func (r *claims) TransitionStatus(ctx context.Context, id int64, t ClaimTransition) (bool, error) {
	q := r.db.NewUpdate().
		Model((*Claim)(nil)).
		Set("status = ?", t.To).
		Set("updated_at = ?", t.At).
		Where("id = ?", id).
		Where("status = ?", t.From)
	if t.AssignedHrID != nil {
		q = q.Set("assigned_hr_id = ?", *t.AssignedHrID)
	}
	if t.SetRemarks {
		q = q.Set("remarks = ?", t.Remarks)
	}
	res, err := q.Exec(ctx)
	return affected(res, err, "claims.transition")
}

func (r *claims) SetFraud(ctx context.Context, id int64, flag bool, reason *string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*Claim)(nil)).
		Set("fraud_flag = ?", flag).
		Set("fraud_reason = ?", reason).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "claims.set_fraud")
}
