package insurai

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Policies stores policies and employee enrollments.
type Policies interface {
	Create(ctx context.Context, policy *Policy) (*Policy, error)
	GetByID(ctx context.Context, id int64) (*Policy, error)
	// RenewingBetween lists active policies whose renewal date falls in [from, to].
	RenewingBetween(ctx context.Context, from, to time.Time) ([]*Policy, error)
	// ExpiredActive lists active policies whose renewal date is before at.
	ExpiredActive(ctx context.Context, at time.Time) ([]*Policy, error)
	SetStatus(ctx context.Context, id int64, from, to string, at time.Time) (bool, error)

	Enroll(ctx context.Context, enrollment *Enrollment) (*Enrollment, error)
	GetEnrollment(ctx context.Context, id int64) (*Enrollment, error)
	ApproveEnrollment(ctx context.Context, id int64, effective, at time.Time) (bool, error)
	ApprovedEnrollments(ctx context.Context, policyID int64) ([]*Enrollment, error)
}

type policies struct {
	db *bun.DB
}

var _ Policies = (*policies)(nil)

func NewPoliciesRepository(db *bun.DB) Policies {
	return &policies{db: db}
}

func (r *policies) Create(ctx context.Context, policy *Policy) (*Policy, error) {
	if _, err := r.db.NewInsert().Model(policy).Exec(ctx); err != nil {
		return nil, storageError(err, "policies.create")
	}
	return policy, nil
}

func (r *policies) GetByID(ctx context.Context, id int64) (*Policy, error) {
	record := &Policy{}
	err := r.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("policy", id)
		}
		return nil, storageError(err, "policies.get")
	}
	return record, nil
}

func (r *policies) RenewingBetween(ctx context.Context, from, to time.Time) ([]*Policy, error) {
	records := []*Policy{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.policy_status = ?", PolicyStatusActive).
		Where("?TableAlias.renewal_date >= ?", from).
		Where("?TableAlias.renewal_date <= ?", to).
		Order("renewal_date ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "policies.renewing")
	}
	return records, nil
}

func (r *policies) ExpiredActive(ctx context.Context, at time.Time) ([]*Policy, error) {
	records := []*Policy{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.policy_status = ?", PolicyStatusActive).
		Where("?TableAlias.renewal_date < ?", at).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "policies.expired")
	}
	return records, nil
}

func (r *policies) SetStatus(ctx context.Context, id int64, from, to string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*Policy)(nil)).
		Set("policy_status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("policy_status = ?", from).
		Exec(ctx)
	return affected(res, err, "policies.set_status")
}

func (r *policies) Enroll(ctx context.Context, enrollment *Enrollment) (*Enrollment, error) {
	if _, err := r.db.NewInsert().Model(enrollment).Exec(ctx); err != nil {
		return nil, storageError(err, "enrollments.create")
	}
	return enrollment, nil
}

func (r *policies) GetEnrollment(ctx context.Context, id int64) (*Enrollment, error) {
	record := &Enrollment{}
	err := r.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("enrollment", id)
		}
		return nil, storageError(err, "enrollments.get")
	}
	return record, nil
}

func (r *policies) ApproveEnrollment(ctx context.Context, id int64, effective, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*Enrollment)(nil)).
		Set("status = ?", EnrollmentApproved).
		Set("effective_date = ?", effective).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", EnrollmentPending).
		Exec(ctx)
	return affected(res, err, "enrollments.approve")
}

func (r *policies) ApprovedEnrollments(ctx context.Context, policyID int64) ([]*Enrollment, error) {
	records := []*Enrollment{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.policy_id = ?", policyID).
		Where("?TableAlias.status = ?", EnrollmentApproved).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "enrollments.approved")
	}
	return records, nil
}
