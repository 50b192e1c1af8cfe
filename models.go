package insurai

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Account is an Employee, HR, Agent or Admin record. All kinds share the
// same shape; the kind decides the role of issued tokens.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	Kind          AccountKind `bun:"kind,notnull,unique:accounts_kind_email" json:"kind"`
	Name          string      `bun:"name,notnull" json:"name"`
	Email         string      `bun:"email,notnull,unique:accounts_kind_email" json:"email"`
	PasswordHash  string      `bun:"password_hash,notnull" json:"-"`
	Active        bool        `bun:"active,notnull" json:"active"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// Status renders the active flag the way the admin surface reports it.
func (a *Account) Status() string {
	if a.Active {
		return AccountStatusActive
	}
	return AccountStatusInactive
}

const (
	AccountStatusActive   = "Active"
	AccountStatusInactive = "Inactive"
)

// AccountUpdate is a partial update. Nil or empty fields are left unchanged.
type AccountUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Claim is an employee reimbursement request.
type Claim struct {
	bun.BaseModel `bun:"table:claims,alias:clm"`
	ID            int64           `bun:"id,pk,autoincrement" json:"id"`
	Title         string          `bun:"title,notnull" json:"title"`
	Description   string          `bun:"description" json:"description"`
	Amount        decimal.Decimal `bun:"amount,type:varchar(32),notnull" json:"amount"`
	Status        ClaimStatus     `bun:"status,notnull" json:"status"`
	Remarks       *string         `bun:"remarks" json:"remarks"`
	ClaimDate     time.Time       `bun:"claim_date,notnull" json:"claim_date"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`
	EmployeeID    int64           `bun:"employee_id,notnull" json:"employee_id"`
	PolicyID      *int64          `bun:"policy_id" json:"policy_id"`
	AssignedHrID  *int64          `bun:"assigned_hr_id" json:"assigned_hr_id"`
	Documents     []string        `bun:"documents,type:json" json:"documents"`
	FraudFlag     bool            `bun:"fraud_flag,notnull" json:"fraud_flag"`
	FraudReason   *string         `bun:"fraud_reason" json:"fraud_reason"`
}

// Clone returns a deep copy so hooks cannot alter the caller's value.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.Remarks = cloneString(c.Remarks)
	out.FraudReason = cloneString(c.FraudReason)
	out.PolicyID = cloneInt64(c.PolicyID)
	out.AssignedHrID = cloneInt64(c.AssignedHrID)
	if c.Documents != nil {
		out.Documents = append([]string(nil), c.Documents...)
	}
	return &out
}

// AuditLogEntry records a privileged action. Entries are never mutated.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:aud"`
	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	ActorEmail    string         `bun:"actor_email,notnull" json:"actor_email"`
	ActorRole     Role           `bun:"actor_role,notnull" json:"actor_role"`
	Action        string         `bun:"action,notnull" json:"action"`
	TargetType    string         `bun:"target_type,notnull" json:"target_type"`
	TargetID      string         `bun:"target_id,notnull" json:"target_id"`
	Details       map[string]any `bun:"details,type:json" json:"details,omitempty"`
	Timestamp     time.Time      `bun:"timestamp,notnull" json:"timestamp"`
}

// EmployeeQuery is a question an employee raises to an agent. It moves from
// unanswered to answered exactly once.
type EmployeeQuery struct {
	bun.BaseModel `bun:"table:employee_queries,alias:eq"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	EmployeeID    int64      `bun:"employee_id,notnull" json:"employee_id"`
	AgentID       *int64     `bun:"agent_id" json:"agent_id"`
	PolicyName    *string    `bun:"policy_name" json:"policy_name"`
	ClaimType     *string    `bun:"claim_type" json:"claim_type"`
	QueryText     string     `bun:"query_text,notnull" json:"query_text"`
	Response      *string    `bun:"response" json:"response"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	AnsweredAt    *time.Time `bun:"answered_at" json:"answered_at"`
}

// Answered reports whether a response was written.
func (q *EmployeeQuery) Answered() bool {
	return q.Response != nil
}

const (
	PolicyStatusActive  = "Active"
	PolicyStatusExpired = "Expired"
)

// Policy is a corporate insurance policy employees enroll in.
type Policy struct {
	bun.BaseModel  `bun:"table:policies,alias:pol"`
	ID             int64           `bun:"id,pk,autoincrement" json:"id"`
	PolicyName     string          `bun:"policy_name,notnull" json:"policy_name"`
	PolicyType     string          `bun:"policy_type" json:"policy_type"`
	ProviderName   string          `bun:"provider_name" json:"provider_name"`
	CoverageAmount decimal.Decimal `bun:"coverage_amount,type:varchar(32)" json:"coverage_amount"`
	PolicyStatus   string          `bun:"policy_status,notnull" json:"policy_status"`
	RenewalDate    time.Time       `bun:"renewal_date,notnull" json:"renewal_date"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// EnrollmentStatus tracks an employee's enrollment in a policy.
type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "PENDING"
	EnrollmentApproved EnrollmentStatus = "APPROVED"
)

type Enrollment struct {
	bun.BaseModel `bun:"table:enrollments,alias:enr"`
	ID            int64            `bun:"id,pk,autoincrement" json:"id"`
	EmployeeID    int64            `bun:"employee_id,notnull" json:"employee_id"`
	PolicyID      int64            `bun:"policy_id,notnull" json:"policy_id"`
	Status        EnrollmentStatus `bun:"status,notnull" json:"status"`
	EffectiveDate *time.Time       `bun:"effective_date" json:"effective_date"`
	CreatedAt     time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time        `bun:"updated_at,notnull" json:"updated_at"`
}

const (
	ResetRequestedStatus = "requested"
	ResetChangedStatus   = "changed"
)

// PasswordReset is a single use reset session. The ID doubles as the
// token sent to the account holder.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwr"`
	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	AccountID     int64       `bun:"account_id,notnull" json:"account_id"`
	Kind          AccountKind `bun:"kind,notnull" json:"kind"`
	Email         string      `bun:"email,notnull" json:"email"`
	Status        string      `bun:"status,notnull" json:"status"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at"`
	ResetAt       *time.Time  `bun:"reset_at" json:"reset_at,omitempty"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
}

// Expired reports whether the session can no longer be redeemed at t.
func (r *PasswordReset) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func int64Ptr(i int64) *int64 {
	return &i
}
