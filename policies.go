package insurai

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/shopspring/decimal"
)

// DefaultRenewalWindowDays is how far ahead renewal alerts look.
const DefaultRenewalWindowDays = 30

// RenewalReport summarizes one renewal scan.
type RenewalReport struct {
	AlertsQueued    int `json:"alerts_queued"`
	PoliciesExpired int `json:"policies_expired"`
	Failures        int `json:"failures"`
}

// PolicyService approves enrollments and runs renewal scans.
type PolicyService struct {
	policies   Policies
	accounts   Accounts
	auditor    Auditor
	notifier   Notifier
	windowDays int
	now        Clock
	logger     Logger
}

// PolicyServiceOption customizes the policy service.
type PolicyServiceOption func(*PolicyService)

func WithPolicyClock(clock Clock) PolicyServiceOption {
	return func(s *PolicyService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithRenewalWindow sets how many days ahead renewals are announced.
func WithRenewalWindow(days int) PolicyServiceOption {
	return func(s *PolicyService) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

func WithPolicyLogger(logger Logger) PolicyServiceOption {
	return func(s *PolicyService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPolicyService(policies Policies, accounts Accounts, auditor Auditor, notifier Notifier, opts ...PolicyServiceOption) *PolicyService {
	s := &PolicyService{
		policies:   policies,
		accounts:   accounts,
		auditor:    normalizeAuditor(auditor),
		notifier:   normalizeNotifier(notifier),
		windowDays: DefaultRenewalWindowDays,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreatePolicyInput describes a new policy.
type CreatePolicyInput struct {
	PolicyName     string          `json:"policyName"`
	PolicyType     string          `json:"policyType"`
	ProviderName   string          `json:"providerName"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	RenewalDate    time.Time       `json:"renewalDate"`
}

func (in CreatePolicyInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PolicyName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.RenewalDate, validation.Required),
	)
}

// CreatePolicy stores an active policy.
func (s *PolicyService) CreatePolicy(ctx context.Context, actor Identity, in CreatePolicyInput) (*Policy, error) {
	in.PolicyName = strings.TrimSpace(in.PolicyName)
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err, "invalid policy")
	}

	now := s.now().UTC()
	policy := &Policy{
		PolicyName:     in.PolicyName,
		PolicyType:     strings.TrimSpace(in.PolicyType),
		ProviderName:   strings.TrimSpace(in.ProviderName),
		CoverageAmount: in.CoverageAmount,
		PolicyStatus:   PolicyStatusActive,
		RenewalDate:    truncateDay(in.RenewalDate.UTC()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.policies.Create(ctx, policy); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "create_policy", "policy", policy.ID)
	return policy, nil
}

// RequestEnrollment creates a pending enrollment for the calling employee.
func (s *PolicyService) RequestEnrollment(ctx context.Context, actor Identity, policyID int64) (*Enrollment, error) {
	employee, err := s.accounts.GetByEmail(ctx, AccountEmployee, actor.Subject)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if policy.PolicyStatus != PolicyStatusActive {
		return nil, validationError("policy is not active")
	}

	now := s.now().UTC()
	enrollment := &Enrollment{
		EmployeeID: employee.ID,
		PolicyID:   policy.ID,
		Status:     EnrollmentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.policies.Enroll(ctx, enrollment); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "request_enrollment", "enrollment", enrollment.ID)
	return enrollment, nil
}

// ApproveEnrollment moves a pending enrollment to APPROVED effective today
// and notifies the employee.
func (s *PolicyService) ApproveEnrollment(ctx context.Context, actor Identity, enrollmentID int64) (*Enrollment, error) {
	enrollment, err := s.policies.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != EnrollmentPending {
		return nil, newError(ErrInvalidTransition, map[string]any{
			"enrollment_id": enrollmentID,
			"from":          enrollment.Status,
			"to":            EnrollmentApproved,
		})
	}

	now := s.now().UTC()
	effective := truncateDay(now)
	ok, err := s.policies.ApproveEnrollment(ctx, enrollmentID, effective, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrInvalidTransition, map[string]any{"enrollment_id": enrollmentID, "conflict": true})
	}
	enrollment.Status = EnrollmentApproved
	enrollment.EffectiveDate = &effective
	enrollment.UpdatedAt = now

	s.audit(ctx, actor, "approve_enrollment", "enrollment", enrollment.ID)

	policy, err := s.policies.GetByID(ctx, enrollment.PolicyID)
	if err != nil {
		s.logger.Error("enrollment approved but policy lookup failed", "enrollment_id", enrollmentID, "error", err)
		return enrollment, nil
	}
	s.notifyEmployee(ctx, enrollment.EmployeeID, EventEnrollmentApproved, map[string]any{
		"enrollment_id":  enrollment.ID,
		"policy_id":      policy.ID,
		"policy_name":    policy.PolicyName,
		"effective_date": effective.Format(time.DateOnly),
	})
	return enrollment, nil
}

// ScanRenewals announces active policies renewing within the window and
// expires active policies whose renewal date has passed.
func (s *PolicyService) ScanRenewals(ctx context.Context) (RenewalReport, error) {
	report := RenewalReport{}
	today := truncateDay(s.now().UTC())

	expired, err := s.policies.ExpiredActive(ctx, today)
	if err != nil {
		return report, err
	}
	for _, policy := range expired {
		ok, err := s.policies.SetStatus(ctx, policy.ID, PolicyStatusActive, PolicyStatusExpired, s.now().UTC())
		if err != nil {
			return report, err
		}
		if !ok {
			continue
		}
		report.PoliciesExpired++
		s.audit(ctx, systemActor, "expire_policy", "policy", policy.ID)
		sent, failed := s.notifyEnrollees(ctx, policy, fmt.Sprintf("policy-expired:%d", policy.ID), EventPolicyStatusChanged, map[string]any{
			"policy_id":   policy.ID,
			"policy_name": policy.PolicyName,
			"status":      PolicyStatusExpired,
		})
		report.AlertsQueued += sent
		report.Failures += failed
	}

	renewing, err := s.policies.RenewingBetween(ctx, today, today.AddDate(0, 0, s.windowDays))
	if err != nil {
		return report, err
	}
	for _, policy := range renewing {
		days := int(truncateDay(policy.RenewalDate.UTC()).Sub(today).Hours() / 24)
		alertKey := fmt.Sprintf("policy-renewal:%d:%s", policy.ID, today.Format(time.DateOnly))
		sent, failed := s.notifyEnrollees(ctx, policy, alertKey, EventPolicyRenewalDue, map[string]any{
			"policy_id":      policy.ID,
			"policy_name":    policy.PolicyName,
			"renewal_date":   policy.RenewalDate.Format(time.DateOnly),
			"days_remaining": days,
			"urgency":        string(RenewalUrgencyFor(days)),
		})
		report.AlertsQueued += sent
		report.Failures += failed
	}

	return report, nil
}

// systemActor is recorded for changes made by scheduled scans.
var systemActor = Identity{Subject: "system", Role: RoleAdmin}

// notifyEnrollees alerts every approved enrollee of policy. Each alert
// carries an alert_id derived from alertKey and the employee, stable across
// scans that produce the same alert.
func (s *PolicyService) notifyEnrollees(ctx context.Context, policy *Policy, alertKey string, kind EventKind, payload map[string]any) (sent, failed int) {
	enrollments, err := s.policies.ApprovedEnrollments(ctx, policy.ID)
	if err != nil {
		s.logger.Error("enrollment lookup failed", "policy_id", policy.ID, "error", err)
		return 0, 1
	}
	for _, e := range enrollments {
		body := clonePayload(payload)
		if body == nil {
			body = map[string]any{}
		}
		if id, err := hashid.NewUUID(fmt.Sprintf("%s:%d", alertKey, e.EmployeeID), hashid.WithNormalization(false)); err == nil {
			body["alert_id"] = id.String()
		}
		if s.notifyEmployee(ctx, e.EmployeeID, kind, body) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func (s *PolicyService) notifyEmployee(ctx context.Context, employeeID int64, kind EventKind, payload map[string]any) bool {
	employee, err := s.accounts.GetByID(ctx, AccountEmployee, employeeID)
	if err != nil {
		s.logger.Error("notification recipient lookup failed", "employee_id", employeeID, "kind", kind, "error", err)
		return false
	}
	body := clonePayload(payload)
	if body == nil {
		body = map[string]any{}
	}
	body["employee_name"] = employee.Name
	if err := s.notifier.Enqueue(context.WithoutCancel(ctx), kind, RecipientFromAccount(employee), body); err != nil {
		s.logger.Error("notification enqueue failed", "employee_id", employeeID, "kind", kind, "error", err)
		return false
	}
	return true
}

func (s *PolicyService) audit(ctx context.Context, actor Identity, action, targetType string, id int64) {
	if err := s.auditor.Append(context.WithoutCancel(ctx), auditEntry(actor, action, targetType, id, nil)); err != nil {
		s.logger.Error("policy audit failed", "action", action, "id", id, "error", err)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
