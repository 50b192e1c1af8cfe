package insurai

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

// PolicyLookup resolves policies by id.
type PolicyLookup interface {
	GetByID(ctx context.Context, id int64) (*Policy, error)
}

// SubmitClaimInput is the employee supplied part of a new claim.
type SubmitClaimInput struct {
	EmployeeID  int64           `json:"employee_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ClaimDate   time.Time       `json:"claim_date"`
	PolicyID    *int64          `json:"policy_id"`
	Documents   []string        `json:"documents"`
}

func (in SubmitClaimInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EmployeeID, validation.Required),
		validation.Field(&in.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Amount, validation.By(positiveAmount)),
		validation.Field(&in.Documents, validation.Each(validation.Required)),
	)
}

func positiveAmount(value any) error {
	amount, ok := value.(decimal.Decimal)
	if !ok || !amount.IsPositive() {
		return validation.NewError("validation_amount_positive", "must be greater than zero")
	}
	return nil
}

// ReimbursementStatus is reported to the employee once a claim is approved.
type ReimbursementStatus string

const (
	ReimbursementProcessing ReimbursementStatus = "PROCESSING"
	ReimbursementPaid       ReimbursementStatus = "PAID"
	ReimbursementFailed     ReimbursementStatus = "FAILED"
)

func ParseReimbursementStatus(value string) (ReimbursementStatus, error) {
	status := ReimbursementStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case ReimbursementProcessing, ReimbursementPaid, ReimbursementFailed:
		return status, nil
	}
	return "", validationError("unknown reimbursement status", goerrors.FieldError{
		Field:   "status",
		Message: "must be one of PROCESSING, PAID, FAILED",
		Value:   value,
	})
}

// LifecycleOption customizes the claim lifecycle manager.
type LifecycleOption func(*ClaimLifecycleManager)

func WithLifecycleClock(clock Clock) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleAuditor installs the audit post-commit hook.
func WithLifecycleAuditor(auditor Auditor) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		m.auditor = auditor
	}
}

// WithLifecycleNotifier installs the notification post-commit hook.
func WithLifecycleNotifier(notifier Notifier) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		m.notifier = notifier
	}
}

// WithLifecyclePolicies resolves policy names for claim views.
func WithLifecyclePolicies(policies PolicyLookup) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		m.policies = policies
	}
}

// WithPostCommitHooks appends hooks that run after the audit and
// notification hooks.
func WithPostCommitHooks(hooks ...PostCommitHook) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		for _, h := range hooks {
			if h.Run != nil {
				m.extraHooks = append(m.extraHooks, h)
			}
		}
	}
}

// WithSideEffectErrorHandler overrides the operational error channel.
// The default handler logs the failure.
func WithSideEffectErrorHandler(handler SideEffectErrorHandler) LifecycleOption {
	return func(m *ClaimLifecycleManager) {
		if handler != nil {
			m.onSideEffectError = handler
		}
	}
}

// ClaimLifecycleManager owns claim status, fraud flag and HR assignment.
// Status changes are compare-and-set against the stored status; side effects
// run after the change is stored and never roll it back.
type ClaimLifecycleManager struct {
	claims            Claims
	accounts          AccountLookup
	policies          PolicyLookup
	auditor           Auditor
	notifier          Notifier
	extraHooks        []PostCommitHook
	hooks             []PostCommitHook
	onSideEffectError SideEffectErrorHandler
	now               Clock
	logger            Logger
}

func NewClaimLifecycleManager(claims Claims, accounts AccountLookup, opts ...LifecycleOption) *ClaimLifecycleManager {
	m := &ClaimLifecycleManager{
		claims:   claims,
		accounts: accounts,
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.onSideEffectError == nil {
		m.onSideEffectError = m.logSideEffectError
	}

	if m.auditor != nil {
		m.hooks = append(m.hooks, AuditHook(m.auditor))
	}
	if m.notifier != nil {
		m.hooks = append(m.hooks, NotificationHook(m.notifier, accounts))
	}
	m.hooks = append(m.hooks, m.extraHooks...)
	return m
}

// Submit creates a claim in SUBMITTED for the employee the caller is.
func (m *ClaimLifecycleManager) Submit(ctx context.Context, actor Identity, in SubmitClaimInput) (*Claim, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err, "invalid claim")
	}

	employee, err := m.accounts.Get(ctx, AccountEmployee, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleEmployee || !strings.EqualFold(employee.Email, actor.Subject) {
		return nil, newError(ErrInsufficientRole, map[string]any{"reason": "caller is not the claim employee"})
	}
	if !employee.Active {
		return nil, validationError("employee account is inactive")
	}

	if in.PolicyID != nil && m.policies != nil {
		if _, err := m.policies.GetByID(ctx, *in.PolicyID); err != nil {
			return nil, err
		}
	}

	now := m.now().UTC()
	claimDate := in.ClaimDate
	if claimDate.IsZero() {
		claimDate = now
	}

	claim := &Claim{
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		Status:      ClaimSubmitted,
		ClaimDate:   claimDate.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
		EmployeeID:  employee.ID,
		PolicyID:    cloneInt64(in.PolicyID),
		Documents:   append([]string{}, in.Documents...),
	}

	created, err := m.claims.Create(ctx, claim)
	if err != nil {
		return nil, err
	}

	m.afterCommit(ctx, ClaimEvent{
		Action:     ActionSubmit,
		Actor:      actor,
		Claim:      created,
		To:         ClaimSubmitted,
		OccurredAt: now,
	})
	return created, nil
}

// Assign moves a SUBMITTED claim to UNDER_REVIEW with hrID as reviewer.
func (m *ClaimLifecycleManager) Assign(ctx context.Context, actor Identity, claimID, hrID int64) (*Claim, error) {
	claim, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	hr, err := m.accounts.Get(ctx, AccountHR, hrID)
	if err != nil {
		return nil, err
	}
	if err := m.checkTransition(claim, ClaimUnderReview, ActionAssign); err != nil {
		return nil, err
	}
	if !hr.Active {
		return nil, validationError("hr account is inactive")
	}

	now := m.now().UTC()
	ok, err := m.claims.TransitionStatus(ctx, claimID, ClaimTransition{
		From:         claim.Status,
		To:           ClaimUnderReview,
		AssignedHrID: &hr.ID,
		At:           now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, m.lostRace(ctx, claimID, ClaimUnderReview, ActionAssign)
	}

	from := claim.Status
	claim.Status = ClaimUnderReview
	claim.AssignedHrID = int64Ptr(hr.ID)
	claim.UpdatedAt = now

	m.afterCommit(ctx, ClaimEvent{
		Action:     ActionAssign,
		Actor:      actor,
		Claim:      claim,
		From:       from,
		To:         ClaimUnderReview,
		Details:    map[string]any{"hr_id": hr.ID},
		OccurredAt: now,
	})
	return claim, nil
}

// Decide records the final outcome of a claim under review. HR callers may
// only decide claims assigned to them.
func (m *ClaimLifecycleManager) Decide(ctx context.Context, actor Identity, claimID int64, outcome ClaimStatus, remarks string) (*Claim, error) {
	if outcome != ClaimApproved && outcome != ClaimRejected {
		return nil, validationError("decision must be APPROVED or REJECTED", goerrors.FieldError{
			Field: "status", Message: "must be APPROVED or REJECTED", Value: outcome,
		})
	}

	claim, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if err := m.checkTransition(claim, outcome, ActionDecide); err != nil {
		return nil, err
	}

	if actor.Role == RoleHR {
		if err := m.checkReviewer(ctx, actor, claim); err != nil {
			return nil, err
		}
	}

	var remarksPtr *string
	if r := strings.TrimSpace(remarks); r != "" {
		remarksPtr = &r
	}

	now := m.now().UTC()
	ok, err := m.claims.TransitionStatus(ctx, claimID, ClaimTransition{
		From:       claim.Status,
		To:         outcome,
		Remarks:    remarksPtr,
		SetRemarks: true,
		At:         now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, m.lostRace(ctx, claimID, outcome, ActionDecide)
	}

	from := claim.Status
	claim.Status = outcome
	claim.Remarks = remarksPtr
	claim.UpdatedAt = now

	m.afterCommit(ctx, ClaimEvent{
		Action:     ActionDecide,
		Actor:      actor,
		Claim:      claim,
		From:       from,
		To:         outcome,
		OccurredAt: now,
	})
	return claim, nil
}

// FlagFraud marks a claim as suspected fraud in any state. Flagging again
// with the same reason changes nothing and emits nothing.
func (m *ClaimLifecycleManager) FlagFraud(ctx context.Context, actor Identity, claimID int64, reason string) (*Claim, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("fraud reason is required", goerrors.FieldError{Field: "reason", Message: "cannot be blank"})
	}

	claim, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.FraudFlag && claim.FraudReason != nil && *claim.FraudReason == reason {
		return claim, nil
	}

	return m.setFraud(ctx, actor, claim, true, &reason, ActionFlagFraud)
}

// ClearFraud removes the fraud flag and its reason.
func (m *ClaimLifecycleManager) ClearFraud(ctx context.Context, actor Identity, claimID int64) (*Claim, error) {
	claim, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !claim.FraudFlag && claim.FraudReason == nil {
		return claim, nil
	}

	return m.setFraud(ctx, actor, claim, false, nil, ActionClearFraud)
}

func (m *ClaimLifecycleManager) setFraud(ctx context.Context, actor Identity, claim *Claim, flag bool, reason *string, action ClaimAction) (*Claim, error) {
	now := m.now().UTC()
	ok, err := m.claims.SetFraud(ctx, claim.ID, flag, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("claim", claim.ID)
	}

	claim.FraudFlag = flag
	claim.FraudReason = cloneString(reason)
	claim.UpdatedAt = now

	details := map[string]any{"fraud_flag": flag}
	if reason != nil {
		details["fraud_reason"] = *reason
	}
	m.afterCommit(ctx, ClaimEvent{
		Action:     action,
		Actor:      actor,
		Claim:      claim,
		From:       claim.Status,
		To:         claim.Status,
		Details:    details,
		OccurredAt: now,
	})
	return claim, nil
}

// RecordReimbursement reports payment progress on an approved claim. The
// claim itself is not modified.
func (m *ClaimLifecycleManager) RecordReimbursement(ctx context.Context, actor Identity, claimID int64, status ReimbursementStatus) (*Claim, error) {
	claim, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != ClaimApproved {
		return nil, newError(ErrInvalidTransition, map[string]any{
			"claim_id": claimID,
			"from":     claim.Status,
			"action":   ActionReimbursement,
		})
	}
	if actor.Role == RoleHR {
		if err := m.checkReviewer(ctx, actor, claim); err != nil {
			return nil, err
		}
	}

	m.afterCommit(ctx, ClaimEvent{
		Action:     ActionReimbursement,
		Actor:      actor,
		Claim:      claim,
		From:       claim.Status,
		To:         claim.Status,
		Details:    map[string]any{"status": string(status)},
		OccurredAt: m.now().UTC(),
	})
	return claim, nil
}

func (m *ClaimLifecycleManager) Get(ctx context.Context, claimID int64) (*Claim, error) {
	return m.claims.GetByID(ctx, claimID)
}

func (m *ClaimLifecycleManager) List(ctx context.Context, filter ClaimFilter) ([]*Claim, error) {
	return m.claims.List(ctx, filter)
}

// ListFraudFlagged returns exactly the claims with the fraud flag set,
// ordered by id.
func (m *ClaimLifecycleManager) ListFraudFlagged(ctx context.Context) ([]*Claim, error) {
	return m.claims.List(ctx, ClaimFilter{FraudOnly: true})
}

func (m *ClaimLifecycleManager) checkTransition(claim *Claim, to ClaimStatus, action ClaimAction) error {
	if claim.Status.CanTransition(to) {
		return nil
	}
	return newError(ErrInvalidTransition, map[string]any{
		"claim_id": claim.ID,
		"from":     claim.Status,
		"to":       to,
		"action":   action,
		"terminal": claim.Status.IsTerminal(),
	})
}

func (m *ClaimLifecycleManager) checkReviewer(ctx context.Context, actor Identity, claim *Claim) error {
	if claim.AssignedHrID == nil {
		return newError(ErrInsufficientRole, map[string]any{"claim_id": claim.ID, "reason": "claim is not assigned"})
	}
	hr, err := m.accounts.Get(ctx, AccountHR, *claim.AssignedHrID)
	if err != nil {
		if IsNotFound(err) {
			return newError(ErrInsufficientRole, map[string]any{"claim_id": claim.ID, "reason": "assigned hr not found"})
		}
		return err
	}
	if !strings.EqualFold(hr.Email, actor.Subject) {
		return newError(ErrInsufficientRole, map[string]any{"claim_id": claim.ID, "reason": "claim is assigned to another hr"})
	}
	return nil
}

// lostRace resolves a compare-and-set that matched no row: the claim either
// vanished or another caller moved it first.
func (m *ClaimLifecycleManager) lostRace(ctx context.Context, claimID int64, to ClaimStatus, action ClaimAction) error {
	current, err := m.claims.GetByID(ctx, claimID)
	if err != nil {
		return err
	}
	m.logger.Debug("claim transition lost race", "claim_id", claimID, "current", current.Status, "to", to, "action", action)
	return newError(ErrInvalidTransition, map[string]any{
		"claim_id": claimID,
		"from":     current.Status,
		"to":       to,
		"action":   action,
		"conflict": true,
	})
}

func (m *ClaimLifecycleManager) afterCommit(ctx context.Context, event ClaimEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, hook := range m.hooks {
		hookEvent := event
		hookEvent.Claim = event.Claim.Clone()
		m.runHook(ctx, hook, hookEvent)
	}
}

func (m *ClaimLifecycleManager) runHook(ctx context.Context, hook PostCommitHook, event ClaimEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.reportSideEffect(ctx, hook.Name, event, fmt.Errorf("hook panic: %v", r))
		}
	}()
	if err := hook.Run(ctx, event); err != nil {
		m.reportSideEffect(ctx, hook.Name, event, err)
	}
}

func (m *ClaimLifecycleManager) reportSideEffect(ctx context.Context, hook string, event ClaimEvent, err error) {
	err = wrapError(ErrSideEffect, err, map[string]any{
		"hook":     hook,
		"action":   event.Action,
		"claim_id": event.Claim.ID,
	})
	m.onSideEffectError(ctx, hook, event, err)
}

func (m *ClaimLifecycleManager) logSideEffectError(_ context.Context, hook string, event ClaimEvent, err error) {
	args := []any{"hook", hook, "action", event.Action, "claim_id", event.Claim.ID, "error", err}
	for _, attr := range goerrors.ToSlogAttributes(err) {
		args = append(args, attr)
	}
	m.logger.Error("claim side effect failed", args...)
}
