package insurai

import (
	"context"
	"time"
)

// ClaimAction names a state-changing claim operation. The value is written
// to the audit log as the action.
type ClaimAction string

const (
	ActionSubmit        ClaimAction = "submit"
	ActionAssign        ClaimAction = "assign"
	ActionDecide        ClaimAction = "decide"
	ActionFlagFraud     ClaimAction = "flag_fraud"
	ActionClearFraud    ClaimAction = "clear_fraud"
	ActionReimbursement ClaimAction = "reimbursement"
)

// ClaimEvent describes a committed claim change.
type ClaimEvent struct {
	Action     ClaimAction
	Actor      Identity
	Claim      *Claim
	From       ClaimStatus
	To         ClaimStatus
	Details    map[string]any
	OccurredAt time.Time
}

// PostCommitHook runs after a claim change is durably stored. Its failure is
// reported to the side effect handler and never undoes the change.
type PostCommitHook struct {
	Name string
	Run  func(ctx context.Context, event ClaimEvent) error
}

// SideEffectErrorHandler is the operational error channel for failed hooks.
type SideEffectErrorHandler func(ctx context.Context, hook string, event ClaimEvent, err error)

// AccountLookup resolves accounts by kind and id.
type AccountLookup interface {
	Get(ctx context.Context, kind AccountKind, id int64) (*Account, error)
}

// AuditHook appends one audit entry per claim change.
func AuditHook(auditor Auditor) PostCommitHook {
	auditor = normalizeAuditor(auditor)
	return PostCommitHook{
		Name: "audit",
		Run: func(ctx context.Context, event ClaimEvent) error {
			details := map[string]any{
				"from": event.From,
				"to":   event.To,
			}
			for k, v := range event.Details {
				details[k] = v
			}
			entry := auditEntry(event.Actor, string(event.Action), "claim", event.Claim.ID, details)
			entry.Timestamp = event.OccurredAt
			return auditor.Append(ctx, entry)
		},
	}
}

// NotificationHook enqueues the event describing the new claim state.
// Submissions and decisions go to the employee, assignments to the assigned
// HR. Fraud flag changes produce no notification.
func NotificationHook(notifier Notifier, accounts AccountLookup) PostCommitHook {
	notifier = normalizeNotifier(notifier)
	return PostCommitHook{
		Name: "notify",
		Run: func(ctx context.Context, event ClaimEvent) error {
			claim := event.Claim

			var (
				kind      EventKind
				recipient *Account
				err       error
			)
			switch event.Action {
			case ActionSubmit, ActionDecide:
				kind = EventClaimStatusChanged
				recipient, err = accounts.Get(ctx, AccountEmployee, claim.EmployeeID)
			case ActionAssign:
				kind = EventClaimAssigned
				if claim.AssignedHrID == nil {
					return newError(ErrSideEffect, map[string]any{"claim_id": claim.ID, "reason": "claim has no assigned hr"})
				}
				recipient, err = accounts.Get(ctx, AccountHR, *claim.AssignedHrID)
			case ActionReimbursement:
				kind = EventReimbursementStatus
				recipient, err = accounts.Get(ctx, AccountEmployee, claim.EmployeeID)
			default:
				return nil
			}
			if err != nil {
				return wrapError(ErrSideEffect, err, map[string]any{"claim_id": claim.ID, "stage": "resolve_recipient"})
			}

			return notifier.Enqueue(ctx, kind, RecipientFromAccount(recipient), claimPayload(event))
		},
	}
}

func claimPayload(event ClaimEvent) map[string]any {
	claim := event.Claim
	payload := map[string]any{
		"claim_id": claim.ID,
		"title":    claim.Title,
		"amount":   claim.Amount.StringFixed(2),
		"status":   string(claim.Status),
	}
	if claim.Remarks != nil {
		payload["remarks"] = *claim.Remarks
	}
	if claim.AssignedHrID != nil {
		payload["assigned_hr_id"] = *claim.AssignedHrID
	}
	for k, v := range event.Details {
		payload[k] = v
	}
	return payload
}
