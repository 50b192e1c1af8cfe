package insurai

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// EventKind identifies a notification event.
type EventKind string

const (
	EventClaimStatusChanged  EventKind = "CLAIM_STATUS_CHANGED"
	EventClaimAssigned       EventKind = "CLAIM_ASSIGNED"
	EventQuerySubmitted      EventKind = "QUERY_SUBMITTED"
	EventQueryAnswered       EventKind = "QUERY_ANSWERED"
	EventEnrollmentApproved  EventKind = "ENROLLMENT_APPROVED"
	EventReimbursementStatus EventKind = "REIMBURSEMENT_STATUS"
	EventPolicyRenewalDue    EventKind = "POLICY_RENEWAL_DUE"
	EventPolicyStatusChanged EventKind = "POLICY_STATUS_CHANGED"
	EventPasswordReset       EventKind = "PASSWORD_RESET_REQUESTED"
)

// recipientRules maps each kind to the single role it may be sent to.
var recipientRules = map[EventKind]Role{
	EventClaimStatusChanged:  RoleEmployee,
	EventClaimAssigned:       RoleHR,
	EventQuerySubmitted:      RoleAgent,
	EventQueryAnswered:       RoleEmployee,
	EventEnrollmentApproved:  RoleEmployee,
	EventReimbursementStatus: RoleEmployee,
	EventPolicyRenewalDue:    RoleEmployee,
	EventPolicyStatusChanged: RoleEmployee,
	EventPasswordReset:       RoleEmployee,
}

// EventKinds returns every recognized kind.
func EventKinds() []EventKind {
	return []EventKind{
		EventClaimStatusChanged,
		EventClaimAssigned,
		EventQuerySubmitted,
		EventQueryAnswered,
		EventEnrollmentApproved,
		EventReimbursementStatus,
		EventPolicyRenewalDue,
		EventPolicyStatusChanged,
		EventPasswordReset,
	}
}

// RecipientRole returns the role events of this kind are addressed to.
func (k EventKind) RecipientRole() (Role, bool) {
	role, ok := recipientRules[k]
	return role, ok
}

func (k EventKind) IsValid() bool {
	_, ok := recipientRules[k]
	return ok
}

func ParseEventKind(value string) (EventKind, error) {
	kind := EventKind(strings.ToUpper(strings.TrimSpace(value)))
	if !kind.IsValid() {
		return "", validationError("unknown event kind", goerrors.FieldError{Field: "kind", Message: "unknown", Value: value})
	}
	return kind, nil
}

// Recipient is the resolved target of a notification.
type Recipient struct {
	Role  Role   `json:"role"`
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RecipientFromAccount builds a recipient for account.
func RecipientFromAccount(account *Account) Recipient {
	if account == nil {
		return Recipient{}
	}
	return Recipient{
		Role:  account.Kind.Role(),
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
	}
}

// Notification is a queued event.
type Notification struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	Recipient Recipient      `json:"recipient"`
	Subject   string         `json:"subject"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier accepts events for eventual delivery. A returned error means the
// event was rejected at enqueue time; delivery outcomes are never reported
// back to the caller.
type Notifier interface {
	Enqueue(ctx context.Context, kind EventKind, recipient Recipient, payload map[string]any) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, kind EventKind, recipient Recipient, payload map[string]any) error

func (f NotifierFunc) Enqueue(ctx context.Context, kind EventKind, recipient Recipient, payload map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, kind, recipient, payload)
}

type noopNotifier struct{}

func (noopNotifier) Enqueue(context.Context, EventKind, Recipient, map[string]any) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// checkRecipient enforces the recipient rule of kind.
func checkRecipient(kind EventKind, recipient Recipient) error {
	role, ok := kind.RecipientRole()
	if !ok {
		return newError(ErrValidation, map[string]any{"kind": kind, "reason": "unknown event kind"})
	}
	if recipient.Role != role {
		return newError(ErrValidation, map[string]any{
			"kind":     kind,
			"expected": role,
			"actual":   recipient.Role,
			"reason":   "recipient role does not match event kind",
		})
	}
	if recipient.ID == 0 && recipient.Email == "" {
		return newError(ErrValidation, map[string]any{"kind": kind, "reason": "recipient is empty"})
	}
	return nil
}

// Subject renders the subject line for an event.
func Subject(kind EventKind, payload map[string]any) string {
	switch kind {
	case EventClaimStatusChanged:
		return fmt.Sprintf("InsurAI - Claim #%v Status Update: %v", payload["claim_id"], payload["status"])
	case EventClaimAssigned:
		return fmt.Sprintf("InsurAI - New Claim Assignment #%v - Action Required", payload["claim_id"])
	case EventQuerySubmitted:
		return fmt.Sprintf("InsurAI - New Employee Query #%v - Response Required", payload["query_id"])
	case EventQueryAnswered:
		return fmt.Sprintf("InsurAI - Your Query #%v Has Been Answered", payload["query_id"])
	case EventEnrollmentApproved:
		return fmt.Sprintf("InsurAI - Policy Enrollment Approved: %v", payload["policy_name"])
	case EventReimbursementStatus:
		return fmt.Sprintf("InsurAI - Reimbursement %v for Claim #%v", payload["status"], payload["claim_id"])
	case EventPolicyRenewalDue:
		prefix := ""
		switch RenewalUrgencyFor(payloadInt(payload, "days_remaining")) {
		case UrgencyCritical:
			prefix = "URGENT: "
		case UrgencyHigh:
			prefix = "Important: "
		}
		return fmt.Sprintf("%sInsurAI - Policy Renewal Alert: %v", prefix, payload["policy_name"])
	case EventPolicyStatusChanged:
		return fmt.Sprintf("InsurAI - Policy Status Update: %v - %v", payload["policy_name"], payload["status"])
	case EventPasswordReset:
		return "InsurAI - Password Reset Request"
	default:
		return "InsurAI - Notification"
	}
}

// RenewalUrgency grades how close a renewal is.
type RenewalUrgency string

const (
	UrgencyCritical RenewalUrgency = "Critical"
	UrgencyHigh     RenewalUrgency = "High"
	UrgencyNormal   RenewalUrgency = "Normal"
)

func RenewalUrgencyFor(daysRemaining int) RenewalUrgency {
	switch {
	case daysRemaining <= 7:
		return UrgencyCritical
	case daysRemaining <= 15:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
