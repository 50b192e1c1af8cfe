package insurai

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "SUBMITTED"
	ClaimUnderReview ClaimStatus = "UNDER_REVIEW"
	ClaimApproved    ClaimStatus = "APPROVED"
	ClaimRejected    ClaimStatus = "REJECTED"
)

// claimTransitions lists every allowed status change. Terminal states have
// no entry.
var claimTransitions = map[ClaimStatus]map[ClaimStatus]struct{}{
	ClaimSubmitted: {
		ClaimUnderReview: {},
	},
	ClaimUnderReview: {
		ClaimApproved: {},
		ClaimRejected: {},
	},
}

// ParseClaimStatus normalizes case, spaces and dashes. Values outside the
// enumeration are rejected.
func ParseClaimStatus(value string) (ClaimStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	status := ClaimStatus(normalized)
	if !status.IsValid() {
		return "", validationError("unknown claim status", goerrors.FieldError{
			Field:   "status",
			Message: "must be one of SUBMITTED, UNDER_REVIEW, APPROVED, REJECTED",
			Value:   value,
		})
	}
	return status, nil
}

func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimSubmitted, ClaimUnderReview, ClaimApproved, ClaimRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimApproved || s == ClaimRejected
}

// CanTransition checks the transition table.
func (s ClaimStatus) CanTransition(to ClaimStatus) bool {
	allowed, ok := claimTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

func (s ClaimStatus) String() string {
	return string(s)
}

// ParseDecision only accepts APPROVED or REJECTED.
func ParseDecision(value string) (ClaimStatus, error) {
	status, err := ParseClaimStatus(value)
	if err != nil {
		return "", err
	}
	if status != ClaimApproved && status != ClaimRejected {
		return "", validationError("decision must be APPROVED or REJECTED", goerrors.FieldError{
			Field:   "status",
			Message: "must be APPROVED or REJECTED",
			Value:   value,
		})
	}
	return status, nil
}
