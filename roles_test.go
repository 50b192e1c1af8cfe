package insurai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insurai "github.com/goliatone/go-insurai"
)

func TestParseRole(t *testing.T) {
	for input, want := range map[string]insurai.Role{
		"admin":    insurai.RoleAdmin,
		" HR ":     insurai.RoleHR,
		"Employee": insurai.RoleEmployee,
		"agent":    insurai.RoleAgent,
	} {
		got, err := insurai.ParseRole(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	for _, input := range []string{"", "root", "ROLE_ADMIN", "h r"} {
		_, err := insurai.ParseRole(input)
		assert.True(t, insurai.IsValidationError(err), input)
	}
}

func TestAccountKindRoles(t *testing.T) {
	assert.Equal(t, insurai.RoleAdmin, insurai.AccountAdmin.Role())
	assert.Equal(t, insurai.RoleHR, insurai.AccountHR.Role())
	assert.Equal(t, insurai.RoleEmployee, insurai.AccountEmployee.Role())
	assert.Equal(t, insurai.RoleAgent, insurai.AccountAgent.Role())

	kind, err := insurai.ParseAccountKind(" HR ")
	require.NoError(t, err)
	assert.Equal(t, insurai.AccountHR, kind)

	_, err = insurai.ParseAccountKind("manager")
	assert.Error(t, err)
	assert.NotContains(t, insurai.ManagedKinds(), insurai.AccountAdmin)
}

func TestParseClaimStatus(t *testing.T) {
	for input, want := range map[string]insurai.ClaimStatus{
		"submitted":    insurai.ClaimSubmitted,
		"under review": insurai.ClaimUnderReview,
		"Under-Review": insurai.ClaimUnderReview,
		"APPROVED":     insurai.ClaimApproved,
		" rejected ":   insurai.ClaimRejected,
	} {
		got, err := insurai.ParseClaimStatus(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := insurai.ParseClaimStatus("PAID")
	assert.True(t, insurai.IsValidationError(err))
}

func TestClaimTransitionTable(t *testing.T) {
	allowed := map[[2]insurai.ClaimStatus]bool{
		{insurai.ClaimSubmitted, insurai.ClaimUnderReview}: true,
		{insurai.ClaimUnderReview, insurai.ClaimApproved}:  true,
		{insurai.ClaimUnderReview, insurai.ClaimRejected}:  true,
	}
	all := []insurai.ClaimStatus{insurai.ClaimSubmitted, insurai.ClaimUnderReview, insurai.ClaimApproved, insurai.ClaimRejected}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]insurai.ClaimStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, insurai.ClaimApproved.IsTerminal())
	assert.True(t, insurai.ClaimRejected.IsTerminal())
	assert.False(t, insurai.ClaimUnderReview.IsTerminal())
}

func TestParseDecision(t *testing.T) {
	got, err := insurai.ParseDecision("approved")
	require.NoError(t, err)
	assert.Equal(t, insurai.ClaimApproved, got)

	_, err = insurai.ParseDecision("UNDER_REVIEW")
	assert.True(t, insurai.IsValidationError(err))
}
