package insurai

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Role is the only basis for authorization decisions. Checks are flat:
// a role never implies another.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleHR       Role = "HR"
	RoleEmployee Role = "EMPLOYEE"
	RoleAgent    Role = "AGENT"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHR, RoleEmployee, RoleAgent}
}

// ParseRole accepts any casing of a known role and rejects everything else.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", validationError("unknown role", goerrors.FieldError{
			Field:   "role",
			Message: "must be one of ADMIN, HR, EMPLOYEE, AGENT",
			Value:   value,
		})
	}
	return role, nil
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleEmployee, RoleAgent:
		return true
	default:
		return false
	}
}

// Is compares against a raw role string ignoring case.
func (r Role) Is(other string) bool {
	return strings.EqualFold(string(r), strings.TrimSpace(other))
}

func (r Role) String() string {
	return string(r)
}

// AccountKind identifies the table an account lives in.
type AccountKind string

const (
	AccountAdmin    AccountKind = "admin"
	AccountEmployee AccountKind = "employee"
	AccountHR       AccountKind = "hr"
	AccountAgent    AccountKind = "agent"
)

// ManagedKinds are the kinds the user directory administers.
func ManagedKinds() []AccountKind {
	return []AccountKind{AccountEmployee, AccountHR, AccountAgent}
}

func ParseAccountKind(value string) (AccountKind, error) {
	kind := AccountKind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := kindRoles[kind]; !ok {
		return "", validationError("unknown account kind", goerrors.FieldError{
			Field:   "kind",
			Message: "must be one of admin, employee, hr, agent",
			Value:   value,
		})
	}
	return kind, nil
}

var kindRoles = map[AccountKind]Role{
	AccountAdmin:    RoleAdmin,
	AccountEmployee: RoleEmployee,
	AccountHR:       RoleHR,
	AccountAgent:    RoleAgent,
}

// Role returns the role carried by tokens issued to accounts of this kind.
func (k AccountKind) Role() Role {
	return kindRoles[k]
}

func (k AccountKind) IsValid() bool {
	_, ok := kindRoles[k]
	return ok
}

func (k AccountKind) String() string {
	return string(k)
}
