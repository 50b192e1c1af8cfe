package insurai

import (
	"context"
	"fmt"
	"strings"
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Token   string `json:"token"`
}

// Auther verifies account passwords and issues identity tokens.
type Auther struct {
	accounts     Accounts
	hasher       PasswordAuthenticator
	tokenService TokenService
	auditor      Auditor
	logger       Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(accounts Accounts, hasher PasswordAuthenticator, tokenService TokenService) *Auther {
	return &Auther{
		accounts:     accounts,
		hasher:       hasher,
		tokenService: tokenService,
		auditor:      noopAuditor{},
		logger:       defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithAuditor records login outcomes. Failures to record are logged only.
func (s *Auther) WithAuditor(auditor Auditor) *Auther {
	s.auditor = normalizeAuditor(auditor)
	return s
}

// Login checks email and password against the account of kind and issues a
// token carrying the kind's role. Unknown accounts, wrong passwords and
// inactive accounts all fail with ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, kind AccountKind, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, newError(ErrInvalidCredentials, nil)
	}

	account, err := s.accounts.GetByEmail(ctx, kind, email)
	if err != nil {
		if IsNotFound(err) {
			s.record(ctx, kind, email, "login_failed", "unknown account")
			return LoginResult{}, newError(ErrInvalidCredentials, nil)
		}
		return LoginResult{}, err
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		s.record(ctx, kind, email, "login_failed", "password mismatch")
		return LoginResult{}, wrapError(ErrInvalidCredentials, err, nil)
	}

	if !account.Active {
		s.record(ctx, kind, email, "login_failed", "account inactive")
		return LoginResult{}, newError(ErrInvalidCredentials, map[string]any{"reason": "account inactive"})
	}

	token, _, err := s.tokenService.Generate(account.Email, kind.Role())
	if err != nil {
		return LoginResult{}, err
	}

	s.record(ctx, kind, email, "login", "")
	return LoginResult{
		Message: fmt.Sprintf("%s login successful", loginLabel(kind)),
		Name:    account.Name,
		Role:    kind.Role(),
		Token:   token,
	}, nil
}

func (s *Auther) record(ctx context.Context, kind AccountKind, email, action, reason string) {
	var details map[string]any
	if reason != "" {
		details = map[string]any{"reason": reason}
	}
	entry := auditEntry(Identity{Subject: email, Role: kind.Role()}, action, kind.String(), email, details)
	if err := s.auditor.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("login audit failed", "kind", kind, "action", action, "error", err)
	}
}

func loginLabel(kind AccountKind) string {
	switch kind {
	case AccountHR:
		return "HR"
	case AccountAdmin:
		return "Admin"
	default:
		s := kind.String()
		if s == "" {
			return "Account"
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
