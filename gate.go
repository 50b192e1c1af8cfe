package insurai

import (
	"strings"
)

// DefaultAuthScheme is the expected prefix of the Authorization header.
const DefaultAuthScheme = "Bearer"

// AuthorizationGate is the single checkpoint privileged operations pass
// through before touching domain state.
type AuthorizationGate struct {
	validator TokenValidator
	scheme    string
	logger    Logger
}

// GateOption customizes the gate.
type GateOption func(*AuthorizationGate)

// WithGateScheme overrides the Authorization scheme.
func WithGateScheme(scheme string) GateOption {
	return func(g *AuthorizationGate) {
		if s := strings.TrimSpace(scheme); s != "" {
			g.scheme = s
		}
	}
}

// WithGateLogger sets the logger used for rejected calls.
func WithGateLogger(logger Logger) GateOption {
	return func(g *AuthorizationGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewAuthorizationGate builds a gate on top of validator.
func NewAuthorizationGate(validator TokenValidator, opts ...GateOption) *AuthorizationGate {
	g := &AuthorizationGate{
		validator: validator,
		scheme:    DefaultAuthScheme,
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate resolves the caller from the header without a role check.
func (g *AuthorizationGate) Authenticate(authHeader string) (Identity, error) {
	token, ok := g.extract(authHeader)
	if !ok {
		return Identity{}, newError(ErrMissingCredential, nil)
	}

	identity, err := g.validator.Verify(token)
	if err != nil {
		g.logger.Debug("gate rejected token", "error", err)
		return Identity{}, wrapError(ErrMalformedCredential, err, nil)
	}
	return identity, nil
}

// Authorize admits the call only when the token role equals required.
// Roles are compared case-insensitively and never hierarchically.
func (g *AuthorizationGate) Authorize(authHeader string, required Role) (Identity, error) {
	identity, err := g.Authenticate(authHeader)
	if err != nil {
		return Identity{}, err
	}

	if !required.Is(string(identity.Role)) {
		g.logger.Debug("gate rejected role", "subject", identity.Subject, "role", identity.Role, "required", required)
		return Identity{}, newError(ErrInsufficientRole, map[string]any{
			"required": required.String(),
		})
	}
	return identity, nil
}

func (g *AuthorizationGate) extract(header string) (string, bool) {
	header = strings.TrimSpace(header)
	prefix := g.scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
