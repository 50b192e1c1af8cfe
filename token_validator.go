package insurai

// TokenValidator verifies a raw token and returns the identity it encodes.
// Implementations fail with ErrInvalidToken and hold no per-request state.
type TokenValidator interface {
	Verify(token string) (Identity, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(token string) (Identity, error)

// Verify satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Verify(token string) (Identity, error) {
	if f == nil {
		return Identity{}, newError(ErrInvalidToken, map[string]any{"reason": "no validator"})
	}
	return f(token)
}
