package jwtware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization
	defaultContextKey  = "identity"

	// ErrUnsupportedLookup is returned for lookups other than header:<name>.
	ErrUnsupportedLookup = errors.New("unsupported token lookup")
)

// AuthorizeFunc checks the raw credential value against the required role
// and returns the caller identity. It mirrors the gate of the core package
// so this package does not import it.
type AuthorizeFunc func(credential, requiredRole string) (any, error)

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(router.Context) bool
	// Authorize is required.
	Authorize AuthorizeFunc
	// RequiredRole is matched exactly; there is no role hierarchy.
	RequiredRole string
	// TokenLookup has the form "header:<name>".
	TokenLookup string
	// ContextKey is the Locals key the identity is stored under.
	ContextKey   string
	ErrorHandler router.ErrorHandler
	// SuccessHandler defaults to the wrapped handler.
	SuccessHandler router.HandlerFunc
}

// New returns a middleware admitting only callers holding RequiredRole.
// Nothing after the middleware runs when authorization fails.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	header, err := headerName(cfg.TokenLookup)
	if err != nil {
		panic(err)
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		success := cfg.SuccessHandler
		if success == nil {
			success = hf
		}

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return hf(ctx)
			}

			identity, err := cfg.Authorize(ctx.Header(header), cfg.RequiredRole)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, identity)
			return success(ctx)
		}
	}
}

// GetDefaultConfig fills unset fields.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Authorize == nil {
		panic("jwtware: Authorize is required")
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.JSON(http.StatusForbidden, map[string]any{"error": "access denied"})
		}
	}

	return cfg
}

func headerName(lookup string) (string, error) {
	source, name, ok := strings.Cut(strings.TrimSpace(lookup), ":")
	if !ok || strings.TrimSpace(source) != "header" || strings.TrimSpace(name) == "" {
		return "", ErrUnsupportedLookup
	}
	return strings.TrimSpace(name), nil
}
