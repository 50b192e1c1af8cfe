package insurai

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is used when the configured expiration is not positive.
const DefaultTokenExpiration = 10

// TokenService issues and verifies identity tokens
type TokenService interface {
	TokenValidator
	Generate(subject string, role Role) (string, IdentityToken, error)
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects the clock used for issuing and verifying tokens.
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// TokenServiceImpl signs HS256 tokens with a process wide key.
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration time.Duration
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
	now             Clock
}

// NewTokenService creates a new TokenService from configuration. The signing
// key is copied so later changes to the source do not affect verification.
func NewTokenService(cfg Config, logger Logger, opts ...TokenServiceOption) *TokenServiceImpl {
	hours := cfg.GetTokenExpiration()
	if hours <= 0 {
		hours = DefaultTokenExpiration
	}

	var aud jwt.ClaimStrings
	if a := cfg.GetAudience(); len(a) > 0 {
		aud = make(jwt.ClaimStrings, len(a))
		copy(aud, a)
	}

	ts := &TokenServiceImpl{
		signingKey:      []byte(cfg.GetSigningKey()),
		tokenExpiration: time.Duration(hours) * time.Hour,
		issuer:          cfg.GetIssuer(),
		audience:        aud,
		logger:          normalizeLogger(logger),
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Generate issues a token for subject carrying role.
func (ts *TokenServiceImpl) Generate(subject string, role Role) (string, IdentityToken, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", IdentityToken{}, validationError("token subject is required")
	}
	if !role.IsValid() {
		return "", IdentityToken{}, validationError("token role is invalid", goerrors.FieldError{Field: "role", Message: "unknown role", Value: role})
	}

	now := ts.now().Truncate(time.Second)
	info := IdentityToken{
		ID:        uuid.NewString(),
		Subject:   subject,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(ts.tokenExpiration),
	}

	claims := &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        info.ID,
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(info.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(info.ExpiresAt),
		},
		UserRole: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", IdentityToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, info, nil
}

// Verify checks signature and expiry and extracts the identity. Any failure
// is reported as ErrInvalidToken.
func (ts *TokenServiceImpl) Verify(tokenString string) (Identity, error) {
	info, err := ts.Parse(tokenString)
	if err != nil {
		return Identity{}, err
	}
	return info.Identity(), nil
}

// Parse verifies the token and returns its full description.
func (ts *TokenServiceImpl) Parse(tokenString string) (IdentityToken, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	// tokens carry every configured audience, so matching the first is enough
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		reason := "malformed"
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			reason = "expired"
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			reason = "signature"
		case goerrors.Is(err, jwt.ErrTokenUnverifiable):
			reason = "unverifiable"
		}
		ts.logger.Debug("token verification failed", "reason", reason, "error", err)
		return IdentityToken{}, wrapError(ErrInvalidToken, err, map[string]any{"reason": reason})
	}

	if !token.Valid || claims.Subject == "" {
		return IdentityToken{}, newError(ErrInvalidToken, map[string]any{"reason": "claims"})
	}

	role, err := ParseRole(claims.UserRole)
	if err != nil {
		return IdentityToken{}, newError(ErrInvalidToken, map[string]any{"reason": "role"})
	}

	info := IdentityToken{
		ID:      claims.ID,
		Subject: claims.Subject,
		Role:    role,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
