package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifierConfig configures HS256 bearer-token verification.
type JWTVerifierConfig struct {
	Secret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Leeway tolerates clock drift on time-based claims.
	Leeway time.Duration
	Clock  func() time.Time
}

// JWTVerifier verifies HS256-signed bearer tokens minted by the identity
// frontend and maps their claims onto an Identity.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	clock  func() time.Time
}

// NewJWTVerifier validates the configuration and constructs a verifier.
func NewJWTVerifier(cfg JWTVerifierConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: jwt verifier secret is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &JWTVerifier{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		leeway: leeway,
		clock:  clock,
	}, nil
}

// VerifyToken implements TokenVerifier.
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.clock),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	identity := &Identity{
		UID:    subject,
		Claims: claims,
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if locale, ok := claims["locale"].(string); ok {
		identity.Locale = locale
	}
	identity.Roles = stringSliceClaim(claims["roles"])
	return identity, nil
}

func stringSliceClaim(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, entry := range typed {
			if s, ok := entry.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	default:
		return nil
	}
}
