package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFallbackRole  = RoleUser
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenInvalid indicates the presented credential failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrTokenExpired indicates the presented credential is expired.
	ErrTokenExpired = errors.New("auth: token expired")
)

// TokenVerifier verifies a bearer token and resolves the caller's identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (*Identity, error)

// VerifyToken invokes the wrapped function.
func (f TokenVerifierFunc) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// Authenticator validates bearer tokens on incoming requests and stores the
// resolved identity on the request context.
type Authenticator struct {
	verifier     TokenVerifier
	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator instances.
type Option func(*Authenticator)

// WithFallbackRole overrides the role assumed when the token carries none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		if role = strings.TrimSpace(role); role != "" {
			a.fallbackRole = strings.ToLower(role)
		}
	}
}

// WithVerificationTimeout bounds the time spent verifying a single token.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator around the given verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequireAuth enforces a valid bearer token and, when roles are given, that
// the identity carries at least one of them.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusInternalServerError, "auth_not_configured", "authentication is not configured")
				return
			}

			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "missing_token", "a bearer token is required")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			identity, err := a.verifier.VerifyToken(ctx, token)
			cancel()
			if err != nil {
				respondVerificationError(w, err)
				return
			}
			if identity == nil || identity.UID == "" {
				respondAuthError(w, http.StatusUnauthorized, "invalid_token", "the token resolved to no identity")
				return
			}
			if len(identity.Roles) == 0 {
				identity.Roles = []string{a.fallbackRole}
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "forbidden", "the caller lacks a required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; ok {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "the token is expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "the token failed verification")
	}
}
