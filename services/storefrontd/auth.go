package storefrontd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/crypto"
)

type contextKey string

const contextKeyCaller contextKey = "storefront_caller"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
)

// Authenticator verifies HS256 bearer tokens. The subject claim carries the
// caller account; capabilities are resolved from state roles, never from
// token claims.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience []string
	skew     time.Duration
	now      func() time.Time
}

// NewAuthenticator builds an Authenticator from configuration.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, fmt.Errorf("hmac secret required")
	}
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: trimmed(cfg.Audience),
		skew:     cfg.MaxSkew.Duration,
		now:      time.Now,
	}, nil
}

// Middleware resolves the caller when a bearer token is present. Requests
// without one continue anonymously; handlers that need an identity call
// currentCaller.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := a.verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "UNAUTHENTICATED"})
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(raw string) ([20]byte, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if len(a.audience) > 0 {
		opts = append(opts, jwt.WithAudience(a.audience[0]))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return [20]byte{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	caller, err := crypto.ParseAccount(claims.Subject)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: subject: %v", errInvalidToken, err)
	}
	return caller, nil
}

// Issue signs a token for subject. storefrontctl and tests use it.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if a.issuer != "" {
		claims.Issuer = a.issuer
	}
	if len(a.audience) > 0 {
		claims.Audience = jwt.ClaimStrings(a.audience)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func currentCaller(ctx context.Context) ([20]byte, error) {
	caller, ok := ctx.Value(contextKeyCaller).([20]byte)
	if !ok {
		return [20]byte{}, errMissingToken
	}
	return caller, nil
}

func parseBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
