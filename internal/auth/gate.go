// Package auth resolves the calling user from an HS256 bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

// CookieName is checked when no Authorization header is present.
const CookieName = "session_token"

var ErrUnauthenticated = errors.New("unauthenticated")

// Claims carries the role next to the registered claims; the subject is the
// numeric user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type JWTGate struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTGate(secret, issuer string) *JWTGate {
	return &JWTGate{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue mints a token for actor valid for ttl.
func (g *JWTGate) Issue(actor core.Actor, ttl time.Duration) (string, error) {
	now := g.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a raw token. The role is passed through unnormalized; the
// ledger decides whether it is recognized.
func (g *JWTGate) Verify(raw string) (core.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return core.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return core.Actor{}, fmt.Errorf("%w: invalid subject %q", ErrUnauthenticated, claims.Subject)
	}
	return core.Actor{ID: id, Role: core.Role(claims.Role)}, nil
}

// Authenticate reads the token from the Authorization header or the session
// cookie.
func (g *JWTGate) Authenticate(r *http.Request) (core.Actor, error) {
	raw := ""
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return core.Actor{}, fmt.Errorf("%w: unsupported authorization scheme", ErrUnauthenticated)
		}
		raw = strings.TrimSpace(token)
	} else if c, err := r.Cookie(CookieName); err == nil {
		raw = c.Value
	}
	if raw == "" {
		return core.Actor{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	return g.Verify(raw)
}

type actorKey struct{}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor core.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by Middleware.
func ActorFromContext(ctx context.Context) (core.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(core.Actor)
	return actor, ok
}

// Authenticator is what Middleware needs from a gate.
type Authenticator interface {
	Authenticate(r *http.Request) (core.Actor, error)
}

// Middleware rejects unauthenticated requests with 401 and stores the actor
// in the request context otherwise.
func Middleware(a Authenticator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := a.Authenticate(r)
			if err != nil {
				if onError != nil {
					onError(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
