package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing token")

// WebhookClaims identify the system calling the webhook.
type WebhookClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

const webhookScope = "webhook"

// WebhookAuth checks HS256 bearer tokens on trigger endpoints. An empty
// secret disables the check.
type WebhookAuth struct {
	secret []byte
	leeway time.Duration
}

func NewWebhookAuth(secret string) *WebhookAuth {
	return &WebhookAuth{secret: []byte(secret), leeway: 30 * time.Second}
}

func (a *WebhookAuth) Enabled() bool { return len(a.secret) > 0 }

// Mint signs a webhook token for subject, valid for ttl.
func (a *WebhookAuth) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := WebhookClaims{
		Scope: webhookScope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *WebhookAuth) ParseFromRequest(r *http.Request) (*WebhookClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *WebhookAuth) parse(tok string) (*WebhookClaims, error) {
	claims := &WebhookClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(a.leeway))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Scope != webhookScope {
		return nil, errors.New("token scope mismatch")
	}
	return claims, nil
}

// Middleware rejects requests without a valid token.
func (a *WebhookAuth) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := a.ParseFromRequest(r); err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
