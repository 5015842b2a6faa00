package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"skillscape/internal/domain"
)

// SessionClaims are the claims of a session token. ID (jti) is the session id.
type SessionClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	ProviderID  string `json:"provider"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a new session token for identity and returns it with its expiry.
func (t *TokenIssuer) Issue(identity domain.Identity) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &SessionClaims{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		ProviderID:  identity.ProviderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.UID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates a session token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(CodeTokenExpired, "session token expired", err)
		}
		return nil, newError(CodeInvalidCredential, "invalid session token", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, newError(CodeInvalidCredential, "invalid session token", nil)
	}
	return claims, nil
}

// FederatedClaims are the fields read from a federated ID token.
type FederatedClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// FederatedVerifier checks ID tokens minted by the configured federated issuer.
type FederatedVerifier struct {
	issuer   string
	audience string
	secret   []byte
	now      func() time.Time
}

func NewFederatedVerifier(issuer, audience, secret string) *FederatedVerifier {
	return &FederatedVerifier{issuer: issuer, audience: audience, secret: []byte(secret), now: time.Now}
}

// Issuer names the provider recorded on federated credentials.
func (v *FederatedVerifier) Issuer() string {
	return v.issuer
}

// Verify validates signature, issuer, audience and expiry of an ID token.
func (v *FederatedVerifier) Verify(idToken string) (*FederatedClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := &FederatedClaims{}
	parsed, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, newError(CodeInvalidCredential, "invalid federated id token", err)
	}
	return claims, nil
}
