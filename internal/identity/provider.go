// Package identity is a self-hosted identity provider: email/password
// accounts, federated ID-token sign-in, session tokens and an auth-state
// change stream.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"skillscape/internal/domain"
)

// Sign-in methods reported by SignInMethodsForEmail.
const (
	MethodPassword  = "password"
	MethodFederated = "federated"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CredentialStore persists account records.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred domain.Credential) error
	CredentialByEmail(ctx context.Context, email string) (domain.Credential, error)
	CredentialBySubject(ctx context.Context, provider, subject string) (domain.Credential, error)
	UpdateDisplayName(ctx context.Context, uid, displayName string, at time.Time) error
}

// AttemptLimiter throttles failed password sign-ins per key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Failure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// RevocationStore remembers signed-out session ids until their tokens expire.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

// Provider implements the identity capability surface on local stores.
type Provider struct {
	creds     CredentialStore
	limiter   AttemptLimiter
	revoked   RevocationStore
	tokens    *TokenIssuer
	federated *FederatedVerifier
	now       func() time.Time
	cost      int

	mu          sync.Mutex
	subscribers map[chan domain.AuthStateChange]struct{}
}

// Options configures a Provider. Federated may be nil to disable federated sign-in.
type Options struct {
	Credentials CredentialStore
	Limiter     AttemptLimiter
	Revocations RevocationStore
	Tokens      *TokenIssuer
	Federated   *FederatedVerifier
	BcryptCost  int
}

func NewProvider(opts Options) *Provider {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Provider{
		creds:       opts.Credentials,
		limiter:     opts.Limiter,
		revoked:     opts.Revocations,
		tokens:      opts.Tokens,
		federated:   opts.Federated,
		now:         time.Now,
		cost:        cost,
		subscribers: make(map[chan domain.AuthStateChange]struct{}),
	}
}

// CreateUser registers an email/password account and signs it in.
func (p *Provider) CreateUser(ctx context.Context, email, password string) (domain.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Identity{}, err
	}
	if len(password) < minPasswordLength {
		return domain.Identity{}, newError(CodeWeakPassword, fmt.Sprintf("password should be at least %d characters", minPasswordLength), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().UTC()
	cred := domain.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     MethodPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.creds.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrIdentityExists) {
			return domain.Identity{}, newError(CodeEmailAlreadyInUse, "email already in use", err)
		}
		return domain.Identity{}, fmt.Errorf("create credential: %w", err)
	}
	return p.startSession(cred)
}

// SignIn checks an email/password pair. Repeated failures for the same email
// are throttled by the attempt limiter.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Identity{}, err
	}
	allowed, err := p.limiter.Allow(ctx, email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("check attempts: %w", err)
	}
	if !allowed {
		return domain.Identity{}, newError(CodeTooManyRequests, "too many failed sign-in attempts", nil)
	}

	cred, err := p.creds.CredentialByEmail(ctx, email)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		p.recordFailure(ctx, email)
		return domain.Identity{}, newError(CodeUserNotFound, "no user for email", err)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load credential: %w", err)
	}
	if cred.PasswordHash == "" {
		p.recordFailure(ctx, email)
		return domain.Identity{}, newError(CodeInvalidCredential, "account has no password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		p.recordFailure(ctx, email)
		return domain.Identity{}, newError(CodeWrongPassword, "wrong password", err)
	}

	if err := p.limiter.Reset(ctx, email); err != nil {
		return domain.Identity{}, fmt.Errorf("reset attempts: %w", err)
	}
	return p.startSession(cred)
}

// SignInWithFederated verifies an ID token from the federated issuer and
// signs in the linked account, creating it on first use.
func (p *Provider) SignInWithFederated(ctx context.Context, idToken string) (domain.Identity, error) {
	if p.federated == nil {
		return domain.Identity{}, newError(CodeInvalidCredential, "federated sign-in is not configured", nil)
	}
	claims, err := p.federated.Verify(idToken)
	if err != nil {
		return domain.Identity{}, err
	}

	issuer := p.federated.Issuer()
	cred, err := p.creds.CredentialBySubject(ctx, issuer, claims.Subject)
	if err == nil {
		return p.startSession(cred)
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return domain.Identity{}, fmt.Errorf("load federated credential: %w", err)
	}

	now := p.now().UTC()
	cred = domain.Credential{
		UID:         uuid.NewString(),
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: strings.TrimSpace(claims.Name),
		Provider:    issuer,
		Subject:     claims.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.creds.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrIdentityExists) {
			return domain.Identity{}, newError(CodeAccountExistsWithOtherID, "an account already exists with the same email but a different sign-in method", err)
		}
		return domain.Identity{}, fmt.Errorf("create federated credential: %w", err)
	}
	return p.startSession(cred)
}

// SignOut revokes the session behind token and announces the sign-out.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return err
	}
	until := p.now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := p.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.broadcast(domain.AuthStateChange{UID: claims.Subject, At: p.now()})
	return nil
}

// VerifyToken resolves a session token to its identity.
func (p *Provider) VerifyToken(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, err
	}
	revoked, err := p.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return domain.Identity{}, newError(CodeTokenExpired, "session signed out", nil)
	}
	identity := domain.Identity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		ProviderID:  claims.ProviderID,
		Token:       token,
	}
	if claims.ExpiresAt != nil {
		identity.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// UpdateDisplayName changes the display name on the account record.
func (p *Provider) UpdateDisplayName(ctx context.Context, uid, displayName string) error {
	if err := p.creds.UpdateDisplayName(ctx, uid, strings.TrimSpace(displayName), p.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return newError(CodeUserNotFound, "no user for uid", err)
		}
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// SignInMethodsForEmail lists how an email can sign in; empty for unknown emails.
func (p *Provider) SignInMethodsForEmail(ctx context.Context, email string) ([]string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	cred, err := p.creds.CredentialByEmail(ctx, email)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	methods := []string{}
	if cred.PasswordHash != "" {
		methods = append(methods, MethodPassword)
	}
	if cred.Subject != "" {
		methods = append(methods, MethodFederated)
	}
	return methods, nil
}

// Subscribe streams auth-state changes, starting with an empty snapshot. The
// stream ends when ctx is done or the returned cancel function is called.
func (p *Provider) Subscribe(ctx context.Context) (<-chan domain.AuthStateChange, func(), error) {
	ch := make(chan domain.AuthStateChange, 32)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	ch <- domain.AuthStateChange{At: p.now()}
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			if _, ok := p.subscribers[ch]; ok {
				delete(p.subscribers, ch)
				close(ch)
			}
			p.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

func (p *Provider) startSession(cred domain.Credential) (domain.Identity, error) {
	identity := domain.Identity{
		UID:         cred.UID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		ProviderID:  cred.Provider,
	}
	token, expires, err := p.tokens.Issue(identity)
	if err != nil {
		return domain.Identity{}, err
	}
	identity.Token = token
	identity.TokenExpiresAt = expires

	announced := identity
	p.broadcast(domain.AuthStateChange{UID: identity.UID, Identity: &announced, At: p.now()})
	return identity, nil
}

func (p *Provider) recordFailure(ctx context.Context, key string) {
	if err := p.limiter.Failure(ctx, key); err != nil {
		log.Printf("record sign-in failure for %s: %v", key, err)
	}
}

func (p *Provider) broadcast(change domain.AuthStateChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		select {
		case ch <- change:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", newError(CodeInvalidEmail, "invalid email", nil)
	}
	return email, nil
}
