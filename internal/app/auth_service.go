package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"skillscape/internal/domain"
)

// IdentityProvider is the external identity service the façade adapts.
// Errors carrying provider codes expose them through ProviderCode() string.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password string) (domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	SignInWithFederated(ctx context.Context, idToken string) (domain.Identity, error)
	SignOut(ctx context.Context, token string) error
	UpdateDisplayName(ctx context.Context, uid, displayName string) error
	SignInMethodsForEmail(ctx context.Context, email string) ([]string, error)
	Subscribe(ctx context.Context) (<-chan domain.AuthStateChange, func(), error)
}

// ProfileStore reads and writes users/{uid} documents.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (domain.UserProfile, error)
	SetProfile(ctx context.Context, profile domain.UserProfile) error
	MergeProfile(ctx context.Context, uid string, fields map[string]any) error
}

// Provider error codes the façade understands.
const (
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeTooManyRequests   = "auth/too-many-requests"
)

const lookupTimeout = 10 * time.Second

type providerCoded interface {
	ProviderCode() string
}

// AuthResult is the outcome of a sign-up or sign-in.
type AuthResult struct {
	User     domain.SessionUser
	Identity domain.Identity
	Target   domain.Target
}

// AuthService adapts an identity provider and a profile store into
// profile-bearing sessions. Every operation is a single attempt.
type AuthService struct {
	provider IdentityProvider
	profiles ProfileStore
	now      func() time.Time
	lookups  singleflight.Group
}

func NewAuthService(provider IdentityProvider, profiles ProfileStore) *AuthService {
	return &AuthService{provider: provider, profiles: profiles, now: time.Now}
}

// SignUp creates an email/password identity and its profile document.
func (s *AuthService) SignUp(ctx context.Context, email, password string, fields domain.ProfileFields, answers domain.Answers) (AuthResult, error) {
	methods, err := s.provider.SignInMethodsForEmail(ctx, email)
	if err != nil {
		return AuthResult{}, classify(err)
	}
	if len(methods) > 0 {
		return AuthResult{}, domain.ErrDuplicateAccount
	}

	identity, err := s.provider.CreateUser(ctx, email, password)
	if err != nil {
		return AuthResult{}, classify(err)
	}

	// The identity exists from here on; finish the profile even if the caller goes away.
	writeCtx := context.WithoutCancel(ctx)

	displayName := strings.TrimSpace(fields.FirstName + " " + fields.LastName)
	if displayName != "" {
		if err := s.provider.UpdateDisplayName(writeCtx, identity.UID, displayName); err != nil {
			log.Printf("update display name for %s: %v", identity.UID, err)
		} else {
			identity.DisplayName = displayName
		}
	}

	if fields.UserType == "" {
		fields.UserType = domain.RoleStudent
	}
	profile := domain.NewProfile(identity.UID, identity.Email, fields, s.now().UTC())
	if len(answers) > 0 {
		profile.OnboardingAnswers = answers.Clone()
	}
	if err := s.profiles.SetProfile(writeCtx, profile); err != nil {
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	}
	return s.result(identity, &profile), nil
}

// SignUpWithFederatedIdentity signs in through the federated provider and
// creates a profile when none exists. An existing profile is left untouched,
// even if fields disagree with it.
func (s *AuthService) SignUpWithFederatedIdentity(ctx context.Context, idToken string, fields domain.ProfileFields, answers domain.Answers) (AuthResult, error) {
	identity, err := s.provider.SignInWithFederated(ctx, idToken)
	if err != nil {
		return AuthResult{}, classify(err)
	}
	writeCtx := context.WithoutCancel(ctx)

	profile, err := s.profiles.GetProfile(writeCtx, identity.UID)
	switch {
	case err == nil:
		return s.result(identity, &profile), nil
	case !errors.Is(err, domain.ErrProfileNotFound):
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	}

	first, last := SplitDisplayName(identity.DisplayName)
	fields.FirstName, fields.LastName = first, last
	if fields.UserType == "" {
		fields.UserType = domain.RoleStudent
	}
	profile = domain.NewProfile(identity.UID, identity.Email, fields, s.now().UTC())
	if len(answers) > 0 {
		profile.OnboardingAnswers = answers.Clone()
	}
	if err := s.profiles.SetProfile(writeCtx, profile); err != nil {
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	}
	return s.result(identity, &profile), nil
}

// SignIn authenticates with email and password. A missing profile document is
// recovered by writing a default one that still needs onboarding.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return AuthResult{}, classify(err)
	}
	writeCtx := context.WithoutCancel(ctx)
	now := s.now().UTC()

	profile, err := s.profiles.GetProfile(writeCtx, identity.UID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		log.Printf("%v: uid=%s, writing default profile", domain.ErrProfileWriteInconsistency, identity.UID)
		profile = defaultProfile(identity, now)
		if err := s.profiles.SetProfile(writeCtx, profile); err != nil {
			return AuthResult{}, s.abandon(writeCtx, identity, err)
		}
	case err != nil:
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	default:
		if err := s.touchLastLogin(writeCtx, identity.UID, now); err != nil {
			return AuthResult{}, s.abandon(writeCtx, identity, err)
		}
		profile.LastLoginAt = now
	}
	return s.result(identity, &profile), nil
}

// SignInWithFederatedIdentity signs in through the federated provider. Without
// a profile it fails with ErrProfileMissing and the onboarding redirect target.
func (s *AuthService) SignInWithFederatedIdentity(ctx context.Context, idToken string) (AuthResult, error) {
	identity, err := s.provider.SignInWithFederated(ctx, idToken)
	if err != nil {
		return AuthResult{}, classify(err)
	}
	writeCtx := context.WithoutCancel(ctx)

	profile, err := s.profiles.GetProfile(writeCtx, identity.UID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		missing := domain.NewAuthError(domain.KindProfileMissing, domain.ErrProfileMissing.Message, err)
		return AuthResult{Identity: identity, Target: domain.TargetOnboardingRedirect}, s.abandon(writeCtx, identity, missing)
	}
	if err != nil {
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	}

	now := s.now().UTC()
	if err := s.touchLastLogin(writeCtx, identity.UID, now); err != nil {
		return AuthResult{}, s.abandon(writeCtx, identity, err)
	}
	profile.LastLoginAt = now
	return s.result(identity, &profile), nil
}

// SignOut ends the provider session behind token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if err := s.provider.SignOut(ctx, token); err != nil {
		return classify(err)
	}
	return nil
}

// User enriches an already verified identity from its profile. A missing
// profile yields the defaults rather than an error. Concurrent lookups for
// the same identity share one profile read, which outlives any single caller.
func (s *AuthService) User(ctx context.Context, identity domain.Identity) (domain.SessionUser, error) {
	readCtx := context.WithoutCancel(ctx)
	results := s.lookups.DoChan(identity.UID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(readCtx, lookupTimeout)
		defer cancel()
		profile, err := s.profiles.GetProfile(readCtx, identity.UID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			return Enrich(identity, nil), nil
		}
		if err != nil {
			return domain.SessionUser{}, err
		}
		return Enrich(identity, &profile), nil
	})

	select {
	case <-ctx.Done():
		return domain.SessionUser{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return domain.SessionUser{}, classify(res.Err)
		}
		return res.Val.(domain.SessionUser), nil
	}
}

// abandon ends the session the provider opened for identity when the
// operation cannot hand it to the caller, and classifies cause.
func (s *AuthService) abandon(ctx context.Context, identity domain.Identity, cause error) error {
	if err := s.provider.SignOut(ctx, identity.Token); err != nil {
		log.Printf("end session for %s: %v", identity.UID, err)
	}
	return classify(cause)
}

func (s *AuthService) touchLastLogin(ctx context.Context, uid string, now time.Time) error {
	return s.profiles.MergeProfile(ctx, uid, map[string]any{domain.FieldLastLoginAt: now})
}

func (s *AuthService) result(identity domain.Identity, profile *domain.UserProfile) AuthResult {
	user := Enrich(identity, profile)
	return AuthResult{User: user, Identity: identity, Target: user.Dashboard()}
}

func defaultProfile(identity domain.Identity, now time.Time) domain.UserProfile {
	source := identity.DisplayName
	if source == "" {
		source = identity.Email
	}
	first, last := SplitDisplayName(source)
	profile := domain.NewProfile(identity.UID, identity.Email, domain.ProfileFields{
		FirstName: first,
		LastName:  last,
		School:    domain.DefaultSchool,
		UserType:  domain.RoleStudent,
	}, now)
	profile.OnboardingCompleted = false
	return profile
}

// SplitDisplayName splits "First Middle Last" into "First" and "Middle Last".
// An empty first name becomes "User".
func SplitDisplayName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "User", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Enrich merges an identity with its profile, filling defaults for anything
// the profile lacks. profile may be nil.
func Enrich(identity domain.Identity, profile *domain.UserProfile) domain.SessionUser {
	user := domain.SessionUser{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		ProviderID:  identity.ProviderID,
	}
	var p domain.UserProfile
	if profile != nil {
		p = *profile
	}

	first, last := SplitDisplayName(identity.DisplayName)
	user.FirstName = orDefault(p.FirstName, first)
	user.LastName = orDefault(p.LastName, last)
	user.UserType = p.UserType
	if user.UserType == "" {
		user.UserType = domain.RoleStudent
	}
	user.School = orDefault(p.School, domain.DefaultSchool)
	user.Grade = p.Grade
	user.JobRole = p.JobRole
	user.StudentCount = p.StudentCount
	user.XP = p.XP
	user.Level = p.Level
	if user.Level == 0 {
		user.Level = 1
	}
	user.Badges = nonNil(p.Badges)
	user.CompletedSimulations = nonNil(p.CompletedSimulations)
	user.CurrentStreak = p.CurrentStreak
	user.TotalHours = p.TotalHours
	user.OnboardingCompleted = p.OnboardingCompleted
	user.LastLoginAt = p.LastLoginAt
	return user
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// classify maps provider and store errors onto the auth taxonomy.
func classify(err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}

	var coded providerCoded
	if !errors.As(err, &coded) {
		return domain.NewAuthError(domain.KindUnknown, domain.ErrUnknown.Message, err)
	}
	switch coded.ProviderCode() {
	case CodeEmailAlreadyInUse:
		return domain.NewAuthError(domain.KindDuplicateAccount, domain.ErrDuplicateAccount.Message, err)
	case CodeUserNotFound:
		return domain.NewAuthError(domain.KindInvalidCredentials, "no account found with this email, please sign up first", err)
	case CodeWrongPassword:
		return domain.NewAuthError(domain.KindInvalidCredentials, "incorrect password, please try again", err)
	case CodeInvalidCredential:
		return domain.NewAuthError(domain.KindInvalidCredentials, domain.ErrInvalidCredentials.Message, err)
	case CodeInvalidEmail:
		return domain.NewAuthError(domain.KindInvalidEmailFormat, domain.ErrInvalidEmailFormat.Message, err)
	case CodeTooManyRequests:
		return domain.NewAuthError(domain.KindRateLimited, domain.ErrRateLimited.Message, err)
	default:
		return domain.NewAuthError(domain.KindUnknown, err.Error(), err)
	}
}
