package domain

import "time"

// Role decides dashboard routing and never changes after profile creation.
type Role string

const (
	RoleStudent   Role = "student"
	RoleCounselor Role = "counselor"
)

// Profile document field names, shared by every profile store.
const (
	FieldLastLoginAt         = "lastLoginAt"
	FieldOnboardingCompleted = "onboardingCompleted"
)

// DefaultSchool is used when a profile has to be synthesized without input.
const DefaultSchool = "Not specified"

// ProfileFields are the caller-supplied parts of a new profile.
type ProfileFields struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	School       string `json:"school"`
	UserType     Role   `json:"userType"`
	Grade        string `json:"grade,omitempty"`
	JobRole      string `json:"role,omitempty"`
	StudentCount string `json:"studentCount,omitempty"`
}

// Preferences are per-user notification and display settings.
type Preferences struct {
	Notifications bool   `json:"notifications" bson:"notifications"`
	EmailUpdates  bool   `json:"emailUpdates" bson:"emailUpdates"`
	Theme         string `json:"theme" bson:"theme"`
}

// DefaultPreferences are written with every new profile.
func DefaultPreferences() Preferences {
	return Preferences{Notifications: true, EmailUpdates: true, Theme: "light"}
}

// UserProfile is the users/{uid} document.
type UserProfile struct {
	UID          string `json:"uid" bson:"_id"`
	FirstName    string `json:"firstName" bson:"firstName"`
	LastName     string `json:"lastName" bson:"lastName"`
	Email        string `json:"email" bson:"email"`
	School       string `json:"school" bson:"school"`
	UserType     Role   `json:"userType" bson:"userType"`
	Grade        string `json:"grade,omitempty" bson:"grade,omitempty"`
	JobRole      string `json:"role,omitempty" bson:"role,omitempty"`
	StudentCount string `json:"studentCount,omitempty" bson:"studentCount,omitempty"`

	XP                   int      `json:"xp" bson:"xp"`
	Level                int      `json:"level" bson:"level"`
	Badges               []string `json:"badges" bson:"badges"`
	CompletedSimulations []string `json:"completedSimulations" bson:"completedSimulations"`
	CurrentStreak        int      `json:"currentStreak" bson:"currentStreak"`
	TotalHours           float64  `json:"totalHours" bson:"totalHours"`

	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
	LastLoginAt         time.Time `json:"lastLoginAt" bson:"lastLoginAt"`
	OnboardingCompleted bool      `json:"onboardingCompleted" bson:"onboardingCompleted"`

	SimulationProgress map[string]int `json:"simulationProgress" bson:"simulationProgress"`
	CityBuildings      []string       `json:"cityBuildings" bson:"cityBuildings"`
	Achievements       []string       `json:"achievements" bson:"achievements"`
	Preferences        Preferences    `json:"preferences" bson:"preferences"`

	OnboardingAnswers Answers `json:"onboardingAnswers,omitempty" bson:"onboardingAnswers,omitempty"`
}

// NewProfile seeds a profile with caller fields and zeroed gamification counters.
func NewProfile(uid, email string, fields ProfileFields, now time.Time) UserProfile {
	return UserProfile{
		UID:                  uid,
		FirstName:            fields.FirstName,
		LastName:             fields.LastName,
		Email:                email,
		School:               fields.School,
		UserType:             fields.UserType,
		Grade:                fields.Grade,
		JobRole:              fields.JobRole,
		StudentCount:         fields.StudentCount,
		XP:                   0,
		Level:                1,
		Badges:               []string{},
		CompletedSimulations: []string{},
		CurrentStreak:        0,
		TotalHours:           0,
		CreatedAt:            now,
		LastLoginAt:          now,
		OnboardingCompleted:  true,
		SimulationProgress:   map[string]int{},
		CityBuildings:        []string{},
		Achievements:         []string{},
		Preferences:          DefaultPreferences(),
	}
}

// Identity is an authenticated principal as issued by the identity provider.
type Identity struct {
	UID            string    `json:"uid"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName,omitempty"`
	ProviderID     string    `json:"providerId"`
	Token          string    `json:"-"`
	TokenExpiresAt time.Time `json:"-"`
}

// Credential is the identity provider's stored account record.
type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	Provider     string
	Subject      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthStateChange is one notification from the provider's auth-state stream.
// A nil Identity with a UID means that identity signed out; an event with
// neither is the initial "nobody signed in" snapshot.
type AuthStateChange struct {
	UID      string
	Identity *Identity
	At       time.Time
}

// SignedIn reports whether the change carries a signed-in identity.
func (c AuthStateChange) SignedIn() bool {
	return c.Identity != nil
}

// SessionUser is an identity enriched with its profile fields.
type SessionUser struct {
	UID                  string    `json:"uid"`
	Email                string    `json:"email"`
	DisplayName          string    `json:"displayName,omitempty"`
	ProviderID           string    `json:"providerId"`
	FirstName            string    `json:"firstName"`
	LastName             string    `json:"lastName"`
	UserType             Role      `json:"userType"`
	School               string    `json:"school"`
	Grade                string    `json:"grade,omitempty"`
	JobRole              string    `json:"role,omitempty"`
	StudentCount         string    `json:"studentCount,omitempty"`
	XP                   int       `json:"xp"`
	Level                int       `json:"level"`
	Badges               []string  `json:"badges"`
	CompletedSimulations []string  `json:"completedSimulations"`
	CurrentStreak        int       `json:"currentStreak"`
	TotalHours           float64   `json:"totalHours"`
	OnboardingCompleted  bool      `json:"onboardingCompleted"`
	LastLoginAt          time.Time `json:"lastLoginAt,omitempty"`
}

// Dashboard returns the dashboard target for the user's role.
func (u SessionUser) Dashboard() Target {
	return DashboardFor(u.UserType)
}

// SessionState is one transition of the session context.
type SessionState struct {
	UID      string       `json:"uid,omitempty"`
	SignedIn bool         `json:"signedIn"`
	User     *SessionUser `json:"user,omitempty"`
	Loading  bool         `json:"loading"`
	At       time.Time    `json:"at"`
}
