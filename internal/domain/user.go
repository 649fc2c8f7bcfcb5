package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

type Availability string

const (
	AvailabilityWeekends Availability = "weekends"
	AvailabilityWeekdays Availability = "weekdays"
	AvailabilityFlexible Availability = "flexible"
	AvailabilityBusy     Availability = "busy"
)

var availabilities = []string{
	string(AvailabilityWeekends),
	string(AvailabilityWeekdays),
	string(AvailabilityFlexible),
	string(AvailabilityBusy),
}

type ProfileVisibility string

const (
	VisibilityPublic  ProfileVisibility = "public"
	VisibilityPrivate ProfileVisibility = "private"
)

var visibilities = []string{string(VisibilityPublic), string(VisibilityPrivate)}

// User represents a user in the domain layer
type User struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	GoogleID          *string           `json:"-"`
	Bio               string            `json:"bio"`
	Location          string            `json:"location"`
	AvatarURL         string            `json:"avatar"`
	SkillsOffered     []string          `json:"skillsOffered"`
	SkillsWanted      []string          `json:"skillsWanted"`
	Rating            float64           `json:"rating"`
	RatingCount       int               `json:"ratingCount"`
	Availability      Availability      `json:"availability"`
	ProfileVisibility ProfileVisibility `json:"profileVisibility"`
	IsActive          bool              `json:"isActive"`
	DeviceToken       *string           `json:"-"`
	LastLoginAt       *time.Time        `json:"lastLogin,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// UserSummary is the slice of a user embedded in request listings
type UserSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	AvatarURL     string    `json:"avatar"`
	SkillsOffered []string  `json:"skillsOffered"`
	SkillsWanted  []string  `json:"skillsWanted"`
	Rating        float64   `json:"rating"`
}

// Summary converts a User to a UserSummary
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		SkillsOffered: u.SkillsOffered,
		SkillsWanted:  u.SkillsWanted,
		Rating:        u.Rating,
	}
}

// PublicProfile is a user as shown to anyone other than the user themselves.
// Contact and session details are left out.
type PublicProfile struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Bio               string            `json:"bio"`
	Location          string            `json:"location"`
	AvatarURL         string            `json:"avatar"`
	SkillsOffered     []string          `json:"skillsOffered"`
	SkillsWanted      []string          `json:"skillsWanted"`
	Rating            float64           `json:"rating"`
	RatingCount       int               `json:"ratingCount"`
	Availability      Availability      `json:"availability"`
	ProfileVisibility ProfileVisibility `json:"profileVisibility"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// Public strips the fields only the owner may see
func (u *User) Public() *PublicProfile {
	return &PublicProfile{
		ID:                u.ID,
		Name:              u.Name,
		Bio:               u.Bio,
		Location:          u.Location,
		AvatarURL:         u.AvatarURL,
		SkillsOffered:     u.SkillsOffered,
		SkillsWanted:      u.SkillsWanted,
		Rating:            u.Rating,
		RatingCount:       u.RatingCount,
		Availability:      u.Availability,
		ProfileVisibility: u.ProfileVisibility,
		CreatedAt:         u.CreatedAt,
	}
}

// UserStats summarizes a profile for the directory
type UserStats struct {
	Name               string    `json:"name"`
	SkillsOfferedCount int       `json:"skillsOfferedCount"`
	SkillsWantedCount  int       `json:"skillsWantedCount"`
	Rating             float64   `json:"rating"`
	RatingCount        int       `json:"ratingCount"`
	MemberSince        time.Time `json:"memberSince"`
}

// Stats returns the user's directory statistics
func (u *User) Stats() *UserStats {
	return &UserStats{
		Name:               u.Name,
		SkillsOfferedCount: len(u.SkillsOffered),
		SkillsWantedCount:  len(u.SkillsWanted),
		Rating:             u.Rating,
		RatingCount:        u.RatingCount,
		MemberSince:        u.CreatedAt,
	}
}

// SkillCatalog lists the distinct skills on active public profiles, sorted.
// Skills is the union of both lists.
type SkillCatalog struct {
	Skills        []string `json:"skills"`
	SkillsOffered []string `json:"skillsOffered"`
	SkillsWanted  []string `json:"skillsWanted"`
}

// VisibleTo reports whether viewerID may see this profile.
func (u *User) VisibleTo(viewerID uuid.UUID) bool {
	if u.ID == viewerID {
		return true
	}
	return u.IsActive && u.ProfileVisibility == VisibilityPublic
}

// NextRating folds one more 1..5 score into an aggregate rounded to one decimal.
func NextRating(current float64, count, score int) float64 {
	total := current*float64(count) + float64(score)
	return math.Round(total/float64(count+1)*10) / 10
}

// CreateUserParams holds parameters for user creation
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash *string
	GoogleID     *string
	AvatarURL    string
}

// UpdateProfileParams holds the editable profile fields; nil leaves a field unchanged
type UpdateProfileParams struct {
	Name              *string            `json:"name"`
	Bio               *string            `json:"bio"`
	Location          *string            `json:"location"`
	SkillsOffered     *[]string          `json:"skillsOffered"`
	SkillsWanted      *[]string          `json:"skillsWanted"`
	Availability      *Availability      `json:"availability"`
	ProfileVisibility *ProfileVisibility `json:"profileVisibility"`
}

// SearchUsersParams filters the public user directory
type SearchUsersParams struct {
	Query        string
	Availability Availability
	MinRating    float64
	Skill        string
	Limit        int
	Offset       int
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*User, error)
	GetUserWithPassword(ctx context.Context, email string) (*User, string, error)
	GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*UserSummary, error)
	LinkGoogleAccount(ctx context.Context, userID uuid.UUID, googleID string) (*User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (*User, error)
	UpdateDeviceToken(ctx context.Context, userID uuid.UUID, token string) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	SearchUsers(ctx context.Context, params SearchUsersParams) ([]*User, int, error)
	// ListSkills returns the sorted distinct offered and wanted skills of active public users
	ListSkills(ctx context.Context) (offered, wanted []string, err error)
}
