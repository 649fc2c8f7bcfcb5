package domain

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/skillswap/backend/internal/storage"
	"github.com/skillswap/backend/pkg/validator"
)

const (
	maxBioLength      = 500
	maxLocationLength = 100
	maxSkillsPerList  = 50
)

// UserService serves the user directory and profile edits
type UserService struct {
	repo    UserRepository
	storage storage.FileStorage
}

// NewUserService creates a new user service
func NewUserService(repo UserRepository, fileStorage storage.FileStorage) *UserService {
	return &UserService{
		repo:    repo,
		storage: fileStorage,
	}
}

// SearchFilter is the directory query as received from the client
type SearchFilter struct {
	Query        string
	Availability string
	MinRating    float64
	Skill        string
	Page         int
	Limit        int
}

// SearchResult is one page of the directory
type SearchResult struct {
	Users []*PublicProfile `json:"users"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Pages int              `json:"pages"`
}

// Search lists public, active users matching the filter
func (s *UserService) Search(ctx context.Context, filter SearchFilter) (*SearchResult, error) {
	var errs validator.ValidationErrors
	if filter.Availability != "" && filter.Availability != "all" {
		errs.OneOf("availability", filter.Availability, availabilities, "Invalid availability")
	}
	if filter.MinRating < 0 || filter.MinRating > 5 {
		errs.Add("minRating", "Minimum rating must be between 0 and 5")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	availability := Availability(filter.Availability)
	if filter.Availability == "all" {
		availability = ""
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	users, total, err := s.repo.SearchUsers(ctx, SearchUsersParams{
		Query:        strings.TrimSpace(filter.Query),
		Availability: availability,
		MinRating:    filter.MinRating,
		Skill:        strings.TrimSpace(filter.Skill),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, err
	}

	profiles := make([]*PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}

	return &SearchResult{
		Users: profiles,
		Total: total,
		Page:  offset/limit + 1,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// GetProfile returns a user's profile as seen by viewerID; uuid.Nil is an anonymous viewer.
// Callers show anyone but the owner user.Public().
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID uuid.UUID) (*User, error) {
	return s.visibleUser(ctx, viewerID, userID)
}

// GetStats returns the directory statistics of a profile visible to viewerID
func (s *UserService) GetStats(ctx context.Context, viewerID, userID uuid.UUID) (*UserStats, error) {
	user, err := s.visibleUser(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return user.Stats(), nil
}

// Skills returns every skill offered or wanted on active public profiles
func (s *UserService) Skills(ctx context.Context) (*SkillCatalog, error) {
	offered, wanted, err := s.repo.ListSkills(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(offered)+len(wanted))
	all := make([]string, 0, len(offered)+len(wanted))
	for _, list := range [][]string{offered, wanted} {
		for _, skill := range list {
			if _, ok := seen[skill]; ok {
				continue
			}
			seen[skill] = struct{}{}
			all = append(all, skill)
		}
	}
	sort.Strings(all)

	return &SkillCatalog{Skills: all, SkillsOffered: offered, SkillsWanted: wanted}, nil
}

func (s *UserService) visibleUser(ctx context.Context, viewerID, userID uuid.UUID) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.VisibleTo(viewerID) {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile validates and applies profile edits for userID
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*User, error) {
	var errs validator.ValidationErrors

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if !validator.ValidateName(name) {
			errs.Add("name", "Name must be 2-100 characters")
		}
		params.Name = &name
	}
	if params.Bio != nil {
		bio := strings.TrimSpace(*params.Bio)
		errs.Length("bio", bio, 0, maxBioLength, "Bio cannot exceed 500 characters")
		params.Bio = &bio
	}
	if params.Location != nil {
		location := strings.TrimSpace(*params.Location)
		errs.Length("location", location, 0, maxLocationLength, "Location cannot exceed 100 characters")
		params.Location = &location
	}
	if params.SkillsOffered != nil {
		skills := validator.SanitizeList(*params.SkillsOffered, maxSkillLength)
		if len(skills) > maxSkillsPerList {
			errs.Add("skillsOffered", "Too many skills")
		}
		params.SkillsOffered = &skills
	}
	if params.SkillsWanted != nil {
		skills := validator.SanitizeList(*params.SkillsWanted, maxSkillLength)
		if len(skills) > maxSkillsPerList {
			errs.Add("skillsWanted", "Too many skills")
		}
		params.SkillsWanted = &skills
	}
	if params.Availability != nil {
		errs.OneOf("availability", string(*params.Availability), availabilities, "Invalid availability")
	}
	if params.ProfileVisibility != nil {
		errs.OneOf("profileVisibility", string(*params.ProfileVisibility), visibilities, "Profile visibility must be public or private")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	return s.repo.UpdateProfile(ctx, userID, params)
}

// UpdateAvatar stores a new avatar image and points the profile at it.
// The image type is sniffed from the content; the previous image is removed best-effort.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file io.Reader) (*User, error) {
	body, contentType, err := storage.SniffImage(file)
	if errors.Is(err, storage.ErrUnsupportedImage) {
		var errs validator.ValidationErrors
		errs.Add("avatar", "Avatar must be a PNG, JPEG, GIF or WebP image")
		return nil, errs
	}
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.storage.SaveFile(ctx, body, contentType)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		_ = s.storage.DeleteFile(ctx, url)
		return nil, err
	}

	if current.AvatarURL != "" && current.AvatarURL != url {
		_ = s.storage.DeleteFile(ctx, current.AvatarURL)
	}
	return user, nil
}

// SetDeviceToken registers the push token of the user's device; empty clears it
func (s *UserService) SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if len(token) > 4096 {
		var errs validator.ValidationErrors
		errs.Add("token", "Device token is too long")
		return errs
	}
	return s.repo.UpdateDeviceToken(ctx, userID, token)
}
