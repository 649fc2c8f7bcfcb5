package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skillswap/backend/internal/domain"
)

var (
	_ domain.UserRepository    = (*MemoryRepository)(nil)
	_ domain.RequestRepository = (*MemoryRepository)(nil)
)

type memoryUser struct {
	user         domain.User
	passwordHash string
}

// MemoryRepository keeps users and requests in process memory. Every method
// runs under one lock, so conditional writes are atomic.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*memoryUser
	requests map[uuid.UUID]*memoryRequest
	pending  map[string]uuid.UUID
	now      func() time.Time
}

type memoryRequest struct {
	req     domain.Request
	swapKey string
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[uuid.UUID]*memoryUser),
		requests: make(map[uuid.UUID]*memoryRequest),
		pending:  make(map[string]uuid.UUID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// SetUserActive flips a user's active flag
func (m *MemoryRepository) SetUserActive(userID uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.user.IsActive = active
	return nil
}

func (m *MemoryRepository) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(params.Email)
	for _, u := range m.users {
		if u.user.Email == email {
			return nil, domain.ErrUserAlreadyExists
		}
		if params.GoogleID != nil && u.user.GoogleID != nil && *u.user.GoogleID == *params.GoogleID {
			return nil, domain.ErrUserAlreadyExists
		}
	}

	now := m.now()
	u := &memoryUser{
		user: domain.User{
			ID:                uuid.New(),
			Name:              params.Name,
			Email:             email,
			GoogleID:          cloneString(params.GoogleID),
			AvatarURL:         params.AvatarURL,
			SkillsOffered:     []string{},
			SkillsWanted:      []string{},
			Availability:      domain.AvailabilityFlexible,
			ProfileVisibility: domain.VisibilityPublic,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
	if params.PasswordHash != nil {
		u.passwordHash = *params.PasswordHash
	}
	m.users[u.user.ID] = u
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u := m.findByEmail(email)
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.user.GoogleID != nil && *u.user.GoogleID == googleID {
			return cloneUser(&u.user), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MemoryRepository) GetUserWithPassword(ctx context.Context, email string) (*domain.User, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u := m.findByEmail(email)
	if u == nil {
		return nil, "", domain.ErrUserNotFound
	}
	return cloneUser(&u.user), u.passwordHash, nil
}

func (m *MemoryRepository) GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[uuid.UUID]*domain.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = cloneUser(&u.user).Summary()
		}
	}
	return out, nil
}

func (m *MemoryRepository) LinkGoogleAccount(ctx context.Context, userID uuid.UUID, googleID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if id != userID && u.user.GoogleID != nil && *u.user.GoogleID == googleID {
			return nil, domain.ErrUserAlreadyExists
		}
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.user.GoogleID = &googleID
	u.user.UpdatedAt = m.now()
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params domain.UpdateProfileParams) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if params.Name != nil {
		u.user.Name = *params.Name
	}
	if params.Bio != nil {
		u.user.Bio = *params.Bio
	}
	if params.Location != nil {
		u.user.Location = *params.Location
	}
	if params.SkillsOffered != nil {
		u.user.SkillsOffered = append([]string{}, *params.SkillsOffered...)
	}
	if params.SkillsWanted != nil {
		u.user.SkillsWanted = append([]string{}, *params.SkillsWanted...)
	}
	if params.Availability != nil {
		u.user.Availability = *params.Availability
	}
	if params.ProfileVisibility != nil {
		u.user.ProfileVisibility = *params.ProfileVisibility
	}
	u.user.UpdatedAt = m.now()
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.user.AvatarURL = avatarURL
	u.user.UpdatedAt = m.now()
	return cloneUser(&u.user), nil
}

func (m *MemoryRepository) UpdateDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if token == "" {
		u.user.DeviceToken = nil
	} else {
		u.user.DeviceToken = &token
	}
	return nil
}

func (m *MemoryRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		u.user.LastLoginAt = &at
	}
	return nil
}

func (m *MemoryRepository) SearchUsers(ctx context.Context, params domain.SearchUsersParams) ([]*domain.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := strings.ToLower(params.Query)
	skill := strings.ToLower(params.Skill)

	matched := make([]*domain.User, 0)
	for _, u := range m.users {
		usr := &u.user
		if !usr.IsActive || usr.ProfileVisibility != domain.VisibilityPublic {
			continue
		}
		if params.Availability != "" && usr.Availability != params.Availability {
			continue
		}
		if usr.Rating < params.MinRating {
			continue
		}
		if skill != "" && !anyContains(usr.SkillsOffered, skill) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(usr.Name), query) &&
			!strings.Contains(strings.ToLower(usr.Location), query) &&
			!anyContains(usr.SkillsOffered, query) &&
			!anyContains(usr.SkillsWanted, query) {
			continue
		}
		matched = append(matched, cloneUser(usr))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Rating != matched[j].Rating {
			return matched[i].Rating > matched[j].Rating
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, params.Offset, params.Limit), len(matched), nil
}

func (m *MemoryRepository) ListSkills(ctx context.Context) ([]string, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offered := map[string]struct{}{}
	wanted := map[string]struct{}{}
	for _, u := range m.users {
		if !u.user.IsActive || u.user.ProfileVisibility != domain.VisibilityPublic {
			continue
		}
		for _, s := range u.user.SkillsOffered {
			offered[s] = struct{}{}
		}
		for _, s := range u.user.SkillsWanted {
			wanted[s] = struct{}{}
		}
	}
	return sortedKeys(offered), sortedKeys(wanted), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryRepository) CreateRequest(ctx context.Context, params domain.CreateRequestParams) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same rule as the swap_requests_not_self check constraint
	if params.FromUserID == params.ToUserID {
		return nil, domain.ErrSelfRequest
	}
	if _, ok := m.users[params.FromUserID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if _, ok := m.users[params.ToUserID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if _, ok := m.pending[params.SwapKey]; ok {
		return nil, domain.ErrDuplicatePending
	}

	r := &memoryRequest{
		req: domain.Request{
			ID:            uuid.New(),
			FromUserID:    params.FromUserID,
			ToUserID:      params.ToUserID,
			OfferedSkill:  params.OfferedSkill,
			WantedSkill:   params.WantedSkill,
			Message:       params.Message,
			Status:        domain.RequestStatusPending,
			PreferredTime: params.PreferredTime,
			Duration:      params.Duration,
			SessionType:   params.SessionType,
			Notes:         params.Notes,
			CreatedAt:     params.CreatedAt,
			UpdatedAt:     params.CreatedAt,
		},
		swapKey: params.SwapKey,
	}
	m.requests[r.req.ID] = r
	m.pending[r.swapKey] = r.req.ID
	return cloneRequest(&r.req), nil
}

func (m *MemoryRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return cloneRequest(&r.req), nil
}

func (m *MemoryRepository) HasPendingSwap(ctx context.Context, swapKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.pending[swapKey]
	return ok, nil
}

func (m *MemoryRepository) TransitionRequest(ctx context.Context, params domain.TransitionParams) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[params.RequestID]
	if !ok || r.req.Status != params.From {
		return nil, domain.ErrInvalidState
	}

	r.req.Status = params.To
	if params.ResponseMessage != nil {
		r.req.ResponseMessage = *params.ResponseMessage
	}
	if params.RespondedAt != nil {
		t := *params.RespondedAt
		r.req.RespondedAt = &t
	}
	if params.CompletedAt != nil {
		t := *params.CompletedAt
		r.req.CompletedAt = &t
	}
	r.req.UpdatedAt = params.UpdatedAt
	if params.From == domain.RequestStatusPending {
		delete(m.pending, r.swapKey)
	}
	return cloneRequest(&r.req), nil
}

func (m *MemoryRepository) DeleteRequest(ctx context.Context, id, fromUserID uuid.UUID, expected domain.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok || r.req.FromUserID != fromUserID || r.req.Status != expected {
		return domain.ErrInvalidState
	}
	if r.req.Status == domain.RequestStatusPending {
		delete(m.pending, r.swapKey)
	}
	delete(m.requests, id)
	return nil
}

func (m *MemoryRepository) RecordRating(ctx context.Context, params domain.RecordRatingParams) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[params.RequestID]
	if !ok || r.req.Status != domain.RequestStatusCompleted {
		return nil, domain.ErrInvalidState
	}

	score := params.Score
	if params.ByFromUser {
		if r.req.Rating.FromUserRating != nil {
			return nil, domain.ErrAlreadyRated
		}
		r.req.Rating.FromUserRating = &score
		r.req.Feedback.FromUserFeedback = params.Feedback
	} else {
		if r.req.Rating.ToUserRating != nil {
			return nil, domain.ErrAlreadyRated
		}
		r.req.Rating.ToUserRating = &score
		r.req.Feedback.ToUserFeedback = params.Feedback
	}
	r.req.UpdatedAt = params.UpdatedAt

	if u, ok := m.users[params.RatedUserID]; ok {
		u.user.Rating = domain.NextRating(u.user.Rating, u.user.RatingCount, score)
		u.user.RatingCount++
		u.user.UpdatedAt = params.UpdatedAt
	}
	return cloneRequest(&r.req), nil
}

func (m *MemoryRepository) ListRequests(ctx context.Context, params domain.ListRequestsParams) ([]*domain.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.Request, 0)
	for _, r := range m.requests {
		req := &r.req
		switch params.Direction {
		case domain.DirectionIncoming:
			if req.ToUserID != params.UserID {
				continue
			}
		case domain.DirectionOutgoing:
			if req.FromUserID != params.UserID {
				continue
			}
		default:
			if !req.IsParty(params.UserID) {
				continue
			}
		}
		if params.Status != "" && req.Status != params.Status {
			continue
		}
		matched = append(matched, cloneRequest(req))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})
	return window(matched, params.Offset, params.Limit), nil
}

func (m *MemoryRepository) findByEmail(email string) *memoryUser {
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.user.Email == email {
			return u
		}
	}
	return nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.GoogleID = cloneString(u.GoogleID)
	c.DeviceToken = cloneString(u.DeviceToken)
	c.SkillsOffered = append([]string{}, u.SkillsOffered...)
	c.SkillsWanted = append([]string{}, u.SkillsWanted...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func cloneRequest(r *domain.Request) *domain.Request {
	c := *r
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		c.RespondedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Rating.FromUserRating != nil {
		v := *r.Rating.FromUserRating
		c.Rating.FromUserRating = &v
	}
	if r.Rating.ToUserRating != nil {
		v := *r.Rating.ToUserRating
		c.Rating.ToUserRating = &v
	}
	return &c
}
