package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skillswap/backend/internal/domain"
	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/pkg/response"
	"github.com/skillswap/backend/pkg/validator"
	"go.uber.org/zap"
)

const maxAvatarSize = 5 << 20

// UserHandler serves the user directory and profile edits
type UserHandler struct {
	userService *domain.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *domain.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// Search lists public profiles: GET /users?q=&availability=&minRating=&skill=&page=&limit=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.SearchFilter{
		Query:        q.Get("q"),
		Availability: q.Get("availability"),
		Skill:        q.Get("skill"),
		Page:         queryInt(r, "page"),
		Limit:        queryInt(r, "limit"),
	}
	if raw := q.Get("minRating"); raw != "" {
		minRating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			var errs validator.ValidationErrors
			errs.Add("minRating", "Minimum rating must be a number")
			response.ValidationFailed(w, errs)
			return
		}
		filter.MinRating = minRating
	}

	result, err := h.userService.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to search users")
		return
	}

	response.OK(w, result)
}

// Get returns one profile. Only the owner sees email and last login.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	// uuid.Nil when anonymous
	viewerID, _ := middleware.GetUserID(r.Context())
	user, err := h.userService.GetProfile(r.Context(), viewerID, userID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get user")
		return
	}

	if user.ID == viewerID {
		response.OK(w, user)
		return
	}
	response.OK(w, user.Public())
}

// Skills lists every skill on the public directory
func (h *UserHandler) Skills(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.userService.Skills(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list skills")
		return
	}

	response.OK(w, catalog)
}

// Stats returns a profile's counters: GET /users/{id}/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	viewerID, _ := middleware.GetUserID(r.Context())
	stats, err := h.userService.GetStats(r.Context(), viewerID, userID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get user stats")
		return
	}

	response.OK(w, map[string]interface{}{"user": stats})
}

// UpdateMe edits the caller's profile
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.UpdateProfileParams
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update profile")
		return
	}

	response.Message(w, http.StatusOK, "Profile updated successfully", user)
}

// UpdateAvatar accepts a multipart "avatar" image
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize+1<<10)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Avatar must be 5MB or smaller")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		response.BadRequest(w, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Avatar must be 5MB or smaller")
		return
	}

	user, err := h.userService.UpdateAvatar(r.Context(), userID, file)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update avatar")
		return
	}

	response.Message(w, http.StatusOK, "Avatar updated successfully", user)
}

// DeviceTokenRequest registers the caller's push token
type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// SetDeviceToken stores the caller's FCM token; an empty token disables push
func (h *UserHandler) SetDeviceToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req DeviceTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.SetDeviceToken(r.Context(), userID, req.Token); err != nil {
		writeError(w, r, h.logger, err, "failed to update device token")
		return
	}

	response.NoContent(w)
}
