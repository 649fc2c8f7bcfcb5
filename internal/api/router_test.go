package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/domain"
	"github.com/skillswap/backend/internal/ratelimit"
	"github.com/skillswap/backend/internal/repository"
	"github.com/skillswap/backend/internal/storage"
)

type testServer struct {
	t    *testing.T
	repo *repository.MemoryRepository
	h    http.Handler
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Fields  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	repo := repository.NewMemoryRepository()
	jwtManager := auth.NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	files, err := storage.NewLocalFileStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	authService := domain.NewAuthService(repo, jwtManager, auth.NewGoogleAuthVerifier(nil), ratelimit.NewMemoryLimiter(5, 15*time.Minute), zap.NewNop())
	userService := domain.NewUserService(repo, files)
	requestService := domain.NewRequestService(repo, repo, nil)

	router := NewRouter(RouterConfig{
		AuthHandler:    NewAuthHandler(authService, logger),
		UserHandler:    NewUserHandler(userService, logger),
		RequestHandler: NewRequestHandler(requestService, logger),
		HealthHandler:  NewHealthHandler(repo, "test", logger),
		JWTManager:     jwtManager,
		Users:          repo,
		CORSOrigins:    []string{"*"},
		UploadDir:      files.Dir(),
		Logger:         logger,
	})

	return &testServer{t: t, repo: repo, h: router.Setup()}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, envelope) {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

type session struct {
	token string
	user  domain.User
}

func (s *testServer) register(name, email string) session {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: name, Email: email, Password: "Passw0rd!"})
	require.Equal(s.t, http.StatusCreated, code, env.Error)

	var result struct {
		User        domain.User `json:"user"`
		AccessToken string      `json:"accessToken"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &result))
	return session{token: result.AccessToken, user: result.User}
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func createBody(to session) map[string]string {
	return map[string]string{
		"toUserId":     to.user.ID.String(),
		"offeredSkill": "Go",
		"wantedSkill":  "Guitar",
		"message":      "I can teach you Go in exchange for guitar lessons",
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")

	code, env := s.do(http.MethodPost, "/api/requests", ada.token, createBody(bob))
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decode[domain.RequestView](t, env)
	assert.Equal(t, domain.RequestStatusPending, created.Status)
	assert.False(t, created.IsIncoming)
	require.NotNil(t, created.ToUser)
	assert.Equal(t, "Bob", created.ToUser.Name)

	id := created.ID.String()

	// Bob sees it as incoming and pending.
	code, env = s.do(http.MethodGet, "/requests/pending", bob.token, nil)
	require.Equal(t, http.StatusOK, code)
	pending := decode[[]domain.RequestView](t, env)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsIncoming)

	// Only the recipient may accept.
	code, _ = s.do(http.MethodPut, "/api/requests/"+id+"/accept", ada.token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPut, "/api/requests/"+id+"/accept", bob.token, RespondRequest{ResponseMessage: "Deal"})
	require.Equal(t, http.StatusOK, code, env.Error)
	accepted := decode[domain.RequestView](t, env)
	assert.Equal(t, domain.RequestStatusAccepted, accepted.Status)
	assert.Equal(t, "Deal", accepted.ResponseMessage)
	assert.NotNil(t, accepted.RespondedAt)

	// A second answer is refused.
	code, _ = s.do(http.MethodPut, "/api/requests/"+id+"/reject", bob.token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPut, "/api/requests/"+id+"/complete", ada.token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, domain.RequestStatusCompleted, decode[domain.RequestView](t, env).Status)

	code, env = s.do(http.MethodPost, "/api/requests/"+id+"/rate", ada.token, RateRequest{Rating: 5, Feedback: "Great session"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = s.do(http.MethodPost, "/api/requests/"+id+"/rate", ada.token, RateRequest{Rating: 4})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/users/"+bob.user.ID.String(), ada.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5.0, decode[domain.User](t, env).Rating)

	// Completed requests cannot be cancelled.
	code, _ = s.do(http.MethodDelete, "/api/requests/"+id, ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateRequestErrors(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")

	code, env := s.do(http.MethodPost, "/api/requests", ada.token, map[string]string{"toUserId": bob.user.ID.String()})
	require.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.NotEmpty(t, env.Error.Fields)

	code, _ = s.do(http.MethodPost, "/api/requests", ada.token, createBody(ada))
	assert.Equal(t, http.StatusBadRequest, code)

	body := createBody(bob)
	body["toUserId"] = "00000000-0000-0000-0000-000000000001"
	code, _ = s.do(http.MethodPost, "/api/requests", ada.token, body)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/requests", ada.token, createBody(bob))
	require.Equal(t, http.StatusCreated, code)

	// The mirrored trade from Bob is a duplicate while Ada's is pending.
	mirror := map[string]string{
		"toUserId":     ada.user.ID.String(),
		"offeredSkill": "Guitar",
		"wantedSkill":  "Go",
		"message":      "Guitar lessons for Go lessons?",
	}
	code, env = s.do(http.MethodPost, "/api/requests", bob.token, mirror)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.ErrDuplicatePending.Error(), env.Error.Message)

	code, _ = s.do(http.MethodPost, "/api/requests", "", createBody(bob))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequestVisibilityAndCancel(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")
	eve := s.register("Eve", "eve@example.com")

	_, env := s.do(http.MethodPost, "/api/requests", ada.token, createBody(bob))
	id := decode[domain.RequestView](t, env).ID.String()

	code, _ := s.do(http.MethodGet, "/api/requests/"+id, eve.token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/requests/not-a-uuid", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodDelete, "/api/requests/"+id, bob.token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodDelete, "/api/requests/"+id, ada.token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/requests/"+id, ada.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListRequestsFilters(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")

	s.do(http.MethodPost, "/api/requests", ada.token, createBody(bob))

	code, env := s.do(http.MethodGet, "/api/requests?direction=outgoing", ada.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]domain.RequestView](t, env), 1)

	code, env = s.do(http.MethodGet, "/api/requests?direction=incoming", ada.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]domain.RequestView](t, env))

	code, _ = s.do(http.MethodGet, "/api/requests?status=bogus", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.register("Ada", "ada@example.com")

	code, _ := s.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: "Ada", Email: "ADA@example.com", Password: "Passw0rd!"})
	assert.Equal(t, http.StatusConflict, code)

	code, env := s.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: "A", Email: "nope", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, env.Error.Fields, 3)

	code, env = s.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "Passw0rd!"})
	require.Equal(t, http.StatusOK, code)
	tokens := decode[domain.AuthResult](t, env)
	assert.NotEmpty(t, tokens.RefreshToken)

	code, env = s.do(http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	refreshed := decode[domain.AuthResult](t, env)

	code, env = s.do(http.MethodGet, "/me", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada@example.com", decode[domain.User](t, env).Email)

	code, _ = s.do(http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: tokens.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/auth/google", "", GoogleLoginRequest{IDToken: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)
	s.register("Ada", "ada@example.com")

	for i := 0; i < 5; i++ {
		code, _ := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "Wr0ngpass"})
		require.Equal(t, http.StatusUnauthorized, code)
	}

	code, _ := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "Passw0rd!"})
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestUserDirectory(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")

	code, env := s.do(http.MethodPut, "/api/users/me", bob.token, map[string]interface{}{
		"skillsOffered": []string{"Guitar", " guitar ", "Piano"},
		"location":      "Lisbon",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, []string{"Guitar", "Piano"}, decode[domain.User](t, env).SkillsOffered)

	code, env = s.do(http.MethodGet, "/api/users?skill=guitar", ada.token, nil)
	require.Equal(t, http.StatusOK, code)
	result := decode[domain.SearchResult](t, env)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Pages)

	code, _ = s.do(http.MethodGet, "/api/users?minRating=abc", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPut, "/api/users/me", bob.token, map[string]string{"profileVisibility": "private"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/users/"+bob.user.ID.String(), ada.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/api/users/"+bob.user.ID.String(), bob.token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPut, "/api/me/device-token", bob.token, DeviceTokenRequest{Token: "fcm-token"})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestPublicProfilesHideContactDetails(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")
	code, _ := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "bob@example.com", Password: "Passw0rd!"})
	require.Equal(t, http.StatusOK, code)

	profile := "/api/users/" + bob.user.ID.String()
	for name, token := range map[string]string{"other user": ada.token, "anonymous": ""} {
		t.Run(name, func(t *testing.T) {
			code, env := s.do(http.MethodGet, profile, token, nil)
			require.Equal(t, http.StatusOK, code, env.Error)
			fields := decode[map[string]interface{}](t, env)
			assert.Equal(t, "Bob", fields["name"])
			assert.NotContains(t, fields, "email")
			assert.NotContains(t, fields, "lastLogin")
			assert.NotContains(t, string(env.Data), "bob@example.com")

			code, env = s.do(http.MethodGet, "/api/users", token, nil)
			require.Equal(t, http.StatusOK, code, env.Error)
			assert.NotContains(t, string(env.Data), "@example.com")
		})
	}

	code, env := s.do(http.MethodGet, profile, bob.token, nil)
	require.Equal(t, http.StatusOK, code)
	own := decode[map[string]interface{}](t, env)
	assert.Equal(t, "bob@example.com", own["email"])
	assert.Contains(t, own, "lastLogin")

	code, _ = s.do(http.MethodGet, profile, "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPut, "/api/users/me", bob.token, map[string]string{"profileVisibility": "private"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, profile, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, profile+"/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPut, "/api/users/me", "", map[string]string{"bio": "hi"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSkillCatalogAndStats(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	bob := s.register("Bob", "bob@example.com")
	carol := s.register("Carol", "carol@example.com")

	update := func(who session, body map[string]interface{}) {
		code, env := s.do(http.MethodPut, "/api/users/me", who.token, body)
		require.Equal(t, http.StatusOK, code, env.Error)
	}
	update(ada, map[string]interface{}{"skillsOffered": []string{"Go", "Chess"}, "skillsWanted": []string{"Guitar"}})
	update(bob, map[string]interface{}{"skillsOffered": []string{"Guitar"}, "skillsWanted": []string{"Go", "Baking"}})
	update(carol, map[string]interface{}{"skillsOffered": []string{"Secret"}, "profileVisibility": "private"})

	code, env := s.do(http.MethodGet, "/api/users/skills", "", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	catalog := decode[domain.SkillCatalog](t, env)
	assert.Equal(t, []string{"Baking", "Chess", "Go", "Guitar"}, catalog.Skills)
	assert.Equal(t, []string{"Chess", "Go", "Guitar"}, catalog.SkillsOffered)
	assert.Equal(t, []string{"Baking", "Go", "Guitar"}, catalog.SkillsWanted)

	code, env = s.do(http.MethodGet, "/api/users/"+ada.user.ID.String()+"/stats", "", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	stats := decode[struct {
		User domain.UserStats `json:"user"`
	}](t, env).User
	assert.Equal(t, "Ada", stats.Name)
	assert.Equal(t, 2, stats.SkillsOfferedCount)
	assert.Equal(t, 1, stats.SkillsWantedCount)
	assert.Zero(t, stats.RatingCount)
	assert.False(t, stats.MemberSince.IsZero())

	code, _ = s.do(http.MethodGet, "/api/users/"+carol.user.ID.String()+"/stats", carol.token, nil)
	assert.Equal(t, http.StatusOK, code)

	require.NoError(t, s.repo.SetUserActive(bob.user.ID, false))
	code, _ = s.do(http.MethodGet, "/api/users/"+bob.user.ID.String()+"/stats", ada.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, env = s.do(http.MethodGet, "/api/users/skills", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"Chess", "Go", "Guitar"}, decode[domain.SkillCatalog](t, env).Skills)
}

func TestUpdateAvatar(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")

	upload := func(filename, contentType, content string) (int, envelope) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/users/me/avatar", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+ada.token)
		return s.serve(req)
	}

	// The declared type and name do not matter, the bytes do.
	code, env := upload("me.html", "text/html", "\x89PNG\r\n\x1a\nimage-data")
	require.Equal(t, http.StatusOK, code, env.Error)
	avatar := decode[domain.User](t, env).AvatarURL
	require.True(t, strings.HasPrefix(avatar, "http://localhost/uploads/"), avatar)
	assert.True(t, strings.HasSuffix(avatar, ".png"), avatar)

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(avatar, "http://localhost"), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	code, env = upload("x.html", "image/png", "<html><script>alert(document.cookie)</script></html>")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	code, _ = upload("doc.pdf", "application/pdf", "%PDF-1.7")
	assert.Equal(t, http.StatusBadRequest, code)

	me, err := s.repo.GetUserByID(context.Background(), ada.user.ID)
	require.NoError(t, err)
	assert.Equal(t, avatar, me.AvatarURL)
}

func TestDeactivatedUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	ada := s.register("Ada", "ada@example.com")
	require.NoError(t, s.repo.SetUserActive(ada.user.ID, false))

	code, _ := s.do(http.MethodGet, "/api/me", ada.token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		code, env := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, code, path)
		assert.True(t, env.Success, path)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return assert.AnError }

func TestReadyReportsStoreFailure(t *testing.T) {
	h := NewHealthHandler(failingPinger{}, "test", zap.NewNop())
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
