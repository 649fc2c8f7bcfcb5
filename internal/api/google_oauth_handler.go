package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "skillswap_oauth_state"

// GoogleOAuthHandler handles the browser-based Google sign-in flow.
// The app opens /auth/google/login and receives tokens on AppCallbackURL.
type GoogleOAuthHandler struct {
	config      *oauth2.Config
	authService *domain.AuthService
	callbackURL string
	logger      *zap.Logger
}

// NewGoogleOAuthHandler creates a new Google OAuth handler
func NewGoogleOAuthHandler(cfg config.GoogleConfig, authService *domain.AuthService, logger *zap.Logger) *GoogleOAuthHandler {
	clientID := ""
	if len(cfg.ClientIDs) > 0 {
		clientID = cfg.ClientIDs[0]
	}

	return &GoogleOAuthHandler{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		authService: authService,
		callbackURL: cfg.AppCallbackURL,
		logger:      logger,
	}
}

// Login redirects to Google's consent screen
func (h *GoogleOAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback exchanges the authorization code and hands the tokens to the app
func (h *GoogleOAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		h.redirectWithError(w, r, "Invalid sign-in state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if reason := query.Get("error"); reason != "" {
		h.redirectWithError(w, r, reason)
		return
	}
	code := query.Get("code")
	if code == "" {
		h.redirectWithError(w, r, "Authorization code missing")
		return
	}

	token, err := h.config.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("Failed to exchange Google authorization code", zap.Error(err))
		h.redirectWithError(w, r, "Failed to authenticate with Google")
		return
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		h.redirectWithError(w, r, "Google did not return an ID token")
		return
	}

	result, err := h.authService.GoogleLogin(ctx, idToken)
	if err != nil {
		h.logger.Warn("Google sign-in failed", zap.Error(err))
		h.redirectWithError(w, r, "Google sign-in failed")
		return
	}

	h.redirect(w, r, url.Values{
		"access_token":  {result.AccessToken},
		"refresh_token": {result.RefreshToken},
		"user_id":       {result.User.ID.String()},
	})
}

func (h *GoogleOAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	h.redirect(w, r, url.Values{"error": {message}})
}

func (h *GoogleOAuthHandler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target, err := url.Parse(h.callbackURL)
	if err != nil {
		h.logger.Error("Invalid app callback URL", zap.String("url", h.callbackURL), zap.Error(err))
		http.Error(w, "sign-in callback misconfigured", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	for k, v := range params {
		q[k] = v
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}
