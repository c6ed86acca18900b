package handler

import (
	"net/http"

	"friendmap/config"
	"friendmap/internal/identity"
	"friendmap/internal/service"
	"friendmap/internal/session"
	apperrors "friendmap/pkg/errors"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "friendmap_oauth_state"

// GoogleOAuthHandler runs the browser sign-in flow when Google is the
// identity provider: redirect to consent, then exchange the code and verify
// the returned ID token.
type GoogleOAuthHandler struct {
	cfg      *config.Config
	verifier identity.Verifier
	authSvc  *service.AuthService
	sessions *session.Manager
}

func NewGoogleOAuthHandler(cfg *config.Config, verifier identity.Verifier, authSvc *service.AuthService, sessions *session.Manager) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{cfg: cfg, verifier: verifier, authSvc: authSvc, sessions: sessions}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

func (h *GoogleOAuthHandler) configured() bool {
	return h.cfg.OAuth.GoogleClientID != "" && h.verifier != nil
}

// Redirect sends the user to the Google consent screen.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured", "code": apperrors.ErrCodeUnavailable})
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.IsProduction(), true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state))
}

// Callback exchanges the code, verifies the ID token, signs the user in and
// returns the access token.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured", "code": apperrors.ErrCodeUnavailable})
		return
	}
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		badRequest(c, "invalid oauth state")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.cfg.IsProduction(), true)

	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing code")
		return
	}
	ctx := c.Request.Context()
	tok, err := h.OAuth2Config().Exchange(ctx, code)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "code exchange failed"))
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		respondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "provider returned no id_token"))
		return
	}
	id, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.authSvc.SignIn(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	completeSignIn(c, h.sessions, res)
}
