package handler

import (
	"net/http"

	"friendmap/internal/middleware"
	"friendmap/internal/service"
	"friendmap/internal/session"
	"friendmap/internal/ws"
	"friendmap/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc      *service.AuthService
	sessions *session.Manager
	sockets  *ws.Hub
}

func NewAuthHandler(svc *service.AuthService, sessions *session.Manager, sockets *ws.Hub) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, sockets: sockets}
}

type TokenRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Token exchanges a provider ID token for an access token and opens the
// user's session.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id_token required")
		return
	}
	res, err := h.svc.SignInWithIDToken(c.Request.Context(), req.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	completeSignIn(c, h.sessions, res)
}

// completeSignIn opens the session and writes the sign-in response. Shared
// with the OAuth callback.
func completeSignIn(c *gin.Context, sessions *session.Manager, res *service.SignInResult) {
	if _, err := sessions.Open(c.Request.Context(), res.User.FirebaseUID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Logout closes the session and every map socket the user has open. The
// published location row is left as it is.
func (h *AuthHandler) Logout(c *gin.Context) {
	uid := middleware.GetUID(c)
	h.sessions.Close(uid)
	h.sockets.DisconnectUser(uid)
	logger.Info("user signed out", "uid", uid)
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}
