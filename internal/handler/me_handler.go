package handler

import (
	"net/http"

	"friendmap/internal/middleware"
	"friendmap/internal/service"
	"friendmap/internal/session"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	authSvc  *service.AuthService
	sessions *session.Manager
}

func NewMeHandler(authSvc *service.AuthService, sessions *session.Manager) *MeHandler {
	return &MeHandler{authSvc: authSvc, sessions: sessions}
}

type FCMTokenRequest struct {
	FCMToken string `json:"fcm_token" binding:"required"`
}

// Get returns the caller's profile and whether their session is live.
func (h *MeHandler) Get(c *gin.Context) {
	uid := middleware.GetUID(c)
	u, err := h.authSvc.Me(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"user": u, "session_active": false}
	if s, ok := h.sessions.Get(uid); ok {
		resp["session_active"] = true
		resp["position_loop_running"] = s.Running()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MeHandler) RegisterFCMToken(c *gin.Context) {
	var req FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "fcm_token required")
		return
	}
	if err := h.authSvc.SetFCMToken(c.Request.Context(), middleware.GetUID(c), req.FCMToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push token saved"})
}
