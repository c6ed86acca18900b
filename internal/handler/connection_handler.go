package handler

import (
	"net/http"

	"friendmap/internal/middleware"
	"friendmap/internal/service"

	"github.com/gin-gonic/gin"
)

type ConnectionHandler struct {
	svc *service.ConnectionService
}

func NewConnectionHandler(svc *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{svc: svc}
}

type ConnectionRequest struct {
	Email string `json:"email" binding:"required"`
}

// Create asks the user with the given email to share with the caller.
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email required")
		return
	}
	link, err := h.svc.SendRequest(c.Request.Context(), middleware.GetUID(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.svc.ListConnections(c.Request.Context(), middleware.GetUID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conns)
}

func (h *ConnectionHandler) Approve(c *gin.Context) {
	link, err := h.svc.Approve(c.Request.Context(), middleware.GetUID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Remove rejects, cancels or disconnects depending on the link and the caller.
func (h *ConnectionHandler) Remove(c *gin.Context) {
	kind, err := h.svc.Remove(c.Request.Context(), middleware.GetUID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": kind})
}
