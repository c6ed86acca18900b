package handler

import (
	"net/http"
	"time"

	"friendmap/internal/middleware"
	"friendmap/internal/publisher"
	"friendmap/internal/session"
	"friendmap/internal/ws"
	apperrors "friendmap/pkg/errors"

	"github.com/gin-gonic/gin"
)

// LocationHandler is the HTTP side of the caller's own position stream. It
// feeds the same session loop the map socket does.
type LocationHandler struct {
	sessions *session.Manager
	sockets  *ws.Hub
}

func NewLocationHandler(sessions *session.Manager, sockets *ws.Hub) *LocationHandler {
	return &LocationHandler{sessions: sessions, sockets: sockets}
}

// UpdateLocationRequest carries either a fix or a position error kind
// (permission_denied, unavailable, timeout).
type UpdateLocationRequest struct {
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error"`
}

type GhostRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Update queues one reading on the caller's position loop. The write to the
// shared row happens asynchronously, so the response is 202.
func (h *LocationHandler) Update(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	reading, err := req.reading()
	if err != nil {
		respondError(c, err)
		return
	}

	uid := middleware.GetUID(c)
	sess, err := h.sessions.Open(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.sessions.Submit(c.Request.Context(), uid, reading); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "private": sess.Publisher.Private()})
}

func (r UpdateLocationRequest) reading() (publisher.Reading, error) {
	if r.Error != "" {
		streamErr := publisher.StreamError(r.Error)
		if streamErr == nil {
			return publisher.Reading{}, apperrors.New(apperrors.ErrCodeValidation, "unknown position error "+r.Error)
		}
		return publisher.Reading{Err: streamErr}, nil
	}
	if r.Latitude == nil || r.Longitude == nil {
		return publisher.Reading{}, apperrors.New(apperrors.ErrCodeValidation, "latitude and longitude required")
	}
	s := publisher.Sample{
		Lat:            *r.Latitude,
		Lng:            *r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		Timestamp:      r.Timestamp,
	}
	if err := s.Validate(); err != nil {
		return publisher.Reading{}, err
	}
	return publisher.Reading{Sample: &s}, nil
}

// Get returns what the caller's own map shows: position, trail, ghost mode
// and stream status.
func (h *LocationHandler) Get(c *gin.Context) {
	sess, ok := h.sessions.Get(middleware.GetUID(c))
	if !ok {
		respondError(c, apperrors.New(apperrors.ErrCodeNotFound, "no active session, sign in or open the map"))
		return
	}
	c.JSON(http.StatusOK, sess.Publisher.Snapshot())
}

// SetGhost toggles ghost mode. Going private deletes the shared row at once;
// going public republishes the latest accepted fix.
func (h *LocationHandler) SetGhost(c *gin.Context) {
	var req GhostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled required")
		return
	}
	uid := middleware.GetUID(c)
	sess, err := h.sessions.Open(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := sess.Publisher.SetPrivate(c.Request.Context(), *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	// Open map sockets show the toggle without waiting for the next sample.
	h.sockets.BroadcastToUser(uid, ws.SelfMessage{Type: ws.TypeSelf, Self: sess.Publisher.Snapshot()})
	c.JSON(http.StatusOK, gin.H{"private": sess.Publisher.Private()})
}
