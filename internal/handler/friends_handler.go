package handler

import (
	"net/http"
	"time"

	"friendmap/internal/middleware"
	"friendmap/internal/models"
	"friendmap/internal/publisher"
	"friendmap/internal/service"
	"friendmap/internal/session"
	"friendmap/pkg/location"
	"friendmap/pkg/proximity"

	"github.com/gin-gonic/gin"
)

// FriendsHandler serves the friends-map list for clients that poll instead
// of holding a socket open.
type FriendsHandler struct {
	svc      *service.ConnectionService
	sessions *session.Manager
	radiusKm float64
	now      func() time.Time
}

func NewFriendsHandler(svc *service.ConnectionService, sessions *session.Manager, nearbyRadiusKm float64) *FriendsHandler {
	return &FriendsHandler{svc: svc, sessions: sessions, radiusKm: nearbyRadiusKm, now: time.Now}
}

// FriendView is a friend's position as the caller sees it. Distance fields
// are set only when the caller has a current fix.
type FriendView struct {
	models.FriendLocation
	LastSeen   string   `json:"last_seen"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Distance   string   `json:"distance,omitempty"`
	Proximity  string   `json:"proximity,omitempty"`
}

// Locations lists mutual friends with a published position. A live session
// answers from its view; otherwise the rows are resolved directly.
func (h *FriendsHandler) Locations(c *gin.Context) {
	uid := middleware.GetUID(c)
	var (
		friends []models.FriendLocation
		self    *publisher.Sample
	)
	if sess, ok := h.sessions.Get(uid); ok {
		friends = sess.View.Snapshot()
		self = sess.Publisher.Current()
	} else {
		var err error
		friends, err = h.svc.ResolveFriendLocations(c.Request.Context(), uid)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	now := h.now()
	out := make([]FriendView, 0, len(friends))
	for _, f := range friends {
		v := FriendView{FriendLocation: f, LastSeen: location.TimeAgo(f.UpdatedAt, now)}
		if self != nil {
			km := location.HaversineKm(self.Lat, self.Lng, f.Latitude, f.Longitude)
			v.DistanceKm = &km
			v.Distance = location.FormatDistance(km)
			v.Proximity = proximity.Label(km, h.radiusKm)
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"friends": out})
}
