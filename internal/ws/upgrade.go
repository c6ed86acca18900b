package ws

import (
	"net/http"
	"time"

	"friendmap/config"
	"friendmap/internal/auth"
	"friendmap/internal/models"
	"friendmap/internal/session"
	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pingPeriod     = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UpgradeMapWS serves the live map socket. The token query parameter carries
// the access token. The server pushes a friends snapshot on connect and on
// every change; the client sends samples, position errors and ghost toggles.
// Each socket holds a reference on the user's session.
func UpgradeMapWS(cfg *config.JWTConfig, sessions *session.Manager, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required", "code": apperrors.ErrCodeUnauthorized})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": apperrors.ErrCodeUnauthorized})
			return
		}
		sess, release, err := sessions.Acquire(c.Request.Context(), claims.UID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": apperrors.MessageOf(err), "code": apperrors.CodeOf(err)})
			return
		}
		// Runs last: the session goes when its last socket does.
		defer release()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := NewClient(claims.UID)
		hub.Register(client)
		defer client.Close()

		stopWatch := sess.View.Watch(func(list []models.FriendLocation) {
			client.PushJSON(FriendsMessage{Type: TypeFriends, Friends: list})
		})
		defer stopWatch()

		go writePump(client, conn)
		readPump(c, conn, client, sess, sessions)
	}
}

// writePump copies messages from client.Send to the connection and closes it
// when Send is closed.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(c *gin.Context, conn *websocket.Conn, client *Client, sess *session.Session, sub Submitter) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("map socket closed", "uid", client.UID, "error", err)
			}
			return
		}
		if err := handleClientMessage(c.Request.Context(), raw, sess, sub); err != nil {
			client.PushJSON(errorMessage(err))
			continue
		}
		client.PushJSON(SelfMessage{Type: TypeSelf, Self: sess.Publisher.Snapshot()})
	}
}
