package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"friendmap/config"
	"friendmap/internal/auth"
	"friendmap/internal/changefeed"
	"friendmap/internal/models"
	"friendmap/internal/publisher"
	"friendmap/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]models.LiveLocation
}

func (m *memStore) Upsert(_ context.Context, loc *models.LiveLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[loc.FirebaseUID] = *loc
	return nil
}

func (m *memStore) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, uid)
	return nil
}

type oneFriend struct{}

func (oneFriend) MutualFriends(context.Context, string) (map[string]string, error) {
	return map[string]string{"u2": "Bob"}, nil
}

func (oneFriend) ResolveFriendLocations(context.Context, string) ([]models.FriendLocation, error) {
	return []models.FriendLocation{{UID: "u2", Name: "Bob", Latitude: 1, Longitude: 2}}, nil
}

var jwtCfg = &config.JWTConfig{
	AccessSecret: "this_is_a_test_secret_key_with_32_chars_minimum",
	AccessExpiry: time.Hour,
	Issuer:       "friendmap",
}

type mapServer struct {
	*httptest.Server
	store    *memStore
	hub      *Hub
	sessions *session.Manager
	feed     *changefeed.Feed
}

func newMapServer(t *testing.T) *mapServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ms := &mapServer{
		store: &memStore{rows: map[string]models.LiveLocation{}},
		hub:   NewHub(),
		feed:  changefeed.New(8),
	}
	ms.sessions = session.NewManager(ms.store, oneFriend{}, ms.feed, publisher.Options{AccuracyThresholdMeters: 150})
	r := gin.New()
	r.GET("/ws/map", UpgradeMapWS(jwtCfg, ms.sessions, ms.hub))
	ms.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		ms.Close()
		ms.sessions.CloseAll()
	})
	return ms
}

func dial(t *testing.T, srv *mapServer, uid string) *websocket.Conn {
	t.Helper()
	token, _, err := auth.GenerateAccessToken(jwtCfg, uid, "")
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/map?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatal(err)
		}
		var typ string
		_ = json.Unmarshal(msg["type"], &typ)
		if typ == want {
			return msg
		}
	}
}

func TestMapSocket(t *testing.T) {
	srv := newMapServer(t)
	store, hub := srv.store, srv.hub
	conn := dial(t, srv, "u1")

	msg := readType(t, conn, TypeFriends)
	var friends []models.FriendLocation
	if err := json.Unmarshal(msg["friends"], &friends); err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 || friends[0].Name != "Bob" {
		t.Errorf("friends = %+v", friends)
	}

	if err := conn.WriteJSON(ClientMessage{Type: TypeSample, Latitude: 10, Longitude: 20, AccuracyMeters: 5}); err != nil {
		t.Fatal(err)
	}
	readType(t, conn, TypeSelf)
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		_, ok := store.rows["u1"]
		store.mu.Unlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sample never published")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := conn.WriteJSON(ClientMessage{Type: TypeSample, Latitude: 100}); err != nil {
		t.Fatal(err)
	}
	errMsg := readType(t, conn, TypeError)
	if !strings.Contains(string(errMsg["code"]), "VALIDATION_ERROR") {
		t.Errorf("error message = %s", errMsg["code"])
	}

	if n := hub.ClientCount("u1"); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}
	hub.DisconnectUser("u1")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestMapSocketRequiresToken(t *testing.T) {
	srv := newMapServer(t)
	resp, err := http.Get(srv.URL + "/ws/map")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/map?token=forged"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("dial with forged token succeeded")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClosingLastSocketEndsSession(t *testing.T) {
	srv := newMapServer(t)

	var conns []*websocket.Conn
	for _, uid := range []string{"ua", "ub", "uc"} {
		conn := dial(t, srv, uid)
		readType(t, conn, TypeFriends)
		conns = append(conns, conn)
	}
	// A second tab for ua keeps its session alive when the first closes.
	extra := dial(t, srv, "ua")
	readType(t, extra, TypeFriends)

	if n := srv.sessions.Len(); n != 3 {
		t.Fatalf("sessions = %d, want 3", n)
	}
	for _, conn := range conns {
		conn.Close()
	}
	waitUntil(t, "ub and uc released", func() bool { return srv.sessions.Len() == 1 })
	if _, ok := srv.sessions.Get("ua"); !ok {
		t.Fatal("ua session closed while a socket is still attached")
	}

	extra.Close()
	waitUntil(t, "all sessions released", func() bool { return srv.sessions.Len() == 0 })
	for _, table := range []string{"live_locations", "location_shares"} {
		if n := srv.feed.SubscriberCount(table); n != 0 {
			t.Errorf("%s subscribers = %d, want 0", table, n)
		}
	}
	if n := srv.hub.ClientCount("ua"); n != 0 {
		t.Errorf("ua sockets = %d, want 0", n)
	}
}
