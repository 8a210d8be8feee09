package server

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/auth"
	"github.com/vhp90/esports-team-finder/internal/chat"
	"github.com/vhp90/esports-team-finder/internal/config"
	"github.com/vhp90/esports-team-finder/internal/model"
	"github.com/vhp90/esports-team-finder/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.DBPath = t.TempDir()
	cfg.StaticDir = ""

	log := zap.NewNop()
	st, err := store.Open(cfg.DBPath, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens := auth.NewTokenManager(cfg.JWTSecret, "esports-team-finder", cfg.TokenTTL(), cfg.RefreshTTL())
	registry := chat.NewRegistry()
	fanout := chat.NewFanout(registry, log)

	return New(cfg, log, st, tokens, registry, fanout)
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

// registerUser creates an account and returns its token and user id.
func registerUser(t *testing.T, s *Server, username string, games []string, skillLevel string) (string, string) {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username":    username,
		"email":       username + "@example.com",
		"password":    "hunter22",
		"games":       games,
		"skill_level": skillLevel,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)

	me := doRequest(t, s, http.MethodGet, "/api/users/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, me.Code)
	var profile model.UserProfile
	decodeBody(t, me, &profile)
	return resp.AccessToken, profile.ID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "alice", []string{"valorant"}, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "alice", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "different@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username already taken")

	rec = doRequest(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "alice", nil, "gold")

	wrongPassword := doRequest(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	unknownEmail := doRequest(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "hunter22",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// Unknown email and wrong password are indistinguishable.
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRefreshTokenFlow(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "alice", nil, "gold")

	login := doRequest(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, login.Code)

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, login, &tokens)
	require.NotEmpty(t, tokens.RefreshToken)

	// The refresh token is presented as the bearer credential.
	refreshed := doRequest(t, s, http.MethodPost, "/api/auth/refresh", tokens.RefreshToken, nil)
	require.Equal(t, http.StatusOK, refreshed.Code, refreshed.Body.String())

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	decodeBody(t, refreshed, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	me := doRequest(t, s, http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	s := newTestServer(t)
	accessToken, _ := registerUser(t, s, "alice", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/auth/refresh", accessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid refresh token")

	missing := doRequest(t, s, http.MethodPost, "/api/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, missing.Code)
}

func TestRefreshTokenCannotAuthenticateRequests(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "alice", nil, "gold")

	login := doRequest(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, login.Code)
	var tokens struct {
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, login, &tokens)

	rec := doRequest(t, s, http.MethodGet, "/api/users/me", tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/users/me", "/api/teams", "/api/chats", "/api/notifications/me"} {
		rec := doRequest(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/users/me", "forged-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUserHidesPasswordHash(t *testing.T) {
	s := newTestServer(t)
	token, _ := registerUser(t, s, "alice", []string{"valorant"}, "gold")

	rec := doRequest(t, s, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestMatchUsersEndpoint(t *testing.T) {
	s := newTestServer(t)
	token, _ := registerUser(t, s, "alice", []string{"valorant"}, "gold")
	_, bobID := registerUser(t, s, "bob", []string{"valorant"}, "gold")
	registerUser(t, s, "carol", []string{"valorant"}, "bronze")

	rec := doRequest(t, s, http.MethodGet, "/api/users/match?game=valorant", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var matches []model.UserProfile
	decodeBody(t, rec, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, bobID, matches[0].ID)

	missing := doRequest(t, s, http.MethodGet, "/api/users/match", token, nil)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestTeamEndpoints(t *testing.T) {
	s := newTestServer(t)
	leaderToken, leaderID := registerUser(t, s, "leader", []string{"valorant"}, "gold")
	memberToken, _ := registerUser(t, s, "member", []string{"valorant"}, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/teams", leaderToken, map[string]any{
		"name":        "Night Owls",
		"game":        "valorant",
		"skill_level": "gold",
		"max_members": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var team model.Team
	decodeBody(t, rec, &team)
	assert.Equal(t, leaderID, team.LeaderID)
	assert.Contains(t, team.Members, leaderID)

	// Team creation notified the matching player.
	notifs := doRequest(t, s, http.MethodGet, "/api/notifications/me", memberToken, nil)
	require.Equal(t, http.StatusOK, notifs.Code)
	var list []model.Notification
	decodeBody(t, notifs, &list)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationSimilarInterest, list[0].Type)
	assert.Equal(t, team.ID, list[0].TeamID)

	get := doRequest(t, s, http.MethodGet, "/api/teams/"+team.ID, memberToken, nil)
	assert.Equal(t, http.StatusOK, get.Code)

	listRec := doRequest(t, s, http.MethodGet, "/api/teams?game=valorant", memberToken, nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var teams []model.Team
	decodeBody(t, listRec, &teams)
	assert.Len(t, teams, 1)

	// Only the leader may update or delete.
	forbidden := doRequest(t, s, http.MethodPut, "/api/teams/"+team.ID, memberToken, map[string]string{"name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	update := doRequest(t, s, http.MethodPut, "/api/teams/"+team.ID, leaderToken, map[string]string{"description": "late night scrims"})
	require.Equal(t, http.StatusOK, update.Code)
	var updated model.Team
	decodeBody(t, update, &updated)
	assert.Equal(t, "late night scrims", updated.Description)
	assert.Equal(t, "Night Owls", updated.Name)

	join := doRequest(t, s, http.MethodPost, "/api/teams/"+team.ID+"/join", memberToken, nil)
	assert.Equal(t, http.StatusOK, join.Code)

	again := doRequest(t, s, http.MethodPost, "/api/teams/"+team.ID+"/join", memberToken, nil)
	assert.Equal(t, http.StatusBadRequest, again.Code)
	assert.Contains(t, again.Body.String(), "Already a member")

	leaderLeave := doRequest(t, s, http.MethodPost, "/api/teams/"+team.ID+"/leave", leaderToken, nil)
	assert.Equal(t, http.StatusBadRequest, leaderLeave.Code)

	leave := doRequest(t, s, http.MethodPost, "/api/teams/"+team.ID+"/leave", memberToken, nil)
	assert.Equal(t, http.StatusOK, leave.Code)

	forbiddenDelete := doRequest(t, s, http.MethodDelete, "/api/teams/"+team.ID, memberToken, nil)
	assert.Equal(t, http.StatusForbidden, forbiddenDelete.Code)

	del := doRequest(t, s, http.MethodDelete, "/api/teams/"+team.ID, leaderToken, nil)
	assert.Equal(t, http.StatusOK, del.Code)

	gone := doRequest(t, s, http.MethodGet, "/api/teams/"+team.ID, leaderToken, nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestChatAndMessageEndpoints(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := registerUser(t, s, "alice", nil, "gold")
	tokenB, idB := registerUser(t, s, "bob", nil, "gold")
	tokenC, _ := registerUser(t, s, "carol", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/chats", tokenA, map[string]any{
		"participants": []string{idB},
		"type":         model.ChatKindDirect,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var chatRoom model.Chat
	decodeBody(t, rec, &chatRoom)
	require.NotEmpty(t, chatRoom.ID)

	post := doRequest(t, s, http.MethodPost, "/api/chats/"+chatRoom.ID+"/messages", tokenA, map[string]string{
		"content": "hello over rest",
	})
	require.Equal(t, http.StatusCreated, post.Code)
	var msg model.Message
	decodeBody(t, post, &msg)
	assert.Equal(t, "hello over rest", msg.Content)

	history := doRequest(t, s, http.MethodGet, "/api/chats/"+chatRoom.ID+"/messages", tokenB, nil)
	require.Equal(t, http.StatusOK, history.Code)
	var messages []model.Message
	decodeBody(t, history, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello over rest", messages[0].Content)

	// The chat list shows the room with its latest message attached.
	chats := doRequest(t, s, http.MethodGet, "/api/chats", tokenB, nil)
	require.Equal(t, http.StatusOK, chats.Code)
	var rooms []model.Chat
	decodeBody(t, chats, &rooms)
	require.Len(t, rooms, 1)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "hello over rest", rooms[0].LastMessage.Content)

	// Outsiders and unknown chats get the same forbidden response.
	outsider := doRequest(t, s, http.MethodGet, "/api/chats/"+chatRoom.ID+"/messages", tokenC, nil)
	unknown := doRequest(t, s, http.MethodGet, "/api/chats/no-such-chat/messages", tokenC, nil)
	assert.Equal(t, http.StatusForbidden, outsider.Code)
	assert.Equal(t, http.StatusForbidden, unknown.Code)
	assert.JSONEq(t, outsider.Body.String(), unknown.Body.String())
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := registerUser(t, s, "alice", nil, "gold")
	tokenB, idB := registerUser(t, s, "bob", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/notifications", tokenA, map[string]string{
		"recipient_id": idB,
		"type":         model.NotificationTeamInvite,
		"title":        "Join us",
		"message":      "We need a support player",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Notification
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)

	list := doRequest(t, s, http.MethodGet, "/api/notifications/me", tokenB, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var notifs []model.Notification
	decodeBody(t, list, &notifs)
	require.Len(t, notifs, 1)
	assert.False(t, notifs[0].Read)

	read := doRequest(t, s, http.MethodPut, "/api/notifications/"+created.ID+"/read", tokenB, nil)
	assert.Equal(t, http.StatusOK, read.Code)

	// Marking someone else's notification fails.
	foreign := doRequest(t, s, http.MethodPut, "/api/notifications/"+created.ID+"/read", tokenA, nil)
	assert.Equal(t, http.StatusNotFound, foreign.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/teams", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRequest(http.MethodOptions, "/api/teams", nil)
	denied.Header.Set("Origin", "http://evil.example.com")
	deniedRec := httptest.NewRecorder()
	s.Router().ServeHTTP(deniedRec, denied)

	assert.Equal(t, http.StatusNoContent, deniedRec.Code)
	assert.Empty(t, deniedRec.Header().Get("Access-Control-Allow-Origin"))
}

// TestChatSocketThroughRouter exercises the full path: accounts and the chat
// created over REST, then a live session authenticated with a real token.
func TestChatSocketThroughRouter(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := registerUser(t, s, "alice", nil, "gold")
	tokenB, idB := registerUser(t, s, "bob", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/chats", tokenA, map[string]any{
		"participants": []string{idB},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chatRoom model.Chat
	decodeBody(t, rec, &chatRoom)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/chat/" + chatRoom.ID

	dial := func(token string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		authPayload, _ := json.Marshal(map[string]string{"type": "authenticate", "token": token})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, authPayload))
		return conn
	}

	connA := dial(tokenA)
	connB := dial(tokenB)

	require.Eventually(t, func() bool {
		return s.registry.ConnCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgPayload, _ := json.Marshal(map[string]string{"type": "message", "content": "gg"})
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, msgPayload))

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := connB.ReadMessage()
	require.NoError(t, err)

	var msg model.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "gg", msg.Content)
	assert.Equal(t, chatRoom.ID, msg.ChatID)

	// The socket message landed in history too.
	history := doRequest(t, s, http.MethodGet, "/api/chats/"+chatRoom.ID+"/messages", tokenA, nil)
	require.Equal(t, http.StatusOK, history.Code)
	var messages []model.Message
	decodeBody(t, history, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "gg", messages[0].Content)
}

// TestRestPostDeliversToLiveSockets covers the REST-to-socket path: a message
// posted over HTTP reaches the other participant's live socket but is never
// echoed back to the poster's own socket.
func TestRestPostDeliversToLiveSockets(t *testing.T) {
	s := newTestServer(t)
	tokenA, idA := registerUser(t, s, "alice", nil, "gold")
	tokenB, idB := registerUser(t, s, "bob", nil, "gold")

	rec := doRequest(t, s, http.MethodPost, "/api/chats", tokenA, map[string]any{
		"participants": []string{idB},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chatRoom model.Chat
	decodeBody(t, rec, &chatRoom)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/chat/" + chatRoom.ID

	dial := func(token string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		authPayload, _ := json.Marshal(map[string]string{"type": "authenticate", "token": token})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, authPayload))
		return conn
	}

	connA := dial(tokenA)
	connB := dial(tokenB)

	require.Eventually(t, func() bool {
		return s.registry.ConnCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	post := doRequest(t, s, http.MethodPost, "/api/chats/"+chatRoom.ID+"/messages", tokenA, map[string]string{
		"content": "posted over rest",
	})
	require.Equal(t, http.StatusCreated, post.Code)

	// The other participant's socket receives the message.
	require.NoError(t, connB.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := connB.ReadMessage()
	require.NoError(t, err)
	var msg model.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, idA, msg.SenderID)
	assert.Equal(t, "posted over rest", msg.Content)

	// The poster's own socket stays silent.
	require.NoError(t, connA.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = connA.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}
