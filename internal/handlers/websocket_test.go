package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/artem-chat/internal/handlers"
)

func TestRegister_PushesInitialState(t *testing.T) {
	ts := newTestServer(t)
	ts.seed("bob")

	c := ts.dial()
	c.send(map[string]any{
		"type":     "register",
		"username": "alice",
		"tag":      "alice",
		"password": testPassword,
		"email":    "alice@example.com",
	})

	ok := c.expect("register_success")
	assert.NotZero(t, ok.int("user_id"))
	assert.Equal(t, "alice", ok.str("username"))
	assert.Equal(t, "@alice", ok.str("tag"))
	assert.NotEmpty(t, ok.str("session_token"))
	assert.False(t, ok.bool("is_admin"))

	profile := c.expect("profile_data").obj("profile")
	assert.Equal(t, "alice", profile.str("username"))
	assert.Equal(t, "alice@example.com", profile.str("email"))

	users := c.expect("users_list").list("users")
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].str("username"))
	assert.False(t, users[0].bool("is_online"))

	convs := c.expect("conversations_list").list("conversations")
	assert.Empty(t, convs)

	user, err := ts.db.GetUser(context.Background(), ok.int("user_id"))
	require.NoError(t, err)
	assert.True(t, user.IsOnline)
	_, bound := ts.registry.Lookup(user.ID)
	assert.True(t, bound)
}

func TestAuth_DashedFrameType(t *testing.T) {
	ts := newTestServer(t)
	ts.seed("alice")

	c := ts.dial()
	c.send(map[string]any{"type": "LOGIN", "identifier": "@alice", "password": testPassword})
	c.expect("login_success")
}

func TestAuth_Failures(t *testing.T) {
	ts := newTestServer(t)
	ts.seed("alice")

	tests := []struct {
		name  string
		frame map[string]any
		code  string
	}{
		{
			name:  "duplicate username",
			frame: map[string]any{"type": "register", "username": "alice", "tag": "@other", "password": testPassword},
			code:  "duplicate_identity",
		},
		{
			name:  "short password",
			frame: map[string]any{"type": "register", "username": "carol", "tag": "@carol", "password": "123"},
			code:  "validation_error",
		},
		{
			name:  "wrong password",
			frame: map[string]any{"type": "login", "identifier": "alice", "password": "wrong-password"},
			code:  "invalid_credential",
		},
		{
			name:  "unknown user",
			frame: map[string]any{"type": "login", "identifier": "nobody", "password": testPassword},
			code:  "not_found",
		},
		{
			name:  "bad session token",
			frame: map[string]any{"type": "session", "session_token": "garbage"},
			code:  "session_invalid",
		},
		{
			name:  "not an auth frame",
			frame: map[string]any{"type": "get_users"},
			code:  "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ts.dial()
			c.send(tt.frame)
			c.expectError(tt.code)
			c.expectClosed()
		})
	}
	assert.Zero(t, ts.registry.Count())
}

func TestAuth_MalformedFirstFrame(t *testing.T) {
	ts := newTestServer(t)

	c := ts.dial()
	c.sendRaw("{not json")
	c.expectError("validation_error")
	c.expectClosed()
}

func TestAuth_Timeout(t *testing.T) {
	ts := newTestServer(t, func(cfg *testConfig) {
		cfg.opts.AuthTimeout = 100 * time.Millisecond
	})

	c := ts.dial()
	c.expectClosed()
}

func TestSession_Resume(t *testing.T) {
	ts := newTestServer(t)
	ts.seed("alice")

	first, ok := ts.login("alice", testPassword)
	token := ok.str("session_token")
	require.NotEmpty(t, token)
	require.NoError(t, first.conn.Close())

	require.Eventually(t, func() bool { return ts.registry.Count() == 0 }, time.Second, 10*time.Millisecond)

	c := ts.dial()
	c.send(map[string]any{"type": "session", "session_token": token})
	resumed := c.expect("login_success")
	assert.Equal(t, ok.int("user_id"), resumed.int("user_id"))
	assert.Equal(t, token, resumed.str("session_token"))
	c.expect("profile_data")
}

func TestDisconnect_ClearsOnlineFlag(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seed("alice")

	c, _ := ts.login("alice", testPassword)
	require.NoError(t, c.conn.Close())

	require.Eventually(t, func() bool {
		u, err := ts.db.GetUser(context.Background(), alice.ID)
		return err == nil && !u.IsOnline
	}, 2*time.Second, 10*time.Millisecond)
	_, bound := ts.registry.Lookup(alice.ID)
	assert.False(t, bound)
}

func TestDoubleLogin_LastBindWins(t *testing.T) {
	ts := newTestServer(t)
	ts.seed("alice")
	bob := ts.seed("bob")

	old, _ := ts.login("bob", testPassword)
	fresh, _ := ts.login("bob", testPassword)
	sender, _ := ts.login("alice", testPassword)

	sender.send(map[string]any{"type": "send_message", "receiver_id": bob.ID, "text": "hi"})
	sender.expect("message_sent")

	assert.Equal(t, "hi", fresh.expect("new_message").str("text"))
	old.expectSilence(200 * time.Millisecond)
}

func TestDoubleLogin_Evict(t *testing.T) {
	ts := newTestServer(t, func(cfg *testConfig) {
		cfg.opts.EvictOnRebind = true
	})
	bob := ts.seed("bob")

	old, _ := ts.login("bob", testPassword)
	fresh, _ := ts.login("bob", testPassword)

	old.expectError("session_invalid")
	old.expectClosed()

	fresh.send(map[string]any{"type": "ping"})
	fresh.expect("pong")

	// закрытие старого соединения не снимает флаг онлайна
	time.Sleep(100 * time.Millisecond)
	u, err := ts.db.GetUser(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)
}

// старое соединение закрывается, пока идёт новый вход: флаг онлайна
// должен остаться у нового соединения
func TestDoubleLogin_StaleCloseKeepsOnline(t *testing.T) {
	ts := newTestServer(t)
	bob := ts.seed("bob")
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		old, _ := ts.login("bob", testPassword)
		_ = old.conn.Close()
		fresh, _ := ts.login("bob", testPassword)

		fresh.send(map[string]any{"type": "ping"})
		fresh.expect("pong")
		time.Sleep(20 * time.Millisecond)

		u, err := ts.db.GetUser(ctx, bob.ID)
		require.NoError(t, err)
		require.True(t, u.IsOnline, "iteration %d", i)
		_, bound := ts.registry.Lookup(bob.ID)
		require.True(t, bound, "iteration %d", i)

		_ = fresh.conn.Close()
		require.Eventually(t, func() bool {
			_, ok := ts.registry.Lookup(bob.ID)
			return !ok
		}, frameTimeout, 5*time.Millisecond)
	}
}

func TestOriginCheck(t *testing.T) {
	ts := newTestServer(t, func(cfg *testConfig) {
		cfg.opts.AllowedOrigins = []string{"https://chat.example.com/"}
	})
	url := "ws" + strings.TrimPrefix(ts.url, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://chat.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_StorageDown(t *testing.T) {
	h := handlers.NewHealthHandler(failingPinger{}, nil)

	w := httptest.NewRecorder()
	c, _ := ginTestContext(w)
	h.Health(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
