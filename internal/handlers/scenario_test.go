package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Полный путь: регистрация, вход, восстановление сессии, переписка,
// непрочитанные и бан навсегда.
func TestScenario_ChatAndPermanentBan(t *testing.T) {
	ts := newTestServer(t)
	ts.seedOwner()

	reg := ts.dial()
	reg.send(map[string]any{"type": "register", "username": "alice", "tag": "@alice", "password": "pw123456"})
	aliceID := reg.expect("register_success").int("user_id")
	require.NoError(t, reg.conn.Close())

	a, ok := ts.login("@alice", "pw123456")
	assert.Equal(t, aliceID, ok.int("user_id"))
	token := ok.str("session_token")

	resume := ts.dial()
	resume.send(map[string]any{"type": "session-resume", "session_token": token})
	assert.Equal(t, aliceID, resume.expect("login_success").int("user_id"))
	require.NoError(t, resume.conn.Close())

	reg = ts.dial()
	reg.send(map[string]any{"type": "register", "username": "bob", "tag": "@bob", "password": "pw123456"})
	bobOK := reg.expect("register_success")
	bobID := bobOK.int("user_id")
	reg.expect("profile_data")
	reg.expect("users_list")
	reg.expect("conversations_list")
	b := reg

	a.send(map[string]any{"type": "send-message", "receiver_id": bobID, "text": "hi"})
	a.expect("message_sent")
	assert.Equal(t, "hi", b.expect("new_message").str("text"))

	b.send(map[string]any{"type": "get-conversations"})
	convs := b.expect("conversations_list").list("conversations")
	require.Len(t, convs, 1)
	assert.Equal(t, aliceID, convs[0].int("user_id"))
	assert.Equal(t, int64(1), convs[0].int("unread_count"))

	b.send(map[string]any{"type": "get-chat-history", "user_id": aliceID})
	msgs := b.expect("chat_history").list("messages")
	require.Len(t, msgs, 1)
	assert.Equal(t, aliceID, msgs[0].int("sender_id"))
	assert.Equal(t, bobID, msgs[0].int("receiver_id"))
	assert.Equal(t, "hi", msgs[0].str("text"))

	b.send(map[string]any{"type": "get-conversations"})
	convs = b.expect("conversations_list").list("conversations")
	require.Len(t, convs, 1)
	assert.Zero(t, convs[0].int("unread_count"))

	// отправитель видит то же сообщение в своей истории
	a.send(map[string]any{"type": "get-chat-history", "user_id": bobID})
	msgs = a.expect("chat_history").list("messages")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].str("text"))
	assert.True(t, msgs[0].bool("is_read"))

	owner, _ := ts.login("root", ownerPassword)
	owner.send(map[string]any{"type": "admin-ban-user", "user_id": bobID, "reason": "forever", "duration_days": 0})
	res := owner.expect("admin_action_result")
	require.True(t, res.bool("success"), "frame: %v", res)
	assert.Contains(t, res.str("message"), "permanently")

	b.expectError("blocked")
	b.expectClosed()

	c := ts.dial()
	c.send(map[string]any{"type": "session", "session_token": bobOK.str("session_token")})
	c.expectError("session_invalid")
	c.expectClosed()

	c = ts.dial()
	c.send(map[string]any{"type": "login", "identifier": "@bob", "password": "pw123456"})
	c.expectError("blocked")
	c.expectClosed()
}
