package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/artem-chat/internal/config"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/ratelimit"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DSN", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	t.Setenv("OWNER_USERNAME", "root")
	t.Setenv("OWNER_TAG", "@root")
	t.Setenv("OWNER_PASSWORD", "rootpass")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	cfg, err := config.Parse()
	require.NoError(t, err)
	return cfg
}

func TestNewServer_Routes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	srv, err := NewServer(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.close)

	owner, err := srv.DB.FindUserByIdentifier(ctx, "@root")
	require.NoError(t, err)
	assert.True(t, owner.Role.IsOwner())

	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	srv.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "artem_connections_active")

	// без заголовков апгрейда /ws отвечает ошибкой, а не паникой
	w = httptest.NewRecorder()
	srv.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = "0"

	srv, err := NewServer(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewLimiter(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	cfg.Limits.MessagesPerMinute = 0
	rdb, limiter, err := newLimiter(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, ratelimit.Unlimited{}, limiter)

	cfg.Limits.MessagesPerMinute = 10
	_, limiter, err = newLimiter(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)

	cfg.Redis.URL = "not-a-url"
	_, _, err = newLimiter(ctx, cfg, logger.Nop())
	assert.Error(t, err)
}
