package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/artem-chat/internal/config"
	"github.com/thereayou/artem-chat/internal/database"
	"github.com/thereayou/artem-chat/internal/handlers"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/ratelimit"
	"github.com/thereayou/artem-chat/internal/services"
	ws "github.com/thereayou/artem-chat/internal/websocket"
	"github.com/thereayou/artem-chat/pkg/auth"
)

const (
	testPassword  = "secret1"
	ownerPassword = "rootpass"
	frameTimeout  = 3 * time.Second
)

type testConfig struct {
	opts    handlers.WebSocketOptions
	limits  handlers.Limits
	limiter ratelimit.Limiter
}

type testServer struct {
	t        *testing.T
	url      string
	db       *database.Database
	auth     *services.AuthService
	registry *ws.Registry
}

func newTestServer(t *testing.T, tweaks ...func(*testConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(config.StorageConfig{Driver: config.DriverSQLite, DSN: dsn}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authSvc := services.NewAuthService(
		db,
		auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewJWTManager("test-secret", time.Hour),
		services.AuthOptions{MinPasswordLength: 6, MaxUsernameLength: 32},
		logger.Nop(),
	)
	registry := ws.NewRegistry()

	cfg := testConfig{
		opts: handlers.WebSocketOptions{
			AuthTimeout:   5 * time.Second,
			ListLimit:     20,
			PreviewLength: 50,
		},
		limits: handlers.Limits{
			MaxMessageLength: 100,
			HistoryLimit:     50,
			SearchLimit:      20,
			PreviewLength:    50,
		},
		limiter: ratelimit.Unlimited{},
	}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}

	mh := handlers.NewMessageHandler(db, authSvc, registry, cfg.limiter, cfg.limits, logger.Nop())
	wsh := handlers.NewWebSocketHandler(authSvc, db, registry, mh, cfg.opts, logger.Nop())

	r := gin.New()
	r.GET("/ws", wsh.HandleWebSocket)
	r.GET("/health", handlers.NewHealthHandler(db, registry).Health)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		registry.CloseAll()
		srv.Close()
	})

	return &testServer{
		t:        t,
		url:      srv.URL,
		db:       db,
		auth:     authSvc,
		registry: registry,
	}
}

// seed регистрирует пользователя в обход WebSocket и снимает флаг онлайна.
func (s *testServer) seed(username string) *models.User {
	s.t.Helper()
	ctx := context.Background()
	res, err := s.auth.Register(ctx, services.RegisterRequest{
		Username: username,
		Tag:      "@" + username,
		Password: testPassword,
	})
	require.NoError(s.t, err)
	require.NoError(s.t, s.db.SetOnline(ctx, res.User.ID, false))
	return res.User
}

func (s *testServer) seedOwner() *models.User {
	s.t.Helper()
	ctx := context.Background()
	_, err := s.auth.EnsureOwner(ctx, "root", "@root", ownerPassword)
	require.NoError(s.t, err)
	owner, err := s.db.FindUserByIdentifier(ctx, "@root")
	require.NoError(s.t, err)
	return owner
}

func (s *testServer) dial() *wsClient {
	s.t.Helper()
	url := "ws" + strings.TrimPrefix(s.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: s.t, conn: conn}
}

// login входит и вычитывает стартовые кадры.
func (s *testServer) login(identifier, password string) (*wsClient, frame) {
	s.t.Helper()
	c := s.dial()
	c.send(map[string]any{"type": "login", "identifier": identifier, "password": password})
	ok := c.expect("login_success")
	c.expect("profile_data")
	c.expect("users_list")
	c.expect("conversations_list")
	return c, ok
}

type frame map[string]any

func (f frame) typ() string { return f.str("type") }

func (f frame) str(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f frame) int(key string) int64 {
	n, _ := f[key].(float64)
	return int64(n)
}

func (f frame) bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

func (f frame) obj(key string) frame {
	m, _ := f[key].(map[string]any)
	return m
}

func (f frame) list(key string) []frame {
	raw, _ := f[key].([]any)
	out := make([]frame, 0, len(raw))
	for _, item := range raw {
		m, _ := item.(map[string]any)
		out = append(out, m)
	}
	return out
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) sendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

func (c *wsClient) next() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	return f
}

func (c *wsClient) expect(typ string) frame {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, typ, f.typ(), "unexpected frame: %v", f)
	return f
}

func (c *wsClient) expectError(code string) frame {
	c.t.Helper()
	f := c.expect("error")
	require.Equal(c.t, code, f.str("code"), "error frame: %v", f)
	require.NotEmpty(c.t, f.str("error"))
	return f
}

// expectClosed ждёт закрытия соединения сервером.
func (c *wsClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	for i := 0; i < 10; i++ {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			require.False(c.t, errors.As(err, &ne) && ne.Timeout(), "connection was not closed")
			return
		}
		c.t.Logf("frame before close: %s", data)
	}
	c.t.Fatal("connection was not closed")
}

// expectSilence проверяет, что за d не пришло ни одного кадра.
func (c *wsClient) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := c.conn.ReadMessage()
	require.Error(c.t, err, "unexpected frame: %s", data)
	var ne net.Error
	require.True(c.t, errors.As(err, &ne) && ne.Timeout(), "expected timeout, got %v", err)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func ginTestContext(w *httptest.ResponseRecorder) (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, r := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	return c, r
}

func registerReq(username, email string) services.RegisterRequest {
	return services.RegisterRequest{
		Username: username,
		Tag:      "@" + username,
		Password: testPassword,
		Email:    email,
	}
}
