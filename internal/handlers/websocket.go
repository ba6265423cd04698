package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereayou/artem-chat/internal/handlers/dto"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/metrics"
	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/services"
	ws "github.com/thereayou/artem-chat/internal/websocket"
)

const (
	cleanupTimeout = 5 * time.Second
	presenceShards = 64
)

type WebSocketOptions struct {
	Client ws.Options
	// Сколько ждать первого кадра; 0 - без ограничения
	AuthTimeout time.Duration
	// Закрывать старое соединение при повторном входе того же пользователя
	EvictOnRebind  bool
	AllowedOrigins []string
	// Размер стартовых списков после входа
	ListLimit     int
	PreviewLength int
}

// WebSocketHandler принимает соединения, проводит аутентификацию
// первым кадром и передаёт дальнейшие кадры в MessageHandler.
type WebSocketHandler struct {
	auth           *services.AuthService
	store          services.Store
	registry       *ws.Registry
	messageHandler *MessageHandler
	opts           WebSocketOptions
	upgrader       websocket.Upgrader
	log            *logger.Logger

	// привязка в реестре и флаг онлайна меняются вместе под замком пользователя
	presence [presenceShards]sync.Mutex
}

func NewWebSocketHandler(
	auth *services.AuthService,
	store services.Store,
	registry *ws.Registry,
	messageHandler *MessageHandler,
	opts WebSocketOptions,
	log *logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		auth:           auth,
		store:          store,
		registry:       registry,
		messageHandler: messageHandler,
		opts:           opts,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// originChecker пропускает всё, если список пуст.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

func (h *WebSocketHandler) presenceLock(userID int64) *sync.Mutex {
	return &h.presence[uint64(userID)%presenceShards]
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", c.ClientIP()).Msg("websocket upgrade failed")
		return
	}
	h.Serve(c.Request.Context(), conn)
}

// Serve обслуживает соединение до его закрытия.
func (h *WebSocketHandler) Serve(ctx context.Context, conn *websocket.Conn) {
	client := ws.NewClient(conn, h.opts.Client, h.log)
	sess := newSession(client, client.Logger())

	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	go client.WritePump()
	defer h.cleanup(ctx, sess)

	sess.state = StateAuthenticating
	result, method, err := h.authenticate(ctx, sess)
	if err != nil {
		return
	}
	h.activate(ctx, sess, result, method)

	client.ReadPump(func(data []byte) {
		h.messageHandler.HandleFrame(ctx, sess, data)
	})
}

// authenticate ждёт первый кадр. Любая неудача отправляет один кадр
// error, после чего соединение закрывается.
func (h *WebSocketHandler) authenticate(ctx context.Context, sess *Session) (*services.AuthResult, string, error) {
	if h.opts.AuthTimeout > 0 {
		timer := time.AfterFunc(h.opts.AuthTimeout, sess.client.Close)
		defer timer.Stop()
	}

	data, err := sess.client.ReadFrame()
	if err != nil {
		return nil, "", err
	}

	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		err = models.Validationf("malformed frame")
		h.rejectAuth(sess, "unknown", err)
		return nil, "", err
	}

	method := dto.NormalizeType(env.Type)
	var result *services.AuthResult
	switch method {
	case dto.TypeRegister:
		var req dto.RegisterRequest
		if err = json.Unmarshal(data, &req); err != nil {
			err = models.Validationf("malformed register frame")
			break
		}
		result, err = h.auth.Register(ctx, services.RegisterRequest{
			Username: req.Username,
			Tag:      req.Tag,
			Password: req.Password,
			Email:    req.Email,
			Phone:    req.Phone,
		})
	case dto.TypeLogin:
		var req dto.LoginRequest
		if err = json.Unmarshal(data, &req); err != nil {
			err = models.Validationf("malformed login frame")
			break
		}
		result, err = h.auth.Login(ctx, req.Identifier, req.Password)
	case dto.TypeSession, dto.TypeSessionResume:
		method = dto.TypeSession
		var req dto.SessionRequest
		if err = json.Unmarshal(data, &req); err != nil {
			err = models.Validationf("malformed session frame")
			break
		}
		result, err = h.auth.Resume(ctx, req.SessionToken)
	default:
		method = "unknown"
		err = models.Validationf("first frame must be register, login or session")
	}

	if err != nil {
		h.rejectAuth(sess, method, err)
		return nil, method, err
	}
	metrics.AuthTotal.WithLabelValues(method, "ok").Inc()
	return result, method, nil
}

func (h *WebSocketHandler) rejectAuth(sess *Session, method string, err error) {
	metrics.AuthTotal.WithLabelValues(method, models.Code(err)).Inc()
	if isInternal(err) {
		sess.log.Error().Err(err).Str("method", method).Msg("authentication failed")
	} else {
		sess.log.Info().Err(err).Str("method", method).Msg("authentication rejected")
	}
	sess.sendError(err)
	sess.state = StateClosed
	sess.client.Close()
}

// activate привязывает соединение к пользователю и отправляет
// стартовое состояние: профиль, пользователей и диалоги.
func (h *WebSocketHandler) activate(ctx context.Context, sess *Session, result *services.AuthResult, method string) {
	user := result.User
	sess.UserID = user.ID
	sess.Username = user.Username
	sess.Tag = user.Tag
	sess.Token = result.Token
	sess.log = sess.log.WithStr("user", user.Tag)

	frameType, greeting := dto.TypeLoginSuccess, "login successful"
	switch method {
	case dto.TypeRegister:
		frameType, greeting = dto.TypeRegisterSuccess, "registration successful"
	case dto.TypeSession:
		greeting = "session restored"
	}
	sess.send(dto.NewAuthSuccess(frameType, result, greeting))

	mu := h.presenceLock(user.ID)
	mu.Lock()
	prev, replaced := h.registry.Bind(user.ID, sess.client)
	// флаг мог снять закрывшийся старый сеанс после OpenSession
	if err := h.store.SetOnline(ctx, user.ID, true); err != nil {
		sess.log.Error().Err(err).Msg("set online flag")
	}
	mu.Unlock()
	sess.bound = true
	sess.state = StateActive
	metrics.UsersOnline.Set(float64(h.registry.Count()))
	if replaced && h.opts.EvictOnRebind {
		_ = prev.SendFrame(dto.ErrorFrame{
			Type:  dto.TypeError,
			Error: "signed in from another connection",
			Code:  models.Code(models.ErrSessionInvalid),
		})
		prev.Close()
	}
	sess.log.Info().Int64("user_id", user.ID).Str("method", method).Bool("replaced", replaced).Msg("client authenticated")

	sess.send(dto.ProfileData{Type: dto.TypeProfileData, Profile: dto.NewProfile(user)})

	users, err := h.store.SearchUsers(ctx, "", user.ID, h.opts.ListLimit)
	if err != nil {
		sess.log.Error().Err(err).Msg("initial users list")
		sess.sendError(err)
	} else {
		sess.send(dto.UsersList{Type: dto.TypeUsersList, Users: dto.NewUserItems(users)})
	}

	convs, err := h.store.ListConversations(ctx, user.ID, h.opts.PreviewLength)
	if err != nil {
		sess.log.Error().Err(err).Msg("initial conversations list")
		sess.sendError(err)
	} else {
		sess.send(dto.NewConversationsList(convs))
	}
}

// cleanup снимает привязку и флаг онлайна. Флаг не трогаем, если
// пользователь уже привязан к более новому соединению.
func (h *WebSocketHandler) cleanup(ctx context.Context, sess *Session) {
	last := sess.State()
	sess.state = StateClosed
	sess.client.Close()
	if !sess.bound {
		sess.log.Debug().Stringer("state", last).Msg("connection closed before activation")
		return
	}

	mu := h.presenceLock(sess.UserID)
	mu.Lock()
	defer mu.Unlock()
	if !h.registry.Unbind(sess.UserID, sess.client) {
		return
	}
	metrics.UsersOnline.Set(float64(h.registry.Count()))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := h.store.SetOnline(ctx, sess.UserID, false); err != nil {
		sess.log.Error().Err(err).Msg("clear online flag")
	}
	sess.log.Info().Stringer("state", last).Msg("client disconnected")
}
