package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thereayou/artem-chat/internal/handlers/dto"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/metrics"
	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/ratelimit"
	"github.com/thereayou/artem-chat/internal/services"
	ws "github.com/thereayou/artem-chat/internal/websocket"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type Limits struct {
	MaxMessageLength int
	HistoryLimit     int
	SearchLimit      int
	PreviewLength    int
}

type frameFunc func(ctx context.Context, sess *Session, data []byte) error

// MessageHandler разбирает кадры аутентифицированного соединения.
type MessageHandler struct {
	store    services.Store
	auth     *services.AuthService
	registry *ws.Registry
	limiter  ratelimit.Limiter
	limits   Limits
	log      *logger.Logger
	now      func() time.Time

	frames map[string]frameFunc
}

func NewMessageHandler(
	store services.Store,
	auth *services.AuthService,
	registry *ws.Registry,
	limiter ratelimit.Limiter,
	limits Limits,
	log *logger.Logger,
) *MessageHandler {
	h := &MessageHandler{
		store:    store,
		auth:     auth,
		registry: registry,
		limiter:  limiter,
		limits:   limits,
		log:      log,
		now:      time.Now,
	}
	h.frames = map[string]frameFunc{
		dto.TypeSendMessage:      h.handleSendMessage,
		dto.TypeMessage:          h.handleSendMessage,
		dto.TypeGetConversations: h.handleGetConversations,
		dto.TypeGetChatHistory:   h.handleGetChatHistory,
		dto.TypeGetHistory:       h.handleGetChatHistory,
		dto.TypeSearchUsers:      h.handleSearchUsers,
		dto.TypeGetUsers:         h.handleGetUsers,
		dto.TypeUpdateProfile:    h.handleUpdateProfile,
		dto.TypeAdminSearch:      h.handleAdminSearch,
		dto.TypeAdminBan:         h.handleAdminBan,
		dto.TypeAdminMute:        h.handleAdminMute,
		dto.TypeAdminUnban:       h.handleAdminUnban,
		dto.TypeAdminUnmute:      h.handleAdminUnmute,
		dto.TypeAdminPromote:     h.handleAdminPromote,
		dto.TypeAdminDemote:      h.handleAdminDemote,
		dto.TypeAdminAuditLog:    h.handleAdminAuditLog,
		dto.TypeAdminStats:       h.handleAdminStats,
		dto.TypeLogout:           h.handleLogout,
		dto.TypePing:             h.handlePing,
	}
	return h
}

// HandleFrame обрабатывает один входящий кадр. Кадры с неизвестным
// типом и невалидный JSON пропускаются без ответа.
func (h *MessageHandler) HandleFrame(ctx context.Context, sess *Session, data []byte) {
	// после logout соединение ещё дочитывает буфер
	if sess.State() != StateActive {
		return
	}
	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		sess.log.Debug().Err(err).Msg("malformed frame ignored")
		metrics.FramesTotal.WithLabelValues("malformed", "ignored").Inc()
		return
	}

	kind := dto.NormalizeType(env.Type)
	fn, ok := h.frames[kind]
	if !ok {
		sess.log.Debug().Str("type", env.Type).Msg("unknown frame ignored")
		metrics.FramesTotal.WithLabelValues("unknown", "ignored").Inc()
		return
	}

	start := time.Now()
	err := h.call(ctx, fn, sess, data)
	metrics.FrameDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.FramesTotal.WithLabelValues(kind, "ok").Inc()
		return
	}
	metrics.FramesTotal.WithLabelValues(kind, models.Code(err)).Inc()
	if isInternal(err) {
		sess.log.Error().Err(err).Str("type", kind).Msg("frame failed")
	} else {
		sess.log.Debug().Err(err).Str("type", kind).Msg("frame rejected")
	}
	sess.sendError(err)
}

// call превращает панику обработчика в сбой хранилища, чтобы одно
// соединение не роняло процесс.
func (h *MessageHandler) call(ctx context.Context, fn frameFunc, sess *Session, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.StorageError("handle frame", fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx, sess, data)
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return models.Validationf("malformed frame: %v", err)
	}
	return nil
}

func (h *MessageHandler) handleSendMessage(ctx context.Context, sess *Session, data []byte) error {
	var req dto.SendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ReceiverID <= 0 {
		return models.Validationf("receiver_id is required")
	}
	if req.ReceiverID == sess.UserID {
		return models.Validationf("cannot send a message to yourself")
	}
	if strings.TrimSpace(req.Text) == "" {
		return models.Validationf("message text is empty")
	}
	if utf8.RuneCountInString(req.Text) > h.limits.MaxMessageLength {
		return models.Validationf("message must be at most %d characters", h.limits.MaxMessageLength)
	}

	allowed, err := h.limiter.Allow(ctx, "msg:"+strconv.FormatInt(sess.UserID, 10))
	if err != nil {
		// лимитер недоступен: пропускаем, хранилище важнее
		sess.log.Warn().Err(err).Msg("rate limiter unavailable")
	} else if !allowed {
		return models.ErrRateLimited
	}

	msg, err := h.store.SaveMessage(ctx, sess.UserID, req.ReceiverID, req.Text)
	if err != nil {
		return err
	}

	sess.send(dto.MessageSent{
		Type:       dto.TypeMessageSent,
		MessageID:  msg.ID,
		ReceiverID: msg.ReceiverID,
		Timestamp:  msg.CreatedAt,
	})

	delivered := false
	if peer, ok := h.registry.Lookup(req.ReceiverID); ok {
		err := peer.SendFrame(dto.NewMessage{
			Type:       dto.TypeNewMessage,
			MessageID:  msg.ID,
			SenderID:   sess.UserID,
			SenderName: sess.Username,
			SenderTag:  sess.Tag,
			Text:       msg.Text,
			Timestamp:  msg.CreatedAt,
		})
		if err != nil {
			metrics.OutboundDropped.Inc()
			sess.log.Debug().Err(err).Int64("receiver_id", req.ReceiverID).Msg("live delivery dropped")
		} else {
			delivered = true
		}
	}
	metrics.MessagesRelayed.WithLabelValues(strconv.FormatBool(delivered)).Inc()
	return nil
}

func (h *MessageHandler) handleGetConversations(ctx context.Context, sess *Session, _ []byte) error {
	convs, err := h.store.ListConversations(ctx, sess.UserID, h.limits.PreviewLength)
	if err != nil {
		return err
	}
	sess.send(dto.NewConversationsList(convs))
	return nil
}

func (h *MessageHandler) handleGetChatHistory(ctx context.Context, sess *Session, data []byte) error {
	var req dto.HistoryRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.UserID <= 0 {
		return models.Validationf("user_id is required")
	}
	limit := h.limits.HistoryLimit
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}

	msgs, err := h.store.GetHistory(ctx, sess.UserID, req.UserID, limit)
	if err != nil {
		return err
	}
	sess.send(dto.NewChatHistory(req.UserID, msgs))
	return nil
}

func (h *MessageHandler) handleSearchUsers(ctx context.Context, sess *Session, data []byte) error {
	var req dto.SearchRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	users, err := h.store.SearchUsers(ctx, req.Query, sess.UserID, h.limits.SearchLimit)
	if err != nil {
		return err
	}
	sess.send(dto.SearchResults{Type: dto.TypeSearchResults, Query: req.Query, Users: dto.NewUserItems(users)})
	return nil
}

func (h *MessageHandler) handleGetUsers(ctx context.Context, sess *Session, _ []byte) error {
	users, err := h.store.SearchUsers(ctx, "", sess.UserID, h.limits.SearchLimit)
	if err != nil {
		return err
	}
	sess.send(dto.UsersList{Type: dto.TypeUsersList, Users: dto.NewUserItems(users)})
	return nil
}

// handleUpdateProfile всегда отвечает кадром profile_updated,
// в том числе при ошибке.
func (h *MessageHandler) handleUpdateProfile(ctx context.Context, sess *Session, data []byte) error {
	var upd services.ProfileUpdate
	err := decode(data, &upd)
	if err == nil && upd.Username.Set {
		err = h.auth.ValidateUsername(upd.Username.Value)
	}

	var user *models.User
	if err == nil {
		user, err = h.store.UpdateProfile(ctx, sess.UserID, upd)
	}
	if err != nil {
		if isInternal(err) {
			sess.log.Error().Err(err).Msg("update profile")
		}
		sess.send(dto.ProfileUpdated{
			Type:    dto.TypeProfileUpdated,
			Success: false,
			Error:   models.PublicMessage(err),
			Code:    models.Code(err),
		})
		return nil
	}

	sess.Username = user.Username
	sess.send(dto.ProfileUpdated{
		Type:    dto.TypeProfileUpdated,
		Success: true,
		Message: "profile updated",
		Profile: dto.NewProfile(user),
	})
	return nil
}

func (h *MessageHandler) handleLogout(ctx context.Context, sess *Session, _ []byte) error {
	if err := h.auth.Logout(ctx, sess.Token); err != nil {
		return err
	}
	sess.log.Info().Msg("logged out")
	sess.send(dto.Simple{Type: dto.TypeLoggedOut})
	sess.state = StateClosed
	sess.client.Close()
	return nil
}

func (h *MessageHandler) handlePing(_ context.Context, sess *Session, _ []byte) error {
	sess.send(dto.Simple{Type: dto.TypePong})
	return nil
}
