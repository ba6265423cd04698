package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thereayou/artem-chat/internal/handlers/dto"
	"github.com/thereayou/artem-chat/internal/metrics"
	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/moderation"
)

// верхние пределы сроков бана и мута
const (
	maxBanDays   = 36500
	maxMuteHours = 876000
)

// authorize проверяет роль вызывающего по свежей записи из хранилища:
// роль могла измениться после входа.
func (h *MessageHandler) authorize(ctx context.Context, sess *Session, action moderation.Action) error {
	caller, err := h.store.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInsufficientPrivilege
		}
		return err
	}
	if err := moderation.Authorize(caller.Role, action, nil); err != nil {
		metrics.ModerationTotal.WithLabelValues(string(action), models.Code(err)).Inc()
		sess.log.Warn().Str("action", string(action)).Msg("admin action denied")
		return err
	}
	return nil
}

// moderate выполняет действие над пользователем и отвечает кадром
// admin_action_result. Отказ в правах уходит обычным кадром error.
func (h *MessageHandler) moderate(
	ctx context.Context,
	sess *Session,
	action moderation.Action,
	targetID int64,
	apply func() (*models.User, error),
	describe func(target *models.User) string,
) (*models.User, error) {
	if err := h.authorize(ctx, sess, action); err != nil {
		return nil, err
	}

	var (
		target *models.User
		err    error
	)
	switch {
	case targetID <= 0:
		err = models.Validationf("user_id is required")
	case targetID == sess.UserID && selfForbidden(action):
		err = models.Validationf("cannot %s yourself", action)
	default:
		target, err = apply()
	}

	if err != nil {
		if errors.Is(err, models.ErrInsufficientPrivilege) {
			return nil, err
		}
		metrics.ModerationTotal.WithLabelValues(string(action), models.Code(err)).Inc()
		if isInternal(err) {
			sess.log.Error().Err(err).Str("action", string(action)).Msg("admin action failed")
		}
		sess.send(dto.AdminActionResult{
			Type:    dto.TypeAdminActionResult,
			Action:  string(action),
			Success: false,
			Message: models.PublicMessage(err),
			UserID:  targetID,
		})
		return nil, nil
	}

	metrics.ModerationTotal.WithLabelValues(string(action), "ok").Inc()
	sess.log.Info().Str("action", string(action)).Int64("target_id", target.ID).Msg("admin action applied")
	sess.send(dto.AdminActionResult{
		Type:    dto.TypeAdminActionResult,
		Action:  string(action),
		Success: true,
		Message: describe(target),
		UserID:  target.ID,
	})
	return target, nil
}

// selfForbidden: забанить или заглушить себя нельзя, снять с себя можно.
func selfForbidden(action moderation.Action) bool {
	return action == moderation.ActionBan || action == moderation.ActionMute
}

func (h *MessageHandler) handleAdminSearch(ctx context.Context, sess *Session, data []byte) error {
	if err := h.authorize(ctx, sess, moderation.ActionSearch); err != nil {
		return err
	}
	var req dto.SearchRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	users, err := h.store.AdminSearchUsers(ctx, req.Query, h.limits.SearchLimit)
	if err != nil {
		return err
	}
	sess.send(dto.NewAdminSearchResults(users))
	return nil
}

func (h *MessageHandler) handleAdminBan(ctx context.Context, sess *Session, data []byte) error {
	var req dto.BanRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	days := 1
	if req.DurationDays != nil {
		days = *req.DurationDays
	}
	var until *time.Time

	target, err := h.moderate(ctx, sess, moderation.ActionBan, req.UserID,
		func() (*models.User, error) {
			if days < 0 {
				return nil, models.Validationf("duration_days must not be negative")
			}
			if days > maxBanDays {
				return nil, models.Validationf("duration_days must not exceed %d", maxBanDays)
			}
			if days > 0 {
				t := h.now().AddDate(0, 0, days)
				until = &t
			}
			return h.store.BanUser(ctx, sess.UserID, req.UserID, req.Reason, until)
		},
		func(u *models.User) string {
			if until == nil {
				return fmt.Sprintf("user %s banned permanently", u.Tag)
			}
			return fmt.Sprintf("user %s banned for %d days", u.Tag, days)
		},
	)
	if err != nil || target == nil {
		return err
	}

	// живое соединение цели получает причину и закрывается
	if peer, ok := h.registry.Lookup(target.ID); ok {
		_ = peer.SendFrame(dto.NewError(&models.BlockedError{Reason: target.BanReason, Until: target.BanUntil}))
		peer.Close()
	}
	return nil
}

func (h *MessageHandler) handleAdminMute(ctx context.Context, sess *Session, data []byte) error {
	var req dto.MuteRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	hours := 1
	if req.DurationHours != nil {
		hours = *req.DurationHours
	}
	var until *time.Time

	_, err := h.moderate(ctx, sess, moderation.ActionMute, req.UserID,
		func() (*models.User, error) {
			if hours < 0 {
				return nil, models.Validationf("duration_hours must not be negative")
			}
			if hours > maxMuteHours {
				return nil, models.Validationf("duration_hours must not exceed %d", maxMuteHours)
			}
			if hours > 0 {
				t := h.now().Add(time.Duration(hours) * time.Hour)
				until = &t
			}
			return h.store.MuteUser(ctx, sess.UserID, req.UserID, until)
		},
		func(u *models.User) string {
			if until == nil {
				return fmt.Sprintf("user %s muted indefinitely", u.Tag)
			}
			return fmt.Sprintf("user %s muted for %d hours", u.Tag, hours)
		},
	)
	return err
}

func (h *MessageHandler) handleAdminUnban(ctx context.Context, sess *Session, data []byte) error {
	var req dto.TargetRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := h.moderate(ctx, sess, moderation.ActionUnban, req.UserID,
		func() (*models.User, error) { return h.store.UnbanUser(ctx, sess.UserID, req.UserID) },
		func(u *models.User) string { return fmt.Sprintf("user %s unbanned", u.Tag) },
	)
	return err
}

func (h *MessageHandler) handleAdminUnmute(ctx context.Context, sess *Session, data []byte) error {
	var req dto.TargetRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := h.moderate(ctx, sess, moderation.ActionUnmute, req.UserID,
		func() (*models.User, error) { return h.store.UnmuteUser(ctx, sess.UserID, req.UserID) },
		func(u *models.User) string { return fmt.Sprintf("user %s unmuted", u.Tag) },
	)
	return err
}

func (h *MessageHandler) handleAdminPromote(ctx context.Context, sess *Session, data []byte) error {
	return h.setRole(ctx, sess, data, moderation.ActionPromote, models.RoleAdmin)
}

func (h *MessageHandler) handleAdminDemote(ctx context.Context, sess *Session, data []byte) error {
	return h.setRole(ctx, sess, data, moderation.ActionDemote, models.RoleMember)
}

func (h *MessageHandler) setRole(ctx context.Context, sess *Session, data []byte, action moderation.Action, role models.Role) error {
	var req dto.TargetRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := h.moderate(ctx, sess, action, req.UserID,
		func() (*models.User, error) { return h.store.SetRole(ctx, sess.UserID, req.UserID, role) },
		func(u *models.User) string { return fmt.Sprintf("user %s is now %s", u.Tag, u.Role) },
	)
	return err
}

func (h *MessageHandler) handleAdminAuditLog(ctx context.Context, sess *Session, data []byte) error {
	if err := h.authorize(ctx, sess, moderation.ActionAudit); err != nil {
		return err
	}
	var req dto.AuditLogRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	entries, err := h.store.ListAudit(ctx, limit)
	if err != nil {
		return err
	}
	sess.send(dto.NewAdminAuditLog(entries))
	return nil
}

func (h *MessageHandler) handleAdminStats(ctx context.Context, sess *Session, _ []byte) error {
	if err := h.authorize(ctx, sess, moderation.ActionStats); err != nil {
		return err
	}
	stats, err := h.store.Stats(ctx)
	if err != nil {
		return err
	}
	sess.send(dto.AdminStats{
		Type:           dto.TypeAdminStatsResult,
		Users:          stats.Users,
		Online:         stats.Online,
		Connected:      h.registry.Count(),
		Blocked:        stats.Blocked,
		Muted:          stats.Muted,
		Messages:       stats.Messages,
		ActiveSessions: stats.ActiveSessions,
	})
	return nil
}
