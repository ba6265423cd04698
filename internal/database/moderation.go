package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/moderation"
)

// moderate загружает вызывающего и цель, проверяет права и применяет apply
// в одной транзакции вместе с записью в журнал аудита.
func (d *Database) moderate(
	ctx context.Context,
	callerID, targetID int64,
	action moderation.Action,
	apply func(tx *gorm.DB, target *models.User) (string, error),
) (*models.User, error) {
	target := models.User{}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var caller models.User
		if err := tx.First(&caller, "id = ?", callerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrInsufficientPrivilege
			}
			return err
		}
		if err := moderation.Authorize(caller.Role, action, nil); err != nil {
			return err
		}
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			return err
		}
		if err := moderation.Authorize(caller.Role, action, &target.Role); err != nil {
			return err
		}

		details, err := apply(tx, &target)
		if err != nil {
			return err
		}

		entry := &models.AuditLog{
			ActorID:  callerID,
			Action:   string(action),
			TargetID: &targetID,
			Details:  details,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.First(&target, "id = ?", targetID).Error
	})
	if err != nil {
		return nil, wrapErr(string(action), err)
	}
	return &target, nil
}

// BanUser блокирует пользователя и гасит все его активные сессии.
// until == nil означает бессрочный бан.
func (d *Database) BanUser(ctx context.Context, callerID, targetID int64, reason string, until *time.Time) (*models.User, error) {
	return d.moderate(ctx, callerID, targetID, moderation.ActionBan, func(tx *gorm.DB, target *models.User) (string, error) {
		err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			Updates(map[string]any{"is_blocked": true, "ban_reason": reason, "ban_until": utcPtr(until)}).Error
		if err != nil {
			return "", err
		}
		err = tx.Model(&models.Session{}).
			Where("user_id = ? AND is_active = ?", target.ID, true).
			Update("is_active", false).Error
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("until=%s reason=%q", describeUntil(until), reason), nil
	})
}

func (d *Database) UnbanUser(ctx context.Context, callerID, targetID int64) (*models.User, error) {
	return d.moderate(ctx, callerID, targetID, moderation.ActionUnban, func(tx *gorm.DB, target *models.User) (string, error) {
		err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			Updates(map[string]any{"is_blocked": false, "ban_reason": "", "ban_until": nil}).Error
		return "", err
	})
}

// MuteUser запрещает отправку сообщений; сессии не трогает.
func (d *Database) MuteUser(ctx context.Context, callerID, targetID int64, until *time.Time) (*models.User, error) {
	return d.moderate(ctx, callerID, targetID, moderation.ActionMute, func(tx *gorm.DB, target *models.User) (string, error) {
		err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			Updates(map[string]any{"is_muted": true, "mute_until": utcPtr(until)}).Error
		return "until=" + describeUntil(until), err
	})
}

func (d *Database) UnmuteUser(ctx context.Context, callerID, targetID int64) (*models.User, error) {
	return d.moderate(ctx, callerID, targetID, moderation.ActionUnmute, func(tx *gorm.DB, target *models.User) (string, error) {
		err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			Updates(map[string]any{"is_muted": false, "mute_until": nil}).Error
		return "", err
	})
}

// SetRole назначает роль admin или member. Только владелец.
func (d *Database) SetRole(ctx context.Context, callerID, targetID int64, role models.Role) (*models.User, error) {
	var action moderation.Action
	switch role {
	case models.RoleAdmin:
		action = moderation.ActionPromote
	case models.RoleMember:
		action = moderation.ActionDemote
	default:
		return nil, models.Validationf("role %s cannot be assigned", role)
	}
	return d.moderate(ctx, callerID, targetID, action, func(tx *gorm.DB, target *models.User) (string, error) {
		err := tx.Model(&models.User{}).Where("id = ?", target.ID).Update("role", role).Error
		return fmt.Sprintf("%s -> %s", target.Role, role), err
	})
}

// ExpireModeration снимает истёкшие баны и муты.
func (d *Database) ExpireModeration(ctx context.Context, now time.Time) (int64, int64, error) {
	now = now.UTC()
	var bans, mutes int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("is_blocked = ? AND ban_until IS NOT NULL AND ban_until <= ?", true, now).
			Updates(map[string]any{"is_blocked": false, "ban_reason": "", "ban_until": nil})
		if res.Error != nil {
			return res.Error
		}
		bans = res.RowsAffected

		res = tx.Model(&models.User{}).
			Where("is_muted = ? AND mute_until IS NOT NULL AND mute_until <= ?", true, now).
			Updates(map[string]any{"is_muted": false, "mute_until": nil})
		if res.Error != nil {
			return res.Error
		}
		mutes = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, wrapErr("expire moderation", err)
	}
	return bans, mutes, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func describeUntil(until *time.Time) string {
	if until == nil {
		return "forever"
	}
	return until.UTC().Format(time.RFC3339)
}
