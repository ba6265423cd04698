package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/thereayou/artem-chat/internal/models"
)

// OpenSession записывает сессию и помечает пользователя онлайн.
func (d *Database) OpenSession(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.Session, error) {
	session := &models.Session{
		UserID:    userID,
		Token:     token,
		IsActive:  true,
		ExpiresAt: expiresAt.UTC(),
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(session).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{"is_online": true, "last_seen_at": d.now()}).Error
	})
	if err != nil {
		return nil, wrapErr("open session", err)
	}
	return session, nil
}

func (d *Database) FindSession(ctx context.Context, token string) (*models.Session, error) {
	session := models.Session{}
	if err := d.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, wrapErr("find session", err)
	}
	return &session, nil
}

// EndSession деактивирует сессию; неизвестный токен не ошибка.
func (d *Database) EndSession(ctx context.Context, token string) error {
	err := d.db.WithContext(ctx).Model(&models.Session{}).
		Where("token = ?", token).
		Update("is_active", false).Error
	return wrapErr("end session", err)
}

// PurgeExpiredSessions деактивирует просроченные сессии.
func (d *Database) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.Session{}).
		Where("is_active = ? AND expires_at <= ?", true, now.UTC()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, wrapErr("purge sessions", res.Error)
	}
	return res.RowsAffected, nil
}
