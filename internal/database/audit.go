package database

import (
	"context"

	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/services"
)

func (d *Database) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	return wrapErr("write audit", d.db.WithContext(ctx).Create(entry).Error)
}

// ListAudit возвращает последние записи журнала, новые первыми.
func (d *Database) ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := d.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, wrapErr("list audit", err)
	}
	return entries, nil
}

func (d *Database) Stats(ctx context.Context) (*services.Stats, error) {
	db := d.db.WithContext(ctx)
	stats := &services.Stats{}

	counts := []struct {
		model any
		where string
		args  []any
		dst   *int64
	}{
		{&models.User{}, "", nil, &stats.Users},
		{&models.User{}, "is_online = ?", []any{true}, &stats.Online},
		{&models.User{}, "is_blocked = ?", []any{true}, &stats.Blocked},
		{&models.User{}, "is_muted = ?", []any{true}, &stats.Muted},
		{&models.Message{}, "", nil, &stats.Messages},
		{&models.Session{}, "is_active = ? AND expires_at > ?", []any{true, d.now()}, &stats.ActiveSessions},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, wrapErr("stats", err)
		}
	}
	return stats, nil
}
