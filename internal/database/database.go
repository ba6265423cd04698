package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/thereayou/artem-chat/internal/services"
)

var _ services.Store = (*Database)(nil)

// Database реализует services.Store поверх gorm.
type Database struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Ping проверяет доступность БД.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return wrapErr("ping", err)
	}
	return wrapErr("ping", sqlDB.PingContext(ctx))
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
