package models

import (
	"time"
)

type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	Username     string  `gorm:"size:64;uniqueIndex;not null"`
	Tag          string  `gorm:"size:65;uniqueIndex;not null"`
	PasswordHash string  `gorm:"not null"`
	Email        *string `gorm:"size:255;uniqueIndex"`
	Phone        *string `gorm:"size:32;uniqueIndex"`
	Bio          *string `gorm:"size:1024"`
	IsOnline     bool    `gorm:"not null;default:false"`
	Role         Role    `gorm:"not null;default:0"`

	// Модерация
	IsBlocked bool `gorm:"not null;default:false;index"`
	BanReason string
	BanUntil  *time.Time // nil при is_blocked = бессрочный бан
	IsMuted   bool       `gorm:"not null;default:false"`
	MuteUntil *time.Time // nil при is_muted = бессрочный мут

	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BanActive сообщает, действует ли бан на момент now.
func (u *User) BanActive(now time.Time) bool {
	if !u.IsBlocked {
		return false
	}
	return u.BanUntil == nil || now.Before(*u.BanUntil)
}

// MuteActive сообщает, действует ли мут на момент now.
func (u *User) MuteActive(now time.Time) bool {
	if !u.IsMuted {
		return false
	}
	return u.MuteUntil == nil || now.Before(*u.MuteUntil)
}
