package models

import (
	"time"
)

// Действия, попадающие в журнал аудита.
const (
	AuditRegister = "register"
	AuditLogin    = "login"
	AuditBan      = "ban"
	AuditUnban    = "unban"
	AuditMute     = "mute"
	AuditUnmute   = "unmute"
	AuditPromote  = "promote"
	AuditDemote   = "demote"
)

type AuditLog struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ActorID   int64  `gorm:"not null;index"`
	Action    string `gorm:"size:32;not null"`
	TargetID  *int64 `gorm:"index"`
	Details   string
	CreatedAt time.Time `gorm:"index"`
}
