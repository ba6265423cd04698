package models

import (
	"time"
)

type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	SenderID   int64     `gorm:"not null;index:idx_messages_pair,priority:1"`
	ReceiverID int64     `gorm:"not null;index:idx_messages_pair,priority:2;index"`
	Text       string    `gorm:"not null"`
	IsRead     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"index"`

	// Связи
	Sender   User `gorm:"foreignKey:SenderID"`
	Receiver User `gorm:"foreignKey:ReceiverID"`
}
