package services

import (
	"context"
	"time"

	"github.com/thereayou/artem-chat/internal/models"
)

// Store описывает всё, что сервер хранит в реляционной БД.
// Реализация: database.Database.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	HasOwner(ctx context.Context) (bool, error)
	LiftExpiredBan(ctx context.Context, userID int64, now time.Time) (bool, error)

	OpenSession(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.Session, error)
	FindSession(ctx context.Context, token string) (*models.Session, error)
	EndSession(ctx context.Context, token string) error
	SetOnline(ctx context.Context, userID int64, online bool) error

	UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*models.User, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]UserSummary, error)
	ListConversations(ctx context.Context, userID int64, previewLength int) ([]ConversationSummary, error)
	GetHistory(ctx context.Context, requesterID, otherID int64, limit int) ([]models.Message, error)
	SaveMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error)

	AdminSearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	BanUser(ctx context.Context, callerID, targetID int64, reason string, until *time.Time) (*models.User, error)
	UnbanUser(ctx context.Context, callerID, targetID int64) (*models.User, error)
	MuteUser(ctx context.Context, callerID, targetID int64, until *time.Time) (*models.User, error)
	UnmuteUser(ctx context.Context, callerID, targetID int64) (*models.User, error)
	SetRole(ctx context.Context, callerID, targetID int64, role models.Role) (*models.User, error)
	WriteAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error)
	Stats(ctx context.Context) (*Stats, error)

	ExpireModeration(ctx context.Context, now time.Time) (bans, mutes int64, err error)
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	ResetPresence(ctx context.Context) error
	Ping(ctx context.Context) error
}

// UserSummary - запись в списке пользователей и результатах поиска.
type UserSummary struct {
	ID       int64
	Username string
	Tag      string
	IsOnline bool
}

type ConversationSummary struct {
	UserID          int64
	Username        string
	Tag             string
	IsOnline        bool
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int64
}

type Stats struct {
	Users          int64
	Online         int64
	Blocked        int64
	Muted          int64
	Messages       int64
	ActiveSessions int64
}
