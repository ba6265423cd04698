package dto

import (
	"time"

	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/services"
)

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewError(err error) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: models.PublicMessage(err), Code: models.Code(err)}
}

type AuthSuccess struct {
	Type         string    `json:"type"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Tag          string    `json:"tag"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsAdmin      bool      `json:"is_admin"`
	IsOwner      bool      `json:"is_owner"`
	IsBlocked    bool      `json:"is_blocked"`
	IsMuted      bool      `json:"is_muted"`
	Message      string    `json:"message"`
}

func NewAuthSuccess(frameType string, r *services.AuthResult, message string) AuthSuccess {
	return AuthSuccess{
		Type:         frameType,
		UserID:       r.User.ID,
		Username:     r.User.Username,
		Tag:          r.User.Tag,
		SessionToken: r.Token,
		ExpiresAt:    r.ExpiresAt,
		IsAdmin:      r.User.Role.IsAdmin(),
		IsOwner:      r.User.Role.IsOwner(),
		IsBlocked:    r.User.IsBlocked,
		IsMuted:      r.User.MuteActive(time.Now()),
		Message:      message,
	}
}

type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Tag       string    `json:"tag"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Bio       *string   `json:"bio"`
	IsAdmin   bool      `json:"is_admin"`
	IsOwner   bool      `json:"is_owner"`
	IsMuted   bool      `json:"is_muted"`
	CreatedAt time.Time `json:"created_at"`
}

func NewProfile(u *models.User) *Profile {
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		Tag:       u.Tag,
		Email:     u.Email,
		Phone:     u.Phone,
		Bio:       u.Bio,
		IsAdmin:   u.Role.IsAdmin(),
		IsOwner:   u.Role.IsOwner(),
		IsMuted:   u.MuteActive(time.Now()),
		CreatedAt: u.CreatedAt,
	}
}

type ProfileData struct {
	Type    string   `json:"type"`
	Profile *Profile `json:"profile"`
}

type ProfileUpdated struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
	Error   string   `json:"error,omitempty"`
	Code    string   `json:"code,omitempty"`
}

type UserItem struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
	IsOnline bool   `json:"is_online"`
}

func NewUserItems(users []services.UserSummary) []UserItem {
	items := make([]UserItem, 0, len(users))
	for _, u := range users {
		items = append(items, UserItem{ID: u.ID, Username: u.Username, Tag: u.Tag, IsOnline: u.IsOnline})
	}
	return items
}

type UsersList struct {
	Type  string     `json:"type"`
	Users []UserItem `json:"users"`
}

type SearchResults struct {
	Type  string     `json:"type"`
	Query string     `json:"query"`
	Users []UserItem `json:"users"`
}

type Conversation struct {
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	Tag             string    `json:"tag"`
	IsOnline        bool      `json:"is_online"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int64     `json:"unread_count"`
}

type ConversationsList struct {
	Type          string         `json:"type"`
	Conversations []Conversation `json:"conversations"`
}

func NewConversationsList(convs []services.ConversationSummary) ConversationsList {
	out := make([]Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, Conversation{
			UserID:          c.UserID,
			Username:        c.Username,
			Tag:             c.Tag,
			IsOnline:        c.IsOnline,
			LastMessage:     c.LastMessage,
			LastMessageTime: c.LastMessageTime,
			UnreadCount:     c.UnreadCount,
		})
	}
	return ConversationsList{Type: TypeConversationsList, Conversations: out}
}

type HistoryMessage struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`
	SenderName string    `json:"sender_name"`
	SenderTag  string    `json:"sender_tag"`
}

type ChatHistory struct {
	Type     string           `json:"type"`
	UserID   int64            `json:"user_id"`
	Messages []HistoryMessage `json:"messages"`
}

func NewChatHistory(otherID int64, msgs []models.Message) ChatHistory {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			Timestamp:  m.CreatedAt,
			IsRead:     m.IsRead,
			SenderName: m.Sender.Username,
			SenderTag:  m.Sender.Tag,
		})
	}
	return ChatHistory{Type: TypeChatHistory, UserID: otherID, Messages: out}
}

type NewMessage struct {
	Type       string    `json:"type"`
	MessageID  int64     `json:"message_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderTag  string    `json:"sender_tag"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type MessageSent struct {
	Type       string    `json:"type"`
	MessageID  int64     `json:"message_id"`
	ReceiverID int64     `json:"receiver_id"`
	Timestamp  time.Time `json:"timestamp"`
}

type AdminUser struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Tag       string     `json:"tag"`
	Email     *string    `json:"email"`
	IsOnline  bool       `json:"is_online"`
	IsBlocked bool       `json:"is_blocked"`
	BanReason string     `json:"ban_reason,omitempty"`
	BanUntil  *time.Time `json:"ban_until,omitempty"`
	IsMuted   bool       `json:"is_muted"`
	MuteUntil *time.Time `json:"mute_until,omitempty"`
	IsAdmin   bool       `json:"is_admin"`
	IsOwner   bool       `json:"is_owner"`
	CreatedAt time.Time  `json:"created_at"`
}

type AdminSearchResults struct {
	Type  string      `json:"type"`
	Users []AdminUser `json:"users"`
}

func NewAdminSearchResults(users []models.User) AdminSearchResults {
	out := make([]AdminUser, 0, len(users))
	for _, u := range users {
		out = append(out, AdminUser{
			ID:        u.ID,
			Username:  u.Username,
			Tag:       u.Tag,
			Email:     u.Email,
			IsOnline:  u.IsOnline,
			IsBlocked: u.IsBlocked,
			BanReason: u.BanReason,
			BanUntil:  u.BanUntil,
			IsMuted:   u.IsMuted,
			MuteUntil: u.MuteUntil,
			IsAdmin:   u.Role.IsAdmin(),
			IsOwner:   u.Role.IsOwner(),
			CreatedAt: u.CreatedAt,
		})
	}
	return AdminSearchResults{Type: TypeAdminSearchResults, Users: out}
}

type AdminActionResult struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id,omitempty"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"actor_id"`
	Action    string    `json:"action"`
	TargetID  *int64    `json:"target_id"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminAuditLog struct {
	Type    string       `json:"type"`
	Entries []AuditEntry `json:"entries"`
}

func NewAdminAuditLog(entries []models.AuditLog) AdminAuditLog {
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntry{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			TargetID:  e.TargetID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return AdminAuditLog{Type: TypeAdminAuditEntries, Entries: out}
}

type AdminStats struct {
	Type           string `json:"type"`
	Users          int64  `json:"users"`
	Online         int64  `json:"online"`
	Connected      int    `json:"connected"`
	Blocked        int64  `json:"blocked"`
	Muted          int64  `json:"muted"`
	Messages       int64  `json:"messages"`
	ActiveSessions int64  `json:"active_sessions"`
}

// Simple - кадр без полей, кроме type.
type Simple struct {
	Type string `json:"type"`
}
