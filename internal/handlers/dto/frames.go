package dto

import (
	"strings"
)

// Типы входящих кадров. Клиенты шлют их и через дефис, и через
// подчёркивание; NormalizeType приводит к подчёркиванию.
const (
	TypeRegister         = "register"
	TypeLogin            = "login"
	TypeSession          = "session"
	TypeSessionResume    = "session_resume"
	TypeSendMessage      = "send_message"
	TypeMessage          = "message"
	TypeGetConversations = "get_conversations"
	TypeGetChatHistory   = "get_chat_history"
	TypeGetHistory       = "get_history"
	TypeSearchUsers      = "search_users"
	TypeGetUsers         = "get_users"
	TypeUpdateProfile    = "update_profile"
	TypeAdminSearch      = "admin_search_users"
	TypeAdminBan         = "admin_ban_user"
	TypeAdminMute        = "admin_mute_user"
	TypeAdminUnban       = "admin_unban_user"
	TypeAdminUnmute      = "admin_unmute_user"
	TypeAdminPromote     = "admin_promote_user"
	TypeAdminDemote      = "admin_demote_user"
	TypeAdminAuditLog    = "admin_audit_log"
	TypeAdminStats       = "admin_stats"
	TypeLogout           = "logout"
	TypePing             = "ping"
)

// Типы исходящих кадров.
const (
	TypeRegisterSuccess    = "register_success"
	TypeLoginSuccess       = "login_success"
	TypeError              = "error"
	TypeProfileData        = "profile_data"
	TypeProfileUpdated     = "profile_updated"
	TypeNewMessage         = "new_message"
	TypeMessageSent        = "message_sent"
	TypeUsersList          = "users_list"
	TypeSearchResults      = "search_results"
	TypeConversationsList  = "conversations_list"
	TypeChatHistory        = "chat_history"
	TypeAdminSearchResults = "admin_search_results"
	TypeAdminActionResult  = "admin_action_result"
	TypeAdminAuditEntries  = "admin_audit_log"
	TypeAdminStatsResult   = "admin_stats"
	TypeLoggedOut          = "logged_out"
	TypePong               = "pong"
)

// Envelope - общая часть любого кадра.
type Envelope struct {
	Type string `json:"type"`
}

func NormalizeType(t string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), "-", "_")
}
