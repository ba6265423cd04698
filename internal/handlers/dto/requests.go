package dto

type RegisterRequest struct {
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type SessionRequest struct {
	SessionToken string `json:"session_token"`
}

type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"text"`
}

type HistoryRequest struct {
	UserID int64 `json:"user_id"`
	Limit  int   `json:"limit"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type TargetRequest struct {
	UserID int64 `json:"user_id"`
}

// BanRequest: duration_days отсутствует - 1 день, 0 - навсегда.
type BanRequest struct {
	UserID       int64  `json:"user_id"`
	Reason       string `json:"reason"`
	DurationDays *int   `json:"duration_days"`
}

// MuteRequest: duration_hours отсутствует - 1 час, 0 - бессрочно.
type MuteRequest struct {
	UserID        int64 `json:"user_id"`
	DurationHours *int  `json:"duration_hours"`
}

type AuditLogRequest struct {
	Limit int `json:"limit"`
}
