package database

import (
	"context"
	"sort"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/services"
)

// SaveMessage проверяет получателя и мут отправителя, затем пишет сообщение.
// Истёкший мут снимается здесь же.
func (d *Database) SaveMessage(ctx context.Context, senderID, receiverID int64, text string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, models.Validationf("cannot send a message to yourself")
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sender models.User
		if err := tx.First(&sender, "id = ?", senderID).Error; err != nil {
			return err
		}
		now := d.now()
		if sender.MuteActive(now) {
			return models.ErrMuted
		}
		if sender.IsMuted {
			if err := tx.Model(&models.User{}).
				Where("id = ?", senderID).
				Updates(map[string]any{"is_muted": false, "mute_until": nil}).Error; err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", receiverID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrNotFound
		}

		message.CreatedAt = now
		return tx.Omit(clause.Associations).Create(message).Error
	})
	if err != nil {
		return nil, wrapErr("save message", err)
	}
	return message, nil
}

// GetHistory возвращает последние limit сообщений пары от старых к новым
// и помечает прочитанными входящие сообщения от otherID.
func (d *Database) GetHistory(ctx context.Context, requesterID, otherID int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				requesterID, otherID, otherID, requesterID).
			Order("id DESC").
			Limit(limit).
			Preload("Sender").
			Find(&messages).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Message{}).
			Where("receiver_id = ? AND sender_id = ? AND is_read = ?", requesterID, otherID, false).
			Update("is_read", true).Error
	})
	if err != nil {
		return nil, wrapErr("get history", err)
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

type conversationRow struct {
	CounterpartID int64
	LastID        int64
	Unread        int64
}

// ListConversations собирает по каждому собеседнику последнее сообщение
// и число непрочитанных. Заблокированные собеседники не попадают в список.
func (d *Database) ListConversations(ctx context.Context, userID int64, previewLength int) ([]services.ConversationSummary, error) {
	db := d.db.WithContext(ctx)

	var rows []conversationRow
	err := db.Raw(`
		SELECT
			CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS counterpart_id,
			MAX(id) AS last_id,
			SUM(CASE WHEN receiver_id = ? AND is_read = ? THEN 1 ELSE 0 END) AS unread
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		GROUP BY counterpart_id`,
		userID, userID, false, userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapErr("list conversations", err)
	}
	if len(rows) == 0 {
		return []services.ConversationSummary{}, nil
	}

	lastIDs := make([]int64, 0, len(rows))
	counterpartIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		lastIDs = append(lastIDs, r.LastID)
		counterpartIDs = append(counterpartIDs, r.CounterpartID)
	}

	var lastMessages []models.Message
	if err := db.Where("id IN ?", lastIDs).Find(&lastMessages).Error; err != nil {
		return nil, wrapErr("list conversations", err)
	}
	byID := make(map[int64]models.Message, len(lastMessages))
	for _, m := range lastMessages {
		byID[m.ID] = m
	}

	var users []models.User
	if err := db.Where("id IN ? AND is_blocked = ?", counterpartIDs, false).Find(&users).Error; err != nil {
		return nil, wrapErr("list conversations", err)
	}
	counterparts := make(map[int64]models.User, len(users))
	for _, u := range users {
		counterparts[u.ID] = u
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].LastID > rows[j].LastID })

	conversations := make([]services.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		u, ok := counterparts[r.CounterpartID]
		if !ok {
			continue
		}
		last := byID[r.LastID]
		conversations = append(conversations, services.ConversationSummary{
			UserID:          u.ID,
			Username:        u.Username,
			Tag:             u.Tag,
			IsOnline:        u.IsOnline,
			LastMessage:     Preview(last.Text, previewLength),
			LastMessageTime: last.CreatedAt,
			UnreadCount:     r.Unread,
		})
	}
	return conversations, nil
}

// Preview обрезает текст до n символов и добавляет многоточие.
func Preview(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}
