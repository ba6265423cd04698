package database

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/internal/services"
)

// CreateUser проверяет уникальность username/tag и вставляет запись в одной транзакции.
// Уникальные индексы страхуют от гонки между проверкой и вставкой.
func (d *Database) CreateUser(ctx context.Context, user *models.User) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR tag = ?", user.Username, user.Tag).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicateIdentity
		}

		var conflicts []string
		if user.Email != nil {
			if taken, err := columnTaken(tx, "email", *user.Email, 0); err != nil {
				return err
			} else if taken {
				conflicts = append(conflicts, "email")
			}
		}
		if user.Phone != nil {
			if taken, err := columnTaken(tx, "phone", *user.Phone, 0); err != nil {
				return err
			} else if taken {
				conflicts = append(conflicts, "phone")
			}
		}
		if len(conflicts) > 0 {
			return &models.FieldConflictError{Fields: conflicts}
		}

		if err := tx.Create(user).Error; err != nil {
			if isDuplicate(err) {
				return models.ErrDuplicateIdentity
			}
			return err
		}
		return nil
	})
	return wrapErr("create user", err)
}

// FindUserByIdentifier ищет по username, tag или email (точное совпадение).
func (d *Database) FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	user := models.User{}
	err := d.db.WithContext(ctx).
		Where("username = ? OR tag = ? OR email = ?", identifier, identifier, identifier).
		Order("id").
		First(&user).Error
	if err != nil {
		return nil, wrapErr("find user", err)
	}
	return &user, nil
}

func (d *Database) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

func (d *Database) HasOwner(ctx context.Context) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleOwner).Count(&count).Error
	if err != nil {
		return false, wrapErr("count owners", err)
	}
	return count > 0, nil
}

// LiftExpiredBan снимает временный бан, если срок истёк к моменту now.
func (d *Database) LiftExpiredBan(ctx context.Context, userID int64, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_blocked = ? AND ban_until IS NOT NULL AND ban_until <= ?", userID, true, now.UTC()).
		Updates(map[string]any{"is_blocked": false, "ban_reason": "", "ban_until": nil})
	if res.Error != nil {
		return false, wrapErr("lift ban", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (d *Database) SetOnline(ctx context.Context, userID int64, online bool) error {
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_online": online, "last_seen_at": d.now()}).Error
	return wrapErr("set online", err)
}

// ResetPresence сбрасывает флаги онлайна, оставшиеся после падения процесса.
func (d *Database) ResetPresence(ctx context.Context) error {
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		Update("is_online", false).Error
	return wrapErr("reset presence", err)
}

// UpdateProfile применяет только присутствующие поля. Пустое значение
// очищает email, phone и bio; username очистить нельзя.
func (d *Database) UpdateProfile(ctx context.Context, userID int64, upd services.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, models.Validationf("no fields to update")
	}
	if upd.Username.Set && strings.TrimSpace(upd.Username.Value) == "" {
		return nil, models.Validationf("username cannot be empty")
	}

	user := models.User{}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		var conflicts []string
		unique := func(column string, field services.OptionalString) error {
			if !field.Set {
				return nil
			}
			value := strings.TrimSpace(field.Value)
			if value == "" {
				updates[column] = nil
				return nil
			}
			taken, err := columnTaken(tx, column, value, userID)
			if err != nil {
				return err
			}
			if taken {
				conflicts = append(conflicts, column)
			}
			updates[column] = value
			return nil
		}

		for _, f := range []struct {
			column string
			value  services.OptionalString
		}{
			{"username", upd.Username},
			{"email", upd.Email},
			{"phone", upd.Phone},
		} {
			if err := unique(f.column, f.value); err != nil {
				return err
			}
		}
		if len(conflicts) > 0 {
			return &models.FieldConflictError{Fields: conflicts}
		}

		if upd.Bio.Set {
			if upd.Bio.Value == "" {
				updates["bio"] = nil
			} else {
				updates["bio"] = upd.Bio.Value
			}
		}

		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return &models.FieldConflictError{Fields: setColumns(updates)}
			}
			return err
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, wrapErr("update profile", err)
	}
	return &user, nil
}

// SearchUsers ищет по подстроке username или tag без учёта регистра,
// исключая самого пользователя и заблокированных.
func (d *Database) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]services.UserSummary, error) {
	pattern := likePattern(query)
	var users []services.UserSummary
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Select("id", "username", "tag", "is_online").
		Where("(LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(tag) LIKE ? ESCAPE '\\')", pattern, pattern).
		Where("id <> ? AND is_blocked = ?", excludeID, false).
		Order("username").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, wrapErr("search users", err)
	}
	return users, nil
}

// AdminSearchUsers ищет по username, tag и email, включая заблокированных.
func (d *Database) AdminSearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := likePattern(query)
	var users []models.User
	err := d.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(tag) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern).
		Order("id").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, wrapErr("admin search users", err)
	}
	return users, nil
}

func columnTaken(tx *gorm.DB, column, value string, excludeID int64) (bool, error) {
	var count int64
	err := tx.Model(&models.User{}).
		Where(column+" = ? AND id <> ?", value, excludeID).
		Count(&count).Error
	return count > 0, err
}

func setColumns(updates map[string]any) []string {
	var columns []string
	for _, c := range []string{"username", "email", "phone"} {
		if v, ok := updates[c]; ok && v != nil {
			columns = append(columns, c)
		}
	}
	return columns
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}
