package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thereayou/artem-chat/internal/models"
)

// wrapErr оставляет ошибки протокола как есть, not found переводит в ErrNotFound,
// остальное считает сбоем хранилища.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case models.Known(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	default:
		return models.StorageError(op, err)
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
