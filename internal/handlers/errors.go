package handlers

import (
	"errors"

	"github.com/thereayou/artem-chat/internal/models"
)

// isInternal отличает сбои сервера от отказов по правилам протокола.
func isInternal(err error) bool {
	return errors.Is(err, models.ErrStorage) || !models.Known(err)
}
