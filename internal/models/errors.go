package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrDuplicateIdentity     = errors.New("username or tag is already taken")
	ErrNotFound              = errors.New("user not found")
	ErrInvalidCredential     = errors.New("invalid password")
	ErrBlocked               = errors.New("account is blocked")
	ErrSessionInvalid        = errors.New("session expired or invalid")
	ErrFieldConflict         = errors.New("field already in use")
	ErrInsufficientPrivilege = errors.New("insufficient privileges")
	ErrProtectedTarget       = errors.New("the owner cannot be moderated")
	ErrMuted                 = errors.New("you are muted and cannot send messages")
	ErrRateLimited           = errors.New("too many messages, slow down")
	ErrStorage               = errors.New("storage failure")
)

// BlockedError описывает действующий бан.
type BlockedError struct {
	Reason string
	Until  *time.Time
}

func (e *BlockedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrBlocked.Error())
	if e.Until != nil {
		b.WriteString(" until ")
		b.WriteString(e.Until.UTC().Format(time.RFC3339))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// FieldConflictError перечисляет все поля профиля, занятые другими пользователями.
type FieldConflictError struct {
	Fields []string
}

func (e *FieldConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFieldConflict.Error(), strings.Join(e.Fields, ", "))
}

func (e *FieldConflictError) Is(target error) bool {
	return target == ErrFieldConflict
}

// Validationf оборачивает ErrValidation с пояснением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageError оборачивает ошибку хранилища в ErrStorage, не теряя исходную.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation_error"},
	{ErrDuplicateIdentity, "duplicate_identity"},
	{ErrNotFound, "not_found"},
	{ErrInvalidCredential, "invalid_credential"},
	{ErrBlocked, "blocked"},
	{ErrSessionInvalid, "session_invalid"},
	{ErrFieldConflict, "field_conflict"},
	{ErrInsufficientPrivilege, "insufficient_privilege"},
	{ErrProtectedTarget, "protected_target"},
	{ErrMuted, "muted"},
	{ErrRateLimited, "rate_limited"},
	{ErrStorage, "storage_failure"},
}

// Known сообщает, принадлежит ли err таксономии ошибок протокола.
func Known(err error) bool {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return true
		}
	}
	return false
}

// Code возвращает машиночитаемый код ошибки для клиента.
// Всё, что не входит в таксономию, считается сбоем хранилища.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "storage_failure"
}

// PublicMessage возвращает текст ошибки, который можно показать клиенту.
// Детали сбоев хранилища наружу не уходят.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrStorage) || !Known(err) {
		return "internal server error, try again later"
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return blocked.Error()
	}
	var conflict *FieldConflictError
	if errors.As(err, &conflict) {
		return conflict.Error()
	}
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return err.Error()
}
