// Package logger оборачивает zerolog.Logger и добавляет конструкторы,
// которыми пользуется весь сервер.
package logger

import (
	"context"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger встраивает zerolog.Logger, так что весь API zerolog доступен напрямую.
type Logger struct {
	zerolog.Logger
}

// NewLogger создаёт JSON-логгер в stdout с полем role, временем и именем функции.
func NewLogger(role string) *Logger {
	return New(os.Stdout, role, "info", false)
}

// New создаёт логгер с заданным уровнем. pretty включает человекочитаемый вывод.
func New(w io.Writer, role, level string, pretty bool) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}
}

// ParseLevel понимает имена уровней zerolog; неизвестное значение даёт info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Nop возвращает логгер, который ничего не пишет. Для тестов.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// WithStr возвращает дочерний логгер с дополнительным строковым полем.
func (l *Logger) WithStr(key, value string) *Logger {
	return &Logger{l.With().Str(key, value).Logger()}
}

// WithContext кладёт логгер в ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext достаёт логгер, положенный через WithContext.
// Если логгера нет, zerolog вернёт глобальный, nil не бывает.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
