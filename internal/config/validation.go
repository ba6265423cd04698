package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("AUTH_SESSION_TTL must be positive"))
	}
	// bcrypt не принимает пароли длиннее 72 байт
	if c.Auth.MinPasswordLength < 1 || c.Auth.MinPasswordLength > 72 {
		errs = append(errs, errors.New("AUTH_MIN_PASSWORD_LENGTH must be in [1, 72]"))
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, errors.New("STORAGE_DSN is required"))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.ReadLimit <= 0 {
		errs = append(errs, errors.New("SERVER_READ_LIMIT must be positive"))
	}
	if c.Server.SendQueueSize <= 0 {
		errs = append(errs, errors.New("SERVER_SEND_QUEUE_SIZE must be positive"))
	}
	if c.Server.PongWait <= 0 || c.Server.WriteWait <= 0 {
		errs = append(errs, errors.New("SERVER_PONG_WAIT and SERVER_WRITE_WAIT must be positive"))
	}

	if c.Limits.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("LIMITS_MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.Limits.MaxUsernameLength <= 0 {
		errs = append(errs, errors.New("LIMITS_MAX_USERNAME_LENGTH must be positive"))
	}
	if c.Limits.MessagesPerMinute < 0 {
		errs = append(errs, errors.New("LIMITS_MESSAGES_PER_MINUTE must not be negative"))
	}
	if c.Limits.HistoryLimit <= 0 || c.Limits.SearchLimit <= 0 || c.Limits.PreviewLength <= 0 {
		errs = append(errs, errors.New("LIMITS_HISTORY_LIMIT, LIMITS_SEARCH_LIMIT and LIMITS_PREVIEW_LENGTH must be positive"))
	}

	if c.Maintenance.SweepInterval <= 0 {
		errs = append(errs, errors.New("MAINTENANCE_SWEEP_INTERVAL must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
