package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/models"
	"github.com/thereayou/artem-chat/pkg/auth"
)

// bcrypt обрезает пароль после 72 байт
const maxPasswordBytes = 72

type AuthOptions struct {
	MinPasswordLength int
	MaxUsernameLength int
}

type RegisterRequest struct {
	Username string
	Tag      string
	Password string
	Email    string
	Phone    string
}

// AuthResult возвращается после успешной регистрации, входа или восстановления сессии.
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// AuthService реализует регистрацию, вход и восстановление сессии поверх Store.
type AuthService struct {
	store  Store
	hasher *auth.PasswordHasher
	tokens *auth.JWTManager
	opts   AuthOptions
	log    *logger.Logger
	now    func() time.Time
}

func NewAuthService(store Store, hasher *auth.PasswordHasher, tokens *auth.JWTManager, opts AuthOptions, log *logger.Logger) *AuthService {
	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// NormalizeTag добавляет ведущий @, если его нет.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.HasPrefix(tag, "@") {
		return tag
	}
	return "@" + tag
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	tag := NormalizeTag(req.Tag)
	if username == "" || tag == "" || tag == "@" || req.Password == "" {
		return nil, models.Validationf("username, tag and password are required")
	}
	if err := s.validateUsername(username); err != nil {
		return nil, err
	}
	if strings.IndexFunc(tag, unicode.IsSpace) >= 0 {
		return nil, models.Validationf("tag must not contain spaces")
	}
	if err := s.validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, models.StorageError("hash password", err)
	}

	user := &models.User{
		Username:     username,
		Tag:          tag,
		PasswordHash: hash,
		Email:        optional(req.Email),
		Phone:        optional(req.Phone),
		Role:         models.RoleMember,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditRegister, nil, "")
	s.log.Info().Int64("user_id", user.ID).Str("tag", user.Tag).Msg("user registered")

	return s.openSession(ctx, user)
}

// Login ищет пользователя по username, tag или email.
// Порядок проверок: не найден, заблокирован, неверный пароль.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.Validationf("identifier and password are required")
	}

	user, err := s.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := s.checkBan(ctx, user); err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredential
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, models.AuditLogin, nil, "")
	return result, nil
}

// Resume восстанавливает сессию по токену. Срок, активность и бан
// проверяются при каждом вызове.
func (s *AuthService) Resume(ctx context.Context, token string) (*AuthResult, error) {
	if token == "" {
		return nil, models.ErrSessionInvalid
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, models.ErrSessionInvalid
	}

	session, err := s.store.FindSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionInvalid
		}
		return nil, err
	}
	if session.UserID != userID || !session.Valid(s.now()) {
		return nil, models.ErrSessionInvalid
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionInvalid
		}
		return nil, err
	}
	if err := s.checkBan(ctx, user); err != nil {
		if errors.Is(err, models.ErrBlocked) {
			return nil, models.ErrSessionInvalid
		}
		return nil, err
	}

	if err := s.store.SetOnline(ctx, user.ID, true); err != nil {
		return nil, err
	}
	user.IsOnline = true

	return &AuthResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout деактивирует сессию.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.store.EndSession(ctx, token)
}

// EnsureOwner создаёт владельца, если в базе его ещё нет.
func (s *AuthService) EnsureOwner(ctx context.Context, username, tag, password string) (bool, error) {
	exists, err := s.store.HasOwner(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash owner password: %w", err)
	}
	owner := &models.User{
		Username:     strings.TrimSpace(username),
		Tag:          NormalizeTag(tag),
		PasswordHash: hash,
		Role:         models.RoleOwner,
	}
	if err := s.store.CreateUser(ctx, owner); err != nil {
		return false, fmt.Errorf("create owner: %w", err)
	}
	s.log.Info().Int64("user_id", owner.ID).Str("tag", owner.Tag).Msg("owner account created")
	return true, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, models.StorageError("issue token", err)
	}
	if _, err := s.store.OpenSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, err
	}
	user.IsOnline = true
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// checkBan возвращает BlockedError для действующего бана
// и снимает истёкший временный бан.
func (s *AuthService) checkBan(ctx context.Context, user *models.User) error {
	if !user.IsBlocked {
		return nil
	}
	now := s.now()
	if user.BanActive(now) {
		return &models.BlockedError{Reason: user.BanReason, Until: user.BanUntil}
	}
	if _, err := s.store.LiftExpiredBan(ctx, user.ID, now); err != nil {
		return err
	}
	user.IsBlocked = false
	user.BanReason = ""
	user.BanUntil = nil
	return nil
}

func (s *AuthService) validateUsername(username string) error {
	if s.opts.MaxUsernameLength > 0 && utf8.RuneCountInString(username) > s.opts.MaxUsernameLength {
		return models.Validationf("username must be at most %d characters", s.opts.MaxUsernameLength)
	}
	return nil
}

func (s *AuthService) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < s.opts.MinPasswordLength {
		return models.Validationf("password must be at least %d characters", s.opts.MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return models.Validationf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func (s *AuthService) audit(ctx context.Context, actorID int64, action string, targetID *int64, details string) {
	entry := &models.AuditLog{ActorID: actorID, Action: action, TargetID: targetID, Details: details}
	if err := s.store.WriteAudit(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// ValidateUsername доступна обновлению профиля.
func (s *AuthService) ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return models.Validationf("username cannot be empty")
	}
	return s.validateUsername(username)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
