package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"maintenance-panel-backend/internal/model"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

var (
	ErrEmailTaken         = errors.New("identity: email already registered")
	ErrInvalidEmail       = errors.New("identity: invalid email address")
	ErrWeakPassword       = fmt.Errorf("identity: password must be at least %d characters", MinPasswordLength)
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	ErrSessionNotFound    = errors.New("identity: session not found or expired")
)

// Session is an authenticated browser or API session.
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Provider begins, registers and ends sessions.
type Provider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	Lookup(ctx context.Context, token string) (*Session, error)
}

// gormProvider keeps accounts in the database and sessions in memory.
type gormProvider struct {
	db       *gorm.DB
	sessions *cache.Cache
	ttl      time.Duration
	now      func() time.Time
}

// NewGormProvider creates a provider whose sessions expire after ttl.
func NewGormProvider(db *gorm.DB, ttl time.Duration) Provider {
	return &gormProvider{
		db:       db,
		sessions: cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
		now:      time.Now,
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// SignUp registers a new account and opens a session for it.
func (p *gormProvider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return p.open(user), nil
}

// SignIn checks the credentials and opens a session.
func (p *gormProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var user model.User
	if err := p.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.open(user), nil
}

// SignOut ends the session. Unknown tokens are not an error.
func (p *gormProvider) SignOut(_ context.Context, token string) error {
	p.sessions.Delete(token)
	return nil
}

// Lookup returns the live session for token.
func (p *gormProvider) Lookup(_ context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	v, found := p.sessions.Get(token)
	if !found {
		return nil, ErrSessionNotFound
	}
	session := v.(Session)
	return &session, nil
}

func (p *gormProvider) open(user model.User) *Session {
	session := Session{
		Token:       uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ExpiresAt:   p.now().Add(p.ttl).UTC(),
	}
	p.sessions.Set(session.Token, session, p.ttl)
	return &session
}
