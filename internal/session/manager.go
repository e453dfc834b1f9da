package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"moneybook/internal/core"
	"moneybook/internal/log"
)

const (
	DefaultCookieName = "moneybook_session"
	DefaultTTL        = 24 * time.Hour
)

// ErrExpired is returned by Load for a session past its expiry.
var ErrExpired = errors.New("session expired")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	CookieName   string
	CookieSecure bool
	TTL          time.Duration
}

// Manager issues and resolves browser sessions.
type Manager struct {
	store  Store
	cfg    ManagerConfig
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewManager(store Store, cfg ManagerConfig, logger *log.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentSession),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (m *Manager) Store() Store {
	return m.store
}

func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Start creates a session for token. The session expires with the token
// when it carries an exp claim, otherwise after the configured TTL.
func (m *Manager) Start(ctx context.Context, token string, user core.User) (Session, error) {
	now := m.now()
	expires := now.Add(m.cfg.TTL)
	if exp, ok := TokenExpiry(token); ok {
		expires = exp
	}
	if !expires.After(now) {
		return Session{}, ErrExpired
	}
	s := Session{
		ID:        m.newID(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: expires,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session started",
		log.FieldSessionID, s.ID,
		log.FieldUserID, user.ID,
		"expires_at", expires.Format(time.RFC3339))
	return s, nil
}

// Load resolves the session named by the request cookie. Expired sessions
// are deleted and reported as ErrExpired.
func (m *Manager) Load(r *http.Request) (Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return Session{}, err
	}
	return m.Get(r.Context(), c.Value)
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "Failed to delete expired session",
				log.FieldSessionID, id,
				log.FieldError, err)
		}
		return Session{}, ErrExpired
	}
	return s, nil
}

func (m *Manager) UpdateUser(ctx context.Context, id string, u core.User) error {
	return m.store.UpdateUser(ctx, id, u)
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session destroyed", log.FieldSessionID, id)
	return nil
}

// Sweep removes every expired session and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// Cookie returns the cookie carrying s.
func (m *Manager) Cookie(s Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpireCookie returns a cookie that removes the session cookie.
func (m *Manager) ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenExpiry returns the exp claim of a JWT without verifying its
// signature. The API verifies tokens; the client only needs to know how long
// to keep the session.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
