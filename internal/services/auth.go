package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"moneybook/internal/api"
	"moneybook/internal/cache"
	"moneybook/internal/core"
	"moneybook/internal/events"
	"moneybook/internal/log"
	"moneybook/internal/session"
)

const (
	minPasswordLength = 6

	// DefaultVerifyInterval bounds how often a session's token is
	// re-checked against /auth/me.
	DefaultVerifyInterval = 5 * time.Minute
)

// AuthService signs users in and out and keeps their sessions in step with
// the API.
type AuthService struct {
	api      AuthAPI
	sessions *session.Manager
	notifier *events.Notifier
	logger   *log.Logger
	verified *cache.LRUCache[struct{}]
}

func NewAuthService(a AuthAPI, sessions *session.Manager, notifier *events.Notifier, logger *log.Logger, verifyInterval time.Duration) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	if verifyInterval <= 0 {
		verifyInterval = DefaultVerifyInterval
	}
	return &AuthService{
		api:      a,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentAuth),
		verified: cache.NewLRUCache[struct{}](4096, verifyInterval),
	}
}

// VerifiedCache exposes the verification memory for periodic cleanup.
func (s *AuthService) VerifiedCache() cache.Cleaner {
	return s.verified
}

func (s *AuthService) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.Session{}, invalid(ErrMissingCredentials)
	}
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldErrorKind, errorKind(err),
			log.FieldError, err)
		return session.Session{}, err
	}
	sess, err := s.start(ctx, res)
	if err != nil {
		return session.Session{}, err
	}
	s.notifier.Notify(ctx, events.UserLogin, "", sess.User.ID)
	return sess, nil
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (session.Session, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return session.Session{}, invalid(err)
	}
	res, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Registration rejected",
			log.FieldOperation, log.OpRegister,
			log.FieldErrorKind, errorKind(err),
			log.FieldError, err)
		return session.Session{}, err
	}
	sess, err := s.start(ctx, res)
	if err != nil {
		return session.Session{}, err
	}
	s.notifier.Notify(ctx, events.UserRegister, sess.User.ID, sess.User.ID)
	return sess, nil
}

func (s *AuthService) start(ctx context.Context, res api.AuthResult) (session.Session, error) {
	if strings.TrimSpace(res.Token) == "" {
		return session.Session{}, ErrMissingToken
	}
	sess, err := s.sessions.Start(ctx, res.Token, res.User)
	if err != nil {
		return session.Session{}, fmt.Errorf("start session: %w", err)
	}
	s.verified.Set(sess.ID, struct{}{})
	return sess, nil
}

// Logout forgets the session. The API has no server-side logout.
func (s *AuthService) Logout(ctx context.Context, sess session.Session) error {
	s.verified.Delete(sess.ID)
	if err := s.sessions.Destroy(ctx, sess.ID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, events.UserLogout, "", sess.User.ID)
	return nil
}

// Verify re-validates the session token with the API at most once per
// verify interval and refreshes the cached user. A rejected token destroys
// the session; transient failures keep it.
func (s *AuthService) Verify(ctx context.Context, sess session.Session) (session.Session, error) {
	if _, ok := s.verified.Get(sess.ID); ok {
		return sess, nil
	}
	user, err := s.api.Me(session.WithSession(ctx, sess))
	switch {
	case err == nil:
	case api.IsUnauthorized(err) || api.StatusCode(err) == 404:
		s.verified.Delete(sess.ID)
		if derr := s.sessions.Destroy(ctx, sess.ID); derr != nil {
			s.logger.WarnContext(ctx, "Failed to destroy rejected session",
				log.FieldSessionID, sess.ID,
				log.FieldError, derr)
		}
		return session.Session{}, err
	default:
		s.logger.WarnContext(ctx, "Token verification unavailable, keeping session",
			log.FieldOperation, log.OpVerify,
			log.FieldSessionID, sess.ID,
			log.FieldErrorKind, errorKind(err),
			log.FieldError, err)
		return sess, nil
	}
	if user.ID != "" && user != sess.User {
		if err := s.sessions.UpdateUser(ctx, sess.ID, user); err != nil && !errors.Is(err, session.ErrNotFound) {
			return sess, fmt.Errorf("update session user: %w", err)
		}
		sess.User = user
	}
	s.verified.Set(sess.ID, struct{}{})
	return sess, nil
}

// RefreshUser reloads the profile from the API unconditionally.
func (s *AuthService) RefreshUser(ctx context.Context, sess session.Session) (core.User, error) {
	user, err := s.api.Me(session.WithSession(ctx, sess))
	if err != nil {
		return core.User{}, err
	}
	if err := s.sessions.UpdateUser(ctx, sess.ID, user); err != nil {
		return core.User{}, fmt.Errorf("update session user: %w", err)
	}
	return user, nil
}

func validateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func errorKind(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return "local"
}
