package session

import (
	"context"
)

// Credentials exposes the token of the session carried by the request
// context to the API client. Clearing it destroys that session.
type Credentials struct {
	manager *Manager
}

func NewCredentials(m *Manager) *Credentials {
	return &Credentials{manager: m}
}

func (c *Credentials) Token(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.Token
}

func (c *Credentials) Clear(ctx context.Context) error {
	s, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return c.manager.Destroy(ctx, s.ID)
}
