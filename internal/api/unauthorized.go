package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/sync/singleflight"

	"moneybook/internal/cache"
	"moneybook/internal/log"
)

const (
	handledTokens   = 1024
	handledTokenTTL = 10 * time.Minute
)

// unauthorizedGate runs the logout for a rejected token exactly once, however
// many requests carrying that token fail concurrently or later.
type unauthorizedGate struct {
	c       *Client
	group   singleflight.Group
	handled *cache.LRUCache[struct{}]
}

func newUnauthorizedGate(c *Client) *unauthorizedGate {
	return &unauthorizedGate{
		c:       c,
		handled: cache.NewLRUCache[struct{}](handledTokens, handledTokenTTL),
	}
}

// logout clears the credentials and runs the hook for token. It reports
// whether this call performed the logout.
func (g *unauthorizedGate) logout(ctx context.Context, token string) bool {
	key := tokenKey(token)
	if _, done := g.handled.Get(key); done {
		return false
	}
	// The first caller may return before the others; its cancellation must
	// not abort the logout they are waiting on.
	ctx = context.WithoutCancel(ctx)
	performed := false
	g.group.Do(key, func() (any, error) {
		if _, done := g.handled.Get(key); done {
			return nil, nil
		}
		performed = true
		if g.c.credentials != nil {
			if err := g.c.credentials.Clear(ctx); err != nil {
				g.c.logger.WarnContext(ctx, "Failed to clear credentials",
					log.FieldOperation, log.OpLogout,
					log.FieldError, err)
			}
		}
		g.handled.Set(key, struct{}{})
		g.c.metrics.logout()
		g.c.logger.InfoContext(ctx, "Token rejected, credentials cleared",
			log.FieldOperation, log.OpLogout)
		if g.c.onUnauthorized != nil {
			g.c.onUnauthorized(ctx, token)
		}
		return nil, nil
	})
	return performed
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
