package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"moneybook/internal/core"
)

// ErrNotLoggedIn is returned by commands that need a stored token.
var ErrNotLoggedIn = errors.New("please login first using 'moneybook-cli login'")

// Profile is what the command line client keeps between runs.
type Profile struct {
	APIURL  string    `json:"api_url"`
	Token   string    `json:"token,omitempty"`
	User    core.User `json:"user,omitempty"`
	SavedAt time.Time `json:"saved_at,omitempty"`
}

// FileCredentials stores the profile as JSON on disk and serves its token to
// the API client. Clearing happens in place so a rejected token is never
// sent twice.
type FileCredentials struct {
	mu      sync.Mutex
	path    string
	profile Profile
}

// DefaultCredentialsPath returns <user config dir>/moneybook/cli.json.
func DefaultCredentialsPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "moneybook", "cli.json"), nil
}

// LoadFileCredentials reads the profile at path. A missing file yields an
// empty profile.
func LoadFileCredentials(path string) (*FileCredentials, error) {
	c := &FileCredentials{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &c.profile); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", path, err)
	}
	return c, nil
}

func (c *FileCredentials) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

func (c *FileCredentials) Token(context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Token
}

// Clear forgets the token and user but keeps the API URL.
func (c *FileCredentials) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile.Token = ""
	c.profile.User = core.User{}
	c.profile.SavedAt = time.Time{}
	return c.saveLocked()
}

// Save stores a fresh sign-in.
func (c *FileCredentials) Save(apiURL, token string, user core.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u := strings.TrimSpace(apiURL); u != "" {
		c.profile.APIURL = u
	}
	c.profile.Token = token
	c.profile.User = user
	c.profile.SavedAt = time.Now().UTC()
	return c.saveLocked()
}

// RequireToken fails with ErrNotLoggedIn when no token is stored.
func (c *FileCredentials) RequireToken() error {
	if strings.TrimSpace(c.Token(context.Background())) == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *FileCredentials) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(c.profile, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, c.path)
}
