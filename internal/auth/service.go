// Package auth reads the signed-in identity from the identity provider's
// ID token and keeps it in the secrets file.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the ID token fields the client reads. The signature is
// verified by the practice server, not here.
type Claims struct {
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	IsVIP         bool   `json:"is_vip"`
	jwt.RegisteredClaims
}

// ParseIDToken decodes an ID token without verifying its signature.
func ParseIDToken(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	if claims.UID() == "" {
		return nil, errors.New("parse id token: no subject")
	}
	return claims, nil
}

// UID returns the user id, preferring the provider-specific claim.
func (c *Claims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// User converts the claims into the domain identity.
func (c *Claims) User() *domain.User {
	u := &domain.User{
		UID:           c.UID(),
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		IsVIP:         c.IsVIP,
	}
	if c.ExpiresAt != nil {
		u.ExpiresAt = c.ExpiresAt.Time
	}
	return u
}

// Provider is the identity read capability handed to sessions. It also
// supplies the bearer token to the API client.
type Provider struct {
	store  CredentialStore
	logger *slog.Logger

	mu     sync.RWMutex
	loaded bool
	token  string
	user   *domain.User
}

// NewProvider creates a provider backed by store.
func NewProvider(store CredentialStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, logger: logger}
}

func (p *Provider) load() {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return
	}
	p.loaded = true

	creds, err := p.store.Load()
	if err != nil {
		p.logger.Warn("load credentials", "error", err)
		return
	}
	if creds.IDToken == "" {
		return
	}
	claims, err := ParseIDToken(creds.IDToken)
	if err != nil {
		p.logger.Warn("stored id token unreadable", "error", err)
		return
	}
	p.token = creds.IDToken
	p.user = claims.User()
}

// CurrentUser returns the signed-in user, if any.
func (p *Provider) CurrentUser() (*domain.User, bool) {
	p.load()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil, false
	}
	u := *p.user
	return &u, true
}

// Token returns the bearer token for API requests.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.load()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", domain.ErrNotAuthenticated
	}
	if p.user != nil && p.user.IsExpired() {
		p.logger.Debug("id token expired", "uid", p.user.UID, "expired_at", p.user.ExpiresAt.Format(time.RFC3339))
	}
	return p.token, nil
}

// SignIn stores a new ID token and switches identity to it.
func (p *Provider) SignIn(token string) (*domain.User, error) {
	claims, err := ParseIDToken(token)
	if err != nil {
		return nil, err
	}
	user := claims.User()
	if err := p.store.Save(&Credentials{IDToken: token, Email: user.Email}); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	p.mu.Lock()
	p.loaded = true
	p.token = token
	p.user = user
	p.mu.Unlock()

	p.logger.Info("signed in", "uid", user.UID, "vip", user.IsVIP)
	u := *user
	return &u, nil
}

// SignOut forgets the stored identity.
func (p *Provider) SignOut() error {
	if err := p.store.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	p.mu.Lock()
	p.loaded = true
	p.token = ""
	p.user = nil
	p.mu.Unlock()
	return nil
}

// Static is a fixed identity, used by tests and the MCP server when a
// user id is supplied directly.
type Static struct {
	User *domain.User
}

func (s Static) CurrentUser() (*domain.User, bool) {
	if s.User == nil {
		return nil, false
	}
	u := *s.User
	return &u, true
}
