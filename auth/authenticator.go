package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/users"
)

var DefaultCacheEntryExpiration = 5 * time.Minute

// JWTAuthenticator verifies the signature and loads the user so that deleted users and
// role changes take effect.
type JWTAuthenticator struct {
	tokens *TokenManager
	users  users.Repository
}

var _ Authenticator = &JWTAuthenticator{}

func NewJWTAuthenticator(tokens *TokenManager, users users.Repository) *JWTAuthenticator {
	return &JWTAuthenticator{tokens: tokens, users: users}
}

func (j *JWTAuthenticator) ValidateAndSetAuthData(token string, ec echo.Context) (bool, error) {
	claims, err := j.tokens.Parse(token)
	if err != nil {
		return false, err
	}

	user, err := j.users.Get(ec.Request().Context(), claims.Id)
	if err != nil {
		return false, ErrUnauthenticated
	}

	SetAuthData(ec, &Auth{
		SubjectId: user.Id.Hex(),
		Role:      string(user.Role),
		Name:      user.Name,
	})
	return true, nil
}

// NewAuthenticator returns a jwt authenticator that caches verified tokens
func NewAuthenticator(cfg *config.Config, tokens *TokenManager, users users.Repository) (Authenticator, error) {
	return NewCachingAuthenticator(
		cfg.TokenCacheSize,
		DefaultCacheEntryExpiration,
		NewJWTAuthenticator(tokens, users),
		func(a *Auth) bool { return a != nil },
	)
}

type CacheEntry struct {
	token  string
	auth   *Auth
	expiry time.Time
}

func (c CacheEntry) IsExpired() bool {
	return time.Now().After(c.expiry)
}

type CachingAuthenticator struct {
	delegate    Authenticator
	expiration  time.Duration
	lru         *simplelru.LRU
	mu          *sync.Mutex
	shouldCache func(*Auth) bool
}

var _ Authenticator = &CachingAuthenticator{}

func NewCachingAuthenticator(size int, expiration time.Duration, delegate Authenticator, shouldCache func(*Auth) bool) (*CachingAuthenticator, error) {
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, err
	}

	return &CachingAuthenticator{
		delegate:    delegate,
		expiration:  expiration,
		lru:         lru,
		mu:          &sync.Mutex{},
		shouldCache: shouldCache,
	}, nil
}

func (c *CachingAuthenticator) ValidateAndSetAuthData(token string, ec echo.Context) (bool, error) {
	if entry := c.getCachedEntry(token); entry != nil {
		SetAuthData(ec, entry.auth)
		return true, nil
	}

	res, err := c.delegate.ValidateAndSetAuthData(token, ec)
	if err != nil || !res {
		return res, err
	}

	if auth := GetAuthData(ec.Request().Context()); c.shouldCache(auth) {
		c.setCacheEntry(CacheEntry{
			token:  token,
			auth:   auth,
			expiry: time.Now().Add(c.expiration),
		})
	}

	return res, nil
}

func (c *CachingAuthenticator) getCachedEntry(token string) *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lru.Get(token); ok {
		entry := e.(CacheEntry)
		if entry.IsExpired() {
			c.lru.Remove(token)
			return nil
		}
		return &entry
	}

	return nil
}

func (c *CachingAuthenticator) setCacheEntry(entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.lru.Add(entry.token, entry)
}
