package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storytime-api/internal/domain"
)

const (
	tokenCacheTTL     = 30 * time.Second
	tokenCacheMaxSize = 4096
)

type tokenCacheEntry struct {
	user      *domain.SupabaseUser
	expiresAt time.Time
}

type authService struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	now            func() time.Time

	tokenCacheMu sync.RWMutex
	tokenCache   map[string]tokenCacheEntry
}

func NewAuthService(
	supabaseClient domain.SupabaseClient,
	logger domain.Logger,
) *authService {
	return &authService{
		supabaseClient: supabaseClient,
		logger:         logger,
		now:            time.Now,
		tokenCache:     make(map[string]tokenCacheEntry),
	}
}

// ValidateToken validates a token and returns the user it belongs to.
// Successful validations are cached briefly to spare Supabase Auth round trips.
func (s *authService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	key := tokenKey(token)
	now := s.now()

	s.tokenCacheMu.RLock()
	entry, ok := s.tokenCache[key]
	s.tokenCacheMu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.user, nil
	}

	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Warn("Token validation failed", "error", err.Error())
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.tokenCacheMu.Lock()
	if len(s.tokenCache) >= tokenCacheMaxSize {
		for k, e := range s.tokenCache {
			if !now.Before(e.expiresAt) {
				delete(s.tokenCache, k)
			}
		}
		if len(s.tokenCache) >= tokenCacheMaxSize {
			s.tokenCache = make(map[string]tokenCacheEntry)
		}
	}
	s.tokenCache[key] = tokenCacheEntry{user: user, expiresAt: cacheExpiry(token, now)}
	s.tokenCacheMu.Unlock()

	return user, nil
}

// cacheExpiry is when a validation of token made at now stops being reused:
// tokenCacheTTL later, or the token's own exp if that comes first.
func cacheExpiry(token string, now time.Time) time.Time {
	expiresAt := now.Add(tokenCacheTTL)

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return expiresAt
	}
	if exp := claims.ExpiresAt.Time; exp.Before(expiresAt) {
		return exp
	}
	return expiresAt
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
