package integrations

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSource mints short-lived HS256 service tokens for collaborator calls
// and caches them until shortly before expiry.
type tokenSource struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(signingKey, issuer string) *tokenSource {
	return &tokenSource{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        5 * time.Minute,
	}
}

func (s *tokenSource) bearer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Refresh a minute early so an in-flight request never carries an
	// expired token.
	if s.token != "" && time.Until(s.expires) > time.Minute {
		return s.token, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	s.token = signed
	s.expires = now.Add(s.ttl)
	return signed, nil
}
