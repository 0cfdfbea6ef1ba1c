package middleware

import (
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

// Nonce actions
const (
	ActionAnalyze  = "aico_analyze_content"
	ActionSettings = "aico_settings"
)

// ErrInvalidNonce is returned for a missing, expired, forged or mismatched nonce.
var ErrInvalidNonce = errors.New("invalid nonce")

// ErrContentTooLong is returned by ValidateInput.
var ErrContentTooLong = errors.New("content too long")

type nonceClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// NonceManager issues and verifies anti-forgery tokens bound to a session
// and an action. Tokens are HS256 JWTs.
type NonceManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceManager creates a nonce manager. An empty secret is replaced by a
// random one, which invalidates outstanding nonces on restart.
func NewNonceManager(secret string, ttl time.Duration, logger *logrus.Logger) (*NonceManager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate nonce secret: %w", err)
		}
		logger.Warn("No nonce secret configured, using a random one")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NonceManager{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue creates a nonce for the given session and action
func (m *NonceManager) Issue(session, action string) (string, error) {
	now := m.now()
	claims := nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks that nonce was issued for this session and action and has not expired
func (m *NonceManager) Verify(nonce, session, action string) error {
	if nonce == "" || session == "" {
		return ErrInvalidNonce
	}

	var claims nonceClaims
	_, err := jwt.ParseWithClaims(nonce, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}

	if claims.Subject != session || claims.Action != action {
		return ErrInvalidNonce
	}
	return nil
}

// SecurityMiddleware provides input checks and output sanitizing
type SecurityMiddleware struct {
	maxContent int
	policy     *bluemonday.Policy
	strict     *bluemonday.Policy
	logger     *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(maxContent int, logger *logrus.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		maxContent: maxContent,
		policy:     bluemonday.UGCPolicy(),
		strict:     bluemonday.StrictPolicy(),
		logger:     logger,
	}
}

// ValidateInput performs input validation
func (s *SecurityMiddleware) ValidateInput(text string) error {
	if s.maxContent > 0 && len(text) > s.maxContent {
		return fmt.Errorf("%w: %d bytes", ErrContentTooLong, len(text))
	}
	return nil
}

// SanitizeOutput strips markup outside the post-content allow list
func (s *SecurityMiddleware) SanitizeOutput(html string) string {
	return s.policy.Sanitize(html)
}

// SanitizeInput reduces submitted content to plain text: tags are removed
// and runs of whitespace, line breaks included, collapse to one space.
func (s *SecurityMiddleware) SanitizeInput(text string) string {
	plain := html.UnescapeString(s.strict.Sanitize(text))
	return strings.Join(strings.Fields(plain), " ")
}
