// Package security extracts session identities from client tokens and
// handles the in-memory obfuscation of platform credentials.
package security

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/joescharf/sessionhub/internal/errors"
)

const (
	obfuscationKey byte = 0x5A
	defaultIssuer       = "sessionhub"
	defaultTTL          = 24 * time.Hour
)

// Guard parses and issues session tokens.
type Guard struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithSecret sets the HS256 signing secret. An empty secret is ignored.
func WithSecret(secret string) Option {
	return func(g *Guard) {
		if secret != "" {
			g.secret = []byte(secret)
		}
	}
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithNowTime overrides the clock used for issuing and validating tokens.
func WithNowTime(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard returns a Guard. Without WithSecret a random per-process secret
// is generated, so issued tokens stop validating after a restart.
func NewGuard(opts ...Option) (*Guard, error) {
	g := &Guard{
		ttl:    defaultTTL,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.secret) == 0 {
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return g, nil
}

// ParseToken extracts a session id from a bare UUID or a signed token.
// A leading "Bearer " is ignored.
func (g *Guard) ParseToken(token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return uuid.Nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "empty token")
	}

	if id, err := uuid.Parse(token); err == nil {
		return id, nil
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	},
		jwt.WithIssuer(g.issuer),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperrors.ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "subject %q", claims.Subject)
	}
	return id, nil
}

// IssueToken returns an HS256 token whose subject is the session id.
func (g *Guard) IssueToken(id uuid.UUID) (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		Issuer:    g.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Obfuscate XORs every byte with a fixed key. It hides credentials from
// casual inspection only and is not encryption.
func (g *Guard) Obfuscate(b []byte) []byte {
	return xor(b)
}

// Deobfuscate reverses Obfuscate.
func (g *Guard) Deobfuscate(b []byte) []byte {
	return xor(b)
}

// ObfuscateCredentials converts plain credentials into their stored form.
func (g *Guard) ObfuscateCredentials(creds map[string]string) map[string][]byte {
	if len(creds) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(creds))
	for k, v := range creds {
		out[k] = xor([]byte(v))
	}
	return out
}

func xor(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ obfuscationKey
	}
	return out
}
