package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	identityIssuer = "wirechat-relay"
	keyInfo        = "wirechat-relay identity cookie v1"
	keySize        = 32
)

var (
	// ErrInvalidIdentity is returned for tokens that fail signature, expiry or subject checks.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Claims represents the identity cookie payload. Subject carries the owner id.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer mints and verifies the signed anonymous identity tokens stored in the
// identity cookie.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer derives the signing key from secret. An empty secret yields a
// random per-process key, which invalidates identities on restart.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	ikm := []byte(secret)
	if len(ikm) == 0 {
		ikm = make([]byte, keySize)
		if _, err := rand.Read(ikm); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL reports how long issued identities stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a fresh owner id and its signed token.
func (i *Issuer) Issue() (token, ownerID string, err error) {
	ownerID = uuid.NewString()
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    identityIssuer,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", "", fmt.Errorf("sign identity: %w", err)
	}
	return token, ownerID, nil
}

// Verify parses a token and returns the owner id it carries.
func (i *Issuer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.key, nil
	},
		jwt.WithIssuer(identityIssuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidIdentity
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: subject is not a uuid", ErrInvalidIdentity)
	}
	return claims.Subject, nil
}
