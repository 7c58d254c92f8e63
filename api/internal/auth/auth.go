// Package auth issues and checks the "<id>:<email>:<ts>:<hmac>" user tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = 30 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID int64
	Email  string
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
}

// WithClock replaces the time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func (s *Signer) Issue(userID int64, email string) string {
	data := fmt.Sprintf("%d:%s:%d", userID, email, s.now().Unix())
	return data + ":" + s.sign(data)
}

// Verify accepts tokens that are correctly signed and younger than the TTL.
func (s *Signer) Verify(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) != 4 {
		return Claims{}, ErrInvalidToken
	}
	data := strings.Join(parts[:3], ":")
	if !hmac.Equal([]byte(parts[3]), []byte(s.sign(data))) {
		return Claims{}, ErrInvalidToken
	}
	uid, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if s.now().Unix()-ts > int64(s.ttl/time.Second) {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: uid, Email: parts[1]}, nil
}

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPassword is the unsalted SHA-256 hex digest stored in users.password_hash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
