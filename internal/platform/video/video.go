package video

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService mints signed room tokens for the hosted SFU. The SFU validates
// the signature with the shared secret; no media goes through this service.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

var ErrNotConfigured = errors.New("sfu token secret not configured")

func New(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) Configured() bool {
	return len(s.secret) > 0
}

type roomClaims struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Moderate bool   `json:"moderator"`
	jwt.RegisteredClaims
}

// RoomToken issues a join token for one room. Moderator is set for the halaqa's
// teacher and for managers so the SFU grants mute/kick controls.
func (s *TokenService) RoomToken(room, identity, displayName string, moderator bool) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	now := time.Now()
	claims := roomClaims{
		Room:     room,
		Identity: identity,
		Name:     displayName,
		Moderate: moderator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Subject:   identity,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
