package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultHostTokenTTL = 24 * time.Hour

var ErrInvalidHostToken = errors.New("invalid host token")

type HostClaims struct {
	GameID string `json:"game_id"`
	HostID string `json:"host_id"`
	jwt.RegisteredClaims
}

// HostTokens signs and verifies the bearer token handed to a game's host.
type HostTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHostTokens(secret string, ttl time.Duration) *HostTokens {
	if ttl <= 0 {
		ttl = defaultHostTokenTTL
	}
	return &HostTokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *HostTokens) Issue(gameID, hostID string) (string, error) {
	now := t.now()
	claims := HostClaims{
		GameID: gameID,
		HostID: hostID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   hostID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign host token: %w", err)
	}
	return signed, nil
}

func (t *HostTokens) Parse(token string) (*HostClaims, error) {
	claims := &HostClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHostToken, err)
	}
	return claims, nil
}
