package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrWrongMatch = errors.New("token was issued for another match")

// Claims identify the scorer of one match.
type Claims struct {
	MatchID string `json:"mid"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
}

func NewService(secret []byte) *Service {
	return &Service{secret: secret}
}

// Sign issues a scorer token for matchID.
func (s *Service) Sign(matchID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		MatchID: matchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "scorer",
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) Verify(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// VerifyFor checks token and that it was issued for matchID.
func (s *Service) VerifyFor(token, matchID string) (*Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.MatchID != matchID {
		return nil, ErrWrongMatch
	}
	return claims, nil
}
