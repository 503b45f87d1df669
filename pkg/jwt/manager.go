package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// ActorClaims JWT 페이로드: 사용자 ID(sub)와 역할
type ActorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GetActorID returns the subject
func (c *ActorClaims) GetActorID() string {
	return c.Subject
}

// Manager HMAC JWT 발급/검증
type Manager struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// NewManager JWT 매니저 생성
func NewManager(secret, issuer string) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		issuer:    issuer,
		now:       time.Now,
	}
}

// IssueToken signs a token for the actor, valid for ttl
func (m *Manager) IssueToken(actorID, role string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// VerifyToken 토큰 검증
func (m *Manager) VerifyToken(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
