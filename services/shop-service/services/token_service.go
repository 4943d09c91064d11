package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yashrajoria/shopnow-backend/services/common/auth"
)

// TokenClaims are the fields read back from a session token.
type TokenClaims struct {
	UserID   string
	Role     string
	IssuedAt int64
}

// TokenService is responsible for creating and validating JWTs.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	clock     func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secretKey: []byte(secret), ttl: ttl, clock: time.Now}
}

// TTL is how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs an access token for the user.
func (s *TokenService) Generate(userID, role string) (string, error) {
	now := s.clock()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"typ":  auth.TokenTypeAccess,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Validate parses an access token and returns its claims.
func (s *TokenService) Validate(tokenStr string) (*TokenClaims, error) {
	claims, err := auth.ParseAndValidateToken(s.secretKey, tokenStr, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("invalid token: sub claim is missing")
	}
	role, _ := claims["role"].(string)
	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid token: iat claim is missing")
	}
	return &TokenClaims{UserID: sub, Role: role, IssuedAt: int64(iat)}, nil
}
