package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess = "access"
	editorSubject   = "editor"
)

// ErrInvalidPassword 密码不匹配。
var ErrInvalidPassword = errors.New("invalid password")

// AuthService 负责校验编辑密码并签发、校验 JWT。
type AuthService struct {
	passwordHash string
	secret       []byte
	tokenTTL     time.Duration
}

// TokenClaims 表示 JWT 中的业务字段。
type TokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewAuthService 使用 bcrypt 哈希与 HMAC 密钥构造服务实例。
func NewAuthService(passwordHash, secret string, tokenTTL time.Duration) (*AuthService, error) {
	if passwordHash == "" {
		return nil, errors.New("password hash is required")
	}
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if tokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &AuthService{
		passwordHash: passwordHash,
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
	}, nil
}

// Login 校验密码并签发访问令牌。
func (s *AuthService) Login(password string) (string, error) {
	if !CheckPasswordHash(password, s.passwordHash) {
		return "", ErrInvalidPassword
	}
	return s.GenerateToken()
}

// GenerateToken 创建访问令牌。
func (s *AuthService) GenerateToken() (string, error) {
	now := time.Now()
	claims := TokenClaims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   editorSubject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken 解析并验证 JWT。
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeAccess {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// TokenTTL 暴露访问令牌有效期。
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
