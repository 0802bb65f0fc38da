package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dashEditor/internal/api/middleware"
	"dashEditor/internal/auth"
)

const defaultLoginRateLimitPerHour = 10

// AuthHandler 处理编辑密码登录。
type AuthHandler struct {
	authService           *auth.AuthService
	redis                 redisRateCounter
	logger                *slog.Logger
	loginRateLimitPerHour int
}

// NewAuthHandler 构造认证处理器。redisClient 为 nil 时不做登录限流。
func NewAuthHandler(authService *auth.AuthService, redisClient redisRateCounter, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService:           authService,
		redis:                 redisClient,
		logger:                logger,
		loginRateLimitPerHour: defaultLoginRateLimitPerHour,
	}
}

type loginRequest struct {
	Password string `json:"password" binding:"required,max=72"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login 校验密码并返回访问令牌。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	// 速率限制：每 IP 每小时 loginRateLimitPerHour 次
	if h.redis != nil {
		rateKey := "rate:login:" + c.ClientIP() + ":" + time.Now().UTC().Format("2006010215")
		count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
		if err != nil {
			logger.Warn("login rate counter unavailable", slog.Any("error", err))
			count = 0
		}
		if count > int64(h.loginRateLimitPerHour) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
	}

	token, err := h.authService.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			logger.Info("login failed: password mismatch")
			Unauthorized(c)
			return
		}
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.TokenTTL().Seconds()),
	})
}
