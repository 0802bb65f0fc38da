package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dashEditor/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// ErrorWithCode 返回带业务错误码的错误响应。
func ErrorWithCode(c *gin.Context, status int, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.Unauthorized})
}

func Unauthorized(c *gin.Context)           { ErrorWithCode(c, http.StatusUnauthorized, errcode.Unauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)   { ErrorWithCode(c, http.StatusNotFound, errcode.ResourceMissing, msg) }
func Conflict(c *gin.Context, msg string)   { ErrorWithCode(c, http.StatusConflict, errcode.HistoryExhausted, msg) }
func Internal(c *gin.Context, msg string)   { ErrorWithCode(c, http.StatusInternalServerError, errcode.SystemError, msg) }
func Unavailable(c *gin.Context, msg string) {
	ErrorWithCode(c, http.StatusServiceUnavailable, errcode.SystemError, msg)
}
