package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"dashEditor/internal/api/middleware"
	"dashEditor/internal/codec"
	"dashEditor/internal/document"
	"dashEditor/internal/editor"
	"dashEditor/internal/errcode"
	"dashEditor/internal/history"
)

const maxRawTextBytes = 1 << 20

// Editor 由 *editor.Coordinator 实现。
type Editor interface {
	GetDocument() editor.State
	GetRawText() string
	Exists() bool
	EnsureInitialBackup() (bool, error)
	ApplyStructuredEdit(ctx context.Context, doc document.Document, description string) error
	ApplyRawTextEdit(ctx context.Context, text string) (*codec.DecodeError, error)
	Flush(ctx context.Context) error
	Undo(ctx context.Context) (bool, error)
	Redo(ctx context.Context) (bool, error)
	History() []history.Entry
}

// ConfigHandler 暴露配置文件的读取、编辑与撤销/重做。
type ConfigHandler struct {
	editor Editor
	logger *slog.Logger
}

// NewConfigHandler 构造处理器。
func NewConfigHandler(e Editor, logger *slog.Logger) *ConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigHandler{editor: e, logger: logger}
}

type stateResponse struct {
	Code int `json:"code"`
	editor.State
	Exists bool `json:"exists"`
}

func (h *ConfigHandler) state() stateResponse {
	state := h.editor.GetDocument()
	code := errcode.OK
	if state.DecodeError != nil {
		code = errcode.DecodeFailed
	}
	return stateResponse{Code: code, State: state, Exists: h.editor.Exists()}
}

// GetConfig 返回当前文档、原始文本以及解析错误。
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	resp := h.state()
	if !resp.Exists && resp.Document == nil && resp.RawText == "" {
		NotFound(c, "configuration file not found")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRawText 返回原始文本。
func (h *ConfigHandler) GetRawText(c *gin.Context) {
	if !h.editor.Exists() && h.editor.GetRawText() == "" {
		NotFound(c, "configuration file not found")
		return
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", []byte(h.editor.GetRawText()))
}

// GetExists 报告配置文件是否存在。
func (h *ConfigHandler) GetExists(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"exists": h.editor.Exists()})
}

type structuredEditRequest struct {
	Document    *document.Document `json:"document" binding:"required"`
	Description string             `json:"description" binding:"max=255"`
}

// PutConfig 提交结构化编辑，写盘在防抖窗口结束后进行。
func (h *ConfigHandler) PutConfig(c *gin.Context) {
	var req structuredEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Description == "" {
		req.Description = "Edit"
	}

	err := h.editor.ApplyStructuredEdit(c.Request.Context(), *req.Document, req.Description)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, h.state())
	case errors.Is(err, document.ErrInvalidDocument):
		ErrorWithCode(c, http.StatusBadRequest, errcode.InvalidDocument, err.Error())
	case errors.Is(err, editor.ErrClosed):
		Unavailable(c, "editor is shutting down")
	default:
		h.internalError(c, "apply structured edit failed", err)
	}
}

// PutRawText 直接写入请求体中的文本。文本无法解析时仍会保存，
// 响应中的 decode_error 描述错误位置。
func (h *ConfigHandler) PutRawText(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRawTextBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, "configuration text too large")
			return
		}
		BadRequest(c, "read request body failed")
		return
	}

	decodeErr, err := h.editor.ApplyRawTextEdit(c.Request.Context(), string(body))
	if err != nil {
		if errors.Is(err, editor.ErrClosed) {
			Unavailable(c, "editor is shutting down")
			return
		}
		h.internalError(c, "apply raw text edit failed", err)
		return
	}
	if decodeErr != nil {
		middleware.LoggerFromContext(c).Info("raw text saved with decode error",
			slog.String("kind", decodeErr.Kind),
			slog.Int("line", decodeErr.Line),
		)
	}
	c.JSON(http.StatusOK, h.state())
}

// Flush 立即写入尚未保存的结构化编辑。
func (h *ConfigHandler) Flush(c *gin.Context) {
	if err := h.editor.Flush(c.Request.Context()); err != nil {
		h.internalError(c, "flush failed", err)
		return
	}
	c.JSON(http.StatusOK, h.state())
}

// EnsureInitialBackup 在初始备份缺失时创建它。
func (h *ConfigHandler) EnsureInitialBackup(c *gin.Context) {
	created, err := h.editor.EnsureInitialBackup()
	if err != nil {
		h.internalError(c, "ensure initial backup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// GetHistory 返回历史条目。
func (h *ConfigHandler) GetHistory(c *gin.Context) {
	state := h.editor.GetDocument()
	c.JSON(http.StatusOK, gin.H{
		"entries":  h.editor.History(),
		"can_undo": state.CanUndo,
		"can_redo": state.CanRedo,
	})
}

// Undo 回到上一个历史快照。
func (h *ConfigHandler) Undo(c *gin.Context) {
	h.navigate(c, "undo", h.editor.Undo)
}

// Redo 前进到下一个历史快照。
func (h *ConfigHandler) Redo(c *gin.Context) {
	h.navigate(c, "redo", h.editor.Redo)
}

func (h *ConfigHandler) navigate(c *gin.Context, action string, fn func(context.Context) (bool, error)) {
	moved, err := fn(c.Request.Context())
	if err != nil {
		h.internalError(c, action+" failed", err)
		return
	}
	if !moved {
		Conflict(c, "nothing to "+action)
		return
	}
	c.JSON(http.StatusOK, h.state())
}

func (h *ConfigHandler) internalError(c *gin.Context, msg string, err error) {
	middleware.LoggerFromContext(c).Error(msg, slog.Any("error", err))
	Internal(c, err.Error())
}
