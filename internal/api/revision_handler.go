package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dashEditor/internal/api/middleware"
	"dashEditor/internal/database"
)

// RevisionLister 由 *database.Journal 实现。
type RevisionLister interface {
	List(ctx context.Context, limit int) ([]database.Revision, error)
	Get(ctx context.Context, id uint) (*database.Revision, error)
}

// RevisionHandler 暴露写入日志。
type RevisionHandler struct {
	journal RevisionLister
}

// NewRevisionHandler 构造处理器。
func NewRevisionHandler(journal RevisionLister) *RevisionHandler {
	return &RevisionHandler{journal: journal}
}

type revisionSummary struct {
	ID            uint      `json:"id"`
	Revision      uint64    `json:"revision"`
	EventType     string    `json:"event_type"`
	Origin        string    `json:"origin"`
	Description   string    `json:"description"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Size          int       `json:"size"`
	Valid         bool      `json:"valid"`
	CreatedAt     time.Time `json:"created_at"`
}

func summarize(row database.Revision) revisionSummary {
	return revisionSummary{
		ID:            row.ID,
		Revision:      row.Revision,
		EventType:     row.EventType,
		Origin:        row.Origin,
		Description:   row.Description,
		CorrelationID: row.CorrelationID,
		Size:          row.Size,
		Valid:         row.Valid,
		CreatedAt:     row.CreatedAt,
	}
}

// ListRevisions 返回最近的写入记录。
func (h *RevisionHandler) ListRevisions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	rows, err := h.journal.List(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list revisions failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]revisionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summarize(row))
	}
	c.JSON(http.StatusOK, gin.H{"revisions": out})
}

// GetRevisionContent 返回某次写入的原始文本。
func (h *RevisionHandler) GetRevisionContent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid revision id")
		return
	}

	row, err := h.journal.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "revision not found")
			return
		}
		middleware.LoggerFromContext(c).Error("get revision failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", []byte(row.Content))
}
