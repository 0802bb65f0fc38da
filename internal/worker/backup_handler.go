package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"dashEditor/internal/storage"
	"dashEditor/internal/tasks"
)

const backupContentType = "application/yaml"

// Uploader 由 *storage.Client 实现。
type Uploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// BackupTaskHandler 负责消费备份上传任务。
type BackupTaskHandler struct {
	storage Uploader
	logger  *slog.Logger
	newID   func() string
}

// NewBackupTaskHandler 创建任务处理器。
func NewBackupTaskHandler(storage Uploader, logger *slog.Logger) *BackupTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupTaskHandler{
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *BackupTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.BackupUploadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("revision", payload.Revision),
		slog.String("origin", payload.Origin),
	)

	defer func() {
		if retErr != nil && isFinalAsynqAttempt(ctx) {
			log.Error("backup upload abandoned after final attempt", slog.Any("error", retErr))
		}
	}()

	if strings.TrimSpace(payload.Content) == "" {
		log.Warn("empty backup payload, skipping task")
		return nil
	}

	objectName := storage.BackupObjectKey(payload.SavedAt, h.newID())
	reader := strings.NewReader(payload.Content)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(payload.Content)), backupContentType); err != nil {
		log.Error("upload backup to minio failed", slog.Any("error", err))
		return err
	}

	log.Info("configuration backup uploaded",
		slog.String("object", objectName),
		slog.Int("size", len(payload.Content)),
	)
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
