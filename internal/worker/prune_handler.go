package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"dashEditor/internal/storage"
	"dashEditor/internal/tasks"
)

const (
	pruneBatchSize = 500
	pruneMaxRounds = 100
)

// BackupStore 由 *storage.Client 实现。
type BackupStore interface {
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// BackupPruneHandler 删除超过保留天数的异地备份。
type BackupPruneHandler struct {
	storage BackupStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewBackupPruneHandler 创建清理任务处理器。
func NewBackupPruneHandler(storage BackupStore, logger *slog.Logger) *BackupPruneHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupPruneHandler{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// ProcessTask 实现 asynq.Handler。
// 备份按日期分目录，键的字典序即时间顺序，早于截止日目录的对象都会被删除。
func (h *BackupPruneHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BackupPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionDays <= 0 {
		h.logger.Info("backup retention disabled, nothing to prune")
		return nil
	}

	cutoff := storage.BackupDayPrefix(h.now().AddDate(0, 0, -payload.RetentionDays))
	log := h.logger.With(slog.String("cutoff", cutoff), slog.Int("retention_days", payload.RetentionDays))

	deleted := 0
	for round := 0; round < pruneMaxRounds; round++ {
		objects, err := h.storage.ListObjects(ctx, storage.BackupPrefix+"/", pruneBatchSize)
		if err != nil {
			log.Error("list backups failed", slog.Any("error", err))
			return err
		}

		reachedCutoff := len(objects) < pruneBatchSize
		for _, object := range objects {
			if object.Key >= cutoff {
				reachedCutoff = true
				break
			}
			if err := h.storage.DeleteObject(ctx, object.Key); err != nil {
				log.Error("delete backup failed", slog.String("object", object.Key), slog.Any("error", err))
				return err
			}
			deleted++
		}
		if reachedCutoff {
			break
		}
	}

	log.Info("expired backups pruned", slog.Int("deleted", deleted))
	return nil
}
