package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"dashEditor/internal/notify"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeBackupUpload = "backup:upload"
	TypeBackupPrune  = "backup:prune"
)

// BackupUploadPayload 描述一次需要上传到对象存储的配置快照。
type BackupUploadPayload struct {
	Content       string    `json:"content"`
	Origin        string    `json:"origin"`
	Description   string    `json:"description"`
	Revision      uint64    `json:"revision"`
	CorrelationID string    `json:"correlation_id"`
	SavedAt       time.Time `json:"saved_at"`
}

// NewBackupUploadTask 构造一个新的备份上传任务。
func NewBackupUploadTask(payload BackupUploadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackupUpload, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// BackupPrunePayload 描述一次过期备份清理。
type BackupPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewBackupPruneTask 构造过期备份清理任务，由 worker 的定时调度投递。
func NewBackupPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(BackupPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackupPrune, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

// Enqueuer 由 *asynq.Client 实现。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BackupEnqueuer 在每次成功写入后投递备份任务，实现 notify.Sink。
type BackupEnqueuer struct {
	client Enqueuer
}

// NewBackupEnqueuer 构造 BackupEnqueuer。
func NewBackupEnqueuer(client Enqueuer) *BackupEnqueuer {
	return &BackupEnqueuer{client: client}
}

// Publish 只处理带内容的 saved 与 reloaded 事件。
func (e *BackupEnqueuer) Publish(ctx context.Context, event notify.Event) error {
	if event.Type != notify.EventSaved && event.Type != notify.EventReloaded {
		return nil
	}
	if event.Content == "" {
		return nil
	}

	savedAt := event.Timestamp
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	task, err := NewBackupUploadTask(BackupUploadPayload{
		Content:       event.Content,
		Origin:        string(event.Origin),
		Description:   event.Description,
		Revision:      event.Revision,
		CorrelationID: event.CorrelationID,
		SavedAt:       savedAt,
	})
	if err != nil {
		return fmt.Errorf("build backup task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue backup task: %w", err)
	}
	return nil
}
