package database

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dashEditor/internal/codec"
	"dashEditor/internal/notify"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Journal 将每次持久化写入追加到 revisions 表，实现 notify.Sink。
type Journal struct {
	db *gorm.DB
}

// NewJournal 构造 Journal。
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Publish 只记录 saved 与 reloaded 事件。
func (j *Journal) Publish(ctx context.Context, event notify.Event) error {
	if event.Type != notify.EventSaved && event.Type != notify.EventReloaded {
		return nil
	}

	row := Revision{
		Revision:      event.Revision,
		EventType:     string(event.Type),
		Origin:        string(event.Origin),
		Description:   event.Description,
		CorrelationID: event.CorrelationID,
		Content:       event.Content,
		Size:          len(event.Content),
	}
	if doc, decodeErr := codec.Decode(event.Content); decodeErr == nil {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		row.Document = datatypes.JSON(payload)
		row.Valid = true
	}

	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// List 按时间倒序返回最近的记录。
func (j *Journal) List(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var rows []Revision
	if err := j.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return rows, nil
}

// Get 返回指定 ID 的记录。
func (j *Journal) Get(ctx context.Context, id uint) (*Revision, error) {
	var row Revision
	if err := j.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, fmt.Errorf("get revision %d: %w", id, err)
	}
	return &row, nil
}
