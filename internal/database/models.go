package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Revision 记录配置文件的一次持久化结果。
type Revision struct {
	gorm.Model
	Revision      uint64         `gorm:"index"`
	EventType     string         `gorm:"size:32"`
	Origin        string         `gorm:"size:32;index"`
	Description   string         `gorm:"size:255"`
	CorrelationID string         `gorm:"size:64"`
	Content       string         `gorm:"type:text"`
	Document      datatypes.JSON `gorm:"type:jsonb"` // 解析失败时为空
	Size          int
	Valid         bool `gorm:"default:false"`
}
