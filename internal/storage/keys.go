package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// BackupPrefix 是异地备份对象的统一前缀。
const BackupPrefix = "config-backups"

// BackupObjectKey 生成按日期分目录的备份对象键，例如
// config-backups/2026/10/19/20261019T101500Z-<id>.yml。
func BackupObjectKey(savedAt time.Time, id string) string {
	savedAt = savedAt.UTC()
	name := fmt.Sprintf("%s-%s.yml", savedAt.Format("20060102T150405Z"), strings.TrimSpace(id))
	return path.Join(BackupPrefix, savedAt.Format("2006/01/02"), name)
}

// BackupDayPrefix 返回某一天备份对象的前缀，用于列举。
func BackupDayPrefix(day time.Time) string {
	return path.Join(BackupPrefix, day.UTC().Format("2006/01/02")) + "/"
}
