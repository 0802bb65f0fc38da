// Package configfile 管理磁盘上的仪表盘配置文件。
//
// 写入先落到同目录的临时文件，fsync 后再 rename 覆盖目标，失败的保存不会留下截断或缺失的文件。
// 每次替换前，旧内容以同样方式写入 <path>.backup；
// 进程首次看到的内容只保存一次，位于 <path>.initial.backup。
package configfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const (
	tempSuffix          = ".tmp"
	backupSuffix        = ".backup"
	initialBackupSuffix = ".initial.backup"

	defaultPerm os.FileMode = 0o644
)

// IOError 包装文件系统错误，并记录操作与路径。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsNotFound 判断错误是否表示配置文件不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// File 负责读写单个配置文件。
type File struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu sync.Mutex
	// 本进程内初始备份已创建或确认存在后置为 true。
	initialChecked bool
}

// Option 配置 File。
type Option func(*File)

// WithFs 替换操作系统文件系统，主要用于测试。
func WithFs(fsys afero.Fs) Option {
	return func(f *File) { f.fs = fsys }
}

// WithLogger 设置备份事件使用的日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(f *File) { f.logger = logger }
}

// New 创建指向 path 的 File。
func New(path string, opts ...Option) *File {
	f := &File{
		fs:     afero.NewOsFs(),
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path 返回配置文件路径。
func (f *File) Path() string { return f.path }

// TempPath 返回写入过程中使用的临时文件路径。
func (f *File) TempPath() string { return f.path + tempSuffix }

// BackupPath 返回保存最近一次写入前内容的路径。
func (f *File) BackupPath() string { return f.path + backupSuffix }

// InitialBackupPath 返回原始文件一次性备份的路径。
func (f *File) InitialBackupPath() string { return f.path + initialBackupSuffix }

// Read 返回文件当前内容。
func (f *File) Read() (string, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return "", &IOError{Op: "read", Path: f.path, Err: err}
	}
	return string(data), nil
}

// Exists 报告配置文件是否存在，不会创建文件。
func (f *File) Exists() bool {
	info, err := f.fs.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Write 以持久化方式用 text 替换文件内容。
func (f *File) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	perm := defaultPerm
	previous, err := afero.ReadFile(f.fs, f.path)
	hasPrevious := err == nil
	if err != nil && !IsNotFound(err) {
		return &IOError{Op: "read", Path: f.path, Err: err}
	}
	if hasPrevious {
		if info, err := f.fs.Stat(f.path); err == nil {
			perm = info.Mode().Perm()
		}
	}

	tempPath := f.TempPath()
	if err := writeSynced(f.fs, tempPath, []byte(text), perm); err != nil {
		return &IOError{Op: "write", Path: tempPath, Err: err}
	}

	if hasPrevious {
		if err := writeReplacing(f.fs, f.BackupPath(), previous, perm); err != nil {
			_ = f.fs.Remove(tempPath)
			return &IOError{Op: "backup", Path: f.BackupPath(), Err: err}
		}
		if !f.initialChecked {
			if _, err := f.writeInitialBackupLocked(previous, perm); err != nil {
				_ = f.fs.Remove(tempPath)
				return err
			}
		}
	}

	if err := f.fs.Rename(tempPath, f.path); err != nil {
		_ = f.fs.Remove(tempPath)
		return &IOError{Op: "replace", Path: f.path, Err: err}
	}
	f.initialChecked = true
	f.syncDir()
	return nil
}

// EnsureInitialBackup 在初始备份不存在时复制当前文件，返回是否新建了备份。
func (f *File) EnsureInitialBackup() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.fs.Stat(f.InitialBackupPath()); err == nil {
		f.initialChecked = true
		return false, nil
	}

	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, &IOError{Op: "read", Path: f.path, Err: err}
	}

	perm := defaultPerm
	if info, err := f.fs.Stat(f.path); err == nil {
		perm = info.Mode().Perm()
	}
	return f.writeInitialBackupLocked(data, perm)
}

func (f *File) writeInitialBackupLocked(content []byte, perm os.FileMode) (bool, error) {
	f.initialChecked = true

	path := f.InitialBackupPath()
	if _, err := f.fs.Stat(path); err == nil {
		return false, nil
	} else if !IsNotFound(err) {
		return false, &IOError{Op: "stat", Path: path, Err: err}
	}

	if err := writeReplacing(f.fs, path, content, perm); err != nil {
		f.initialChecked = false
		return false, &IOError{Op: "initial backup", Path: path, Err: err}
	}
	f.logger.Info("initial configuration backup created", slog.String("path", path))
	return true, nil
}

// syncDir 在 rename 之后刷新目录项，忽略错误。
func (f *File) syncDir() {
	dir, err := f.fs.Open(filepath.Dir(f.path))
	if err != nil {
		return
	}
	_ = dir.Sync()
	_ = dir.Close()
}

// writeReplacing 经由 path 自己的临时文件替换 path，任一步失败时旧内容保持不变。
func writeReplacing(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	tempPath := path + tempSuffix
	if err := writeSynced(fsys, tempPath, data, perm); err != nil {
		return err
	}
	if err := fsys.Rename(tempPath, path); err != nil {
		_ = fsys.Remove(tempPath)
		return err
	}
	return nil
}

// writeSynced 写入、fsync 并关闭 path，任一步失败都会删除该文件。
func writeSynced(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	file, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		_ = fsys.Remove(path)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = fsys.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		_ = fsys.Remove(path)
		return err
	}
	return nil
}
