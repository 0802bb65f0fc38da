// Package history 维护有界、线性的文档快照撤销/重做栈。
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dashEditor/internal/document"
)

// DefaultCapacity 未配置时保留的快照数量。
const DefaultCapacity = 50

// Origin 标记一次持久化写入的来源。
type Origin string

const (
	OriginLoad     Origin = "load"
	OriginUserEdit Origin = "user-edit"
	OriginRawEdit  Origin = "raw-edit"
	OriginExternal Origin = "external"
	// OriginHistory 表示撤销或重做引起的写入，不会产生新的历史条目。
	OriginHistory Origin = "history-navigation"
)

// Snapshot 是某一时刻文档的不可变副本。
type Snapshot struct {
	ID          string
	Document    document.Document
	Description string
	CreatedAt   time.Time
}

// Entry 描述快照但不包含文档本身。
type Entry struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Current     bool      `json:"current"`
}

// Store 可并发使用。
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  []Snapshot
	index    int
	now      func() time.Time
}

// NewStore 创建最多保留 capacity 个快照的空存储。
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		index:    -1,
		now:      time.Now,
	}
}

// Record 在写入不是来自撤销/重做时压入 doc。
func (s *Store) Record(origin Origin, doc document.Document, description string) bool {
	if origin == OriginHistory {
		return false
	}
	return s.PushState(doc, description)
}

// PushState 将 doc 追加为新的当前状态并丢弃重做分支。
// 与当前状态结构相同的文档会被忽略。返回是否新增了快照。
func (s *Store) PushState(doc document.Document, description string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= 0 && document.Equal(s.entries[s.index].Document, doc) {
		return false
	}

	s.entries = append(s.entries[:s.index+1], Snapshot{
		ID:          uuid.NewString(),
		Document:    doc.Clone(),
		Description: description,
		CreatedAt:   s.now(),
	})
	if overflow := len(s.entries) - s.capacity; overflow > 0 {
		trimmed := make([]Snapshot, s.capacity)
		copy(trimmed, s.entries[overflow:])
		s.entries = trimmed
	}
	s.index = len(s.entries) - 1
	return true
}

// CanUndo 报告是否存在更早的状态。
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// CanRedo 报告是否存在更晚的状态。
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.entries)-1
}

// PeekUndo 返回 Undo 将要移动到的状态，但不移动指针。
func (s *Store) PeekUndo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index <= 0 {
		return Snapshot{}, false
	}
	return s.snapshotLocked(s.index - 1), true
}

// PeekRedo 返回 Redo 将要移动到的状态，但不移动指针。
func (s *Store) PeekRedo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.entries)-1 {
		return Snapshot{}, false
	}
	return s.snapshotLocked(s.index + 1), true
}

// Undo 后退一步并返回新的当前状态，没有可撤销内容时返回 false。
func (s *Store) Undo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index <= 0 {
		return Snapshot{}, false
	}
	s.index--
	return s.snapshotLocked(s.index), true
}

// Redo 前进一步并返回新的当前状态，没有可重做内容时返回 false。
func (s *Store) Redo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.entries)-1 {
		return Snapshot{}, false
	}
	s.index++
	return s.snapshotLocked(s.index), true
}

// Current 返回当前状态（如有）。
func (s *Store) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < 0 {
		return Snapshot{}, false
	}
	return s.snapshotLocked(s.index), true
}

// Len 返回保留的快照数量。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries 按从旧到新列出保留的快照。
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, snap := range s.entries {
		out[i] = Entry{
			ID:          snap.ID,
			Description: snap.Description,
			CreatedAt:   snap.CreatedAt,
			Current:     i == s.index,
		}
	}
	return out
}

func (s *Store) snapshotLocked(i int) Snapshot {
	snap := s.entries[i]
	snap.Document = snap.Document.Clone()
	return snap
}
