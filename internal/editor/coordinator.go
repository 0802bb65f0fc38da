// Package editor 在编辑期间持有仪表盘配置。
//
// Coordinator 维护文档的两个视图：编辑后立即可见的乐观文档，以及确认已写入磁盘的文档。
// 结构化编辑经过防抖合并；原始文本编辑、撤销与重做立即写入。同一时刻最多只有一次写入。
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dashEditor/internal/codec"
	"dashEditor/internal/document"
	"dashEditor/internal/history"
	"dashEditor/internal/metrics"
	"dashEditor/internal/notify"
)

// DefaultDebounce 结构化编辑的默认静默窗口。
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrClosed 协调器关闭后不再接受编辑。
	ErrClosed = errors.New("editor: coordinator closed")
	// ErrNoDocument 当前没有可用的合法文档。
	ErrNoDocument = errors.New("editor: no valid document loaded")
)

// Store 是协调器依赖的持久化接口，由 configfile.File 实现。
type Store interface {
	Read() (string, error)
	Write(text string) error
	Exists() bool
	EnsureInitialBackup() (bool, error)
}

// Timer 是 AfterFunc 返回的可取消定时器。
type Timer interface {
	Stop() bool
}

// AfterFunc 在 d 之后于独立 goroutine 中执行 f。
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State 是调用方看到的编辑器状态。
type State struct {
	Document    *document.Document `json:"document"`
	RawText     string             `json:"raw_text"`
	DecodeError *codec.DecodeError `json:"decode_error,omitempty"`
	SaveError   string             `json:"save_error,omitempty"`
	Pending     bool               `json:"pending"`
	CanUndo     bool               `json:"can_undo"`
	CanRedo     bool               `json:"can_redo"`
	Revision    uint64             `json:"revision"`
}

type pendingEdit struct {
	doc           document.Document
	description   string
	correlationID string
}

// Coordinator 串行化所有对配置文件的写入。
type Coordinator struct {
	store     Store
	history   *history.Store
	sink      notify.Sink
	logger    *slog.Logger
	debounce  time.Duration
	afterFunc AfterFunc

	// saveMu 在整个写入期间持有。
	saveMu sync.Mutex

	mu         sync.Mutex
	confirmed  *document.Document
	optimistic *document.Document
	rawText    string
	decodeErr  *codec.DecodeError
	saveErr    error
	pending    *pendingEdit
	timer      Timer
	timerGen   uint64
	revision   uint64
	closed     bool
}

// Option 配置 Coordinator。
type Option func(*Coordinator)

// WithDebounce 设置防抖窗口。
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithHistory 使用指定的历史存储。
func WithHistory(h *history.Store) Option {
	return func(c *Coordinator) {
		if h != nil {
			c.history = h
		}
	}
}

// WithSink 设置写入成功或失败后的通知目标。
func WithSink(sink notify.Sink) Option {
	return func(c *Coordinator) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAfterFunc 替换防抖定时器的实现，测试中用于手动触发。
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// New 创建协调器。调用方需要随后调用 Load。
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		sink:      notify.Discard,
		logger:    slog.Default(),
		debounce:  DefaultDebounce,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.history == nil {
		c.history = history.NewStore(history.DefaultCapacity)
	}
	return c
}

// Load 读取并解析配置文件，同时确保初始备份存在。
// 文本无法解析时不返回错误，解析错误通过 GetDocument 暴露。
func (c *Coordinator) Load(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if created, err := c.store.EnsureInitialBackup(); err != nil {
		c.logger.WarnContext(ctx, "failed to create initial backup", slog.Any("error", err))
	} else if created {
		c.logger.InfoContext(ctx, "initial backup created")
	}

	text, err := c.store.Read()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	doc, decodeErr := codec.Decode(text)

	c.mu.Lock()
	c.rawText = text
	c.decodeErr = decodeErr
	if decodeErr == nil {
		c.confirmed = &doc
		c.optimistic = &doc
	}
	c.mu.Unlock()

	if decodeErr != nil {
		metrics.DecodeFailed()
		c.logger.WarnContext(ctx, "configuration could not be decoded",
			slog.String("kind", decodeErr.Kind),
			slog.Int("line", decodeErr.Line),
			slog.String("message", decodeErr.Message),
		)
		return nil
	}

	c.history.Record(history.OriginLoad, doc, "Loaded configuration")
	metrics.SetHistoryEntries(c.history.Len())
	total, deactivated := doc.WidgetCount()
	c.logger.InfoContext(ctx, "configuration loaded",
		slog.Int("pages", len(doc.Pages)),
		slog.Int("widgets", total),
		slog.Int("deactivated", deactivated),
	)
	return nil
}

// ApplyStructuredEdit 立即更新乐观状态，并在防抖窗口结束后写盘。
// 窗口内的多次编辑只有最后一次会被持久化。
func (c *Coordinator) ApplyStructuredEdit(ctx context.Context, doc document.Document, description string) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	doc = doc.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.pending != nil {
		metrics.EditCoalesced()
	}
	c.optimistic = &doc
	c.pending = &pendingEdit{
		doc:           doc,
		description:   description,
		correlationID: CorrelationID(ctx),
	}
	c.resetTimerLocked()
	return nil
}

// resetTimerLocked 需持有 mu。
func (c *Coordinator) resetTimerLocked() {
	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = c.afterFunc(c.debounce, func() { c.fire(gen) })
}

// stopTimerLocked 使已安排的写入失效，包括回调已开始执行、正在等待 saveMu 的那一次。
func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Coordinator) fire(gen uint64) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	p := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	if p == nil {
		return
	}
	_ = c.savePending(context.Background(), p)
}

// Flush 立即写入尚在防抖窗口中的编辑。
func (c *Coordinator) Flush(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.flushLocked(ctx)
}

// flushLocked 需持有 saveMu。
func (c *Coordinator) flushLocked(ctx context.Context) error {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.stopTimerLocked()
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	return c.savePending(ctx, p)
}

func (c *Coordinator) savePending(ctx context.Context, p *pendingEdit) error {
	if p.correlationID != "" && CorrelationID(ctx) == "" {
		ctx = WithCorrelationID(ctx, p.correlationID)
	}
	err := c.persist(ctx, p.doc, p.description, history.OriginUserEdit, nil)
	if err != nil {
		c.rollback(ctx, history.OriginUserEdit, p.description, err)
		return err
	}
	return nil
}

// persist 编码并写入 doc，然后刷新缓存的原始文本，需持有 saveMu。
// afterWrite 在写入完成之后、通知订阅者之前执行。
func (c *Coordinator) persist(ctx context.Context, doc document.Document, description string, origin history.Origin, afterWrite func()) error {
	text := codec.Encode(doc)

	start := time.Now()
	err := c.store.Write(text)
	metrics.ObserveSave(string(origin), err, time.Since(start))
	if err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	c.history.Record(origin, doc, description)
	if afterWrite != nil {
		afterWrite()
	}
	metrics.SetHistoryEntries(c.history.Len())

	raw := text
	if reread, err := c.store.Read(); err != nil {
		c.logger.WarnContext(ctx, "failed to re-read configuration after write", slog.Any("error", err))
	} else {
		raw = reread
	}

	confirmed := doc
	var decodeErr *codec.DecodeError
	if raw != text {
		if decoded, derr := codec.Decode(raw); derr == nil {
			confirmed = decoded
		} else {
			decodeErr = derr
		}
	}

	c.mu.Lock()
	c.revision++
	revision := c.revision
	c.rawText = raw
	c.decodeErr = decodeErr
	c.saveErr = nil
	c.confirmed = &confirmed
	if c.pending == nil {
		c.optimistic = &confirmed
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "configuration saved",
		slog.String("origin", string(origin)),
		slog.String("description", description),
		slog.Uint64("revision", revision),
	)
	c.publish(ctx, notify.Event{
		Type:        notify.EventSaved,
		Origin:      origin,
		Description: description,
		Revision:    revision,
		Content:     raw,
	})
	return nil
}

// rollback 将乐观文档恢复为已确认文档，已有更新的编辑在等待时除外。
func (c *Coordinator) rollback(ctx context.Context, origin history.Origin, description string, cause error) {
	c.mu.Lock()
	if c.pending == nil {
		c.optimistic = c.confirmed
	}
	c.saveErr = cause
	revision := c.revision
	c.mu.Unlock()

	metrics.Rollback()
	c.logger.ErrorContext(ctx, "configuration save failed",
		slog.String("origin", string(origin)),
		slog.String("description", description),
		slog.Any("error", cause),
	)
	c.publish(ctx, notify.Event{
		Type:        notify.EventSaveFailed,
		Origin:      origin,
		Description: description,
		Error:       cause.Error(),
		Revision:    revision,
	})
}

// ApplyRawTextEdit 立即写入用户直接编辑的文本，即使文本无法解析。
// 返回的 DecodeError 非空时，结构化文档保持为上一个合法版本。
// 尚未写入的结构化编辑会被丢弃。
func (c *Coordinator) ApplyRawTextEdit(ctx context.Context, text string) (*codec.DecodeError, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending != nil {
		c.logger.InfoContext(ctx, "pending structured edit superseded by raw text edit",
			slog.String("description", c.pending.description),
		)
		c.pending = nil
	}
	c.stopTimerLocked()
	c.mu.Unlock()

	doc, decodeErr := codec.Decode(text)

	start := time.Now()
	err := c.store.Write(text)
	metrics.ObserveSave(string(history.OriginRawEdit), err, time.Since(start))
	if err != nil {
		err = fmt.Errorf("write configuration: %w", err)
		c.rollback(ctx, history.OriginRawEdit, rawEditDescription, err)
		return nil, err
	}

	c.mu.Lock()
	c.revision++
	revision := c.revision
	c.rawText = text
	c.decodeErr = decodeErr
	c.saveErr = nil
	if decodeErr == nil {
		c.confirmed = &doc
	}
	c.optimistic = c.confirmed
	c.mu.Unlock()

	if decodeErr != nil {
		metrics.DecodeFailed()
		c.logger.WarnContext(ctx, "raw text edit saved with decode error",
			slog.String("kind", decodeErr.Kind),
			slog.Int("line", decodeErr.Line),
			slog.String("message", decodeErr.Message),
		)
	} else {
		c.history.Record(history.OriginRawEdit, doc, rawEditDescription)
		metrics.SetHistoryEntries(c.history.Len())
		c.logger.InfoContext(ctx, "raw text edit saved", slog.Uint64("revision", revision))
	}

	c.publish(ctx, notify.Event{
		Type:        notify.EventSaved,
		Origin:      history.OriginRawEdit,
		Description: rawEditDescription,
		Revision:    revision,
		Content:     text,
	})
	return decodeErr, nil
}

const rawEditDescription = "Direct text edit"

// Undo 写入上一个历史快照。没有可撤销的内容时返回 false。
func (c *Coordinator) Undo(ctx context.Context) (bool, error) {
	return c.navigate(ctx, "Undo", c.history.PeekUndo, c.history.Undo)
}

// Redo 写入下一个历史快照。没有可重做的内容时返回 false。
func (c *Coordinator) Redo(ctx context.Context) (bool, error) {
	return c.navigate(ctx, "Redo", c.history.PeekRedo, c.history.Redo)
}

// navigate 只在目标快照写入成功后才移动历史指针。
func (c *Coordinator) navigate(ctx context.Context, verb string, peek, move func() (history.Snapshot, bool)) (bool, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false, ErrClosed
	}

	if err := c.flushLocked(ctx); err != nil {
		return false, err
	}

	target, ok := peek()
	if !ok {
		return false, nil
	}

	c.mu.Lock()
	doc := target.Document
	c.optimistic = &doc
	c.mu.Unlock()

	description := verb + ": " + target.Description
	err := c.persist(ctx, target.Document, description, history.OriginHistory, func() { move() })
	if err != nil {
		c.rollback(ctx, history.OriginHistory, description, err)
		return false, err
	}
	return true, nil
}

// Reload 重新读取磁盘上的文件，用于响应外部修改。
// 内容与缓存一致时不做任何事并返回 false。
func (c *Coordinator) Reload(ctx context.Context) (bool, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	text, err := c.store.Read()
	if err != nil {
		return false, fmt.Errorf("reload configuration: %w", err)
	}

	c.mu.Lock()
	unchanged := text == c.rawText
	c.mu.Unlock()
	if unchanged {
		return false, nil
	}

	doc, decodeErr := codec.Decode(text)

	c.mu.Lock()
	c.revision++
	revision := c.revision
	c.rawText = text
	c.decodeErr = decodeErr
	if decodeErr == nil {
		c.confirmed = &doc
		if c.pending == nil {
			c.optimistic = &doc
		}
	}
	c.mu.Unlock()

	description := "External change"
	if decodeErr != nil {
		metrics.DecodeFailed()
		description = "External change (invalid)"
	} else {
		c.history.Record(history.OriginExternal, doc, description)
		metrics.SetHistoryEntries(c.history.Len())
	}

	c.logger.InfoContext(ctx, "configuration changed on disk",
		slog.Uint64("revision", revision),
		slog.Bool("valid", decodeErr == nil),
	)
	c.publish(ctx, notify.Event{
		Type:        notify.EventReloaded,
		Origin:      history.OriginExternal,
		Description: description,
		Revision:    revision,
		Content:     text,
	})
	return true, nil
}

// Close 写入未完成的编辑并拒绝后续编辑。
func (c *Coordinator) Close(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	err := c.flushLocked(ctx)

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

// GetDocument 返回乐观文档、缓存的原始文本以及最近一次解析错误。
func (c *Coordinator) GetDocument() State {
	c.mu.Lock()
	state := State{
		RawText:     c.rawText,
		DecodeError: c.decodeErr,
		Pending:     c.pending != nil,
		Revision:    c.revision,
	}
	if c.optimistic != nil {
		doc := c.optimistic.Clone()
		state.Document = &doc
	}
	if c.saveErr != nil {
		state.SaveError = c.saveErr.Error()
	}
	c.mu.Unlock()

	state.CanUndo = c.history.CanUndo()
	state.CanRedo = c.history.CanRedo()
	return state
}

// Confirmed 返回最近一次确认写入磁盘的文档。
func (c *Coordinator) Confirmed() (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmed == nil {
		return document.Document{}, ErrNoDocument
	}
	return c.confirmed.Clone(), nil
}

// GetRawText 返回最近一次读取或写入的原始文本。
func (c *Coordinator) GetRawText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawText
}

// Exists 报告配置文件是否存在。
func (c *Coordinator) Exists() bool {
	return c.store.Exists()
}

// EnsureInitialBackup 在初始备份缺失时创建它。
func (c *Coordinator) EnsureInitialBackup() (bool, error) {
	return c.store.EnsureInitialBackup()
}

// History 返回历史条目。
func (c *Coordinator) History() []history.Entry {
	return c.history.Entries()
}

func (c *Coordinator) publish(ctx context.Context, event notify.Event) {
	if event.CorrelationID == "" {
		event.CorrelationID = CorrelationID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := c.sink.Publish(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to deliver change notification",
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}
