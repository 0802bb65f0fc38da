package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "saves_total",
			Help:      "配置文件写入次数，按来源与结果区分。",
		},
		[]string{"origin", "result"},
	)

	saveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "save_duration_seconds",
			Help:      "配置文件写入耗时分布（秒）。",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"origin"},
	)

	decodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "decode_errors_total",
			Help:      "无法解析的配置文本次数。",
		},
	)

	coalescedEditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "coalesced_edits_total",
			Help:      "在防抖窗口内被后续编辑覆盖的结构化编辑数量。",
		},
	)

	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "rollbacks_total",
			Help:      "写入失败导致乐观状态回滚的次数。",
		},
	)

	historyEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dasheditor",
			Subsystem: "editor",
			Name:      "history_entries",
			Help:      "撤销历史中保留的快照数量。",
		},
	)
)

// ObserveSave 记录一次写入。
func ObserveSave(origin string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	savesTotal.WithLabelValues(origin, result).Inc()
	saveDuration.WithLabelValues(origin).Observe(elapsed.Seconds())
}

// DecodeFailed 记录一次解析失败。
func DecodeFailed() { decodeErrorsTotal.Inc() }

// EditCoalesced 记录一次被合并的编辑。
func EditCoalesced() { coalescedEditsTotal.Inc() }

// Rollback 记录一次乐观状态回滚。
func Rollback() { rollbacksTotal.Inc() }

// SetHistoryEntries 更新历史快照数量。
func SetHistoryEntries(n int) { historyEntries.Set(float64(n)) }
