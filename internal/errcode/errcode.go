package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如文本无法解析但原文仍可编辑）
// - 5xxx：系统错误（需要中断流程）
const (
	OK               = 0
	InvalidDocument  = 4000
	Unauthorized     = 4001
	ResourceMissing  = 4004
	HistoryExhausted = 4009
	DecodeFailed     = 4022
	SystemError      = 5000
)
