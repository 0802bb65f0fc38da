// Package codec 负责仪表盘配置 YAML 文本与结构化文档之间的转换。
//
// 被停用的 widget 不会以 YAML 字面量出现。Encode 在它原来所在的位置写入一行注释
//
//	# DEACTIVATED_WIDGET_BASE64: <widget JSON 的 base64>
//
// Decode 再把 widget 还原到同一位置，并设置 Deactivated 标记。
package codec

import (
	"fmt"
	"regexp"
	"strconv"
)

// 解析错误类别。
const (
	KindSyntax      = "syntax"
	KindStructure   = "structure"
	KindDeactivated = "deactivated-widget"
)

// DecodeError 描述文本无法解析的原因。Line 与 Column 从 1 开始，0 表示位置未知。
type DecodeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (e *DecodeError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s error at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s error at line %d: %s", e.Kind, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

var yamlErrorPattern = regexp.MustCompile(`^yaml: line (\d+):(?: column (\d+):)? (.*)$`)

// syntaxError 将 yaml 解析器的错误转换为 DecodeError，并尽量提取行列位置。
func syntaxError(err error) *DecodeError {
	msg := err.Error()
	if m := yamlErrorPattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		column, _ := strconv.Atoi(m[2])
		return &DecodeError{Kind: KindSyntax, Message: m[3], Line: line, Column: column}
	}
	if len(msg) > len("yaml: ") && msg[:len("yaml: ")] == "yaml: " {
		msg = msg[len("yaml: "):]
	}
	return &DecodeError{Kind: KindSyntax, Message: msg}
}

func structureError(line, column int, format string, args ...any) *DecodeError {
	return &DecodeError{
		Kind:    KindStructure,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  column,
	}
}
