package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"dashEditor/internal/document"
)

// DeactivatedCommentPrefix 是承载停用 widget 的注释行前缀。
const DeactivatedCommentPrefix = "# DEACTIVATED_WIDGET_BASE64: "

// placeholderPrefix 标记文本经过 yaml 解析或输出时代替停用 widget 的列表项。
const placeholderPrefix = "__deactivated_widget__"

var (
	markerCommentLine = regexp.MustCompile(`^([ \t]*)# DEACTIVATED_WIDGET_BASE64: (.*?)[ \t]*$`)
	base64Token       = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	placeholderLine   = regexp.MustCompile(`^( *)- "` + placeholderPrefix + `([A-Za-z0-9+/=]+)"$`)
	// blockScalarHeader 匹配开启 | 或 > 块标量的行，例如 "key: |"、"- >-"、"- text: |2+ # note"。
	blockScalarHeader = regexp.MustCompile(`(?:^|[:?-][ \t]+)[|>][1-9+-]{0,2}[ \t]*(?:#.*)?$`)
)

// blockScanner 判断 YAML 文本中哪些行属于块标量的内容，需按顺序逐行调用。
type blockScanner struct {
	inBlock bool
	parent  int
}

// plain 报告该行是否位于所有块标量之外。
func (b *blockScanner) plain(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if b.inBlock {
		if strings.TrimSpace(trimmed) == "" || len(line)-len(trimmed) > b.parent {
			return false
		}
		b.inBlock = false
	}
	if !strings.HasPrefix(trimmed, "#") && blockScalarHeader.MatchString(strings.TrimRight(trimmed, "\r")) {
		b.inBlock = true
		b.parent = nodeIndent(line)
	}
	return true
}

// nodeIndent 返回该行开启的块标量内容必须超过的缩进：
// 所属键的列，或块标量本身就是列表项时最内层 "-" 的列。
func nodeIndent(line string) int {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	indent := i
	for i+1 < len(line) && (line[i] == '-' || line[i] == '?') && (line[i+1] == ' ' || line[i+1] == '\t') {
		indent = i
		i++
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
	}
	if i < len(line) && line[i] != '|' && line[i] != '>' {
		indent = i
	}
	return indent
}

// expandMarkers 把每条停用注释改写为同缩进的带引号占位列表项，
// 使解析器在原位置看到该 widget。块标量内部的行保持不变，行号不变。
func expandMarkers(text string) (string, *DecodeError) {
	if !strings.Contains(text, "DEACTIVATED_WIDGET_BASE64") {
		return text, nil
	}

	lines := strings.Split(text, "\n")
	var scanner blockScanner
	for i, line := range lines {
		if !scanner.plain(line) {
			continue
		}
		body := strings.TrimSuffix(line, "\r")
		m := markerCommentLine.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		indent, token := m[1], m[2]
		if strings.Contains(indent, "\t") {
			return "", &DecodeError{
				Kind:    KindDeactivated,
				Message: "deactivated widget comment must be indented with spaces",
				Line:    i + 1,
				Column:  1,
			}
		}
		if !base64Token.MatchString(token) {
			return "", &DecodeError{
				Kind:    KindDeactivated,
				Message: "deactivated widget comment does not carry a base64 token",
				Line:    i + 1,
				Column:  len(indent) + 1,
			}
		}

		replaced := indent + `- "` + placeholderPrefix + token + `"`
		if len(body) != len(line) {
			replaced += "\r"
		}
		lines[i] = replaced
	}
	return strings.Join(lines, "\n"), nil
}

// collapseMarkers 把输出中的占位列表项还原为停用注释。
func collapseMarkers(text string) string {
	if !strings.Contains(text, placeholderPrefix) {
		return text
	}
	lines := strings.Split(text, "\n")
	var scanner blockScanner
	for i, line := range lines {
		if !scanner.plain(line) {
			continue
		}
		if m := placeholderLine.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + DeactivatedCommentPrefix + m[2]
		}
	}
	return strings.Join(lines, "\n")
}

func isPlaceholder(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && strings.HasPrefix(n.Value, placeholderPrefix)
}

// markerWidget 从占位项还原被停用的 widget。
func markerWidget(n *yaml.Node) (document.Widget, *DecodeError) {
	// 占位项的引号比原注释的 '#' 右移两列
	column := n.Column - 2
	if column < 1 {
		column = 1
	}
	fail := func(format string, args ...any) *DecodeError {
		return &DecodeError{
			Kind:    KindDeactivated,
			Message: fmt.Sprintf(format, args...),
			Line:    n.Line,
			Column:  column,
		}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(n.Value, placeholderPrefix))
	if err != nil {
		return document.Widget{}, fail("decode base64: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return document.Widget{}, fail("decode widget json: %v", err)
	}
	if m == nil {
		return document.Widget{}, fail("deactivated widget is not an object")
	}

	w, err := document.WidgetFromMap(m)
	if err != nil {
		return document.Widget{}, fail("%v", err)
	}
	w.Deactivated = true
	return w, nil
}

// markerNode 将停用的 widget 渲染为占位列表项。
func markerNode(w document.Widget) *yaml.Node {
	payload, err := json.Marshal(w.Map())
	if err != nil {
		panic(fmt.Sprintf("codec: encode deactivated widget %q: %v", w.Type, err))
	}
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: placeholderPrefix + base64.StdEncoding.EncodeToString(payload),
	}
}
