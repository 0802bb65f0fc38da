package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 保留字段名。
const (
	// TypeKey 是 widget 的类型判别字段。
	TypeKey = "type"
	// DeactivatedKey 仅存在于内存结构与 API JSON 中，永远不会以字面字段写入配置文件。
	DeactivatedKey = "_deactivated"
)

// Column 尺寸。
const (
	SizeFull  = "full"
	SizeSmall = "small"
)

// ErrInvalidDocument 表示结构化文档不满足基本不变量。
var ErrInvalidDocument = errors.New("invalid document")

// Document 表示完整的仪表盘配置：有序的页面列表与不透明的全局配置段。
type Document struct {
	Pages    []Page         `json:"pages"`
	Sections map[string]any `json:"sections,omitempty"`
}

// Page 描述单个页面。
type Page struct {
	Name    string         `json:"name"`
	Slug    string         `json:"slug,omitempty"`
	Width   string         `json:"width,omitempty"`
	Columns []Column       `json:"columns"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Column 描述页面中的一列。
type Column struct {
	Size    string         `json:"size"`
	Widgets []Widget       `json:"widgets"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Widget 是带类型判别字段的开放属性表。
// Properties 不包含 type 与停用标记。
type Widget struct {
	Type        string
	Properties  map[string]any
	Deactivated bool
}

// NewWidget 构造一个 widget，properties 中的保留字段会被剥离。
func NewWidget(widgetType string, properties map[string]any) Widget {
	w := Widget{Type: widgetType, Properties: map[string]any{}}
	for k, v := range properties {
		if k == TypeKey || k == DeactivatedKey {
			continue
		}
		w.Properties[k] = Normalize(v)
	}
	return w
}

// WidgetFromMap 从扁平的属性表构造 widget。type 必须是非空字符串。
// 若表中带有停用标记，则该标记会被转为 Deactivated 字段。
func WidgetFromMap(m map[string]any) (Widget, error) {
	raw, ok := m[TypeKey]
	if !ok {
		return Widget{}, errors.New("widget is missing the type property")
	}
	widgetType, ok := raw.(string)
	if !ok || widgetType == "" {
		return Widget{}, fmt.Errorf("widget type must be a non-empty string, got %v", raw)
	}

	w := NewWidget(widgetType, m)
	if flag, ok := m[DeactivatedKey].(bool); ok {
		w.Deactivated = flag
	}
	return w, nil
}

// Map 返回不含停用标记的扁平属性表。
func (w Widget) Map() map[string]any {
	out := make(map[string]any, len(w.Properties)+1)
	for k, v := range w.Properties {
		out[k] = v
	}
	out[TypeKey] = w.Type
	return out
}

// MarshalJSON 以扁平对象输出 widget，停用时附带 _deactivated。
func (w Widget) MarshalJSON() ([]byte, error) {
	out := w.Map()
	if w.Deactivated {
		out[DeactivatedKey] = true
	}
	return json.Marshal(out)
}

// UnmarshalJSON 解析扁平对象形式的 widget。
func (w *Widget) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decode widget: %w", err)
	}
	if m == nil {
		return errors.New("widget must be an object")
	}

	parsed, err := WidgetFromMap(m)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Validate 检查核心依赖的不变量：至少一个页面，每个页面至少一列，
// 每个 widget 都带有 type。页面名称、列尺寸与布局规则由前端负责。
func (d Document) Validate() error {
	if len(d.Pages) == 0 {
		return fmt.Errorf("%w: at least one page is required", ErrInvalidDocument)
	}
	for pi, page := range d.Pages {
		if len(page.Columns) == 0 {
			return fmt.Errorf("%w: page %d (%q) has no columns", ErrInvalidDocument, pi, page.Name)
		}
		for ci, column := range page.Columns {
			for wi, widget := range column.Widgets {
				if widget.Type == "" {
					return fmt.Errorf("%w: page %d column %d widget %d has no type", ErrInvalidDocument, pi, ci, wi)
				}
			}
		}
	}
	return nil
}

// WidgetCount 返回文档中 widget 的总数及其中被停用的数量。
func (d Document) WidgetCount() (total, deactivated int) {
	for _, page := range d.Pages {
		for _, column := range page.Columns {
			for _, widget := range column.Widgets {
				total++
				if widget.Deactivated {
					deactivated++
				}
			}
		}
	}
	return total, deactivated
}
