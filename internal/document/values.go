package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Normalize 把任意解码结果转换为统一的值形态：
// map[string]any、[]any、string、bool、int、float64、time.Time 或 nil。
// YAML 与 JSON 两条解码路径得到的值经过 Normalize 后可以直接比较。
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, float64, time.Time:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

// normalizeMap 对 map 做 Normalize，nil 保持为 nil。
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Normalize(m).(map[string]any)
}

// Clone 返回文档的深拷贝，之后对任一副本的修改都不会影响另一方。
func (d Document) Clone() Document {
	out := Document{Sections: normalizeMap(d.Sections)}
	if d.Pages != nil {
		out.Pages = make([]Page, len(d.Pages))
		for i, page := range d.Pages {
			out.Pages[i] = page.Clone()
		}
	}
	return out
}

// Clone 返回页面的深拷贝。
func (p Page) Clone() Page {
	out := p
	out.Extra = normalizeMap(p.Extra)
	if p.Columns != nil {
		out.Columns = make([]Column, len(p.Columns))
		for i, column := range p.Columns {
			out.Columns[i] = column.Clone()
		}
	}
	return out
}

// Clone 返回列的深拷贝。
func (c Column) Clone() Column {
	out := c
	out.Extra = normalizeMap(c.Extra)
	if c.Widgets != nil {
		out.Widgets = make([]Widget, len(c.Widgets))
		for i, widget := range c.Widgets {
			out.Widgets[i] = widget.Clone()
		}
	}
	return out
}

// Clone 返回 widget 的深拷贝。
func (w Widget) Clone() Widget {
	out := w
	out.Properties = normalizeMap(w.Properties)
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return out
}

// Equal 判断两个文档是否结构相等。比较基于规范化的 JSON 形式，
// 因此仅在 Go 数值类型上不同（例如 int 与 float64）的值视为相等。
// 空切片与 nil 切片视为相等。
func Equal(a, b Document) bool {
	left, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	right, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

func canonicalJSON(d Document) ([]byte, error) {
	pages := make([]any, 0, len(d.Pages))
	for _, page := range d.Pages {
		columns := make([]any, 0, len(page.Columns))
		for _, column := range page.Columns {
			widgets := make([]any, 0, len(column.Widgets))
			for _, widget := range column.Widgets {
				w := widget.Map()
				if widget.Deactivated {
					w[DeactivatedKey] = true
				}
				widgets = append(widgets, w)
			}
			columns = append(columns, map[string]any{
				"size":    column.Size,
				"widgets": widgets,
				"extra":   emptyIfNil(column.Extra),
			})
		}
		pages = append(pages, map[string]any{
			"name":    page.Name,
			"slug":    page.Slug,
			"width":   page.Width,
			"columns": columns,
			"extra":   emptyIfNil(page.Extra),
		})
	}
	return json.Marshal(map[string]any{
		"pages":    pages,
		"sections": emptyIfNil(d.Sections),
	})
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
