package codec

import (
	"gopkg.in/yaml.v3"

	"dashEditor/internal/document"
)

// Decode 解析配置文本。未知的全局段、页面与列属性以及 widget 属性原样保留，
// 只有文本格式错误或 pages/columns/widgets 骨架损坏才会报错。
func Decode(text string) (document.Document, *DecodeError) {
	expanded, derr := expandMarkers(text)
	if derr != nil {
		return document.Document{}, derr
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &root); err != nil {
		return document.Document{}, syntaxError(err)
	}
	if len(root.Content) == 0 {
		return document.Document{}, structureError(0, 0, "document is empty")
	}
	return decodeRoot(resolve(root.Content[0]))
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func decodeRoot(n *yaml.Node) (document.Document, *DecodeError) {
	if n.Kind != yaml.MappingNode {
		return document.Document{}, structureError(n.Line, n.Column, "top level must be a mapping")
	}

	doc := document.Document{}
	sections := map[string]any{}
	seenPages := false
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], resolve(n.Content[i+1])
		if key.Value == "pages" {
			pages, derr := decodePages(key, value)
			if derr != nil {
				return document.Document{}, derr
			}
			doc.Pages = pages
			seenPages = true
			continue
		}
		v, derr := decodeValue(value)
		if derr != nil {
			return document.Document{}, derr
		}
		sections[key.Value] = v
	}

	if !seenPages {
		return document.Document{}, structureError(n.Line, n.Column, "the pages section is missing")
	}
	if len(sections) > 0 {
		doc.Sections = sections
	}
	return doc, nil
}

func decodePages(key, n *yaml.Node) ([]document.Page, *DecodeError) {
	if n.Kind != yaml.SequenceNode {
		return nil, structureError(key.Line, key.Column, "pages must be a list")
	}
	if len(n.Content) == 0 {
		return nil, structureError(key.Line, key.Column, "at least one page is required")
	}

	pages := make([]document.Page, 0, len(n.Content))
	for _, item := range n.Content {
		page, derr := decodePage(resolve(item))
		if derr != nil {
			return nil, derr
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func decodePage(n *yaml.Node) (document.Page, *DecodeError) {
	if n.Kind != yaml.MappingNode {
		return document.Page{}, structureError(n.Line, n.Column, "page must be a mapping")
	}

	var (
		page    document.Page
		extra   = map[string]any{}
		columns *yaml.Node
		derr    *DecodeError
	)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case "name":
			page.Name, derr = scalarString(key, value)
		case "slug":
			page.Slug, derr = scalarString(key, value)
		case "width":
			page.Width, derr = scalarString(key, value)
		case "columns":
			columns = value
		default:
			extra[key.Value], derr = decodeValue(value)
		}
		if derr != nil {
			return document.Page{}, derr
		}
	}

	if columns == nil || isNull(columns) {
		return document.Page{}, structureError(n.Line, n.Column, "page %q has no columns", page.Name)
	}
	if columns.Kind != yaml.SequenceNode {
		return document.Page{}, structureError(columns.Line, columns.Column, "columns of page %q must be a list", page.Name)
	}
	if len(columns.Content) == 0 {
		return document.Page{}, structureError(columns.Line, columns.Column, "page %q has no columns", page.Name)
	}

	page.Columns = make([]document.Column, 0, len(columns.Content))
	for _, item := range columns.Content {
		column, derr := decodeColumn(resolve(item))
		if derr != nil {
			return document.Page{}, derr
		}
		page.Columns = append(page.Columns, column)
	}
	if len(extra) > 0 {
		page.Extra = extra
	}
	return page, nil
}

func decodeColumn(n *yaml.Node) (document.Column, *DecodeError) {
	if n.Kind != yaml.MappingNode {
		return document.Column{}, structureError(n.Line, n.Column, "column must be a mapping")
	}

	column := document.Column{Widgets: []document.Widget{}}
	extra := map[string]any{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], resolve(n.Content[i+1])
		var derr *DecodeError
		switch key.Value {
		case "size":
			column.Size, derr = scalarString(key, value)
		case "widgets":
			column.Widgets, derr = decodeWidgets(key, value)
		default:
			extra[key.Value], derr = decodeValue(value)
		}
		if derr != nil {
			return document.Column{}, derr
		}
	}
	if len(extra) > 0 {
		column.Extra = extra
	}
	return column, nil
}

func decodeWidgets(key, n *yaml.Node) ([]document.Widget, *DecodeError) {
	if isNull(n) {
		return []document.Widget{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, structureError(key.Line, key.Column, "widgets must be a list")
	}

	widgets := make([]document.Widget, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolve(item)
		if isPlaceholder(item) {
			w, derr := markerWidget(item)
			if derr != nil {
				return nil, derr
			}
			widgets = append(widgets, w)
			continue
		}
		if item.Kind != yaml.MappingNode {
			return nil, structureError(item.Line, item.Column, "widget must be a mapping")
		}

		value, derr := decodeValue(item)
		if derr != nil {
			return nil, derr
		}
		w, err := document.WidgetFromMap(value.(map[string]any))
		if err != nil {
			return nil, structureError(item.Line, item.Column, "%v", err)
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

func scalarString(key, n *yaml.Node) (string, *DecodeError) {
	if isPlaceholder(n) {
		return "", misplacedMarker(n)
	}
	if isNull(n) {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", structureError(n.Line, n.Column, "%s must be a scalar", key.Value)
	}
	return n.Value, nil
}

// decodeValue 把不透明的子树转换为普通 Go 值。
func decodeValue(n *yaml.Node) (any, *DecodeError) {
	if derr := rejectMarkers(n); derr != nil {
		return nil, derr
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, structureError(n.Line, n.Column, "%v", err)
	}
	return document.Normalize(v), nil
}

// rejectMarkers 报告不在 widgets 列表中的停用注释。
func rejectMarkers(n *yaml.Node) *DecodeError {
	if isPlaceholder(n) {
		return misplacedMarker(n)
	}
	for _, child := range n.Content {
		if derr := rejectMarkers(child); derr != nil {
			return derr
		}
	}
	return nil
}

func misplacedMarker(n *yaml.Node) *DecodeError {
	column := n.Column - 2
	if column < 1 {
		column = 1
	}
	return &DecodeError{
		Kind:    KindDeactivated,
		Message: "deactivated widget comment is not inside a widgets list",
		Line:    n.Line,
		Column:  column,
	}
}
