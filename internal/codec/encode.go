package codec

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"dashEditor/internal/document"
)

var (
	pageFields   = map[string]bool{"name": true, "slug": true, "width": true, "columns": true}
	columnFields = map[string]bool{"size": true, "widgets": true}
	widgetFields = map[string]bool{document.TypeKey: true, document.DeactivatedKey: true}
)

// Encode 将文档渲染为规范化的 YAML。键按固定顺序输出：全局段排序后在前，
// pages 在最后；页面依次为 name、slug、width、其它属性、columns；
// 列依次为 size、其它属性、widgets；widget 的 type 在最前。
// 结构相同的文档因此得到相同的文本，空的 name 与 size 不输出。
//
// 遇到 yaml 无法表示的值时 Encode 会 panic，Decode 产生的文档不会包含这类值。
func Encode(doc document.Document) string {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range sortedKeys(doc.Sections, map[string]bool{"pages": true}) {
		appendPair(root, key, valueNode(doc.Sections[key]))
	}

	pages := &yaml.Node{Kind: yaml.SequenceNode}
	for _, page := range doc.Pages {
		pages.Content = append(pages.Content, pageNode(page))
	}
	appendPair(root, "pages", pages)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		panic(fmt.Sprintf("codec: encode document: %v", err))
	}
	if err := enc.Close(); err != nil {
		panic(fmt.Sprintf("codec: flush encoder: %v", err))
	}
	return collapseMarkers(buf.String())
}

func pageNode(page document.Page) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if page.Name != "" {
		appendPair(n, "name", valueNode(page.Name))
	}
	if page.Slug != "" {
		appendPair(n, "slug", valueNode(page.Slug))
	}
	if page.Width != "" {
		appendPair(n, "width", valueNode(page.Width))
	}
	for _, key := range sortedKeys(page.Extra, pageFields) {
		appendPair(n, key, valueNode(page.Extra[key]))
	}

	columns := &yaml.Node{Kind: yaml.SequenceNode}
	for _, column := range page.Columns {
		columns.Content = append(columns.Content, columnNode(column))
	}
	appendPair(n, "columns", columns)
	return n
}

func columnNode(column document.Column) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if column.Size != "" {
		appendPair(n, "size", valueNode(column.Size))
	}
	for _, key := range sortedKeys(column.Extra, columnFields) {
		appendPair(n, key, valueNode(column.Extra[key]))
	}

	widgets := &yaml.Node{Kind: yaml.SequenceNode}
	for _, widget := range column.Widgets {
		widgets.Content = append(widgets.Content, widgetNode(widget))
	}
	appendPair(n, "widgets", widgets)
	return n
}

func widgetNode(w document.Widget) *yaml.Node {
	if w.Deactivated {
		return markerNode(w)
	}
	n := &yaml.Node{Kind: yaml.MappingNode}
	appendPair(n, document.TypeKey, valueNode(w.Type))
	for _, key := range sortedKeys(w.Properties, widgetFields) {
		appendPair(n, key, valueNode(w.Properties[key]))
	}
	return n
}

func appendPair(n *yaml.Node, key string, value *yaml.Node) {
	n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

func valueNode(v any) *yaml.Node {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		panic(fmt.Sprintf("codec: encode value %T: %v", v, err))
	}
	return n
}

func sortedKeys(m map[string]any, skip map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if skip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
