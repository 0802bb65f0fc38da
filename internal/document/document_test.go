package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc() Document {
	return Document{
		Sections: map[string]any{"theme": map[string]any{"light": true}},
		Pages: []Page{{
			Name: "Home",
			Columns: []Column{{
				Size: SizeFull,
				Widgets: []Widget{
					NewWidget("rss", map[string]any{"limit": 10, "feeds": []any{"a", "b"}}),
					{Type: "clock", Properties: map[string]any{}, Deactivated: true},
				},
			}},
		}},
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := newDoc()
	copied := original.Clone()
	require.True(t, Equal(original, copied))

	copied.Pages[0].Columns[0].Widgets[0].Properties["limit"] = 20
	copied.Pages[0].Columns[0].Widgets[0].Properties["feeds"].([]any)[0] = "z"
	copied.Sections["theme"].(map[string]any)["light"] = false
	copied.Pages[0].Name = "Other"

	assert.Equal(t, 10, original.Pages[0].Columns[0].Widgets[0].Properties["limit"])
	assert.Equal(t, "a", original.Pages[0].Columns[0].Widgets[0].Properties["feeds"].([]any)[0])
	assert.Equal(t, true, original.Sections["theme"].(map[string]any)["light"])
	assert.Equal(t, "Home", original.Pages[0].Name)
	assert.False(t, Equal(original, copied))
}

func TestEqualIgnoresNumericRepresentation(t *testing.T) {
	a := newDoc()
	b := newDoc()
	b.Pages[0].Columns[0].Widgets[0].Properties["limit"] = float64(10)
	assert.True(t, Equal(a, b))

	b.Pages[0].Columns[0].Widgets[1].Deactivated = false
	assert.False(t, Equal(a, b))
}

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
	a := Document{Pages: []Page{{Name: "Home", Columns: []Column{{Size: SizeFull}}}}}
	b := Document{
		Sections: map[string]any{},
		Pages:    []Page{{Name: "Home", Extra: map[string]any{}, Columns: []Column{{Size: SizeFull, Widgets: []Widget{}}}}},
	}
	assert.True(t, Equal(a, b))
}

func TestWidgetJSON(t *testing.T) {
	w := Widget{Type: "weather", Properties: map[string]any{"location": "Oslo"}, Deactivated: true}

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"weather","location":"Oslo","_deactivated":true}`, string(raw))

	var parsed Widget
	require.NoError(t, json.Unmarshal([]byte(`{"type":"rss","limit":5,"_deactivated":false}`), &parsed))
	assert.Equal(t, "rss", parsed.Type)
	assert.False(t, parsed.Deactivated)
	assert.Equal(t, map[string]any{"limit": 5}, parsed.Properties)

	assert.Error(t, json.Unmarshal([]byte(`{"limit":5}`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`{"type":""}`), &parsed))
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := newDoc()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var parsed Document
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.True(t, Equal(doc, parsed))
}

func TestValidate(t *testing.T) {
	require.NoError(t, newDoc().Validate())

	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"no pages", func(d *Document) { d.Pages = nil }},
		{"page without columns", func(d *Document) { d.Pages[0].Columns = nil }},
		{"widget without type", func(d *Document) { d.Pages[0].Columns[0].Widgets[0].Type = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDoc()
			tt.mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))
		})
	}
}

func TestValidateLeavesLayoutToTheUI(t *testing.T) {
	d := newDoc()
	d.Pages[0].Name = ""
	d.Pages[0].Columns[0].Size = ""
	d.Pages[0].Columns = append(d.Pages[0].Columns, Column{Size: "huge"}, Column{Size: SizeFull}, Column{})
	assert.NoError(t, d.Validate())
}

func TestWidgetCount(t *testing.T) {
	total, deactivated := newDoc().WidgetCount()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, deactivated)
}
