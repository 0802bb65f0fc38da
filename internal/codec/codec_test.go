package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashEditor/internal/document"
)

func token(t *testing.T, m map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func sampleDocument() document.Document {
	return document.Document{
		Sections: map[string]any{
			"server": map[string]any{"port": 8080, "host": "0.0.0.0"},
			"theme":  map[string]any{"background-color": "225 14 15", "contrast-multiplier": 1.2},
		},
		Pages: []document.Page{
			{
				Name:  "Home",
				Slug:  "home",
				Width: "slim",
				Extra: map[string]any{"hide-desktop-navigation": true},
				Columns: []document.Column{
					{
						Size: document.SizeSmall,
						Widgets: []document.Widget{
							document.NewWidget("calendar", map[string]any{"first-day-of-week": "monday"}),
						},
					},
					{
						Size: document.SizeFull,
						Widgets: []document.Widget{
							document.NewWidget("rss", map[string]any{
								"limit": 10,
								"feeds": []any{
									map[string]any{"url": "https://example.com/feed.xml", "title": "Example"},
								},
							}),
							{Type: "weather", Properties: map[string]any{"location": "London", "units": "metric"}, Deactivated: true},
							document.NewWidget("hacker-news", nil),
						},
					},
				},
			},
			{
				Name: "Markets",
				Columns: []document.Column{
					{Size: document.SizeFull, Widgets: []document.Widget{}},
				},
			},
		},
	}
}

func TestRoundTripIsIdempotent(t *testing.T) {
	doc := sampleDocument()

	text := Encode(doc)
	decoded, derr := Decode(text)
	require.Nil(t, derr)

	assert.True(t, document.Equal(doc, decoded), "decoded document differs:\n%s", text)
	assert.Equal(t, text, Encode(decoded), "encoding is not stable across a round trip")
}

func TestEncodeIsDeterministic(t *testing.T) {
	first := Encode(sampleDocument())
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Encode(sampleDocument()))
	}
}

func TestEncodeHidesDeactivatedWidgets(t *testing.T) {
	doc := sampleDocument()
	text := Encode(doc)

	assert.NotContains(t, text, "London")
	assert.NotContains(t, text, "metric")
	assert.NotContains(t, text, document.DeactivatedKey)
	assert.NotContains(t, text, "type: weather")

	expected := token(t, map[string]any{"type": "weather", "location": "London", "units": "metric"})
	assert.Contains(t, text, DeactivatedCommentPrefix+expected)
}

func TestDeactivatedWidgetKeepsItsPosition(t *testing.T) {
	doc := document.Document{Pages: []document.Page{{
		Name: "Home",
		Columns: []document.Column{{
			Size: document.SizeFull,
			Widgets: []document.Widget{
				document.NewWidget("a", map[string]any{"title": "A"}),
				{Type: "b", Properties: map[string]any{"title": "B"}, Deactivated: true},
				document.NewWidget("c", map[string]any{"title": "C"}),
			},
		}},
	}}}

	text := Encode(doc)
	iA := strings.Index(text, "type: a")
	iB := strings.Index(text, DeactivatedCommentPrefix)
	iC := strings.Index(text, "type: c")
	require.True(t, iA >= 0 && iB >= 0 && iC >= 0, text)
	assert.True(t, iA < iB && iB < iC, "marker is out of place:\n%s", text)

	decoded, derr := Decode(text)
	require.Nil(t, derr)
	widgets := decoded.Pages[0].Columns[0].Widgets
	require.Len(t, widgets, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{widgets[0].Type, widgets[1].Type, widgets[2].Type})
	assert.Equal(t, []bool{false, true, false}, []bool{widgets[0].Deactivated, widgets[1].Deactivated, widgets[2].Deactivated})
	assert.Equal(t, "B", widgets[1].Properties["title"])
}

func TestAllDeactivatedColumnRoundTrips(t *testing.T) {
	doc := document.Document{Pages: []document.Page{{
		Name: "Home",
		Columns: []document.Column{{
			Size: document.SizeFull,
			Widgets: []document.Widget{
				{Type: "rss", Properties: map[string]any{"limit": 5}, Deactivated: true},
				{Type: "clock", Properties: map[string]any{}, Deactivated: true},
				{Type: "search", Properties: map[string]any{"engine": "duckduckgo"}, Deactivated: true},
			},
		}},
	}}}

	decoded, derr := Decode(Encode(doc))
	require.Nil(t, derr)

	widgets := decoded.Pages[0].Columns[0].Widgets
	require.Len(t, widgets, 3)
	for _, w := range widgets {
		assert.True(t, w.Deactivated, w.Type)
	}
	assert.True(t, document.Equal(doc, decoded))
}

func TestDecodeHandWrittenMarkers(t *testing.T) {
	weather := token(t, map[string]any{"type": "weather", "location": "Oslo", "hour-format": 24})
	text := fmt.Sprintf(`# my dashboard
theme:
  light: true
pages:
  - name: Home
    columns:
      - size: full
        widgets:
          - type: rss
            limit: 10
          %s%s
          - type: videos
            channels:
              - UCXuqSBlHAE6Xw-yeJA0Tunw
`, DeactivatedCommentPrefix, weather)

	doc, derr := Decode(text)
	require.Nil(t, derr)

	widgets := doc.Pages[0].Columns[0].Widgets
	require.Len(t, widgets, 3)
	assert.Equal(t, "weather", widgets[1].Type)
	assert.True(t, widgets[1].Deactivated)
	assert.Equal(t, 24, widgets[1].Properties["hour-format"])
	assert.Equal(t, map[string]any{"light": true}, doc.Sections["theme"])
}

func TestDecodeKeepsUnknownProperties(t *testing.T) {
	text := `pages:
  - name: Home
    center-vertically: true
    columns:
      - size: full
        custom-column-flag: x
        widgets:
          - type: some-future-widget
            nested:
              deep: [1, 2, 3]
`
	doc, derr := Decode(text)
	require.Nil(t, derr)

	page := doc.Pages[0]
	assert.Equal(t, true, page.Extra["center-vertically"])
	assert.Equal(t, "x", page.Columns[0].Extra["custom-column-flag"])

	w := page.Columns[0].Widgets[0]
	assert.Equal(t, "some-future-widget", w.Type)
	assert.Equal(t, map[string]any{"deep": []any{1, 2, 3}}, w.Properties["nested"])
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		kind     string
		line     int
		contains string
	}{
		{
			name: "syntax error carries line",
			text: "pages:\n  - name: Home\n    columns: [\n",
			kind: KindSyntax,
		},
		{
			name:     "empty document",
			text:     "",
			kind:     KindStructure,
			contains: "empty",
		},
		{
			name:     "missing pages",
			text:     "theme:\n  light: true\n",
			kind:     KindStructure,
			contains: "pages",
		},
		{
			name:     "page without columns",
			text:     "pages:\n  - name: Home\n",
			kind:     KindStructure,
			line:     2,
			contains: "no columns",
		},
		{
			name:     "widget without type",
			text:     "pages:\n  - name: Home\n    columns:\n      - size: full\n        widgets:\n          - title: x\n",
			kind:     KindStructure,
			line:     6,
			contains: "type",
		},
		{
			name:     "marker with invalid token",
			text:     "pages:\n  - name: Home\n    columns:\n      - size: full\n        widgets:\n          # DEACTIVATED_WIDGET_BASE64: not*base64\n",
			kind:     KindDeactivated,
			line:     6,
			contains: "base64",
		},
		{
			name:     "marker outside widgets",
			text:     "links:\n  # DEACTIVATED_WIDGET_BASE64: e30=\npages:\n  - name: Home\n    columns:\n      - size: full\n",
			kind:     KindDeactivated,
			line:     2,
			contains: "not inside a widgets list",
		},
		{
			name:     "marker payload is not a widget",
			text:     "pages:\n  - name: Home\n    columns:\n      - size: full\n        widgets:\n          # DEACTIVATED_WIDGET_BASE64: e30=\n",
			kind:     KindDeactivated,
			line:     6,
			contains: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, derr := Decode(tt.text)
			require.NotNil(t, derr)
			assert.Equal(t, tt.kind, derr.Kind)
			if tt.line > 0 {
				assert.Equal(t, tt.line, derr.Line)
			}
			if tt.contains != "" {
				assert.Contains(t, derr.Message, tt.contains)
			}
			assert.NotEmpty(t, derr.Error())
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, derr := Decode("pages:\n  - name: Home\n\tcolumns: []\n")
	require.NotNil(t, derr)
	assert.Equal(t, KindSyntax, derr.Kind)
	assert.Equal(t, 3, derr.Line)
	assert.Contains(t, derr.Error(), "line 3")
}

func TestLiteralDeactivatedKeyIsNeverWritten(t *testing.T) {
	text := "pages:\n  - name: Home\n    columns:\n      - size: full\n        widgets:\n          - type: rss\n            _deactivated: true\n"
	doc, derr := Decode(text)
	require.Nil(t, derr)
	require.True(t, doc.Pages[0].Columns[0].Widgets[0].Deactivated)

	out := Encode(doc)
	assert.NotContains(t, out, document.DeactivatedKey)
	assert.Contains(t, out, DeactivatedCommentPrefix)
}

func TestMarkerTextInsideBlockScalarIsKept(t *testing.T) {
	weather := token(t, map[string]any{"type": "weather"})
	text := fmt.Sprintf(`notes: |
  keep this line
  %se30=
pages:
  - name: Home
    columns:
      - size: full
        widgets:
          - type: html
            source: >-
              <p>hi</p>
              %se30=
          %s%s
          - |
            %se30=
`, DeactivatedCommentPrefix, DeactivatedCommentPrefix, DeactivatedCommentPrefix, weather, DeactivatedCommentPrefix)

	_, derr := Decode(text)
	require.NotNil(t, derr, "a bare block scalar is not a widget")
	assert.Equal(t, KindStructure, derr.Kind)
	assert.Contains(t, derr.Message, "widget must be a mapping")

	text = strings.Replace(text, "          - |\n            "+DeactivatedCommentPrefix+"e30=\n", "", 1)
	doc, derr := Decode(text)
	require.Nil(t, derr)

	assert.Equal(t, "keep this line\n"+DeactivatedCommentPrefix+"e30=\n", doc.Sections["notes"])
	widgets := doc.Pages[0].Columns[0].Widgets
	require.Len(t, widgets, 2)
	assert.Equal(t, "<p>hi</p> "+DeactivatedCommentPrefix+"e30=", widgets[0].Properties["source"])
	assert.Equal(t, "weather", widgets[1].Type)
	assert.True(t, widgets[1].Deactivated)

	again, derr := Decode(Encode(doc))
	require.Nil(t, derr)
	assert.True(t, document.Equal(doc, again))
}

func TestPlaceholderTextInPropertySurvivesEncode(t *testing.T) {
	snippet := "line one\n- \"" + placeholderPrefix + "e30=\"\n"
	doc := document.Document{Pages: []document.Page{{
		Name: "Home",
		Columns: []document.Column{{
			Size:    document.SizeFull,
			Widgets: []document.Widget{document.NewWidget("html", map[string]any{"source": snippet})},
		}},
	}}}

	out := Encode(doc)
	assert.NotContains(t, out, DeactivatedCommentPrefix)

	again, derr := Decode(out)
	require.Nil(t, derr)
	assert.Equal(t, snippet, again.Pages[0].Columns[0].Widgets[0].Properties["source"])
}

func TestEmptyNameAndSizeAreNotInvented(t *testing.T) {
	text := "pages:\n  - columns:\n      - widgets:\n          - type: rss\n"
	doc, derr := Decode(text)
	require.Nil(t, derr)

	out := Encode(doc)
	assert.NotContains(t, out, "name:")
	assert.NotContains(t, out, "size:")

	again, derr := Decode(out)
	require.Nil(t, derr)
	assert.True(t, document.Equal(doc, again))
}
