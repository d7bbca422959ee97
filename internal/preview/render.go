package preview

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"
)

const (
	PlaceholderImage     = "https://via.placeholder.com/650x300"
	PlaceholderThumbnail = "https://via.placeholder.com/150"
)

var (
	loopRe     = regexp.MustCompile(`\{%\s*for\s+(\w+)\s+in\s+([\w.]+)\s*%\}([\s\S]*?)\{%\s*endfor\s*%\}`)
	parityRe   = regexp.MustCompile(`\{%\s*if\s+loop\.index\s*%\s*2\s*==\s*([01])\s*%\}([\s\S]*?)\{%\s*else\s*%\}([\s\S]*?)\{%\s*endif\s*%\}`)
	fieldRe    = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)
	leftoverIf = regexp.MustCompile(`\{%\s*if\b[\s\S]*?\{%\s*endif\s*%\}`)
	strayTag   = regexp.MustCompile(`\{%[\s\S]*?%\}`)
)

// Bag is the data a template is rendered against, keyed by top-level scope
// such as "params" and "contact".
type Bag map[string]any

// Renderer substitutes {{ scope.field }} placeholders and expands
// {% for x in scope.list %}...{% endfor %} blocks. Unresolved fields render
// their default or an empty string.
type Renderer struct {
	// Defaults maps a full placeholder path, such as "contact.FIRSTNAME", to
	// the value used when it does not resolve.
	Defaults map[string]string
}

// NewBag converts each scope value through its JSON form so struct tags name
// the template fields.
func NewBag(scopes map[string]any) Bag {
	b := Bag{}
	for k, v := range scopes {
		b[k] = normalize(v)
	}
	return b
}

func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Render never fails; malformed or missing data degrades to defaults.
func (r *Renderer) Render(tpl string, data Bag) string {
	out := loopRe.ReplaceAllStringFunc(tpl, func(block string) string {
		m := loopRe.FindStringSubmatch(block)
		name, path, body := m[1], m[2], m[3]

		items, _ := lookup(map[string]any(data), path).([]any)
		var sb strings.Builder
		for i, item := range items {
			scope := Bag{}
			for k, v := range data {
				scope[k] = v
			}
			scope[name] = item
			sb.WriteString(r.fields(parity(body, i), scope))
		}
		return sb.String()
	})

	out = r.fields(out, data)
	out = leftoverIf.ReplaceAllString(out, "")
	return strayTag.ReplaceAllString(out, "")
}

// parity resolves loop.index odd/even conditionals for the zero-based index i.
func parity(body string, i int) string {
	return parityRe.ReplaceAllStringFunc(body, func(block string) string {
		m := parityRe.FindStringSubmatch(block)
		want := m[1] == "1"
		odd := (i+1)%2 == 1
		if odd == want {
			return m[2]
		}
		return m[3]
	})
}

func (r *Renderer) fields(s string, data Bag) string {
	return fieldRe.ReplaceAllStringFunc(s, func(tok string) string {
		path := fieldRe.FindStringSubmatch(tok)[1]
		if v, ok := stringify(lookup(map[string]any(data), path)); ok {
			return html.EscapeString(v)
		}
		return r.fallback(path)
	})
}

func (r *Renderer) fallback(path string) string {
	if d, ok := r.Defaults[path]; ok {
		return d
	}
	last := strings.ToLower(path[strings.LastIndex(path, ".")+1:])
	switch {
	case strings.Contains(last, "image"):
		if strings.HasPrefix(path, "params.") {
			return PlaceholderImage
		}
		return PlaceholderThumbnail
	case last == "link" || strings.HasSuffix(last, "url"):
		return "#"
	}
	return ""
}

func lookup(root map[string]any, path string) any {
	var cur any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := stringify(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	}
	return "", false
}
