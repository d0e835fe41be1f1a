package markup

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"slices"
	"sort"

	"github.com/Masterminds/sprig/v3"
	"github.com/yuin/goldmark"
)

// baseFuncs is the function map templates are parsed with. The page-aware entries
// are placeholders replaced per page in pageFuncs.
func baseFuncs() template.FuncMap {
	funcs := sprig.FuncMap()
	funcs["markdown"] = markdown
	funcs["repeat"] = repeat
	funcs["helper"] = func(string, ...any) (template.HTML, error) {
		return "", errors.New("helper called outside a page")
	}
	funcs["ifpage"] = func(...string) bool { return false }
	funcs["unlesspage"] = func(...string) bool { return true }
	return funcs
}

// helperData is what a helper template sees as its dot.
type helperData struct {
	Args []any
	Page map[string]any
}

func pageFuncs(t *template.Template, page string, data map[string]any) template.FuncMap {
	return template.FuncMap{
		"helper": func(name string, args ...any) (template.HTML, error) {
			if t.Lookup(helperPrefix+name) == nil {
				return "", fmt.Errorf("helper %q not found", name)
			}
			var buf bytes.Buffer
			if err := t.ExecuteTemplate(&buf, helperPrefix+name, helperData{Args: args, Page: data}); err != nil {
				return "", err
			}
			// Already escaped by the helper's own execution.
			return template.HTML(buf.String()), nil //nolint:gosec
		},
		"ifpage": func(names ...string) bool {
			return slices.Contains(names, page)
		},
		"unlesspage": func(names ...string) bool {
			return !slices.Contains(names, page)
		},
	}
}

func markdown(src any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(fmt.Sprint(src)), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec
}

// repeat yields n iterations for range.
func repeat(n int) []int {
	if n < 0 {
		n = 0
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
