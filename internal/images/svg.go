package images

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
)

const svgMime = "image/svg+xml"

var (
	svgRootTag = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	svgAttr    = regexp.MustCompile(`(?is)\s(width|height|viewBox)\s*=\s*("[^"]*"|'[^']*')`)
)

// svgOptimizer strips configured elements, drops a redundant viewBox when asked and
// minifies the rest. Element ids are kept.
type svgOptimizer struct {
	strip         []*regexp.Regexp
	removeViewBox bool
	m             *minify.M
}

func newSVGOptimizer(cfg config.SVGConfig) *svgOptimizer {
	o := &svgOptimizer{removeViewBox: cfg.RemoveViewBox, m: minify.New()}
	for _, el := range cfg.StripElements {
		q := regexp.QuoteMeta(el)
		o.strip = append(o.strip, regexp.MustCompile(`(?is)<`+q+`\b[^>]*?(?:/>|>.*?</`+q+`\s*>)`))
	}
	o.m.AddFunc("text/css", css.Minify)
	o.m.Add(svgMime, &svg.Minifier{Precision: cfg.Precision})
	return o
}

func (o *svgOptimizer) optimize(data []byte) ([]byte, error) {
	for _, re := range o.strip {
		data = re.ReplaceAll(data, nil)
	}
	if o.removeViewBox {
		data = dropRedundantViewBox(data)
	}
	var buf bytes.Buffer
	if err := o.m.Minify(svgMime, &buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dropRedundantViewBox removes the root viewBox when it is exactly "0 0 width height".
func dropRedundantViewBox(data []byte) []byte {
	loc := svgRootTag.FindIndex(data)
	if loc == nil {
		return data
	}
	tag := data[loc[0]:loc[1]]
	attrs := map[string]string{}
	for _, m := range svgAttr.FindAllSubmatch(tag, -1) {
		attrs[string(m[1])] = strings.Trim(string(m[2]), `"'`)
	}
	vb, w, h := attrs["viewBox"], strings.TrimSuffix(attrs["width"], "px"), strings.TrimSuffix(attrs["height"], "px")
	if vb == "" || w == "" || h == "" || strings.Join(strings.Fields(vb), " ") != "0 0 "+w+" "+h {
		return data
	}
	stripped := svgAttr.ReplaceAllFunc(tag, func(a []byte) []byte {
		if bytes.Contains(a, []byte("viewBox")) {
			return nil
		}
		return a
	})
	out := make([]byte, 0, len(data))
	out = append(out, data[:loc[0]]...)
	out = append(out, stripped...)
	return append(out, data[loc[1]:]...)
}
