package livereload

import (
	"bytes"
	"net/http"
	"strings"
)

// ClientPath is where the client script is served.
const ClientPath = "/livereload.js"

// EventsPath is where the SSE endpoint is mounted.
const EventsPath = "/livereload"

// Script is the browser client. The first event sets a baseline, empty when nothing
// has been built yet; any later non-empty hash differing from it reloads the page.
const Script = `(() => {
  if (window.__ASSETBUILDER_LR__) return;
  window.__ASSETBUILDER_LR__ = true;
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.hash; return; }
        if (p.hash && p.hash !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

const scriptTag = `<script async src="` + ClientPath + `"></script>`

// ServeScript serves the client script.
func ServeScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(Script))
}

// Inject is middleware that adds the client script tag to HTML pages before </body>.
func Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !(p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html")) {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, statusCode: http.StatusOK, maxSize: 512 * 1024}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers HTML responses up to maxSize so the script can be inserted.
// Anything larger or not HTML is passed through untouched.
type injector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	buffering     bool
	headerWritten bool
	passthrough   bool
	maxSize       int
}

func (l *injector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough && !l.headerWritten {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *injector) Write(data []byte) (int, error) {
	if !l.passthrough && !l.buffering {
		ct := l.Header().Get("Content-Type")
		if l.statusCode != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			return l.passthroughWrite(data)
		}
		l.buffering = true
	}
	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}
	if len(l.buffer)+len(data) > l.maxSize {
		return l.passthroughWrite(data)
	}
	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

func (l *injector) passthroughWrite(data []byte) (int, error) {
	l.passthrough = true
	if !l.headerWritten {
		l.ResponseWriter.WriteHeader(l.statusCode)
		l.headerWritten = true
	}
	if len(l.buffer) > 0 {
		if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
			return 0, err
		}
		l.buffer = nil
	}
	return l.ResponseWriter.Write(data)
}

func (l *injector) finalize() {
	if l.passthrough {
		return
	}
	if len(l.buffer) == 0 {
		if !l.headerWritten {
			l.ResponseWriter.WriteHeader(l.statusCode)
		}
		return
	}
	out := l.buffer
	if i := bytes.LastIndex(bytes.ToLower(out), []byte("</body>")); i >= 0 {
		out = append(append(append([]byte{}, out[:i]...), scriptTag...), out[i:]...)
	} else {
		out = append(out, scriptTag...)
	}
	l.Header().Del("Content-Length")
	l.ResponseWriter.WriteHeader(l.statusCode)
	_, _ = l.ResponseWriter.Write(out)
}
