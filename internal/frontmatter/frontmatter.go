// Package frontmatter splits YAML front matter from page templates.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the page started with a front matter
// delimiter but never closed it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates `---` delimited YAML front matter from the template body.
// CRLF line endings are accepted. When the content has no front matter, had is
// false and body is the full input.
func Split(content []byte) (frontmatter, body []byte, had bool, err error) {
	nl := []byte("\n")
	if bytes.HasPrefix(content, []byte("---\r\n")) {
		nl = []byte("\r\n")
	}
	open := append([]byte("---"), nl...)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}

	closeSeq := append(append([]byte{}, nl...), open...)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// A closing delimiter at EOF without trailing newline is still valid.
		closeEOF := append(append([]byte{}, nl...), []byte("---")...)
		if bytes.HasSuffix(rest, closeEOF) {
			return rest[:len(rest)-len(closeEOF)+len(nl)], []byte{}, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closeSeq):], true, nil
}

// Parse splits content and decodes the front matter into a map. Pages without
// front matter get an empty, non-nil map.
func Parse(content []byte) (fields map[string]any, body []byte, err error) {
	fm, body, _, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	fields = map[string]any{}
	if len(bytes.TrimSpace(fm)) == 0 {
		return fields, body, nil
	}
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, body, nil
}
