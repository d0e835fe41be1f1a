package styles

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// DefaultSassBinary is the Dart Sass executable looked up on PATH.
const DefaultSassBinary = "sass"

// Compiler turns a preprocessor source into CSS.
type Compiler interface {
	Compile(path string, src []byte) ([]byte, error)
}

// SassCompiler compiles SCSS and indented Sass through the Dart Sass embedded
// protocol. The sass process starts on first use and lives until Close.
type SassCompiler struct {
	binary       string
	includePaths []string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewSassCompiler creates a compiler. An empty binary means DefaultSassBinary.
func NewSassCompiler(binary string, includePaths []string) *SassCompiler {
	if binary == "" {
		binary = DefaultSassBinary
	}
	return &SassCompiler{binary: binary, includePaths: includePaths}
}

func (c *SassCompiler) start() (*godartsass.Transpiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transpiler != nil {
		return c.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: c.binary})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to start Dart Sass").
			WithContext("binary", c.binary).Build()
	}
	c.transpiler = t
	return t, nil
}

// Compile implements Compiler.
func (c *SassCompiler) Compile(path string, src []byte) ([]byte, error) {
	t, err := c.start()
	if err != nil {
		return nil, err
	}
	syntax := godartsass.SourceSyntaxSCSS
	if strings.EqualFold(filepath.Ext(path), ".sass") {
		syntax = godartsass.SourceSyntaxSASS
	}
	res, err := t.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(path),
		SourceSyntax: syntax,
		OutputStyle:  godartsass.OutputStyleExpanded,
		IncludePaths: append([]string{filepath.Dir(path)}, c.includePaths...),
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "sass compilation failed").
			WithContext("path", path).Build()
	}
	return []byte(res.CSS), nil
}

// Close stops the sass process if it was started.
func (c *SassCompiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transpiler == nil {
		return nil
	}
	err := c.transpiler.Close()
	c.transpiler = nil
	return err
}
