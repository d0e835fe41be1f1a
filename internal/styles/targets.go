package styles

import (
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/foundation/normalization"
)

var engineNames = normalization.New("browser in target", map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
})

// ParseTargets turns browser targets such as "chrome100" or "safari13.1" into esbuild
// engines. The prefixing and lowering applied to the stylesheet follow these.
func ParseTargets(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexFunc(t, unicode.IsDigit)
		if i <= 0 {
			return nil, ferrors.ValidationError("browser target needs a name and version").
				WithContext("target", t).Build()
		}
		name, ok := engineNames.Lookup(t[:i])
		if !ok {
			return nil, ferrors.ValidationError("unknown browser in target").
				WithContext("target", t).
				WithContext("valid", strings.Join(engineNames.Keys(), ",")).
				Build()
		}
		engines = append(engines, api.Engine{Name: name, Version: t[i:]})
	}
	return engines, nil
}
