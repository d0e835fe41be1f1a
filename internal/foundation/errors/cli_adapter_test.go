package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "unknown task", err: NotFoundError("no such task").Build(), expected: 3},
		{name: "config", err: ConfigError("bad yaml").Build(), expected: 7},
		{name: "source read", err: SourceError("missing file").Build(), expected: 9},
		{name: "transform", err: TransformError("codec failure").Build(), expected: 11},
		{name: "filesystem", err: FileSystemError("write failed").Build(), expected: 11},
		{name: "server", err: ServerError("listen failed").Build(), expected: 12},
		{name: "unclassified", err: errors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out, logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(SourceError("template not found").WithContext("path", "app/html/x.html").Build())

	if code != 9 {
		t.Errorf("exit code = %d, want 9", code)
	}
	if !strings.Contains(out.String(), "Error (source): template not found") {
		t.Errorf("unexpected console output: %q", out.String())
	}
	if !strings.Contains(logs.String(), "path=app/html/x.html") {
		t.Errorf("expected context in log output, got %q", logs.String())
	}
}
