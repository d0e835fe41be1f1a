package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyRunID      = "run_id"
	KeyRule       = "rule"
	KeyPass       = "pass"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyCount      = "count"
	KeyBytes      = "bytes"
	KeyDurationMS = "duration_ms"
	KeyAddr       = "addr"
	KeyOp         = "op"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Rule(name string) slog.Attr      { return slog.String(KeyRule, name) }
func Pass(name string) slog.Attr      { return slog.String(KeyPass, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
