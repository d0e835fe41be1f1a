// Package errors provides the classified error primitives used across assetbuilder.
//
// Every task failure surfaces as a ClassifiedError so the CLI can pick an exit code
// and the watch supervisor can log a useful message without inspecting strings.
//
// Key features:
//   - ErrorCategory: source, transform, filesystem, config, validation, runtime, internal
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and console formatting
//
// Example usage:
//
//	err := errors.SourceError("stylesheet not found").
//		WithContext("path", path).
//		WithCause(statErr).
//		Build()
package errors
