// Package tasks defines the task graph used by assetbuilder.
//
// A Task is anything with a name and a blocking Run. Leaf tasks wrap a single
// transformation; Series and Parallel compose them:
//
//   - Series runs each step only after the previous one returned nil. The first
//     failure stops the sequence and is returned.
//   - Parallel starts every child at once and waits for all of them. The first
//     failure cancels the shared context (stopping long-running children such as
//     the dev server) and is returned.
//
// A Registry maps the CLI-visible names to tasks.
package tasks
