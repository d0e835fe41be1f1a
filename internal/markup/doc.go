// Package markup assembles static pages from page templates.
//
// A page is a top-level *.html file in the template root. It may open with YAML
// front matter and is rendered inside a layout:
//
//	---
//	title: Home
//	layout: default
//	---
//	<h1>{{ .title }}</h1>
//	{{ template "header" . }}
//
// Layouts (layouts/*.html) include the page with {{ template "body" . }}. Partials
// (partials/**/*.html) are addressed by their path relative to the partials root
// without extension. Helpers (helpers/**/*.html) are invoked with
// {{ helper "name" arg... }} and see .Args and .Page. Data files
// (data/**/*.{yaml,yml,json}) are exposed at the top level under their base name.
//
// The template index is rebuilt by Refresh at the start of every Assemble.
package markup
