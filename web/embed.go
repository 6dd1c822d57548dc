// Package web embeds the HTML templates and static assets served by the front end.
package web

import "embed"

// TemplatesFS holds templates/layout.html, templates/pages/*.html and
// templates/partials/*.html.
//
//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS
