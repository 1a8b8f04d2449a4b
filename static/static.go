// Package static holds the pages served by the demo server when no
// document root is configured.
package static

import "embed"

// FS contains hello.html and 404.html.
//
//go:embed hello.html 404.html
var FS embed.FS
