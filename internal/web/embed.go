// Package web embeds the browser client served at "/".
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var files embed.FS

// FS holds index.html, a single page that lists todos, shows each
// mutation optimistically and re-fetches the list once it settles.
var FS fs.FS = files
