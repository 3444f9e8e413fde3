// Package web contains the browser UI served by Grabber.
package web

import "embed"

//go:embed *.html css js
var Assets embed.FS
