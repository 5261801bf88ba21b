// Package schemas embeds the JSON schemas of the mesh stream protocol.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS
