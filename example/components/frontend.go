package components

import "embed"

// Frontend holds the HTML imports referenced by the exporters.
//
//go:embed frontend
var Frontend embed.FS
