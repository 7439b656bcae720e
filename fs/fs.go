// Package appfs exposes assets compiled into the binary.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
