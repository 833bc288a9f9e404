// Package envdash provides embedded runtime resources: the documented default
// configuration written by "envdash config init".
package envdash

import (
	"embed"
	"io/fs"
)

//go:embed defaults/config.yaml
var rawDefaults embed.FS

// Defaults is the embedded defaults filesystem with the "defaults/" prefix stripped.
var Defaults = mustSub(rawDefaults, "defaults")

// DefaultConfigName is the name of the default config file within Defaults.
const DefaultConfigName = "config.yaml"

// DefaultConfig returns the contents of the embedded default config file.
func DefaultConfig() []byte {
	data, err := fs.ReadFile(Defaults, DefaultConfigName)
	if err != nil {
		panic(err)
	}
	return data
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
