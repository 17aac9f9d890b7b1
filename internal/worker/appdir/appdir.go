// Package appdir resolves installed-application paths relative to the
// deployment root the worker was provisioned under.
package appdir

import "path/filepath"

// Paths locates the external tools the worker invokes.
type Paths struct {
	root string
}

// New creates a Paths anchored at root.
func New(root string) *Paths {
	return &Paths{root: root}
}

// Resolve joins elem onto the deployment root.
func (p *Paths) Resolve(elem ...string) string {
	return filepath.Join(append([]string{p.root}, elem...)...)
}

// Blender returns the renderer executable path.
func (p *Paths) Blender() string {
	return p.Resolve("blender", "blender")
}

// Convert returns the image-conversion tool path.
func (p *Paths) Convert() string {
	return p.Resolve("imagemagick", "convert")
}
