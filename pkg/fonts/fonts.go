// Package fonts provides the faces used to label generated images.
//
// The Go Regular font is embedded by golang.org/x/image, so labels render
// the same on every machine without a font lookup.
package fonts

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Parsed font (computed once on first access).
var (
	regular     *opentype.Font
	regularErr  error
	regularOnce sync.Once
)

// Regular returns the parsed Go Regular font.
func Regular() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// Face returns a Go Regular face at size points (72 DPI, so points equal
// pixels). It falls back to the fixed 7x13 bitmap face if the font cannot
// be loaded or size is not positive.
func Face(size float64) font.Face {
	if size <= 0 {
		return basicfont.Face7x13
	}
	f, err := Regular()
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
