// Package documenttest builds template fixtures in memory for tests.
package documenttest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sort"
)

// Bundle zips a manifest (stored as document.toml, or document.json when
// it starts with '{') together with PNG-encoded assets.
func Bundle(manifest string, assets map[string]image.Image) []byte {
	name := "document.toml"
	if len(manifest) > 0 && manifest[0] == '{' {
		name = "document.json"
	}
	files := map[string][]byte{name: []byte(manifest)}
	for p, img := range assets {
		files[p] = PNG(img)
	}
	return Zip(files)
}

// Zip writes files into an archive in sorted name order.
func Zip(files map[string][]byte) []byte {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write(files[n]); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNG encodes img.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGHeader returns a PNG signature and IHDR chunk declaring a w×h RGBA
// image with no pixel data. Decoders that trust the header allocate the
// full image before failing.
func PNGHeader(w, h int) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

// Solid returns a w×h image filled with c.
func Solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = nc.R, nc.G, nc.B, nc.A
	}
	return img
}

// Pattern returns an opaque w×h image whose every pixel is distinct
// enough to expose resampling shifts.
func Pattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, w-1)),
				G: uint8(y * 255 / max(1, h-1)),
				B: uint8((x*7 + y*13) % 256),
				A: 255,
			})
		}
	}
	return img
}
