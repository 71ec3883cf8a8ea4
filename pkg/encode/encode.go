// Package encode serializes flattened canvases to raster formats and decodes
// replacement rasters.
//
// PNG is the default and the only lossless RGBA format; JPEG drops alpha by
// compositing onto white. BMP and TIFF are provided for print workflows.
//
// Decoding accepts PNG, JPEG, GIF, BMP, TIFF and WebP.
package encode

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/webp" // register WebP decoder

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Format is an output raster encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when Options.Quality is zero.
const DefaultJPEGQuality = 92

// MaxPixels bounds the width×height of any raster Decode accepts. The limit
// is checked against the header before pixel memory is allocated.
const MaxPixels = 100 << 20

// Formats lists every supported output format.
var Formats = []Format{FormatPNG, FormatJPEG, FormatBMP, FormatTIFF}

// ParseFormat normalizes a user-supplied format name or file extension.
// An empty string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported output format %q (want png, jpeg, bmp or tiff)", s)
	}
}

// Extension returns the conventional file extension without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// Options configures Encode.
type Options struct {
	Format  Format
	Quality int // JPEG only, 1-100
}

// Encode writes img to w in the requested format.
func Encode(w io.Writer, img image.Image, opts Options) error {
	if img == nil {
		return errors.New(errors.ErrCodeInvalidImage, "nothing to encode")
	}
	var err error
	switch opts.Format {
	case "", FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		err = jpeg.Encode(w, flattenOnto(img, color.White), &jpeg.Options{Quality: q})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported output format %q", opts.Format)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", opts.Format)
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes a raster in any supported input format and reports the
// format name as registered with the image package.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New(errors.ErrCodeInvalidImage, "image is empty")
	}
	cfg, _, err := DecodeConfig(data)
	if err != nil {
		return nil, "", err
	}
	if err := CheckSize(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", errors.New(errors.ErrCodeInvalidImage, "image has no pixels")
	}
	return img, name, nil
}

// DecodeConfig returns the dimensions and format name without decoding
// pixel data.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "read image header")
	}
	return cfg, name, nil
}

// CheckSize reports an INVALID_IMAGE error when a w×h raster has no pixels
// or more than MaxPixels.
func CheckSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.New(errors.ErrCodeInvalidImage, "image has no pixels (%dx%d)", w, h)
	}
	if int64(w)*int64(h) > MaxPixels {
		return errors.New(errors.ErrCodeInvalidImage, "image is %dx%d, over the %d pixel limit", w, h, MaxPixels)
	}
	return nil
}

// Thumbnail scales img to fit within maxW×maxH, preserving aspect ratio.
// Images already small enough are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH || maxW <= 0 || maxH <= 0 {
		return img
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	tw := max(1, int(float64(w)*scale+0.5))
	th := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func flattenOnto(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	xdraw.Draw(dst, b, image.NewUniform(bg), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, b, img, b.Min, xdraw.Over)
	return dst
}
