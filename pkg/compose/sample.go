package compose

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// toRGBA returns img as premultiplied RGBA with its origin at (0,0).
func toRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
		return r
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// sampleBilinear samples premultiplied img at pixel position (x, y), where
// pixel (i, j) is centered on (i+0.5, j+0.5). Neighbors outside the image
// are clamped to the edge, which degrades to nearest-neighbor there.
func sampleBilinear(img *image.RGBA, x, y float64) [4]float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()

	fx := x - 0.5
	fy := y - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	x1, y1 := x0+1, y0+1

	x0 = clamp(x0, 0, w-1)
	x1 = clamp(x1, 0, w-1)
	y0 = clamp(y0, 0, h-1)
	y1 = clamp(y1, 0, h-1)

	i00 := y0*img.Stride + x0*4
	i10 := y0*img.Stride + x1*4
	i01 := y1*img.Stride + x0*4
	i11 := y1*img.Stride + x1*4

	var out [4]float64
	for c := 0; c < 4; c++ {
		top := lerp(float64(img.Pix[i00+c]), float64(img.Pix[i10+c]), tx)
		bot := lerp(float64(img.Pix[i01+c]), float64(img.Pix[i11+c]), tx)
		out[c] = lerp(top, bot, ty)
	}
	return out
}

// over blends a premultiplied sample onto dst at byte offset i, scaled by
// opacity.
func over(dst []uint8, i int, src [4]float64, opacity float64) {
	sa := src[3] * opacity
	if sa <= 0 {
		return
	}
	k := 1 - sa/255
	for c := 0; c < 3; c++ {
		dst[i+c] = clampByte(src[c]*opacity + float64(dst[i+c])*k)
	}
	dst[i+3] = clampByte(sa + float64(dst[i+3])*k)
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
