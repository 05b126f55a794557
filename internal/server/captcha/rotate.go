package captcha

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotate turns src clockwise by degrees around its centre onto a canvas of
// the same size. Corners uncovered by the rotation are white.
func Rotate(src image.Image, degrees int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	rad := float64(degrees) * math.Pi / 180
	sin, cos := math.Sincos(rad)

	// source centre maps onto destination centre
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	dx := float64(b.Dx()) / 2
	dy := float64(b.Dy()) / 2

	s2d := f64.Aff3{
		cos, -sin, dx - cos*cx + sin*cy,
		sin, cos, dy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, s2d, src, b, draw.Over, nil)
	return dst
}
