package captcha

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".jfif": true, ".png": true, ".bmp": true, ".webp": true,
}

// DirSource serves a random picture from a directory. The directory is
// listed on every call so pictures can be added without a restart.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Image(_ context.Context) (image.Image, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s holds no pictures", ErrNoImage, s.dir)
	}

	f, err := os.Open(filepath.Join(s.dir, names[rand.IntN(len(names))]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrNoImage, f.Name(), err)
	}
	return img, nil
}

// GeneratedSource draws a picture when no directory is configured: a
// diagonal two-colour gradient with a dark arrow pointing up, so the
// orientation stays readable after rotation.
type GeneratedSource struct {
	Size int
}

func (g GeneratedSource) Image(_ context.Context) (image.Image, error) {
	n := g.Size
	if n <= 0 {
		n = 160
	}

	from := color.RGBA{uint8(rand.IntN(128)), uint8(128 + rand.IntN(128)), uint8(rand.IntN(256)), 255}
	to := color.RGBA{uint8(128 + rand.IntN(128)), uint8(rand.IntN(128)), uint8(rand.IntN(256)), 255}

	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			t := float64(x+y) / float64(2*n)
			img.Set(x, y, color.RGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 255,
			})
		}
	}

	ink := color.RGBA{20, 20, 20, 255}
	mid := n / 2
	// shaft
	for y := n / 4; y < n*3/4; y++ {
		for x := mid - n/40 - 1; x <= mid+n/40+1; x++ {
			img.Set(x, y, ink)
		}
	}
	// head
	for row := 0; row < n/5; row++ {
		y := n/8 + row
		for x := mid - row; x <= mid+row; x++ {
			img.Set(x, y, ink)
		}
	}
	return img, nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
