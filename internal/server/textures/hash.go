package textures

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"regexp"
)

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ValidHash reports whether s looks like a texture hash.
func ValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// ComputeHash returns the lowercase hex SHA-256 of img's canonical form:
// big-endian int32 width and height, then every pixel as big-endian ARGB
// scanning columns left to right and each column top to bottom. Pixels
// with zero alpha hash as 0x00000000 whatever their colour channels hold.
func ComputeHash(img image.Image) string {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	d := sha256.New()
	buf := make([]byte, 0, 4096)

	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(w)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(h)))

	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				buf = append(buf, 0, 0, 0, 0)
			} else {
				buf = append(buf, c.A, c.R, c.G, c.B)
			}
			if len(buf) == cap(buf) {
				d.Write(buf)
				buf = buf[:0]
			}
		}
	}
	d.Write(buf)

	return hex.EncodeToString(d.Sum(nil))
}
