package unittest

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// PatternImage renders a deterministic scene of textured rectangles and
// ellipses over a smooth background. Different seeds yield visually
// unrelated scenes with plenty of distinctive corners.
func PatternImage(seed int64, width, height int) *image.Gray {
	rng := rand.New(rand.NewSource(seed))

	type wave struct{ fx, fy, phase, amp float64 }
	randomWave := func(maxFreq, minAmp, maxAmp float64) wave {
		return wave{
			fx:    (rng.Float64()*2 - 1) * maxFreq,
			fy:    (rng.Float64()*2 - 1) * maxFreq,
			phase: rng.Float64() * 2 * math.Pi,
			amp:   minAmp + rng.Float64()*(maxAmp-minAmp),
		}
	}
	at := func(w wave, x, y int) float64 {
		return w.amp * math.Sin(w.fx*float64(x)+w.fy*float64(y)+w.phase)
	}

	type shape struct {
		x0, y0, x1, y1 int
		ellipse        bool
		level          float64
		texture        wave
	}
	shapes := make([]shape, 30)
	for i := range shapes {
		x0, y0 := rng.Intn(width), rng.Intn(height)
		shapes[i] = shape{
			x0:      x0,
			y0:      y0,
			x1:      x0 + 12 + rng.Intn(width/4+1),
			y1:      y0 + 12 + rng.Intn(height/4+1),
			ellipse: rng.Intn(3) == 0,
			level:   40 + rng.Float64()*175,
			texture: randomWave(0.6, 15, 35),
		}
	}
	background := []wave{randomWave(0.08, 20, 40), randomWave(0.08, 20, 40), randomWave(0.08, 10, 20)}
	base := 60 + rng.Float64()*40

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := base
			for _, w := range background {
				v += at(w, x, y)
			}
			for _, s := range shapes {
				if x < s.x0 || x >= s.x1 || y < s.y0 || y >= s.y1 {
					continue
				}
				if s.ellipse {
					cx, cy := float64(s.x0+s.x1)/2, float64(s.y0+s.y1)/2
					rx, ry := float64(s.x1-s.x0)/2, float64(s.y1-s.y0)/2
					dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
					if dx*dx+dy*dy > 1 {
						continue
					}
				}
				v = s.level + at(s.texture, x, y)
			}
			img.Pix[y*img.Stride+x] = uint8(math.Max(0, math.Min(255, math.Round(v))))
		}
	}
	return img
}

// UniformImage returns an image of a single colour.
func UniformImage(width, height int, c uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = c
	}
	return img
}

// Colorize returns an RGBA copy of img, tinting each channel differently
// while keeping the luminance ordering of the source.
func Colorize(img *image.Gray) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			v := img.GrayAt(x, y).Y
			out.SetRGBA(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return out
}

// PNG encodes img with the default compression level.
func PNG(t testing.TB, img image.Image) []byte {
	return encodePNG(t, img, png.DefaultCompression)
}

// ReencodedPNG encodes img with a different compression level than PNG,
// yielding different bytes for identical pixels.
func ReencodedPNG(t testing.TB, img image.Image) []byte {
	return encodePNG(t, img, png.BestCompression)
}

func encodePNG(t testing.TB, img image.Image, level png.CompressionLevel) []byte {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

// JPEG encodes img at the given quality.
func JPEG(t testing.TB, img image.Image, quality int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

// PatternPNG is a shorthand for a 320x240 PNG encoded PatternImage.
func PatternPNG(t testing.TB, seed int64) []byte {
	return PNG(t, PatternImage(seed, 320, 240))
}
