package features

import (
	"image"
	"math"
	"math/rand"

	"github.com/pixanchor/pixanchor/model/provenance"
)

const (
	briefTests  = provenance.DescriptorSize * 8
	patternSeed = 0x5eed0b1e
	// test points are drawn from a disc of this radius, so that any rotation
	// of the pattern plus the smoothing box stays within edgeThreshold
	sampleRadius = 13
	boxRadius    = 2
	angleBins    = 30
)

type testPoint struct {
	x, y int
}

type pointPair [2]testPoint

// steeredPatterns holds the BRIEF sampling pattern rotated to each of the
// discretized keypoint orientations. The base pattern is generated from a
// fixed seed, descriptors are therefore comparable across processes.
var steeredPatterns = buildSteeredPatterns()

func buildSteeredPatterns() [angleBins][briefTests]pointPair {
	rng := rand.New(rand.NewSource(patternSeed))
	sigma := float64(patchSize) / 5
	sample := func() (float64, float64) {
		for {
			x, y := rng.NormFloat64()*sigma, rng.NormFloat64()*sigma
			if x*x+y*y <= sampleRadius*sampleRadius {
				return x, y
			}
		}
	}

	var base [briefTests][4]float64
	for i := range base {
		x1, y1 := sample()
		x2, y2 := sample()
		base[i] = [4]float64{x1, y1, x2, y2}
	}

	var patterns [angleBins][briefTests]pointPair
	for bin := 0; bin < angleBins; bin++ {
		theta := float64(bin) * 2 * math.Pi / angleBins
		sin, cos := math.Sincos(theta)
		rotate := func(x, y float64) testPoint {
			return testPoint{
				x: int(math.Round(x*cos - y*sin)),
				y: int(math.Round(x*sin + y*cos)),
			}
		}
		for i, p := range base {
			patterns[bin][i] = pointPair{rotate(p[0], p[1]), rotate(p[2], p[3])}
		}
	}
	return patterns
}

func angleBin(angle float64) int {
	return int(math.Round(angle*angleBins/360)) % angleBins
}

// integralImage returns the summed area table of g with an extra leading
// row and column of zeroes. Row stride is width+1.
func integralImage(g *image.Gray) []uint32 {
	width, height := g.Rect.Dx(), g.Rect.Dy()
	stride := width + 1
	sums := make([]uint32, stride*(height+1))
	for y := 0; y < height; y++ {
		var row uint32
		for x := 0; x < width; x++ {
			row += uint32(g.Pix[y*g.Stride+x])
			sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + row
		}
	}
	return sums
}

// boxSum returns the intensity sum of the (2*boxRadius+1)^2 box centred on
// (x, y).
func boxSum(sums []uint32, stride int, x, y int) uint32 {
	x0, y0 := x-boxRadius, y-boxRadius
	x1, y1 := x+boxRadius+1, y+boxRadius+1
	return sums[y1*stride+x1] - sums[y0*stride+x1] - sums[y1*stride+x0] + sums[y0*stride+x0]
}

// describe computes the steered BRIEF descriptor of the keypoint at (x, y).
func describe(sums []uint32, stride int, x, y int, angle float64) provenance.Descriptor {
	var d provenance.Descriptor
	pattern := &steeredPatterns[angleBin(angle)]
	for i, pair := range pattern {
		a := boxSum(sums, stride, x+pair[0].x, y+pair[0].y)
		b := boxSum(sums, stride, x+pair[1].x, y+pair[1].y)
		if a < b {
			d[i/8] |= 1 << uint(i%8)
		}
	}
	return d
}
