package features

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"sort"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/pixanchor/pixanchor/model/provenance"
)

const (
	DefaultMaxKeypoints  = 1000
	DefaultMaxDimension  = 1024
	DefaultPyramidLevels = 8
	DefaultScaleFactor   = 1.2
	DefaultFastThreshold = 20
)

const (
	patchSize    = 31
	patchRadius  = patchSize / 2
	harrisRadius = 3
	harrisK      = 0.04
	// keypoints closer than this to a level border are discarded, so that the
	// orientation patch and every steered test point stay inside the image
	edgeThreshold = patchRadius + 4
)

// Config parameterizes feature extraction.
type Config struct {
	MaxKeypoints  int     // keep at most this many keypoints, strongest first
	MaxDimension  int     // larger images are downscaled before detection
	Levels        int     // number of pyramid levels
	ScaleFactor   float64 // scale ratio between consecutive pyramid levels
	FastThreshold int     // intensity difference for the FAST segment test
}

func DefaultConfig() Config {
	return Config{
		MaxKeypoints:  DefaultMaxKeypoints,
		MaxDimension:  DefaultMaxDimension,
		Levels:        DefaultPyramidLevels,
		ScaleFactor:   DefaultScaleFactor,
		FastThreshold: DefaultFastThreshold,
	}
}

// Extractor computes perceptual feature sets: oriented FAST keypoints with
// rotated BRIEF binary descriptors, detected over an image pyramid.
// Extraction is deterministic for identical input bytes and safe for
// concurrent use.
type Extractor struct {
	log zerolog.Logger
	cfg Config
}

func NewExtractor(log zerolog.Logger, cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MaxKeypoints <= 0 {
		cfg.MaxKeypoints = def.MaxKeypoints
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if cfg.Levels <= 0 {
		cfg.Levels = def.Levels
	}
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = def.ScaleFactor
	}
	if cfg.FastThreshold <= 0 {
		cfg.FastThreshold = def.FastThreshold
	}
	return &Extractor{
		log: log.With().Str("component", "feature_extractor").Logger(),
		cfg: cfg,
	}
}

// Extract decodes the image and computes its feature set. It returns an
// ExtractionError if the bytes are not a decodable image, and (nil, nil) if
// the image yields no keypoints.
func (e *Extractor) Extract(data []byte) (*provenance.FeatureSet, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewExtractionErrorf("could not decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, NewExtractionErrorf("decoded %s image has no pixels", format)
	}

	// ratio of original pixels to working pixels
	base := 1.0
	if bounds.Dx() > e.cfg.MaxDimension || bounds.Dy() > e.cfg.MaxDimension {
		img = resize.Thumbnail(uint(e.cfg.MaxDimension), uint(e.cfg.MaxDimension), img, resize.Bilinear)
		base = float64(bounds.Dx()) / float64(img.Bounds().Dx())
	}

	levels := e.pyramid(toGray(img))

	var candidates []candidate
	for i, lvl := range levels {
		candidates = append(candidates, detectCorners(lvl.img, i, e.cfg.FastThreshold)...)
	}
	if len(candidates) == 0 {
		e.log.Debug().
			Str("format", format).
			Int("width", bounds.Dx()).
			Int("height", bounds.Dy()).
			Msg("image yielded no keypoints")
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].before(candidates[j])
	})
	if len(candidates) > e.cfg.MaxKeypoints {
		candidates = candidates[:e.cfg.MaxKeypoints]
	}

	fs := &provenance.FeatureSet{
		Keypoints:   make([]provenance.Keypoint, 0, len(candidates)),
		Descriptors: make([]provenance.Descriptor, 0, len(candidates)),
	}
	for _, c := range candidates {
		lvl := levels[c.level]
		if lvl.integral == nil {
			lvl.integral = integralImage(lvl.img)
		}
		angle := orientation(lvl.img, c.x, c.y)
		scale := base * lvl.scale
		fs.Keypoints = append(fs.Keypoints, provenance.Keypoint{
			X:        float64(c.x) * scale,
			Y:        float64(c.y) * scale,
			Size:     patchSize * lvl.scale,
			Angle:    angle,
			Response: c.response,
			Octave:   c.level,
			ClassID:  -1,
		})
		fs.Descriptors = append(fs.Descriptors, describe(lvl.integral, lvl.img.Rect.Dx()+1, c.x, c.y, angle))
	}

	e.log.Debug().
		Str("format", format).
		Int("levels", len(levels)).
		Int("keypoints", fs.Len()).
		Msg("extracted features")

	return fs, nil
}

type pyramidLevel struct {
	img      *image.Gray
	scale    float64  // level 0 pixels per pixel of this level
	integral []uint32 // built on demand
}

func (e *Extractor) pyramid(gray *image.Gray) []*pyramidLevel {
	minSide := 2*edgeThreshold + 1
	width, height := gray.Rect.Dx(), gray.Rect.Dy()

	levels := make([]*pyramidLevel, 0, e.cfg.Levels)
	for i := 0; i < e.cfg.Levels; i++ {
		scale := math.Pow(e.cfg.ScaleFactor, float64(i))
		w := int(math.Round(float64(width) / scale))
		h := int(math.Round(float64(height) / scale))
		if w < minSide || h < minSide {
			break
		}
		img := gray
		if i > 0 {
			img = toGray(resize.Resize(uint(w), uint(h), gray, resize.Bilinear))
		}
		levels = append(levels, &pyramidLevel{img: img, scale: scale})
	}
	return levels
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Rect, img, b.Min, draw.Src)
	return g
}

type candidate struct {
	x, y     int
	level    int
	response float64
}

// before orders candidates strongest first. Ties are broken by position so
// that the selection does not depend on the sort algorithm.
func (c candidate) before(o candidate) bool {
	if c.response != o.response {
		return c.response > o.response
	}
	if c.level != o.level {
		return c.level < o.level
	}
	if c.y != o.y {
		return c.y < o.y
	}
	return c.x < o.x
}

// Bresenham circle of radius 3 used by the FAST segment test.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// detectCorners runs FAST-9 on the level, ranks corners by Harris response
// and keeps the local maxima of a 3x3 neighbourhood.
func detectCorners(g *image.Gray, level int, threshold int) []candidate {
	width, height := g.Rect.Dx(), g.Rect.Dy()
	if width <= 2*edgeThreshold || height <= 2*edgeThreshold {
		return nil
	}

	var offsets [16]int
	for i, p := range fastCircle {
		offsets[i] = p[0] + p[1]*g.Stride
	}

	response := make([]float64, width*height)
	for y := edgeThreshold; y < height-edgeThreshold; y++ {
		for x := edgeThreshold; x < width-edgeThreshold; x++ {
			if !isFastCorner(g.Pix, y*g.Stride+x, &offsets, threshold) {
				continue
			}
			if r := harrisResponse(g, x, y); r > 0 {
				response[y*width+x] = r
			}
		}
	}

	var corners []candidate
	for y := edgeThreshold; y < height-edgeThreshold; y++ {
		for x := edgeThreshold; x < width-edgeThreshold; x++ {
			idx := y*width + x
			r := response[idx]
			if r == 0 || !isLocalMax(response, width, idx, r) {
				continue
			}
			corners = append(corners, candidate{x: x, y: y, level: level, response: r})
		}
	}
	return corners
}

// isLocalMax suppresses idx unless it beats its 8 neighbours. On equal
// responses the neighbour earlier in raster order survives.
func isLocalMax(response []float64, width int, idx int, r float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			n := idx + dy*width + dx
			if n == idx {
				continue
			}
			if n < idx && response[n] >= r {
				return false
			}
			if n > idx && response[n] > r {
				return false
			}
		}
	}
	return true
}

func isFastCorner(pix []uint8, idx int, offsets *[16]int, threshold int) bool {
	p := int(pix[idx])
	hi, lo := p+threshold, p-threshold

	// a contiguous arc of 9 always covers at least two compass points
	brighter, darker := 0, 0
	for i := 0; i < 16; i += 4 {
		v := int(pix[idx+offsets[i]])
		if v > hi {
			brighter++
		} else if v < lo {
			darker++
		}
	}
	if brighter < 2 && darker < 2 {
		return false
	}

	for _, bright := range [2]bool{true, false} {
		run := 0
		for i := 0; i < 16+8; i++ {
			v := int(pix[idx+offsets[i%16]])
			if (bright && v > hi) || (!bright && v < lo) {
				run++
				if run >= 9 {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

func harrisResponse(g *image.Gray, x, y int) float64 {
	const window = (2*harrisRadius + 1) * (2*harrisRadius + 1)
	norm := 1.0 / (2 * 255.0 * window)

	var a, b, c float64
	for v := -harrisRadius; v <= harrisRadius; v++ {
		row := (y + v) * g.Stride
		for u := -harrisRadius; u <= harrisRadius; u++ {
			i := row + x + u
			ix := float64(int(g.Pix[i+1])-int(g.Pix[i-1])) * norm
			iy := float64(int(g.Pix[i+g.Stride])-int(g.Pix[i-g.Stride])) * norm
			a += ix * ix
			b += iy * iy
			c += ix * iy
		}
	}
	return a*b - c*c - harrisK*(a+b)*(a+b)
}

// patchRows[v] is the half width of the circular orientation patch at row
// offset v.
var patchRows = func() [patchRadius + 1]int {
	var rows [patchRadius + 1]int
	for v := 0; v <= patchRadius; v++ {
		rows[v] = int(math.Floor(math.Sqrt(float64(patchRadius*patchRadius - v*v))))
	}
	return rows
}()

// orientation returns the direction from the keypoint to the intensity
// centroid of its circular patch, in degrees within [0, 360).
func orientation(g *image.Gray, x, y int) float64 {
	var m01, m10 int
	for v := -patchRadius; v <= patchRadius; v++ {
		half := patchRows[absInt(v)]
		row := (y + v) * g.Stride
		for u := -half; u <= half; u++ {
			i := int(g.Pix[row+x+u])
			m10 += u * i
			m01 += v * i
		}
	}
	angle := math.Atan2(float64(m01), float64(m10)) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	if angle >= 360 {
		angle = 0
	}
	return angle
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
