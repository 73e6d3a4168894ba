package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module"
)

const (
	// InputSize is the square input resolution of the deepfake model.
	InputSize = 299

	// FakeThreshold separates fake from real for raw model predictions.
	FakeThreshold = 0.5

	DefaultTimeout = 30 * time.Second

	maxResponseSize = 1 << 20
)

// response is the body returned by the model server. Servers either label
// the image themselves or return the raw probability of the image being
// fake.
type response struct {
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
	Prediction *float64 `json:"prediction"`
}

type Config struct {
	Endpoint       string
	Timeout        time.Duration
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig configures the breaker in front of the model server.
// Once MaxFailures consecutive requests failed, requests are not sent for
// RestoreTimeout. Afterwards up to MaxRequests trial requests decide whether
// the breaker closes again.
type CircuitBreakerConfig struct {
	Enabled        bool
	MaxFailures    uint32
	MaxRequests    uint32
	RestoreTimeout time.Duration
}

// Remote classifies images with a model served over HTTP. The image is
// resized to the model input, encoded as PNG and posted to the endpoint.
type Remote struct {
	log      zerolog.Logger
	client   *http.Client
	endpoint string
	breaker  *gobreaker.CircuitBreaker // nil if disabled
}

var _ module.Classifier = (*Remote)(nil)

func NewRemote(log zerolog.Logger, cfg Config) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Remote{
		log:      log.With().Str("component", "classifier").Str("endpoint", cfg.Endpoint).Logger(),
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
	}

	cb := cfg.CircuitBreaker
	if cb.Enabled {
		r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "classifier",
			MaxRequests: cb.MaxRequests,
			Timeout:     cb.RestoreTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cb.MaxFailures
			},
			OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
				r.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("model server circuit breaker changed state")
			},
		})
	}
	return r
}

// Classify never fails. Any error is logged and yields the unknown
// classification.
func (r *Remote) Classify(ctx context.Context, img []byte) provenance.Classification {
	start := time.Now()
	c, err := r.classify(ctx, img)
	if err != nil {
		r.log.Error().Err(err).Msg("deepfake classification failed")
		return provenance.UnknownClassification()
	}
	r.log.Debug().
		Str("label", string(c.Label)).
		Float64("confidence", c.Confidence).
		Dur("duration", time.Since(start)).
		Msg("image classified")
	return c
}

func (r *Remote) classify(ctx context.Context, img []byte) (provenance.Classification, error) {
	input, err := modelInput(img)
	if err != nil {
		return provenance.Classification{}, err
	}
	if r.breaker == nil {
		return r.request(ctx, input)
	}

	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.request(ctx, input)
	})
	if err != nil {
		return provenance.Classification{}, err
	}
	return res.(provenance.Classification), nil
}

// request posts the prepared model input. Malformed responses count as
// failures of the model server.
func (r *Remote) request(ctx context.Context, input []byte) (provenance.Classification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(input))
	if err != nil {
		return provenance.Classification{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return provenance.Classification{}, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return provenance.Classification{}, fmt.Errorf("could not read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return provenance.Classification{}, fmt.Errorf("model server returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var res response
	if err := json.Unmarshal(body, &res); err != nil {
		return provenance.Classification{}, fmt.Errorf("could not decode model response: %w", err)
	}
	return r.interpret(res)
}

func (r *Remote) interpret(res response) (provenance.Classification, error) {
	if res.Prediction != nil {
		return FromPrediction(*res.Prediction), nil
	}
	if res.Label == nil || res.Confidence == nil {
		return provenance.Classification{}, fmt.Errorf("model response has neither prediction nor label and confidence")
	}

	label, err := provenance.ParseLabel(*res.Label)
	if err != nil {
		r.log.Warn().Str("label", *res.Label).Msg("model returned unexpected label, using Unknown")
		label = provenance.LabelUnknown
	}
	return provenance.Classification{Label: label, Confidence: *res.Confidence}, nil
}

// FromPrediction maps the probability of an image being fake onto a
// classification. The confidence is the probability of the chosen label.
func FromPrediction(p float64) provenance.Classification {
	if p > FakeThreshold {
		return provenance.Classification{Label: provenance.LabelFake, Confidence: p}
	}
	return provenance.Classification{Label: provenance.LabelReal, Confidence: 1 - p}
}

// modelInput decodes the image and re-encodes it as an RGB PNG of the model
// input size.
func modelInput(img []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	resized := resize.Resize(InputSize, InputSize, decoded, resize.Bilinear)

	rgb := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.Draw(rgb, rgb.Bounds(), resized, resized.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("could not encode model input: %w", err)
	}
	return buf.Bytes(), nil
}
