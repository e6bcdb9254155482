package inference

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/logger"
	"github.com/nvr-ai/go-yolov3/models"
	"github.com/nvr-ai/go-yolov3/models/model"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
	"github.com/nvr-ai/go-yolov3/models/yolov3"
)

// Engine runs detection on single images.
type Engine interface {
	// Detect letterboxes img, runs the network and decodes the detections in the
	// coordinates of img.
	Detect(ctx context.Context, img image.Image) (*postprocess.Output, error)
	// Close releases the underlying runner.
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API. The first error stops the
// chain and is returned by Build.
type EngineBuilder struct {
	layer   *yolov3.Layer
	runner  Runner
	session *SessionArgs
	log     logrus.FieldLogger
	err     error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithLogger sets the logger shared by the engine and the layer it creates.
func (b *EngineBuilder) WithLogger(log logrus.FieldLogger) *EngineBuilder {
	b.log = log
	return b
}

// WithModel creates the detection layer from a preset.
//
// Arguments:
//   - args: The model preset and overrides.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}

	m, err := models.NewModel(args, b.log)
	if err != nil {
		b.err = err
		return b
	}

	layer, ok := m.(*yolov3.Layer)
	if !ok {
		b.err = errors.Errorf("model %s is not a yolov3 layer", m.Name())
		return b
	}
	b.layer = layer
	return b
}

// WithLayer sets an already configured detection layer.
func (b *EngineBuilder) WithLayer(layer *yolov3.Layer) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.layer = layer
	return b
}

// WithSession requests an ONNX Runtime session, created by Build once the layer
// configuration is known.
func (b *EngineBuilder) WithSession(args SessionArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.session = &args
	return b
}

// WithRunner sets the runner directly instead of creating a session.
func (b *EngineBuilder) WithRunner(r Runner) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.runner = r
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.layer == nil {
		return nil, errors.New("model not configured")
	}

	runner := b.runner
	if runner == nil {
		if b.session == nil {
			return nil, errors.New("session not configured")
		}
		cfg := b.layer.Config()
		s, err := NewSession(*b.session, &cfg)
		if err != nil {
			return nil, err
		}
		runner = s
	}

	log := b.log
	if log == nil {
		log = logger.Discard()
	}

	return &engine{
		layer:  b.layer,
		runner: runner,
		log:    log.WithField("model", string(b.layer.Name())),
	}, nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// engine implements the Engine interface. The runner's buffers are shared, so
// Detect calls are serialized.
type engine struct {
	mu     sync.Mutex
	layer  *yolov3.Layer
	runner Runner
	log    logrus.FieldLogger
}

// Detect implements Engine.
func (e *engine) Detect(ctx context.Context, img image.Image) (*postprocess.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.layer.Config()
	if _, err := PrepareInput(img, cfg.NetWidth, cfg.NetHeight, e.runner.Input()); err != nil {
		return nil, errors.Wrap(err, "can't prepare input")
	}

	start := time.Now()
	if err := e.runner.Run(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	out, err := e.layer.Forward(e.runner.Outputs(), []images.Size{{Width: bounds.Dx(), Height: bounds.Dy()}})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"width":      bounds.Dx(),
		"height":     bounds.Dy(),
		"detections": out.Count(),
		"run_ms":     elapsed.Milliseconds(),
	}).Debug("detected")

	return out, nil
}

// Close implements Engine.
func (e *engine) Close() error {
	return e.runner.Close()
}
