package yolov3

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/logger"
	"github.com/nvr-ai/go-yolov3/models/model"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

// NewLayerArgs is the arguments for creating a new detection output layer.
type NewLayerArgs struct {
	// Name is reported by Layer.Name. Defaults to ModelNameYOLOv3.
	Name model.Name
	// Config is copied; later changes to the caller's value have no effect.
	Config Config
	// Logger receives per-forward diagnostics. Nil discards them.
	Logger logrus.FieldLogger
}

// Layer is a YOLOv3 detection output layer. It is immutable and safe for
// concurrent use.
type Layer struct {
	name    model.Name
	cfg     Config
	nms     postprocess.NMSConfig
	decoder Decoder
	log     logrus.FieldLogger
}

var _ model.Model = (*Layer)(nil)

// NewLayer validates the configuration and creates a layer.
//
// Arguments:
//   - args: The layer arguments.
//
// Returns:
//   - *Layer: The layer.
//   - error: An error wrapping ErrInvalidConfig if the configuration is malformed.
func NewLayer(args NewLayerArgs) (*Layer, error) {
	cfg := args.Config.withDefaults().clone()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := args.Name
	if name == "" {
		name = model.ModelNameYOLOv3
	}

	var log logrus.FieldLogger = logger.Discard()
	if args.Logger != nil {
		log = args.Logger
	}

	l := &Layer{
		name: name,
		cfg:  cfg,
		nms:  cfg.NMS(),
		log:  log.WithField("layer", string(name)),
	}
	l.decoder = NewDecoder(&l.cfg)

	return l, nil
}

// Name implements model.Model.
func (l *Layer) Name() model.Name {
	return l.name
}

// Config returns a copy of the layer configuration.
func (l *Layer) Config() Config {
	return l.cfg.clone()
}

// PostProcess implements model.Model.
func (l *Layer) PostProcess(outputs []tensor.Tensor, sizes []images.Size) (*postprocess.Output, error) {
	return l.Forward(outputs, sizes)
}

// Forward decodes, corrects, suppresses and formats one forward pass.
//
// Scales are decoded concurrently, each goroutine writing only its own slot.
// Suppression runs per image with classes spread over the NMS worker pool.
//
// Arguments:
//   - inputs: One NCHW float32 tensor per scale, in mask order.
//   - sizes: The original size of each image, or a single size for the batch.
//
// Returns:
//   - *postprocess.Output: The detection records, or the sentinel record.
//   - error: An error wrapping ErrInvalidInput on shape or size mismatch.
func (l *Layer) Forward(inputs []tensor.Tensor, sizes []images.Size) (*postprocess.Output, error) {
	views, err := l.views(inputs)
	if err != nil {
		return nil, err
	}
	batch := views[0].Batch

	sizes, err = broadcastSizes(sizes, batch)
	if err != nil {
		return nil, err
	}

	letterboxes := make([]images.Letterbox, batch)
	for i, size := range sizes {
		letterboxes[i] = images.NewLetterbox(size, l.cfg.NetWidth, l.cfg.NetHeight)
	}

	decoded := make([]*ScaleCandidates, len(views))
	errs := make([]error, len(views))

	var wg sync.WaitGroup
	for s, view := range views {
		wg.Add(1)
		go func(s int, view *ScaleTensorView) {
			defer wg.Done()

			sc, err := l.decoder.Decode(view, s)
			if err != nil {
				errs[s] = err
				return
			}
			for image, candidates := range sc.ByImage {
				for i := range candidates {
					correctWith(&candidates[i], letterboxes[image], sizes[image], l.cfg.Relative)
				}
			}
			decoded[s] = sc
		}(s, view)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	collector := NewCandidateCollector(batch)
	dropped := 0
	for _, sc := range decoded {
		collector.AddScale(sc)
		dropped += sc.Dropped
	}

	kept := make([][]postprocess.Result, batch)
	numKept := 0
	for image := range kept {
		kept[image] = postprocess.ApplyNMS(collector.Image(image), &l.nms)
		numKept += len(kept[image])
	}

	fields := logrus.Fields{
		"images":     batch,
		"scales":     len(views),
		"candidates": collector.Len(),
		"kept":       numKept,
	}
	if dropped > 0 {
		l.log.WithFields(fields).WithField("dropped", dropped).Warn("dropped cells with non-finite activations")
	}
	l.log.WithFields(fields).Debug("decoded detections")

	return postprocess.FormatDetections(kept, l.cfg.LabelOffset), nil
}

// views wraps and checks the scale tensors.
func (l *Layer) views(inputs []tensor.Tensor) ([]*ScaleTensorView, error) {
	if len(inputs) != l.cfg.Scales() {
		return nil, errors.Wrapf(ErrInvalidInput, "expected %d scale tensors, got %d", l.cfg.Scales(), len(inputs))
	}

	views := make([]*ScaleTensorView, len(inputs))
	for s, t := range inputs {
		view, err := NewScaleTensorView(t, len(l.cfg.Masks[s]), l.cfg.Entries())
		if err != nil {
			return nil, errors.Wrapf(err, "scale %d", s)
		}

		if s > 0 && view.Batch != views[0].Batch {
			return nil, errors.Wrapf(ErrInvalidInput, "scale %d has batch %d, scale 0 has %d", s, view.Batch, views[0].Batch)
		}

		stride := l.cfg.Strides[s]
		if math32.Abs(float32(view.SideW)*stride-float32(l.cfg.NetWidth)) >= stride ||
			math32.Abs(float32(view.SideH)*stride-float32(l.cfg.NetHeight)) >= stride {
			return nil, errors.Wrapf(ErrInvalidInput, "scale %d grid %dx%d does not match %dx%d input at stride %v",
				s, view.SideW, view.SideH, l.cfg.NetWidth, l.cfg.NetHeight, stride)
		}

		views[s] = view
	}

	return views, nil
}

func broadcastSizes(sizes []images.Size, batch int) ([]images.Size, error) {
	switch len(sizes) {
	case batch:
	case 1:
		one := sizes[0]
		sizes = make([]images.Size, batch)
		for i := range sizes {
			sizes[i] = one
		}
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "%d image sizes for a batch of %d", len(sizes), batch)
	}

	for i, size := range sizes {
		if !size.Valid() {
			return nil, errors.Wrapf(ErrInvalidInput, "image %d has invalid size %dx%d", i, size.Width, size.Height)
		}
	}

	return sizes, nil
}
