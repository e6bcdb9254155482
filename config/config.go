// Package config - YAML and environment configuration of the detector CLI.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov3/inference"
	"github.com/nvr-ai/go-yolov3/logger"
	"github.com/nvr-ai/go-yolov3/models"
	"github.com/nvr-ai/go-yolov3/models/model"
	"github.com/nvr-ai/go-yolov3/models/yolov3"
)

// Environment variables that override file values.
const (
	EnvLibraryPath = "YOLOV3_ORT_LIB"
	EnvLogLevel    = "YOLOV3_LOG_LEVEL"
	EnvModelPath   = "YOLOV3_MODEL_PATH"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// Config is the complete configuration of a detector.
type Config struct {
	// Model selects the preset, label family and ONNX session.
	Model ModelConfig `json:"model" yaml:"model"`
	// Layer overrides preset values of the detection layer.
	Layer LayerConfig `json:"layer" yaml:"layer"`
	// Log configures logging.
	Log logger.Options `json:"log" yaml:"log"`
}

// ModelConfig describes the network.
type ModelConfig struct {
	// Name is the anchor/mask/stride preset.
	Name model.Name `json:"name" yaml:"name" validate:"required,oneof=yolov3 yolov3-tiny"`
	// Family names the classes. Empty means model.ModelFamilyYOLO.
	Family model.Family `json:"family" yaml:"family" validate:"omitempty,oneof=coco yolo voc"`
	// Session is the ONNX model file, node names and runtime.
	Session inference.SessionArgs `json:"session" yaml:"session"`
}

// LayerConfig holds optional overrides of the preset layer configuration.
// Zero values and nil pointers keep the preset. Masks is the per-scale mask
// table; Mask and MaskGroupNum are its flat form, used when Masks is empty.
type LayerConfig struct {
	NumClasses          int            `json:"num_classes" yaml:"num_classes" validate:"gte=0"`
	Biases              []float32      `json:"biases" yaml:"biases"`
	Masks               [][]int        `json:"masks" yaml:"masks"`
	Mask                []int          `json:"mask" yaml:"mask"`
	MaskGroupNum        int            `json:"mask_group_num" yaml:"mask_group_num" validate:"gte=0"`
	AnchorsScale        []float32      `json:"anchors_scale" yaml:"anchors_scale"`
	NetWidth            int            `json:"net_width" yaml:"net_width" validate:"gte=0"`
	NetHeight           int            `json:"net_height" yaml:"net_height" validate:"gte=0"`
	ConfidenceThreshold *float32       `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMSThreshold        *float32       `json:"nms_threshold" yaml:"nms_threshold"`
	LabelOffset         *int           `json:"label_offset" yaml:"label_offset"`
	Relative            bool           `json:"relative" yaml:"relative"`
	MultiLabel          bool           `json:"multi_label" yaml:"multi_label"`
	ClassAgnostic       bool           `json:"class_agnostic" yaml:"class_agnostic"`
	Backend             yolov3.Backend `json:"backend" yaml:"backend"`
	NumWorkers          int            `json:"num_workers" yaml:"num_workers" validate:"gte=0"`
}

// LoadDotEnv loads environment files, skipping the ones that do not exist.
// Variables already set in the process are not overwritten.
//
// Arguments:
//   - paths: The .env files. None means ".env".
//
// Returns:
//   - error: An error if an existing file cannot be parsed.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "can't load %s", p)
		}
	}
	return nil
}

// Load reads, overrides from the environment and validates a YAML config file.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Config: The configuration.
//   - error: An error if the file cannot be read or the result is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read config %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and validates it.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}

	c.applyEnv()

	if c.Model.Family == "" {
		c.Model.Family = model.ModelFamilyYOLO
	}

	if err := validate.Struct(&c); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}

	// Build the layer config once so that structural errors surface at load time.
	if _, err := c.LayerConfig(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLibraryPath); v != "" {
		c.Model.Session.LibraryPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Model.Session.ModelPath = v
	}
}

// LayerConfig merges the overrides into the model preset.
//
// Returns:
//   - yolov3.Config: The validated layer configuration.
//   - error: An error wrapping ErrInvalid or yolov3.ErrInvalidConfig.
func (c *Config) LayerConfig() (yolov3.Config, error) {
	cfg, err := models.NewLayerConfig(c.Model.Name)
	if err != nil {
		return yolov3.Config{}, errors.Wrap(ErrInvalid, err.Error())
	}

	labels, err := models.Labels(c.Model.Family)
	if err != nil {
		return yolov3.Config{}, errors.Wrap(ErrInvalid, err.Error())
	}
	cfg.LabelOffset = labels.LabelOffset()

	l := c.Layer
	if l.NumClasses > 0 {
		cfg.NumClasses = l.NumClasses
	}
	if len(l.Biases) > 0 {
		cfg.Biases = l.Biases
	}
	switch {
	case len(l.Masks) > 0:
		cfg.Masks = l.Masks
	case len(l.Mask) > 0:
		groups := l.MaskGroupNum
		if groups == 0 {
			groups = len(cfg.Strides)
		}
		masks, err := yolov3.SplitMask(l.Mask, groups)
		if err != nil {
			return yolov3.Config{}, err
		}
		cfg.Masks = masks
	}
	if len(l.AnchorsScale) > 0 {
		cfg.Strides = l.AnchorsScale
	}
	if l.NetWidth > 0 {
		cfg.NetWidth = l.NetWidth
	}
	if l.NetHeight > 0 {
		cfg.NetHeight = l.NetHeight
	}
	if l.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *l.ConfidenceThreshold
	}
	if l.NMSThreshold != nil {
		cfg.NMSThreshold = *l.NMSThreshold
	}
	if l.LabelOffset != nil {
		cfg.LabelOffset = *l.LabelOffset
	}
	if l.Backend != "" {
		cfg.Backend = l.Backend
	}
	cfg.Relative = l.Relative
	cfg.MultiLabel = l.MultiLabel
	cfg.ClassAgnostic = l.ClassAgnostic
	cfg.NumWorkers = l.NumWorkers

	if err := cfg.Validate(); err != nil {
		return yolov3.Config{}, err
	}
	return cfg, nil
}

// Labels returns the label set of the configured family.
func (c *Config) Labels() (*models.LabelSet, error) {
	return models.Labels(c.Model.Family)
}
