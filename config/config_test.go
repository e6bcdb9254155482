package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov3/inference"
	"github.com/nvr-ai/go-yolov3/models/model"
	"github.com/nvr-ai/go-yolov3/models/yolov3"
)

const sample = `
model:
  name: yolov3-tiny
  family: voc
  session:
    path: ./models/yolov3-tiny-voc.onnx
    input_name: input
    output_names: [conv2d_10, conv2d_13]
    provider:
      backend: cuda
      device_id: 1
layer:
  num_classes: 20
  mask: [3, 4, 5, 0, 1, 2]
  mask_group_num: 2
  confidence_threshold: 0.3
  nms_threshold: 0.4
  relative: true
  backend: graph
log:
  level: debug
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeFile(t, "detect.yaml", sample))
	require.NoError(t, err)

	assert.Equal(t, model.ModelNameYOLOv3Tiny, c.Model.Name)
	assert.Equal(t, model.ModelFamilyVOC, c.Model.Family)
	assert.Equal(t, []string{"conv2d_10", "conv2d_13"}, c.Model.Session.OutputNames)
	assert.Equal(t, inference.ProviderCUDA, c.Model.Session.Provider.Backend)
	assert.Equal(t, 1, c.Model.Session.Provider.DeviceID)
	assert.Equal(t, "debug", c.Log.Level)

	cfg, err := c.LayerConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.NumClasses)
	assert.Equal(t, [][]int{{3, 4, 5}, {0, 1, 2}}, cfg.Masks)
	assert.Equal(t, []float32{32, 16}, cfg.Strides)
	assert.Equal(t, float32(0.3), cfg.ConfidenceThreshold)
	assert.Equal(t, float32(0.4), cfg.NMSThreshold)
	assert.Equal(t, 1, cfg.LabelOffset)
	assert.True(t, cfg.Relative)
	assert.Equal(t, yolov3.BackendGraph, cfg.Backend)

	labels, err := c.Labels()
	require.NoError(t, err)
	assert.Equal(t, "aeroplane", labels.Name(cfg.LabelOffset))
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte(`
model:
  name: yolov3
  session:
    path: yolov3.onnx
    input_name: input_1
    output_names: [a, b, c]
`))
	require.NoError(t, err)
	assert.Equal(t, model.ModelFamilyYOLO, c.Model.Family)

	cfg, err := c.LayerConfig()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.NumClasses)
	assert.Equal(t, float32(0.5), cfg.ConfidenceThreshold)
	assert.Equal(t, float32(0.45), cfg.NMSThreshold)
	assert.Equal(t, 0, cfg.LabelOffset)
	assert.Equal(t, 3, cfg.Scales())
}

func TestParse_ZeroThresholdOverride(t *testing.T) {
	c, err := Parse([]byte(`
model:
  name: yolov3
  session: {path: m.onnx, input_name: x, output_names: [a, b, c]}
layer:
  confidence_threshold: 0
`))
	require.NoError(t, err)

	cfg, err := c.LayerConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.ConfidenceThreshold)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/opt/ort/libonnxruntime.so")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvModelPath, "/models/override.onnx")

	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "/opt/ort/libonnxruntime.so", c.Model.Session.LibraryPath)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, "/models/override.onnx", c.Model.Session.ModelPath)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "model: [unterminated"},
		{"missing name", "model: {session: {path: m.onnx, input_name: x, output_names: [a]}}"},
		{"unknown preset", "model: {name: yolov9, session: {path: m.onnx, input_name: x, output_names: [a]}}"},
		{"unknown family", "model: {name: yolov3, family: imagenet, session: {path: m.onnx, input_name: x, output_names: [a, b, c]}}"},
		{"missing session path", "model: {name: yolov3, session: {input_name: x, output_names: [a, b, c]}}"},
		{"missing outputs", "model: {name: yolov3, session: {path: m.onnx, input_name: x}}"},
		{"bad provider", "model: {name: yolov3, session: {path: m.onnx, input_name: x, output_names: [a, b, c], provider: {backend: tpu}}}"},
		{"bad log level", "model: {name: yolov3, session: {path: m.onnx, input_name: x, output_names: [a, b, c]}}\nlog: {level: loud}"},
		{"uneven mask", "model: {name: yolov3, session: {path: m.onnx, input_name: x, output_names: [a, b, c]}}\nlayer: {mask: [0, 1, 2, 3]}"},
		{"threshold above one", "model: {name: yolov3, session: {path: m.onnx, input_name: x, output_names: [a, b, c]}}\nlayer: {nms_threshold: 1.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			assert.True(t, errors.Is(err, ErrInvalid) || errors.Is(err, yolov3.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "YOLOV3_TEST_DOTENV"
	t.Setenv(key, "")
	os.Unsetenv(key)

	path := writeFile(t, ".env", key+"=from-file\n")
	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-file", os.Getenv(key))
}
