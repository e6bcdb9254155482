package yolov3

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayer_ValidConfig(t *testing.T) {
	cfg := cocoConfig(80)
	cfg.Coords = 0

	l, err := NewLayer(NewLayerArgs{Config: cfg})
	require.NoError(t, err)

	got := l.Config()
	assert.Equal(t, DefaultCoords, got.Coords)
	assert.Equal(t, BackendCPU, got.Backend)
	assert.Equal(t, 85, got.Entries())
	assert.Equal(t, 255, got.Channels(0))
	assert.Equal(t, 3, got.Scales())

	w, h := got.Anchor(0, 2)
	assert.Equal(t, float32(373), w)
	assert.Equal(t, float32(326), h)

	gw, gh := got.GridSize(2)
	assert.Equal(t, 52, gw)
	assert.Equal(t, 52, gh)
}

func TestNewLayer_CopiesConfig(t *testing.T) {
	cfg := singleCellConfig(2)
	l, err := NewLayer(NewLayerArgs{Config: cfg})
	require.NoError(t, err)

	cfg.Biases[0] = 999
	cfg.Masks[0][0] = 5

	w, _ := l.Config().Anchor(0, 0)
	assert.Equal(t, float32(10), w)
}

func TestNewLayer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero classes", func(c *Config) { c.NumClasses = 0 }},
		{"negative classes", func(c *Config) { c.NumClasses = -3 }},
		{"too few coords", func(c *Config) { c.Coords = 3 }},
		{"odd biases", func(c *Config) { c.Biases = c.Biases[:len(c.Biases)-1] }},
		{"no biases", func(c *Config) { c.Biases = nil }},
		{"negative bias", func(c *Config) { c.Biases[3] = -1 }},
		{"no masks", func(c *Config) { c.Masks = nil }},
		{"empty mask group", func(c *Config) { c.Masks[1] = []int{} }},
		{"mask out of range", func(c *Config) { c.Masks[0] = []int{6, 7, 9} }},
		{"negative mask index", func(c *Config) { c.Masks[2] = []int{-1, 1, 2} }},
		{"strides mismatch", func(c *Config) { c.Strides = []float32{32, 16} }},
		{"zero stride", func(c *Config) { c.Strides[1] = 0 }},
		{"zero net width", func(c *Config) { c.NetWidth = 0 }},
		{"negative net height", func(c *Config) { c.NetHeight = -416 }},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative nms threshold", func(c *Config) { c.NMSThreshold = -0.1 }},
		{"unknown backend", func(c *Config) { c.Backend = "cuda" }},
		{"negative workers", func(c *Config) { c.NumWorkers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cocoConfig(80)
			tt.mutate(&cfg)

			l, err := NewLayer(NewLayerArgs{Config: cfg})
			require.Error(t, err)
			assert.Nil(t, l)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSplitMask(t *testing.T) {
	masks, err := SplitMask([]int{6, 7, 8, 3, 4, 5, 0, 1, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{6, 7, 8}, {3, 4, 5}, {0, 1, 2}}, masks)

	for _, groups := range []int{0, -1, 2, 4} {
		_, err := SplitMask([]int{6, 7, 8, 3, 4, 5, 0, 1, 2}, groups)
		assert.ErrorIs(t, err, ErrInvalidConfig, "groups=%d", groups)
	}

	_, err = SplitMask(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLayer_ConfigIsCopy(t *testing.T) {
	l, err := NewLayer(NewLayerArgs{Config: cocoConfig(80)})
	require.NoError(t, err)

	cfg := l.Config()
	cfg.Biases[0] = 999
	cfg.Masks[0][0] = 1

	w, _ := l.Config().Anchor(0, 0)
	assert.Equal(t, float32(116), w)
}

func TestLayer_ConfigAccessors(t *testing.T) {
	l, err := NewLayer(NewLayerArgs{Config: cocoConfig(80)})
	require.NoError(t, err)

	assert.Equal(t, 3, l.Config().Scales())
	assert.Equal(t, 85, l.Config().Entries())
	assert.Equal(t, 255, l.Config().Channels(1))

	w, h := l.Config().GridSize(1)
	assert.Equal(t, 26, w)
	assert.Equal(t, 26, h)

	nms := l.Config().NMS()
	assert.Equal(t, l.Config().NMSThreshold, nms.IoUThreshold)
}
