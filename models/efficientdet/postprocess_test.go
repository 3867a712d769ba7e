package efficientdet

import (
	"testing"

	"github.com/nvr-ai/roadsigns/images"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	dets := []Detection{
		{
			Box: images.Rect{X1: 160, Y1: 120, X2: 480, Y2: 360},
			Categories: []Category{
				{Index: 2, Label: "stop sign", Score: 0.8},
				{Index: 5, Label: "yield", Score: 0.9},
			},
		},
	}

	boxes, err := Normalize(dets, 640, 480, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, boxes, 1)

	b := boxes[0]
	assert.Equal(t, "stop sign", b.Label, "the first category wins")
	assert.Equal(t, 2, b.Class)
	assert.InDelta(t, 0.8, b.Confidence, 1e-6)
	assert.InDelta(t, 0.25, b.X1, 1e-6)
	assert.InDelta(t, 0.25, b.Y1, 1e-6)
	assert.InDelta(t, 0.75, b.X2, 1e-6)
	assert.InDelta(t, 0.75, b.Y2, 1e-6)
	assert.InDelta(t, 0.5, b.CX, 1e-6)
	assert.InDelta(t, 0.5, b.W, 1e-6)
}

func TestNormalizeFiltersAndCaps(t *testing.T) {
	det := func(score float32) Detection {
		return Detection{
			Box:        images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			Categories: []Category{{Label: "car", Score: score}},
		}
	}
	dets := []Detection{det(0.95), det(0.4), det(0.9), det(0.85), det(0.8), {Box: images.Rect{X2: 1, Y2: 1}}}

	boxes, err := Normalize(dets, 100, 100, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, boxes, DefaultMaxResults)
	assert.InDelta(t, 0.95, boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 0.9, boxes[1].Confidence, 1e-6)
	assert.InDelta(t, 0.85, boxes[2].Confidence, 1e-6)

	all, err := Normalize(dets, 100, 100, Config{})
	require.NoError(t, err)
	require.Len(t, all, len(dets))
	assert.Equal(t, model.UnknownLabel, all[5].Label)
	assert.Equal(t, 0, all[5].Class)
}

func TestNormalizeInvalidSize(t *testing.T) {
	_, err := Normalize(nil, 0, 480, DefaultConfig())
	assert.ErrorIs(t, err, model.ErrInvalidShape)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{ScoreThreshold: 2}.Validate())
	assert.Error(t, Config{ScoreThreshold: 0.5, MaxResults: -1}.Validate())
}
