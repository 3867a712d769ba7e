package detector

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/roadsigns/config"
	"github.com/nvr-ai/roadsigns/images"
	"github.com/nvr-ai/roadsigns/inference"
	"github.com/nvr-ai/roadsigns/models/efficientdet"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/nvr-ai/roadsigns/models/yolov8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"
)

// fakeRunner returns a fixed output tensor and records the inputs it saw.
type fakeRunner struct {
	shape  model.Shape
	order  inference.ChannelOrder
	output []float32
	err    error
	inputs int
	last   []float32
}

func (r *fakeRunner) Run(input []float32) (tensor.Tensor, error) {
	r.inputs++
	r.last = append(r.last[:0], input...)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.output) != r.shape.OutputSize() {
		return tensor.New(tensor.WithShape(len(r.output)), tensor.WithBacking(r.output)), nil
	}
	return tensor.New(tensor.WithShape(1, r.shape.NumChannel, r.shape.NumElements), tensor.WithBacking(r.output)), nil
}

func (r *fakeRunner) Shape() model.Shape { return r.shape }

func (r *fakeRunner) Order() inference.ChannelOrder { return r.order }

// twoAnchors is a [6, 2] tensor: anchor 0 is class 1 at 0.9, anchor 1 is below threshold.
func twoAnchors() []float32 {
	return []float32{
		0.5, 0.2, // cx
		0.5, 0.2, // cy
		0.2, 0.1, // w
		0.2, 0.1, // h
		0.1, 0.2, // class 0
		0.9, 0.1, // class 1
	}
}

func newRunner() *fakeRunner {
	return &fakeRunner{
		shape:  model.Shape{TensorWidth: 4, TensorHeight: 2, NumChannel: 6, NumElements: 2},
		order:  inference.ChannelOrderCHW,
		output: twoAnchors(),
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	return img
}

func newTestModel(t *testing.T, shape model.Shape) model.Model {
	t.Helper()
	m, err := yolov8.NewModel(model.NewModelArgs{
		Shape:  shape,
		Labels: model.Labels{"stop", "yield"},
	})
	require.NoError(t, err)
	return m
}

func TestYOLODetectorDetect(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	runner := newRunner()
	d, err := NewYOLODetector(runner, newTestModel(t, runner.shape), zap.New(core).Sugar())
	require.NoError(t, err)

	boxes, err := d.Detect(context.Background(), testImage())
	require.NoError(t, err)

	require.Len(t, boxes, 1)
	assert.Equal(t, 1, boxes[0].Class)
	assert.Equal(t, "yield", boxes[0].Label)
	assert.InDelta(t, 0.9, boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 0.4, boxes[0].X1, 1e-6)
	assert.InDelta(t, 0.6, boxes[0].X2, 1e-6)

	assert.Equal(t, 1, runner.inputs)
	require.Len(t, runner.last, inference.InputSize(4, 2))
	assert.InDelta(t, 1.0, runner.last[0], 1e-6, "red channel first in CHW")
	assert.InDelta(t, 0.0, runner.last[8], 1e-6)

	entries := logs.FilterMessage("detection complete").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["boxes"])
}

func TestYOLODetectorNoDetections(t *testing.T) {
	runner := newRunner()
	runner.output = make([]float32, 12)
	d, err := NewYOLODetector(runner, newTestModel(t, runner.shape), nil)
	require.NoError(t, err)

	boxes, err := d.Detect(context.Background(), testImage())
	require.NoError(t, err)
	assert.NotNil(t, boxes)
	assert.Empty(t, boxes)
}

func TestYOLODetectorErrors(t *testing.T) {
	runner := newRunner()
	m := newTestModel(t, runner.shape)

	t.Run("shape disagreement", func(t *testing.T) {
		other := newRunner()
		other.shape.NumElements = 3
		_, err := NewYOLODetector(other, m, nil)
		assert.ErrorIs(t, err, model.ErrShapeMismatch)
	})

	t.Run("missing runner", func(t *testing.T) {
		_, err := NewYOLODetector(nil, m, nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		d, err := NewYOLODetector(newRunner(), m, nil)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = d.Detect(ctx, testImage())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("runner failure", func(t *testing.T) {
		r := newRunner()
		r.err = errors.New("boom")
		d, err := NewYOLODetector(r, m, nil)
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), testImage())
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("short output", func(t *testing.T) {
		r := newRunner()
		r.output = r.output[:10]
		d, err := NewYOLODetector(r, m, nil)
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), testImage())
		assert.ErrorIs(t, err, model.ErrShapeMismatch)
	})

	t.Run("nil image", func(t *testing.T) {
		d, err := NewYOLODetector(newRunner(), m, nil)
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestTaskDetector(t *testing.T) {
	detect := func(_ context.Context, _ image.Image) ([]efficientdet.Detection, error) {
		return []efficientdet.Detection{
			{Box: images.Rect{X1: 0, Y1: 0, X2: 4, Y2: 2}, Categories: []efficientdet.Category{{Index: 12, Label: "stop sign", Score: 0.8}}},
			{Box: images.Rect{X1: 1, Y1: 1, X2: 2, Y2: 2}, Categories: []efficientdet.Category{{Index: 0, Label: "person", Score: 0.2}}},
		}, nil
	}
	d, err := NewTaskDetector(detect, efficientdet.DefaultConfig(), nil)
	require.NoError(t, err)

	boxes, err := d.Detect(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "stop sign", boxes[0].Label)
	assert.InDelta(t, 0.5, boxes[0].X2, 1e-6)
	assert.InDelta(t, 0.5, boxes[0].Y2, 1e-6)

	_, err = NewTaskDetector(nil, efficientdet.DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Run("yolo", func(t *testing.T) {
		cfg := config.Default()
		d, err := New(cfg, newRunner(), nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &YOLODetector{}, d)
	})

	t.Run("yolo without runner", func(t *testing.T) {
		_, err := New(config.Default(), nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("efficientdet", func(t *testing.T) {
		cfg := config.Default()
		cfg.Model.Name = model.ModelNameEfficientDetLite0
		detect := func(context.Context, image.Image) ([]efficientdet.Detection, error) { return nil, nil }
		d, err := New(cfg, nil, detect, nil)
		require.NoError(t, err)
		assert.IsType(t, &TaskDetector{}, d)

		boxes, err := d.Detect(context.Background(), testImage())
		require.NoError(t, err)
		assert.NotNil(t, boxes)
		assert.Empty(t, boxes)
	})

	t.Run("zero confidence threshold", func(t *testing.T) {
		cfg, err := config.Parse([]byte("confidence_threshold: 0\n"))
		require.NoError(t, err)
		d, err := New(cfg, newRunner(), nil, nil)
		require.NoError(t, err)

		boxes, err := d.Detect(context.Background(), testImage())
		require.NoError(t, err)
		require.Len(t, boxes, 2)
		assert.InDelta(t, 0.9, boxes[0].Confidence, 1e-6)
		assert.InDelta(t, 0.2, boxes[1].Confidence, 1e-6)
		assert.Equal(t, 0, boxes[1].Class)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.ConfidenceThreshold = 2
		_, err := New(cfg, newRunner(), nil, nil)
		assert.Error(t, err)
	})
}
