// Package detector - Image to bounding box detection over the supported model families.
package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/nvr-ai/roadsigns/common"
	"github.com/nvr-ai/roadsigns/config"
	"github.com/nvr-ai/roadsigns/inference"
	"github.com/nvr-ai/roadsigns/models"
	"github.com/nvr-ai/roadsigns/models/efficientdet"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Detector turns an image into normalized bounding boxes.
type Detector interface {
	// Detect runs one detection pass. No detections is an empty, non-nil slice.
	Detect(ctx context.Context, img image.Image) ([]common.BoundingBox, error)
}

// YOLODetector prepares an image, runs it through a Runner and decodes the
// output tensor with a model.Model.
type YOLODetector struct {
	mu     sync.Mutex
	runner inference.Runner
	model  model.Model
	input  []float32
	logger *zap.SugaredLogger
}

// NewYOLODetector creates a detector over runner and m.
//
// Arguments:
//   - runner: The inference runner whose shape matches m.
//   - m: The decoder for the runner's output tensor.
//   - logger: The logger. Nil disables logging.
//
// Returns:
//   - *YOLODetector: The detector.
//   - error: An error if the runner and model disagree on the tensor shape.
func NewYOLODetector(runner inference.Runner, m model.Model, logger *zap.SugaredLogger) (*YOLODetector, error) {
	if runner == nil || m == nil {
		return nil, errors.New("runner and model are required")
	}
	if runner.Shape() != m.Options().Shape {
		return nil, errors.Wrapf(model.ErrShapeMismatch,
			"runner shape %+v does not match model shape %+v", runner.Shape(), m.Options().Shape)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	shape := runner.Shape()
	return &YOLODetector{
		runner: runner,
		model:  m,
		input:  make([]float32, inference.InputSize(shape.TensorWidth, shape.TensorHeight)),
		logger: logger,
	}, nil
}

// Detect prepares img, runs the model and decodes the result.
//
// Calls are serialized since the runner and input buffer are shared.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]common.BoundingBox, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if img == nil {
		return nil, errors.New("image is nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	shape := d.runner.Shape()
	if err := inference.PrepareInput(img, shape.TensorWidth, shape.TensorHeight, d.runner.Order(), d.input); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}

	output, err := d.runner.Run(d.input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	boxes, err := d.model.PostProcessTensor(output)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode output")
	}

	d.logger.Debugw("detection complete", "boxes", len(boxes), "elapsed", time.Since(start))
	return boxes, nil
}

// DetectFunc runs a task-library detector that already returns decoded detections.
type DetectFunc func(ctx context.Context, img image.Image) ([]efficientdet.Detection, error)

// TaskDetector adapts a task-library EfficientDet detector to Detector.
type TaskDetector struct {
	detect DetectFunc
	cfg    efficientdet.Config
	logger *zap.SugaredLogger
}

// NewTaskDetector creates a TaskDetector.
func NewTaskDetector(detect DetectFunc, cfg efficientdet.Config, logger *zap.SugaredLogger) (*TaskDetector, error) {
	if detect == nil {
		return nil, errors.New("detect func is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TaskDetector{detect: detect, cfg: cfg, logger: logger}, nil
}

// Detect runs the task detector and normalizes its pixel boxes against img's size.
func (d *TaskDetector) Detect(ctx context.Context, img image.Image) ([]common.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("image is nil")
	}

	dets, err := d.detect(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "task detector failed")
	}

	b := img.Bounds()
	boxes, err := efficientdet.Normalize(dets, b.Dx(), b.Dy(), d.cfg)
	if err != nil {
		return nil, err
	}
	d.logger.Debugw("detection complete", "detections", len(dets), "boxes", len(boxes))
	return boxes, nil
}

// New builds the detector selected by cfg.
//
// YOLO models need runner; EfficientDet models need detect. The other argument
// may be nil.
//
// Arguments:
//   - cfg: The validated configuration.
//   - runner: The inference runner for YOLO models.
//   - detect: The task-library detector for EfficientDet models.
//   - logger: The logger. Nil disables logging.
//
// Returns:
//   - Detector: The detector for cfg's model family.
//   - error: An error if the configuration or model cannot be used.
func New(cfg config.Config, runner inference.Runner, detect DetectFunc, logger *zap.SugaredLogger) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("model", cfg.Model.Name)

	switch family := cfg.Family(); family {
	case model.ModelFamilyYOLO:
		if runner == nil {
			return nil, errors.Errorf("model %s needs an inference runner", cfg.Model.Name)
		}
		labels, err := cfg.LoadLabels()
		if err != nil {
			return nil, err
		}
		m, err := models.NewModel(cfg.ModelArgs(runner.Shape(), labels))
		if err != nil {
			return nil, err
		}
		d, err := NewYOLODetector(runner, m, logger)
		if err != nil {
			return nil, err
		}
		logger.Infow("created detector",
			"family", family,
			"shape", runner.Shape(),
			"confidence_threshold", m.Options().ConfidenceThreshold,
			"iou_threshold", m.Options().NMS.IoUThreshold)
		return d, nil
	case model.ModelFamilyEfficientDet:
		d, err := NewTaskDetector(detect, cfg.EfficientDet, logger)
		if err != nil {
			return nil, err
		}
		logger.Infow("created detector", "family", family)
		return d, nil
	default:
		return nil, errors.Wrapf(model.ErrUnsupportedModel, "family %s", family)
	}
}
