// Package yolov8 - YOLOv8-style detection decoder.
//
// The model output is a single [1, 4+classes, anchors] tensor laid out channel
// major: channels 0-3 carry the normalized cx, cy, w, h of every anchor and the
// remaining channels carry one score per class.
package yolov8

import (
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/nvr-ai/roadsigns/models/postprocess"
	"github.com/pkg/errors"
)

// DefaultConfidenceThreshold is the class score an anchor must exceed to be kept.
const DefaultConfidenceThreshold float32 = 0.3

// YOLOv8 is the instance of the YOLOv8 decoder.
//
// All fields are fixed at construction; a YOLOv8 is safe for concurrent use.
type YOLOv8 struct {
	options model.Options
	labels  model.Labels
}

// Options returns the options for the YOLOv8 model.
//
// Returns:
//   - The options for the YOLOv8 model.
func (m *YOLOv8) Options() model.Options {
	return m.options
}

// Labels returns the label table the model resolves class names from.
func (m *YOLOv8) Labels() model.Labels {
	return m.labels
}

// NewModel creates a new YOLOv8 decoder.
//
// A nil ConfidenceThreshold and a nil NMS fall back to DefaultConfidenceThreshold
// and postprocess.DefaultNMSConfig. An explicit threshold of 0 keeps every
// positive score.
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - The model.
//   - An error if the shape, labels or thresholds are unusable.
func NewModel(args model.NewModelArgs) (*YOLOv8, error) {
	shape := args.Shape
	if shape.NumChannel <= 4 {
		return nil, errors.Wrapf(model.ErrInvalidShape,
			"num_channel=%d must include 4 geometry channels and at least one class", shape.NumChannel)
	}
	if shape.NumElements <= 0 {
		return nil, errors.Wrapf(model.ErrInvalidShape, "num_elements=%d must be positive", shape.NumElements)
	}
	if len(args.Labels) < shape.NumClasses() {
		return nil, errors.Wrapf(model.ErrLabelMismatch,
			"%d labels for %d class channels", len(args.Labels), shape.NumClasses())
	}

	conf := DefaultConfidenceThreshold
	if args.ConfidenceThreshold != nil {
		conf = *args.ConfidenceThreshold
	}
	if err := model.ValidateThreshold("confidence_threshold", conf); err != nil {
		return nil, err
	}

	nms := postprocess.DefaultNMSConfig()
	if args.NMS != nil {
		nms = *args.NMS
	}
	if err := model.ValidateThreshold("iou_threshold", nms.IoUThreshold); err != nil {
		return nil, err
	}
	if nms.MaxDetections < 0 {
		return nil, errors.Errorf("max_detections=%d must not be negative", nms.MaxDetections)
	}

	name := args.Name
	if name == "" {
		name = model.ModelNameYOLOv8n
	}

	return &YOLOv8{
		options: model.Options{
			Name:                name,
			Family:              model.ModelFamilyYOLO,
			Path:                args.Path,
			Shape:               shape,
			ConfidenceThreshold: conf,
			NMS:                 nms,
		},
		labels: append(model.Labels(nil), args.Labels...),
	}, nil
}
