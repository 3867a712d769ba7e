// Package model - Definitions shared by every detection model implementation.
package model

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/roadsigns/common"
	"github.com/nvr-ai/roadsigns/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO decodes raw [1, 4+classes, anchors] outputs and runs NMS itself.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyEfficientDet delegates detection and NMS to a task library.
	ModelFamilyEfficientDet Family = "efficientdet"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv8s is the small YOLOv8 detector.
	ModelNameYOLOv8s Name = "yolov8s"
	// ModelNameYOLOv8n is the nano YOLOv8 detector.
	ModelNameYOLOv8n Name = "yolov8n"
	// ModelNameYOLO11n is the nano YOLO11 detector, which shares the YOLOv8 output layout.
	ModelNameYOLO11n Name = "yolo11n"
	// ModelNameEfficientDetLite0 is EfficientDet-Lite0.
	ModelNameEfficientDetLite0 Name = "efficientdet-lite0"
	// ModelNameEfficientDetLite1 is EfficientDet-Lite1.
	ModelNameEfficientDetLite1 Name = "efficientdet-lite1"
)

var (
	// ErrShapeMismatch is returned when an output buffer does not match the declared shape.
	ErrShapeMismatch = errors.New("output tensor shape mismatch")
	// ErrInvalidShape is returned when a declared model shape cannot be decoded.
	ErrInvalidShape = errors.New("invalid model shape")
	// ErrLabelMismatch is returned when the label table is too short for the class channels.
	ErrLabelMismatch = errors.New("label table does not cover all classes")
	// ErrInvalidThreshold is returned for thresholds outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	// ErrUnsupportedModel is returned by the registry for unknown names.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// Shape holds the tensor dimensions fixed when a model is loaded.
type Shape struct {
	// TensorWidth is the expected input image width.
	TensorWidth int `json:"tensor_width" yaml:"tensor_width"`
	// TensorHeight is the expected input image height.
	TensorHeight int `json:"tensor_height" yaml:"tensor_height"`
	// NumChannel is 4 geometry channels plus one channel per class.
	NumChannel int `json:"num_channel" yaml:"num_channel"`
	// NumElements is the number of anchors.
	NumElements int `json:"num_elements" yaml:"num_elements"`
}

// NumClasses returns the number of class score channels.
func (s Shape) NumClasses() int {
	return s.NumChannel - 4
}

// OutputSize returns the number of floats in one output tensor.
func (s Shape) OutputSize() int {
	return s.NumChannel * s.NumElements
}

// Options describes a constructed model.
type Options struct {
	Name                Name                  `json:"name" yaml:"name"`
	Family              Family                `json:"family" yaml:"family"`
	Path                string                `json:"path" yaml:"path"`
	Shape               Shape                 `json:"shape" yaml:"shape"`
	ConfidenceThreshold float32               `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMS                 postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// Model turns one raw output tensor into suppressed bounding boxes.
type Model interface {
	Options() Options
	PostProcess(output []float32) ([]common.BoundingBox, error)
	// PostProcessTensor decodes an output tensor shaped [1, NumChannel, NumElements].
	PostProcessTensor(t tensor.Tensor) ([]common.BoundingBox, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name                Name                   `json:"name" yaml:"name"`
	Path                string                 `json:"path" yaml:"path"`
	Shape               Shape                  `json:"shape" yaml:"shape"`
	Labels              Labels                 `json:"labels" yaml:"labels"`
	ConfidenceThreshold *float32               `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMS                 *postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// ValidateThreshold returns ErrInvalidThreshold wrapped with name when v is outside [0, 1].
func ValidateThreshold(name string, v float32) error {
	if v < 0 || v > 1 || math32.IsNaN(v) {
		return errors.Wrapf(ErrInvalidThreshold, "%s=%v", name, v)
	}
	return nil
}
