// Package models - registry and catalog for detection models.
package models

import (
	"strings"

	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/nvr-ai/roadsigns/models/yolov8"
	"github.com/pkg/errors"
)

// DefaultModel is the catalog entry selected when no model is configured.
const DefaultModel model.Name = "yolov8n-float32"

// CatalogEntry describes a model file the application ships.
type CatalogEntry struct {
	Name   model.Name   `json:"name" yaml:"name"`
	Family model.Family `json:"family" yaml:"family"`
	File   string       `json:"file" yaml:"file"`
	// Size is the human readable file size shown next to the model name.
	Size string `json:"size" yaml:"size"`
}

// Catalog lists the selectable models in display order.
var Catalog = []CatalogEntry{
	{Name: "yolov8s-float32", Family: model.ModelFamilyYOLO, File: "YOLOv8s-float32.onnx", Size: "44MB"},
	{Name: "yolov8s-float16", Family: model.ModelFamilyYOLO, File: "YOLOv8s-float16.onnx", Size: "22MB"},
	{Name: DefaultModel, Family: model.ModelFamilyYOLO, File: "YOLOv8n-float32.onnx", Size: "12MB"},
	{Name: "yolov8n-float16", Family: model.ModelFamilyYOLO, File: "YOLOv8n-float16.onnx", Size: "6MB"},
	{Name: model.ModelNameEfficientDetLite0, Family: model.ModelFamilyEfficientDet, File: "EfficientDet-Lite0.tflite", Size: "4.4MB"},
	{Name: model.ModelNameEfficientDetLite1, Family: model.ModelFamilyEfficientDet, File: "EfficientDet-Lite1.tflite", Size: "5.8MB"},
}

// Lookup returns the catalog entry for name.
func Lookup(name model.Name) (CatalogEntry, bool) {
	for _, e := range Catalog {
		if e.Name == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// FamilyOf returns the family of a model name. Catalog entries win; otherwise any
// name mentioning EfficientDet is a task-library model and everything else is
// treated as a YOLO export.
func FamilyOf(name model.Name) model.Family {
	if e, ok := Lookup(name); ok {
		return e.Family
	}
	if strings.Contains(strings.ToLower(string(name)), "efficientdet") {
		return model.ModelFamilyEfficientDet
	}
	return model.ModelFamilyYOLO
}

// NewModel creates a new tensor decoding model for the given arguments.
//
// Only the YOLO family decodes raw tensors; EfficientDet models run inside a
// task library and are served by detector.TaskDetector instead.
//
// Arguments:
//   - args: Configuration parameters specifying the model, its shape and labels.
//
// Returns:
//   - model.Model: A configured model instance.
//   - error: An error if the family is unsupported or validation fails.
//
// Example:
//
// ```go
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name:   model.ModelNameYOLOv8n,
//	    Shape:  model.Shape{TensorWidth: 640, TensorHeight: 640, NumChannel: 84, NumElements: 8400},
//	    Labels: COCOLabels,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch FamilyOf(args.Name) {
	case model.ModelFamilyYOLO:
		m, err := yolov8.NewModel(args)
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", args.Name)
		}
		return m, nil
	default:
		return nil, errors.Wrapf(model.ErrUnsupportedModel, "%s does not decode raw tensors", args.Name)
	}
}
