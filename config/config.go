// Package config - Detector configuration loaded from YAML.
package config

import (
	"os"

	"github.com/nvr-ai/roadsigns/inference"
	"github.com/nvr-ai/roadsigns/models"
	"github.com/nvr-ai/roadsigns/models/efficientdet"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/nvr-ai/roadsigns/models/postprocess"
	"github.com/nvr-ai/roadsigns/models/yolov8"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrModelPathRequired is returned when neither the config nor the catalog names a model file.
var ErrModelPathRequired = errors.New("model.path is required")

// Model selects the model file and its labels.
type Model struct {
	// Name is a catalog name such as yolov8n-float32 or efficientdet-lite0.
	Name model.Name `json:"name" yaml:"name"`
	// Path is the model file.
	Path string `json:"path" yaml:"path"`
	// Labels is a newline-delimited label file. Empty uses the COCO labels.
	Labels string `json:"labels" yaml:"labels"`
}

// Input describes the tensor the image is prepared into.
type Input struct {
	// Width and Height fill dynamic model input dimensions.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// ChannelOrder is "chw", "hwc" or empty to follow the model's input dims.
	ChannelOrder string `json:"channel_order" yaml:"channel_order"`
}

// Runtime configures the onnxruntime session.
type Runtime struct {
	LibraryPath    string `json:"library_path" yaml:"library_path"`
	IntraOpThreads int    `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// Config is the complete configuration of one detector instance.
//
// A detector never observes config changes; build a new one instead.
type Config struct {
	Model Model `json:"model" yaml:"model"`

	// ConfidenceThreshold is the class score an anchor must exceed.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMS controls Non-Maximum Suppression.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`

	Input   Input   `json:"input" yaml:"input"`
	Runtime Runtime `json:"runtime" yaml:"runtime"`

	// EfficientDet configures the task-library adapter.
	EfficientDet efficientdet.Config `json:"efficientdet" yaml:"efficientdet"`
}

// Default returns a configuration with the application defaults.
//
// Returns:
//   - Config: confidence 0.3, class-agnostic NMS at IoU 0.5, 640x640 input laid
//     out as the model declares.
func Default() Config {
	return Config{
		Model:               Model{Name: models.DefaultModel},
		ConfidenceThreshold: yolov8.DefaultConfidenceThreshold,
		NMS:                 postprocess.DefaultNMSConfig(),
		Input: Input{
			Width:  640,
			Height: 640,
		},
		Runtime:      Runtime{IntraOpThreads: inference.DefaultIntraOpThreads},
		EfficientDet: efficientdet.DefaultConfig(),
	}
}

// Load reads a YAML file on top of Default and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Model.Name == "" {
		return errors.New("model.name is required")
	}
	if err := model.ValidateThreshold("confidence_threshold", c.ConfidenceThreshold); err != nil {
		return err
	}
	if err := model.ValidateThreshold("nms.iou_threshold", c.NMS.IoUThreshold); err != nil {
		return err
	}
	if c.NMS.MaxDetections < 0 {
		return errors.Errorf("nms.max_detections=%d must not be negative", c.NMS.MaxDetections)
	}
	if c.Input.Width <= 0 || c.Input.Height <= 0 {
		return errors.Errorf("input size %dx%d must be positive", c.Input.Width, c.Input.Height)
	}
	if _, err := inference.ParseChannelOrder(c.Input.ChannelOrder); err != nil {
		return errors.Wrap(err, "input.channel_order")
	}
	if c.Runtime.IntraOpThreads < 0 {
		return errors.Errorf("runtime.intra_op_threads=%d must not be negative", c.Runtime.IntraOpThreads)
	}
	if err := c.EfficientDet.Validate(); err != nil {
		return errors.Wrap(err, "efficientdet")
	}
	return nil
}

// Family returns the model family selected by Model.Name.
func (c Config) Family() model.Family {
	return models.FamilyOf(c.Model.Name)
}

// LoadLabels returns the configured label table, or models.COCOLabels when none is set.
func (c Config) LoadLabels() (model.Labels, error) {
	if c.Model.Labels == "" {
		return models.COCOLabels, nil
	}
	return model.LoadLabelsFile(c.Model.Labels)
}

// ResolveModelPath fills an empty Model.Path with the catalog file of Model.Name.
//
// Returns:
//   - Config: The configuration with a model path.
//   - error: ErrModelPathRequired when the name is not in the catalog either.
func (c Config) ResolveModelPath() (Config, error) {
	if c.Model.Path != "" {
		return c, nil
	}
	e, ok := models.Lookup(c.Model.Name)
	if !ok {
		return c, errors.Wrapf(ErrModelPathRequired, "model %s is not in the catalog", c.Model.Name)
	}
	c.Model.Path = e.File
	return c, nil
}

// SessionArgs returns the onnxruntime session arguments for this configuration.
func (c Config) SessionArgs() inference.NewSessionArgs {
	// Validate has already rejected unknown orders.
	order, _ := inference.ParseChannelOrder(c.Input.ChannelOrder)
	return inference.NewSessionArgs{
		ModelPath:      c.Model.Path,
		LibraryPath:    c.Runtime.LibraryPath,
		IntraOpThreads: c.Runtime.IntraOpThreads,
		InputWidth:     c.Input.Width,
		InputHeight:    c.Input.Height,
		ChannelOrder:   order,
	}
}

// ModelArgs returns the decoder arguments for a model of the given shape and labels.
func (c Config) ModelArgs(shape model.Shape, labels model.Labels) model.NewModelArgs {
	conf, nms := c.ConfidenceThreshold, c.NMS
	return model.NewModelArgs{
		Name:                c.Model.Name,
		Path:                c.Model.Path,
		Shape:               shape,
		Labels:              labels,
		ConfidenceThreshold: &conf,
		NMS:                 &nms,
	}
}
