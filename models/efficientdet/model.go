// Package efficientdet - Adapter for task-library EfficientDet detectors.
//
// The task library runs its own decoding and NMS and reports detections in pixel
// space. This package only normalizes those detections into common.BoundingBox.
package efficientdet

import (
	"github.com/nvr-ai/roadsigns/images"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/pkg/errors"
)

const (
	// DefaultScoreThreshold is the task-library score threshold.
	DefaultScoreThreshold float32 = 0.5
	// DefaultMaxResults is the task-library result cap.
	DefaultMaxResults = 3
)

// Category is one scored label attached to a detection.
type Category struct {
	Index int     `json:"index" yaml:"index"`
	Label string  `json:"label" yaml:"label"`
	Score float32 `json:"score" yaml:"score"`
}

// Detection is a task-library result in pixel coordinates.
type Detection struct {
	Box images.Rect `json:"box" yaml:"box"`
	// Categories are ordered best first.
	Categories []Category `json:"categories" yaml:"categories"`
}

// Config is the options for the EfficientDet adapter.
type Config struct {
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	MaxResults     int     `json:"max_results" yaml:"max_results"`
}

// DefaultConfig returns the task-library defaults.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold: DefaultScoreThreshold,
		MaxResults:     DefaultMaxResults,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if err := model.ValidateThreshold("score_threshold", c.ScoreThreshold); err != nil {
		return err
	}
	if c.MaxResults < 0 {
		return errors.Errorf("max_results=%d must not be negative", c.MaxResults)
	}
	return nil
}
