// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/roadsigns/common"
)

// DefaultIoUThreshold is the overlap at which a lower-confidence box is dropped.
const DefaultIoUThreshold float32 = 0.5

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap at or above which a box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAware restricts suppression to boxes with the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// MaxDetections caps the number of kept boxes. 0 means no cap.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// DefaultNMSConfig returns class-agnostic suppression at DefaultIoUThreshold.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: DefaultIoUThreshold}
}

// SortByConfidence returns a copy of boxes ordered by descending confidence.
// Boxes with equal confidence keep their input order.
func SortByConfidence(boxes []common.BoundingBox) []common.BoundingBox {
	sorted := make([]common.BoundingBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// ApplyNMS filters overlapping detections using greedy Non-Maximum Suppression.
//
// The highest-confidence remaining box is kept and every remaining box whose IoU
// with it is >= config.IoUThreshold is removed from the pool, until the pool is
// empty. The input slice is not modified.
//
// Arguments:
//   - boxes: Candidate detections in any order.
//   - config: NMS configuration. With ClassAware unset, boxes of different
//     classes suppress each other.
//
// Returns:
//   - Kept detections ordered by descending confidence. Never nil.
func ApplyNMS(boxes []common.BoundingBox, config NMSConfig) []common.BoundingBox {
	sorted := SortByConfidence(boxes)
	kept := make([]common.BoundingBox, 0, len(sorted))
	suppressed := make([]bool, len(sorted))

	for i, anchor := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, anchor)
		if config.MaxDetections > 0 && len(kept) == config.MaxDetections {
			break
		}

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				continue
			}
			if anchor.IoU(sorted[j]) >= config.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
