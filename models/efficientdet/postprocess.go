package efficientdet

import (
	"github.com/nvr-ai/roadsigns/common"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/pkg/errors"
)

// Normalize converts task-library detections into normalized bounding boxes.
//
// Each detection takes its first category; a detection without categories gets
// score 0, class 0 and model.UnknownLabel. Detections scoring below
// cfg.ScoreThreshold are dropped and at most cfg.MaxResults are returned
// (0 means no cap). Input order is kept since the task library already sorts.
//
// Arguments:
//   - dets: The task-library detections.
//   - width: The width of the image the detections refer to.
//   - height: The height of the image the detections refer to.
//   - cfg: The adapter configuration.
//
// Returns:
//   - The normalized boxes.
//   - An error if the image size is not positive.
func Normalize(dets []Detection, width, height int, cfg Config) ([]common.BoundingBox, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(model.ErrInvalidShape, "image size %dx%d", width, height)
	}

	boxes := make([]common.BoundingBox, 0, len(dets))
	for _, d := range dets {
		category := Category{Label: model.UnknownLabel}
		if len(d.Categories) > 0 {
			category = d.Categories[0]
		}
		if category.Score < cfg.ScoreThreshold {
			continue
		}

		x1, y1, x2, y2 := d.Box.Normalize(width, height)
		boxes = append(boxes, common.FromCorners(x1, y1, x2, y2, category.Score, category.Index, category.Label))

		if cfg.MaxResults > 0 && len(boxes) == cfg.MaxResults {
			break
		}
	}
	return boxes, nil
}
