package yolov8

import (
	"github.com/nvr-ai/roadsigns/common"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/nvr-ai/roadsigns/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// PostProcess decodes one output tensor and suppresses overlapping boxes.
//
// Arguments:
//   - output: The flat [NumChannel*NumElements] output of the model.
//
// Returns:
//   - Boxes ordered by descending confidence. Empty, not an error, when nothing
//     passes the confidence threshold.
//   - An error wrapping model.ErrShapeMismatch when output has the wrong size.
func (m *YOLOv8) PostProcess(output []float32) ([]common.BoundingBox, error) {
	candidates, err := m.Candidates(output)
	if err != nil {
		return nil, err
	}
	return postprocess.ApplyNMS(candidates, m.options.NMS), nil
}

// Candidates decodes every anchor whose best class score exceeds the confidence
// threshold and whose corners all lie within [0, 1]. The result is in anchor order
// and has not been suppressed.
func (m *YOLOv8) Candidates(output []float32) ([]common.BoundingBox, error) {
	shape := m.options.Shape
	if len(output) != shape.OutputSize() {
		return nil, errors.Wrapf(model.ErrShapeMismatch,
			"got %d floats, want %d (%d channels x %d elements)",
			len(output), shape.OutputSize(), shape.NumChannel, shape.NumElements)
	}

	n := shape.NumElements
	boxes := make([]common.BoundingBox, 0, 16)

	for c := 0; c < n; c++ {
		// Strict > keeps the lowest class index on ties.
		maxConf := float32(-1)
		maxIdx := -1
		for j, idx := 4, c+4*n; j < shape.NumChannel; j, idx = j+1, idx+n {
			if output[idx] > maxConf {
				maxConf = output[idx]
				maxIdx = j - 4
			}
		}

		if !(maxConf > m.options.ConfidenceThreshold) {
			continue
		}

		b := common.NewBoundingBox(
			output[c],
			output[c+n],
			output[c+2*n],
			output[c+3*n],
			maxConf,
			maxIdx,
			m.labels.Name(maxIdx),
		)
		if !b.InUnitRange() {
			continue
		}
		boxes = append(boxes, b)
	}

	return boxes, nil
}

// PostProcessTensor runs PostProcess on a float32 tensor shaped
// [1, NumChannel, NumElements] or [NumChannel, NumElements].
func (m *YOLOv8) PostProcessTensor(t tensor.Tensor) ([]common.BoundingBox, error) {
	if t == nil {
		return nil, errors.Wrap(model.ErrShapeMismatch, "nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("output tensor dtype %v, want float32", t.Dtype())
	}

	shape := m.options.Shape
	dims := t.Shape()
	switch {
	case len(dims) == 3 && dims[0] == 1 && dims[1] == shape.NumChannel && dims[2] == shape.NumElements:
	case len(dims) == 2 && dims[0] == shape.NumChannel && dims[1] == shape.NumElements:
	default:
		return nil, errors.Wrapf(model.ErrShapeMismatch,
			"tensor shape %v, want (1, %d, %d)", dims, shape.NumChannel, shape.NumElements)
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("output tensor backing %T, want []float32", t.Data())
	}
	return m.PostProcess(data)
}
