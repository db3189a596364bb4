package detection

import (
	"fmt"
	"image"
)

// DecodeYOLOv8 parses a YOLOv8 output tensor of shape [1, 4+classes, anchors] laid out
// row-major. Each anchor contributes a detection for its best class when that class
// score reaches threshold.
//
// Non-maximum suppression is not applied: it only drops lower scoring boxes of a class
// that already has a kept box, so the set of detected classes is the same.
func DecodeYOLOv8(data []float32, attributes, anchors int, threshold float32) ([]Detection, error) {
	if attributes <= 4 {
		return nil, fmt.Errorf("unexpected output shape: %d attributes per anchor", attributes)
	}
	if anchors <= 0 {
		return nil, fmt.Errorf("unexpected output shape: %d anchors", anchors)
	}
	if len(data) != attributes*anchors {
		return nil, fmt.Errorf("output tensor has %d values, expected %d (%dx%d)", len(data), attributes*anchors, attributes, anchors)
	}

	classes := attributes - 4
	var detections []Detection
	for i := 0; i < anchors; i++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < classes; c++ {
			score := data[(4+c)*anchors+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx := data[i]
		cy := data[anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]
		detections = append(detections, Detection{
			ClassID:    bestClass,
			Confidence: bestScore,
			Box: image.Rect(
				int(cx-w/2), int(cy-h/2),
				int(cx+w/2), int(cy+h/2),
			),
		})
	}
	return detections, nil
}
