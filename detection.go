package hazardwatch

import (
	"context"
	"math"
)

// SourceModel is the source tag for detections produced by the object
// detection model. Heuristic detectors tag their detections with their
// own name.
const SourceModel = "model"

// Box is an axis aligned bounding box in frame pixel coordinates.
type Box struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// IoU calculates the Intersection over Union with another box, with added
// 1.0 for inclusive pixel calculation.
func (b Box) IoU(other Box) float32 {

	w := math.Max(0.0, math.Min(float64(b.X2), float64(other.X2))-math.Max(float64(b.X1), float64(other.X1))+1.0)
	h := math.Max(0.0, math.Min(float64(b.Y2), float64(other.Y2))-math.Max(float64(b.Y1), float64(other.Y1))+1.0)
	intersection := w * h

	area0 := (b.X2 - b.X1 + 1) * (b.Y2 - b.Y1 + 1)
	area1 := (other.X2 - other.X1 + 1) * (other.Y2 - other.Y1 + 1)

	union := float64(area0+area1) - intersection

	if union <= 0 {
		return 0.0
	}

	return float32(intersection / union)
}

// RawDetection is a single source detection before cross source merging.
type RawDetection struct {
	// Class of hazard detected
	Class HazardClass
	// Confidence score in the range [0,1]
	Confidence float32
	// Box is the bounding box of the hazard in frame pixel coordinates
	Box Box
	// Source identifies the detector that produced this detection, either
	// SourceModel or a heuristic detector name
	Source string
}

// Detection is one distinct hazard instance on a frame, produced by merging
// overlapping raw detections of the same class across sources. Confidence is
// the maximum among contributors, never an average, so a strong single
// signal is not diluted by a weak duplicate.
type Detection struct {
	Class      HazardClass `json:"class"`
	Confidence float32     `json:"confidence"`
	Box        Box         `json:"bbox"`
	// Sources lists the detectors that contributed to this detection
	Sources []string `json:"sources"`
	// Merged is the number of raw detections merged into this one
	Merged int `json:"merged"`
}

// Detector is the contract shared by the model adapter and every heuristic
// detector. Implementations must not modify the frame and must be safe to
// invoke concurrently across frames.
type Detector interface {
	// Name identifies the detector and is used as the source tag on its
	// detections
	Name() string
	// Detect analyzes the frame and returns zero or more raw detections
	Detect(ctx context.Context, frame *Frame) ([]RawDetection, error)
}
