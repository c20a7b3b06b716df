package detect

import (
	"context"
	"fmt"

	"github.com/x448/float16"
	"gocv.io/x/gocv"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

// NativeDetection is one detection in the model's native output format: the
// class is an index into the label table, the confidence is the raw bits of
// an IEEE-754 half precision float, and the box corners are normalized to
// [0,1] relative to the frame.
type NativeDetection struct {
	ClassIndex int
	// ScoreBits holds the confidence as raw float16 bits
	ScoreBits uint16
	// Normalized box corners
	X1, Y1, X2, Y2 float32
}

// Scorer is the opaque object detection model. The adapter owns only the
// translation of its output, not the model lifecycle or loading. The scorer
// must not modify the image.
type Scorer interface {
	Score(ctx context.Context, img gocv.Mat) ([]NativeDetection, error)
}

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// ModelAdapter translates the detection model's native output into the
// canonical raw detection shape: half float confidences are decoded, class
// indices mapped through the label table, and normalized box coordinates
// denormalized to frame pixel space.
type ModelAdapter struct {
	scorer Scorer
	labels []hazardwatch.HazardClass
}

// NewModelAdapter wraps a scorer. labels maps the model's class indices to
// hazard classes; nil uses hazardwatch.DefaultLabels.
func NewModelAdapter(scorer Scorer, labels []hazardwatch.HazardClass) *ModelAdapter {

	if labels == nil {
		labels = hazardwatch.DefaultLabels
	}

	return &ModelAdapter{
		scorer: scorer,
		labels: labels,
	}
}

// Name implements hazardwatch.Detector.
func (m *ModelAdapter) Name() string {
	return hazardwatch.SourceModel
}

// Detect runs the model on the frame and converts its native detections.
// The frame is not modified.
func (m *ModelAdapter) Detect(ctx context.Context,
	frame *hazardwatch.Frame) ([]hazardwatch.RawDetection, error) {

	native, err := m.scorer.Score(ctx, frame.Mat)

	if err != nil {
		return nil, fmt.Errorf("model score: %w", err)
	}

	results := make([]hazardwatch.RawDetection, 0, len(native))

	width := float32(frame.Width)
	height := float32(frame.Height)

	for _, det := range native {

		conf := clampf32(f16LookupTable[det.ScoreBits], 0, 1)

		results = append(results, hazardwatch.RawDetection{
			Class:      m.className(det.ClassIndex),
			Confidence: conf,
			Box: hazardwatch.Box{
				X1: clampf32(det.X1, 0, 1) * width,
				Y1: clampf32(det.Y1, 0, 1) * height,
				X2: clampf32(det.X2, 0, 1) * width,
				Y2: clampf32(det.Y2, 0, 1) * height,
			},
			Source: hazardwatch.SourceModel,
		})
	}

	return results, nil
}

// className maps a model class index to a hazard class. Indices outside the
// label table keep the raw index visible rather than being discarded.
func (m *ModelAdapter) className(index int) hazardwatch.HazardClass {

	if index >= 0 && index < len(m.labels) {
		return m.labels[index]
	}

	return hazardwatch.HazardClass(fmt.Sprintf("unknown_%d", index))
}

// clampf32 restricts val to the range [min, max].
func clampf32(val, min, max float32) float32 {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
