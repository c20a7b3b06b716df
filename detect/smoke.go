package detect

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

const (
	smokeMinArea   = 1000
	smokeAreaScale = 20000
	smokeMaxConf   = 0.7
	smokeMinConf   = 0.2
	// Laplacian variance below this indicates a low texture frame, smoke
	// washes out fine detail
	smokeVarianceGate = 100
)

// SmokeDetector finds uniform gray regions on low texture frames. Texture is
// measured as the variance of the Laplacian over the whole frame; smoke blurs
// edges, so a low variance frame is searched for large bright regions.
type SmokeDetector struct{}

// Name implements hazardwatch.Detector.
func (d *SmokeDetector) Name() string {
	return "smoke_texture"
}

// Detect implements hazardwatch.Detector.
func (d *SmokeDetector) Detect(ctx context.Context,
	frame *hazardwatch.Frame) ([]hazardwatch.RawDetection, error) {

	if frame.Mat.Empty() || frame.Mat.Channels() != 3 {
		return nil, fmt.Errorf("unsupported frame format: %dx%d, %d channels",
			frame.Width, frame.Height, frame.Mat.Channels())
	}

	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)

	variance, err := laplacianVariance(gray)

	if err != nil {
		return nil, err
	}

	if variance >= smokeVarianceGate {
		// frame has normal texture, no smoke
		return nil, nil
	}

	thresh := gocv.NewMat()
	defer thresh.Close()

	gocv.Threshold(gray, &thresh, 100, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var results []hazardwatch.RawDetection

	for i := 0; i < contours.Size(); i++ {

		contour := contours.At(i)
		area := float32(gocv.ContourArea(contour))

		if area <= smokeMinArea {
			continue
		}

		conf := confidenceFromArea(area, smokeAreaScale, smokeMaxConf)

		if conf <= smokeMinConf {
			continue
		}

		rect := gocv.BoundingRect(contour)

		results = append(results, hazardwatch.RawDetection{
			Class:      hazardwatch.Smoke,
			Confidence: conf,
			Box: hazardwatch.Box{
				X1: float32(rect.Min.X),
				Y1: float32(rect.Min.Y),
				X2: float32(rect.Max.X),
				Y2: float32(rect.Max.Y),
			},
			Source: d.Name(),
		})
	}

	return results, nil
}

// laplacianVariance measures frame texture as the population variance of the
// Laplacian response.
func laplacianVariance(gray gocv.Mat) (float64, error) {

	lap := gocv.NewMat()
	defer lap.Close()

	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	values, err := lap.DataPtrFloat64()

	if err != nil {
		return 0, fmt.Errorf("reading laplacian response: %w", err)
	}

	return stat.PopVariance(values, nil), nil
}
