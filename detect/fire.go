package detect

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

const (
	fireMinArea   = 300
	fireAreaScale = 5000
	fireMaxConf   = 0.8
	fireMinConf   = 0.4
)

// FireDetector finds red-orange regions characteristic of open flame. Fire
// hue wraps around both ends of the HSV hue axis, so two masks are combined.
type FireDetector struct{}

// Name implements hazardwatch.Detector.
func (d *FireDetector) Name() string {
	return "fire_color"
}

// Detect implements hazardwatch.Detector.
func (d *FireDetector) Detect(ctx context.Context,
	frame *hazardwatch.Frame) ([]hazardwatch.RawDetection, error) {

	if frame.Mat.Empty() || frame.Mat.Channels() != 3 {
		return nil, fmt.Errorf("unsupported frame format: %dx%d, %d channels",
			frame.Width, frame.Height, frame.Mat.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()

	gocv.CvtColor(frame.Mat, &hsv, gocv.ColorBGRToHSV)

	// fire hues sit at both ends of the hue range
	maskLow := gocv.NewMat()
	defer maskLow.Close()

	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 120, 70, 0),
		gocv.NewScalar(10, 255, 255, 0),
		&maskLow)

	maskHigh := gocv.NewMat()
	defer maskHigh.Close()

	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(170, 120, 70, 0),
		gocv.NewScalar(180, 255, 255, 0),
		&maskHigh)

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.BitwiseOr(maskLow, maskHigh, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var results []hazardwatch.RawDetection

	for i := 0; i < contours.Size(); i++ {

		contour := contours.At(i)
		area := float32(gocv.ContourArea(contour))

		if area <= fireMinArea {
			continue
		}

		conf := confidenceFromArea(area, fireAreaScale, fireMaxConf)

		if conf <= fireMinConf {
			continue
		}

		rect := gocv.BoundingRect(contour)

		results = append(results, hazardwatch.RawDetection{
			Class:      hazardwatch.Fire,
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
