package detect

import (
	"context"
	"fmt"
	"image"

	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

const (
	// minimum contour area in pixels considered a potential oil patch
	oilMinArea = 500
	// area scale and cap for the confidence score
	oilAreaScale = 10000
	oilMaxConf   = 0.9
	oilMinConf   = 0.3
	// ratio controlling how far detected contours are expanded before
	// fitting the bounding box, pooled oil bleeds past its mask edges
	oilUnclipRatio = 1.5
)

// OilLeakDetector finds dark, low saturation patches that look like pooled
// oil, using HSV color masking and contour analysis.
type OilLeakDetector struct{}

// Name implements hazardwatch.Detector.
func (d *OilLeakDetector) Name() string {
	return "oil_color"
}

// Detect implements hazardwatch.Detector.
func (d *OilLeakDetector) Detect(ctx context.Context,
	frame *hazardwatch.Frame) ([]hazardwatch.RawDetection, error) {

	if frame.Mat.Empty() || frame.Mat.Channels() != 3 {
		return nil, fmt.Errorf("unsupported frame format: %dx%d, %d channels",
			frame.Width, frame.Height, frame.Mat.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()

	gocv.CvtColor(frame.Mat, &hsv, gocv.ColorBGRToHSV)

	// oil reads as dark with low saturation in HSV
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 0, 0, 0),
		gocv.NewScalar(180, 100, 80, 0),
		&mask)

	// close then open to clean up the mask
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer kernel.Close()

	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var results []hazardwatch.RawDetection

	for i := 0; i < contours.Size(); i++ {

		contour := contours.At(i)
		area := float32(gocv.ContourArea(contour))

		if area <= oilMinArea {
			continue
		}

		conf := confidenceFromArea(area, oilAreaScale, oilMaxConf)

		if conf <= oilMinConf {
			continue
		}

		box := expandContour(contour, area, oilUnclipRatio, frame.Width, frame.Height)

		results = append(results, hazardwatch.RawDetection{
			Class:      hazardwatch.OilLeak,
			Confidence: conf,
			Box:        box,
			Source:     d.Name(),
		})
	}

	return results, nil
}

// expandContour offsets the contour polygon outward by a distance derived
// from its area and perimeter, then fits the bounding box over the expanded
// polygon, clamped to the frame.
func expandContour(contour gocv.PointVector, area, ratio float32,
	width, height int) hazardwatch.Box {

	points := contour.ToPoints()

	perimeter := float32(gocv.ArcLength(contour, true))

	if perimeter <= 0 {
		return boundingBox(points, width, height)
	}

	distance := area * ratio / perimeter

	// convert the contour points to a Clipper path
	var path clipper.Path

	for _, pt := range points {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(pt.X),
			Y: clipper.CInt(pt.Y),
		})
	}

	// create a ClipperOffset object and execute the offset operation
	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(float64(distance))

	if len(solution) == 0 {
		return boundingBox(points, width, height)
	}

	var expanded []image.Point

	for _, sol := range solution {
		for _, pt := range sol {
			expanded = append(expanded, image.Point{X: int(pt.X), Y: int(pt.Y)})
		}
	}

	return boundingBox(expanded, width, height)
}

// boundingBox fits an axis aligned box over the points, clamped to the frame
// dimensions.
func boundingBox(points []image.Point, width, height int) hazardwatch.Box {

	if len(points) == 0 {
		return hazardwatch.Box{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y

	for _, pt := range points[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}

	return hazardwatch.Box{
		X1: clampf32(float32(minX), 0, float32(width)),
		Y1: clampf32(float32(minY), 0, float32(height)),
		X2: clampf32(float32(maxX), 0, float32(width)),
		Y2: clampf32(float32(maxY), 0, float32(height)),
	}
}
