package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	hazardwatch "github.com/seefeld/go-hazardwatch"
)

// boxLabel holds the render details of a detection label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// HazardAnnotator draws merged detections and a timestamp onto a copy of a
// frame. It implements hazardwatch.Annotator. Output is a pure function of
// the frame and detections, annotating the same inputs twice yields
// identical pixels and the input frame is never modified.
type HazardAnnotator struct {
	Font          Font
	LineThickness int
}

// NewHazardAnnotator creates an annotator with default font settings.
func NewHazardAnnotator() *HazardAnnotator {
	return &HazardAnnotator{
		Font:          DefaultFont(),
		LineThickness: 2,
	}
}

// Annotate implements hazardwatch.Annotator. The returned Mat is owned by
// the caller.
func (a *HazardAnnotator) Annotate(frame *hazardwatch.Frame,
	detections []hazardwatch.Detection) (gocv.Mat, error) {

	if frame.Mat.Empty() {
		return gocv.Mat{}, errors.New("empty frame")
	}

	img := frame.Mat.Clone()

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(detections))

	for _, det := range detections {

		useClr := ClassColor(det.Class)

		// draw rectangle around the detected hazard
		rect := image.Rect(int(det.Box.X1), int(det.Box.Y1),
			int(det.Box.X2), int(det.Box.Y2))
		gocv.Rectangle(&img, rect, useClr, a.LineThickness)

		// create text for label
		text := fmt.Sprintf("%s %.2f", det.Class, det.Confidence)
		textSize := gocv.GetTextSize(text, a.Font.Face, a.Font.Scale, a.Font.Thickness)

		labelPosition := image.Pt(rect.Min.X+a.Font.LeftPad,
			rect.Min.Y-a.Font.BottomPad)

		// box for placing text on
		bRect := image.Rect(rect.Min.X,
			rect.Min.Y-textSize.Y-a.Font.TopPad-a.Font.BottomPad,
			rect.Min.X+textSize.X+a.Font.LeftPad+a.Font.RightPad,
			rect.Min.Y)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw all precalculated box labels so they are the top most layer on
	// the image
	for _, label := range boxLabels {
		// draw box the text gets written on
		gocv.Rectangle(&img, label.rect, label.clr, -1)

		// draw the label over the box
		gocv.PutTextWithParams(&img, label.text, label.textPos,
			a.Font.Face, a.Font.Scale, a.Font.Color, a.Font.Thickness,
			a.Font.LineType, false)
	}

	// overlay the frame timestamp
	stamp := fmt.Sprintf("frame %d  %s", frame.Index,
		frame.Timestamp.UTC().Format("2006-01-02 15:04:05.000"))

	gocv.PutTextWithParams(&img, stamp, image.Pt(10, 30),
		a.Font.Face, 0.7, White, 2, a.Font.LineType, false)

	return img, nil
}
