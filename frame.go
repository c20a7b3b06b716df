package hazardwatch

import (
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a single video frame handed to the analysis pipeline. The pixel
// buffer is owned by the pipeline once the frame is submitted and is released
// when every stage using it has finished, or when the frame is dropped under
// backpressure. Detector stages treat the buffer as read only.
type Frame struct {
	// Mat holds the frame pixels in BGR format
	Mat gocv.Mat
	// Index is the monotonic frame number assigned by the frame source.
	// Indices are never reused, so gaps in the processed sequence show
	// where frames were dropped.
	Index int64
	// Timestamp is the capture time of the frame
	Timestamp time.Time
	// Width and Height are the frame dimensions in pixels
	Width  int
	Height int

	refs atomic.Int32
}

// NewFrame wraps a pixel buffer into a Frame holding one reference. The
// dimensions are taken from the Mat.
func NewFrame(mat gocv.Mat, index int64, timestamp time.Time) *Frame {

	f := &Frame{
		Mat:       mat,
		Index:     index,
		Timestamp: timestamp,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
	}

	f.refs.Store(1)
	return f
}

// Retain adds a reference to the frame. Used when a stage can outlive the
// pipeline's ownership of the frame, such as a model call that is abandoned
// after its timeout.
func (f *Frame) Retain() {
	f.refs.Add(1)
}

// Release drops a reference and closes the pixel buffer once the last
// reference is gone.
func (f *Frame) Release() {
	if f.refs.Add(-1) == 0 {
		f.Mat.Close()
	}
}
