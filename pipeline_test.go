package hazardwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// stubDetector returns canned detections built from the frame index.
type stubDetector struct {
	name string
	fn   func(frame *Frame) []RawDetection
	err  error
}

func (d *stubDetector) Name() string {
	return d.name
}

func (d *stubDetector) Detect(ctx context.Context, frame *Frame) ([]RawDetection, error) {

	if d.err != nil {
		return nil, d.err
	}

	if d.fn == nil {
		return nil, nil
	}

	return d.fn(frame), nil
}

// gatedDetector blocks each Detect call until released, to let tests hold a
// worker busy on a chosen frame.
type gatedDetector struct {
	entered chan int64
	release chan struct{}
}

func (d *gatedDetector) Name() string {
	return "gated"
}

func (d *gatedDetector) Detect(ctx context.Context, frame *Frame) ([]RawDetection, error) {
	d.entered <- frame.Index
	<-d.release
	return nil, nil
}

// blockingModel never returns until the per frame timeout cancels it.
type blockingModel struct{}

func (blockingModel) Name() string {
	return SourceModel
}

func (blockingModel) Detect(ctx context.Context, frame *Frame) ([]RawDetection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// countWriter records how many annotated frames were written.
type countWriter struct {
	mu sync.Mutex
	n  int
}

func (w *countWriter) Write(img gocv.Mat) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n++
	return nil
}

// stubAnnotator returns an empty image, or fails.
type stubAnnotator struct {
	err error
}

func (a *stubAnnotator) Annotate(frame *Frame, detections []Detection) (gocv.Mat, error) {

	if a.err != nil {
		return gocv.Mat{}, a.err
	}

	return gocv.NewMat(), nil
}

func testFrame(index int64, at time.Time) *Frame {
	return NewFrame(gocv.NewMat(), index, at)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AlertCooldown = 5 * time.Second
	return cfg
}

// TestSessionEndToEnd runs one frame through model and heuristic detectors
// seeing the same oil leak, checking the merged result, summary, alert and
// annotated output.
func TestSessionEndToEnd(t *testing.T) {

	model := &stubDetector{
		name: SourceModel,
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: OilLeak, Confidence: 0.9,
				Box: Box{10, 10, 50, 50}, Source: SourceModel,
			}}
		},
	}

	heuristic := &stubDetector{
		name: "oil_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: OilLeak, Confidence: 0.6,
				Box: Box{12, 11, 49, 51}, Source: "oil_color",
			}}
		},
	}

	sink := &collectSink{}
	writer := &countWriter{}

	session, err := NewSession(testConfig(), SessionOptions{
		Model:      model,
		Heuristics: []Detector{heuristic},
		AlertSink:  sink,
		Annotator:  &stubAnnotator{},
		Output:     writer,
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !session.Submit(testFrame(1, time.Now())) {
		t.Fatal("frame rejected")
	}

	result := session.Finish()

	if result.FramesProcessed != 1 {
		t.Fatalf("frames processed = %d, want 1", result.FramesProcessed)
	}

	if len(result.Frames) != 1 || len(result.Frames[0].Detections) != 1 {
		t.Fatalf("frames = %+v, want one frame with one merged detection", result.Frames)
	}

	det := result.Frames[0].Detections[0]

	if det.Confidence != 0.9 || len(det.Sources) != 2 {
		t.Errorf("detection = %+v, want confidence 0.9 with both sources", det)
	}

	if result.Summary.TotalDetections != 1 {
		t.Errorf("total detections = %d, want 1", result.Summary.TotalDetections)
	}

	// 0.9 is above the alert threshold, the first qualifying frame alerts
	if len(sink.events) != 1 || sink.events[0].Class != OilLeak {
		t.Errorf("alerts = %+v, want one oil_leak alert", sink.events)
	}

	if writer.n != 1 {
		t.Errorf("frames written = %d, want 1", writer.n)
	}
}

// TestSessionDropOldest fills the queue faster than a held worker drains it:
// the oldest queued frame is dropped and the retained results show a gap,
// never a duplicate, never out of order indices.
func TestSessionDropOldest(t *testing.T) {

	gate := &gatedDetector{
		entered: make(chan int64),
		release: make(chan struct{}),
	}

	cfg := testConfig()
	cfg.QueueCapacity = 2

	session, err := NewSession(cfg, SessionOptions{
		Heuristics: []Detector{gate},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	base := time.Now()

	session.Submit(testFrame(1, base))

	// wait for the worker to hold frame 1, so the queue state below is
	// deterministic
	<-gate.entered

	session.Submit(testFrame(2, base))
	session.Submit(testFrame(3, base))

	// queue is full, this drops frame 2
	session.Submit(testFrame(4, base))

	close(gate.release)

	done := make(chan struct{})

	go func() {
		defer close(done)
		for range gate.entered {
		}
	}()

	result := session.Finish()

	close(gate.entered)
	<-done

	if result.FramesDropped != 1 {
		t.Errorf("frames dropped = %d, want 1", result.FramesDropped)
	}

	if result.FramesProcessed != 3 {
		t.Errorf("frames processed = %d, want 3", result.FramesProcessed)
	}

	want := []int64{1, 3, 4}

	if len(result.Frames) != len(want) {
		t.Fatalf("retained %d frames, want %d", len(result.Frames), len(want))
	}

	for i, fr := range result.Frames {
		if fr.Index != want[i] {
			t.Errorf("frame %d index = %d, want %d", i, fr.Index, want[i])
		}
	}
}

// TestSessionOrderedUnderConcurrency retains results in frame index order
// even with several workers completing out of order.
func TestSessionOrderedUnderConcurrency(t *testing.T) {

	detector := &stubDetector{
		name: "oil_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: OilLeak, Confidence: 0.5,
				Box: Box{0, 0, 10, 10}, Source: "oil_color",
			}}
		},
	}

	cfg := testConfig()
	cfg.Workers = 4
	cfg.QueueCapacity = 64

	session, err := NewSession(cfg, SessionOptions{
		Heuristics: []Detector{detector},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	const frames = 50

	for i := 1; i <= frames; i++ {
		session.Submit(testFrame(int64(i), time.Now()))
	}

	result := session.Finish()

	if result.FramesProcessed+result.FramesDropped != frames {
		t.Fatalf("processed %d + dropped %d, want %d total",
			result.FramesProcessed, result.FramesDropped, frames)
	}

	last := int64(0)

	for _, fr := range result.Frames {
		if fr.Index <= last {
			t.Fatalf("index %d after %d, want strictly increasing", fr.Index, last)
		}
		last = fr.Index
	}
}

// TestSessionCancellation cancels mid-session: in-flight processing
// completes, no new frames are accepted, and the result reflects only fully
// processed frames.
func TestSessionCancellation(t *testing.T) {

	gate := &gatedDetector{
		entered: make(chan int64, 8),
		release: make(chan struct{}),
	}

	session, err := NewSession(testConfig(), SessionOptions{
		Heuristics: []Detector{gate},
	})

	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := session.Start(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Now()

	session.Submit(testFrame(1, base))

	<-gate.entered

	session.Submit(testFrame(2, base))

	cancel()
	close(gate.release)

	if session.Submit(testFrame(3, base)) {
		t.Error("frame accepted after cancellation")
	}

	result := session.Finish()

	if result.FramesProcessed < 1 {
		t.Errorf("frames processed = %d, want at least the in-flight frame",
			result.FramesProcessed)
	}

	if result.FramesProcessed+result.FramesDropped != 2 {
		t.Errorf("processed %d + dropped %d, want 2 accepted frames accounted for",
			result.FramesProcessed, result.FramesDropped)
	}

	if len(result.Frames) == 0 || result.Frames[0].Index != 1 {
		t.Errorf("frames = %+v, want frame 1 completed", result.Frames)
	}
}

// TestSessionModelTimeout checks an unresponsive model is abandoned after
// the per frame timeout, counted as a source failure, while heuristic
// detections still flow.
func TestSessionModelTimeout(t *testing.T) {

	heuristic := &stubDetector{
		name: "fire_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: Fire, Confidence: 0.9,
				Box: Box{0, 0, 10, 10}, Source: "fire_color",
			}}
		},
	}

	cfg := testConfig()
	cfg.DetectTimeout = 20 * time.Millisecond

	session, err := NewSession(cfg, SessionOptions{
		Model:      blockingModel{},
		Heuristics: []Detector{heuristic},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	session.Submit(testFrame(1, time.Now()))

	result := session.Finish()

	if result.SourceFailures != 1 {
		t.Errorf("source failures = %d, want 1", result.SourceFailures)
	}

	if result.Summary.Classes[Fire].Count != 1 {
		t.Errorf("fire count = %d, want 1 from the heuristic", result.Summary.Classes[Fire].Count)
	}
}

// TestSessionHeuristicFailure checks one failing heuristic is skipped for
// the frame without affecting the others.
func TestSessionHeuristicFailure(t *testing.T) {

	failing := &stubDetector{
		name: "oil_color",
		err:  errors.New("bad frame format"),
	}

	working := &stubDetector{
		name: "fire_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: Fire, Confidence: 0.5,
				Box: Box{0, 0, 10, 10}, Source: "fire_color",
			}}
		},
	}

	session, err := NewSession(testConfig(), SessionOptions{
		Heuristics: []Detector{failing, working},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	session.Submit(testFrame(1, time.Now()))

	result := session.Finish()

	if result.HeuristicFailures != 1 {
		t.Errorf("heuristic failures = %d, want 1", result.HeuristicFailures)
	}

	if result.Summary.Classes[Fire].Count != 1 {
		t.Errorf("fire count = %d, want 1", result.Summary.Classes[Fire].Count)
	}
}

// TestSessionAnnotationFailure checks annotation failures are counted and
// do not affect detection results.
func TestSessionAnnotationFailure(t *testing.T) {

	detector := &stubDetector{
		name: "fire_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: Fire, Confidence: 0.5,
				Box: Box{0, 0, 10, 10}, Source: "fire_color",
			}}
		},
	}

	writer := &countWriter{}

	session, err := NewSession(testConfig(), SessionOptions{
		Heuristics: []Detector{detector},
		Annotator:  &stubAnnotator{err: errors.New("unsupported format")},
		Output:     writer,
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	session.Submit(testFrame(1, time.Now()))

	result := session.Finish()

	if result.AnnotationFailures != 1 {
		t.Errorf("annotation failures = %d, want 1", result.AnnotationFailures)
	}

	if writer.n != 0 {
		t.Errorf("frames written = %d, want 0", writer.n)
	}

	if result.Summary.Classes[Fire].Count != 1 {
		t.Errorf("fire count = %d, want 1", result.Summary.Classes[Fire].Count)
	}
}

// TestSessionRetentionCap keeps only the configured number of frame results
// while the summary still covers every frame.
func TestSessionRetentionCap(t *testing.T) {

	detector := &stubDetector{
		name: "fire_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: Fire, Confidence: 0.5,
				Box: Box{0, 0, 10, 10}, Source: "fire_color",
			}}
		},
	}

	cfg := testConfig()
	cfg.MaxRetainedResults = 2

	session, err := NewSession(cfg, SessionOptions{
		Heuristics: []Detector{detector},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		session.Submit(testFrame(int64(i), time.Now()))
	}

	result := session.Finish()

	if len(result.Frames) != 2 {
		t.Errorf("retained %d frames, want 2", len(result.Frames))
	}

	if result.Summary.Classes[Fire].Count != 5 {
		t.Errorf("fire count = %d, want 5 (cap only limits retained results)",
			result.Summary.Classes[Fire].Count)
	}
}

// TestSessionHeuristicFilter activates only the configured subset of the
// supplied heuristic detectors.
func TestSessionHeuristicFilter(t *testing.T) {

	oil := &stubDetector{
		name: "oil_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: OilLeak, Confidence: 0.5,
				Box: Box{0, 0, 10, 10}, Source: "oil_color",
			}}
		},
	}

	fire := &stubDetector{
		name: "fire_color",
		fn: func(frame *Frame) []RawDetection {
			return []RawDetection{{
				Class: Fire, Confidence: 0.5,
				Box: Box{20, 20, 30, 30}, Source: "fire_color",
			}}
		},
	}

	cfg := testConfig()
	cfg.Heuristics = []string{"fire_color"}

	session, err := NewSession(cfg, SessionOptions{
		Heuristics: []Detector{oil, fire},
	})

	if err != nil {
		t.Fatal(err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	session.Submit(testFrame(1, time.Now()))

	result := session.Finish()

	if result.Summary.Classes[OilLeak].Count != 0 {
		t.Errorf("oil_leak count = %d, want 0 (detector not active)",
			result.Summary.Classes[OilLeak].Count)
	}

	if result.Summary.Classes[Fire].Count != 1 {
		t.Errorf("fire count = %d, want 1", result.Summary.Classes[Fire].Count)
	}
}

func TestNewSessionInvalidConfig(t *testing.T) {

	cfg := testConfig()
	cfg.QueueCapacity = 0

	_, err := NewSession(cfg, SessionOptions{})

	var cfgErr *ConfigError

	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError", err)
	}

	if cfgErr.Field != "QueueCapacity" {
		t.Errorf("field = %s, want QueueCapacity", cfgErr.Field)
	}
}
