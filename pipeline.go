package hazardwatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Annotator draws merged detections and a timestamp onto a copy of a frame.
// Implementations must not modify the input frame, callers may rely on the
// original pixels for further processing. The returned Mat is owned by the
// caller.
type Annotator interface {
	Annotate(frame *Frame, detections []Detection) (gocv.Mat, error)
}

// FrameWriter receives annotated frames, typically a video encoder.
type FrameWriter interface {
	Write(img gocv.Mat) error
}

// SessionOptions wires the collaborators of an analysis session.
type SessionOptions struct {
	// Model is the detection source adapter. May be nil to run on
	// heuristics alone.
	Model Detector
	// Heuristics is the heuristic detector set. Config.Heuristics selects
	// which of these are active.
	Heuristics []Detector
	// AlertSink receives alert events. May be nil.
	AlertSink AlertSink
	// Annotator and Output enable the annotated video path. Both must be
	// set for frames to be annotated. With more than one worker annotated
	// frames are written in completion order.
	Annotator Annotator
	Output    FrameWriter
	// OutputVideoPath is recorded on the result as the reference to the
	// annotated output video
	OutputVideoPath string
	// Logger for pipeline events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Session drives one analysis session end to end: frames submitted by the
// producer pass through the detectors, the merger, and fan out to the
// aggregator, the alert evaluator and the annotator. Workers consume from a
// bounded queue; when the producer outpaces them the oldest queued frame is
// dropped rather than blocking, an explicit real time degradation policy.
type Session struct {
	cfg        Config
	model      Detector
	heuristics []Detector
	agg        *Aggregator
	eval       *Evaluator
	annotator  Annotator
	output     FrameWriter
	outputPath string
	log        *slog.Logger

	queue chan *Frame
	wg    sync.WaitGroup
	ctx   context.Context

	mu      sync.Mutex
	frames  []FrameResult
	started time.Time
	running bool
	closed  bool

	processed          atomic.Int64
	dropped            atomic.Int64
	sourceFailures     atomic.Int64
	heuristicFailures  atomic.Int64
	annotationFailures atomic.Int64
}

// NewSession creates a Session with the given configuration and
// collaborators. An invalid configuration is fatal here, before any frame is
// processed.
func NewSession(cfg Config, opts SessionOptions) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger

	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		cfg:        cfg,
		model:      opts.Model,
		heuristics: activeHeuristics(opts.Heuristics, cfg.Heuristics),
		agg:        NewAggregator(cfg.HighConfidence),
		eval: NewEvaluator(cfg.AlertThreshold, cfg.AlertCooldown,
			cfg.RealTimeAlerts, opts.AlertSink),
		annotator:  opts.Annotator,
		output:     opts.Output,
		outputPath: opts.OutputVideoPath,
		log:        logger,
		queue:      make(chan *Frame, cfg.QueueCapacity),
	}

	return s, nil
}

// activeHeuristics filters the supplied detectors down to the configured
// active set. An empty active list keeps them all.
func activeHeuristics(detectors []Detector, active []string) []Detector {

	if len(active) == 0 {
		return detectors
	}

	names := make(map[string]bool, len(active))

	for _, name := range active {
		names[name] = true
	}

	var out []Detector

	for _, d := range detectors {
		if names[d.Name()] {
			out = append(out, d)
		}
	}

	return out
}

// Start launches the pipeline workers. The context carries the session level
// cancellation signal: once it is cancelled no new frames are accepted,
// in-flight frames finish, and Finish returns a result covering only frames
// fully processed before cancellation.
func (s *Session) Start(ctx context.Context) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.closed {
		return errors.New("session already started")
	}

	s.running = true
	s.started = time.Now()
	s.ctx = ctx

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.log.Debug("session started",
		"workers", s.cfg.Workers, "queue_capacity", s.cfg.QueueCapacity)

	return nil
}

// Submit hands a frame to the pipeline and reports whether it was accepted.
// If the queue is full the oldest queued frame is dropped to make room, so
// Submit never blocks on slow workers. Frames are rejected and released once
// the session is closed or its context cancelled.
func (s *Session) Submit(frame *Frame) bool {

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.closed || s.ctx.Err() != nil {
		frame.Release()
		return false
	}

	for {
		select {
		case s.queue <- frame:
			return true
		default:
		}

		// queue full, drop the oldest queued frame to make room
		select {
		case old := <-s.queue:
			s.dropped.Add(1)
			s.log.Debug("frame dropped under backpressure", "frame", old.Index)
			old.Release()
		default:
			// a worker drained the queue between the two selects
		}
	}
}

// Finish closes the session and returns the finalized result. In-flight
// frames are completed first; frames still queued after cancellation are
// released unprocessed and counted as dropped. The returned result is
// immutable.
func (s *Session) Finish() *AnalysisResult {

	s.mu.Lock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	s.mu.Unlock()

	s.wg.Wait()

	// cancellation can leave accepted frames in the closed queue
	for frame := range s.queue {
		s.dropped.Add(1)
		frame.Release()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// retained results are reported in frame index order, not completion
	// order, so output is deterministic under concurrency
	sort.Slice(s.frames, func(a, b int) bool {
		return s.frames[a].Index < s.frames[b].Index
	})

	classes := s.agg.Summary()

	summary := Summary{Classes: classes}

	for _, cs := range classes {
		summary.TotalDetections += cs.Count
		summary.HighConfidenceDetections += cs.HighConfidenceCount
	}

	end := time.Now()

	result := &AnalysisResult{
		Start:              s.started,
		End:                end,
		Elapsed:            end.Sub(s.started),
		Frames:             s.frames,
		Summary:            summary,
		FramesProcessed:    s.processed.Load(),
		FramesDropped:      s.dropped.Load(),
		SourceFailures:     s.sourceFailures.Load(),
		HeuristicFailures:  s.heuristicFailures.Load(),
		AnnotationFailures: s.annotationFailures.Load(),
		OutputVideo:        s.outputPath,
	}

	s.log.Info("session finished",
		"frames_processed", result.FramesProcessed,
		"frames_dropped", result.FramesDropped,
		"detections", summary.TotalDetections,
		"elapsed", result.Elapsed)

	return result
}

// Run drives a full session from a frame channel: it starts the workers,
// submits every frame received until the channel closes or the context is
// cancelled, then finalizes. On cancellation the result reflects the frames
// fully processed before the cancellation and the context error is returned
// alongside it.
func (s *Session) Run(ctx context.Context, frames <-chan *Frame) (*AnalysisResult, error) {

	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return s.Finish(), ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				return s.Finish(), nil
			}
			s.Submit(frame)
		}
	}
}

// worker consumes frames from the queue and runs the full per frame pipeline
// on each, one frame to completion before taking the next.
func (s *Session) worker(ctx context.Context) {

	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-s.queue:
			if !ok {
				return
			}
			s.process(ctx, frame)
		}
	}
}

// process runs detection, merging, annotation, aggregation and alert
// evaluation for one frame. Detector failures are recovered locally, a
// single bad frame never ends the session.
func (s *Session) process(ctx context.Context, frame *Frame) {

	defer frame.Release()

	begin := time.Now()

	var raw []RawDetection

	if s.model != nil {

		dets, err := s.detectModel(ctx, frame)

		if err != nil {
			s.sourceFailures.Add(1)
			s.log.Warn("detection source failed",
				"frame", frame.Index, "error", err)
		}

		raw = append(raw, dets...)
	}

	for _, h := range s.heuristics {

		dets, err := h.Detect(ctx, frame)

		if err != nil {
			s.heuristicFailures.Add(1)
			s.log.Warn("heuristic detector failed", "detector", h.Name(),
				"frame", frame.Index,
				"error", &HeuristicError{Detector: h.Name(), Frame: frame.Index, Err: err})
			continue
		}

		raw = append(raw, dets...)
	}

	merged := MergeDetections(raw, s.cfg.MergeIoU, s.cfg.MinConfidence)

	// annotation is best effort and must not affect the other consumers
	if s.annotator != nil && s.output != nil {
		s.annotate(frame, merged)
	}

	result := FrameResult{
		Index:      frame.Index,
		Timestamp:  frame.Timestamp,
		Detections: merged,
		Latency:    time.Since(begin),
	}

	s.agg.Fold(merged)
	s.eval.Evaluate(frame.Index, frame.Timestamp, merged)
	s.retain(result)
	s.processed.Add(1)
}

// detectModel invokes the detection source adapter under the per frame
// timeout. A call that exceeds the timeout is abandoned and reported as a
// detection source failure; the abandoned call holds its own frame reference
// so the pixel buffer stays valid until it returns.
func (s *Session) detectModel(ctx context.Context, frame *Frame) ([]RawDetection, error) {

	tctx, cancel := context.WithTimeout(ctx, s.cfg.DetectTimeout)
	defer cancel()

	type scoreResult struct {
		dets []RawDetection
		err  error
	}

	ch := make(chan scoreResult, 1)

	frame.Retain()

	go func() {
		defer frame.Release()
		dets, err := s.model.Detect(tctx, frame)
		ch <- scoreResult{dets: dets, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &DetectionSourceError{Frame: frame.Index, Err: res.err}
		}
		return res.dets, nil

	case <-tctx.Done():
		return nil, &DetectionSourceError{Frame: frame.Index, Err: tctx.Err()}
	}
}

// annotate draws the detections onto a copy of the frame and writes it to
// the output sink. Failures are logged and counted, nothing more.
func (s *Session) annotate(frame *Frame, detections []Detection) {

	img, err := s.annotator.Annotate(frame, detections)

	if err != nil {
		s.annotationFailures.Add(1)
		s.log.Warn("annotation failed", "frame", frame.Index,
			"error", &AnnotationError{Frame: frame.Index, Err: err})
		return
	}

	defer img.Close()

	if err := s.output.Write(img); err != nil {
		s.annotationFailures.Add(1)
		s.log.Warn("annotated frame write failed",
			"frame", frame.Index, "error", err)
	}
}

// retain appends a frame result for the final report, up to the configured
// cap. Frames past the cap still feed the summary statistics.
func (s *Session) retain(result FrameResult) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxRetainedResults > 0 && len(s.frames) >= s.cfg.MaxRetainedResults {
		return
	}

	s.frames = append(s.frames, result)
}
