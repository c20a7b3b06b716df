package hazardwatch

import "time"

// FrameResult records the merged detections of one analyzed frame. Immutable
// once produced.
type FrameResult struct {
	Index      int64       `json:"frame"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`
	// Latency is the time taken to run the full per frame pipeline
	Latency time.Duration `json:"latency"`
}

// Summary aggregates the whole session's detections.
type Summary struct {
	TotalDetections          int                          `json:"total_detections"`
	HighConfidenceDetections int                          `json:"high_confidence_detections"`
	Classes                  map[HazardClass]ClassSummary `json:"detection_types"`
}

// AnalysisResult is the finalized outcome of one analysis session. It is
// created once at session end and immutable thereafter.
type AnalysisResult struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
	// Elapsed is the total analysis time
	Elapsed time.Duration `json:"analysis_time"`
	// Frames holds the retained per frame results in frame index order.
	// Under backpressure drop or a retention cap this is a sample, the
	// Summary always covers every processed frame.
	Frames  []FrameResult `json:"detections"`
	Summary Summary       `json:"summary"`
	// FramesProcessed and FramesDropped account for every submitted frame
	FramesProcessed int64 `json:"frames_processed"`
	FramesDropped   int64 `json:"frames_dropped"`
	// Failure counts for the session. None of these end a session.
	SourceFailures     int64 `json:"source_failures"`
	HeuristicFailures  int64 `json:"heuristic_failures"`
	AnnotationFailures int64 `json:"annotation_failures"`
	// OutputVideo references the annotated output video, when one was
	// written
	OutputVideo string `json:"processed_video_path,omitempty"`
}
