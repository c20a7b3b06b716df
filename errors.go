package hazardwatch

import "fmt"

// ConfigError reports an invalid configuration value. It is fatal at session
// creation, before any frame is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// DetectionSourceError reports a failed or timed out model call on a single
// frame. It is recovered locally as an empty detection list and does not end
// the session.
type DetectionSourceError struct {
	Frame int64
	Err   error
}

func (e *DetectionSourceError) Error() string {
	return fmt.Sprintf("detection source failed on frame %d: %v", e.Frame, e.Err)
}

func (e *DetectionSourceError) Unwrap() error {
	return e.Err
}

// HeuristicError reports a heuristic detector failure on a single frame. The
// detector contributes nothing for that frame and the session continues.
type HeuristicError struct {
	Detector string
	Frame    int64
	Err      error
}

func (e *HeuristicError) Error() string {
	return fmt.Sprintf("heuristic %s failed on frame %d: %v", e.Detector, e.Frame, e.Err)
}

func (e *HeuristicError) Unwrap() error {
	return e.Err
}

// AnnotationError reports a best effort annotation failure. The frame simply
// yields no annotated output, detection and alerting proceed unaffected.
type AnnotationError struct {
	Frame int64
	Err   error
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("annotation failed on frame %d: %v", e.Frame, e.Err)
}

func (e *AnnotationError) Unwrap() error {
	return e.Err
}
