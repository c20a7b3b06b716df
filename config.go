package hazardwatch

import "time"

const (
	// default confidence threshold below which merged detections are
	// discarded
	DefaultMinConfidence = 0.25
	// default NMS (Non-Maximum Suppression) overlap threshold used when
	// merging detections across sources
	DefaultMergeIoU = 0.45
	// default confidence a detection needs before an alert is raised
	DefaultAlertThreshold = 0.8
	// default bound above which a detection counts as high confidence in
	// the summary statistics
	DefaultHighConfidence = 0.8
	// default minimum time between alerts of the same hazard class
	DefaultAlertCooldown = 30 * time.Second
	// default capacity of the frame queue feeding the workers
	DefaultQueueCapacity = 8
	// default time allowed for a single model call before it is abandoned
	DefaultDetectTimeout = 2 * time.Second
)

// Config holds the tunable parameters of an analysis session.
type Config struct {
	// MinConfidence discards merged detections below this confidence
	MinConfidence float32
	// MergeIoU is the box overlap ratio above which detections of the same
	// class are merged into one
	MergeIoU float32
	// AlertThreshold is the confidence a detection needs to raise an alert
	AlertThreshold float32
	// AlertCooldown suppresses further alerts of a class for this long
	// after one fires
	AlertCooldown time.Duration
	// HighConfidence is the bound used for the high confidence counters in
	// the per class summaries
	HighConfidence float32
	// RealTimeAlerts enables emitting alert events. When disabled the
	// evaluator still tracks alert state but never emits.
	RealTimeAlerts bool
	// Heuristics names the active heuristic detectors. An empty list
	// activates every detector supplied to the session.
	Heuristics []string
	// QueueCapacity is the size of the frame queue. When the queue is full
	// the oldest queued frame is dropped rather than blocking the producer.
	QueueCapacity int
	// DetectTimeout bounds each model call. A call that exceeds it is
	// treated as a detection source failure with no detections.
	DetectTimeout time.Duration
	// Workers is the number of pipeline workers processing frames
	Workers int
	// MaxRetainedResults caps how many per frame results the session keeps
	// for the final report. Zero retains every frame result. Frames past
	// the cap still feed the summary statistics and alerting.
	MaxRetainedResults int
}

// DefaultConfig returns a Config with the default thresholds and a single
// worker, suitable for offline analysis of a video file.
func DefaultConfig() Config {
	return Config{
		MinConfidence:  DefaultMinConfidence,
		MergeIoU:       DefaultMergeIoU,
		AlertThreshold: DefaultAlertThreshold,
		AlertCooldown:  DefaultAlertCooldown,
		HighConfidence: DefaultHighConfidence,
		RealTimeAlerts: true,
		QueueCapacity:  DefaultQueueCapacity,
		DetectTimeout:  DefaultDetectTimeout,
		Workers:        1,
	}
}

// Validate checks the configuration values and returns a ConfigError on the
// first invalid one.
func (c Config) Validate() error {

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return &ConfigError{Field: "MinConfidence", Reason: "must be in [0,1]"}
	}

	if c.MergeIoU <= 0 || c.MergeIoU > 1 {
		return &ConfigError{Field: "MergeIoU", Reason: "must be in (0,1]"}
	}

	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return &ConfigError{Field: "AlertThreshold", Reason: "must be in [0,1]"}
	}

	if c.HighConfidence < 0 || c.HighConfidence > 1 {
		return &ConfigError{Field: "HighConfidence", Reason: "must be in [0,1]"}
	}

	if c.AlertCooldown < 0 {
		return &ConfigError{Field: "AlertCooldown", Reason: "must not be negative"}
	}

	if c.QueueCapacity < 1 {
		return &ConfigError{Field: "QueueCapacity", Reason: "must be at least 1"}
	}

	if c.DetectTimeout <= 0 {
		return &ConfigError{Field: "DetectTimeout", Reason: "must be positive"}
	}

	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: "must be at least 1"}
	}

	if c.MaxRetainedResults < 0 {
		return &ConfigError{Field: "MaxRetainedResults", Reason: "must not be negative"}
	}

	return nil
}
