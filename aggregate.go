package hazardwatch

import "sync"

// ClassSummary is a snapshot of the running statistics for one hazard class.
type ClassSummary struct {
	// Count is the total number of merged detections of this class
	Count int `json:"count"`
	// HighConfidenceCount is the number of detections at or above the
	// configured high confidence bound
	HighConfidenceCount int `json:"high_confidence_count"`
	// MaxConfidence is the strongest confidence seen for this class
	MaxConfidence float32 `json:"max_confidence"`
	// AvgConfidence is the mean confidence over all detections of this
	// class, computed at snapshot time
	AvgConfidence float64 `json:"avg_confidence"`
}

// classStats holds the running values behind a ClassSummary. The average is
// derived from sum and count on read, never stored.
type classStats struct {
	count     int
	highCount int
	max       float32
	sum       float64
}

// Aggregator folds merged detections into per class running summaries. The
// counts and the max confidence only ever grow for the lifetime of a session.
// Safe for concurrent use by multiple pipeline workers.
type Aggregator struct {
	mu             sync.Mutex
	highConfidence float32
	classes        map[HazardClass]*classStats
}

// NewAggregator creates an Aggregator using the given high confidence bound.
func NewAggregator(highConfidence float32) *Aggregator {
	return &Aggregator{
		highConfidence: highConfidence,
		classes:        make(map[HazardClass]*classStats),
	}
}

// Fold updates the class summaries with the merged detections of one frame.
// The Aggregator keeps no per frame history itself.
func (a *Aggregator) Fold(detections []Detection) {

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, det := range detections {

		stats := a.classes[det.Class]

		if stats == nil {
			stats = &classStats{}
			a.classes[det.Class] = stats
		}

		stats.count++

		if det.Confidence >= a.highConfidence {
			stats.highCount++
		}

		if det.Confidence > stats.max {
			stats.max = det.Confidence
		}

		stats.sum += float64(det.Confidence)
	}
}

// Summary returns a snapshot of the per class statistics.
func (a *Aggregator) Summary() map[HazardClass]ClassSummary {

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[HazardClass]ClassSummary, len(a.classes))

	for class, stats := range a.classes {
		out[class] = ClassSummary{
			Count:               stats.count,
			HighConfidenceCount: stats.highCount,
			MaxConfidence:       stats.max,
			AvgConfidence:       stats.sum / float64(stats.count),
		}
	}

	return out
}
