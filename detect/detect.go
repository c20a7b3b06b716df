/*
Package detect provides the detection sources consumed by the hazardwatch
pipeline: an adapter wrapping an opaque object detection model, and a set of
rule based heuristic detectors using color and texture analysis.

Heuristic detectors are stateless per invocation and hold no shared mutable
state, so the pipeline may invoke them in any order and concurrently across
frames without affecting output.
*/
package detect

import (
	hazardwatch "github.com/seefeld/go-hazardwatch"
)

// Heuristics returns the full heuristic detector set. The active subset is
// selected by the session configuration.
func Heuristics() []hazardwatch.Detector {
	return []hazardwatch.Detector{
		&OilLeakDetector{},
		&FireDetector{},
		&SmokeDetector{},
	}
}

// confidenceFromArea scales a contour area into a confidence score capped at
// max. Larger regions score higher up to the cap.
func confidenceFromArea(area, scale, max float32) float32 {

	conf := area / scale

	if conf > max {
		return max
	}

	return conf
}
