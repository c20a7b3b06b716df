package hazardwatch

import "sort"

// MergeDetections merges the raw detections of one frame, gathered from all
// sources, into one Detection per distinct hazard instance. It is a
// Non-Maximum Suppression variant operating across detector sources rather
// than within a single detector's own outputs.
//
// Within each class, detections merge greedily by descending confidence: the
// strongest unmerged detection absorbs every other unmerged detection of the
// same class whose box overlap (IoU) exceeds iouThreshold, recording the
// contributing source tags. The merged confidence is the maximum among
// contributors. Detections below minConfidence are discarded after merging.
//
// Equal confidences keep the order the raw detections were supplied in, so
// output is deterministic for a fixed input.
func MergeDetections(raw []RawDetection, iouThreshold, minConfidence float32) []Detection {

	if len(raw) == 0 {
		return nil
	}

	// sort indices by descending confidence, stable so ties keep input order
	order := make([]int, len(raw))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return raw[order[a]].Confidence > raw[order[b]].Confidence
	})

	merged := make([]bool, len(raw))
	var results []Detection

	for _, i := range order {

		if merged[i] {
			continue
		}

		merged[i] = true

		det := Detection{
			Class:      raw[i].Class,
			Confidence: raw[i].Confidence,
			Box:        raw[i].Box,
			Sources:    []string{raw[i].Source},
			Merged:     1,
		}

		// absorb weaker overlapping detections of the same class
		for _, j := range order {

			if merged[j] || raw[j].Class != raw[i].Class {
				continue
			}

			if raw[i].Box.IoU(raw[j].Box) > iouThreshold {
				merged[j] = true
				det.Merged++
				det.Sources = appendSource(det.Sources, raw[j].Source)
			}
		}

		if det.Confidence >= minConfidence {
			results = append(results, det)
		}
	}

	return results
}

// appendSource records a contributing source tag, once.
func appendSource(sources []string, src string) []string {

	for _, s := range sources {
		if s == src {
			return sources
		}
	}

	return append(sources, src)
}
