package hazardwatch

import (
	"fmt"
	"sync"
	"time"
)

// AlertEvent is a single hazard alert emitted to the alert sink.
type AlertEvent struct {
	Class HazardClass `json:"class"`
	// Confidence of the detection that triggered the alert
	Confidence float32 `json:"confidence"`
	// FrameIndex and Timestamp identify the triggering frame
	FrameIndex int64     `json:"frame"`
	Timestamp  time.Time `json:"timestamp"`
	// Summary is a human readable description of the alert
	Summary string `json:"summary"`
}

// AlertSink receives alert events. Delivery is one way fire and forget: the
// pipeline does not await or retry delivery.
type AlertSink interface {
	Publish(event AlertEvent)
}

// SinkFunc adapts a function to the AlertSink interface.
type SinkFunc func(event AlertEvent)

func (f SinkFunc) Publish(event AlertEvent) {
	f(event)
}

// alertPhase is the debounce state of one hazard class.
type alertPhase int

const (
	phaseIdle alertPhase = iota
	phaseCooldown
)

// alertState tracks the debounce phase and last alert time of one class.
type alertState struct {
	phase     alertPhase
	lastAlert time.Time
}

// Evaluator decides when merged detections become alerts. Each hazard class
// holds an independent debounce state, so a persisting fire never suppresses
// a new smoke alert. The first qualifying detection of a class always alerts
// immediately; further detections of that class are suppressed until the
// cooldown elapses. Cooldown expiry is checked by later detections, there is
// no background timer.
//
// Safe for concurrent use by multiple pipeline workers.
type Evaluator struct {
	mu        sync.Mutex
	threshold float32
	cooldown  time.Duration
	realTime  bool
	sink      AlertSink
	states    map[HazardClass]*alertState
}

// NewEvaluator creates an alert Evaluator. When realTime is false the
// evaluator still updates its per class state but never emits events. A nil
// sink also suppresses emission.
func NewEvaluator(threshold float32, cooldown time.Duration, realTime bool,
	sink AlertSink) *Evaluator {

	return &Evaluator{
		threshold: threshold,
		cooldown:  cooldown,
		realTime:  realTime,
		sink:      sink,
		states:    make(map[HazardClass]*alertState),
	}
}

// Evaluate runs the debounce state machine over the merged detections of one
// frame. now is the frame timestamp, which keeps alert timing aligned with
// the video rather than wall clock processing speed.
func (e *Evaluator) Evaluate(frameIndex int64, now time.Time, detections []Detection) {

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, det := range detections {

		state := e.states[det.Class]

		if state == nil {
			state = &alertState{}
			e.states[det.Class] = state
		}

		// a detection arriving after the cooldown elapsed flips the class
		// back to idle
		if state.phase == phaseCooldown && now.Sub(state.lastAlert) >= e.cooldown {
			state.phase = phaseIdle
		}

		if state.phase != phaseIdle || det.Confidence < e.threshold {
			continue
		}

		state.phase = phaseCooldown
		state.lastAlert = now

		if !e.realTime || e.sink == nil {
			continue
		}

		e.sink.Publish(AlertEvent{
			Class:      det.Class,
			Confidence: det.Confidence,
			FrameIndex: frameIndex,
			Timestamp:  now,
			Summary: fmt.Sprintf("hazard alert: %s detected with confidence %.2f at frame %d",
				det.Class, det.Confidence, frameIndex),
		})
	}
}
