/*
go-hazardwatch analyzes video frames for industrial hazards such as oil
leaks, smoke and fire, and decides when a hazard is worth alerting on.

The pipeline merges detections from an object detection model with
detections from rule based heuristic detectors, folds them into running
per class statistics, and emits debounced alert events so a persisting
hazard does not flood the alert sink.

See example code and usage in the example subdirectory.
*/
package hazardwatch
