/*
Example analyzing a video file for industrial hazards using the heuristic
detector set, writing an annotated output video and printing the analysis
result as JSON.

Configuration follows the environment, optionally loaded from a .env file:

	CONFIDENCE_THRESHOLD, NMS_THRESHOLD, ALERT_THRESHOLD, ALERT_COOLDOWN,
	HIGH_CONFIDENCE_BOUND, ENABLE_REAL_TIME_ALERTS, FRAME_QUEUE_CAPACITY,
	DETECT_TIMEOUT, WORKERS
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gocv.io/x/gocv"

	hazardwatch "github.com/seefeld/go-hazardwatch"
	"github.com/seefeld/go-hazardwatch/detect"
	"github.com/seefeld/go-hazardwatch/render"
)

func main() {

	vidFile := flag.String("v", "", "Video file to analyze")
	outFile := flag.String("o", "", "Annotated output video file (optional)")
	envFile := flag.String("e", ".env", "Environment file with configuration overrides")
	fontFile := flag.String("f", "", "TTF font for the alert banner overlay (optional)")
	stride := flag.Int("n", 5, "Analyze every Nth frame")
	flag.Parse()

	if *vidFile == "" {
		fmt.Println("Usage: analyze -v <video file> [-o <output file>]")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// missing .env is fine, the environment may be set by the deployment
	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("no env file loaded", "file", *envFile)
	}

	cfg := configFromEnv()

	if err := run(cfg, *vidFile, *outFile, *fontFile, *stride); err != nil {
		slog.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg hazardwatch.Config, vidFile, outFile, fontFile string, stride int) error {

	video, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return fmt.Errorf("error opening video file %s: %w", vidFile, err)
	}

	defer video.Close()

	fps := video.Get(gocv.VideoCaptureFPS)
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))

	opts := hazardwatch.SessionOptions{
		Heuristics: detect.Heuristics(),
		AlertSink: hazardwatch.SinkFunc(func(event hazardwatch.AlertEvent) {
			slog.Warn("HAZARD ALERT", "class", event.Class,
				"confidence", event.Confidence, "frame", event.FrameIndex)
		}),
	}

	// set up the annotated output video path
	if outFile != "" {

		writer, err := gocv.VideoWriterFile(outFile, "mp4v", fps,
			width, height, true)

		if err != nil {
			return fmt.Errorf("error creating output video %s: %w", outFile, err)
		}

		defer writer.Close()

		out := &bannerWriter{writer: writer}

		if fontFile != "" {
			out.ttf, err = render.LoadTTF(fontFile, 28)

			if err != nil {
				return fmt.Errorf("error loading font: %w", err)
			}
		}

		// chain the alert sink so alerts also raise the banner
		sink := opts.AlertSink
		opts.AlertSink = hazardwatch.SinkFunc(func(event hazardwatch.AlertEvent) {
			sink.Publish(event)
			out.raise(event)
		})

		opts.Annotator = render.NewHazardAnnotator()
		opts.Output = out
		opts.OutputVideoPath = outFile
	}

	session, err := hazardwatch.NewSession(cfg, opts)

	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		return err
	}

	img := gocv.NewMat()
	defer img.Close()

	start := time.Now()
	frameIndex := int64(0)

	for video.Read(&img) {

		if img.Empty() {
			continue
		}

		frameIndex++

		// analyze every Nth frame for performance
		if stride > 1 && frameIndex%int64(stride) != 0 {
			continue
		}

		timestamp := start.Add(time.Duration(float64(frameIndex) /
			fps * float64(time.Second)))

		frame := hazardwatch.NewFrame(img.Clone(), frameIndex, timestamp)

		if !session.Submit(frame) {
			break
		}
	}

	result := session.Finish()

	buf, err := json.MarshalIndent(result, "", "  ")

	if err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	fmt.Println(string(buf))
	return nil
}

// bannerWriter writes annotated frames to the output video, overlaying an
// alert banner for a few seconds after each alert fires.
type bannerWriter struct {
	writer *gocv.VideoWriter
	ttf    *render.TTF

	mu    sync.Mutex
	text  string
	until time.Time
}

// raise shows the banner for the given alert.
func (w *bannerWriter) raise(event hazardwatch.AlertEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.text = fmt.Sprintf("ALERT: %s %.2f", event.Class, event.Confidence)
	w.until = time.Now().Add(3 * time.Second)
}

// Write implements hazardwatch.FrameWriter.
func (w *bannerWriter) Write(img gocv.Mat) error {

	w.mu.Lock()
	text := w.text
	active := time.Now().Before(w.until)
	w.mu.Unlock()

	if active && w.ttf != nil {
		clr := color.RGBA{R: 255, G: 0, B: 0, A: 255}

		if err := w.ttf.Draw(&img, text, 10, 70, clr); err != nil {
			slog.Warn("banner render failed", "error", err)
		}
	}

	return w.writer.Write(img)
}

// configFromEnv builds the session configuration from the environment,
// falling back to the defaults for unset values.
func configFromEnv() hazardwatch.Config {

	cfg := hazardwatch.DefaultConfig()

	cfg.MinConfidence = envFloat("CONFIDENCE_THRESHOLD", cfg.MinConfidence)
	cfg.MergeIoU = envFloat("NMS_THRESHOLD", cfg.MergeIoU)
	cfg.AlertThreshold = envFloat("ALERT_THRESHOLD", cfg.AlertThreshold)
	cfg.HighConfidence = envFloat("HIGH_CONFIDENCE_BOUND", cfg.HighConfidence)
	cfg.AlertCooldown = envDuration("ALERT_COOLDOWN", cfg.AlertCooldown)
	cfg.RealTimeAlerts = envBool("ENABLE_REAL_TIME_ALERTS", cfg.RealTimeAlerts)
	cfg.QueueCapacity = envInt("FRAME_QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.DetectTimeout = envDuration("DETECT_TIMEOUT", cfg.DetectTimeout)
	cfg.Workers = envInt("WORKERS", cfg.Workers)

	return cfg
}

func envFloat(key string, fallback float32) float32 {

	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 32); err == nil {
			return float32(f)
		}
	}

	return fallback
}

func envInt(key string, fallback int) int {

	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func envBool(key string, fallback bool) bool {

	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}

	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {

	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return fallback
}
