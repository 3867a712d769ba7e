// Package benchmark - Throughput and memory measurement of a detector over an image corpus.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/roadsigns/detector"
	"github.com/nvr-ai/roadsigns/images"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Resolution is the frame size a scenario feeds to the detector.
type Resolution struct {
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Name   string `json:"name" yaml:"name"`
}

// CommonResolutions are camera frame sizes worth comparing.
var CommonResolutions = []Resolution{
	{Width: 640, Height: 480, Name: "VGA"},
	{Width: 1280, Height: 720, Name: "HD 720p"},
	{Width: 1920, Height: 1080, Name: "Full HD 1080p"},
	{Width: 3840, Height: 2160, Name: "4K UHD"},
}

// Scenario defines one benchmark run.
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// Resolution resizes corpus frames before detection. The zero value keeps them as loaded.
	Resolution Resolution `json:"resolution" yaml:"resolution"`
	Iterations int        `json:"iterations" yaml:"iterations"`
	WarmupRuns int        `json:"warmup_runs" yaml:"warmup_runs"`
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder with 100 iterations and 10 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{scenario: Scenario{Name: name, Iterations: 100, WarmupRuns: 10}}
}

// WithResolution sets the frame resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{Width: width, Height: height, Name: fmt.Sprintf("%dx%d", width, height)}
	return sb
}

// WithIterations sets the number of measured iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured warmup runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ResolutionScenarios returns one scenario per resolution.
func ResolutionScenarios(resolutions []Resolution, iterations int) []Scenario {
	scenarios := make([]Scenario, 0, len(resolutions))
	for _, r := range resolutions {
		s := NewScenarioBuilder("resolution_"+r.Name).WithIterations(iterations).WithWarmupRuns(iterations / 10).Build()
		s.Resolution = r
		scenarios = append(scenarios, s)
	}
	return scenarios
}

// PerformanceMetrics captures the result of one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageLatency  time.Duration `json:"average_latency"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	NumCPU          int           `json:"num_cpu"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// Suite runs scenarios against one detector.
type Suite struct {
	detector detector.Detector
	corpus   []image.Image
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	Detector detector.Detector
	Corpus   []images.File
	Logger   *zap.SugaredLogger
}

// NewSuite decodes the corpus and creates a suite.
//
// Arguments:
//   - args: The detector, corpus and logger.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if the corpus is empty or a frame cannot be decoded.
func NewSuite(args NewSuiteArgs) (*Suite, error) {
	if args.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if len(args.Corpus) == 0 {
		return nil, errors.New("corpus is empty")
	}
	corpus := make([]image.Image, 0, len(args.Corpus))
	for i := range args.Corpus {
		img, err := args.Corpus[i].Image.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %s", args.Corpus[i].Path)
		}
		corpus = append(corpus, img)
	}
	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Suite{
		detector: args.Detector,
		corpus:   corpus,
		logger:   logger,
	}, nil
}

// AddScenario adds a scenario to the suite.
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// frames returns the corpus at the scenario's resolution.
func (bs *Suite) frames(r Resolution) []image.Image {
	if r.Width <= 0 || r.Height <= 0 {
		return bs.corpus
	}
	out := make([]image.Image, len(bs.corpus))
	for i, img := range bs.corpus {
		out[i] = resize.Resize(uint(r.Width), uint(r.Height), img, resize.Bilinear)
	}
	return out
}

// RunScenario executes a single scenario and records its metrics.
//
// Detection errors are counted in ErrorRate rather than aborting the run; a
// cancelled context stops the run and returns its error.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations=%d must be positive", scenario.Name, scenario.Iterations)
	}
	frames := bs.frames(scenario.Resolution)

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := bs.detector.Detect(ctx, frames[i%len(frames)]); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	start := time.Now()
	detections, failures := 0, 0
	for i := 0; i < scenario.Iterations; i++ {
		boxes, err := bs.detector.Detect(ctx, frames[i%len(frames)])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			bs.logger.Debugw("detection failed", "scenario", scenario.Name, "iteration", i, "error", err)
			continue
		}
		detections += len(boxes)
	}
	total := time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       start,
		TotalDuration:   total,
		AverageLatency:  total / time.Duration(scenario.Iterations),
		FramesPerSecond: float64(scenario.Iterations) / total.Seconds(),
		NumCPU:          runtime.NumCPU(),
		DetectionCount:  detections,
		ErrorRate:       float64(failures) / float64(scenario.Iterations),
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
		},
	}

	bs.mu.Lock()
	bs.results = append(bs.results, *metrics)
	bs.mu.Unlock()

	bs.logger.Infow("scenario completed",
		"scenario", scenario.Name,
		"fps", metrics.FramesPerSecond,
		"avg_latency", metrics.AverageLatency,
		"detections", detections,
		"error_rate", metrics.ErrorRate)
	return metrics, nil
}

// RunAllScenarios runs every added scenario in order.
func (bs *Suite) RunAllScenarios(ctx context.Context) ([]PerformanceMetrics, error) {
	bs.mu.RLock()
	scenarios := append([]Scenario(nil), bs.scenarios...)
	bs.mu.RUnlock()

	results := make([]PerformanceMetrics, 0, len(scenarios))
	for _, scenario := range scenarios {
		m, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
		}
		results = append(results, *m)
	}
	return results, nil
}

// GetResults returns all recorded results.
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return append([]PerformanceMetrics(nil), bs.results...)
}
