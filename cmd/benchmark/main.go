// Command benchmark measures detector throughput over a directory of frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nvr-ai/roadsigns/benchmark"
	"github.com/nvr-ai/roadsigns/config"
	"github.com/nvr-ai/roadsigns/detector"
	"github.com/nvr-ai/roadsigns/images"
	"github.com/nvr-ai/roadsigns/inference"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML detector configuration")
		testImages  = flag.String("images", "", "Directory of test frames")
		iterations  = flag.Int("iterations", 100, "Measured iterations per scenario")
		resolutions = flag.Bool("resolutions", false, "Compare common camera resolutions")
		timeout     = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	l, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := l.Sugar()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *configFile, *testImages, *iterations, *resolutions, logger); err != nil {
		logger.Fatalw("benchmark failed", "error", err)
	}
}

func run(ctx context.Context, configFile, testImages string, iterations int, compare bool, logger *zap.SugaredLogger) error {
	if testImages == "" {
		return errors.New("test images directory is required (-images)")
	}

	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg, err := cfg.ResolveModelPath()
	if err != nil {
		return err
	}

	corpus, err := images.LoadDirectory(testImages)
	if err != nil {
		return err
	}
	logger.Infow("loaded corpus", "dir", testImages, "frames", len(corpus))

	session, err := inference.NewSession(cfg.SessionArgs())
	if err != nil {
		return err
	}
	defer session.Close()

	d, err := detector.New(cfg, session, nil, logger)
	if err != nil {
		return err
	}

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Detector: d,
		Corpus:   corpus,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if compare {
		for _, s := range benchmark.ResolutionScenarios(benchmark.CommonResolutions, iterations) {
			suite.AddScenario(s)
		}
	} else {
		suite.AddScenario(benchmark.NewScenarioBuilder(string(cfg.Model.Name)).
			WithIterations(iterations).
			WithWarmupRuns(iterations / 10).
			Build())
	}
	results, err := suite.RunAllScenarios(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-28s %8.2f FPS %10s/frame %6d detections %5.1f%% errors\n",
			r.Scenario.Name, r.FramesPerSecond, r.AverageLatency, r.DetectionCount, r.ErrorRate*100)
	}
	return nil
}
