// Command detect runs a detection model over a single image and prints the boxes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nvr-ai/roadsigns/config"
	"github.com/nvr-ai/roadsigns/detector"
	"github.com/nvr-ai/roadsigns/images"
	"github.com/nvr-ai/roadsigns/inference"
	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		imagePath  string
		modelName  string
		modelPath  string
		confidence float64
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (defaults are used when empty)")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&modelName, "model", "", "Model name override, e.g. yolov8n-float32")
	flag.StringVar(&modelPath, "model-path", "", "Model file override")
	flag.Float64Var(&confidence, "confidence", 0, "Confidence threshold override")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	logger, err := newLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, runArgs{
		configPath: configPath,
		imagePath:  imagePath,
		modelName:  modelName,
		modelPath:  modelPath,
		confidence: float32(confidence),
	}, logger); err != nil {
		logger.Fatalw("detection failed", "error", err)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

type runArgs struct {
	configPath string
	imagePath  string
	modelName  string
	modelPath  string
	confidence float32
}

// loadConfig reads the config file, applies flag overrides and validates the result.
func loadConfig(args runArgs) (config.Config, error) {
	cfg := config.Default()
	if args.configPath != "" {
		loaded, err := config.Load(args.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if args.modelName != "" {
		cfg.Model.Name = model.Name(args.modelName)
	}
	if args.modelPath != "" {
		cfg.Model.Path = args.modelPath
	}
	if args.confidence != 0 {
		cfg.ConfidenceThreshold = args.confidence
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg.ResolveModelPath()
}

func run(ctx context.Context, args runArgs, logger *zap.SugaredLogger) error {
	if args.imagePath == "" {
		return errors.New("-image is required")
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	src, img, err := images.Load(args.imagePath)
	if err != nil {
		return err
	}
	logger.Debugw("loaded image", "path", args.imagePath, "format", src.Format, "width", src.Width, "height", src.Height)

	if cfg.Family() != model.ModelFamilyYOLO {
		return errors.Wrapf(model.ErrUnsupportedModel,
			"%s needs a task-library runtime, which this command does not link", cfg.Model.Name)
	}

	session, err := inference.NewSession(cfg.SessionArgs())
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnw("failed to close session", "error", err)
		}
	}()

	d, err := detector.New(cfg, session, nil, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	boxes, err := d.Detect(ctx, img)
	if err != nil {
		return err
	}
	logger.Infow("detected objects", "image", args.imagePath, "boxes", len(boxes), "elapsed", time.Since(start))

	for _, b := range boxes {
		fmt.Println(b.String())
	}
	return nil
}
