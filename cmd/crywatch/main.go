// crywatch watches a camera and shows whether the person in front of it is
// crying. Each second it takes a still, uploads it to the detector at
// $DOMEN and shows the verdict on a local dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/crywatch/internal/config"
	"github.com/teslashibe/crywatch/internal/httpc"
	"github.com/teslashibe/crywatch/internal/log"
	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/camera/opencv"
	"github.com/teslashibe/crywatch/pkg/camera/screen"
	"github.com/teslashibe/crywatch/pkg/classifier"
	"github.com/teslashibe/crywatch/pkg/monitor"
	"github.com/teslashibe/crywatch/pkg/web"
)

// applier is a camera backend that can take a new config at runtime.
type applier interface {
	camera.Camera
	Apply(camera.Config) error
}

func main() {
	cfg := parseFlags()
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("crywatch stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the environment and lets flags override it.
func parseFlags() config.Config {
	cfg := config.Load()

	flag.StringVar(&cfg.BaseURL, "domen", cfg.BaseURL, "Classifier base URL (overrides DOMEN)")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Capture interval")
	flag.DurationVar(&cfg.TickTimeout, "tick-timeout", cfg.TickTimeout, "Deadline for one capture and upload")
	flag.StringVar(&cfg.Camera, "camera", cfg.Camera, "Camera backend: opencv, screen")
	flag.StringVar(&cfg.Facing, "facing", cfg.Facing, "Initial lens: back, front")
	flag.StringVar(&cfg.Classifier, "classifier", cfg.Classifier, "Classifier backend: http, openai")
	flag.StringVar(&cfg.Port, "port", cfg.Port, "Dashboard port")
	flag.BoolVar(&cfg.AutoStart, "autostart", cfg.AutoStart, "Start streaming immediately")
	flag.BoolVar(&cfg.PermissionGranted, "grant", cfg.PermissionGranted, "Treat camera permission as granted")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func run(ctx context.Context, cfg config.Config) error {
	base := log.L()

	camCfg := camera.DefaultConfig()
	camCfg.BackDevice, camCfg.FrontDevice = cfg.BackDevice, cfg.FrontDevice
	cams := camera.NewManager(camCfg)
	facing, err := camera.ParseFacing(cfg.Facing)
	if err != nil {
		return err
	}

	cl, err := newClassifier(cfg, base)
	if err != nil {
		return err
	}

	// Controller logs also feed the dashboard log panel.
	logs := web.NewLogs(web.MaxLogs)
	logger := slog.New(logs.Handler(base.Handler()))

	ctrl := monitor.New(cl,
		monitor.WithInterval(cfg.Interval),
		monitor.WithTickTimeout(cfg.TickTimeout),
		monitor.WithLogger(logger),
	)
	defer func() {
		ctrl.Stop()
		if cam := ctrl.Camera(); cam != nil {
			cam.Close()
		}
	}()

	srv := web.NewServer(web.Config{
		Port:              cfg.Port,
		Controller:        ctrl,
		Cameras:           cams,
		PermissionGranted: cfg.PermissionGranted,
		RequestPermission: func(ctx context.Context) (bool, error) {
			if ctrl.Camera() != nil {
				return true, nil
			}
			cam, err := openCamera(cfg.Camera, cams, facing, logger)
			if err != nil {
				return false, err
			}
			ctrl.SetCamera(cam)
			return true, nil
		},
		Logs:   logs,
		Logger: logger,
	})
	ctrl.OnChange = srv.PublishState
	ctrl.OnPhoto = srv.PublishPhoto

	if cfg.PermissionGranted {
		cam, err := openCamera(cfg.Camera, cams, facing, logger)
		if err != nil {
			logger.Warn("camera unavailable", "error", err)
		} else {
			ctrl.SetCamera(cam)
		}
	}
	if cfg.AutoStart {
		ctrl.Start()
	}

	logger.Info("crywatch ready",
		"camera", cfg.Camera,
		"classifier", cfg.Classifier,
		"interval", cfg.Interval,
		"dashboard", "http://localhost:"+cfg.Port,
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func newClassifier(cfg config.Config, logger *slog.Logger) (classifier.Classifier, error) {
	switch cfg.Classifier {
	case config.ClassifierOpenAI:
		return classifier.NewOpenAI(
			classifier.WithAPIKey(cfg.OpenAIKey),
			classifier.WithModel(cfg.OpenAIModel),
			classifier.WithTimeout(cfg.TickTimeout),
			classifier.WithLogger(logger),
		)
	default:
		return classifier.NewClient(
			classifier.WithBaseURL(cfg.BaseURL),
			classifier.WithHTTPClient(httpc.NewClient(cfg.TickTimeout)),
			classifier.WithLogger(logger),
		)
	}
}

// openCamera opens the configured backend and keeps it in step with the
// dashboard's camera config.
func openCamera(backend string, cams *camera.Manager, facing camera.Facing, logger *slog.Logger) (camera.Camera, error) {
	var cam applier
	switch backend {
	case config.CameraScreen:
		s := screen.New(cams.GetConfig())
		if err := s.SetFacing(facing); err != nil {
			return nil, err
		}
		cam = s
	default:
		d, err := opencv.Open(cams.GetConfig(), facing, logger)
		if err != nil {
			return nil, err
		}
		cam = d
	}
	cams.SetOnConfigChange(cam.Apply)
	return cam, nil
}
