// Package web is the local control dashboard: a small fiber app that
// starts and stops the capture loop and streams its state to browsers.
package web

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/hub"
	"github.com/teslashibe/crywatch/pkg/monitor"
)

//go:embed static/index.html
var static embed.FS

// Controller is the part of monitor.Controller the dashboard drives.
type Controller interface {
	Start()
	Stop()
	Toggle()
	State() monitor.State
	Camera() camera.Camera
}

// PermissionFunc asks for camera access and reports whether it was
// granted.
type PermissionFunc func(ctx context.Context) (bool, error)

// Config configures the dashboard.
type Config struct {
	Port       string
	Controller Controller

	// Cameras backs the camera config routes. Nil disables them.
	Cameras *camera.Manager

	// PermissionGranted starts the dashboard with permission already
	// given.
	PermissionGranted bool

	// RequestPermission is called by POST /api/permission. Nil grants
	// immediately.
	RequestPermission PermissionFunc

	// Logs backs GET /api/logs. Nil starts an empty ring.
	Logs *Logs

	Logger *slog.Logger
}

// Status is what GET /api/status and /ws/status report.
type Status struct {
	monitor.State
	PermissionGranted bool `json:"permission_granted"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	port   string
	ctrl   Controller
	cams   *camera.Manager
	logger *slog.Logger

	requestPermission PermissionFunc

	mu      sync.RWMutex
	granted bool

	logs *Logs

	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer builds the fiber app and its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:              cfg.Port,
		ctrl:              cfg.Controller,
		cams:              cfg.Cameras,
		logger:            logger.With("component", "web"),
		requestPermission: cfg.RequestPermission,
		granted:           cfg.PermissionGranted,
		logs:              cfg.Logs,
		statusHub:         hub.New("status", logger, hub.WithReplay()),
		cameraHub:         hub.New("camera", logger),
	}

	if s.logs == nil {
		s.logs = NewLogs(MaxLogs)
	}

	app := fiber.New(fiber.Config{
		AppName:               "crywatch",
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/permission", s.handlePermission)
	api.Post("/stream/:action", s.handleStream)
	api.Post("/camera/facing", s.handleFacing)
	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Patch("/camera/config", s.handleUpdateCameraConfig)
	api.Get("/camera/presets", s.handlePresets)
	api.Get("/logs", s.handleLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleWS(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.handleWS(s.cameraHub)))

	s.app = app
	return s
}

// App exposes the fiber app, mostly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	s.PublishState(s.ctrl.State())

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
		errc <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return nil
	}
}

// PublishState broadcasts a controller snapshot. Wire it to
// monitor.Controller.OnChange.
func (s *Server) PublishState(st monitor.State) {
	if err := s.statusHub.BroadcastJSON(s.status(st)); err != nil {
		s.logger.Error("encode status", "error", err)
	}
}

// PublishPhoto sends a captured still to the preview feed. Wire it to
// monitor.Controller.OnPhoto.
func (s *Server) PublishPhoto(p *camera.Photo) {
	if p == nil || s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(p.Data)
}

// PermissionGranted reports whether camera access was granted.
func (s *Server) PermissionGranted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted
}

func (s *Server) setGranted(v bool) {
	s.mu.Lock()
	s.granted = v
	s.mu.Unlock()
}

func (s *Server) status(st monitor.State) Status {
	return Status{State: st, PermissionGranted: s.PermissionGranted()}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
