package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/hub"
	"github.com/teslashibe/crywatch/pkg/monitor"
)

func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		return err
	}
	c.Type("html")
	return c.Send(page)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status(s.ctrl.State()))
}

// handlePermission asks for camera access. The answer sticks until the
// process restarts.
func (s *Server) handlePermission(c *fiber.Ctx) error {
	granted := true
	if s.requestPermission != nil {
		var err error
		granted, err = s.requestPermission(c.UserContext())
		if err != nil {
			s.logger.Error("permission request failed", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}
	s.setGranted(granted)
	s.logger.Info("camera permission", "granted", granted)
	s.PublishState(s.ctrl.State())
	return c.JSON(fiber.Map{"granted": granted})
}

// handleStream drives the controller. Nothing can stream until camera
// permission is granted.
func (s *Server) handleStream(c *fiber.Ctx) error {
	if !s.PermissionGranted() {
		return fiber.NewError(fiber.StatusForbidden, "camera permission not granted")
	}

	var starting bool
	switch c.Params("action") {
	case "start":
		starting = true
		s.ctrl.Start()
	case "stop":
		s.ctrl.Stop()
	case "toggle":
		starting = !s.ctrl.State().Streaming
		s.ctrl.Toggle()
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown stream action")
	}

	st := s.ctrl.State()
	if starting && !st.Streaming {
		return fiber.NewError(fiber.StatusConflict, monitor.ErrCameraNotReady.Error())
	}
	return c.JSON(s.status(st))
}

// FacingRequest optionally names the lens to switch to. An empty body
// toggles.
type FacingRequest struct {
	Facing string `json:"facing"`
}

func (s *Server) handleFacing(c *fiber.Ctx) error {
	cam := s.ctrl.Camera()
	if cam == nil {
		return fiber.NewError(fiber.StatusConflict, monitor.ErrCameraNotReady.Error())
	}

	next := cam.Facing().Toggle()
	var req FacingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
	}
	if req.Facing != "" {
		f, err := camera.ParseFacing(req.Facing)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		next = f
	}

	if err := cam.SetFacing(next); err != nil {
		s.logger.Error("switch facing", "facing", next, "error", err)
		return err
	}
	s.logger.Info("camera facing", "facing", next)

	st := s.ctrl.State()
	s.PublishState(st)
	return c.JSON(s.status(st))
}

func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	if s.cams == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(s.cams.GetConfig())
}

func (s *Server) handleUpdateCameraConfig(c *fiber.Ctx) error {
	if s.cams == nil {
		return fiber.ErrNotFound
	}
	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.cams.UpdateConfig(updates); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.logger.Info("camera config updated", "fields", len(updates))
	return c.JSON(s.cams.GetConfig())
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	return c.JSON(s.logs.Entries())
}

func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}
