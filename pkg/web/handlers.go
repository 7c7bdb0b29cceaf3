package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/doorwatch/go-doorwatch/pkg/hub"
)

// handleStatus returns the latest monitor snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return c.JSON(s.snap)
}

// handleStart asks the monitor loop to start.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if s.OnStart == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "start not configured",
		})
	}
	if err := s.OnStart(); err != nil {
		s.AddLog("error", err.Error())
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.AddLog("info", "monitor started")
	return c.JSON(fiber.Map{"running": true})
}

// handleStop asks the monitor loop to stop.
func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.OnStop == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "stop not configured",
		})
	}
	if err := s.OnStop(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.AddLog("info", "monitor stopped")
	return c.JSON(fiber.Map{"running": false})
}

// handleGetLogs returns recent log entries.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleGetConfig returns the camera configuration.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	if s.Cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no camera manager",
		})
	}
	return c.JSON(s.Cameras.GetConfig())
}

// handlePatchConfig updates camera settings at runtime.
func (s *Server) handlePatchConfig(c *fiber.Ctx) error {
	if s.Cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no camera manager",
		})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	if err := s.Cameras.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.AddLog("camera", "settings updated")
	return c.JSON(s.Cameras.GetConfig())
}

// handleStatusWS streams monitor snapshots.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send the current snapshot before joining the broadcast.
	s.snapMu.RLock()
	c.WriteJSON(s.snap)
	s.snapMu.RUnlock()

	hub.NewClient(s.statusHub, c).Run()
}

// handleLogsWS streams dashboard log entries.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	s.logsMu.RLock()
	for _, entry := range s.logs {
		c.WriteJSON(entry)
	}
	s.logsMu.RUnlock()

	hub.NewClient(s.logHub, c).Run()
}

// handleCameraWS streams live JPEG frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
