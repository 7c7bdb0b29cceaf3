// Package web provides the real-time dashboard for doorwatch.
//
// The server is the presentation layer of the monitor loop: it renders
// the published door state, relays start/stop commands, and streams
// status, logs and camera frames over websockets.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/doorwatch/go-doorwatch/pkg/camera"
	"github.com/doorwatch/go-doorwatch/pkg/hub"
	"github.com/doorwatch/go-doorwatch/pkg/monitor"
)

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, state, error, camera
	Message string `json:"message"`
}

const maxLogEntries = 500

// Server is the dashboard server. It implements monitor.Publisher.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	// Latest published snapshot
	snap   monitor.Snapshot
	snapMu sync.RWMutex

	// Log buffer (last maxLogEntries entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	// Camera settings manager (optional)
	Cameras *camera.Manager

	// Loop command callbacks
	OnStart func() error
	OnStop  func() error
}

// NewServer creates a new dashboard server.
func NewServer(port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:      port,
		logger:    logger.With("component", "web"),
		logs:      make([]LogEntry, 0, maxLogEntries),
		statusHub: hub.New("status", logger),
		logHub:    hub.New("logs", logger),
		cameraHub: hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "doorwatch",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/config", s.handleGetConfig)
	api.Patch("/config", s.handlePatchConfig)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start starts the hubs and the web server. Blocks.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.logHub.Run()
	go s.cameraHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server failed", "error", err)
		}
	}()
}

// Publish records the monitor snapshot and broadcasts it to clients.
// Called by the monitor after every state change.
func (s *Server) Publish(snap monitor.Snapshot) {
	s.snapMu.Lock()
	prev := s.snap
	s.snap = snap
	s.snapMu.Unlock()

	s.statusHub.BroadcastJSON(snap)

	// Door transitions are worth a dashboard log line.
	if snap.Prediction != nil &&
		(prev.Prediction == nil || prev.Prediction.State != snap.Prediction.State) {
		s.AddLog("state", "door "+snap.Prediction.State.String())
	}
	if snap.Error != "" && snap.Error != prev.Error {
		s.AddLog("error", snap.Error)
	}
}

// Snapshot returns the latest published snapshot.
func (s *Server) Snapshot() monitor.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// AddLog adds a log entry and broadcasts it to clients.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// SendCameraFrame sends a camera frame to all connected clients.
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// CameraViewers returns how many clients watch the live feed.
func (s *Server) CameraViewers() int {
	return s.cameraHub.ClientCount()
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
