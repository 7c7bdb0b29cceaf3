// doorwatch: webcam door monitor
//
// Watches a door through a webcam, classifies each sampled frame as
// open or closed, and serves a live dashboard with the current state.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/doorwatch/go-doorwatch/internal/config"
	"github.com/doorwatch/go-doorwatch/internal/log"
	"github.com/doorwatch/go-doorwatch/pkg/camera"
	"github.com/doorwatch/go-doorwatch/pkg/classify"
	"github.com/doorwatch/go-doorwatch/pkg/monitor"
	"github.com/doorwatch/go-doorwatch/pkg/web"
)

var version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	port := flag.String("port", config.Port(), "Dashboard HTTP port")
	device := flag.String("camera", config.CameraDevice(), "Capture device index or path")
	cameraURL := flag.String("camera-url", config.CameraURL(), "Remote camera signalling URL (empty = local device)")
	modelDir := flag.String("models", config.ModelDir(), "Directory containing door.onnx and labels.txt")
	remote := flag.Bool("remote", false, "Classify via OpenAI-compatible API instead of the local model")
	autostart := flag.Bool("autostart", true, "Start monitoring on launch")
	flag.Parse()

	log.Init(config.LogLevel())
	logger := log.With("service", "doorwatch")

	fmt.Println("🚪 doorwatch v" + version)
	fmt.Printf("   Dashboard: http://localhost:%s\n", *port)
	fmt.Println()

	// Camera source: local UVC device or a remote WebRTC producer.
	var source monitor.VideoSource
	var webcam *camera.Webcam
	if *cameraURL != "" {
		source = camera.NewRemoteCamera(camera.DefaultRemoteConfig(*cameraURL), logger)
		logger.Info("using remote camera", "url", *cameraURL)
	} else {
		camCfg := camera.DefaultConfig()
		camCfg.Device = *device
		webcam = camera.NewWebcam(camCfg, logger)
		source = webcam
	}

	// Classifier: local ONNX model by default, remote API on request.
	var classifier classify.Classifier
	var err error
	if *remote {
		classifier, err = classify.NewRemote(
			classify.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
			classify.WithLogger(logger),
		)
	} else {
		cfg := classify.DefaultDNNConfig()
		cfg.ModelPath = filepath.Join(*modelDir, "door.onnx")
		cfg.LabelsPath = filepath.Join(*modelDir, "labels.txt")
		classifier, err = classify.NewDNN(cfg)
	}
	if err != nil {
		logger.Error("classifier setup failed", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()

	// Dashboard server doubles as the monitor's publisher.
	server := web.NewServer(*port, logger)

	monCfg := monitor.DefaultConfig()
	monCfg.TickInterval = config.Duration("DOORWATCH_TICK_INTERVAL", monCfg.TickInterval)
	monCfg.MinInterval = config.Duration("DOORWATCH_MIN_INTERVAL", monCfg.MinInterval)
	monCfg.ClassifyTimeout = config.Duration("DOORWATCH_CLASSIFY_TIMEOUT", monCfg.ClassifyTimeout)
	mon := monitor.New(monCfg, source, classifier, server, logger)

	server.OnStart = mon.Start
	server.OnStop = mon.Stop

	// Runtime camera settings from the dashboard apply to the live
	// capture only for the local webcam.
	manager := camera.NewManager()
	if webcam != nil {
		manager.OnConfigChange = webcam.ApplyConfig
	}
	server.Cameras = manager

	server.StartAsync()

	// Feed the dashboard's live view while anyone is watching.
	go pumpFrames(server, mon, source)

	if *autostart {
		if err := mon.Start(); err != nil {
			// Not fatal: the dashboard can retry via /api/start.
			logger.Error("monitor start failed", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	if err := mon.Stop(); err != nil {
		logger.Error("monitor stop failed", "error", err)
	}
	if err := server.Shutdown(); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

// pumpFrames streams JPEG frames to dashboard viewers at a fixed rate.
// Frames flow only while the monitor holds the camera open.
func pumpFrames(server *web.Server, mon *monitor.Monitor, source monitor.VideoSource) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if server.CameraViewers() == 0 || !mon.Running() {
			continue
		}
		if !source.FrameReady() {
			continue
		}
		frame, err := source.Frame()
		if err != nil {
			continue
		}
		server.SendCameraFrame(frame)
	}
}
