// Package config provides configuration helpers for doorwatch commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the doorwatch service.
const (
	DefaultPort      = "8080"
	DefaultModelDir  = "models"
	DefaultLogLevel  = "info"
	DefaultCameraDev = "0"
)

// Port returns the dashboard port from DOORWATCH_PORT, or the default.
func Port() string {
	if p := os.Getenv("DOORWATCH_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// LogLevel returns the log level from DOORWATCH_LOG_LEVEL, or the default.
func LogLevel() string {
	if l := os.Getenv("DOORWATCH_LOG_LEVEL"); l != "" {
		return l
	}
	return DefaultLogLevel
}

// ModelDir returns the model directory from DOORWATCH_MODEL_DIR.
// Model and label file locations are resolved relative to this directory.
func ModelDir() string {
	if d := os.Getenv("DOORWATCH_MODEL_DIR"); d != "" {
		return d
	}
	return DefaultModelDir
}

// CameraDevice returns the capture device from DOORWATCH_CAMERA.
// Either a device index ("0") or a device path ("/dev/video0").
func CameraDevice() string {
	if d := os.Getenv("DOORWATCH_CAMERA"); d != "" {
		return d
	}
	return DefaultCameraDev
}

// CameraURL returns the remote camera signalling URL from DOORWATCH_CAMERA_URL.
// Empty means use the local capture device.
func CameraURL() string {
	return os.Getenv("DOORWATCH_CAMERA_URL")
}

// Duration returns a duration from the named env var, or the fallback
// if unset or unparseable.
func Duration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Int returns an integer from the named env var, or the fallback.
func Int(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
