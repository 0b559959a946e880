package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	LogDirectory string
	LogLevel     string

	DatabasePath string

	ExportDirectory     string
	ExportBufferLimit   int
	ExportFlushInterval int // seconds

	DeviceDirectory string // where video4linux nodes live
	DevicePattern   string // glob matched inside DeviceDirectory
	CameraDevice    string // preferred device id, empty = first found
	FrameWidth      int
	FrameHeight     int

	ScanInterval     time.Duration // sampling period of the decode loop
	AutoBegin        bool          // begin scanning as soon as permission is granted
	PrimitivesAsJSON bool          // classify bare JSON primitives ("5", "null") as json
	AutoOpenURLs     bool          // open url results in the system browser
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		Password:            getEnv("PASSWORD", "qrscan"),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "scans.db")),
		ExportDirectory:     getEnv("EXPORT_DIR", filepath.Join(".", "exports")),
		ExportBufferLimit:   getEnvAsInt("EXPORT_BUFFER_LIMIT", 10),
		ExportFlushInterval: getEnvAsInt("EXPORT_FLUSH_INTERVAL", 30),
		DeviceDirectory:     getEnv("DEVICE_DIR", "/dev"),
		DevicePattern:       getEnv("DEVICE_PATTERN", "video*"),
		CameraDevice:        getEnv("CAMERA_DEVICE", ""),
		FrameWidth:          getEnvAsInt("FRAME_WIDTH", 1280),
		FrameHeight:         getEnvAsInt("FRAME_HEIGHT", 720),
		ScanInterval:        time.Duration(getEnvAsInt("SCAN_INTERVAL_MS", 100)) * time.Millisecond,
		AutoBegin:           getEnvAsBool("AUTO_BEGIN", true),
		PrimitivesAsJSON:    getEnvAsBool("PRIMITIVES_AS_JSON", true),
		AutoOpenURLs:        getEnvAsBool("AUTO_OPEN_URLS", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt only accepts strictly positive values; anything else falls back.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
