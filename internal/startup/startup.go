// Package startup handles configuration loading, directory setup and the
// startup/shutdown log sequence.
package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"video-library/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Config holds all application configuration.
type Config struct {
	StorageDir  string
	Port        string
	MetricsPort string

	// External tool configuration
	FFmpegBin    string
	FFprobeBin   string
	PythonBin    string
	SpriteScript string
	ProbeTimeout time.Duration

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths: the three subdirectories of the storage root.
	VideosDir    string
	ThumbnailDir string
	ProcessedDir string
}

// LoadConfig loads and validates configuration from environment variables.
// The storage root must exist; its three subdirectories (videos, thumbnails,
// processed) are created lazily if absent, never treated as a startup error.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	storageDir := getEnv("STORAGE_DIR", "/storage")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	ffmpegBin := getEnv("FFMPEG_BIN", "ffmpeg")
	ffprobeBin := getEnv("FFPROBE_BIN", "ffprobe")
	pythonBin := getEnv("PYTHON_BIN", "python3")
	spriteScript := getEnv("SPRITE_SCRIPT", "./videoprocessing/generate_sprite.py")
	probeTimeoutStr := getEnv("PROBE_TIMEOUT", "30s")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  STORAGE_DIR:       %s", storageDir)
	logging.Info("  PORT:              %s", port)
	logging.Info("  METRICS_PORT:      %s", metricsPort)
	logging.Info("  METRICS_ENABLED:   %v", metricsEnabled)
	logging.Info("  FFMPEG_BIN:        %s", ffmpegBin)
	logging.Info("  FFPROBE_BIN:       %s", ffprobeBin)
	logging.Info("  PYTHON_BIN:        %s", pythonBin)
	logging.Info("  SPRITE_SCRIPT:     %s", spriteScript)
	logging.Info("  PROBE_TIMEOUT:     %s", probeTimeoutStr)
	logging.Info("  LOG_HEALTH_CHECKS: %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	probeTimeout, err := time.ParseDuration(probeTimeoutStr)
	if err != nil {
		logging.Warn("  Invalid PROBE_TIMEOUT, using default: 30s")
		probeTimeout = 30 * time.Second
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	storageDir, err = filepath.Abs(storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory path: %w", err)
	}
	logging.Info("  Storage root (absolute): %s", storageDir)

	config := &Config{
		StorageDir:      storageDir,
		Port:            port,
		MetricsPort:     metricsPort,
		FFmpegBin:       ffmpegBin,
		FFprobeBin:      ffprobeBin,
		PythonBin:       pythonBin,
		SpriteScript:    spriteScript,
		ProbeTimeout:    probeTimeout,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		VideosDir:       filepath.Join(storageDir, "videos"),
		ThumbnailDir:    filepath.Join(storageDir, "thumbnails"),
		ProcessedDir:    filepath.Join(storageDir, "processed"),
	}

	for _, sub := range []struct{ path, name string }{
		{config.VideosDir, "videos"},
		{config.ThumbnailDir, "thumbnails"},
		{config.ProcessedDir, "processed"},
	} {
		if err := ensureDirectory(sub.path, sub.name); err != nil {
			logging.Warn("  %s directory issue: %v", sub.name, err)
		}
	}

	logging.Info("")
	CheckExternalTools(config)

	return config, nil
}

// CheckExternalTools probes for the external binaries at startup. A missing
// tool is logged, not fatal: the pipeline degrades per request instead.
func CheckExternalTools(config *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTERNAL TOOLS")
	logging.Info("------------------------------------------------------------")

	checkTool(config.FFmpegBin, "ffmpeg (thumbnail capture)")
	checkTool(config.FFprobeBin, "ffprobe (duration probe)")
	checkTool(config.PythonBin, "python (sprite generator)")

	if _, err := os.Stat(config.SpriteScript); err != nil {
		logging.Warn("  Sprite script not found at %s", config.SpriteScript)
		logging.Warn("  Sprite generation requests will be rejected")
	} else {
		logging.Info("  [OK] Sprite script: %s", config.SpriteScript)
	}
}

func checkTool(bin, label string) {
	path, err := exec.LookPath(bin)
	if err != nil {
		logging.Warn("  %s not found in PATH (%s)", bin, label)
		return
	}
	logging.Info("  [OK] %s: %s", label, path)

	if logging.IsDebugEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if out, err := exec.CommandContext(ctx, bin, "-version").Output(); err == nil {
			lines := strings.SplitN(string(out), "\n", 2)
			logging.Debug("    version: %s", strings.TrimSpace(lines[0]))
		}
	}
}

// RouteInfo contains information about a registered route.
type RouteInfo struct {
	Method string
	Path   string
}

// GetRoutes extracts all registered routes from a mux.Router.
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{Method: method, Path: pathTemplate})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// LogServerStarted logs successful server start with endpoint information.
func LogServerStarted(config *Config, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", startupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application: http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:     http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:     DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start.
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownComplete logs shutdown completion.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
 _    ___     __           __    _ __
| |  / (_)___/ /__  ____  / /   (_) /_  _________ ________  __
| | / / / __  / _ \/ __ \/ /   / / __ \/ ___/ __ '/ ___/ / / /
| |/ / / /_/ /  __/ /_/ / /___/ / /_/ / /  / /_/ / /  / /_/ /
|___/_/\__,_/\___/\____/_____/_/_.___/_/   \__,_/_/   \__, /
                                                     /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	logging.Info("")
}

// ensureDirectory creates a storage subdirectory if it does not exist.
func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Info("  [OK] Created %s directory: %s", name, path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
