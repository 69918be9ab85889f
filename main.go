package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-library/internal/handlers"
	"video-library/internal/library"
	"video-library/internal/logging"
	"video-library/internal/memory"
	"video-library/internal/middleware"
	"video-library/internal/probe"
	"video-library/internal/sprite"
	"video-library/internal/startup"
	"video-library/internal/thumbnail"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Apply container memory limit before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Watch heap pressure against GOMEMLIMIT
	monitor := memory.NewMonitor(0.85, 5*time.Second)
	monitor.Start()
	defer monitor.Stop()

	// Initialize duration prober
	prober := probe.NewFFProbe(config.FFprobeBin, config.ProbeTimeout)

	// Initialize thumbnail cache
	capturer := thumbnail.NewFFmpegCapturer(config.FFmpegBin, config.ProbeTimeout)
	thumbs := thumbnail.New(config.VideosDir, config.ThumbnailDir, "/api/thumbnails", capturer)

	// Initialize video library
	lib := library.New(config.VideosDir, config.ProcessedDir, "/api/videos", prober, thumbs)

	// Sprite job state lives for the whole process; handlers only read
	// and the runner only writes
	progress := sprite.NewRegistry()
	sprites := sprite.NewRunner(config.VideosDir, config.ProcessedDir, config.SpriteScript, config.PythonBin, progress)

	// Initialize handlers
	h := handlers.New(lib, sprites, progress, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Create server. WriteTimeout stays 0 so long video streams are not
	// cut off; the streaming writer enforces its own per-chunk deadline.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Serve Prometheus metrics on a separate port so the scrape target
	// never competes with video traffic
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv)

	// Start server
	startup.LogServerStarted(config, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Library
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos/regenerate", h.RegenerateMetadata).Methods("POST")
	api.HandleFunc("/metadata/{name}", h.GetVideo).Methods("GET")

	// Thumbnails
	api.HandleFunc("/thumbnail", h.CreateThumbnail).Methods("POST")

	// Sprite sheets
	api.HandleFunc("/sprite", h.GenerateSprite).Methods("POST")
	api.HandleFunc("/sprite/progress/{name}", h.SpriteProgress).Methods("GET")

	// Asset serving. The regenerate route above must stay registered
	// before this one or mux would treat "regenerate" as a file name.
	api.HandleFunc("/{class}/{name:.+}", h.GetAsset).Methods("GET", "HEAD")

	return r
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("Metrics server listening on :%s", port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	startup.LogShutdownComplete()
}
