// Package main provides the entry point for the Video Library application.
//
// Video Library is a self-hosted web application for browsing and streaming a
// directory of video files. It lists videos with probed durations, generates
// poster thumbnails on demand, runs sprite sheet generation jobs and serves
// video content with byte-range support.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or container limits
//  2. Configuration Loading: Reads environment variables and prepares the
//     storage subdirectories (videos, thumbnails, processed)
//  3. Component Initialization:
//     - Prober: Reads video durations via ffprobe
//     - Thumbnail Cache: Captures and caches poster frames via ffmpeg
//     - Library: Lists videos and manages duration metadata
//     - Sprite Runner: Drives the sprite sheet generator subprocess and
//       tracks its progress
//  4. HTTP Server: Registers routes, applies logging and metrics middleware
//     and starts serving
//  5. Metrics Server: Exposes Prometheus metrics on a dedicated port
//
// On SIGINT or SIGTERM the servers drain in-flight requests before exit.
//
// # Configuration
//
// All configuration is via environment variables; see internal/startup for
// the full list and defaults. The only required external dependencies are
// ffmpeg and ffprobe on PATH (or configured explicitly) and a Python
// interpreter for sprite generation.
package main
