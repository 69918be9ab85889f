package handlers

import (
	"time"

	"video-library/internal/library"
	"video-library/internal/sprite"
	"video-library/internal/startup"
)

// Handlers bundles the HTTP handler set and its collaborators.
type Handlers struct {
	library   *library.Library
	sprites   *sprite.Runner
	progress  *sprite.Registry
	config    *startup.Config
	startTime time.Time
}

// New creates the handler set. The progress registry is the process-wide
// sprite progress map; it is owned by the composition root and shared here
// and with the sprite runner.
func New(lib *library.Library, sprites *sprite.Runner, progress *sprite.Registry, config *startup.Config) *Handlers {
	return &Handlers{
		library:   lib,
		sprites:   sprites,
		progress:  progress,
		config:    config,
		startTime: time.Now(),
	}
}
