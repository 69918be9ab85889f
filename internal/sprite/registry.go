package sprite

import "sync"

// Progress describes one sprite job's progress as parsed from the
// generator's output.
type Progress struct {
	Current int  `json:"current"`
	Total   int  `json:"total"`
	Done    bool `json:"done"`
}

// Registry holds progress for all sprite jobs in this process. It is shared
// across requests and lives as long as the server: an entry persists after
// its job finishes until cleared or overwritten by a new run for the same
// file name. Concurrent runs for the same file name clobber each other
// (last writer wins); that matches the job runner's external contract.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Progress
}

// NewRegistry creates an empty progress registry. One registry is created
// in the composition root and passed by reference to the job runner and
// the progress handler.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Progress)}
}

// Get returns the progress entry for fileName, if any.
func (r *Registry) Get(fileName string) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.jobs[fileName]
	return p, ok
}

// Set records the progress entry for fileName.
func (r *Registry) Set(fileName string, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[fileName] = p
}

// Clear removes the progress entry for fileName.
func (r *Registry) Clear(fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, fileName)
}
