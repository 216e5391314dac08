package workers

// Worker defines the interface for all background workers
type Worker interface {
	// Start starts the worker without blocking
	Start() error

	// Stop stops the worker and waits for its loop to return
	Stop()

	// Name returns the worker name for logging
	Name() string
}
