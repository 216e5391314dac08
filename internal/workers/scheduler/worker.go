package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Notifier is the wake signal of the worker being scheduled.
type Notifier interface {
	Notify()
}

// Worker wakes another worker on a cron schedule. Wakes that arrive while
// one is still pending are dropped by the signal.
type Worker struct {
	name     string
	schedule string
	target   Notifier
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewWorker creates a cron trigger for target
func NewWorker(name, schedule string, target Notifier, logger *slog.Logger) *Worker {
	return &Worker{
		name:     name,
		schedule: schedule,
		target:   target,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return w.name
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.logger.Debug("Scheduled wake-up", "schedule", w.schedule)
		w.target.Notify()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", w.name, err)
	}

	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping scheduler", "name", w.name)
	<-w.cron.Stop().Done()
}
