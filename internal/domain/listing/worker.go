package listing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker runs the periodic expiry sweep
type Worker struct {
	svc      *Service
	interval time.Duration
	stopCh   chan struct{}
}

func NewWorker(svc *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = time.Hour
	}
	return &Worker{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("starting listing expiry worker")
	go w.loop()
}

func (w *Worker) Stop() {
	log.Info().Msg("stopping listing expiry worker")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.svc.ExpireSweep(ctx)
}
