package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher is refreshed on every tick. *catalog.Registry satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Stats describes the scheduler's progress.
type Stats struct {
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Interval  string    `json:"interval"`
}

// Scheduler periodically refreshes the catalog.
type Scheduler struct {
	target Refresher
	config *Config
	log    logrus.FieldLogger

	// OnRefresh, when set, is called after every refresh with its result.
	OnRefresh func(err error)

	mu    sync.Mutex
	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(target Refresher, cfg *Config, log logrus.FieldLogger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		target: target,
		config: cfg,
		log:    log.WithField("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the refresh loop.
func (sch *Scheduler) Start() {
	sch.wg.Add(1)
	go sch.loop()
	sch.log.WithField("interval", sch.config.Interval).Info("scheduler started")
}

// Stop stops the loop and waits for an in-flight refresh to finish.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	sch.log.Info("scheduler stopped")
}

func (sch *Scheduler) loop() {
	defer sch.wg.Done()

	if sch.config.RunOnStart {
		sch.RunOnce(sch.ctx)
	}

	ticker := time.NewTicker(sch.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			sch.RunOnce(sch.ctx)
		}
	}
}

// RunOnce refreshes immediately and records the outcome.
func (sch *Scheduler) RunOnce(ctx context.Context) error {
	err := sch.target.Refresh(ctx)

	sch.mu.Lock()
	sch.stats.Runs++
	sch.stats.LastRun = time.Now()
	sch.stats.LastError = ""
	if err != nil {
		sch.stats.Failures++
		sch.stats.LastError = err.Error()
	}
	sch.mu.Unlock()

	if err != nil {
		sch.log.WithError(err).Warn("catalog refresh incomplete")
	}
	if sch.OnRefresh != nil {
		sch.OnRefresh(err)
	}
	return err
}

// GetStats returns current scheduler statistics.
func (sch *Scheduler) GetStats() Stats {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	st := sch.stats
	st.Interval = sch.config.Interval.String()
	return st
}
