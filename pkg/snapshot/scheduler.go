package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

// Status reports the scheduler's last run.
type Status struct {
	Schedule  string    `json:"schedule"`
	Path      string    `json:"path"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int       `json:"run_count"`
	LastError string    `json:"last_error"`
}

// Scheduler writes a snapshot of the bridge state on a cron schedule.
type Scheduler struct {
	log      *logger.Logger
	kv       state.KV
	path     string
	schedule string

	scheduler *cron.Cron
	entry     cron.EntryID
	mu        sync.Mutex
	status    Status

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. schedule is a standard cron spec or a
// descriptor such as "@every 10m".
func NewScheduler(log *logger.Logger, kv state.KV, schedule, path string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule: %w", err)
	}
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:       log,
		kv:        kv,
		path:      path,
		schedule:  schedule,
		scheduler: cron.New(),
		status:    Status{Schedule: schedule, Path: path},
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start schedules the snapshot job.
func (s *Scheduler) Start() error {
	entryID, err := s.scheduler.AddFunc(s.schedule, func() {
		_ = s.RunNow(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling snapshot: %w", err)
	}

	s.mu.Lock()
	s.entry = entryID
	s.mu.Unlock()

	s.scheduler.Start()
	s.refreshNext()

	s.log.Info("Started snapshot scheduler",
		zap.String("schedule", s.schedule),
		zap.String("path", s.path))
	return nil
}

// Stop waits for a running snapshot to finish.
func (s *Scheduler) Stop() error {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	s.cancel()

	s.log.Info("Snapshot scheduler stopped")
	return nil
}

// RunNow writes a snapshot immediately.
func (s *Scheduler) RunNow(ctx context.Context) error {
	snap, err := Export(ctx, s.kv)
	if err == nil {
		err = WriteFile(s.path, snap)
	}

	s.mu.Lock()
	s.status.LastRun = time.Now()
	s.status.RunCount++
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
	s.mu.Unlock()
	s.refreshNext()

	if err != nil {
		s.log.Error("Snapshot failed", zap.Error(err))
		return err
	}
	s.log.Info("Wrote snapshot", zap.String("path", s.path), zap.Int("keys", snap.Keys()))
	return nil
}

// Status returns a copy of the scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) refreshNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		s.status.NextRun = s.scheduler.Entry(s.entry).Next
	}
}
