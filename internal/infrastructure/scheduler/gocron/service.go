package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
	job       *gocron.Job
	mu        *sync.Mutex
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc, nil, &sync.Mutex{}}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

// SchedulePoll runs pollFunc every interval, replacing the previous poll if
// any. A run is skipped while the previous one is still going, a slow node
// must not pile up queries.
func (s *service) SchedulePoll(interval time.Duration, pollFunc func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil {
		s.scheduler.RemoveByReference(s.job)
		s.job = nil
	}

	job, err := s.scheduler.Every(interval).SingletonMode().Do(pollFunc)
	if err != nil {
		return err
	}
	s.job = job
	return nil
}

// WhenNextPoll returns the next scheduled poll time
func (s *service) WhenNextPoll() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}
