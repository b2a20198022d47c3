package ports

import (
	"time"
)

type SchedulerService interface {
	Start()
	Stop()
	SchedulePoll(interval time.Duration, pollFunc func()) error
	WhenNextPoll() time.Time
}
