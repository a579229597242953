// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the periodic withdrawal housekeeping:
// anything stuck in pending past the configured age is cancelled and
// refunded so points don't stay locked behind a dead provider.
func (s *WithdrawalService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			cancelled, err := s.CancelStale(s.Cfg.PendingMaxAge)
			if err != nil {
				log.Printf("[Scheduler] stale withdrawal sweep failed: %v", err)
				return
			}
			if cancelled > 0 {
				log.Printf("✅ [Scheduler] cancelled %d stale withdrawal(s)", cancelled)
			}
		}),
	)
}
