package background

import (
	"context"
	"log"
	"time"

	"vendora/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler runs the time-driven subscription sweeps
type JobScheduler struct {
	scheduler    gocron.Scheduler
	lifecycleSvc services.LifecycleService
	jobs         map[string]gocron.Job
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(lifecycleSvc services.LifecycleService) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:    scheduler,
		lifecycleSvc: lifecycleSvc,
		jobs:         make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Period-end sweep - every 5 minutes, never overlapping
	periodEndJob, err := js.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(js.runPeriodEndSweep, context.Background()),
		gocron.WithName("period-end-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create period-end sweep job: %v", err)
	} else {
		js.jobs["period-end-sweep"] = periodEndJob
	}

	// Stale-pending sweep - every hour, never overlapping
	stalePendingJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.runStalePendingSweep, context.Background()),
		gocron.WithName("stale-pending-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create stale-pending sweep job: %v", err)
	} else {
		js.jobs["stale-pending-sweep"] = stalePendingJob
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
}

// runPeriodEndSweep cancels active subscriptions whose paid period has
// elapsed with a cancellation scheduled.
func (js *JobScheduler) runPeriodEndSweep(ctx context.Context) error {
	log.Printf("Starting period-end sweep")

	cancelled, err := js.lifecycleSvc.RunPeriodEndSweep(ctx)
	if err != nil {
		log.Printf("Period-end sweep failed: %v", err)
		return err
	}

	log.Printf("Completed period-end sweep, %d subscriptions cancelled", cancelled)
	return nil
}

// runStalePendingSweep expires pending subscriptions whose checkout was
// abandoned past the grace window.
func (js *JobScheduler) runStalePendingSweep(ctx context.Context) error {
	log.Printf("Starting stale-pending sweep")

	expired, err := js.lifecycleSvc.RunStalePendingSweep(ctx)
	if err != nil {
		log.Printf("Stale-pending sweep failed: %v", err)
		return err
	}

	log.Printf("Completed stale-pending sweep, %d checkouts expired", expired)
	return nil
}

// GetJobStatus returns information about scheduled jobs. The jobs map is
// populated once at construction and only read afterwards.
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobs)
	jobs := make([]string, 0, len(js.jobs))

	for name := range js.jobs {
		jobs = append(jobs, name)
	}

	status["jobs"] = jobs

	return status
}
