package summary

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// DefaultSchedule fires Monday 06:00 UTC, summarizing the week that just
// ended.
const DefaultSchedule = "0 6 * * MON"

// runTimeout caps one scheduled pass over all users.
const runTimeout = 10 * time.Minute

// Scheduler runs the summarizer on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	summarizer *Summarizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewScheduler wires the summarizer to a cron expression. An empty
// schedule uses DefaultSchedule.
func NewScheduler(s *Summarizer, logger *zap.Logger, schedule string) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	sched := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		summarizer: s,
		logger:     logger,
		now:        time.Now,
	}
	if _, err := sched.cron.AddFunc(schedule, sched.run); err != nil {
		return nil, err
	}
	return sched, nil
}

// Start begins scheduling in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("summary scheduler started")
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("summary scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Summarize the week that ended yesterday.
	weekStart := reflection.WeekStart(s.now().UTC().AddDate(0, 0, -7))

	n, err := s.summarizer.RunAll(ctx, weekStart)
	if err != nil {
		s.logger.Error("summary run failed",
			zap.String("week_start", weekStart.Format(reflection.DateFormat)),
			zap.Error(err))
		return
	}
	s.logger.Info("summary run complete",
		zap.String("week_start", weekStart.Format(reflection.DateFormat)),
		zap.Int("summaries", n))
}
