package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Warmer refreshes cached irradiance; *solar.Service implements it.
type Warmer interface {
	WarmKits(ctx context.Context) (int, error)
}

// Scheduler periodically refreshes the irradiance of every stored kit.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. An interval of zero disables it.
func New(interval time.Duration, warmer Warmer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		warmer:    warmer,
		interval:  interval,
		timeout:   10 * time.Minute,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens right away.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: irradiance refresh disabled")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", zap.Int("everyMinutes", minutes))
	return nil
}

func (s *Scheduler) run() {
	s.logger.Info("scheduler: running irradiance refresh job")

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.warmer.WarmKits(ctx)
	if err != nil {
		s.logger.Warn("scheduler: irradiance refresh interrupted", zap.Int("refreshed", n), zap.Error(err))
		return
	}
	s.logger.Info("scheduler: completed irradiance refresh job",
		zap.Int("refreshed", n), zap.Duration("took", time.Since(start)))
}

// Stop cancels in-flight refreshes and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
