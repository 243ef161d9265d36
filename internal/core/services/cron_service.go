package services

import (
	"context"
	"time"

	"alumni-ledger/internal/config"
	"alumni-ledger/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const cronJobTimeout = 5 * time.Minute

// CronService runs the scheduled maintenance jobs
type CronService struct {
	cron    *cron.Cron
	auth    *AuthService
	reports *ReportService
	metrics *metrics.Recorder
	log     *zap.Logger
}

// NewCronService registers the jobs whose schedule is set in cfg. Schedules use
// the standard five field cron syntax in UTC.
func NewCronService(cfg config.CronConfig, auth *AuthService, reports *ReportService, recorder *metrics.Recorder, log *zap.Logger) (*CronService, error) {
	s := &CronService{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		auth:    auth,
		reports: reports,
		metrics: recorder,
		log:     log.Named("cron"),
	}

	if cfg.TokenCleanup != "" {
		if _, err := s.cron.AddFunc(cfg.TokenCleanup, s.job("token_cleanup", s.CleanupTokens)); err != nil {
			return nil, err
		}
	}
	if cfg.MonthlyReport != "" {
		if _, err := s.cron.AddFunc(cfg.MonthlyReport, s.job("monthly_report", s.MonthlyReport)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the scheduler
func (s *CronService) Start() {
	s.cron.Start()
	s.log.Info("cron started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs or ctx, whichever ends first
func (s *CronService) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info("cron stopped")
}

// CleanupTokens deletes expired refresh tokens
func (s *CronService) CleanupTokens(ctx context.Context) error {
	n, err := s.auth.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	s.log.Info("expired refresh tokens deleted", zap.Int64("count", n))
	return nil
}

// MonthlyReport stores last month's financial summary
func (s *CronService) MonthlyReport(ctx context.Context) error {
	_, err := s.reports.GenerateMonthly(ctx, time.Now())
	return err
}

func (s *CronService) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		s.metrics.CronRun(name, err)
		if err != nil {
			s.log.Error("cron job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("cron job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}
