package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"cope-referral-system/internal/service"
	"cope-referral-system/pkg/errors"
	"cope-referral-system/pkg/logger"
)

type SettlementScheduler struct {
	cron          *cron.Cron
	settlementSvc *service.SettlementService
	cronExpr      string
}

func NewSettlementScheduler(settlementSvc *service.SettlementService, cronExpr string) *SettlementScheduler {
	if cronExpr == "" {
		// 每周一00:00:00 UTC结算上一个完整周期
		cronExpr = "0 0 0 * * 1"
	}
	return &SettlementScheduler{
		cron:          cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		settlementSvc: settlementSvc,
		cronExpr:      cronExpr,
	}
}

func (s *SettlementScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.settlePreviousPeriod)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Settlement scheduler started")
	return nil
}

func (s *SettlementScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Settlement scheduler stopped")
}

// settlePreviousPeriod 结算刚刚结束的那一周
func (s *SettlementScheduler) settlePreviousPeriod() {
	ctx := context.Background()
	start, end := service.PeriodFor(time.Now().UTC().AddDate(0, 0, -7))

	logger.WithFields(map[string]interface{}{
		"period_start": start,
		"period_end":   end,
	}).Info("Starting weekly settlement")

	root, err := s.settlementSvc.Settle(ctx, start, end)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrPeriodSettled {
			logger.WithFields(map[string]interface{}{
				"period_start": start,
			}).Warn("Period already settled, skipping")
			return
		}
		logger.Error("Weekly settlement failed:", err)
		return
	}

	logger.WithFields(map[string]interface{}{
		"period_start": start,
		"merkle_root":  root,
	}).Info("Weekly settlement completed")
}

// TriggerManualSettlement 外部调度器的手动入口
func (s *SettlementScheduler) TriggerManualSettlement(ctx context.Context, start, end time.Time) (string, error) {
	return s.settlementSvc.Settle(ctx, start, end)
}
