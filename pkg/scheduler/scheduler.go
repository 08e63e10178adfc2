package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ETFEngine/pkg/service"
)

// Scheduler 按 cron 表达式周期性触发 ETF 扫描
type Scheduler struct {
	cron    *cron.Cron
	scanner *service.Scanner
}

// NewScheduler 创建任务调度器
func NewScheduler(scanner *service.Scanner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		scanner: scanner,
	}
}

// Start 注册扫描任务并启动调度器
// spec 为标准五段 cron 表达式或 @every 语法
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		logrus.Info("定时扫描触发")
		if _, err := s.scanner.Run(context.Background()); err != nil {
			logrus.Errorf("定时扫描失败: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop 停止调度器，等待进行中的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
