package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ETFEngine/pkg/collector"
	"ETFEngine/pkg/config"
	"ETFEngine/pkg/messaging"
	"ETFEngine/pkg/scheduler"
	"ETFEngine/pkg/service"
	"ETFEngine/pkg/storage"
)

func main() {
	daemon := flag.Bool("daemon", false, "按 scan.schedule 周期性扫描（默认只跑一次）")
	flag.Parse()

	cfg := loadConfig()

	if cfg.TWSE.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Info("启动 TWSE ETF 扫描服务...")
	logrus.Infof("DB 目标: %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// 连接数据库并做健康检查，DB 不可用时提早结束
	dsn := storage.PostgresDSN(
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.DBName, cfg.Database.SSLMode,
	)
	store, err := storage.Open("pgx", dsn, cfg.Database.PoolSize)
	if err != nil {
		logrus.Fatalf("连接数据库失败: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		logrus.Fatalf("初始化表结构失败: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		logrus.Fatalf("数据库健康检查失败: %v", err)
	}

	// NATS 可选：URL 为空时不发布事件
	var publisher service.EventPublisher
	if cfg.NATS.URL != "" {
		p, err := messaging.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logrus.Warnf("连接NATS失败，事件发布停用: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	client := collector.NewTWSEClient(collector.ClientOptions{
		Timeout:     cfg.Timeout(),
		Retries:     cfg.TWSE.Retries,
		Backoff:     cfg.RetryBackoff(),
		VerifySSL:   cfg.TWSE.VerifySSL,
		Debug:       cfg.TWSE.Debug,
		UserAgent:   cfg.TWSE.UserAgent,
		SnippetPath: cfg.TWSE.SnippetPath,
	})
	twse := collector.NewTWSEAdapter(client, cfg.TWSE.ListURL, cfg.TWSE.ProductURLTmpl)
	scanner := service.NewScanner(twse, twse, store, publisher, cfg.RateLimitDelay())

	if *daemon {
		runDaemon(scanner, cfg)
		return
	}

	if _, err := scanner.Run(ctx); err != nil {
		logrus.Fatalf("扫描失败: %v", err)
	}
}

// loadConfig 优先读配置文件，不存在时退回纯环境变量
func loadConfig() *config.Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("未找到配置文件 %s，使用环境变量配置", configPath)
			return config.Default()
		}
		logrus.Fatalf("加载配置失败: %v", err)
	}
	return cfg
}

// runDaemon 按 cron 周期性扫描，直到收到中断信号
func runDaemon(scanner *service.Scanner, cfg *config.Config) {
	spec := cfg.Scan.Schedule
	if spec == "" {
		spec = "0 18 * * 1-5" // 工作日收盘后
	}

	sched := scheduler.NewScheduler(scanner)
	if err := sched.Start(spec); err != nil {
		logrus.Fatalf("启动调度器失败: %v", err)
	}
	logrus.Infof("定时扫描已启动: %s", spec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logrus.Info("正在关闭扫描服务...")
	sched.Stop()
}
