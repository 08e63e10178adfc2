package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"ETFEngine/pkg/api"
	"ETFEngine/pkg/config"
	"ETFEngine/pkg/database"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Info("启动 ETF 元数据报表服务...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("未找到配置文件 %s，使用环境变量配置", configPath)
			cfg = config.Default()
		} else {
			logrus.Fatalf("加载配置失败: %v", err)
		}
	}

	db, err := database.New(cfg)
	if err != nil {
		logrus.Fatalf("连接数据库失败: %v", err)
	}
	defer db.Close()

	server := api.NewServer(cfg.API.Port)
	server.SetupRoutes(api.NewHandlers(db))
	server.Start()
}
