// @title 学习进度服务 API
// @version 1.0
// @description 课时完成记录、课程进度、续学定位与教师端学习统计。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"edu_progress_backend/internal/app"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/pkg/configwatcher"
	"edu_progress_backend/pkg/logger"
	"flag"
	"log"
	"path/filepath"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		logger.Log.Info("数据库迁移完成，退出程序")
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		configFile := filepath.Join(*configDir, "config.yaml")
		if err := configwatcher.WatchConfig(configFile, application.ApplyConfig, stop); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()

	application.Run()
}
