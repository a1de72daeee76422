package database

import (
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/pkg/logger"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := gormlogger.Warn
	if mode == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Models 参与自动迁移的模型，测试里的 sqlite 库也用这份列表建表
func Models() []interface{} {
	return []interface{}{
		&model.Course{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.LessonCompletion{},
		&model.Quiz{},
		&model.QuizAttempt{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return nil
}
