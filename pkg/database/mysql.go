package database

import (
	"fmt"
	"log"
	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase connects to MySQL and migrates the sign-in tables.
// Only called in serve mode when DB_ENABLED is set; one-shot runs
// never touch a database.
func InitDatabase(cfg *config.Config) error {
	var err error

	dsn := cfg.GetDSN()

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connected successfully")

	return AutoMigrate()
}

func AutoMigrate() error {
	err := DB.AutoMigrate(
		&models.SignInRecord{},
	)

	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed")
	return nil
}
