package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"playmatch/matchmaster/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) error {
	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: customLogger,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	log.Println("Database connection established.")

	if err := db.AutoMigrate(&models.User{}, &models.MatchRecord{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Println("Database migrated successfully.")

	DB = db
	return nil
}
