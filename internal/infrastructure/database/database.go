package database

import (
	"fmt"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to MySQL or Postgres depending on cfg.Driver, sizes the
// pool and migrates the ledger tables.
func Open(cfg *config.MySQLConfig, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&model.AccountDocument{},
		&model.Customer{},
		&model.Counter{},
		&model.Transfer{},
		&model.JournalEntry{},
		&model.OutboxMessage{},
		&model.AccountRequest{},
		&model.LoanRequest{},
		&model.Loan{},
		&model.FDRequest{},
		&model.FixedDeposit{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	log.Info().Str("driver", cfg.Driver).Str("database", cfg.Database).Msg("database connected")
	return db, nil
}

func dialectorFor(cfg *config.MySQLConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Database,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Database,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}
