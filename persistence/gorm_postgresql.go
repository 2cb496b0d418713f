package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/models"
)

// GormPostgreSQL archives games through gorm.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate game records: %w", err)
	}
	return &GormPostgreSQL{db: db}, nil
}

// newGormLogger reports slow queries and errors through zap.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	return p.db.WithContext(ctx).Create(models.NewGormGameRecord(record)).Error
}

func (p *GormPostgreSQL) LoadGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	var rows []models.GormGameRecord
	err := p.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]*models.GameRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].Record())
	}
	return records, nil
}

func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	filter, err := participantFilter(name)
	if err != nil {
		return nil, err
	}
	var rows []models.GormGameRecord
	err = p.db.WithContext(ctx).
		Where("players @> ?::jsonb", filter).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]*models.GameRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].Record())
	}
	return aggregate(name, records)
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
