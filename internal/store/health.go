package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

// HealthRecord is the persisted form of a weather.HealthSummary.
type HealthRecord struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	TimestampUTC     time.Time `gorm:"column:timestamp_utc;not null"`
	APISuccess       int       `gorm:"column:api_success"`
	DBSuccess        int       `gorm:"column:db_success"`
	InsertOutdoor    int       `gorm:"column:insert_outdoor"`
	InsertIndoor     int       `gorm:"column:insert_indoor"`
	InsertBarometric int       `gorm:"column:insert_barometric"`
	InsertNetwork    int       `gorm:"column:insert_network"`
	SkippedInserts   int       `gorm:"column:skipped_inserts"`
	Errors           *string   `gorm:"column:errors"`
}

// TableName specifies the table name for HealthRecord.
func (HealthRecord) TableName() string {
	return "system_health"
}

func newHealthRecord(s weather.HealthSummary) HealthRecord {
	return HealthRecord{
		TimestampUTC:     s.Timestamp.UTC(),
		APISuccess:       s.APISuccess,
		DBSuccess:        s.DBSuccess,
		InsertOutdoor:    s.InsertOutdoor,
		InsertIndoor:     s.InsertIndoor,
		InsertBarometric: s.InsertBarometric,
		InsertNetwork:    s.InsertNetwork,
		SkippedInserts:   s.SkippedInserts,
		Errors:           s.Errors,
	}
}

func (r HealthRecord) summary() weather.HealthSummary {
	return weather.HealthSummary{
		Timestamp:        r.TimestampUTC.UTC(),
		APISuccess:       r.APISuccess,
		DBSuccess:        r.DBSuccess,
		InsertOutdoor:    r.InsertOutdoor,
		InsertIndoor:     r.InsertIndoor,
		InsertBarometric: r.InsertBarometric,
		InsertNetwork:    r.InsertNetwork,
		SkippedInserts:   r.SkippedInserts,
		Errors:           r.Errors,
	}
}

// HealthRepository writes and lists HealthSummaries. It should sit on its own
// connection pool so a summary survives an abandoned data-path transaction.
type HealthRepository struct {
	db *gorm.DB
}

var (
	_ weather.HealthRecorder = (*HealthRepository)(nil)
	_ weather.HealthReader   = (*HealthRepository)(nil)
)

// NewHealthRepository wraps sqlDB with gorm for the given driver.
func NewHealthRepository(sqlDB *sql.DB, driver string) (*HealthRepository, error) {
	var dialector gorm.Dialector
	switch driver {
	case driverMySQL:
		dialector = gormmysql.New(gormmysql.Config{
			Conn:                      sqlDB,
			SkipInitializeWithVersion: true,
		})
	case driverSQLite:
		dialector = &gormsqlite.Dialector{DriverName: driverSQLite, Conn: sqlDB}
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open health repository: %w", err)
	}
	return &HealthRepository{db: db}, nil
}

// RecordHealth inserts one summary row and commits it.
func (r *HealthRepository) RecordHealth(ctx context.Context, summary weather.HealthSummary) error {
	rec := newHealthRecord(summary)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert system_health: %w", err)
	}
	return nil
}

// RecentHealth returns up to limit summaries, newest first.
func (r *HealthRepository) RecentHealth(ctx context.Context, limit int) ([]weather.HealthSummary, error) {
	var recs []HealthRecord
	err := r.db.WithContext(ctx).
		Order("timestamp_utc DESC").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list system_health: %w", err)
	}

	out := make([]weather.HealthSummary, len(recs))
	for i, rec := range recs {
		out[i] = rec.summary()
	}
	return out, nil
}
