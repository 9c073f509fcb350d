package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atikulmunna/logtally/internal/model"
)

// DefaultBatchSize is the number of rows sent per INSERT.
const DefaultBatchSize = 500

// WebLog is one row of the web_logs table.
type WebLog struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	IP        string `gorm:"column:ip;type:varchar(64)"`
	Timestamp string `gorm:"column:ts;type:varchar(32)"`
	URL       string `gorm:"column:url;type:varchar(2048)"`
	Status    int    `gorm:"column:status;index"`
	UserAgent string `gorm:"column:user_agent;type:varchar(1024)"`
	RunID     string `gorm:"column:run_id;type:varchar(36);index"`
}

// TableName specifies the table name
func (WebLog) TableName() string {
	return "web_logs"
}

// StatusCount is one row of the GROUP BY status query.
type StatusCount struct {
	Status int
	Count  int64
}

// Store loads records into the web_logs table.
type Store struct {
	db        *gorm.DB
	runID     string
	batchSize int
}

// Open connects to driver ("sqlite" or "mysql") using dsn.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var gormLogger logger.Interface
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gormLogger = logger.Default.LogMode(logger.Silent)
	} else {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	log.Info().Str("driver", driver).Msg("database connected")
	return New(db), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, batchSize: DefaultBatchSize}
}

// WithRunID tags every row written afterwards with id.
func (s *Store) WithRunID(id string) *Store {
	s.runID = id
	return s
}

// Migrate creates or updates the web_logs table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&WebLog{})
}

// Insert writes records in batches.
func (s *Store) Insert(ctx context.Context, records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]WebLog, 0, len(records))
	for _, r := range records {
		rows = append(rows, WebLog{
			IP:        r.IP,
			Timestamp: r.Timestamp,
			URL:       r.URL,
			Status:    r.Status,
			UserAgent: r.UserAgent,
			RunID:     s.runID,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, s.batchSize).Error
}

// Consume reads records until the channel closes, inserting a batch at a time.
func (s *Store) Consume(ctx context.Context, records <-chan model.LogRecord) error {
	batch := make([]model.LogRecord, 0, s.batchSize)
	var total int

	flush := func() error {
		if err := s.Insert(ctx, batch); err != nil {
			return fmt.Errorf("insert web_logs: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-records:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				log.Debug().Int("rows", total).Str("run_id", s.runID).Msg("web_logs loaded")
				return nil
			}
			batch = append(batch, r)
			if len(batch) >= s.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// StatusCounts returns the number of rows per status, ascending by status.
// With a run ID set, only that run's rows are counted.
func (s *Store) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	query := s.db.WithContext(ctx).Model(&WebLog{})
	if s.runID != "" {
		query = query.Where("run_id = ?", s.runID)
	}
	err := query.
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
