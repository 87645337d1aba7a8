// ============================================
// File: internal/storage/postgres/postgres.go
// ============================================
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"uusd-router/internal/storage"
	"uusd-router/internal/storage/models"
)

// migrationLockID is the advisory lock channel shared by all engine
// instances migrating the same database.
const migrationLockID = 101

// gormLogger bridges GORM's logger.Interface onto zap.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

// postgresStorage implements the Storage interface.
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Storage = (*postgresStorage)(nil)

// NewStorage opens a connection pool against the given DSN.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

// RunMigrations creates or updates the mirror tables via AutoMigrate,
// serialized across instances by an advisory lock.
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)

	err = p.db.AutoMigrate(
		&models.PricePoint{},
		&models.RouteAudit{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SavePricePoints inserts a batch of series points. Points already
// mirrored for the same series and block are left untouched.
func (p *postgresStorage) SavePricePoints(ctx context.Context, points []*models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(points).Error
}

// LoadPricePoints returns up to limit newest points of a series,
// oldest first.
func (p *postgresStorage) LoadPricePoints(ctx context.Context, seriesKey string, limit int) ([]*models.PricePoint, error) {
	q := p.db.WithContext(ctx).
		Where("series_key = ?", seriesKey).
		Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var points []*models.PricePoint
	if err := q.Find(&points).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (p *postgresStorage) SaveRouteAudit(ctx context.Context, audit *models.RouteAudit) error {
	return p.db.WithContext(ctx).Create(audit).Error
}

func (p *postgresStorage) RecentRouteAudits(ctx context.Context, limit int) ([]*models.RouteAudit, error) {
	var audits []*models.RouteAudit
	err := p.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&audits).Error
	return audits, err
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
