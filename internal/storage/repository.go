package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository provides database operations.
type Repository struct {
	db *gorm.DB
}

// PoolOptions tunes the connection pool. Zero values keep the driver defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewRepository creates a new repository with the given DSN.
func NewRepository(dsn string, pool PoolOptions) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(&Run{}, &Snapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Run operations

// CreateRun creates a new run record.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateRun updates a run record.
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	return r.db.WithContext(ctx).Omit("Snapshots").Save(run).Error
}

// GetRun retrieves a run with its snapshots.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.WithContext(ctx).Preload("Snapshots").First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &run, err
}

// ListRuns lists runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

// Snapshot operations

// SaveSnapshots stores a run's snapshots in one batch.
func (r *Repository) SaveSnapshots(ctx context.Context, snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(snapshots, 100).Error
}

// LatestSnapshot retrieves the most recent snapshot for a symbol.
func (r *Repository) LatestSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var snap Snapshot
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("computed_at DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &snap, err
}

// ListSnapshots lists a symbol's snapshots, newest first.
func (r *Repository) ListSnapshots(ctx context.Context, symbol string, limit int) ([]Snapshot, error) {
	var snaps []Snapshot
	query := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("computed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&snaps).Error
	return snaps, err
}
