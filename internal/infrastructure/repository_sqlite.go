package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// SQLiteSessionRepository implements SessionRepository using SQLite
type SQLiteSessionRepository struct {
	db *gorm.DB
}

// NewSQLiteSessionRepository opens (and migrates) the history database
func NewSQLiteSessionRepository(dbPath string) (*SQLiteSessionRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteSessionRepository{db: db}, nil
}

// Create stores a new session record
func (r *SQLiteSessionRepository) Create(record *domain.SessionRecord) error {
	return r.db.Create(record).Error
}

// Update saves an existing session record
func (r *SQLiteSessionRepository) Update(record *domain.SessionRecord) error {
	return r.db.Save(record).Error
}

// FindByID finds a record by session ID
func (r *SQLiteSessionRepository) FindByID(id string) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// FindRecent returns up to limit records, newest first
func (r *SQLiteSessionRepository) FindRecent(limit int) ([]*domain.SessionRecord, error) {
	var records []*domain.SessionRecord
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// FindByState returns records in the given state, newest first
func (r *SQLiteSessionRepository) FindByState(state domain.SessionState) ([]*domain.SessionRecord, error) {
	var records []*domain.SessionRecord
	err := r.db.Where("state = ?", state).Order("created_at DESC").Find(&records).Error
	return records, err
}

// Delete removes a record by ID
func (r *SQLiteSessionRepository) Delete(id string) error {
	return r.db.Delete(&domain.SessionRecord{}, "id = ?", id).Error
}

// GetStats returns per-outcome counts
func (r *SQLiteSessionRepository) GetStats() (*domain.SessionStats, error) {
	stats := &domain.SessionStats{}

	if err := r.db.Model(&domain.SessionRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.SessionState
		Count int64
	}{}

	if err := r.db.Model(&domain.SessionRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range stateCounts {
		switch sc.State {
		case domain.StateRunning:
			stats.Running = sc.Count
		case domain.StateSucceeded:
			stats.Succeeded = sc.Count
		case domain.StateFailed:
			stats.Failed = sc.Count
		case domain.StateCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// MarkInterrupted fails records left running by a previous process.
// Returns the number of rows updated.
func (r *SQLiteSessionRepository) MarkInterrupted() (int64, error) {
	res := r.db.Model(&domain.SessionRecord{}).
		Where("state = ?", domain.StateRunning).
		Updates(map[string]interface{}{
			"state":         domain.StateFailed,
			"error_message": "interrupted: application exited before the session finished",
		})
	return res.RowsAffected, res.Error
}

// Close closes the database connection
func (r *SQLiteSessionRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
