package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/storage"
)

// Repository implements storage.Store using SQLite.
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository.
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.ProcessedURL{},
		&models.SeoReport{},
	)
}

// Close closes the database connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) HasProcessed(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedURL{}).
		Where("url = ?", url).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Mark inserts a terminal outcome. The unique index on url plus the
// do-nothing conflict clause makes repeated marks no-ops.
func (r *Repository) Mark(ctx context.Context, rec *models.ProcessedURL) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

func (r *Repository) ProcessedURLs(ctx context.Context) (map[string]bool, error) {
	var urls []string
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedURL{}).
		Pluck("url", &urls).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set, nil
}

// LastPublished derives the cadence marker from the processed table: the
// newest row with the processed status. Monotonic by construction since
// rows are append-only.
func (r *Repository) LastPublished(ctx context.Context, topicID string) (*time.Time, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ProcessedURL{}).
		Where("status = ?", models.StatusProcessed)
	if topicID != "" {
		query = query.Where("topic_id = ?", topicID)
	}

	var rec models.ProcessedURL
	err := query.Order("created_at DESC").First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	t := rec.CreatedAt
	return &t, nil
}

func (r *Repository) PublishedCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedURL{}).
		Where("status = ?", models.StatusProcessed).
		Count(&count).Error
	return count, err
}

func (r *Repository) RecordSeoReport(ctx context.Context, report *models.SeoReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *Repository) QueryReports(ctx context.Context, filter storage.ReportFilter) ([]models.ReportRow, error) {
	query := r.db.WithContext(ctx).
		Table("seo_reports sr").
		Select(`sr.topic_id, sr.url, sr.content_score, sr.headline_score,
			sr.verdict, sr.created_at,
			COALESCE(pu.title, '') AS title, COALESCE(pu.status, '') AS status`).
		Joins("LEFT JOIN processed_urls pu ON pu.url = sr.url")

	if filter.TopicID != "" {
		query = query.Where("sr.topic_id = ?", filter.TopicID)
	}
	if filter.OnlyFailed {
		query = query.Where("pu.status = ?", models.StatusSeoFailed)
	}
	if filter.Since != nil {
		query = query.Where("sr.created_at >= ?", *filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows []models.ReportRow
	err := query.Order("sr.created_at DESC").Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Ensure Repository implements storage.Store
var _ storage.Store = (*Repository)(nil)
