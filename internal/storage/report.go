package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// ErrNotFound is returned for unknown or deleted reports
var ErrNotFound = errors.New("report not found")

// Report is a persisted wizard state
type Report struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Owner     string         `gorm:"index;not null" json:"owner"`
	Title     string         `gorm:"not null" json:"title"`
	Step      int            `gorm:"not null;default:1" json:"step"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName pins the table name
func (Report) TableName() string {
	return "reports"
}

// ReportStore reads and writes reports
type ReportStore struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewReportStore creates a report store
func NewReportStore(db *gorm.DB, cat *catalog.Catalog, logger *zap.Logger) *ReportStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportStore{db: db, catalog: cat, logger: logger}
}

// Migrate creates the reports table
func (s *ReportStore) Migrate() error {
	return Migrate(s.db, &Report{})
}

// Create persists a new report and returns its id
func (s *ReportStore) Create(ctx context.Context, owner string, rc *models.ReportContext) (uuid.UUID, error) {
	data, err := rc.Snapshot()
	if err != nil {
		return uuid.Nil, err
	}

	r := &Report{
		ID:    uuid.New(),
		Owner: owner,
		Title: rc.Title(),
		Step:  rc.Step,
		Data:  datatypes.JSON(data),
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.Info("report created", zap.String("report_id", r.ID.String()), zap.String("owner", owner))
	return r.ID, nil
}

// Get returns the stored record of a report
func (s *ReportStore) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	var r Report
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return &r, nil
}

// Load returns the wizard state of a report
func (s *ReportStore) Load(ctx context.Context, id uuid.UUID) (*models.ReportContext, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(r.Data) == 0 {
		rc := models.NewReportContext(s.catalog)
		rc.Step = r.Step
		return rc, nil
	}
	return models.RestoreReportContext(r.Data, s.catalog)
}

// Save overwrites title, step and data. The last write wins.
func (s *ReportStore) Save(ctx context.Context, id uuid.UUID, rc *models.ReportContext) error {
	data, err := rc.Snapshot()
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&Report{}).Where("id = ?", id).Updates(map[string]any{
		"title": rc.Title(),
		"step":  rc.Step,
		"data":  datatypes.JSON(data),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to save report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes a report
func (s *ReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&Report{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Info("report deleted", zap.String("report_id", id.String()))
	return nil
}

// List returns the live reports of an owner, most recently updated first
func (s *ReportStore) List(ctx context.Context, owner string) ([]models.ReportSummary, error) {
	var rows []Report
	err := s.db.WithContext(ctx).
		Select("id", "title", "step", "updated_at").
		Where("owner = ?", owner).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]models.ReportSummary, len(rows))
	for i, r := range rows {
		out[i] = models.ReportSummary{
			ID:        r.ID.String(),
			Title:     r.Title,
			Step:      r.Step,
			UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
		}
	}
	return out, nil
}
