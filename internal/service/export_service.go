package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
	"github.com/noah-isme/crm-dashboard/pkg/export"
)

type datasetSource interface {
	Dataset(ctx context.Context, sessionID string, role models.Role, name string, maxRows, pageSize int) (export.Dataset, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows  int
	PageSize int
}

// ExportResult is a rendered export ready to be served as a download.
type ExportResult struct {
	FileName    string
	ContentType string
	Format      export.Format
	Rows        int
	Data        []byte
}

// ExportService renders the current query of a list screen as a file.
type ExportService struct {
	screens datasetSource
	audit   *AuditService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(screens datasetSource, audit *AuditService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &ExportService{screens: screens, audit: audit, logger: logger, cfg: cfg, now: time.Now}
}

// Export collects every page of the screen's current query, capped at MaxRows, and
// renders it in the requested format.
func (s *ExportService) Export(ctx context.Context, actor Actor, screen, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	data, err := s.screens.Dataset(ctx, actor.SessionID, actor.Identity.Role, screen, s.cfg.MaxRows, s.cfg.PageSize)
	if err != nil {
		return nil, err
	}

	payload, err := export.RendererFor(format).Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if len(data.Rows) >= s.cfg.MaxRows {
		s.logger.Info("export truncated", zap.String("screen", screen), zap.Int("max_rows", s.cfg.MaxRows))
	}
	s.audit.Record(actor.entry(models.AuditActionExport, screen, "", models.AuditOutcomeSuccess, map[string]interface{}{
		"format": string(format),
		"rows":   len(data.Rows),
	}))

	return &ExportResult{
		FileName:    format.FileName(screen, s.now()),
		ContentType: format.ContentType(),
		Format:      format,
		Rows:        len(data.Rows),
		Data:        payload,
	}, nil
}
