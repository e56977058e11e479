package report

import (
	"context"
	"fmt"

	"github.com/maraichr/ceindex/internal/config"
	"github.com/maraichr/ceindex/internal/store/minio"
)

// NewStore opens the report store selected by REPORT_SOURCE.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Compute.ReportSource {
	case config.ReportSourceMinIO:
		c, err := minio.NewClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := c.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case config.ReportSourceS3:
		return NewS3Store(ctx, cfg.S3)
	case config.ReportSourceFile:
		if cfg.Compute.ReportDir == "" {
			return nil, fmt.Errorf("REPORT_DIR is required when REPORT_SOURCE=%s", config.ReportSourceFile)
		}
		return NewFileStore(cfg.Compute.ReportDir), nil
	default:
		return nil, fmt.Errorf("unknown report source %q", cfg.Compute.ReportSource)
	}
}
