package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

var ErrInvalidMonth = errors.New("month must be in YYYY-MM format")

// ReportService — отчёт для админской панели.
type ReportService interface {
	// Monthly строит отчёт за месяц month (YYYY-MM); пустая строка — текущий месяц.
	Monthly(ctx context.Context, month string) (*models.MonthlyReport, error)
}

type reportService struct {
	log        *slog.Logger
	reportRepo storage.ReportStorage
	now        func() time.Time
}

func NewReportService(log *slog.Logger, reportRepo storage.ReportStorage) ReportService {
	return &reportService{log: log, reportRepo: reportRepo, now: time.Now}
}

func (s *reportService) Monthly(ctx context.Context, month string) (*models.MonthlyReport, error) {
	const op = "service.ReportService.Monthly"

	var from time.Time
	if month == "" {
		now := s.now().UTC()
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidMonth, month)
		}
		from = parsed
	}
	to := from.AddDate(0, 1, 0)

	report, err := s.reportRepo.MonthlyReport(ctx, from, to)
	if err != nil {
		s.log.Error("failed to build report", slog.String("op", op), slog.String("month", month), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to build report: %w", op, err)
	}
	return report, nil
}
