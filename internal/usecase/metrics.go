package usecase

import (
	"context"

	"github.com/example/colorize/internal/logging"
)

// MetricsSummary represents aggregated colorization insights.
type MetricsSummary struct {
	TotalRequests         int64   `json:"total_requests"`
	SuccessfulRequests    int64   `json:"successful_requests"`
	FailedRequests        int64   `json:"failed_requests"`
	SuccessRate           float64 `json:"success_rate"`
	AverageColorizeTimeMs float64 `json:"average_colorize_time_ms"`
}

// GetMetricsSummary aggregates colorization metrics from persisted jobs.
func (uc *ColorizationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrLedgerDisabled
	}

	opLogger := withSubject(ctx, logging.WithOperation(uc.logger, "usecase.metrics_summary", ""))
	opLogger.Info("metrics summary requested")

	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:         aggregation.TotalCount,
		SuccessfulRequests:    aggregation.SuccessCount,
		FailedRequests:        aggregation.TotalCount - aggregation.SuccessCount,
		AverageColorizeTimeMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
