package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/lazear/census2csv/pkg/contracts"
)

// TotalsProvider exposes running conversion counters
type TotalsProvider interface {
	Totals() ConversionTotals
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	converter TotalsProvider
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. converter may be nil.
func NewHealthService(version, buildTime string, converter TotalsProvider, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		converter: converter,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health")),
	}
}

// HealthCheck reports liveness, runtime figures and conversion totals
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
		Services: map[string]interface{}{
			"converter": hs.checkConverter(),
		},
	}

	if hs.converter != nil {
		status.Services["totals"] = hs.converter.Totals()
	}
	if sh, ok := status.Services["converter"].(ServiceHealth); ok && sh.Status != "ready" {
		status.Status = "degraded"
	}

	hs.logger.DebugContext(ctx, "Health check completed", slog.String("status", status.Status))
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":     hs.version,
		"go_version":  runtime.Version(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"start_time":  hs.startTime.Format(time.RFC3339),
		"git_commit":  contracts.GitCommit,
		"data_format": contracts.DataFormatVersion,
		"api_version": contracts.APIVersion,
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkConverter() ServiceHealth {
	if hs.converter == nil {
		return ServiceHealth{Status: "not_ready", Message: "conversion service not initialized"}
	}
	return ServiceHealth{Status: "ready"}
}
