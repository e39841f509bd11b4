package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hungkhanh0709/trading-filter/internal/config"
	ws "github.com/hungkhanh0709/trading-filter/internal/websocket"
)

// HealthService answers the liveness, readiness, and version probes.
// Readiness checks the collaborators the service cannot work without:
// the data directory and the analyzer script.
type HealthService struct {
	version     string
	buildTime   string
	paths       *config.Paths
	analysisCfg config.AnalysisConfig
	hub         *ws.Hub
	startTime   time.Time
	logger      *slog.Logger
}

// HealthStatus is the response shape of the health endpoints.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth is one collaborator's readiness.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats summarizes the process and its data footprint.
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	DataFiles        int     `json:"data_files"`
	DataSizeBytes    int64   `json:"data_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service.
func NewHealthService(version, buildTime string, paths *config.Paths, analysisCfg config.AnalysisConfig, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:     version,
		buildTime:   buildTime,
		paths:       paths,
		analysisCfg: analysisCfg,
		hub:         hub,
		startTime:   time.Now(),
		logger:      logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck reports overall status.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck verifies every collaborator and reports not_ready if
// any of them is.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data":      hs.checkDataDir(),
			"analyzer":  hs.checkAnalyzerScript(),
			"websocket": hs.checkHub(),
		},
	}

	for _, svc := range status.Services {
		if svc.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck reports that the process is running, with runtime stats.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version reports build and runtime version information.
func (hs *HealthService) Version() map[string]interface{} {
	info := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		info["build_time"] = hs.buildTime
	}
	return info
}

// SystemStats walks the data directory and reports its footprint.
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var files int
	var size int64

	filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
			size += info.Size()
		}
		return nil
	})

	return SystemStats{
		UptimeSeconds:    time.Since(hs.startTime).Seconds(),
		DataFiles:        files,
		DataSizeBytes:    size,
		WebSocketClients: hs.hub.ClientCount(),
		GoVersion:        runtime.Version(),
		OS:               runtime.GOOS,
		Arch:             runtime.GOARCH,
	}, nil
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	if err := os.MkdirAll(hs.paths.DataDir, 0755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory is not writable: %v", err),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Data directory is accessible"}
}

func (hs *HealthService) checkAnalyzerScript() ServiceHealth {
	scriptPath := hs.paths.ScriptPath(hs.analysisCfg.AnalyzeScript)
	if !config.FileExists(scriptPath) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Analyzer script not found: %s", scriptPath),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Analyzer script is installed"}
}

func (hs *HealthService) checkHub() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "not_ready", Message: "WebSocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("WebSocket hub running with %d clients", hs.hub.ClientCount()),
	}
}
