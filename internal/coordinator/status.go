package coordinator

import (
	"context"

	"github.com/joescharf/sessionhub/internal/models"
)

// GetStatus aggregates a point-in-time snapshot of the active sessions.
func (s *Service) GetStatus(_ context.Context) *Response {
	return succeed(nil, "Status retrieved successfully", Aggregate(s.registry.SnapshotActive()))
}

// Aggregate computes the status counters over records. Sessions are grouped
// by platform display name.
func Aggregate(records []models.SessionRecord) StatusData {
	data := StatusData{
		ActiveSessions:       len(records),
		PlatformDistribution: make(map[string]int),
		SystemReady:          true,
	}
	for _, rec := range records {
		if rec.Project.Compilation.IsSuccess() {
			data.CompilationSuccessCount++
		}
		if rec.Deployed() {
			data.DeploymentSuccessCount++
		}
		data.PlatformDistribution[rec.Platform.DisplayName()]++
	}
	return data
}
