package app

import (
	"context"
	"fmt"
	"time"

	"scriptlib/internal/shared/observability"
)

// Health reports the state served on the observability endpoint.
func (a *App) Health(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		StartedAt:  a.startedAt,
		Builds:     a.builds.Load(),
		Components: make(map[string]string),
	}

	a.lastErrMu.Lock()
	status.LastError = a.lastErr
	a.lastErrMu.Unlock()
	if status.LastError != "" {
		status.Status = "degraded"
	}

	if a.ledger != nil {
		if _, err := a.ledger.RecentRuns(1); err != nil {
			status.Status = "degraded"
			status.Components["ledger"] = fmt.Sprintf("error: %v", err)
		} else {
			status.Components["ledger"] = "ok"
		}
	} else if a.config().DB.Enabled {
		status.Status = "degraded"
		status.Components["ledger"] = "missing but enabled in config"
	}

	if a.extractor != nil {
		status.Components["parser"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	if err := ctx.Err(); err != nil {
		status.Status = "degraded"
		status.Components["context"] = err.Error()
	}
	return status
}
