package aggregate

import (
	"errors"

	"healthmonitor/internal/models"
)

// ErrNoResults indicates an empty probe set, which is a configuration error.
var ErrNoResults = errors.New("no probe results to aggregate")

// Overall computes the aggregated status as the worst outcome among the
// results: any failed probe makes the system critical, any degraded probe
// makes it warning, otherwise it is healthy. The order of results does not
// influence the outcome.
func Overall(results []models.ProbeResult) (models.OverallStatus, error) {
	if len(results) == 0 {
		return models.Healthy, ErrNoResults
	}

	overall := models.Healthy
	for _, r := range results {
		var mapped models.OverallStatus
		switch r.Status {
		case models.ProbeOK:
			mapped = models.Healthy
		case models.ProbeDegraded:
			mapped = models.Warning
		default:
			mapped = models.Critical
		}
		if mapped > overall {
			overall = mapped
		}
	}
	return overall, nil
}
