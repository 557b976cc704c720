package metrics

import (
	"math"
	"sort"
	"time"

	"healthmonitor/internal/models"
)

// ProbeUptime summarises the health of one probe across stored history.
type ProbeUptime struct {
	Name          string  `json:"name"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int     `json:"total_checks"`
	Passing       int     `json:"passing"`
	Degraded      int     `json:"degraded"`
	Failing       int     `json:"failing"`
	LastStatus    string  `json:"last_status,omitempty"`
	LastChecked   string  `json:"last_checked,omitempty"`
}

// ComputeProbeUptime aggregates per-probe uptime statistics from history
// records. Only fully passing checks count towards uptime.
func ComputeProbeUptime(records []models.HealthRecord) []ProbeUptime {
	type acc struct {
		passing    int
		degraded   int
		failing    int
		lastStatus models.ProbeStatus
		lastTime   time.Time
	}
	state := make(map[string]*acc)
	for _, record := range records {
		for _, result := range record.Probes {
			probe := state[result.Name]
			if probe == nil {
				probe = &acc{}
				state[result.Name] = probe
			}
			switch result.Status {
			case models.ProbeOK:
				probe.passing++
			case models.ProbeDegraded:
				probe.degraded++
			default:
				probe.failing++
			}
			probe.lastStatus = result.Status
			probe.lastTime = record.Timestamp
		}
	}
	if len(state) == 0 {
		return nil
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]ProbeUptime, 0, len(names))
	for _, name := range names {
		data := state[name]
		total := data.passing + data.degraded + data.failing
		uptime := 0.0
		if total > 0 {
			uptime = float64(data.passing) / float64(total) * 100
		}

		result := ProbeUptime{
			Name:          name,
			UptimePercent: round2(uptime),
			TotalChecks:   total,
			Passing:       data.passing,
			Degraded:      data.degraded,
			Failing:       data.failing,
			LastStatus:    data.lastStatus.String(),
		}
		if !data.lastTime.IsZero() {
			result.LastChecked = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
