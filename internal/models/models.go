package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProbeStatus is the outcome of a single probe invocation.
type ProbeStatus int

const (
	ProbeOK ProbeStatus = iota
	ProbeDegraded
	ProbeFailed
)

// String returns the wire representation of the status.
func (s ProbeStatus) String() string {
	switch s {
	case ProbeOK:
		return "ok"
	case ProbeDegraded:
		return "degraded"
	case ProbeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s ProbeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form back into a status.
func (s *ProbeStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "ok":
		*s = ProbeOK
	case "degraded":
		*s = ProbeDegraded
	case "failed":
		*s = ProbeFailed
	default:
		return fmt.Errorf("unknown probe status %q", raw)
	}
	return nil
}

// OverallStatus is the aggregated health of the monitored system.
type OverallStatus int

const (
	Healthy OverallStatus = iota
	Warning
	Critical
)

// String returns the wire representation of the status.
func (s OverallStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s OverallStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form back into a status.
func (s *OverallStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "healthy":
		*s = Healthy
	case "warning":
		*s = Warning
	case "critical":
		*s = Critical
	default:
		return fmt.Errorf("unknown overall status %q", raw)
	}
	return nil
}

// ProbeResult captures the outcome of one probe run.
type ProbeResult struct {
	Name    string        `json:"name"`
	Status  ProbeStatus   `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthRecord stores the results of all probes at a moment in time.
// One record exists per scheduler tick and is never mutated afterwards.
type HealthRecord struct {
	Timestamp    time.Time     `json:"timestamp"`
	Overall      OverallStatus `json:"overall_status"`
	Probes       []ProbeResult `json:"probes"`
	TickDuration time.Duration `json:"tick_duration"`
}

// AlertEvent records a dispatched alert for audit purposes.
type AlertEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Status    OverallStatus `json:"status"`
	Kind      string        `json:"kind"`
	Message   string        `json:"message,omitempty"`
}

// Alert event kinds.
const (
	AlertKindProblem   = "problem"
	AlertKindRecovered = "recovered"
)
