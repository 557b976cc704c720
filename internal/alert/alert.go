package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"healthmonitor/internal/models"
	"healthmonitor/internal/store"
)

const dispatchTimeout = 10 * time.Second

// State tracks what has already been alerted. It is owned by the alerter and
// mutated only from the scheduler's single loop goroutine, so it needs no
// locking. It resets on process restart.
type State struct {
	LastAlertedStatus        models.OverallStatus
	LastAlertedAt            time.Time
	ConsecutiveDegradedTicks int
}

// Decision describes the outcome of one Consider evaluation.
type Decision struct {
	Dispatched bool
	Kind       string
	Reason     string
}

// Alerter dispatches webhook notifications when overall status degrades,
// suppressing duplicates within a cooldown window.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	audit      store.Store
	now        func() time.Time

	state State
}

// New creates an alerter posting to webhookURL. An empty URL disables
// dispatching; decisions are then only logged. The audit store may be nil.
func New(webhookURL string, cooldown time.Duration, audit store.Store) *Alerter {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: dispatchTimeout},
		audit:      audit,
		now:        time.Now,
	}
}

// State returns a copy of the current alert state.
func (a *Alerter) State() State { return a.state }

// Consider evaluates one record and dispatches a notification when the
// status change or cooldown rules call for it. A dispatch failure is logged
// and leaves the state unchanged, so the next qualifying tick retries
// naturally.
func (a *Alerter) Consider(ctx context.Context, record models.HealthRecord) Decision {
	if record.Overall == models.Healthy {
		a.state.ConsecutiveDegradedTicks = 0
		if a.state.LastAlertedStatus == models.Healthy {
			return Decision{Reason: "healthy, nothing alerted previously"}
		}
		return a.dispatch(ctx, record, models.AlertKindRecovered, "recovered")
	}

	a.state.ConsecutiveDegradedTicks++

	if record.Overall == a.state.LastAlertedStatus && a.now().Sub(a.state.LastAlertedAt) < a.cooldown {
		return Decision{Reason: "suppressed: same status within cooldown"}
	}
	return a.dispatch(ctx, record, models.AlertKindProblem, "status degraded")
}

func (a *Alerter) dispatch(ctx context.Context, record models.HealthRecord, kind, reason string) Decision {
	message := summarize(record)

	if a.webhookURL == "" {
		log.Printf("alert (%s, no webhook configured): %s", kind, message)
	} else if err := a.post(ctx, record); err != nil {
		log.Printf("alert dispatch failed: %v", err)
		return Decision{Kind: kind, Reason: "dispatch failed: " + err.Error()}
	}

	a.state.LastAlertedStatus = record.Overall
	a.state.LastAlertedAt = a.now()

	if a.audit != nil {
		event := models.AlertEvent{
			Timestamp: record.Timestamp,
			Status:    record.Overall,
			Kind:      kind,
			Message:   message,
		}
		if err := a.audit.RecordAlert(event); err != nil {
			log.Printf("record alert audit: %v", err)
		}
	}
	return Decision{Dispatched: true, Kind: kind, Reason: reason}
}

// webhookPayload is the wire format of an outbound notification.
type webhookPayload struct {
	OverallStatus string         `json:"overall_status"`
	Timestamp     string         `json:"timestamp"`
	Probes        []webhookProbe `json:"probes"`
}

type webhookProbe struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func (a *Alerter) post(ctx context.Context, record models.HealthRecord) error {
	payload := webhookPayload{
		OverallStatus: record.Overall.String(),
		Timestamp:     record.Timestamp.UTC().Format(time.RFC3339),
		Probes:        make([]webhookProbe, 0, len(record.Probes)),
	}
	for _, p := range record.Probes {
		payload.Probes = append(payload.Probes, webhookProbe{
			Name:   p.Name,
			Status: p.Status.String(),
			Detail: p.Detail,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", response.StatusCode)
	}
	return nil
}

func summarize(record models.HealthRecord) string {
	if record.Overall == models.Healthy {
		return "all probes passing"
	}
	var parts []string
	for _, p := range record.Probes {
		if p.Status == models.ProbeOK {
			continue
		}
		part := p.Name + " " + p.Status.String()
		if p.Detail != "" {
			part += ": " + p.Detail
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
