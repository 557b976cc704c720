package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"healthmonitor/internal/alert"
	"healthmonitor/internal/models"
	"healthmonitor/internal/probe"
)

type stubStore struct {
	mu         sync.Mutex
	records    []models.HealthRecord
	alerts     []models.AlertEvent
	failAppend bool
}

func (s *stubStore) Append(record models.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return errors.New("disk full")
	}
	s.records = append(s.records, record)
	return nil
}

func (s *stubStore) QuerySince(since time.Time) ([]models.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HealthRecord
	for _, r := range s.records {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) Latest() (models.HealthRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return models.HealthRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

func (s *stubStore) RecordAlert(event models.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, event)
	return nil
}

func (s *stubStore) AlertsSince(since time.Time) ([]models.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AlertEvent, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func staticProbe(name string, status models.ProbeStatus, detail string) probe.Probe {
	return probe.NewFunc(name, func(ctx context.Context) models.ProbeResult {
		return models.ProbeResult{Name: name, Status: status, Detail: detail, Latency: time.Millisecond}
	})
}

type countingWebhook struct {
	srv *httptest.Server

	mu       sync.Mutex
	payloads []map[string]any
}

func newCountingWebhook(t *testing.T) *countingWebhook {
	t.Helper()
	w := &countingWebhook{}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.mu.Lock()
		w.payloads = append(w.payloads, payload)
		w.mu.Unlock()
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *countingWebhook) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_RequiresProbes(t *testing.T) {
	_, err := New(Config{}, nil, &stubStore{}, nil)
	if !errors.Is(err, ErrNoProbes) {
		t.Fatalf("New error = %v, want ErrNoProbes", err)
	}
}

func TestRunOnce_AllOK(t *testing.T) {
	st := &stubStore{}
	m, err := New(Config{}, []probe.Probe{
		staticProbe("endpoint", models.ProbeOK, ""),
		staticProbe("artifacts", models.ProbeOK, ""),
		staticProbe("dependency", models.ProbeOK, ""),
	}, st, nil)
	if err != nil {
		t.Fatal(err)
	}

	record, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Overall != models.Healthy {
		t.Errorf("overall = %v, want healthy", record.Overall)
	}
	if record.TickDuration <= 0 {
		t.Error("tick duration not measured")
	}

	// Probe order in the record matches configuration order.
	wantOrder := []string{"endpoint", "artifacts", "dependency"}
	for i, want := range wantOrder {
		if record.Probes[i].Name != want {
			t.Errorf("probe[%d] = %q, want %q", i, record.Probes[i].Name, want)
		}
	}
	if st.count() != 1 {
		t.Errorf("stored %d records, want 1", st.count())
	}
}

func TestRunOnce_PanicContained(t *testing.T) {
	st := &stubStore{}
	panicking := probe.NewFunc("broken", func(ctx context.Context) models.ProbeResult {
		panic("nil map write")
	})
	m, err := New(Config{}, []probe.Probe{
		panicking,
		staticProbe("artifacts", models.ProbeOK, ""),
	}, st, nil)
	if err != nil {
		t.Fatal(err)
	}

	record, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Overall != models.Critical {
		t.Errorf("overall = %v, want critical", record.Overall)
	}
	if record.Probes[0].Status != models.ProbeFailed {
		t.Errorf("panicking probe status = %v, want failed", record.Probes[0].Status)
	}
	if !strings.Contains(record.Probes[0].Detail, "panicked") {
		t.Errorf("detail %q should mention the panic", record.Probes[0].Detail)
	}
	if record.Probes[1].Status != models.ProbeOK {
		t.Error("panic in one probe affected another probe's result")
	}
}

func TestRunOnce_HangingProbeCutAtDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	hanging := probe.NewFunc("stuck", func(ctx context.Context) models.ProbeResult {
		<-release // ignores ctx entirely
		return models.ProbeResult{Name: "stuck", Status: models.ProbeOK}
	})

	st := &stubStore{}
	m, err := New(Config{ProbeTimeout: 30 * time.Millisecond, TickDeadline: 100 * time.Millisecond},
		[]probe.Probe{hanging, staticProbe("artifacts", models.ProbeOK, "")}, st, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	record, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("tick took %v despite deadline", elapsed)
	}
	if record.Probes[0].Status != models.ProbeFailed || record.Probes[0].Detail != "probe timed out" {
		t.Errorf("hanging probe result = %+v, want failed timeout", record.Probes[0])
	}
	if record.Probes[1].Status != models.ProbeOK {
		t.Error("hanging probe stalled an independent probe")
	}
}

func TestRunOnce_StoreFailureStillAlerts(t *testing.T) {
	hook := newCountingWebhook(t)
	st := &stubStore{failAppend: true}
	alerter := alert.New(hook.srv.URL, time.Hour, nil)

	m, err := New(Config{}, []probe.Probe{
		staticProbe("endpoint", models.ProbeFailed, "request timed out"),
	}, st, alerter)
	if err != nil {
		t.Fatal(err)
	}

	record, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Overall != models.Critical {
		t.Errorf("overall = %v, want critical", record.Overall)
	}
	if hook.count() != 1 {
		t.Errorf("webhook received %d calls despite store failure, want 1", hook.count())
	}
}

// Scenario: the endpoint probe times out while artifact and dependency
// probes pass; the tick is critical and the single alert names the timeout.
func TestScenario_EndpointTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "report.json")
	if err := os.WriteFile(artifact, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	hook := newCountingWebhook(t)
	st := &stubStore{}
	alerter := alert.New(hook.srv.URL, time.Hour, nil)

	m, err := New(Config{ProbeTimeout: 50 * time.Millisecond, TickDeadline: 500 * time.Millisecond},
		[]probe.Probe{
			probe.NewEndpointProbe("endpoint", slow.URL),
			probe.NewArtifactProbe("artifacts", []string{artifact}),
			probe.NewDependencyProbe("dependency", ln.Addr().String(), time.Second),
		}, st, alerter)
	if err != nil {
		t.Fatal(err)
	}

	record, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if record.Overall != models.Critical {
		t.Fatalf("overall = %v, want critical", record.Overall)
	}
	if !strings.Contains(record.Probes[0].Detail, "timed out") {
		t.Errorf("endpoint detail %q should mention the timeout", record.Probes[0].Detail)
	}
	if record.Probes[1].Status != models.ProbeOK || record.Probes[2].Status != models.ProbeOK {
		t.Error("artifact/dependency probes should pass")
	}
	if hook.count() != 1 {
		t.Errorf("webhook received %d calls, want 1", hook.count())
	}
}

// Scenario: ten consecutive all-OK ticks store ten healthy records and
// dispatch no alerts. The loop is driven by an injected ticker.
func TestScenario_SustainedHealthy(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}))
	defer ok.Close()

	hook := newCountingWebhook(t)
	st := &stubStore{}
	alerter := alert.New(hook.srv.URL, time.Hour, nil)

	m, err := New(Config{Interval: time.Hour}, []probe.Probe{
		probe.NewEndpointProbe("endpoint", ok.URL),
	}, st, alerter)
	if err != nil {
		t.Fatal(err)
	}

	tickCh := make(chan time.Time)
	m.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return tickCh, func() {}
	}

	m.Start()
	defer m.Stop()

	// First tick is immediate; drive nine more.
	for i := 0; i < 9; i++ {
		tickCh <- time.Now()
	}
	waitFor(t, 5*time.Second, "10 stored records", func() bool { return st.count() == 10 })

	records, _ := st.QuerySince(time.Time{})
	for i, r := range records {
		if r.Overall != models.Healthy {
			t.Errorf("record %d overall = %v, want healthy", i, r.Overall)
		}
	}
	if hook.count() != 0 {
		t.Errorf("webhook received %d calls, want 0", hook.count())
	}
}

// Scenario: the endpoint answers HTTP 500. The probe degrades, the tick is a
// warning, and repeated identical ticks inside the cooldown alert only once.
func TestScenario_EndpointServerError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	hook := newCountingWebhook(t)
	st := &stubStore{}
	alerter := alert.New(hook.srv.URL, time.Hour, nil)

	m, err := New(Config{}, []probe.Probe{
		probe.NewEndpointProbe("endpoint", failing.URL),
	}, st, alerter)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		record, err := m.RunOnce(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if record.Overall != models.Warning {
			t.Fatalf("tick %d overall = %v, want warning", i, record.Overall)
		}
		if record.Probes[0].Status != models.ProbeDegraded {
			t.Fatalf("tick %d probe status = %v, want degraded", i, record.Probes[0].Status)
		}
	}
	if hook.count() != 1 {
		t.Errorf("webhook received %d calls across identical warning ticks, want 1", hook.count())
	}
}

func TestStop_CancelsInFlightProbe(t *testing.T) {
	started := make(chan struct{})
	blocking := probe.NewFunc("slow", func(ctx context.Context) models.ProbeResult {
		close(started)
		<-ctx.Done()
		return models.ProbeResult{Name: "slow", Status: models.ProbeFailed, Detail: "cancelled"}
	})

	st := &stubStore{}
	m, err := New(Config{ProbeTimeout: time.Minute, TickDeadline: time.Minute},
		[]probe.Probe{blocking}, st, nil)
	if err != nil {
		t.Fatal(err)
	}

	m.Start()
	<-started

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the in-flight probe")
	}

	// Stop is idempotent.
	m.Stop()
}
