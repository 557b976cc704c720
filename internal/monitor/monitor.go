package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"healthmonitor/internal/aggregate"
	"healthmonitor/internal/alert"
	"healthmonitor/internal/models"
	"healthmonitor/internal/probe"
	"healthmonitor/internal/store"
)

// ErrNoProbes rejects a monitor configured without probes; an empty probe
// set would make every aggregation fail at runtime.
var ErrNoProbes = errors.New("monitor requires at least one probe")

// Config holds scheduling parameters.
type Config struct {
	// Interval between ticks. Default: 6 hours.
	Interval time.Duration
	// ProbeTimeout bounds each individual probe. Default: 10 seconds.
	ProbeTimeout time.Duration
	// TickDeadline bounds a whole tick; probes still running when it
	// elapses are recorded as failed. Default: 30 seconds.
	TickDeadline time.Duration
}

// Monitor drives the periodic probe loop and hands each tick's record to the
// store and the alerter. All aggregation, storage and alerting decisions run
// on the single loop goroutine; probes return results by value.
type Monitor struct {
	cfg     Config
	probes  []probe.Probe
	store   store.Store
	alerter *alert.Alerter

	// newTicker is swapped in tests to drive ticks without wall-clock waits.
	newTicker func(time.Duration) (<-chan time.Time, func())

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a monitor over the given probes.
func New(cfg Config, probes []probe.Probe, st store.Store, alerter *alert.Alerter) (*Monitor, error) {
	if len(probes) == 0 {
		return nil, ErrNoProbes
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.TickDeadline <= 0 {
		cfg.TickDeadline = 30 * time.Second
	}

	return &Monitor{
		cfg:     cfg,
		probes:  probes,
		store:   st,
		alerter: alerter,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start launches the monitoring loop in a goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop requests graceful loop termination and waits until it is done.
// Cancellation reaches in-flight probes, so shutdown does not wait out a
// full probe timeout.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stopCh
		cancel()
	}()

	// Immediate first tick so an operator gets a status on startup.
	if _, err := m.RunOnce(ctx); err != nil {
		log.Printf("initial check failed: %v", err)
	}

	tickCh, stopTicker := m.newTicker(m.cfg.Interval)
	defer stopTicker()

	for {
		select {
		case <-tickCh:
			if _, err := m.RunOnce(ctx); err != nil {
				log.Printf("monitor tick failed: %v", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// RunOnce executes a single tick: run all probes concurrently, aggregate,
// store and evaluate alerting. Store and alert failures are logged, never
// fatal; the in-memory record is still returned.
func (m *Monitor) RunOnce(ctx context.Context) (models.HealthRecord, error) {
	start := time.Now()

	tickCtx, cancel := context.WithTimeout(ctx, m.cfg.TickDeadline)
	defer cancel()

	results := make([]models.ProbeResult, len(m.probes))
	var g errgroup.Group
	g.SetLimit(len(m.probes))
	for i, p := range m.probes {
		i, p := i, p
		g.Go(func() error {
			results[i] = m.runProbe(tickCtx, p)
			return nil
		})
	}
	_ = g.Wait()

	overall, err := aggregate.Overall(results)
	if err != nil {
		return models.HealthRecord{}, err
	}

	record := models.HealthRecord{
		Timestamp:    start.UTC(),
		Overall:      overall,
		Probes:       results,
		TickDuration: time.Since(start),
	}

	if err := m.store.Append(record); err != nil {
		log.Printf("store health record: %v", err)
	}
	if m.alerter != nil {
		decision := m.alerter.Consider(ctx, record)
		if decision.Dispatched {
			log.Printf("alert dispatched (%s): overall %s", decision.Kind, record.Overall)
		}
	}
	return record, nil
}

// runProbe executes one probe under its own timeout. A panic inside the
// probe and a probe that outlives its deadline both surface as a failed
// result; neither aborts the tick.
func (m *Monitor) runProbe(ctx context.Context, p probe.Probe) models.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan models.ProbeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- models.ProbeResult{
					Name:    p.Name(),
					Status:  models.ProbeFailed,
					Detail:  fmt.Sprintf("probe panicked: %v", r),
					Latency: time.Since(start),
				}
			}
		}()
		resultCh <- p.Check(probeCtx)
	}()

	select {
	case res := <-resultCh:
		return res
	case <-probeCtx.Done():
		return models.ProbeResult{
			Name:    p.Name(),
			Status:  models.ProbeFailed,
			Detail:  "probe timed out",
			Latency: time.Since(start),
		}
	}
}
