package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"healthmonitor/internal/models"
)

// DependencyProbe checks reachability of an auxiliary subsystem by opening a
// TCP connection to its address.
type DependencyProbe struct {
	name      string
	address   string
	warnAfter time.Duration
	dialer    *net.Dialer
}

// NewDependencyProbe creates a probe against address (host or host:port; a
// bare host is probed on port 80). Connections slower than warnAfter degrade
// the result.
func NewDependencyProbe(name, address string, warnAfter time.Duration) *DependencyProbe {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, ":") {
		address = net.JoinHostPort(address, "80")
	}
	if warnAfter <= 0 {
		warnAfter = time.Second
	}
	return &DependencyProbe{
		name:      name,
		address:   address,
		warnAfter: warnAfter,
		dialer:    &net.Dialer{},
	}
}

// Name returns the probe name.
func (p *DependencyProbe) Name() string { return p.name }

// Check dials the dependency. A prompt connection is ok, a slow one is
// degraded, a dial error is failed.
func (p *DependencyProbe) Check(ctx context.Context) models.ProbeResult {
	start := time.Now()
	res := models.ProbeResult{Name: p.name}

	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	res.Latency = time.Since(start)
	if err != nil {
		res.Status = models.ProbeFailed
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = "connection timed out"
		}
		res.Detail = msg
		return res
	}
	_ = conn.Close()

	if res.Latency > p.warnAfter {
		res.Status = models.ProbeDegraded
		res.Detail = fmt.Sprintf("slow connection: %s", res.Latency.Round(time.Millisecond))
		return res
	}
	res.Status = models.ProbeOK
	return res
}
