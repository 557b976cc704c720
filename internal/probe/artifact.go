package probe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"healthmonitor/internal/models"
)

// ArtifactProbe checks that a set of expected local files exists and is
// readable.
type ArtifactProbe struct {
	name  string
	paths []string
}

// NewArtifactProbe creates a probe over the given paths.
func NewArtifactProbe(name string, paths []string) *ArtifactProbe {
	return &ArtifactProbe{name: name, paths: paths}
}

// Name returns the probe name.
func (p *ArtifactProbe) Name() string { return p.name }

// Check opens every configured path. All readable is ok, a partial set
// missing is degraded, none readable is failed.
func (p *ArtifactProbe) Check(ctx context.Context) models.ProbeResult {
	start := time.Now()
	res := models.ProbeResult{Name: p.name}

	if len(p.paths) == 0 {
		res.Status = models.ProbeFailed
		res.Detail = "no artifact paths configured"
		res.Latency = time.Since(start)
		return res
	}

	var missing []string
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			res.Status = models.ProbeFailed
			res.Detail = "artifact check cancelled"
			res.Latency = time.Since(start)
			return res
		}
		if err := checkReadable(path); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", path, err))
		}
	}
	res.Latency = time.Since(start)

	switch {
	case len(missing) == 0:
		res.Status = models.ProbeOK
	case len(missing) < len(p.paths):
		res.Status = models.ProbeDegraded
		res.Detail = "missing artifacts: " + strings.Join(missing, ", ")
	default:
		res.Status = models.ProbeFailed
		res.Detail = "no artifacts accessible: " + strings.Join(missing, ", ")
	}
	return res
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
