package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"healthmonitor/internal/models"
)

const endpointBodyLimit = 1 << 20

// EndpointProbe checks that an HTTP endpoint responds with 200 and a JSON body.
type EndpointProbe struct {
	name   string
	url    string
	client *http.Client
}

// NewEndpointProbe creates a probe for the given URL.
func NewEndpointProbe(name, url string) *EndpointProbe {
	return &EndpointProbe{
		name:   name,
		url:    url,
		client: &http.Client{},
	}
}

// Name returns the probe name.
func (p *EndpointProbe) Name() string { return p.name }

// Check issues a GET against the endpoint. A 200 response carrying valid
// JSON is ok; any other status code or an unparsable body is degraded; a
// transport error or timeout is failed.
func (p *EndpointProbe) Check(ctx context.Context) models.ProbeResult {
	start := time.Now()
	res := models.ProbeResult{Name: p.name, Status: models.ProbeFailed}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		res.Detail = err.Error()
		res.Latency = time.Since(start)
		return res
	}

	response, err := p.client.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		res.Detail = msg
		res.Latency = time.Since(start)
		return res
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, endpointBodyLimit))
	res.Latency = time.Since(start)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		res.Detail = msg
		return res
	}

	if response.StatusCode != http.StatusOK {
		res.Status = models.ProbeDegraded
		res.Detail = fmt.Sprintf("unexpected status %d %s", response.StatusCode, http.StatusText(response.StatusCode))
		return res
	}
	if !json.Valid(body) {
		res.Status = models.ProbeDegraded
		res.Detail = "response body is not valid JSON"
		return res
	}

	res.Status = models.ProbeOK
	res.Detail = ""
	return res
}
