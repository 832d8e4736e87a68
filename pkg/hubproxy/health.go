package hubproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// TargetHealth is one upstream's entry in the aggregated health report.
type TargetHealth struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// HealthReport is the body of GET /api/health.
type HealthReport struct {
	Hub     TargetHealth `json:"hub"`
	Gateway TargetHealth `json:"gateway"`
}

// Check queries both upstream health endpoints, one after the other, without retry.
func (p *Proxy) Check(ctx context.Context) HealthReport {
	return HealthReport{
		Hub:     p.checkTarget(ctx, p.hub, p.hubPaths.Health),
		Gateway: p.checkTarget(ctx, p.gateway, p.gatewayPaths.Health),
	}
}

func (p *Proxy) checkTarget(ctx context.Context, t *Target, path string) TargetHealth {
	if !t.Configured() {
		return TargetHealth{Detail: "not configured"}
	}
	u, err := t.endpoint(path, "")
	if err != nil {
		return TargetHealth{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return TargetHealth{Detail: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.health.Do(req)
	if err != nil {
		return TargetHealth{Detail: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	h := TargetHealth{Status: resp.StatusCode, OK: resp.StatusCode >= 200 && resp.StatusCode < 300}
	if !h.OK {
		h.Detail = fmt.Sprintf("%s health returned %d", t.Name, resp.StatusCode)
	}
	return h
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w, []string{http.MethodGet})
		return
	}

	report := p.Check(context.WithoutCancel(r.Context()))
	p.logger.Debug("Upstream health checked",
		"hub_ok", report.Hub.OK,
		"gateway_ok", report.Gateway.OK)
	WriteJSON(w, http.StatusOK, report)
}
