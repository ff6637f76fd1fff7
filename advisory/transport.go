package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/michaelpento.lv/flashplanner/config"
	"golang.org/x/time/rate"
)

// Stage names one step of the advisory chain
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageRisk     Stage = "risk"
	StageDecision Stage = "decision"
)

// Transport delivers one stage request to the oracle and returns its raw JSON answer
type Transport interface {
	Complete(ctx context.Context, stage Stage, payload json.RawMessage) (json.RawMessage, error)
}

// maximum accepted response body
const maxResponseBytes = 1 << 20

// HTTPTransport posts {"stage", "input"} to an oracle endpoint
type HTTPTransport struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	waitTimeout time.Duration
}

// NewHTTPTransport creates a rate limited transport for cfg.Endpoint
func NewHTTPTransport(cfg config.AdvisoryConfig) *HTTPTransport {
	return &HTTPTransport{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize),
		waitTimeout: cfg.RateLimit.WaitTimeout,
	}
}

type stageRequest struct {
	Stage Stage           `json:"stage"`
	Input json.RawMessage `json:"input"`
}

func (t *HTTPTransport) Complete(ctx context.Context, stage Stage, payload json.RawMessage) (json.RawMessage, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(stageRequest{Stage: stage, Input: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("advisory %s returned status %d: %s", stage, resp.StatusCode, bytes.TrimSpace(raw))
	}

	return json.RawMessage(raw), nil
}

func (t *HTTPTransport) wait(ctx context.Context) error {
	if t.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.waitTimeout)
		defer cancel()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("advisory rate limit: %w", err)
	}
	return nil
}

// Fixed answers returned when no oracle is configured
var stubResponses = map[Stage]string{
	StageAnalysis: `{"opportunity_id":"stub-1","paths":[],"confidence":0.0}`,
	StageRisk:     `{"opportunity_id":"stub-1","risk_score":1.0,"risks":["stub"],"recommendation":"skip"}`,
	StageDecision: `{"opportunity_id":"stub-1","execute":false,"reason":"stub","max_gas_gwei":0}`,
}

// StubTransport answers every stage with a fixed no-op opinion
type StubTransport struct{}

func (StubTransport) Complete(ctx context.Context, stage Stage, payload json.RawMessage) (json.RawMessage, error) {
	resp, ok := stubResponses[stage]
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(resp), nil
}
