package advisory

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// RiskInput is what the risk step sees: the analysis plus the deterministic simulation
type RiskInput struct {
	OpportunityID string          `json:"opportunity_id"`
	Analysis      *Analysis       `json:"analysis"`
	Simulation    json.RawMessage `json:"simulation,omitempty"`
}

// Client drives the analysis, risk and decision steps. Every answer is an untrusted hint.
type Client struct {
	transport Transport
	logger    *zap.Logger
}

func NewClient(transport Transport, logger *zap.Logger) *Client {
	return &Client{
		transport: transport,
		logger:    logger,
	}
}

// Analyze asks for candidate cycles in a market snapshot
func (c *Client) Analyze(ctx context.Context, snapshot json.RawMessage) (*Analysis, error) {
	if len(snapshot) == 0 {
		snapshot = json.RawMessage(`{}`)
	}
	raw, err := c.transport.Complete(ctx, StageAnalysis, snapshot)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	analysis, err := ParseAnalysis(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Info("ai.analysis",
		zap.String("opportunity_id", analysis.OpportunityID),
		zap.Float64("confidence", analysis.Confidence),
		zap.Int("paths", len(analysis.Paths)))
	return analysis, nil
}

// AssessRisk asks for a risk opinion
func (c *Client) AssessRisk(ctx context.Context, input RiskInput) (*Risk, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal risk input: %w", err)
	}
	raw, err := c.transport.Complete(ctx, StageRisk, payload)
	if err != nil {
		return nil, fmt.Errorf("risk request failed: %w", err)
	}
	risk, err := ParseRisk(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Info("ai.risk",
		zap.String("opportunity_id", risk.OpportunityID),
		zap.Float64("score", risk.RiskScore),
		zap.String("recommendation", risk.Recommendation))
	return risk, nil
}

// Decide asks for an execution verdict on a risk opinion
func (c *Client) Decide(ctx context.Context, risk *Risk) (*Decision, error) {
	payload, err := json.Marshal(risk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal risk: %w", err)
	}
	raw, err := c.transport.Complete(ctx, StageDecision, payload)
	if err != nil {
		return nil, fmt.Errorf("decision request failed: %w", err)
	}
	decision, err := ParseDecision(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Info("ai.decision",
		zap.String("opportunity_id", decision.OpportunityID),
		zap.Bool("execute", decision.Execute),
		zap.String("reason", decision.Reason))
	return decision, nil
}
