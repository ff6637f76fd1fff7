package advisory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/michaelpento.lv/flashplanner/apperror"
)

// Amount is a wei amount suggested by the oracle. It accepts a JSON string or integer.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Path is one candidate cycle proposed by the analysis step
type Path struct {
	DexSequence       []string `json:"dex_sequence"`
	Assets            []string `json:"assets"`
	Amounts           []Amount `json:"amounts"`
	ExpectedProfitUSD float64  `json:"expected_profit_usd"`
}

// Analysis is the analysis step's opinion on a market snapshot
type Analysis struct {
	OpportunityID string  `json:"opportunity_id"`
	Paths         []Path  `json:"paths"`
	Confidence    float64 `json:"confidence"`
}

// Risk is the risk step's opinion on the analysis and simulation
type Risk struct {
	OpportunityID  string   `json:"opportunity_id"`
	RiskScore      float64  `json:"risk_score"`
	Risks          []string `json:"risks"`
	Recommendation string   `json:"recommendation"`
}

// Decision is the final advisory verdict. It can veto execution, never force it.
type Decision struct {
	OpportunityID string   `json:"opportunity_id"`
	Execute       bool     `json:"execute"`
	Reason        string   `json:"reason"`
	MaxGasGwei    *float64 `json:"max_gas_gwei,omitempty"`
}

// ParseAnalysis decodes and validates an analysis response
func ParseAnalysis(raw []byte) (*Analysis, error) {
	var wire struct {
		OpportunityID *string  `json:"opportunity_id"`
		Paths         *[]Path  `json:"paths"`
		Confidence    *float64 `json:"confidence"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, parseError("analysis", err)
	}

	var missing []string
	if wire.OpportunityID == nil {
		missing = append(missing, "opportunity_id")
	}
	if wire.Paths == nil {
		missing = append(missing, "paths")
	}
	if wire.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if len(missing) > 0 {
		return nil, parseError("analysis", fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if err := unitRange("confidence", *wire.Confidence); err != nil {
		return nil, parseError("analysis", err)
	}

	return &Analysis{
		OpportunityID: *wire.OpportunityID,
		Paths:         *wire.Paths,
		Confidence:    *wire.Confidence,
	}, nil
}

// ParseRisk decodes and validates a risk response
func ParseRisk(raw []byte) (*Risk, error) {
	var wire struct {
		OpportunityID  *string  `json:"opportunity_id"`
		RiskScore      *float64 `json:"risk_score"`
		Risks          []string `json:"risks"`
		Recommendation *string  `json:"recommendation"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, parseError("risk", err)
	}

	var missing []string
	if wire.OpportunityID == nil {
		missing = append(missing, "opportunity_id")
	}
	if wire.RiskScore == nil {
		missing = append(missing, "risk_score")
	}
	if wire.Recommendation == nil {
		missing = append(missing, "recommendation")
	}
	if len(missing) > 0 {
		return nil, parseError("risk", fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if err := unitRange("risk_score", *wire.RiskScore); err != nil {
		return nil, parseError("risk", err)
	}

	return &Risk{
		OpportunityID:  *wire.OpportunityID,
		RiskScore:      *wire.RiskScore,
		Risks:          wire.Risks,
		Recommendation: *wire.Recommendation,
	}, nil
}

// ParseDecision decodes and validates a decision response
func ParseDecision(raw []byte) (*Decision, error) {
	var wire struct {
		OpportunityID *string  `json:"opportunity_id"`
		Execute       *bool    `json:"execute"`
		Reason        string   `json:"reason"`
		MaxGasGwei    *float64 `json:"max_gas_gwei"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, parseError("decision", err)
	}

	var missing []string
	if wire.OpportunityID == nil {
		missing = append(missing, "opportunity_id")
	}
	if wire.Execute == nil {
		missing = append(missing, "execute")
	}
	if len(missing) > 0 {
		return nil, parseError("decision", fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if wire.MaxGasGwei != nil && *wire.MaxGasGwei < 0 {
		return nil, parseError("decision", fmt.Errorf("max_gas_gwei must not be negative"))
	}

	return &Decision{
		OpportunityID: *wire.OpportunityID,
		Execute:       *wire.Execute,
		Reason:        wire.Reason,
		MaxGasGwei:    wire.MaxGasGwei,
	}, nil
}

func decode(raw []byte, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func unitRange(field string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s %v outside [0,1]", field, v)
	}
	return nil
}

func parseError(stage string, err error) error {
	return apperror.New(apperror.CodeAdvisoryParseError,
		apperror.WithContext(stage),
		apperror.WithCause(err))
}
