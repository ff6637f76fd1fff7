package advisory

import (
	"testing"

	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysis(t *testing.T) {
	raw := []byte(`{
		"opportunity_id": "opp-7",
		"confidence": 0.8,
		"paths": [{
			"dex_sequence": ["Uniswap", "sushi"],
			"assets": ["0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"],
			"amounts": ["1000000000000000000", 5],
			"expected_profit_usd": 12.5
		}]
	}`)

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "opp-7", analysis.OpportunityID)
	require.Len(t, analysis.Paths, 1)
	assert.Equal(t, []string{"Uniswap", "sushi"}, analysis.Paths[0].DexSequence)
	assert.Equal(t, []Amount{"1000000000000000000", "5"}, analysis.Paths[0].Amounts)
	assert.Equal(t, 12.5, analysis.Paths[0].ExpectedProfitUSD)
}

func TestParseRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name  string
		parse func([]byte) error
		raw   string
	}{
		{"analysis not json", func(b []byte) error { _, err := ParseAnalysis(b); return err }, `sure, here is the analysis`},
		{"analysis empty", func(b []byte) error { _, err := ParseAnalysis(b); return err }, ``},
		{"analysis missing paths", func(b []byte) error { _, err := ParseAnalysis(b); return err }, `{"opportunity_id":"x","confidence":0.5}`},
		{"analysis confidence range", func(b []byte) error { _, err := ParseAnalysis(b); return err }, `{"opportunity_id":"x","paths":[],"confidence":1.5}`},
		{"analysis mistyped", func(b []byte) error { _, err := ParseAnalysis(b); return err }, `{"opportunity_id":7,"paths":[],"confidence":0.5}`},
		{"analysis bad amount", func(b []byte) error { _, err := ParseAnalysis(b); return err }, `{"opportunity_id":"x","paths":[{"amounts":[true]}],"confidence":0.5}`},
		{"risk missing score", func(b []byte) error { _, err := ParseRisk(b); return err }, `{"opportunity_id":"x","recommendation":"skip"}`},
		{"risk score range", func(b []byte) error { _, err := ParseRisk(b); return err }, `{"opportunity_id":"x","risk_score":-0.1,"recommendation":"skip"}`},
		{"decision missing execute", func(b []byte) error { _, err := ParseDecision(b); return err }, `{"opportunity_id":"x","reason":"ok"}`},
		{"decision null execute", func(b []byte) error { _, err := ParseDecision(b); return err }, `{"opportunity_id":"x","execute":null}`},
		{"decision negative gas", func(b []byte) error { _, err := ParseDecision(b); return err }, `{"opportunity_id":"x","execute":true,"max_gas_gwei":-3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.parse([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeAdvisoryParseError), err.Error())
		})
	}
}

func TestParseRiskAndDecision(t *testing.T) {
	risk, err := ParseRisk([]byte(`{"opportunity_id":"x","risk_score":0.2,"risks":["thin liquidity"],"recommendation":"proceed"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.2, risk.RiskScore)
	assert.Equal(t, "proceed", risk.Recommendation)

	decision, err := ParseDecision([]byte(`{"opportunity_id":"x","execute":true,"reason":"ok","max_gas_gwei":40}`))
	require.NoError(t, err)
	assert.True(t, decision.Execute)
	require.NotNil(t, decision.MaxGasGwei)
	assert.Equal(t, 40.0, *decision.MaxGasGwei)

	decision, err = ParseDecision([]byte(`{"opportunity_id":"x","execute":false}`))
	require.NoError(t, err)
	assert.Nil(t, decision.MaxGasGwei)
}
