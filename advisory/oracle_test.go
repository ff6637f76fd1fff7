package advisory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClientWithStubTransport(t *testing.T) {
	client := NewClient(StubTransport{}, zaptest.NewLogger(t))
	ctx := context.Background()

	analysis, err := client.Analyze(ctx, json.RawMessage(`{"pools":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "stub-1", analysis.OpportunityID)
	assert.Empty(t, analysis.Paths)

	risk, err := client.AssessRisk(ctx, RiskInput{OpportunityID: "stub-1", Analysis: analysis})
	require.NoError(t, err)
	assert.Equal(t, "skip", risk.Recommendation)

	decision, err := client.Decide(ctx, risk)
	require.NoError(t, err)
	assert.False(t, decision.Execute)
	require.NotNil(t, decision.MaxGasGwei)
	assert.Equal(t, 0.0, *decision.MaxGasGwei)
}

func newTestServer(t *testing.T, handler func(stage Stage, input json.RawMessage) (int, string)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req stageRequest
		assert.NoError(t, json.Unmarshal(body, &req))

		status, resp := handler(req.Stage, req.Input)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
}

func testAdvisoryConfig(endpoint string) config.AdvisoryConfig {
	return config.AdvisoryConfig{
		Endpoint: endpoint,
		APIKey:   "secret",
		Timeout:  time.Second,
		RateLimit: config.RateLimitConfig{
			RequestsPerSecond: 100,
			BurstSize:         10,
			WaitTimeout:       time.Second,
		},
	}
}

func TestHTTPTransport(t *testing.T) {
	var seen []Stage
	server := newTestServer(t, func(stage Stage, input json.RawMessage) (int, string) {
		seen = append(seen, stage)
		switch stage {
		case StageAnalysis:
			assert.JSONEq(t, `{"block":1}`, string(input))
			return http.StatusOK, `{"opportunity_id":"o1","paths":[],"confidence":0.4}`
		case StageRisk:
			var in RiskInput
			assert.NoError(t, json.Unmarshal(input, &in))
			assert.Equal(t, "o1", in.OpportunityID)
			assert.JSONEq(t, `{"expected_net_profit":"10"}`, string(in.Simulation))
			return http.StatusOK, `{"opportunity_id":"o1","risk_score":0.1,"recommendation":"go"}`
		default:
			return http.StatusOK, `{"opportunity_id":"o1","execute":true,"reason":"fine"}`
		}
	})
	defer server.Close()

	client := NewClient(NewHTTPTransport(testAdvisoryConfig(server.URL)), zaptest.NewLogger(t))
	ctx := context.Background()

	analysis, err := client.Analyze(ctx, json.RawMessage(`{"block":1}`))
	require.NoError(t, err)
	risk, err := client.AssessRisk(ctx, RiskInput{
		OpportunityID: "o1",
		Analysis:      analysis,
		Simulation:    json.RawMessage(`{"expected_net_profit":"10"}`),
	})
	require.NoError(t, err)
	decision, err := client.Decide(ctx, risk)
	require.NoError(t, err)

	assert.True(t, decision.Execute)
	assert.Equal(t, []Stage{StageAnalysis, StageRisk, StageDecision}, seen)
}

func TestHTTPTransportErrors(t *testing.T) {
	server := newTestServer(t, func(stage Stage, input json.RawMessage) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})
	defer server.Close()

	transport := NewHTTPTransport(testAdvisoryConfig(server.URL))
	_, err := transport.Complete(context.Background(), StageAnalysis, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
