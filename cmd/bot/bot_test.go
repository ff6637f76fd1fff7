package bot

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelpento.lv/flashplanner/advisory"
	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"github.com/michaelpento.lv/flashplanner/utils/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func advisoryServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stage advisory.Stage `json:"stage"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Stage {
		case advisory.StageAnalysis:
			_, _ = w.Write([]byte(`{"opportunity_id":"opp-1","confidence":0.7,"paths":[{
				"dex_sequence":["Uniswap V2","SushiSwap"],
				"assets":["` + testutils.WETH.Hex() + `","` + testutils.USDC.Hex() + `"],
				"amounts":["1000000000000000000"],
				"expected_profit_usd":150
			}]}`))
		case advisory.StageRisk:
			_, _ = w.Write([]byte(`{"opportunity_id":"opp-1","risk_score":0.1,"risks":[],"recommendation":"proceed"}`))
		default:
			_, _ = w.Write([]byte(`{"opportunity_id":"opp-1","execute":true,"reason":"ok","max_gas_gwei":50}`))
		}
	}))
}

func testConfig(t *testing.T, advisoryURL string) *config.Config {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Contracts.Executor = testutils.Executor.Hex()
	cfg.Wallet.PublicAddress = "0x2222222222222222222222222222222222222222"
	cfg.Advisory.Endpoint = advisoryURL
	cfg.Scanner.SpoolDir = filepath.Join(dir, "spool")
	cfg.Scanner.EnableFile = filepath.Join(dir, "agent_enabled")
	cfg.Scanner.PollInterval = 10 * time.Millisecond
	cfg.Scanner.DisabledBackoff = 10 * time.Millisecond
	cfg.Metrics.Namespace = "bot_test"
	cfg.Workers = 2
	cfg.EvaluationTimeout = 5 * time.Second
	return cfg
}

func TestBotEvaluatesSpooledOpportunity(t *testing.T) {
	server := advisoryServer(t)
	defer server.Close()

	chain := testutils.NewMockChain()
	chain.V2Rates[testutils.RouterA] = testutils.Rate(2000, 1)
	chain.V2Rates[testutils.RouterB] = testutils.Rate(1100, 2000*1000)
	chain.BaseFees = []*big.Int{big.NewInt(18_000_000_000)}

	cfg := testConfig(t, server.URL)
	require.NoError(t, os.MkdirAll(cfg.Scanner.SpoolDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Scanner.SpoolDir, "0001.json"),
		[]byte(`{"opportunity_id":"opp-1","snapshot":{"block":19000000}}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := New(ctx, cfg, chain, zaptest.NewLogger(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()

	submitted := b.Metrics().Outcomes.WithLabelValues(metrics.OutcomeSubmitted)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(submitted) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// dry run never broadcasts
	assert.Empty(t, chain.SentTransactions())
	assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().Submissions.WithLabelValues("dry_run")))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestNewComponentsRejectsBadKey(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DryRun = false
	cfg.Wallet.PrivateKey = "not-a-key"

	_, err := NewComponents(context.Background(), cfg, testutils.NewMockChain(), nil, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private key")
}

func TestNewComponentsLiveSubmitter(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DryRun = false
	cfg.Wallet.PrivateKey = "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

	components, err := NewComponents(context.Background(), cfg, testutils.NewMockChain(), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotEqual(t, "0x0000000000000000000000000000000000000000", components.Submitter.From().Hex())
	assert.ElementsMatch(t, []string{"sushiswap", "uniswapv2", "uniswapv3"}, components.Registry.Venues())
	require.NotNil(t, components.V3)
}

func TestNewTwiceInOneProcess(t *testing.T) {
	cfg := testConfig(t, "")

	first, err := New(context.Background(), cfg, testutils.NewMockChain(), zaptest.NewLogger(t))
	require.NoError(t, err)

	var second *Bot
	require.NotPanics(t, func() {
		second, err = New(context.Background(), cfg, testutils.NewMockChain(), zaptest.NewLogger(t))
	})
	require.NoError(t, err)

	first.Metrics().QuoteFailures.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(first.Metrics().QuoteFailures))
	assert.Equal(t, float64(0), testutil.ToFloat64(second.Metrics().QuoteFailures))

	rec := httptest.NewRecorder()
	metrics.Handler(first.registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "bot_test_quote_failures_total 1")
}
