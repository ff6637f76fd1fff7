package arbitrage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/michaelpento.lv/flashplanner/advisory"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/simulator"
	"github.com/michaelpento.lv/flashplanner/types"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcome is the terminal state of one evaluation
type Outcome string

const (
	OutcomeNoSupportedPath Outcome = metrics.OutcomeNoPath
	OutcomeSkipped         Outcome = metrics.OutcomeSkipped
	OutcomeSubmitted       Outcome = metrics.OutcomeSubmitted
	OutcomeFailed          Outcome = metrics.OutcomeFailed
)

// Skip reasons
const (
	ReasonUnprofitableOrDeclined = "unprofitable_or_ai_declined"
	ReasonAdvisoryParse          = "advisory_parse_error"
	ReasonTimeout                = "evaluation_timeout"
	ReasonCancelled              = "cancelled"
)

// DefaultGasLimit prices the simulated cycle and bounds the executeFlashLoan template
const DefaultGasLimit = uint64(1_000_000)

// Advisor is the untrusted opinion chain
type Advisor interface {
	Analyze(ctx context.Context, snapshot json.RawMessage) (*advisory.Analysis, error)
	AssessRisk(ctx context.Context, input advisory.RiskInput) (*advisory.Risk, error)
	Decide(ctx context.Context, risk *advisory.Risk) (*advisory.Decision, error)
}

// CycleSimulator is the deterministic profitability authority
type CycleSimulator interface {
	SimulateV2Cycle(ctx context.Context, routerA, routerB dex.Router, tokenIn, mid common.Address, amountIn *big.Int, gasLimitHint uint64) (*simulator.QuoteResult, error)
}

// CyclePlanner builds encoded flash params for a two-hop cycle
type CyclePlanner interface {
	BuildTwoHopCyclePlan(ctx context.Context, req CycleRequest) ([]byte, *PlanInfo, error)
}

// TxBuilder wraps encoded params in an unsigned executeFlashLoan transaction
type TxBuilder interface {
	BuildExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte, gas uint64, maxGasGwei *float64) (*ethtypes.Transaction, error)
}

// Submitter signs and broadcasts. Implementations serialize nonce use.
type Submitter interface {
	SignAndSend(ctx context.Context, tx *ethtypes.Transaction) (string, error)
}

// Result summarises one evaluation
type Result struct {
	OpportunityID string                 `json:"opportunity_id"`
	TraceID       string                 `json:"trace_id"`
	Outcome       Outcome                `json:"outcome"`
	Reason        string                 `json:"reason,omitempty"`
	Simulation    *simulator.QuoteResult `json:"simulation,omitempty"`
	Plan          *PlanInfo              `json:"plan,omitempty"`
	TxHash        string                 `json:"tx_hash,omitempty"`
}

type ArbitratorConfig struct {
	Executor      common.Address
	DefaultAmount *big.Int
	// GasLimit defaults to DefaultGasLimit
	GasLimit uint64
}

// Arbitrator drives one opportunity from analysis to submission
type Arbitrator struct {
	cfg       ArbitratorConfig
	registry  *dex.Registry
	advisor   Advisor
	simulator CycleSimulator
	planner   CyclePlanner
	txBuilder TxBuilder
	submitter Submitter
	metrics   *metrics.PlannerMetrics
	logger    *zap.Logger
}

// NewArbitrator wires the pipeline. m may be nil.
func NewArbitrator(
	cfg ArbitratorConfig,
	registry *dex.Registry,
	advisor Advisor,
	sim CycleSimulator,
	planner CyclePlanner,
	txBuilder TxBuilder,
	submitter Submitter,
	m *metrics.PlannerMetrics,
	logger *zap.Logger,
) (*Arbitrator, error) {
	if registry == nil || advisor == nil || sim == nil || planner == nil || txBuilder == nil || submitter == nil {
		return nil, fmt.Errorf("arbitrator is missing a collaborator")
	}
	if cfg.DefaultAmount == nil || cfg.DefaultAmount.Sign() <= 0 {
		return nil, fmt.Errorf("default flash loan amount must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	return &Arbitrator{
		cfg:       cfg,
		registry:  registry,
		advisor:   advisor,
		simulator: sim,
		planner:   planner,
		txBuilder: txBuilder,
		submitter: submitter,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Evaluate runs one opportunity to a terminal outcome. The returned error is
// non-nil for failures and for skips caused by a timeout or a rejected
// advisory answer; the result is always set.
func (a *Arbitrator) Evaluate(ctx context.Context, opp types.Opportunity) (*Result, error) {
	start := time.Now()
	result := &Result{OpportunityID: opp.ID, TraceID: uuid.NewString()}
	logger := a.logger.With(zap.String("opportunity_id", opp.ID), zap.String("trace_id", result.TraceID))

	if a.metrics != nil {
		a.metrics.InFlight.Inc()
		defer func() {
			a.metrics.InFlight.Dec()
			a.metrics.RecordOutcome(string(result.Outcome), time.Since(start))
		}()
	}

	analysis, err := a.advisor.Analyze(ctx, opp.Snapshot)
	if err != nil {
		return a.abort(ctx, result, logger, string(advisory.StageAnalysis), err)
	}
	if result.OpportunityID == "" {
		result.OpportunityID = analysis.OpportunityID
	}

	sel, ok := SelectCycle(a.registry, analysis.Paths, logger)
	if !ok {
		result.Outcome = OutcomeNoSupportedPath
		logger.Info("arb.no_supported_path", zap.Int("paths", len(analysis.Paths)))
		return result, nil
	}

	// amount comes from the selected path; paths[0] may be a different, unsupported cycle
	amount := SelectAmount(sel.Path, a.cfg.DefaultAmount)

	quote, err := a.simulator.SimulateV2Cycle(ctx, sel.RouterA, sel.RouterB, sel.TokenIn, sel.Mid, amount, a.cfg.GasLimit)
	if err != nil {
		return a.abort(ctx, result, logger, "simulate", err)
	}
	result.Simulation = quote
	a.observeProfit(quote.ExpectedNetProfit)
	logger.Info("arb.simulation",
		zap.Strings("venues", []string{sel.RouterA.Name(), sel.RouterB.Name()}),
		zap.String("amount_in", amount.String()),
		zap.String("gross_out", quote.GrossCycleOut.String()),
		zap.String("premium", quote.Premium.String()),
		zap.String("gas_cost_wei", quote.GasCostWei.String()),
		zap.String("expected_profit", quote.ExpectedProfit.String()),
		zap.String("expected_net_profit", quote.ExpectedNetProfit.String()))

	simulation, err := json.Marshal(quote)
	if err != nil {
		return a.abort(ctx, result, logger, "simulate", fmt.Errorf("failed to marshal simulation: %w", err))
	}

	risk, err := a.advisor.AssessRisk(ctx, advisory.RiskInput{
		OpportunityID: result.OpportunityID,
		Analysis:      analysis,
		Simulation:    simulation,
	})
	if err != nil {
		return a.abort(ctx, result, logger, string(advisory.StageRisk), err)
	}

	decision, err := a.advisor.Decide(ctx, risk)
	if err != nil {
		return a.abort(ctx, result, logger, string(advisory.StageDecision), err)
	}

	// The advisory decision can only veto a deterministically profitable cycle
	if !decision.Execute || !quote.Profitable() {
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonUnprofitableOrDeclined
		logger.Info("arb.skip",
			zap.String("reason", result.Reason),
			zap.Bool("execute", decision.Execute),
			zap.String("expected_net_profit", quote.ExpectedNetProfit.String()))
		return result, nil
	}

	params, plan, err := a.planner.BuildTwoHopCyclePlan(ctx, CycleRequest{
		Executor: a.cfg.Executor,
		TokenIn:  sel.TokenIn,
		Mid:      sel.Mid,
		RouterA:  sel.RouterA,
		RouterB:  sel.RouterB,
		AmountIn: amount,
	})
	if err != nil {
		return a.abort(ctx, result, logger, "plan", err)
	}
	result.Plan = plan
	logger.Info("arb.plan",
		zap.String("kind", plan.Kind),
		zap.Strings("min_outs", plan.MinOuts),
		zap.String("min_profit", plan.MinProfit),
		zap.Uint64("deadline", plan.Deadline),
		zap.Int("bytes", plan.EncodedBytes))

	tx, err := a.txBuilder.BuildExecuteFlashLoan(ctx, sel.TokenIn, amount, params, a.cfg.GasLimit, decision.MaxGasGwei)
	if err != nil {
		return a.abort(ctx, result, logger, "build_tx", err)
	}

	hash, err := a.submitter.SignAndSend(ctx, tx)
	if err != nil {
		return a.abort(ctx, result, logger, "submit", err)
	}

	result.Outcome = OutcomeSubmitted
	result.TxHash = hash
	logger.Info("arb.executed", zap.String("tx_hash", hash))
	return result, nil
}

// abort classifies err into a terminal outcome
func (a *Arbitrator) abort(ctx context.Context, result *Result, logger *zap.Logger, stage string, err error) (*Result, error) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonTimeout
		err = apperror.New(apperror.CodeEvaluationTimeout, apperror.WithContext(stage), apperror.WithCause(err))
		logger.Warn("arb.skip", zap.String("reason", result.Reason), zap.String("stage", stage))
		return result, err

	case errors.Is(ctx.Err(), context.Canceled):
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonCancelled
		return result, err

	case apperror.HasCode(err, apperror.CodeAdvisoryParseError):
		result.Outcome = OutcomeSkipped
		result.Reason = ReasonAdvisoryParse
		if a.metrics != nil {
			a.metrics.AdvisoryErrors.WithLabelValues(stage).Inc()
		}
		logger.Warn("arb.skip", zap.String("reason", result.Reason), zap.String("stage", stage), zap.Error(err))
		return result, err
	}

	result.Outcome = OutcomeFailed
	result.Reason = string(apperror.GetCode(err))
	if a.metrics != nil {
		switch {
		case apperror.HasCode(err, apperror.CodeQuoteUnavailable):
			a.metrics.QuoteFailures.Inc()
		case stage == string(advisory.StageAnalysis) || stage == string(advisory.StageRisk) || stage == string(advisory.StageDecision):
			a.metrics.AdvisoryErrors.WithLabelValues(stage).Inc()
		}
	}
	logger.Error("arb.failed", zap.String("stage", stage), zap.Error(err))
	return result, err
}

func (a *Arbitrator) observeProfit(net *big.Int) {
	if a.metrics == nil || net == nil {
		return
	}
	a.metrics.NetProfitEther.Observe(decimal.NewFromBigInt(net, -18).InexactFloat64())
}
