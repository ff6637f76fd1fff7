package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/flashloan"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"go.uber.org/zap"
)

const (
	// DefaultSlippageBps applies when neither the request nor the config names one
	DefaultSlippageBps = uint64(50)
	// DefaultDeadlineWindow is added to the wall clock for swap deadlines
	DefaultDeadlineWindow = 600 * time.Second
)

// Plan kinds reported in PlanInfo
const (
	PlanTwoHopCycle = "v2_cycle"
	PlanV3Single    = "v3_single"
)

// PlanInfo carries every intermediate value of a plan for logs and the risk step
type PlanInfo struct {
	Kind           string   `json:"kind"`
	Venues         []string `json:"venues"`
	Amounts        []string `json:"amounts"`
	MinOuts        []string `json:"min_outs"`
	SlippageBps    uint64   `json:"slippage_bps"`
	Premium        string   `json:"premium"`
	ExpectedProfit string   `json:"expected_profit"`
	MinProfit      string   `json:"min_profit"`
	Deadline       uint64   `json:"deadline"`
	Beneficiary    string   `json:"beneficiary"`
	Approvals      int      `json:"approvals"`
	Calls          int      `json:"calls"`
	EncodedBytes   int      `json:"encoded_bytes"`
}

// CycleRequest describes a token_in -> mid -> token_in cycle across two routers
type CycleRequest struct {
	Executor common.Address
	TokenIn  common.Address
	Mid      common.Address
	RouterA  dex.Router
	RouterB  dex.Router
	AmountIn *big.Int
	// SlippageBps overrides the planner default when set
	SlippageBps *uint64
}

// SingleHopVenue is a concentrated-liquidity venue that quotes and encodes one pool hop
type SingleHopVenue interface {
	Address() common.Address
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
	EncodeExactInputSingle(tokenIn, tokenOut common.Address, fee uint32, recipient common.Address, deadline, amountIn, minOut, sqrtPriceLimitX96 *big.Int) ([]byte, error)
}

// SingleHopRequest describes one exact-input hop on a SingleHopVenue
type SingleHopRequest struct {
	Executor    common.Address
	TokenIn     common.Address
	TokenOut    common.Address
	Fee         uint32
	Venue       SingleHopVenue
	AmountIn    *big.Int
	SlippageBps *uint64
}

type PlannerConfig struct {
	Beneficiary    common.Address
	SlippageBps    uint64
	DeadlineWindow time.Duration
}

// Planner turns live quotes into encoded flash params
type Planner struct {
	premium        flashloan.PremiumSource
	beneficiary    common.Address
	slippageBps    uint64
	deadlineWindow time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

func NewPlanner(cfg PlannerConfig, premium flashloan.PremiumSource, logger *zap.Logger) (*Planner, error) {
	if premium == nil {
		return nil, fmt.Errorf("premium source is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.SlippageBps > bigmath.BpsDenominator {
		return nil, fmt.Errorf("slippage %d bps exceeds %d", cfg.SlippageBps, bigmath.BpsDenominator)
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = DefaultDeadlineWindow
	}
	return &Planner{
		premium:        premium,
		beneficiary:    cfg.Beneficiary,
		slippageBps:    cfg.SlippageBps,
		deadlineWindow: cfg.DeadlineWindow,
		now:            time.Now,
		logger:         logger,
	}, nil
}

func (p *Planner) slippage(override *uint64) (uint64, error) {
	bps := p.slippageBps
	if override != nil {
		bps = *override
	}
	if bps > bigmath.BpsDenominator {
		return 0, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("slippage %d bps exceeds %d", bps, bigmath.BpsDenominator)))
	}
	return bps, nil
}

func (p *Planner) deadline() *big.Int {
	return big.NewInt(p.now().Add(p.deadlineWindow).Unix())
}

// BuildTwoHopCyclePlan quotes both hops, bounds each with slippage and encodes
// the swaps with the executor as recipient. Hop B is quoted from the live hop A
// output, not from its minimum.
func (p *Planner) BuildTwoHopCyclePlan(ctx context.Context, req CycleRequest) ([]byte, *PlanInfo, error) {
	if req.RouterA == nil || req.RouterB == nil {
		return nil, nil, fmt.Errorf("both routers are required")
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("invalid input amount")
	}
	bps, err := p.slippage(req.SlippageBps)
	if err != nil {
		return nil, nil, err
	}

	pathA := []common.Address{req.TokenIn, req.Mid}
	pathB := []common.Address{req.Mid, req.TokenIn}

	quoteA, err := req.RouterA.Quote(ctx, req.AmountIn, pathA)
	if err != nil {
		return nil, nil, err
	}
	outMid := quoteA[len(quoteA)-1]
	minOutMid := bigmath.ApplySlippage(outMid, bps)

	quoteB, err := req.RouterB.Quote(ctx, outMid, pathB)
	if err != nil {
		return nil, nil, err
	}
	outBack := quoteB[len(quoteB)-1]
	minOutBack := bigmath.ApplySlippage(outBack, bps)

	deadline := p.deadline()

	callA, err := req.RouterA.EncodeSwap(req.AmountIn, minOutMid, pathA, req.Executor, deadline)
	if err != nil {
		return nil, nil, err
	}
	callB, err := req.RouterB.EncodeSwap(outMid, minOutBack, pathB, req.Executor, deadline)
	if err != nil {
		return nil, nil, err
	}

	premium := p.premium.Premium(req.AmountIn)
	expectedProfit := new(big.Int).Sub(outBack, req.AmountIn)
	minProfit := bigmath.ClampZero(new(big.Int).Sub(expectedProfit, premium))

	params := flashloan.FlashParams{
		MinProfit:   minProfit,
		Beneficiary: p.beneficiary.Hex(),
		Approvals: []flashloan.Approval{
			{Token: req.TokenIn.Hex(), Spender: req.RouterA.Address().Hex(), Amount: new(big.Int).Set(req.AmountIn)},
			{Token: req.Mid.Hex(), Spender: req.RouterB.Address().Hex(), Amount: new(big.Int).Set(outMid)},
		},
		Calls: []flashloan.Call{
			{Target: req.RouterA.Address().Hex(), Value: new(big.Int), Data: callA},
			{Target: req.RouterB.Address().Hex(), Value: new(big.Int), Data: callB},
		},
	}

	encoded, err := flashloan.Encode(params)
	if err != nil {
		return nil, nil, err
	}

	info := &PlanInfo{
		Kind:           PlanTwoHopCycle,
		Venues:         []string{req.RouterA.Name(), req.RouterB.Name()},
		Amounts:        []string{req.AmountIn.String(), outMid.String(), outBack.String()},
		MinOuts:        []string{minOutMid.String(), minOutBack.String()},
		SlippageBps:    bps,
		Premium:        premium.String(),
		ExpectedProfit: expectedProfit.String(),
		MinProfit:      minProfit.String(),
		Deadline:       deadline.Uint64(),
		Beneficiary:    params.Beneficiary,
		Approvals:      len(params.Approvals),
		Calls:          len(params.Calls),
		EncodedBytes:   len(encoded),
	}

	p.logger.Debug("built cycle plan",
		zap.Strings("venues", info.Venues),
		zap.String("min_profit", info.MinProfit),
		zap.Int("bytes", len(encoded)))

	return encoded, info, nil
}

// BuildV3SinglePlan encodes one exact-input hop. Profit is claimed only when
// the hop returns to the input token; otherwise expected and minimum profit are zero.
func (p *Planner) BuildV3SinglePlan(ctx context.Context, req SingleHopRequest) ([]byte, *PlanInfo, error) {
	if req.Venue == nil {
		return nil, nil, fmt.Errorf("venue is required")
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("invalid input amount")
	}
	bps, err := p.slippage(req.SlippageBps)
	if err != nil {
		return nil, nil, err
	}

	out, err := req.Venue.QuoteExactInputSingle(ctx, req.TokenIn, req.TokenOut, req.Fee, req.AmountIn)
	if err != nil {
		return nil, nil, err
	}
	minOut := bigmath.ApplySlippage(out, bps)
	deadline := p.deadline()

	call, err := req.Venue.EncodeExactInputSingle(req.TokenIn, req.TokenOut, req.Fee, req.Executor, deadline, req.AmountIn, minOut, nil)
	if err != nil {
		return nil, nil, err
	}

	premium := p.premium.Premium(req.AmountIn)
	expectedProfit := new(big.Int)
	minProfit := new(big.Int)
	if req.TokenIn == req.TokenOut {
		expectedProfit.Sub(out, req.AmountIn)
		minProfit = bigmath.ClampZero(new(big.Int).Sub(expectedProfit, premium))
	}

	venue := req.Venue.Address().Hex()
	params := flashloan.FlashParams{
		MinProfit:   minProfit,
		Beneficiary: p.beneficiary.Hex(),
		Approvals: []flashloan.Approval{
			{Token: req.TokenIn.Hex(), Spender: venue, Amount: new(big.Int).Set(req.AmountIn)},
		},
		Calls: []flashloan.Call{
			{Target: venue, Value: new(big.Int), Data: call},
		},
	}

	encoded, err := flashloan.Encode(params)
	if err != nil {
		return nil, nil, err
	}

	return encoded, &PlanInfo{
		Kind:           PlanV3Single,
		Venues:         []string{dex.VenueUniswapV3},
		Amounts:        []string{req.AmountIn.String(), out.String()},
		MinOuts:        []string{minOut.String()},
		SlippageBps:    bps,
		Premium:        premium.String(),
		ExpectedProfit: expectedProfit.String(),
		MinProfit:      minProfit.String(),
		Deadline:       deadline.Uint64(),
		Beneficiary:    params.Beneficiary,
		Approvals:      len(params.Approvals),
		Calls:          len(params.Calls),
		EncodedBytes:   len(encoded),
	}, nil
}
