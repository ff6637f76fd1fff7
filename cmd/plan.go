package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/michaelpento.lv/flashplanner/cmd/bot"
	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/simulator"
	"github.com/michaelpento.lv/flashplanner/strategies/arbitrage"
	"github.com/michaelpento.lv/flashplanner/utils"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	planTokenIn  string
	planMid      string
	planTokenOut string
	planDexA     string
	planDexB     string
	planFee      uint32
	planAmount   string
	planSlippage uint64
)

type planOutput struct {
	Simulation *simulator.QuoteResult `json:"simulation"`
	Plan       *arbitrage.PlanInfo    `json:"plan"`
	Params     string                 `json:"params"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Quote and encode a plan without submitting it",
	Long: `Quote and encode a flash loan plan without submitting it.

With --mid the plan is a two-hop cycle token-in -> mid -> token-in across
--dex-a and --dex-b. With --token-out it is a single Uniswap V3 hop in the
--fee pool; profit is only claimed when token-out equals token-in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		if (planMid == "") == (planTokenOut == "") {
			return fmt.Errorf("exactly one of --mid or --token-out is required")
		}
		for _, addr := range []string{planTokenIn, planMid, planTokenOut} {
			if addr != "" && !common.IsHexAddress(addr) {
				return fmt.Errorf("%q is not a hex address", addr)
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		amount := cfg.Trading.DefaultFlashLoanWei()
		if planAmount != "" {
			v, ok := bigmath.ParsePositive(planAmount)
			if !ok {
				return fmt.Errorf("--amount %q is not a positive base-10 integer", planAmount)
			}
			amount = v
		}

		client, err := ethclient.DialContext(cmd.Context(), cfg.RPCEndpoint)
		if err != nil {
			return fmt.Errorf("failed to connect to Ethereum node: %w", err)
		}
		defer client.Close()

		components, err := bot.NewComponents(cmd.Context(), cfg, client, nil, log)
		if err != nil {
			return err
		}

		var slippage *uint64
		if cmd.Flags().Changed("slippage-bps") {
			slippage = &planSlippage
		}

		var out *planOutput
		if planMid != "" {
			out, err = planCycle(cmd.Context(), cfg, components, amount, slippage)
		} else {
			out, err = planSingle(cmd.Context(), cfg, components, amount, slippage)
		}
		if err != nil {
			return err
		}
		log.Debug("plan built", zap.String("kind", out.Plan.Kind), zap.Int("encoded_bytes", out.Plan.EncodedBytes))

		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}

func planCycle(ctx context.Context, cfg *config.Config, components *bot.Components, amount *big.Int, slippage *uint64) (*planOutput, error) {
	routerA, ok := components.Registry.Lookup(planDexA)
	if !ok {
		return nil, fmt.Errorf("unsupported venue %q", planDexA)
	}
	routerB, ok := components.Registry.Lookup(planDexB)
	if !ok {
		return nil, fmt.Errorf("unsupported venue %q", planDexB)
	}

	tokenIn := common.HexToAddress(planTokenIn)
	mid := common.HexToAddress(planMid)

	quote, err := components.Simulator.SimulateV2Cycle(ctx, routerA, routerB, tokenIn, mid, amount, cfg.Gas.CycleGasLimit)
	if err != nil {
		return nil, err
	}

	params, info, err := components.Planner.BuildTwoHopCyclePlan(ctx, arbitrage.CycleRequest{
		Executor:    common.HexToAddress(cfg.Contracts.Executor),
		TokenIn:     tokenIn,
		Mid:         mid,
		RouterA:     routerA,
		RouterB:     routerB,
		AmountIn:    amount,
		SlippageBps: slippage,
	})
	if err != nil {
		return nil, err
	}
	return &planOutput{Simulation: quote, Plan: info, Params: hexutil.Encode(params)}, nil
}

func planSingle(ctx context.Context, cfg *config.Config, components *bot.Components, amount *big.Int, slippage *uint64) (*planOutput, error) {
	if components.V3 == nil {
		return nil, fmt.Errorf("uniswap v3 quoter and router must be configured for --token-out")
	}

	fee := cfg.Trading.V3FeeTier
	if planFee != 0 {
		fee = planFee
	}
	tokenIn := common.HexToAddress(planTokenIn)
	tokenOut := common.HexToAddress(planTokenOut)

	// zero gas hint selects the simulator's single-hop default
	quote, err := components.Simulator.SimulateV3Single(ctx, components.V3, tokenIn, tokenOut, fee, amount, 0)
	if err != nil {
		return nil, err
	}

	params, info, err := components.Planner.BuildV3SinglePlan(ctx, arbitrage.SingleHopRequest{
		Executor:    common.HexToAddress(cfg.Contracts.Executor),
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Fee:         fee,
		Venue:       components.V3,
		AmountIn:    amount,
		SlippageBps: slippage,
	})
	if err != nil {
		return nil, err
	}
	return &planOutput{Simulation: quote, Plan: info, Params: hexutil.Encode(params)}, nil
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planTokenIn, "token-in", "", "asset borrowed and repaid")
	planCmd.Flags().StringVar(&planMid, "mid", "", "intermediate asset of a two-hop cycle")
	planCmd.Flags().StringVar(&planTokenOut, "token-out", "", "output asset of a single uniswap v3 hop")
	planCmd.Flags().StringVar(&planDexA, "dex-a", "uniswapv2", "venue for the first hop")
	planCmd.Flags().StringVar(&planDexB, "dex-b", "sushiswap", "venue for the second hop")
	planCmd.Flags().Uint32Var(&planFee, "fee", 0, "uniswap v3 fee tier (default from config)")
	planCmd.Flags().StringVar(&planAmount, "amount", "", "flash loan amount in wei (default from config)")
	planCmd.Flags().Uint64Var(&planSlippage, "slippage-bps", 0, "slippage tolerance in basis points (default from config)")
	_ = planCmd.MarkFlagRequired("token-in")
}
