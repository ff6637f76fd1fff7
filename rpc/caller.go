package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ContractCaller is the read-only slice of ethclient used for venue quotes
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FeeHistoryReader reads EIP-1559 fee history
type FeeHistoryReader interface {
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// Backend is what GuardedCaller wraps; *ethclient.Client satisfies it
type Backend interface {
	ContractCaller
	FeeHistoryReader
}

// GuardedCaller throttles and circuit-breaks read calls against the node
type GuardedCaller struct {
	backend     Backend
	limiter     *rate.Limiter
	waitTimeout time.Duration
	calls       *gobreaker.CircuitBreaker[[]byte]
	fees        *gobreaker.CircuitBreaker[*ethereum.FeeHistory]
	logger      *zap.Logger
}

// NewGuardedCaller wraps backend using the rate limit and breaker settings
func NewGuardedCaller(backend Backend, rl config.RateLimitConfig, cb config.CircuitBreakerConfig, logger *zap.Logger) *GuardedCaller {
	g := &GuardedCaller{
		backend:     backend,
		limiter:     rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.BurstSize),
		waitTimeout: rl.WaitTimeout,
		logger:      logger,
	}
	if cb.Enabled {
		g.calls = gobreaker.NewCircuitBreaker[[]byte](g.settings("eth-call", cb))
		g.fees = gobreaker.NewCircuitBreaker[*ethereum.FeeHistory](g.settings("fee-history", cb))
	}
	return g
}

func (g *GuardedCaller) settings(name string, cb config.CircuitBreakerConfig) gobreaker.Settings {
	threshold := uint32(cb.ErrorThreshold)
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cb.ResetInterval,
		Timeout:     cb.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a revert is the node answering; only transport trouble trips the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || IsRevert(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

func (g *GuardedCaller) wait(ctx context.Context) error {
	if g.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.waitTimeout)
		defer cancel()
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rpc rate limit: %w", err)
	}
	return nil
}

// CallContract implements ContractCaller
func (g *GuardedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.calls == nil {
		return g.backend.CallContract(ctx, msg, blockNumber)
	}
	out, err := g.calls.Execute(func() ([]byte, error) {
		return g.backend.CallContract(ctx, msg, blockNumber)
	})
	return out, breakerError(err)
}

// FeeHistory implements FeeHistoryReader
func (g *GuardedCaller) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.fees == nil {
		return g.backend.FeeHistory(ctx, blockCount, lastBlock, rewardPercentiles)
	}
	out, err := g.fees.Execute(func() (*ethereum.FeeHistory, error) {
		return g.backend.FeeHistory(ctx, blockCount, lastBlock, rewardPercentiles)
	})
	return out, breakerError(err)
}

// JSON-RPC error code geth uses for execution reverted
const revertErrorCode = 3

// IsRevert reports whether err is the node rejecting the call itself
// (no route, no liquidity, failed require) rather than a transport failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))
	}
	return err
}
