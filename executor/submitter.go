package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/flashbots"
	"github.com/michaelpento.lv/flashplanner/simulator"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"go.uber.org/zap"
)

// DryRunHash is returned instead of a transaction hash when nothing is broadcast
var DryRunHash = common.Hash{}.Hex()

// Submission routes
const (
	RouteDryRun  = "dry_run"
	RoutePublic  = "public"
	RoutePrivate = "private"
)

// Broadcaster sends a signed transaction to the public mempool
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// PrivateRelay sends a signed transaction through a private orderflow relay
type PrivateRelay interface {
	SendPrivateTransaction(ctx context.Context, rawTx []byte, prefs flashbots.PrivateTxPreferences) (common.Hash, error)
	CancelPrivateTransaction(ctx context.Context, txHash common.Hash) (bool, error)
}

// HeadReader reports the current block height
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Preflighter dry-runs calldata against the current chain state
type Preflighter interface {
	Preflight(ctx context.Context, from, to common.Address, data []byte) (*simulator.SimulationResult, error)
}

type SubmitterConfig struct {
	ChainID    *big.Int
	DryRun     bool
	PrivateKey *ecdsa.PrivateKey
}

type Option func(*Submitter)

// WithRelay routes every broadcast through relay. When heads is set, private
// transactions expire a fixed number of blocks after the current head.
func WithRelay(relay PrivateRelay, heads HeadReader) Option {
	return func(s *Submitter) {
		s.relay = relay
		s.heads = heads
	}
}

// WithPreflight runs eth_call and eth_estimateGas before signing
func WithPreflight(p Preflighter) Option {
	return func(s *Submitter) {
		s.preflight = p
	}
}

func WithMetrics(m *metrics.PlannerMetrics) Option {
	return func(s *Submitter) {
		s.metrics = m
	}
}

// Submitter signs and broadcasts executor transactions for one account.
// Nonce allocation, signing and broadcast happen under a single lock.
type Submitter struct {
	mu        sync.Mutex
	cfg       SubmitterConfig
	from      common.Address
	nonces    *NonceManager
	chain     Broadcaster
	relay     PrivateRelay
	heads     HeadReader
	preflight Preflighter
	metrics   *metrics.PlannerMetrics
	logger    *zap.Logger
}

func NewSubmitter(cfg SubmitterConfig, nonces *NonceManager, chain Broadcaster, logger *zap.Logger, opts ...Option) (*Submitter, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	s := &Submitter{
		cfg:    cfg,
		nonces: nonces,
		chain:  chain,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.DryRun {
		return s, nil
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required unless dry run is enabled")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id")
	}
	if nonces == nil {
		return nil, fmt.Errorf("nonce manager is required")
	}
	if chain == nil && s.relay == nil {
		return nil, fmt.Errorf("no broadcast route configured")
	}
	s.from = crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)
	return s, nil
}

// From returns the signing account
func (s *Submitter) From() common.Address {
	return s.from
}

// SignAndSend assigns a nonce, signs and broadcasts tx and returns its hash.
// In dry run it returns DryRunHash without touching the nonce or the network.
func (s *Submitter) SignAndSend(ctx context.Context, tx *types.Transaction) (string, error) {
	if s.cfg.DryRun {
		s.logger.Info("tx.dry_run",
			zap.Stringer("to", tx.To()),
			zap.Uint64("gas", tx.Gas()),
			zap.String("max_fee", tx.GasFeeCap().String()),
			zap.Int("data_bytes", len(tx.Data())))
		s.count(RouteDryRun)
		return DryRunHash, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preflight != nil {
		if err := s.runPreflight(ctx, tx); err != nil {
			return "", err
		}
	}

	nonce, err := s.nonces.Next(ctx)
	if err != nil {
		return "", s.failure("nonce", err)
	}

	signed, err := types.SignTx(withNonce(tx, nonce), types.LatestSignerForChainID(s.cfg.ChainID), s.cfg.PrivateKey)
	if err != nil {
		s.nonces.Reset()
		return "", s.failure("sign", err)
	}

	route := RoutePublic
	if s.relay != nil {
		route = RoutePrivate
		err = s.sendPrivate(ctx, signed)
	} else {
		err = s.chain.SendTransaction(ctx, signed)
	}
	if err != nil {
		s.nonces.Reset()
		return "", s.failure(route, err)
	}

	s.count(route)
	s.logger.Info("tx.sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("route", route))
	return signed.Hash().Hex(), nil
}

func (s *Submitter) sendPrivate(ctx context.Context, signed *types.Transaction) error {
	raw, err := signed.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	hash, err := s.relay.SendPrivateTransaction(ctx, raw, s.privatePreferences(ctx))
	if err != nil {
		return err
	}
	if hash != signed.Hash() {
		s.logger.Warn("relay returned unexpected hash",
			zap.String("expected", signed.Hash().Hex()),
			zap.String("got", hash.Hex()))
	}
	return nil
}

func (s *Submitter) privatePreferences(ctx context.Context) flashbots.PrivateTxPreferences {
	var prefs flashbots.PrivateTxPreferences
	if s.heads == nil {
		return prefs
	}
	head, err := s.heads.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn("head unavailable, relay applies its default horizon", zap.Error(err))
		return prefs
	}
	prefs.MaxBlockNumber = flashbots.MaxBlockFor(head)
	return prefs
}

// CancelPrivate withdraws a transaction previously sent through the relay
func (s *Submitter) CancelPrivate(ctx context.Context, txHash common.Hash) (bool, error) {
	if s.relay == nil {
		return false, fmt.Errorf("no private relay configured")
	}
	cancelled, err := s.relay.CancelPrivateTransaction(ctx, txHash)
	if err != nil {
		return false, s.failure("cancel", err)
	}
	s.logger.Info("tx.cancel",
		zap.String("tx_hash", txHash.Hex()),
		zap.Bool("cancelled", cancelled))
	return cancelled, nil
}

func (s *Submitter) runPreflight(ctx context.Context, tx *types.Transaction) error {
	if tx.To() == nil {
		return s.failure("preflight", fmt.Errorf("contract creation is not supported"))
	}
	result, err := s.preflight.Preflight(ctx, s.from, *tx.To(), tx.Data())
	if err != nil {
		return s.failure("preflight", err)
	}
	if !result.Success {
		return s.failure("preflight", fmt.Errorf("execution would revert: %v", result.Error))
	}
	s.logger.Debug("preflight passed", zap.Uint64("gas_used", result.GasUsed))
	return nil
}

func (s *Submitter) failure(stage string, err error) error {
	s.logger.Error("tx.failed", zap.String("stage", stage), zap.Error(err))
	return apperror.New(apperror.CodeSubmissionFailure,
		apperror.WithContext(stage),
		apperror.WithCause(err))
}

func (s *Submitter) count(route string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(route).Inc()
	}
}
