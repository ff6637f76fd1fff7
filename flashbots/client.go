package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	contentTypeJSON             = "application/json"
	flashbotsXHeader            = "X-Flashbots-Signature"
	methodSendPrivateTx         = "eth_sendPrivateTransaction"
	methodCancelPrivateTx       = "eth_cancelPrivateTransaction"
	defaultPrivateTxBlockWindow = 25
)

// Client talks to a Flashbots-compatible relay
type Client struct {
	httpClient *http.Client
	relayURL   string
	authSigner *ecdsa.PrivateKey
}

// NewClient creates a relay client. authKey signs request bodies and need not hold funds.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 3,
		},
		relayURL:   relayURL,
		authSigner: authKey,
	}
}

// PrivateTxPreferences limits how long the relay keeps trying
type PrivateTxPreferences struct {
	// MaxBlockNumber is the last block the transaction may land in; nil lets the relay decide
	MaxBlockNumber *big.Int
	Fast           bool
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// SendPrivateTransaction hands a signed raw transaction to the relay instead of the public mempool
func (c *Client) SendPrivateTransaction(ctx context.Context, rawTx []byte, prefs PrivateTxPreferences) (common.Hash, error) {
	param := map[string]interface{}{
		"tx": hexutil.Encode(rawTx),
	}
	if prefs.MaxBlockNumber != nil {
		param["maxBlockNumber"] = hexutil.EncodeBig(prefs.MaxBlockNumber)
	}
	if prefs.Fast {
		param["preferences"] = map[string]bool{"fast": true}
	}

	result, err := c.call(ctx, methodSendPrivateTx, param)
	if err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	if err := json.Unmarshal(result, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode transaction hash: %w", err)
	}
	return hash, nil
}

// CancelPrivateTransaction asks the relay to stop submitting txHash
func (c *Client) CancelPrivateTransaction(ctx context.Context, txHash common.Hash) (bool, error) {
	result, err := c.call(ctx, methodCancelPrivateTx, map[string]interface{}{"txHash": txHash.Hex()})
	if err != nil {
		return false, err
	}
	var cancelled bool
	if err := json.Unmarshal(result, &cancelled); err != nil {
		return false, fmt.Errorf("failed to decode cancel result: %w", err)
	}
	return cancelled, nil
}

// MaxBlockFor returns the default inclusion horizon counted from head
func MaxBlockFor(head uint64) *big.Int {
	return new(big.Int).SetUint64(head + defaultPrivateTxBlockWindow)
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	header, err := c.signature(payload)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Content-Type", contentTypeJSON)
	req.Header.Add("Accept", contentTypeJSON)
	req.Header.Add(flashbotsXHeader, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flashbots request failed: %s", string(body))
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("flashbots %s error %d: %s", method, out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

// signature builds the "address:signature" header over keccak256(body)
func (c *Client) signature(payload []byte) (string, error) {
	signature, err := crypto.Sign(
		accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(payload)))),
		c.authSigner,
	)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	return fmt.Sprintf("%s:%s",
		crypto.PubkeyToAddress(c.authSigner.PublicKey).Hex(),
		hexutil.Encode(signature),
	), nil
}
