package flashbots

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relay(t *testing.T, handle func(req rpcRequest) string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		// the header must recover to the signing address
		parts := strings.SplitN(r.Header.Get(flashbotsXHeader), ":", 2)
		if assert.Len(t, parts, 2) {
			sig, err := hexutil.Decode(parts[1])
			assert.NoError(t, err)
			pub, err := crypto.SigToPub(accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(body)))), sig)
			if assert.NoError(t, err) {
				assert.Equal(t, parts[0], crypto.PubkeyToAddress(*pub).Hex())
			}
		}

		var req rpcRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(handle(req)))
	}))
}

func TestSendPrivateTransaction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")

	server := relay(t, func(req rpcRequest) string {
		assert.Equal(t, methodSendPrivateTx, req.Method)
		if !assert.Len(t, req.Params, 1) {
			return `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bad params"}}`
		}
		param, _ := req.Params[0].(map[string]interface{})
		assert.Equal(t, "0xdeadbeef", param["tx"])
		assert.Equal(t, "0x64", param["maxBlockNumber"])
		return `{"jsonrpc":"2.0","id":1,"result":"` + want.Hex() + `"}`
	})
	defer server.Close()

	client := NewClient(server.URL, key)
	hash, err := client.SendPrivateTransaction(context.Background(), []byte{0xde, 0xad, 0xbe, 0xef},
		PrivateTxPreferences{MaxBlockNumber: big.NewInt(100)})
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestSendPrivateTransactionRelayError(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	server := relay(t, func(req rpcRequest) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`
	})
	defer server.Close()

	_, err = NewClient(server.URL, key).SendPrivateTransaction(context.Background(), []byte{0x01}, PrivateTxPreferences{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestCancelPrivateTransaction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	server := relay(t, func(req rpcRequest) string {
		assert.Equal(t, methodCancelPrivateTx, req.Method)
		return `{"jsonrpc":"2.0","id":1,"result":true}`
	})
	defer server.Close()

	ok, err := NewClient(server.URL, key).CancelPrivateTransaction(context.Background(), common.Hash{1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMaxBlockFor(t *testing.T) {
	assert.Equal(t, big.NewInt(125), MaxBlockFor(100))
}
