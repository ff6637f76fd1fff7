package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reports the pending nonce of an account
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out sequential nonces for one account
type NonceManager struct {
	mu      sync.Mutex
	source  NonceSource
	account common.Address
	next    uint64
	synced  bool
}

func NewNonceManager(source NonceSource, account common.Address) *NonceManager {
	return &NonceManager{
		source:  source,
		account: account,
	}
}

// Next allocates the next nonce, syncing from the node on first use or after Reset
func (n *NonceManager) Next(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.synced {
		nonce, err := n.source.PendingNonceAt(ctx, n.account)
		if err != nil {
			return 0, fmt.Errorf("failed to get pending nonce: %w", err)
		}
		n.next = nonce
		n.synced = true
	}

	nonce := n.next
	n.next++
	return nonce, nil
}

// Reset forces a resync on the next allocation
func (n *NonceManager) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.synced = false
}
