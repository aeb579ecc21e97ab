// Package chaintest provides an in-memory chain.Binder for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// CallFunc answers a read.
type CallFunc func(args ...interface{}) ([]interface{}, error)

// SendFunc runs when a write is sent. It can update stubbed reads to mimic state changes.
type SendFunc func(value *big.Int, args ...interface{}) error

type Invocation struct {
	Address   common.Address
	Interface chain.Interface
	Method    string
	Args      []interface{}
	Value     *big.Int
}

type Binding struct {
	Address   common.Address
	Interface chain.Interface
}

// Binder stubs reads and records everything bound, called and sent.
// Reads and writes against methods the bound interface does not declare fail
// with chain.ErrUnknownMethod, as they do on a real Client.
type Binder struct {
	mu       sync.Mutex
	from     common.Address
	reads    map[common.Address]map[string]CallFunc
	sends    map[common.Address]map[string]SendFunc
	nonce    uint64
	Bindings []Binding
	Calls    []Invocation
	Sent     []Invocation

	// FailReceipts makes WaitReceipt report a reverted receipt.
	FailReceipts bool
	// WaitErr is returned by WaitReceipt when set.
	WaitErr error
}

func NewBinder(from common.Address) *Binder {
	return &Binder{
		from:  from,
		reads: make(map[common.Address]map[string]CallFunc),
		sends: make(map[common.Address]map[string]SendFunc),
	}
}

func (b *Binder) From() common.Address { return b.from }

// On stubs method at addr.
func (b *Binder) On(addr common.Address, method string, fn CallFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reads[addr] == nil {
		b.reads[addr] = make(map[string]CallFunc)
	}
	b.reads[addr][method] = fn
}

// Returns stubs method at addr with fixed outputs.
func (b *Binder) Returns(addr common.Address, method string, out ...interface{}) {
	b.On(addr, method, func(...interface{}) ([]interface{}, error) { return out, nil })
}

// OnSend registers a hook for writes to method at addr.
func (b *Binder) OnSend(addr common.Address, method string, fn SendFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sends[addr] == nil {
		b.sends[addr] = make(map[string]SendFunc)
	}
	b.sends[addr][method] = fn
}

func (b *Binder) Bind(addr common.Address, iface chain.Interface) (chain.Contract, error) {
	if _, err := chain.ABI(iface); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.Bindings = append(b.Bindings, Binding{Address: addr, Interface: iface})
	b.mu.Unlock()
	return &contract{binder: b, address: addr, iface: iface}, nil
}

func (b *Binder) WaitReceipt(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if b.WaitErr != nil {
		return nil, b.WaitErr
	}
	if b.FailReceipts {
		return &types.Receipt{TxHash: tx.Hash(), Status: types.ReceiptStatusFailed}, &chain.TxFailedError{Hash: tx.Hash()}
	}
	return &types.Receipt{TxHash: tx.Hash(), Status: types.ReceiptStatusSuccessful}, nil
}

// SentMethods lists the names of every write in order.
func (b *Binder) SentMethods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.Sent))
	for _, s := range b.Sent {
		names = append(names, s.Method)
	}
	return names
}

// CallsTo returns the reads issued against addr.
func (b *Binder) CallsTo(addr common.Address) []Invocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Invocation
	for _, c := range b.Calls {
		if c.Address == addr {
			out = append(out, c)
		}
	}
	return out
}

type contract struct {
	binder  *Binder
	address common.Address
	iface   chain.Interface
}

func (c *contract) Address() common.Address   { return c.address }
func (c *contract) Interface() chain.Interface { return c.iface }

func (c *contract) Call(_ context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if !chain.HasMethod(c.iface, method) {
		return nil, fmt.Errorf("%w: %s.%s", chain.ErrUnknownMethod, c.iface, method)
	}
	b := c.binder
	b.mu.Lock()
	b.Calls = append(b.Calls, Invocation{Address: c.address, Interface: c.iface, Method: method, Args: args})
	fn := b.reads[c.address][method]
	b.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("no stub for %s.%s at %s", c.iface, method, c.address.Hex())
	}
	return fn(args...)
}

func (c *contract) Transact(_ context.Context, value *big.Int, method string, args ...interface{}) (*types.Transaction, error) {
	if !chain.HasMethod(c.iface, method) {
		return nil, fmt.Errorf("%w: %s.%s", chain.ErrUnknownMethod, c.iface, method)
	}
	b := c.binder
	b.mu.Lock()
	b.Sent = append(b.Sent, Invocation{Address: c.address, Interface: c.iface, Method: method, Args: args, Value: value})
	fn := b.sends[c.address][method]
	b.nonce++
	nonce := b.nonce
	b.mu.Unlock()

	if fn != nil {
		if err := fn(value, args...); err != nil {
			return nil, err
		}
	}
	to := c.address
	return types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Value: value, Gas: 21000, GasPrice: big.NewInt(1)}), nil
}

func (c *contract) Pack(method string, args ...interface{}) ([]byte, error) {
	parsed, err := chain.ABI(c.iface)
	if err != nil {
		return nil, err
	}
	if !chain.HasMethod(c.iface, method) {
		return nil, fmt.Errorf("%w: %s.%s", chain.ErrUnknownMethod, c.iface, method)
	}
	return parsed.Pack(method, args...)
}
