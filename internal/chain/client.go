// Package chain binds the storefront's contract ABIs to an EVM RPC endpoint.
//
// Every read and write goes through a Contract obtained from Binder.Bind, which
// only accepts methods declared by the interface the address was bound with.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/config"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

// Contract is a deployed contract bound to one static interface.
type Contract interface {
	Address() common.Address
	Interface() Interface
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	Transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Transaction, error)
	Pack(method string, args ...interface{}) ([]byte, error)
}

// Binder creates Contracts and waits for the transactions they send.
type Binder interface {
	Bind(address common.Address, iface Interface) (Contract, error)
	From() common.Address
	WaitReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Backend is what Client needs from an RPC connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Wallet is the operator key used to sign every write.
type Wallet struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewWallet(hexKey string, chainID int64) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

func (w *Wallet) Address() common.Address { return w.address }

type Options struct {
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

type Client struct {
	backend Backend
	wallet  *Wallet
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient wraps backend. wallet may be nil, in which case Transact returns ErrNoSigner.
func NewClient(backend Backend, wallet *Wallet, opts Options, logger *zap.Logger, m *metrics.Metrics) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	return &Client{backend: backend, wallet: wallet, opts: opts, logger: logger, metrics: m}
}

// Dial connects to the RPC endpoint in cfg and loads the operator wallet if one is configured.
func Dial(ctx context.Context, cfg config.Chain, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}

	var wallet *Wallet
	if cfg.PrivateKey != "" {
		wallet, err = NewWallet(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			ec.Close()
			return nil, err
		}
		logger.Info("operator wallet loaded", zap.String("address", wallet.Address().Hex()))
	} else {
		logger.Warn("no private key configured, writes are disabled")
	}

	return NewClient(ec, wallet, Options{
		PollInterval:   cfg.PollInterval,
		ReceiptTimeout: cfg.ReceiptTimeout,
	}, logger, m), nil
}

func (c *Client) Close() {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

// From is the operator address, or the zero address when no wallet is loaded.
func (c *Client) From() common.Address {
	if c.wallet == nil {
		return common.Address{}
	}
	return c.wallet.address
}

func (c *Client) Bind(address common.Address, iface Interface) (Contract, error) {
	parsed, err := ABI(iface)
	if err != nil {
		return nil, err
	}
	return &boundContract{
		client:  c,
		address: address,
		iface:   iface,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend),
	}, nil
}

// EnsureChain checks that the connected network is the one the wallet signs for.
func (c *Client) EnsureChain(ctx context.Context) error {
	if c.wallet == nil {
		return ErrNoSigner
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if id.Cmp(c.wallet.chainID) != 0 {
		return fmt.Errorf("%w: wallet %s, network %s", ErrWrongChain, c.wallet.chainID, id)
	}
	return nil
}

func (c *Client) WaitReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ReceiptTimeout)
	defer cancel()

	started := time.Now()
	receipt, err := waitReceipt(ctx, c.backend, tx.Hash(), c.opts.PollInterval)
	c.metrics.RecordRPC("", "receipt", "wait", started, err)
	return receipt, err
}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// waitReceipt polls until the transaction is mined or ctx is done.
func waitReceipt(ctx context.Context, r receiptReader, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, &TxFailedError{Hash: hash}
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// ── bound contract ────────────────────────────────────────────────────────────

type boundContract struct {
	client  *Client
	address common.Address
	iface   Interface
	abi     abi.ABI
	bound   *bind.BoundContract
}

func (b *boundContract) Address() common.Address { return b.address }
func (b *boundContract) Interface() Interface     { return b.iface }

func (b *boundContract) checkMethod(method string) error {
	if _, ok := b.abi.Methods[method]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, b.iface, method)
	}
	return nil
}

func (b *boundContract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := b.checkMethod(method); err != nil {
		return nil, err
	}

	started := time.Now()
	var out []interface{}
	err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	b.client.metrics.RecordRPC(string(b.iface), method, "call", started, err)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s at %s: %w", b.iface, method, b.address.Hex(), asRevert(err))
	}
	return out, nil
}

func (b *boundContract) Transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Transaction, error) {
	if err := b.checkMethod(method); err != nil {
		return nil, err
	}
	if err := b.client.EnsureChain(ctx); err != nil {
		return nil, err
	}

	w := b.client.wallet
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	if value != nil {
		opts.Value = new(big.Int).Set(value)
	}

	// One signer, so sends are serialized to keep pending nonces in order.
	w.mu.Lock()
	started := time.Now()
	tx, err := b.bound.Transact(opts, method, args...)
	w.mu.Unlock()

	b.client.metrics.RecordRPC(string(b.iface), method, "transact", started, err)
	if err != nil {
		return nil, fmt.Errorf("send %s.%s to %s: %w", b.iface, method, b.address.Hex(), asRevert(err))
	}
	b.client.logger.Info("transaction sent",
		zap.String("interface", string(b.iface)),
		zap.String("method", method),
		zap.String("to", b.address.Hex()),
		zap.String("tx_hash", tx.Hash().Hex()),
	)
	return tx, nil
}

func (b *boundContract) Pack(method string, args ...interface{}) ([]byte, error) {
	if err := b.checkMethod(method); err != nil {
		return nil, err
	}
	return b.abi.Pack(method, args...)
}
