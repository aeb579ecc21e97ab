package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryInterfaceParses(t *testing.T) {
	for iface := range definitions {
		_, err := ABI(iface)
		require.NoError(t, err, iface)
	}
}

func TestVariantInterfacesDeclareGetType(t *testing.T) {
	for iface := range definitions {
		switch iface {
		case ShopFactoryInterface, ShopInterface, ERC20Interface, ERC721Interface:
			continue
		}
		assert.True(t, HasMethod(iface, "getType"), iface)
	}
}

func TestABIUnknownInterface(t *testing.T) {
	_, err := ABI("Nope")
	assert.ErrorIs(t, err, ErrUnknownInterface)
}

func TestPurchasePacksWithSelector(t *testing.T) {
	a, err := ABI(ShopInterface)
	require.NoError(t, err)

	data, err := a.Pack("purchase", big.NewInt(1), big.NewInt(3), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, a.Methods["purchase"].ID, data[:4])
	assert.Len(t, data, 4+3*32)
	assert.True(t, a.Methods["purchase"].IsPayable())
}

func TestFormatAndParseEther(t *testing.T) {
	wei, err := ParseEther("0.1")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", wei.String())
	assert.Equal(t, "0.3", FormatEther(new(big.Int).Mul(wei, big.NewInt(3))))
	assert.Equal(t, "0", FormatEther(nil))

	_, err = ParseUnits("1.234", 2)
	assert.Error(t, err)
	_, err = ParseEther("-1")
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "10", Percent(big.NewInt(1), big.NewInt(10)).String())
	assert.Equal(t, "33.33", Percent(big.NewInt(1), big.NewInt(3)).String())
	assert.Equal(t, "0", Percent(big.NewInt(5), big.NewInt(0)).String())
	assert.Equal(t, "12.5", FormatBps(big.NewInt(1250)))

	bps, err := ParsePercent("12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), bps.Int64())
}

func TestAmountJSON(t *testing.T) {
	raw, err := NewAmount(big.NewInt(1e17)).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"wei":"100000000000000000","eth":"0.1"}`, string(raw))
}

func TestDecodeHelpers(t *testing.T) {
	out := []interface{}{big.NewInt(7), "x", true}

	n, err := AsBigInt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.Int64())

	_, err = AsString(out, 0)
	assert.ErrorIs(t, err, ErrUnexpectedType)

	_, err = AsBool(out, 5)
	assert.ErrorIs(t, err, ErrUnexpectedType)
}

type rpcDataError struct{ data string }

func (e rpcDataError) Error() string          { return "execution reverted" }
func (e rpcDataError) ErrorData() interface{} { return e.data }

func TestAsRevertDecodesReason(t *testing.T) {
	// Error(string) with "sold out"
	data := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000008" +
		"736f6c64206f7574000000000000000000000000000000000000000000000000"

	err := asRevert(rpcDataError{data: data})
	var revert *RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "sold out", revert.Reason)

	plain := errors.New("connection refused")
	assert.Same(t, plain, asRevert(plain))
}

func TestTxFailedErrorIs(t *testing.T) {
	err := error(&TxFailedError{Hash: common.HexToHash("0x01")})
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

type fakeReceipts struct {
	pending int
	status  uint64
	err     error
	calls   int
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.pending {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status}, nil
}

func TestWaitReceiptPollsUntilMined(t *testing.T) {
	r := &fakeReceipts{pending: 2, status: types.ReceiptStatusSuccessful}
	receipt, err := waitReceipt(context.Background(), r, common.HexToHash("0xaa"), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, r.calls)
	assert.Equal(t, common.HexToHash("0xaa"), receipt.TxHash)
}

func TestWaitReceiptFailedStatus(t *testing.T) {
	r := &fakeReceipts{status: types.ReceiptStatusFailed}
	_, err := waitReceipt(context.Background(), r, common.HexToHash("0xbb"), time.Millisecond)

	var failed *TxFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, common.HexToHash("0xbb"), failed.Hash)
}

func TestWaitReceiptTimeout(t *testing.T) {
	r := &fakeReceipts{pending: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := waitReceipt(ctx, r, common.HexToHash("0xcc"), time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReceiptTransportError(t *testing.T) {
	r := &fakeReceipts{err: errors.New("dial tcp: refused")}
	_, err := waitReceipt(context.Background(), r, common.HexToHash("0xdd"), time.Millisecond)
	assert.ErrorContains(t, err, "refused")
	assert.NotErrorIs(t, err, ErrTransactionFailed)
}

func TestNewWallet(t *testing.T) {
	// well-known hardhat account #0
	w, err := NewWallet("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", 31337)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address())

	_, err = NewWallet("zz", 1)
	assert.Error(t, err)
}
