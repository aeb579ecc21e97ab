package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/chain/chaintest"
)

var (
	shopAddr   = common.HexToAddress("0x00000000000000000000000000000000000005a0")
	operator   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenAddr  = common.HexToAddress("0x0000000000000000000000000000000000000e20")
	collection = common.HexToAddress("0x0000000000000000000000000000000000000721")
)

func strategyAddr(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

func newResolver(b chain.Binder) *Resolver {
	return NewResolver(b, DefaultRegistry, 4, zap.NewNop(), nil)
}

func stubList(b *chaintest.Binder, category Category, addrs ...common.Address) {
	b.Returns(shopAddr, category.ListMethod(), addrs)
}

func stubPercentageDiscount(b *chaintest.Binder, addr common.Address, bps int64) {
	b.Returns(addr, "getType", "PercentageDiscount")
	b.Returns(addr, "discountBps", big.NewInt(bps))
}

func stubFixedReward(b *chaintest.Binder, addr common.Address, amount, pool *big.Int) {
	b.Returns(addr, "getType", "FixedERC20Reward")
	b.Returns(addr, "token", tokenAddr)
	b.Returns(addr, "rewardAmount", amount)
	b.Returns(tokenAddr, "symbol", "RWD")
	b.Returns(tokenAddr, "decimals", uint8(18))
	b.On(tokenAddr, "balanceOf", func(args ...interface{}) ([]interface{}, error) {
		if args[0].(common.Address) == addr {
			return []interface{}{pool}, nil
		}
		return []interface{}{big.NewInt(0)}, nil
	})
}

func TestRegistryIsComplete(t *testing.T) {
	types := DefaultRegistry.Types()
	require.Len(t, types, 10)

	perCategory := map[Category]int{}
	for _, info := range types {
		perCategory[info.Category]++
		assert.NotEmpty(t, info.Name, info.Type)
		assert.NotEmpty(t, info.Description, info.Type)

		def, ok := DefaultRegistry.Lookup(info.Category, info.Type)
		require.True(t, ok)
		assert.NotNil(t, def.load)
		_, err := chain.ABI(def.Interface)
		assert.NoError(t, err)
		assert.True(t, chain.HasMethod(def.Interface, "getType"))
	}
	assert.Equal(t, map[Category]int{CategoryReward: 4, CategoryDiscount: 4, CategoryFeeShare: 2}, perCategory)
}

func TestLookupIsScopedToCategory(t *testing.T) {
	_, ok := DefaultRegistry.Lookup(CategoryReward, "PercentageDiscount")
	assert.False(t, ok)
}

func TestResolveBindsVariantInterface(t *testing.T) {
	b := chaintest.NewBinder(operator)
	pct, nft := strategyAddr(1), strategyAddr(2)
	stubList(b, CategoryDiscount, pct, nft)
	stubPercentageDiscount(b, pct, 1250)
	b.Returns(nft, "getType", "NFTHolderPercentageDiscount")
	b.Returns(nft, "discountBps", big.NewInt(500))
	b.Returns(nft, "collection", collection)
	b.Returns(collection, "name", "Punks")

	rows, err := newResolver(b).Resolve(context.Background(), shopAddr, CategoryDiscount)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, StatusResolved, rows[0].Status)
	assert.Equal(t, "Percentage Discount", rows[0].Name)
	assert.Equal(t, []Variable{{Label: "Discount", Value: "12.5%"}}, rows[0].Variables)
	assert.Equal(t, "update-percentage", rows[0].Actions[0].Name)

	assert.Equal(t, []Variable{
		{Label: "Discount", Value: "5%"},
		{Label: "Collection", Value: "Punks (" + collection.Hex() + ")"},
	}, rows[1].Variables)

	for _, call := range b.CallsTo(pct) {
		if call.Method == "getType" {
			continue
		}
		assert.Equal(t, chain.PercentageDiscountInterface, call.Interface, call.Method)
	}
	assert.Contains(t, b.Bindings, chaintest.Binding{Address: collection, Interface: chain.ERC721Interface})
	assert.Contains(t, b.Bindings, chaintest.Binding{Address: pct, Interface: chain.DiscountStrategyInterface})
}

func TestResolveRewardReadsToken(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryReward, addr)
	stubFixedReward(b, addr, big.NewInt(5e18), new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)))

	rows, err := newResolver(b).Resolve(context.Background(), shopAddr, CategoryReward)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, []Variable{
		{Label: "Token", Value: "RWD (" + tokenAddr.Hex() + ")"},
		{Label: "Reward per purchase", Value: "5 RWD"},
		{Label: "Pool balance", Value: "100 RWD"},
	}, rows[0].Variables)

	var names []string
	for _, a := range rows[0].Actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"update-amount", "fund", "withdraw"}, names)
}

func TestResolveUnknownTagIsUnsupported(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryFeeShare, addr)
	b.Returns(addr, "getType", "QuadraticFeeShare")

	rows, err := newResolver(b).Resolve(context.Background(), shopAddr, CategoryFeeShare)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusUnsupported, rows[0].Status)
	assert.Equal(t, "QuadraticFeeShare", rows[0].Type)
	assert.Empty(t, rows[0].Variables)
	assert.Empty(t, rows[0].Actions)
	assert.Empty(t, rows[0].Error)
}

func TestResolveIsolatesItemFailures(t *testing.T) {
	b := chaintest.NewBinder(operator)
	a1, a2, a3 := strategyAddr(1), strategyAddr(2), strategyAddr(3)
	stubList(b, CategoryDiscount, a1, a2, a3)
	stubPercentageDiscount(b, a1, 100)
	b.On(a2, "getType", func(...interface{}) ([]interface{}, error) {
		return nil, errors.New("execution reverted")
	})
	stubPercentageDiscount(b, a3, 300)

	rows, err := newResolver(b).Resolve(context.Background(), shopAddr, CategoryDiscount)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, StatusResolved, rows[0].Status)
	assert.Equal(t, StatusError, rows[1].Status)
	assert.Contains(t, rows[1].Error, "execution reverted")
	assert.Equal(t, a2, rows[1].Address)
	assert.Equal(t, StatusResolved, rows[2].Status)
}

func TestResolveListFailureFailsCall(t *testing.T) {
	b := chaintest.NewBinder(operator)
	b.On(shopAddr, CategoryReward.ListMethod(), func(...interface{}) ([]interface{}, error) {
		return nil, errors.New("connection refused")
	})

	_, err := newResolver(b).Resolve(context.Background(), shopAddr, CategoryReward)
	assert.ErrorContains(t, err, "connection refused")
}

func TestResolvePreservesOrderAndIsIdempotent(t *testing.T) {
	b := chaintest.NewBinder(operator)
	var addrs []common.Address
	for i := 0; i < 12; i++ {
		addr := strategyAddr(i)
		addrs = append(addrs, addr)
		stubPercentageDiscount(b, addr, int64(100*i))
	}
	stubList(b, CategoryDiscount, addrs...)
	r := newResolver(b)

	first, err := r.Resolve(context.Background(), shopAddr, CategoryDiscount)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), shopAddr, CategoryDiscount)
	require.NoError(t, err)

	require.Len(t, first, len(addrs))
	for i := range addrs {
		assert.Equal(t, addrs[i], first[i].Address)
		assert.Equal(t, fmt.Sprintf("%s%%", chain.FormatBps(big.NewInt(int64(100*i)))), first[i].Variables[0].Value)
		assert.Equal(t, first[i].Variables, second[i].Variables)
	}
}

func TestNewDialogHasTabPerAction(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	b.Returns(addr, "getType", "AllowlistFeeShare")
	b.Returns(addr, "feeShareBps", big.NewInt(250))
	b.Returns(addr, "getAllowlistLength", big.NewInt(3))

	row := newResolver(b).ResolveOne(context.Background(), CategoryFeeShare, addr)
	require.Equal(t, StatusResolved, row.Status)

	d := NewDialog(row)
	require.Len(t, d.Tabs, 3)
	assert.Equal(t, "update-percentage", d.Tabs[0].Action)
	assert.Equal(t, FieldPercentage, d.Tabs[0].Form[0].Type)
	assert.Equal(t, "add-allowlist", d.Tabs[1].Action)
	assert.Equal(t, "remove-allowlist", d.Tabs[2].Action)
}
