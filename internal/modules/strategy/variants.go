package strategy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// reader issues sequential reads and keeps the first error.
type reader struct {
	ctx context.Context
	err error
}

func (r *reader) call(c chain.Contract, method string, args ...interface{}) []interface{} {
	if r.err != nil {
		return nil
	}
	out, err := c.Call(r.ctx, method, args...)
	if err != nil {
		r.err = err
		return nil
	}
	return out
}

func (r *reader) bigInt(c chain.Contract, method string, args ...interface{}) *big.Int {
	out := r.call(c, method, args...)
	if r.err != nil {
		return new(big.Int)
	}
	v, err := chain.AsBigInt(out, 0)
	r.err = err
	return v
}

func (r *reader) address(c chain.Contract, method string, args ...interface{}) common.Address {
	out := r.call(c, method, args...)
	if r.err != nil {
		return common.Address{}
	}
	v, err := chain.AsAddress(out, 0)
	r.err = err
	return v
}

func (r *reader) str(c chain.Contract, method string, args ...interface{}) string {
	out := r.call(c, method, args...)
	if r.err != nil {
		return ""
	}
	v, err := chain.AsString(out, 0)
	r.err = err
	return v
}

func (r *reader) uint8(c chain.Contract, method string, args ...interface{}) uint8 {
	out := r.call(c, method, args...)
	if r.err != nil {
		return 0
	}
	v, err := chain.AsUint8(out, 0)
	r.err = err
	return v
}

func (r *reader) boolean(c chain.Contract, method string, args ...interface{}) bool {
	out := r.call(c, method, args...)
	if r.err != nil {
		return false
	}
	v, err := chain.AsBool(out, 0)
	r.err = err
	return v
}

func (r *reader) bind(b chain.Binder, addr common.Address, iface chain.Interface) chain.Contract {
	if r.err != nil {
		return nil
	}
	c, err := b.Bind(addr, iface)
	r.err = err
	return c
}

// token is the ERC-20 a reward strategy pays out.
type token struct {
	contract chain.Contract
	symbol   string
	decimals uint8
}

func (t *token) format(v *big.Int) string {
	return chain.FormatUnits(v, t.decimals) + " " + t.symbol
}

func (r *reader) token(b chain.Binder, strategy chain.Contract) *token {
	addr := r.address(strategy, "token")
	c := r.bind(b, addr, chain.ERC20Interface)
	if r.err != nil {
		return nil
	}
	return &token{
		contract: c,
		symbol:   r.str(c, "symbol"),
		decimals: r.uint8(c, "decimals"),
	}
}

func formatTime(unix *big.Int) string {
	if unix == nil || unix.Sign() == 0 {
		return "not set"
	}
	return time.Unix(unix.Int64(), 0).UTC().Format(time.RFC3339)
}

// ── reward ────────────────────────────────────────────────────────────────────

func tokenVar(t *token) Variable {
	return Variable{Label: "Token", Value: fmt.Sprintf("%s (%s)", t.symbol, t.contract.Address().Hex())}
}

func poolBalance(r *reader, t *token, strategy chain.Contract) Variable {
	return Variable{Label: "Pool balance", Value: t.format(r.bigInt(t.contract, "balanceOf", strategy.Address()))}
}

func loadFixedReward(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	t := r.token(b, c)
	if r.err != nil {
		return nil, r.err
	}
	amount := r.bigInt(c, "rewardAmount")
	vars := []Variable{
		tokenVar(t),
		{Label: "Reward per purchase", Value: t.format(amount)},
		poolBalance(r, t, c),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions: []Action{
			setAmountAction("update-amount", "Update reward", "Reward paid on each purchase.", "setRewardAmount", c, t),
			fundAction(b, c, t),
			withdrawAction(c, t),
		},
	}, nil
}

func loadLinearReward(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	t := r.token(b, c)
	if r.err != nil {
		return nil, r.err
	}
	rate := r.bigInt(c, "rewardPerUnit")
	vars := []Variable{
		tokenVar(t),
		{Label: "Reward per unit", Value: t.format(rate)},
		poolBalance(r, t, c),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions: []Action{
			setAmountAction("update-rate", "Update rate", "Reward paid for each unit bought.", "setRewardPerUnit", c, t),
			fundAction(b, c, t),
			withdrawAction(c, t),
		},
	}, nil
}

func loadBondingCurveReward(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	t := r.token(b, c)
	if r.err != nil {
		return nil, r.err
	}
	initial := r.bigInt(c, "initialReward")
	factor := r.bigInt(c, "curveFactorBps")
	issued := r.bigInt(c, "totalIssued")
	vars := []Variable{
		tokenVar(t),
		{Label: "Initial reward", Value: t.format(initial)},
		{Label: "Curve factor", Value: chain.FormatBps(factor) + "%"},
		{Label: "Total issued", Value: t.format(issued)},
		poolBalance(r, t, c),
	}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions: []Action{
			curveAction(c, t),
			fundAction(b, c, t),
			withdrawAction(c, t),
		},
	}, nil
}

func loadAllowlistReward(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	t := r.token(b, c)
	if r.err != nil {
		return nil, r.err
	}
	amount := r.bigInt(c, "rewardAmount")
	size := r.bigInt(c, "getAllowlistLength")
	vars := []Variable{
		tokenVar(t),
		{Label: "Reward per purchase", Value: t.format(amount)},
		{Label: "Allowlisted addresses", Value: size.String()},
		poolBalance(r, t, c),
	}
	if r.err != nil {
		return nil, r.err
	}
	add, remove := allowlistActions(c)
	return &variant{
		variables: vars,
		actions: []Action{
			setAmountAction("update-amount", "Update reward", "Reward paid on each purchase.", "setRewardAmount", c, t),
			add,
			remove,
			fundAction(b, c, t),
			withdrawAction(c, t),
		},
	}, nil
}

// ── discount ──────────────────────────────────────────────────────────────────

func discountVar(r *reader, c chain.Contract) Variable {
	return Variable{Label: "Discount", Value: chain.FormatBps(r.bigInt(c, "discountBps")) + "%"}
}

func loadPercentageDiscount(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	vars := []Variable{discountVar(r, c)}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions:   []Action{percentageAction("Update discount", "Percentage taken off the order total.", "setDiscountBps", c)},
	}, nil
}

func loadAllowlistDiscount(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	vars := []Variable{
		discountVar(r, c),
		{Label: "Allowlisted addresses", Value: r.bigInt(c, "getAllowlistLength").String()},
	}
	if r.err != nil {
		return nil, r.err
	}
	add, remove := allowlistActions(c)
	return &variant{
		variables: vars,
		actions: []Action{
			percentageAction("Update discount", "Percentage taken off for allowlisted buyers.", "setDiscountBps", c),
			add,
			remove,
		},
	}, nil
}

func loadTimeLimitedDiscount(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	vars := []Variable{
		discountVar(r, c),
		{Label: "Starts", Value: formatTime(r.bigInt(c, "startTime"))},
		{Label: "Ends", Value: formatTime(r.bigInt(c, "endTime"))},
	}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions: []Action{
			percentageAction("Update discount", "Percentage taken off during the window.", "setDiscountBps", c),
			windowAction(c),
		},
	}, nil
}

func loadNFTHolderDiscount(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	discount := discountVar(r, c)
	collection := r.address(c, "collection")
	if r.err != nil {
		return nil, r.err
	}

	label := "none"
	if collection != (common.Address{}) {
		nft := r.bind(b, collection, chain.ERC721Interface)
		label = fmt.Sprintf("%s (%s)", r.str(nft, "name"), collection.Hex())
	}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: []Variable{discount, {Label: "Collection", Value: label}},
		actions: []Action{
			percentageAction("Update discount", "Percentage taken off for holders.", "setDiscountBps", c),
			collectionAction(b, c),
		},
	}, nil
}

// ── fee share ─────────────────────────────────────────────────────────────────

func feeShareVar(r *reader, c chain.Contract) Variable {
	return Variable{Label: "Fee share", Value: chain.FormatBps(r.bigInt(c, "feeShareBps")) + "%"}
}

func loadFixedFeeShare(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	vars := []Variable{feeShareVar(r, c)}
	if r.err != nil {
		return nil, r.err
	}
	return &variant{
		variables: vars,
		actions:   []Action{percentageAction("Update fee share", "Share of each sale paid to the referrer.", "setFeeShareBps", c)},
	}, nil
}

func loadAllowlistFeeShare(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error) {
	r := &reader{ctx: ctx}
	vars := []Variable{
		feeShareVar(r, c),
		{Label: "Allowlisted addresses", Value: r.bigInt(c, "getAllowlistLength").String()},
	}
	if r.err != nil {
		return nil, r.err
	}
	add, remove := allowlistActions(c)
	return &variant{
		variables: vars,
		actions: []Action{
			percentageAction("Update fee share", "Share of each sale paid to allowlisted referrers.", "setFeeShareBps", c),
			add,
			remove,
		},
	}, nil
}
