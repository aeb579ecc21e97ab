package strategy

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

func noCheck(context.Context, Input) error { return nil }

func amountField(name, label string, t *token) Field {
	return Field{
		Name:     name,
		Label:    label,
		Type:     FieldAmount,
		Required: true,
		Hint:     "in " + t.symbol,
		Decimals: t.decimals,
	}
}

// ── reward ────────────────────────────────────────────────────────────────────

func setAmountAction(name, title, description, method string, c chain.Contract, t *token) Action {
	return Action{
		Name:        name,
		Title:       title,
		Description: description,
		Fields:      []Field{amountField("amount", "Amount", t)},
		check:       noCheck,
		plan: func(in Input) []step {
			return []step{{contract: c, method: method, args: []interface{}{in.Int("amount")}}}
		},
	}
}

// fundAction moves tokens from the operator wallet into the strategy pool.
func fundAction(b chain.Binder, c chain.Contract, t *token) Action {
	return Action{
		Name:        "fund",
		Title:       "Fund pool",
		Description: "Transfer reward tokens from the operator wallet to the strategy.",
		Fields:      []Field{amountField("amount", "Amount", t)},
		Footer:      "Rewards stop being paid when the pool runs dry.",
		check: func(ctx context.Context, in Input) error {
			from := b.From()
			if from == (common.Address{}) {
				return chain.ErrNoSigner
			}
			r := &reader{ctx: ctx}
			balance := r.bigInt(t.contract, "balanceOf", from)
			if r.err != nil {
				return r.err
			}
			if balance.Cmp(in.Int("amount")) < 0 {
				return apperr.Preconditionf("wallet balance %s is below %s", t.format(balance), t.format(in.Int("amount")))
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: t.contract, method: "transfer", args: []interface{}{c.Address(), in.Int("amount")}}}
		},
	}
}

func withdrawAction(c chain.Contract, t *token) Action {
	return Action{
		Name:        "withdraw",
		Title:       "Withdraw",
		Description: "Return unpaid reward tokens to the shop owner.",
		Fields:      []Field{amountField("amount", "Amount", t)},
		check: func(ctx context.Context, in Input) error {
			r := &reader{ctx: ctx}
			pool := r.bigInt(t.contract, "balanceOf", c.Address())
			if r.err != nil {
				return r.err
			}
			if pool.Cmp(in.Int("amount")) < 0 {
				return apperr.Preconditionf("pool holds only %s", t.format(pool))
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: c, method: "withdraw", args: []interface{}{in.Int("amount")}}}
		},
	}
}

func curveAction(c chain.Contract, t *token) Action {
	return Action{
		Name:        "update-curve",
		Title:       "Update curve",
		Description: "Reward for the first purchase and how quickly it decays.",
		Fields: []Field{
			amountField("initial_reward", "Initial reward", t),
			{Name: "curve_factor", Label: "Curve factor", Type: FieldPercentage, Required: true, Hint: "percent, 0 to 100"},
		},
		check: noCheck,
		plan: func(in Input) []step {
			return []step{{contract: c, method: "setCurveParams", args: []interface{}{in.Int("initial_reward"), in.Int("curve_factor")}}}
		},
	}
}

// ── allowlist ─────────────────────────────────────────────────────────────────

func allowlistActions(c chain.Contract) (add, remove Action) {
	field := []Field{{Name: "account", Label: "Account", Type: FieldAddress, Required: true, Hint: "0x…"}}

	listed := func(ctx context.Context, account common.Address) (bool, error) {
		r := &reader{ctx: ctx}
		ok := r.boolean(c, "isAllowlisted", account)
		return ok, r.err
	}

	add = Action{
		Name:   "add-allowlist",
		Title:  "Add to allowlist",
		Fields: field,
		check: func(ctx context.Context, in Input) error {
			ok, err := listed(ctx, in.Address("account"))
			if err != nil {
				return err
			}
			if ok {
				return apperr.Preconditionf("%s is already allowlisted", in.Address("account").Hex())
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: c, method: "addToAllowlist", args: []interface{}{in.Address("account")}}}
		},
	}
	remove = Action{
		Name:   "remove-allowlist",
		Title:  "Remove from allowlist",
		Fields: field,
		check: func(ctx context.Context, in Input) error {
			ok, err := listed(ctx, in.Address("account"))
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Preconditionf("%s is not allowlisted", in.Address("account").Hex())
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: c, method: "removeFromAllowlist", args: []interface{}{in.Address("account")}}}
		},
	}
	return add, remove
}

// ── percentages ───────────────────────────────────────────────────────────────

func percentageAction(title, description, method string, c chain.Contract) Action {
	return Action{
		Name:        "update-percentage",
		Title:       title,
		Description: description,
		Fields: []Field{
			{Name: "percentage", Label: "Percentage", Type: FieldPercentage, Required: true, Hint: "0 to 100, up to two decimals"},
		},
		check: noCheck,
		plan: func(in Input) []step {
			return []step{{contract: c, method: method, args: []interface{}{in.Int("percentage")}}}
		},
	}
}

func windowAction(c chain.Contract) Action {
	return Action{
		Name:        "update-window",
		Title:       "Update window",
		Description: "When the discount applies.",
		Fields: []Field{
			{Name: "start", Label: "Start", Type: FieldTimestamp, Required: true, Hint: "unix seconds or RFC 3339"},
			{Name: "end", Label: "End", Type: FieldTimestamp, Required: true, Hint: "unix seconds or RFC 3339"},
		},
		check: func(_ context.Context, in Input) error {
			if in.Int("end").Cmp(in.Int("start")) <= 0 {
				return apperr.ValidationField("end", "End must be after start")
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: c, method: "setTimeWindow", args: []interface{}{in.Int("start"), in.Int("end")}}}
		},
	}
}

func collectionAction(b chain.Binder, c chain.Contract) Action {
	return Action{
		Name:        "update-collection",
		Title:       "Update collection",
		Description: "Holders of this ERC-721 collection receive the discount.",
		Fields: []Field{
			{Name: "collection", Label: "Collection", Type: FieldAddress, Required: true, Hint: "ERC-721 contract address"},
		},
		check: func(ctx context.Context, in Input) error {
			nft, err := b.Bind(in.Address("collection"), chain.ERC721Interface)
			if err != nil {
				return err
			}
			// balanceOf(zero) reverts on compliant collections, so probe with the strategy itself.
			if _, err := nft.Call(ctx, "balanceOf", c.Address()); err != nil {
				return apperr.Preconditionf("%s does not look like an ERC-721 collection", in.Address("collection").Hex())
			}
			return nil
		},
		plan: func(in Input) []step {
			return []step{{contract: c, method: "setCollection", args: []interface{}{in.Address("collection")}}}
		},
	}
}
