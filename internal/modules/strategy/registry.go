package strategy

import (
	"context"
	"sort"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// variant is what a loader produces once the tag is known.
type variant struct {
	variables []Variable
	actions   []Action
}

type loader func(ctx context.Context, b chain.Binder, c chain.Contract) (*variant, error)

// Definition is the static knowledge about one strategy variant.
type Definition struct {
	Category    Category
	Tag         VariantTag
	Name        string
	Description string
	Interface   chain.Interface
	load        loader
}

type registryKey struct {
	category Category
	tag      VariantTag
}

// Registry maps {category, getType() tag} to a variant definition.
type Registry map[registryKey]Definition

func newRegistry(defs ...Definition) Registry {
	r := make(Registry, len(defs))
	for _, d := range defs {
		r[registryKey{d.Category, d.Tag}] = d
	}
	return r
}

// Lookup returns the definition for tag within category.
func (r Registry) Lookup(category Category, tag VariantTag) (Definition, bool) {
	d, ok := r[registryKey{category, tag}]
	return d, ok
}

// Types lists every definition ordered by category then tag.
func (r Registry) Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(r))
	for _, d := range r {
		out = append(out, TypeInfo{Category: d.Category, Type: d.Tag, Name: d.Name, Description: d.Description})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// DefaultRegistry holds every variant this service understands.
var DefaultRegistry = newRegistry(
	// ── reward ────────────────────────────────────────────────────────────────
	Definition{
		Category:    CategoryReward,
		Tag:         "FixedERC20Reward",
		Name:        "Fixed Token Reward",
		Description: "Pays a fixed amount of an ERC-20 token to the buyer on every purchase.",
		Interface:   chain.FixedERC20RewardInterface,
		load:        loadFixedReward,
	},
	Definition{
		Category:    CategoryReward,
		Tag:         "LinearERC20Reward",
		Name:        "Per-Unit Token Reward",
		Description: "Pays an ERC-20 token amount for each unit purchased.",
		Interface:   chain.LinearERC20RewardInterface,
		load:        loadLinearReward,
	},
	Definition{
		Category:    CategoryReward,
		Tag:         "BondingCurveERC20Reward",
		Name:        "Bonding Curve Token Reward",
		Description: "Pays a token reward that decays along a curve as more rewards are issued, favouring early buyers.",
		Interface:   chain.BondingCurveERC20RewardInterface,
		load:        loadBondingCurveReward,
	},
	Definition{
		Category:    CategoryReward,
		Tag:         "AllowlistFixedERC20Reward",
		Name:        "Allowlist Token Reward",
		Description: "Pays a fixed ERC-20 reward only to buyers on the allowlist.",
		Interface:   chain.AllowlistFixedERC20RewardInterface,
		load:        loadAllowlistReward,
	},

	// ── discount ──────────────────────────────────────────────────────────────
	Definition{
		Category:    CategoryDiscount,
		Tag:         "PercentageDiscount",
		Name:        "Percentage Discount",
		Description: "Takes a fixed percentage off the order total for every buyer.",
		Interface:   chain.PercentageDiscountInterface,
		load:        loadPercentageDiscount,
	},
	Definition{
		Category:    CategoryDiscount,
		Tag:         "AllowlistPercentageDiscount",
		Name:        "Allowlist Discount",
		Description: "Takes a percentage off the order total for buyers on the allowlist.",
		Interface:   chain.AllowlistPercentageDiscountInterface,
		load:        loadAllowlistDiscount,
	},
	Definition{
		Category:    CategoryDiscount,
		Tag:         "TimeLimitedPercentageDiscount",
		Name:        "Time-Limited Discount",
		Description: "Takes a percentage off the order total between a start and an end time.",
		Interface:   chain.TimeLimitedPercentageDiscountInterface,
		load:        loadTimeLimitedDiscount,
	},
	Definition{
		Category:    CategoryDiscount,
		Tag:         "NFTHolderPercentageDiscount",
		Name:        "NFT Holder Discount",
		Description: "Takes a percentage off the order total for buyers holding a token from an ERC-721 collection.",
		Interface:   chain.NFTHolderPercentageDiscountInterface,
		load:        loadNFTHolderDiscount,
	},

	// ── fee share ─────────────────────────────────────────────────────────────
	Definition{
		Category:    CategoryFeeShare,
		Tag:         "FixedFeeShare",
		Name:        "Referral Fee Share",
		Description: "Sends a fixed percentage of each sale to the referrer named in the purchase.",
		Interface:   chain.FixedFeeShareInterface,
		load:        loadFixedFeeShare,
	},
	Definition{
		Category:    CategoryFeeShare,
		Tag:         "AllowlistFeeShare",
		Name:        "Allowlist Referral Fee Share",
		Description: "Sends a percentage of each sale to the referrer, when the referrer is on the allowlist.",
		Interface:   chain.AllowlistFeeShareInterface,
		load:        loadAllowlistFeeShare,
	},
)
