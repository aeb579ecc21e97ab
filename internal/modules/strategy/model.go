package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// Category is one of the three pluggable strategy slots a product has.
type Category string

const (
	CategoryReward   Category = "reward"
	CategoryDiscount Category = "discount"
	CategoryFeeShare Category = "fee-share"
)

var Categories = []Category{CategoryReward, CategoryDiscount, CategoryFeeShare}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperr.ValidationField("category", fmt.Sprintf("unknown strategy category %q", s))
}

// BaseInterface is the minimal ABI every strategy of the category implements.
func (c Category) BaseInterface() chain.Interface {
	switch c {
	case CategoryReward:
		return chain.RewardStrategyInterface
	case CategoryDiscount:
		return chain.DiscountStrategyInterface
	default:
		return chain.FeeShareStrategyInterface
	}
}

func (c Category) contractName() string {
	switch c {
	case CategoryReward:
		return "Reward"
	case CategoryDiscount:
		return "Discount"
	default:
		return "FeeShare"
	}
}

// ListMethod is the shop method returning the registered strategy addresses.
func (c Category) ListMethod() string { return "get" + c.contractName() + "Strategies" }

// AddMethod is the shop method registering a deployed strategy.
func (c Category) AddMethod() string { return "add" + c.contractName() + "Strategy" }

// SetProductMethod is the shop method attaching a strategy to a product.
func (c Category) SetProductMethod() string { return "set" + c.contractName() + "Strategy" }

// VariantTag is the string a strategy contract returns from getType().
type VariantTag string

type Status string

const (
	StatusResolved    Status = "resolved"
	StatusUnsupported Status = "unsupported"
	StatusError       Status = "error"
)

// Variable is one labelled read shown for a resolved strategy.
type Variable struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type FieldType string

const (
	FieldAmount     FieldType = "amount"
	FieldAddress    FieldType = "address"
	FieldPercentage FieldType = "percentage"
	FieldTimestamp  FieldType = "timestamp"
	FieldInteger    FieldType = "integer"
)

// Field describes one form input of an action.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Hint     string    `json:"hint,omitempty"`
	// Decimals scales amount fields into base units.
	Decimals uint8 `json:"decimals,omitempty"`
}

// Input holds parsed form values keyed by field name.
type Input map[string]interface{}

func (in Input) Int(name string) *big.Int {
	v, _ := in[name].(*big.Int)
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (in Input) Address(name string) common.Address {
	v, _ := in[name].(common.Address)
	return v
}

// step is a single write an action sends.
type step struct {
	contract chain.Contract
	method   string
	args     []interface{}
}

// Action is a mutation offered for a resolved strategy. The check and plan
// closures are bound to the contract of the variant the action came from.
type Action struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
	Footer      string  `json:"footer,omitempty"`

	check func(ctx context.Context, in Input) error
	plan  func(in Input) []step
}

// Resolved is one strategy address with its variant reads and actions.
type Resolved struct {
	Category    Category       `json:"category"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Address     common.Address `json:"address"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Variables   []Variable     `json:"variables"`
	Actions     []Action       `json:"actions"`
}

func (r *Resolved) action(name string) (*Action, bool) {
	for i := range r.Actions {
		if r.Actions[i].Name == name {
			return &r.Actions[i], true
		}
	}
	return nil, false
}

// Tab is one action rendered as a dialog page.
type Tab struct {
	Action      string  `json:"action"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Form        []Field `json:"form"`
	Footer      string  `json:"footer,omitempty"`
}

type Dialog struct {
	Strategy common.Address `json:"strategy"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Tabs     []Tab          `json:"tabs"`
}

// ExecuteRequest names an action on a registered strategy of a shop.
type ExecuteRequest struct {
	Shop     common.Address
	Category Category
	Strategy common.Address
	Action   string
	Form     map[string]string
}

type ExecuteResult struct {
	Action     string     `json:"action"`
	TxHashes   []string   `json:"tx_hashes"`
	Strategies []Resolved `json:"strategies"`
}

// TypeInfo is a registry entry as exposed to clients.
type TypeInfo struct {
	Category    Category   `json:"category"`
	Type        VariantTag `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}
