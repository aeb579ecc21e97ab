package purchase

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// State is the lifecycle position of a purchase submission.
type State string

const (
	StateIdle            State = "idle"
	StateSubmitting      State = "submitting"
	StateAwaitingReceipt State = "awaiting_receipt"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
	StateRejected        State = "rejected"
	StateErrored         State = "errored"
)

// Terminal reports whether no further chain activity follows s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateRejected, StateErrored:
		return true
	}
	return false
}

// Purchase is one row of the purchases ledger.
type Purchase struct {
	ID        uuid.UUID `json:"id"`
	Shop      string    `json:"shop"`
	ProductID uint64    `json:"product_id"`
	Buyer     string    `json:"buyer"`
	Referrer  string    `json:"referrer,omitempty"`
	Count     uint64    `json:"count"`
	ValueWei  string    `json:"value_wei"`
	TxHash    string    `json:"tx_hash,omitempty"`
	State     State     `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quote is the price breakdown for buying Count units. All amounts are wei
// with an ETH rendering alongside.
type Quote struct {
	Shop             common.Address  `json:"shop"`
	ProductID        uint64          `json:"product_id"`
	Count            uint64          `json:"count"`
	Buyer            common.Address  `json:"buyer"`
	UnitPrice        chain.Amount    `json:"unit_price"`
	BeforeDiscount   chain.Amount    `json:"before_discount"`
	DiscountAmount   chain.Amount    `json:"discount_amount"`
	DiscountPct      decimal.Decimal `json:"discount_pct"`
	After            chain.Amount    `json:"after"`
	DiscountStrategy common.Address  `json:"discount_strategy"`
}

// QuoteQuery is decoded from the quote endpoint's query string.
type QuoteQuery struct {
	Count uint64 `schema:"count"`
	Buyer string `schema:"buyer"`
}

type SubmitRequest struct {
	Count    uint64 `json:"count"`
	Referrer string `json:"referrer"`
}

// PrepareRequest asks for unsigned calldata that an external wallet signs.
type PrepareRequest struct {
	Shop      string `json:"shop"`
	ProductID uint64 `json:"product_id"`
	Count     uint64 `json:"count"`
	Buyer     string `json:"buyer"`
	Referrer  string `json:"referrer"`
}

// TxRequest is an unsigned transaction. Value is wei as a decimal string.
type TxRequest struct {
	To      common.Address `json:"to"`
	Data    string         `json:"data"`
	Value   string         `json:"value"`
	ChainID int64          `json:"chain_id,omitempty"`
	Quote   *Quote         `json:"quote"`
}

// Receipt is returned for a purchase that was mined successfully.
type Receipt struct {
	Purchase    *Purchase `json:"purchase"`
	Quote       *Quote    `json:"quote"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	GasUsed     uint64    `json:"gas_used"`
}
