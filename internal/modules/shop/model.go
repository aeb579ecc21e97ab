package shop

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// Shop is a deployed shop contract joined with its IPFS metadata.
type Shop struct {
	Address       common.Address `json:"address"`
	Owner         common.Address `json:"owner"`
	MetadataCID   string         `json:"metadata_cid"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ImageURL      string         `json:"image_url,omitempty"`
	MetadataError string         `json:"metadata_error,omitempty"`
}

// Product is one listing of a shop. Supply is what is left to sell.
type Product struct {
	ID               uint64         `json:"id"`
	Shop             common.Address `json:"shop"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ImageURLs        []string       `json:"image_urls"`
	Active           bool           `json:"active"`
	Price            chain.Amount   `json:"price"`
	TotalSold        uint64         `json:"total_sold"`
	Supply           uint64         `json:"supply"`
	MetadataCID      string         `json:"metadata_cid"`
	DiscountStrategy common.Address `json:"discount_strategy"`
	FeeShareStrategy common.Address `json:"fee_share_strategy"`
	RewardStrategy   common.Address `json:"reward_strategy"`
	MetadataError    string         `json:"metadata_error,omitempty"`
}

// Order is a purchase recorded by the shop contract.
type Order struct {
	ID           uint64         `json:"id"`
	ProductID    uint64         `json:"product_id"`
	Buyer        common.Address `json:"buyer"`
	Count        uint64         `json:"count"`
	AmountPaid   chain.Amount   `json:"amount_paid"`
	SellerAmount chain.Amount   `json:"seller_amount"`
	PurchaseTime time.Time      `json:"purchase_time"`
	RefundAmount chain.Amount   `json:"refund_amount"`
	Refunded     bool           `json:"refunded"`
	Completed    bool           `json:"completed"`
}

// ProductRequest is the payload for creating or updating a product.
// Price is in ETH.
type ProductRequest struct {
	Price       string `json:"price"`
	Supply      uint64 `json:"supply"`
	MetadataCID string `json:"metadata_cid"`
}

type CreateShopRequest struct {
	MetadataCID string `json:"metadata_cid"`
}

type StrategyRequest struct {
	Address string `json:"address"`
}

type ClaimRequest struct {
	OrderIDs []uint64 `json:"order_ids"`
}

// RefundRequest carries the refund in ETH.
type RefundRequest struct {
	Amount string `json:"amount"`
}

// TxResult reports a confirmed write.
type TxResult struct {
	TxHash    string          `json:"tx_hash"`
	Shop      *common.Address `json:"shop,omitempty"`
	ProductID *uint64         `json:"product_id,omitempty"`
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page selects a window of a contract-indexed list. A zero Limit means
// DefaultPageSize; anything above MaxPageSize is clamped.
type Page struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// window returns the half-open id range [from, to) of p within total items.
func (p Page) window(total uint64) (from, to uint64) {
	limit := p.Limit
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if p.Offset >= total {
		return total, total
	}
	to = total
	if total-p.Offset > limit {
		to = p.Offset + limit
	}
	return p.Offset, to
}
