package shop

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
)

func (s *service) orderCount(ctx context.Context, c chain.Contract) (uint64, error) {
	out, err := c.Call(ctx, "getOrderCount")
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return countOf(out)
}

func readOrder(ctx context.Context, c chain.Contract, id uint64) (*Order, error) {
	out, err := c.Call(ctx, "getOrder", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("read order %d: %w", id, err)
	}
	if len(out) != 9 {
		return nil, fmt.Errorf("read order %d: %w: got %d outputs", id, chain.ErrUnexpectedType, len(out))
	}

	ints := make([]*big.Int, 0, 6)
	for _, i := range []int{0, 2, 3, 4, 5, 6} {
		v, err := chain.AsBigInt(out, i)
		if err != nil {
			return nil, err
		}
		ints = append(ints, v)
	}
	buyer, err := chain.AsAddress(out, 1)
	if err != nil {
		return nil, err
	}
	refunded, err := chain.AsBool(out, 7)
	if err != nil {
		return nil, err
	}
	completed, err := chain.AsBool(out, 8)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:           id,
		ProductID:    ints[0].Uint64(),
		Buyer:        buyer,
		Count:        ints[1].Uint64(),
		AmountPaid:   chain.NewAmount(ints[2]),
		SellerAmount: chain.NewAmount(ints[3]),
		PurchaseTime: time.Unix(ints[4].Int64(), 0).UTC(),
		RefundAmount: chain.NewAmount(ints[5]),
		Refunded:     refunded,
		Completed:    completed,
	}, nil
}

// ListOrders reads one page of orders in id order.
func (s *service) ListOrders(ctx context.Context, shop common.Address, page Page) ([]*Order, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	count, err := s.orderCount(ctx, c)
	if err != nil {
		return nil, err
	}

	from, to := page.window(count)
	orders := make([]*Order, to-from)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := from; i < to; i++ {
		id := i
		g.Go(func() error {
			o, err := readOrder(gctx, c, id)
			if err != nil {
				return err
			}
			orders[id-from] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *service) order(ctx context.Context, c chain.Contract, id uint64) (*Order, error) {
	count, err := s.orderCount(ctx, c)
	if err != nil {
		return nil, err
	}
	if id >= count {
		return nil, apperr.NotFound(fmt.Sprintf("order %d not found in shop %s", id, c.Address().Hex()))
	}
	return readOrder(ctx, c, id)
}

func (s *service) GetOrder(ctx context.Context, shop common.Address, id uint64) (*Order, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	return s.order(ctx, c, id)
}

// ClaimOrders releases the seller's escrowed share of the given orders.
func (s *service) ClaimOrders(ctx context.Context, shop common.Address, ids []uint64) (*TxResult, error) {
	if len(ids) == 0 {
		return nil, apperr.ValidationField("order_ids", "at least one order id is required")
	}
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	args := make([]*big.Int, 0, len(ids))
	for _, id := range ids {
		o, err := s.order(ctx, c, id)
		if err != nil {
			return nil, err
		}
		if o.Refunded {
			return nil, apperr.Preconditionf("order %d was refunded", id)
		}
		args = append(args, new(big.Int).SetUint64(id))
	}

	_, hash, err := s.send(ctx, c, nil, "claimOrders", args)
	if err != nil {
		return nil, err
	}
	s.orderUpdated(ctx, shop, "claimed", hash, ids...)
	return &TxResult{TxHash: hash}, nil
}

func (s *service) RefundOrder(ctx context.Context, shop common.Address, id uint64, amount *big.Int) (*TxResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperr.ValidationField("amount", "amount must be greater than zero")
	}
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	o, err := s.order(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if o.Refunded {
		return nil, apperr.Preconditionf("order %d was already refunded", id)
	}
	if amount.Cmp(o.AmountPaid.Wei()) > 0 {
		return nil, apperr.Preconditionf("refund of %s ETH exceeds the %s ETH paid", chain.FormatEther(amount), o.AmountPaid.Ether())
	}

	_, hash, err := s.send(ctx, c, nil, "refundOrder", new(big.Int).SetUint64(id), amount)
	if err != nil {
		return nil, err
	}
	s.orderUpdated(ctx, shop, "refunded", hash, id)
	return &TxResult{TxHash: hash}, nil
}

func (s *service) CompleteOrder(ctx context.Context, shop common.Address, id uint64) (*TxResult, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	o, err := s.order(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if o.Completed {
		return nil, apperr.Preconditionf("order %d is already completed", id)
	}

	_, hash, err := s.send(ctx, c, nil, "completeOrder", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	s.orderUpdated(ctx, shop, "completed", hash, id)
	return &TxResult{TxHash: hash}, nil
}

func (s *service) orderUpdated(ctx context.Context, shop common.Address, change, hash string, ids ...uint64) {
	s.logger.Info("orders updated",
		zap.String("shop", shop.Hex()),
		zap.String("change", change),
		zap.Uint64s("order_ids", ids),
		zap.String("tx_hash", hash),
	)
	s.publish(ctx, events.Event{
		Type: events.TypeOrderUpdated,
		Key:  shop.Hex(),
		Payload: map[string]interface{}{
			"shop":      shop.Hex(),
			"change":    change,
			"order_ids": ids,
			"tx_hash":   hash,
		},
	})
}
