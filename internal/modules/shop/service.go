package shop

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/modules/metadata"
	"github.com/georgemunganga/onchain-storefront/internal/modules/strategy"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
)

// Service defines shop, product and order operations.
type Service interface {
	ListShops(ctx context.Context, owner *common.Address) ([]*Shop, error)
	GetShop(ctx context.Context, addr common.Address) (*Shop, error)
	CreateShop(ctx context.Context, req CreateShopRequest) (*TxResult, error)

	ListProducts(ctx context.Context, shop common.Address, page Page) ([]*Product, error)
	GetProduct(ctx context.Context, shop common.Address, id uint64) (*Product, error)
	CreateProduct(ctx context.Context, shop common.Address, req ProductRequest) (*TxResult, error)
	UpdateProduct(ctx context.Context, shop common.Address, id uint64, req ProductRequest) (*TxResult, error)
	SetPaused(ctx context.Context, shop common.Address, id uint64, paused bool) (*TxResult, error)
	SetProductStrategy(ctx context.Context, shop common.Address, id uint64, category strategy.Category, addr common.Address) (*TxResult, error)
	RegisterStrategy(ctx context.Context, shop common.Address, category strategy.Category, addr common.Address) (*TxResult, error)

	ListOrders(ctx context.Context, shop common.Address, page Page) ([]*Order, error)
	GetOrder(ctx context.Context, shop common.Address, id uint64) (*Order, error)
	ClaimOrders(ctx context.Context, shop common.Address, ids []uint64) (*TxResult, error)
	RefundOrder(ctx context.Context, shop common.Address, id uint64, amount *big.Int) (*TxResult, error)
	CompleteOrder(ctx context.Context, shop common.Address, id uint64) (*TxResult, error)
}

type Options struct {
	Factory     common.Address
	Concurrency int
}

type service struct {
	binder     chain.Binder
	opts       Options
	metadata   metadata.Fetcher
	strategies strategy.Service
	publisher  events.Publisher
	logger     *zap.Logger
}

func NewService(binder chain.Binder, opts Options, md metadata.Fetcher, strategies strategy.Service, publisher events.Publisher, logger *zap.Logger) Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &service{
		binder:     binder,
		opts:       opts,
		metadata:   md,
		strategies: strategies,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *service) bindShop(addr common.Address) (chain.Contract, error) {
	return s.binder.Bind(addr, chain.ShopInterface)
}

// send submits one write and waits for it to be mined.
func (s *service) send(ctx context.Context, c chain.Contract, value *big.Int, method string, args ...interface{}) (*types.Receipt, string, error) {
	tx, err := c.Transact(ctx, value, method, args...)
	if err != nil {
		return nil, "", err
	}
	receipt, err := s.binder.WaitReceipt(ctx, tx)
	if err != nil {
		return nil, tx.Hash().Hex(), err
	}
	return receipt, tx.Hash().Hex(), nil
}

func (s *service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

// requireOwner fails when the operator wallet cannot administer shop.
func (s *service) requireOwner(ctx context.Context, c chain.Contract) error {
	out, err := c.Call(ctx, "owner")
	if err != nil {
		return err
	}
	owner, err := chain.AsAddress(out, 0)
	if err != nil {
		return err
	}
	if owner != s.binder.From() {
		return apperr.Preconditionf("operator wallet %s is not the owner of shop %s", s.binder.From().Hex(), c.Address().Hex())
	}
	return nil
}

// ── shops ─────────────────────────────────────────────────────────────────────

func (s *service) ListShops(ctx context.Context, owner *common.Address) ([]*Shop, error) {
	if s.opts.Factory == (common.Address{}) {
		return nil, apperr.Precondition("shop factory address is not configured")
	}
	factory, err := s.binder.Bind(s.opts.Factory, chain.ShopFactoryInterface)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if owner != nil {
		out, err = factory.Call(ctx, "getShopsByOwner", *owner)
	} else {
		out, err = factory.Call(ctx, "getShops")
	}
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	addrs, err := chain.AsAddresses(out, 0)
	if err != nil {
		return nil, err
	}

	shops := make([]*Shop, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			shop, err := s.GetShop(gctx, addr)
			if err != nil {
				return err
			}
			shops[i] = shop
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shops, nil
}

func (s *service) GetShop(ctx context.Context, addr common.Address) (*Shop, error) {
	c, err := s.bindShop(addr)
	if err != nil {
		return nil, err
	}
	out, err := c.Call(ctx, "owner")
	if err != nil {
		return nil, fmt.Errorf("read shop %s: %w", addr.Hex(), err)
	}
	owner, err := chain.AsAddress(out, 0)
	if err != nil {
		return nil, err
	}
	out, err = c.Call(ctx, "metadataCid")
	if err != nil {
		return nil, fmt.Errorf("read shop %s: %w", addr.Hex(), err)
	}
	cid, err := chain.AsString(out, 0)
	if err != nil {
		return nil, err
	}

	shop := &Shop{Address: addr, Owner: owner, MetadataCID: cid}
	doc, err := s.metadata.Fetch(ctx, cid)
	if err != nil {
		shop.MetadataError = err.Error()
		return shop, nil
	}
	shop.Name = doc.Name
	shop.Description = doc.Description
	shop.ImageURL = doc.Image
	return shop, nil
}

func (s *service) CreateShop(ctx context.Context, req CreateShopRequest) (*TxResult, error) {
	if req.MetadataCID == "" {
		return nil, apperr.ValidationField("metadata_cid", "metadata_cid is required")
	}
	if s.opts.Factory == (common.Address{}) {
		return nil, apperr.Precondition("shop factory address is not configured")
	}
	factory, err := s.binder.Bind(s.opts.Factory, chain.ShopFactoryInterface)
	if err != nil {
		return nil, err
	}

	receipt, hash, err := s.send(ctx, factory, nil, "createShop", req.MetadataCID)
	if err != nil {
		return nil, err
	}
	res := &TxResult{TxHash: hash}
	if shop, ok := createdShop(receipt); ok {
		res.Shop = &shop
		s.publish(ctx, events.Event{
			Type:    events.TypeShopCreated,
			Key:     shop.Hex(),
			Payload: map[string]string{"shop": shop.Hex(), "owner": s.binder.From().Hex(), "metadata_cid": req.MetadataCID},
		})
	}
	s.logger.Info("shop created", zap.String("tx_hash", hash), zap.String("metadata_cid", req.MetadataCID))
	return res, nil
}

// createdShop finds the ShopCreated log and returns the indexed shop address.
func createdShop(receipt *types.Receipt) (common.Address, bool) {
	topic, err := chain.EventID(chain.ShopFactoryInterface, "ShopCreated")
	if err != nil || receipt == nil {
		return common.Address{}, false
	}
	for _, l := range receipt.Logs {
		if len(l.Topics) >= 2 && l.Topics[0].Hex() == topic {
			return common.BytesToAddress(l.Topics[1].Bytes()), true
		}
	}
	return common.Address{}, false
}

// ── products ──────────────────────────────────────────────────────────────────

func (s *service) productCount(ctx context.Context, c chain.Contract) (uint64, error) {
	out, err := c.Call(ctx, "getProductCount")
	if err != nil {
		return 0, err
	}
	return countOf(out)
}

// countOf decodes a uint256 list length, refusing values a uint64 cannot hold.
func countOf(out []interface{}) (uint64, error) {
	n, err := chain.AsBigInt(out, 0)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: count %s out of range", chain.ErrUnexpectedType, n)
	}
	return n.Uint64(), nil
}

func (s *service) readProduct(ctx context.Context, c chain.Contract, id uint64) (*Product, error) {
	out, err := c.Call(ctx, "getProduct", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("read product %d: %w", id, err)
	}
	if len(out) != 8 {
		return nil, fmt.Errorf("read product %d: %w: got %d outputs", id, chain.ErrUnexpectedType, len(out))
	}

	p := &Product{ID: id, Shop: c.Address(), ImageURLs: []string{}}
	var (
		price, sold, supply *big.Int
		paused              bool
	)
	if price, err = chain.AsBigInt(out, 0); err != nil {
		return nil, err
	}
	if sold, err = chain.AsBigInt(out, 1); err != nil {
		return nil, err
	}
	if supply, err = chain.AsBigInt(out, 2); err != nil {
		return nil, err
	}
	if paused, err = chain.AsBool(out, 3); err != nil {
		return nil, err
	}
	if p.MetadataCID, err = chain.AsString(out, 4); err != nil {
		return nil, err
	}
	if p.DiscountStrategy, err = chain.AsAddress(out, 5); err != nil {
		return nil, err
	}
	if p.FeeShareStrategy, err = chain.AsAddress(out, 6); err != nil {
		return nil, err
	}
	if p.RewardStrategy, err = chain.AsAddress(out, 7); err != nil {
		return nil, err
	}
	p.Price = chain.NewAmount(price)
	p.TotalSold = sold.Uint64()
	p.Supply = supply.Uint64()
	p.Active = !paused

	doc, err := s.metadata.Fetch(ctx, p.MetadataCID)
	if err != nil {
		p.MetadataError = err.Error()
		return p, nil
	}
	p.Name = doc.Name
	p.Description = doc.Description
	p.ImageURLs = doc.ImageIDs()
	return p, nil
}

// ListProducts reads one page of products in id order.
func (s *service) ListProducts(ctx context.Context, shop common.Address, page Page) ([]*Product, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	count, err := s.productCount(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	from, to := page.window(count)
	products := make([]*Product, to-from)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := from; i < to; i++ {
		id := i
		g.Go(func() error {
			p, err := s.readProduct(gctx, c, id)
			if err != nil {
				return err
			}
			products[id-from] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, shop common.Address, id uint64) (*Product, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	count, err := s.productCount(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if id >= count {
		return nil, apperr.NotFound(fmt.Sprintf("product %d not found in shop %s", id, shop.Hex()))
	}
	return s.readProduct(ctx, c, id)
}

func validateProduct(req ProductRequest) (*big.Int, error) {
	fields := map[string]string{}
	price, err := chain.ParseEther(req.Price)
	if err != nil {
		fields["price"] = "price must be a non-negative ETH amount"
	}
	if req.MetadataCID == "" {
		fields["metadata_cid"] = "metadata_cid is required"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	return price, nil
}

func (s *service) CreateProduct(ctx context.Context, shop common.Address, req ProductRequest) (*TxResult, error) {
	price, err := validateProduct(req)
	if err != nil {
		return nil, err
	}
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	next, err := s.productCount(ctx, c)
	if err != nil {
		return nil, err
	}

	_, hash, err := s.send(ctx, c, nil, "createProduct", price, new(big.Int).SetUint64(req.Supply), req.MetadataCID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("shop", shop.Hex()), zap.Uint64("product_id", next), zap.String("tx_hash", hash))
	return &TxResult{TxHash: hash, ProductID: &next}, nil
}

func (s *service) UpdateProduct(ctx context.Context, shop common.Address, id uint64, req ProductRequest) (*TxResult, error) {
	price, err := validateProduct(req)
	if err != nil {
		return nil, err
	}
	c, err := s.ownedProduct(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	_, hash, err := s.send(ctx, c, nil, "updateProduct", new(big.Int).SetUint64(id), price, new(big.Int).SetUint64(req.Supply), req.MetadataCID)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: hash, ProductID: &id}, nil
}

// ownedProduct binds shop after checking ownership and that product id exists.
func (s *service) ownedProduct(ctx context.Context, shop common.Address, id uint64) (chain.Contract, error) {
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	count, err := s.productCount(ctx, c)
	if err != nil {
		return nil, err
	}
	if id >= count {
		return nil, apperr.NotFound(fmt.Sprintf("product %d not found in shop %s", id, shop.Hex()))
	}
	return c, nil
}

func (s *service) SetPaused(ctx context.Context, shop common.Address, id uint64, paused bool) (*TxResult, error) {
	c, err := s.ownedProduct(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	p, err := s.readProduct(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if p.Active != paused {
		state := "active"
		if paused {
			state = "paused"
		}
		return nil, apperr.Preconditionf("product %d is already %s", id, state)
	}

	method := "unpauseProduct"
	if paused {
		method = "pauseProduct"
	}
	_, hash, err := s.send(ctx, c, nil, method, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: hash, ProductID: &id}, nil
}

// SetProductStrategy attaches addr, or detaches with the zero address.
// Only strategies registered on the shop for category are accepted.
func (s *service) SetProductStrategy(ctx context.Context, shop common.Address, id uint64, category strategy.Category, addr common.Address) (*TxResult, error) {
	c, err := s.ownedProduct(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	if addr != (common.Address{}) {
		ok, err := s.strategies.IsRegistered(ctx, shop, category, addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Preconditionf("%s is not a registered %s strategy of this shop", addr.Hex(), category)
		}
	}
	_, hash, err := s.send(ctx, c, nil, category.SetProductMethod(), new(big.Int).SetUint64(id), addr)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: hash, ProductID: &id}, nil
}

func (s *service) RegisterStrategy(ctx context.Context, shop common.Address, category strategy.Category, addr common.Address) (*TxResult, error) {
	if addr == (common.Address{}) {
		return nil, apperr.ValidationField("address", "strategy address is required")
	}
	c, err := s.bindShop(shop)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	ok, err := s.strategies.IsRegistered(ctx, shop, category, addr)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, apperr.Preconditionf("%s is already a %s strategy of this shop", addr.Hex(), category)
	}

	_, hash, err := s.send(ctx, c, nil, category.AddMethod(), addr)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: hash}, nil
}
