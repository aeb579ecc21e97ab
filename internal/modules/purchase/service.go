package purchase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/modules/shop"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

// Products reads the product being bought.
type Products interface {
	GetProduct(ctx context.Context, shop common.Address, id uint64) (*shop.Product, error)
}

// Service defines purchase quoting, submission and ledger reads.
type Service interface {
	Quote(ctx context.Context, shop common.Address, productID, count uint64, buyer common.Address) (*Quote, error)
	Prepare(ctx context.Context, req PrepareRequest) (*TxRequest, error)
	Submit(ctx context.Context, shop common.Address, productID uint64, req SubmitRequest) (*Receipt, error)
	Get(ctx context.Context, id string) (*Purchase, error)
	ListByBuyer(ctx context.Context, buyer common.Address) ([]*Purchase, error)
}

// validTransitions defines the submission state machine. Each submission is
// its own machine: it opens at idle and stops at a terminal state, and the
// next submission starts a fresh one from idle. Nothing is retried.
var validTransitions = map[State][]State{
	StateIdle:            {StateSubmitting},
	StateSubmitting:      {StateAwaitingReceipt, StateRejected, StateErrored},
	StateAwaitingReceipt: {StateSuccess, StateFailed, StateErrored},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const listLimit = 100

type service struct {
	repo      Repository
	binder    chain.Binder
	products  Products
	chainID   int64
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewService(repo Repository, binder chain.Binder, products Products, chainID int64, publisher events.Publisher, logger *zap.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:      repo,
		binder:    binder,
		products:  products,
		chainID:   chainID,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

// ── quoting ───────────────────────────────────────────────────────────────────

func (s *service) Quote(ctx context.Context, shopAddr common.Address, productID, count uint64, buyer common.Address) (*Quote, error) {
	p, err := s.products.GetProduct(ctx, shopAddr, productID)
	if err != nil {
		return nil, err
	}
	return s.computeTotal(ctx, p, count, buyer)
}

// computeTotal prices count units of p for buyer. It only reads, so calling it
// repeatedly against the same chain state yields the same quote.
func (s *service) computeTotal(ctx context.Context, p *shop.Product, count uint64, buyer common.Address) (*Quote, error) {
	before := new(big.Int).Mul(p.Price.Wei(), new(big.Int).SetUint64(count))
	discount := new(big.Int)

	if p.DiscountStrategy != (common.Address{}) && before.Sign() > 0 {
		c, err := s.binder.Bind(p.DiscountStrategy, chain.DiscountStrategyInterface)
		if err != nil {
			return nil, err
		}
		out, err := c.Call(ctx, "calculateDiscount", before, buyer)
		if err != nil {
			return nil, fmt.Errorf("calculate discount: %w", err)
		}
		d, err := chain.AsBigInt(out, 0)
		if err != nil {
			return nil, err
		}
		discount = clampDiscount(d, before)
	}

	after := new(big.Int).Sub(before, discount)
	return &Quote{
		Shop:             p.Shop,
		ProductID:        p.ID,
		Count:            count,
		Buyer:            buyer,
		UnitPrice:        p.Price,
		BeforeDiscount:   chain.NewAmount(before),
		DiscountAmount:   chain.NewAmount(discount),
		DiscountPct:      chain.Percent(discount, before),
		After:            chain.NewAmount(after),
		DiscountStrategy: p.DiscountStrategy,
	}, nil
}

// clampDiscount bounds d to [0, before].
func clampDiscount(d, before *big.Int) *big.Int {
	if d == nil || d.Sign() < 0 {
		return new(big.Int)
	}
	if d.Cmp(before) > 0 {
		return new(big.Int).Set(before)
	}
	return new(big.Int).Set(d)
}

// checkPurchasable runs the local guards that must pass before any write.
// The contract re-checks them, so they only save a doomed transaction.
func checkPurchasable(p *shop.Product, count uint64) error {
	if count < 1 {
		return apperr.ValidationField("count", "count must be at least 1")
	}
	if !p.Active {
		return apperr.Preconditionf("product %d is paused", p.ID)
	}
	if count > p.Supply {
		return apperr.Preconditionf("requested %d but only %d remaining", count, p.Supply)
	}
	return nil
}

// ── prepare ───────────────────────────────────────────────────────────────────

func (s *service) Prepare(ctx context.Context, req PrepareRequest) (*TxRequest, error) {
	fields := map[string]string{}
	shopAddr, err := chain.ParseAddress(req.Shop)
	if err != nil {
		fields["shop"] = "shop must be an address"
	}
	buyer, err := chain.ParseAddress(req.Buyer)
	if err != nil {
		fields["buyer"] = "buyer must be an address"
	}
	referrer, ok := parseReferrer(req.Referrer)
	if !ok {
		fields["referrer"] = "referrer must be an address"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	p, err := s.products.GetProduct(ctx, shopAddr, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkPurchasable(p, req.Count); err != nil {
		return nil, err
	}
	quote, err := s.computeTotal(ctx, p, req.Count, buyer)
	if err != nil {
		return nil, err
	}

	c, err := s.binder.Bind(shopAddr, chain.ShopInterface)
	if err != nil {
		return nil, err
	}
	data, err := c.Pack("purchase", new(big.Int).SetUint64(req.ProductID), new(big.Int).SetUint64(req.Count), referrer)
	if err != nil {
		return nil, fmt.Errorf("pack purchase: %w", err)
	}
	return &TxRequest{
		To:      shopAddr,
		Data:    hexutil.Encode(data),
		Value:   quote.After.String(),
		ChainID: s.chainID,
		Quote:   quote,
	}, nil
}

func parseReferrer(s string) (common.Address, bool) {
	if s == "" {
		return common.Address{}, true
	}
	addr, err := chain.ParseAddress(s)
	return addr, err == nil
}

// ── submit ────────────────────────────────────────────────────────────────────

// Submit buys from the operator wallet. Local guards run first; once the
// ledger row exists every outcome is recorded on it.
func (s *service) Submit(ctx context.Context, shopAddr common.Address, productID uint64, req SubmitRequest) (*Receipt, error) {
	referrer, ok := parseReferrer(req.Referrer)
	if !ok {
		return nil, apperr.ValidationField("referrer", "referrer must be an address")
	}
	if req.Count < 1 {
		return nil, apperr.ValidationField("count", "count must be at least 1")
	}

	p, err := s.products.GetProduct(ctx, shopAddr, productID)
	if err != nil {
		return nil, err
	}
	if err := checkPurchasable(p, req.Count); err != nil {
		return nil, err
	}
	buyer := s.binder.From()
	quote, err := s.computeTotal(ctx, p, req.Count, buyer)
	if err != nil {
		return nil, err
	}
	c, err := s.binder.Bind(shopAddr, chain.ShopInterface)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &Purchase{
		ID:        uuid.New(),
		Shop:      shopAddr.Hex(),
		ProductID: productID,
		Buyer:     buyer.Hex(),
		Count:     req.Count,
		ValueWei:  quote.After.String(),
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if referrer != (common.Address{}) {
		rec.Referrer = referrer.Hex()
	}
	if err := s.open(ctx, rec); err != nil {
		return nil, err
	}

	// The row must follow the chain even if the caller goes away mid-flight.
	ledgerCtx := context.WithoutCancel(ctx)

	tx, err := c.Transact(ctx, quote.After.Wei(), "purchase",
		new(big.Int).SetUint64(productID), new(big.Int).SetUint64(req.Count), referrer)
	if err != nil {
		state := StateErrored
		if rejected(err) {
			state = StateRejected
		}
		s.finish(ledgerCtx, rec, state, "", err)
		return nil, err
	}
	hash := tx.Hash().Hex()
	s.advance(ledgerCtx, rec, StateAwaitingReceipt, hash, "")

	// WaitReceipt bounds itself with the configured receipt timeout.
	receipt, err := s.binder.WaitReceipt(ledgerCtx, tx)
	if err != nil {
		state := StateErrored
		if errors.Is(err, chain.ErrTransactionFailed) {
			state = StateFailed
		}
		s.finish(ledgerCtx, rec, state, hash, err)
		return nil, &apperr.Error{Kind: apperr.KindOf(err), Message: err.Error(), TxHash: hash, Err: err}
	}

	s.finish(ledgerCtx, rec, StateSuccess, hash, nil)
	return &Receipt{
		Purchase:    rec,
		Quote:       quote,
		TxHash:      hash,
		BlockNumber: blockNumber(receipt.BlockNumber),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// rejected reports whether err means the transaction was refused before it
// reached the mempool, either by the node's revert check or by the signer.
func rejected(err error) bool {
	var revert *chain.RevertError
	return errors.As(err, &revert) || errors.Is(err, chain.ErrNoSigner) || errors.Is(err, chain.ErrWrongChain)
}

// open moves a fresh record from idle to submitting and inserts its row.
func (s *service) open(ctx context.Context, rec *Purchase) error {
	if !canTransition(rec.State, StateSubmitting) {
		return fmt.Errorf("%w: %s -> %s", ErrStaleTransition, rec.State, StateSubmitting)
	}
	rec.State = StateSubmitting
	return s.repo.Create(ctx, rec)
}

// advance records a transition on rec. A ledger failure is logged rather than
// returned because the chain outcome has already happened; rec only moves
// once the row has.
func (s *service) advance(ctx context.Context, rec *Purchase, to State, txHash, lastError string) {
	if !canTransition(rec.State, to) {
		s.logger.Error("invalid purchase transition",
			zap.String("purchase_id", rec.ID.String()),
			zap.String("from", string(rec.State)),
			zap.String("to", string(to)),
		)
		return
	}
	if err := s.repo.Transition(ctx, rec.ID, rec.State, to, txHash, lastError); err != nil {
		s.logger.Error("record purchase transition",
			zap.String("purchase_id", rec.ID.String()),
			zap.String("from", string(rec.State)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return
	}
	rec.State = to
	if txHash != "" {
		rec.TxHash = txHash
	}
	rec.LastError = lastError
	rec.UpdatedAt = time.Now().UTC()
}

func (s *service) finish(ctx context.Context, rec *Purchase, state State, txHash string, cause error) {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	s.advance(ctx, rec, state, txHash, lastError)
	s.metrics.RecordPurchase(string(state))

	fields := []zap.Field{
		zap.String("purchase_id", rec.ID.String()),
		zap.String("shop", rec.Shop),
		zap.Uint64("product_id", rec.ProductID),
		zap.Uint64("count", rec.Count),
		zap.String("state", string(state)),
		zap.String("tx_hash", txHash),
	}
	evType := events.TypePurchaseCompleted
	if cause != nil {
		evType = events.TypePurchaseFailed
		s.logger.Warn("purchase did not complete", append(fields, zap.Error(cause))...)
	} else {
		s.logger.Info("purchase completed", fields...)
	}
	if err := s.publisher.Publish(ctx, events.Event{Type: evType, Key: rec.ID.String(), Payload: rec}); err != nil {
		s.logger.Warn("publish purchase event", zap.Error(err))
	}
}

func blockNumber(n *big.Int) uint64 {
	if n == nil {
		return 0
	}
	return n.Uint64()
}

// ── ledger reads ──────────────────────────────────────────────────────────────

func (s *service) Get(ctx context.Context, id string) (*Purchase, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ValidationField("id", "id must be a UUID")
	}
	p, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", id, err)
	}
	return p, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyer common.Address) ([]*Purchase, error) {
	return s.repo.ListByBuyer(ctx, buyer.Hex(), listLimit)
}
