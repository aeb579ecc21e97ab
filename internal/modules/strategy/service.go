package strategy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

// Service defines strategy reads and actions for a shop.
type Service interface {
	Types() []TypeInfo
	List(ctx context.Context, shop common.Address, category Category) ([]Resolved, error)
	Get(ctx context.Context, shop common.Address, category Category, addr common.Address) (*Resolved, error)
	Dialog(ctx context.Context, shop common.Address, category Category, addr common.Address) (*Dialog, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	IsRegistered(ctx context.Context, shop common.Address, category Category, addr common.Address) (bool, error)
}

type service struct {
	binder    chain.Binder
	resolver  *Resolver
	registry  Registry
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewService(binder chain.Binder, resolver *Resolver, publisher events.Publisher, logger *zap.Logger, m *metrics.Metrics) Service {
	return &service{
		binder:    binder,
		resolver:  resolver,
		registry:  resolver.registry,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

func (s *service) Types() []TypeInfo { return s.registry.Types() }

func (s *service) List(ctx context.Context, shop common.Address, category Category) ([]Resolved, error) {
	return s.resolver.Resolve(ctx, shop, category)
}

func (s *service) IsRegistered(ctx context.Context, shop common.Address, category Category, addr common.Address) (bool, error) {
	addrs, err := s.resolver.Addresses(ctx, shop, category)
	if err != nil {
		return false, err
	}
	for _, a := range addrs {
		if a == addr {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) Get(ctx context.Context, shop common.Address, category Category, addr common.Address) (*Resolved, error) {
	ok, err := s.IsRegistered(ctx, shop, category, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("%s is not a %s strategy of shop %s", addr.Hex(), category, shop.Hex()))
	}
	row := s.resolver.ResolveOne(ctx, category, addr)
	return &row, nil
}

func (s *service) Dialog(ctx context.Context, shop common.Address, category Category, addr common.Address) (*Dialog, error) {
	row, err := s.Get(ctx, shop, category, addr)
	if err != nil {
		return nil, err
	}
	d := NewDialog(*row)
	return &d, nil
}

// Execute re-resolves the strategy so the write is bound to its current type,
// then validates, checks, sends and refreshes.
func (s *service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	row, err := s.Get(ctx, req.Shop, req.Category, req.Strategy)
	if err != nil {
		return nil, err
	}
	switch row.Status {
	case StatusUnsupported:
		return nil, apperr.Preconditionf("strategy type %q is not supported", row.Type)
	case StatusError:
		return nil, fmt.Errorf("resolve strategy %s: %s", req.Strategy.Hex(), row.Error)
	}

	action, ok := row.action(req.Action)
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("action %q is not available for %s", req.Action, row.Type))
	}

	in, err := parseForm(action.Fields, req.Form)
	if err != nil {
		return nil, err
	}
	if err := action.check(ctx, in); err != nil {
		return nil, err
	}

	hashes, err := s.send(ctx, action.plan(in))
	s.metrics.RecordAction(row.Type, action.Name, err)
	if err != nil {
		s.logger.Error("strategy action failed",
			zap.String("strategy", req.Strategy.Hex()),
			zap.String("type", row.Type),
			zap.String("action", action.Name),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("strategy action executed",
		zap.String("shop", req.Shop.Hex()),
		zap.String("strategy", req.Strategy.Hex()),
		zap.String("action", action.Name),
		zap.Strings("tx_hashes", hashes),
	)
	if err := s.publisher.Publish(ctx, events.Event{
		Type: events.TypeStrategyAction,
		Key:  req.Strategy.Hex(),
		Payload: map[string]interface{}{
			"shop":      req.Shop.Hex(),
			"category":  req.Category,
			"strategy":  req.Strategy.Hex(),
			"type":      row.Type,
			"action":    action.Name,
			"tx_hashes": hashes,
		},
	}); err != nil {
		s.logger.Warn("publish strategy event", zap.Error(err))
	}

	rows, err := s.List(ctx, req.Shop, req.Category)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{Action: action.Name, TxHashes: hashes, Strategies: rows}, nil
}

// send submits steps in order, waiting for each receipt before the next.
func (s *service) send(ctx context.Context, steps []step) ([]string, error) {
	hashes := make([]string, 0, len(steps))
	for _, st := range steps {
		tx, err := st.contract.Transact(ctx, nil, st.method, st.args...)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, tx.Hash().Hex())
		if _, err := s.binder.WaitReceipt(ctx, tx); err != nil {
			return hashes, err
		}
	}
	return hashes, nil
}
