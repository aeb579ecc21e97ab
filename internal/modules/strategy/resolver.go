package strategy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

// Resolver turns a shop's strategy addresses into typed, labelled rows.
type Resolver struct {
	binder   chain.Binder
	registry Registry
	limit    int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewResolver(binder chain.Binder, registry Registry, limit int, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if limit <= 0 {
		limit = 8
	}
	return &Resolver{binder: binder, registry: registry, limit: limit, logger: logger, metrics: m}
}

// Addresses returns the strategies registered on shop for category, in on-chain order.
func (r *Resolver) Addresses(ctx context.Context, shop common.Address, category Category) ([]common.Address, error) {
	c, err := r.binder.Bind(shop, chain.ShopInterface)
	if err != nil {
		return nil, err
	}
	out, err := c.Call(ctx, category.ListMethod())
	if err != nil {
		return nil, fmt.Errorf("list %s strategies: %w", category, err)
	}
	return chain.AsAddresses(out, 0)
}

// Resolve reads every strategy of category on shop. Only the address listing
// can fail the call; a failing strategy yields a row with status "error".
func (r *Resolver) Resolve(ctx context.Context, shop common.Address, category Category) ([]Resolved, error) {
	addrs, err := r.Addresses(ctx, shop, category)
	if err != nil {
		return nil, err
	}

	rows := make([]Resolved, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			rows[i] = r.ResolveOne(gctx, category, addr)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResolveOne reads getType() and then the reads of the matching variant.
func (r *Resolver) ResolveOne(ctx context.Context, category Category, addr common.Address) Resolved {
	row := Resolved{
		Category:  category,
		Address:   addr,
		Variables: []Variable{},
		Actions:   []Action{},
	}

	fail := func(err error) Resolved {
		row.Status = StatusError
		row.Error = err.Error()
		r.logger.Warn("strategy resolution failed",
			zap.String("category", string(category)),
			zap.String("address", addr.Hex()),
			zap.Error(err),
		)
		r.metrics.RecordResolution(string(category), string(row.Status))
		return row
	}

	base, err := r.binder.Bind(addr, category.BaseInterface())
	if err != nil {
		return fail(err)
	}
	out, err := base.Call(ctx, "getType")
	if err != nil {
		return fail(err)
	}
	tag, err := chain.AsString(out, 0)
	if err != nil {
		return fail(err)
	}
	row.Type = tag

	def, ok := r.registry.Lookup(category, VariantTag(tag))
	if !ok {
		row.Status = StatusUnsupported
		row.Name = tag
		row.Description = fmt.Sprintf("%s is not a %s strategy type this service understands.", tag, category)
		r.metrics.RecordResolution(string(category), string(row.Status))
		return row
	}
	row.Name = def.Name
	row.Description = def.Description

	c, err := r.binder.Bind(addr, def.Interface)
	if err != nil {
		return fail(err)
	}
	v, err := def.load(ctx, r.binder, c)
	if err != nil {
		return fail(err)
	}
	row.Variables = v.variables
	row.Actions = v.actions
	row.Status = StatusResolved
	r.metrics.RecordResolution(string(category), string(row.Status))
	return row
}

// NewDialog lays out one tab per action of a resolved strategy.
func NewDialog(row Resolved) Dialog {
	d := Dialog{
		Strategy: row.Address,
		Type:     row.Type,
		Title:    row.Name,
		Tabs:     make([]Tab, 0, len(row.Actions)),
	}
	for _, a := range row.Actions {
		d.Tabs = append(d.Tabs, Tab{
			Action:      a.Name,
			Title:       a.Title,
			Description: a.Description,
			Form:        a.Fields,
			Footer:      a.Footer,
		})
	}
	return d
}
