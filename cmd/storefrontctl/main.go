// Command storefrontctl runs one-off operator tasks against the same
// configuration the API server reads.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/config"
	"github.com/georgemunganga/onchain-storefront/internal/modules/metadata"
	"github.com/georgemunganga/onchain-storefront/internal/modules/purchase"
	"github.com/georgemunganga/onchain-storefront/internal/modules/shop"
	"github.com/georgemunganga/onchain-storefront/internal/modules/strategy"
	"github.com/georgemunganga/onchain-storefront/internal/platform/database"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
	"github.com/georgemunganga/onchain-storefront/internal/platform/logger"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	m      *metrics.Metrics
	client *chain.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Operator tooling for the onchain storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = config.MustLoad()
			log, err := logger.New(a.cfg.Log)
			if err != nil {
				return err
			}
			a.log = log
			a.m = metrics.New(prometheus.NewRegistry())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.client != nil {
				a.client.Close()
			}
			if a.log != nil {
				a.log.Sync()
			}
		},
	}
	root.AddCommand(a.migrateCmd(), a.strategiesCmd(), a.quoteCmd())
	return root
}

func (a *app) dial(ctx context.Context) (*chain.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	client, err := chain.Dial(ctx, a.cfg.Chain, a.log, a.m)
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}
	a.client = client
	return client, nil
}

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.Open(cmd.Context(), a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db, a.log)
		},
	})
	return cmd
}

func (a *app) strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies <shop> <category>",
		Short: "Resolve every strategy a shop has registered for a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopAddr, err := chain.ParseAddress(args[0])
			if err != nil {
				return fmt.Errorf("shop: %w", err)
			}
			category, err := strategy.ParseCategory(args[1])
			if err != nil {
				return err
			}
			client, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			resolver := strategy.NewResolver(client, strategy.DefaultRegistry, a.cfg.Resolver.Concurrency, a.log, a.m)
			rows, err := resolver.Resolve(cmd.Context(), shopAddr, category)
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		},
	}
}

func (a *app) quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <shop> <product> <count> <buyer>",
		Short: "Price a purchase, applying the product's discount strategy",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopAddr, err := chain.ParseAddress(args[0])
			if err != nil {
				return fmt.Errorf("shop: %w", err)
			}
			productID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("product: %w", err)
			}
			count, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			buyer, err := chain.ParseAddress(args[3])
			if err != nil {
				return fmt.Errorf("buyer: %w", err)
			}

			client, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			cache, err := metadata.NewCache(cmd.Context(), a.cfg.IPFS)
			if err != nil {
				return err
			}
			md := metadata.NewService(a.cfg.IPFS, cache, a.log, a.m)
			resolver := strategy.NewResolver(client, strategy.DefaultRegistry, a.cfg.Resolver.Concurrency, a.log, a.m)
			strategies := strategy.NewService(client, resolver, events.NopPublisher{}, a.log, a.m)
			shops := shop.NewService(client, shop.Options{Factory: common.Address{}, Concurrency: a.cfg.Resolver.Concurrency},
				md, strategies, events.NopPublisher{}, a.log)

			// Quotes never touch the purchase ledger.
			purchases := purchase.NewService(nil, client, shops, a.cfg.Chain.ChainID, events.NopPublisher{}, a.log, a.m)
			q, err := purchases.Quote(cmd.Context(), shopAddr, productID, count, buyer)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
