// Command marketctl is the operator CLI: schema, catalog seeding, orphan
// sweeps and order lookups against the configured store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/card-market/internal/bootstrap"
	"github.com/ariefcatur/card-market/internal/config"
	"github.com/ariefcatur/card-market/internal/housekeeping"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/redisx"
	"github.com/ariefcatur/card-market/internal/store"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operate the card market store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("driver", "", "store driver (postgres, sqlite, memory); defaults to STORE_DRIVER")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(catalogCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		cfg.StoreDriver = d
	}
	return cfg
}

func openStore(cmd *cobra.Command) (store.Store, config.Config, error) {
	cfg := loadConfig(cmd)
	st, err := bootstrap.OpenStore(cmd.Context(), cfg)
	return st, cfg, err
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the catalog and orders tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", cfg.StoreDriver)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed [file.yaml|file.json]",
		Short: "Upsert catalog entries from a seed file",
		Long: `Upsert catalog entries keyed by SKU. Stock is either a flat count or a
per-condition map:

  X-001:
    name: Black Lotus
    base_price_cents: 500
    stock: {NM: 5, LP: 2}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries valid, nothing written\n", len(entries))
				return nil
			}
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.UpsertEntries(cmd.Context(), entries); err != nil {
				return fmt.Errorf("upsert catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries\n", len(entries))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

func sweepCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail pending orders older than the pending TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			log := obs.New(cfg.LogLevel, "marketctl")

			s := &housekeeping.Sweeper{Store: st, TTL: cfg.OrderPendingTTL, Log: log}
			if rdb := bootstrap.OpenRedis(cmd.Context(), cfg, log); rdb != nil {
				defer rdb.Close()
				s.Cache = &redisx.StatusCache{Redis: rdb}
			}
			if olderThan <= 0 {
				olderThan = cfg.OrderPendingTTL
			}
			ids, err := s.RunOnce(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d pending orders\n", len(ids))
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff; defaults to ORDER_PENDING_TTL")
	return cmd
}

func orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order [id]",
		Short: "Print one order as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			o, err := st.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			entries, err := st.ListCatalog(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
