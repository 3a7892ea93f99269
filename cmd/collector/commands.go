package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"recycling-bins/internal/normalize"
	"recycling-bins/internal/repository"
	"recycling-bins/internal/service"
	"recycling-bins/internal/source"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runOpts struct {
	sources []string
	reset   bool
}

var importOpts struct {
	file  string
	city  string
	reset bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch every selected source and upsert its bins",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, closeDB, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		parser := normalize.NewParser(cfg.ParserOptions())
		deps, closeDeps := sharedDependencies(parser)
		defer closeDeps()

		names := runOpts.sources
		if len(names) == 0 {
			names = cfg.Sources.Enabled
		}
		adapters, err := source.NewDefaultRegistry(cfg, deps).Select(names)
		if err != nil {
			return err
		}

		return collect(ctx, cmd, repo, parser, adapters, runOpts.reset)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bins from a local CSV export",
	Long: "Import bins from a CSV file with the header\n" +
		"city,address,latitude,longitude,types,bin_count,external_id\n" +
		"where types separates several labels with '|'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fmt.Fprintf(cmd.OutOrStdout(), "Starting import from file: %s\n", importOpts.file)

		repo, closeDB, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		parser := normalize.NewParser(cfg.ParserOptions())
		adapter := source.NewCSVFile(importOpts.file, importOpts.city)
		return collect(ctx, cmd, repo, parser, []source.Adapter{adapter}, importOpts.reset)
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the available sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := normalize.NewParser(cfg.ParserOptions())
		registry := source.NewDefaultRegistry(cfg, source.Dependencies{
			Parser: parser,
			Cache:  source.NewMemoryCache(),
			Seen:   source.NewMemorySet(),
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCITY")
		for _, name := range registry.Names() {
			a, _ := registry.Get(name)
			city := a.City()
			if city == "" {
				city = "(multiple)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, city)
		}
		return w.Flush()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the bins table and its indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeDB, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		closeDB()
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <address>...",
	Short: "Show how addresses are split into street and house number",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := normalize.NewParser(cfg.ParserOptions())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		for _, raw := range args {
			addr := parser.Parse(raw)
			if err := enc.Encode(parsedAddress{Input: raw, Street: addr.Street, HouseNumber: addr.HouseNumber}); err != nil {
				return err
			}
		}
		return nil
	},
}

type parsedAddress struct {
	Input       string `json:"input"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number,omitempty"`
}

func init() {
	runCmd.Flags().StringSliceVar(&runOpts.sources, "source", nil, "Sources to collect (default sources.enabled, or all)")
	runCmd.Flags().BoolVar(&runOpts.reset, "reset", false, "Delete each city's stored bins before writing fresh data")

	importCmd.Flags().StringVar(&importOpts.file, "file", "", "Path to the CSV file to import")
	importCmd.Flags().StringVar(&importOpts.city, "city", "", "City for every row, overriding the city column")
	importCmd.Flags().BoolVar(&importOpts.reset, "reset", false, "Delete the city's stored bins before importing")
	_ = importCmd.MarkFlagRequired("file")
}

// openRepository connects to the database and makes sure the schema exists.
func openRepository(ctx context.Context) (*repository.Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("cannot reach db: %w", err)
	}

	repo := repository.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

// sharedDependencies picks the networked cache and dedupe set when they are configured.
func sharedDependencies(parser *normalize.Parser) (source.Dependencies, func()) {
	deps := source.Dependencies{Parser: parser}
	closeFn := func() {}

	if cfg.Cache.MemcacheAddr != "" {
		deps.Cache = source.NewMemcacheCache(cfg.Cache.MemcacheAddr, cfg.Cache.TTL)
		log.Info().Str("addr", cfg.Cache.MemcacheAddr).Msg("using memcached geocode cache")
	} else {
		deps.Cache = source.NewMemoryCache()
	}

	if cfg.Dedupe.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Dedupe.RedisAddr, DB: cfg.Dedupe.RedisDB})
		deps.Seen = source.NewRedisSet(client, cfg.Dedupe.KeyPrefix+":govmap", cfg.Dedupe.TTL)
		closeFn = func() { _ = client.Close() }
		log.Info().Str("addr", cfg.Dedupe.RedisAddr).Msg("using redis dedupe set")
	} else {
		deps.Seen = source.NewMemorySet()
	}
	return deps, closeFn
}

func collect(ctx context.Context, cmd *cobra.Command, repo *repository.Repository, parser *normalize.Parser, adapters []source.Adapter, reset bool) error {
	canon := normalize.NewCanonicalizer(cfg.UnknownPolicy(), nil)
	pipeline := normalize.NewPipeline(normalize.NewNormalizer(parser), normalize.NewMapper(canon))
	collector := service.NewCollectorService(pipeline, repo)

	reports, runErr := collector.Run(ctx, adapters, service.RunOptions{Reset: reset})
	printReports(cmd, reports)
	if runErr != nil {
		return runErr
	}

	if _, failed := service.Totals(reports); failed == len(reports) && failed > 0 {
		return fmt.Errorf("all %d sources failed", failed)
	}
	return nil
}

func printReports(cmd *cobra.Command, reports []service.SourceReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tFETCHED\tVALID\tBINS\tMATCHED\tMODIFIED\tUPSERTED\tTOOK\tERROR")
	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Source, r.Fetched, r.Valid, r.Bins,
			r.Result.Matched, r.Result.Modified, r.Result.Upserted,
			r.Duration.Round(10*time.Millisecond), errText)
	}
	total, failed := service.Totals(reports)
	fmt.Fprintf(w, "TOTAL\t\t\t\t%d\t%d\t%d\t\t%d failed\n", total.Matched, total.Modified, total.Upserted, failed)
	_ = w.Flush()
}
