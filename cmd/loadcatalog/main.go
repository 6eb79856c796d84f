// Command loadcatalog merges a catalog file into the store from the command
// line, without going through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"molten/internal/app"
	"molten/internal/config"
	"molten/internal/util"
	"molten/pkg/store"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	input := flag.String("input", "", "catalog file to load (default: probe standard locations)")
	mfr := flag.String("mfr", "", "comma-separated manufacturers scraped in this run")
	maxItems := flag.Int("max-items", 0, "merge at most N items, for trial runs (0 = all)")
	dryRun := flag.Bool("dry-run", false, "decode and report without writing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.Open(store.Config{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	opts := app.ImportOptions{
		MaxItems: *maxItems,
		DryRun:   *dryRun,
	}
	if *mfr != "" {
		opts.Manufacturers = strings.Split(*mfr, ",")
	}

	path := *input
	if path == "" {
		path = cfg.CatalogPath
	}

	ctx := util.ContextWithLogger(context.Background(), logger)
	loader := app.NewLoaderService(app.NewCatalogService(st, nil))
	report, err := loader.LoadPath(ctx, path, opts)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	fmt.Printf("loaded %s (%s): %d decoded, %d skipped\n", report.Path, report.Format, report.Decoded, len(report.Skipped))
	for _, skipped := range report.Skipped {
		fmt.Printf("  skipped record %d: %s\n", skipped.Index, skipped.Reason)
	}
	fmt.Printf("new=%d updated=%d reactivated=%d discontinued=%d unchanged=%d\n",
		report.Stats.New, report.Stats.Updated, report.Stats.Reactivated,
		report.Stats.Discontinued, report.Stats.Unchanged)
	if *dryRun {
		fmt.Println("dry run: nothing written")
	}
}
