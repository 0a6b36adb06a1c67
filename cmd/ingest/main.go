// Command ingest runs the invoice pipeline over a document: extract text,
// parse line items under a supplier profile, resolve each item against the
// canonical catalog and report the matching decisions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
	"github.com/stockflow-app/invoice-ingest/internal/domain/extract"
	"github.com/stockflow-app/invoice-ingest/internal/domain/ingest"
	"github.com/stockflow-app/invoice-ingest/internal/domain/match"
	"github.com/stockflow-app/invoice-ingest/internal/domain/parse"
	"github.com/stockflow-app/invoice-ingest/pkg/config"
	"github.com/stockflow-app/invoice-ingest/pkg/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		path        = flag.String("file", "", "invoice document (.pdf or .txt)")
		seedPath    = flag.String("seed", "", "catalog seed file (.csv or .xlsx) for in-memory mode")
		supplier    = flag.String("supplier", "", "supplier id (uuid); a demo profile is registered when empty")
		location    = flag.String("location", "", "optional location id (uuid) for alias matching")
		usePostgres = flag.Bool("postgres", false, "use the Postgres catalog store instead of in-memory")
	)
	flag.Parse()

	if *path == "" {
		return fmt.Errorf("-file is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var store catalog.Store
	if *usePostgres {
		pool, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		store = catalog.NewPostgresStore(pool)
	} else {
		mem, err := catalog.NewMemoryStore()
		if err != nil {
			return err
		}
		if *seedPath != "" {
			products, err := loadSeed(*seedPath)
			if err != nil {
				return err
			}
			if err := mem.Load(products); err != nil {
				return err
			}
			logger.Info("catalog seeded", slog.Int("products", len(products)))
		}
		store = mem
	}

	registry := parse.NewRegistry()
	profile := demoProfile(cfg)
	if *supplier != "" {
		id, err := uuid.Parse(*supplier)
		if err != nil {
			return fmt.Errorf("invalid supplier id: %w", err)
		}
		profile.SupplierID = id
	}
	if err := registry.Register(profile); err != nil {
		return err
	}

	var locationID *uuid.UUID
	if *location != "" {
		id, err := uuid.Parse(*location)
		if err != nil {
			return fmt.Errorf("invalid location id: %w", err)
		}
		locationID = &id
	}

	weights := match.SimilarityWeights{
		NormalizedName: cfg.Matching.WeightNormalizedName,
		RawName:        cfg.Matching.WeightRawName,
		Brand:          cfg.Matching.WeightBrand,
		TermOverlap:    cfg.Matching.WeightTermOverlap,
	}
	engine := match.NewEngine(store, weights, profile.Brands, profile.CategoryKeywords, cfg.Matching.PhoneticEnabled, logger)
	gate := match.NewGate(cfg.Matching.ConfidenceThreshold, cfg.Matching.MinCandidates, cfg.Matching.MaxCandidates)
	matcher := match.NewMatcher(engine, match.NewScorer(), gate, cfg.Matching.Concurrency, cfg.Matching.ItemTimeout, logger)

	pipeline := ingest.NewPipeline(extract.FileSource{}, registry, matcher, logger)

	report, err := pipeline.Run(ctx, *path, profile.SupplierID, locationID)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func loadSeed(path string) ([]catalog.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return catalog.LoadXLSX(f)
	}
	return catalog.LoadCSV(f)
}

// demoProfile covers the common six-digit-code, tab-delimited supplier
// layout. Real deployments register one profile per supplier.
func demoProfile(cfg *config.Config) *parse.Profile {
	convention := parse.FirstPrice
	if cfg.Parsing.UnitCostConvention == "last" {
		convention = parse.LastPrice
	}
	return &parse.Profile{
		SupplierID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Name:             "demo",
		Anchor:           regexp.MustCompile(`^(\d{6})\s+`),
		Delimiter:        parse.TabRun,
		Prices:           convention,
		Brands:           []string{"Coca-Cola", "Smirnoff", "Guinness", "Heineken", "Schweppes", "Gordons"},
		CategoryKeywords: []string{"wine", "beer", "spirits", "draught", "soft-drinks"},
	}
}

func printReport(report *ingest.Report) {
	if h := report.Header; h.SupplierName != nil || h.InvoiceNumber != nil {
		fmt.Println("header:")
		printField("  supplier", h.SupplierName)
		printField("  invoice no", h.InvoiceNumber)
		if h.InvoiceDate != nil {
			fmt.Printf("  date: %s\n", h.InvoiceDate.Format("2006-01-02"))
		}
		printField("  customer ref", h.CustomerRef)
		printField("  delivery no", h.DeliveryNumber)
	}

	fmt.Printf("parsed %d items (%d discarded, %d skipped)\n",
		len(report.Items), report.Discarded, report.Skipped)

	for _, item := range report.Items {
		res := item.Resolution
		fmt.Printf("[%3d] %-40s state=%s", item.Item.SourceIndex, item.Item.Name, res.State)
		if res.Best != nil {
			fmt.Printf(" best=%q score=%d type=%s",
				res.Best.Product.Name, res.Best.Confidence, res.Best.MatchType)
		}
		fmt.Println()
		if res.State == match.StatePendingReview {
			for _, c := range res.Candidates {
				fmt.Printf("      candidate %q score=%d type=%s\n", c.Product.Name, c.Confidence, c.MatchType)
			}
		}
	}
}

func printField(label string, v *string) {
	if v != nil {
		fmt.Printf("%s: %s\n", label, *v)
	}
}
