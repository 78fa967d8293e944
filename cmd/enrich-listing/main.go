package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/raine/lease-to-own/internal/config"
	"github.com/raine/lease-to-own/internal/enrich"
	"github.com/raine/lease-to-own/internal/llm"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var listingID string
	var noCache bool

	flag.StringVar(&listingID, "id", "", "Listing ID to enrich")
	flag.BoolVar(&noCache, "no-cache", false, "Bypass the vision response cache")
	flag.Parse()

	// Accept listing ID as positional argument
	if listingID == "" && flag.NArg() > 0 {
		listingID = flag.Arg(0)
	}

	if listingID == "" {
		fmt.Fprintf(os.Stderr, "Usage: enrich-listing -id <listing_id>\n")
		fmt.Fprintf(os.Stderr, "       enrich-listing <listing_id>\n")
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if cfg.ContactKey == "" {
		fmt.Fprintf(os.Stderr, "CONTACT_KEY not set\n")
		os.Exit(1)
	}

	encryptionKey, err := storage.DeriveKey(cfg.ContactKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error deriving encryption key: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database at %s: %v\n", cfg.DBPath, err)
		os.Exit(1)
	}
	defer store.Close()

	listing, err := store.GetListing(listingID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading listing: %v\n", err)
		os.Exit(1)
	}
	if listing == nil {
		fmt.Fprintf(os.Stderr, "No listing found with ID %s\n", listingID)
		os.Exit(1)
	}

	ctx := context.Background()
	provider, err := llm.New(ctx, llm.Config{
		Name:            cfg.AIProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing ai provider: %v\n", err)
		os.Exit(1)
	}
	if !noCache {
		provider = llm.NewCachedProvider(provider, store)
	}

	orchestrator := enrich.NewOrchestrator(store, store, provider,
		enrich.NewImageFetcher(cfg.ImageFetchTimeout),
		enrich.Options{MaxImages: cfg.MaxVisionImages},
	)

	// No Before snapshot: always run, as for a newly created listing
	out := orchestrator.HandleListingWrite(ctx, enrich.ListingChange{
		ListingID: listing.ID,
		After:     listing.Snapshot(),
	})

	result := map[string]any{
		"listingId":  out.ListingID,
		"status":     out.Status,
		"durationMs": out.Duration.Milliseconds(),
	}
	if out.Reason != "" {
		result["reason"] = out.Reason
	}
	if out.Block != nil {
		result["ai"] = out.Block
	}

	// Pretty print as JSON
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))

	if out.Status == enrich.StatusFailed {
		os.Exit(1)
	}
}
