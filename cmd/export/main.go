// export pulls every email template out of a Marketo instance before the
// account goes away: authenticate, list, fetch content, write a directory
// tree, optionally zip it.
//
// Usage:
//
//	MKTO_CLIENT_ID=... MKTO_CLIENT_SECRET=... \
//	MKTO_IDENTITY_URL=https://XXX.mktorest.com/identity \
//	MKTO_REST_URL=https://XXX.mktorest.com \
//	go run ./cmd/export -out ./marketo-export -zip
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jun/mktoexport/internal/auth"
	"github.com/jun/mktoexport/internal/config"
	"github.com/jun/mktoexport/internal/export"
	"github.com/jun/mktoexport/internal/marketo"
	"github.com/jun/mktoexport/internal/preview"
	"github.com/jun/mktoexport/internal/progress"
)

var (
	outDir       = flag.String("out", "marketo-export", "Output directory for the export")
	zipExport    = flag.Bool("zip", false, "Bundle the export directory into a ZIP when done")
	withPreview  = flag.Bool("preview", false, "Also write preview HTML with placeholder tokens substituted")
	templateID   = flag.Int("template", 0, "Export a single template by id instead of the full collection")
	batchSize    = flag.Int("batch", 0, "Templates per concurrent batch (overrides MKTO_BATCH_SIZE)")
	pageSize     = flag.Int("page-size", 0, "Listing page size (overrides MKTO_PAGE_SIZE)")
	progressAddr = flag.String("progress-addr", "", "Optional address (e.g. :8080) serving a live HTML progress stream")
	timeout      = flag.Duration("timeout", 2*time.Hour, "Overall run timeout")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *pageSize > 0 {
		cfg.PageSize = *pageSize
	}

	store := auth.NewTokenStore(ctx, auth.Credential{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		IdentityURL:  cfg.IdentityURL,
	})
	// Authenticate up front so credential problems abort before anything
	// is written.
	if _, err := store.Token(); err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}
	log.Printf("Authenticated against %v", cfg.IdentityURL)

	client := marketo.NewClient(ctx, cfg.RESTURL, store)

	observers := []progress.Observer{progress.LogReporter{}}
	var stream *progress.StreamHandler
	if *progressAddr != "" {
		stream = progress.NewStreamHandler()
		observers = append(observers, stream)
		go func() {
			log.Printf("Progress stream on http://%v/progress", *progressAddr)
			mux := http.NewServeMux()
			mux.Handle("/progress", stream)
			if err := http.ListenAndServe(*progressAddr, mux); err != nil {
				log.Printf("Progress server stopped: %v", err)
			}
		}()
	}

	opts := []export.ExporterOption{
		export.WithBatchSize(cfg.BatchSize),
		export.WithPageSize(cfg.PageSize),
		export.WithObserver(progress.Multi(observers...)),
		export.WithArchive(*zipExport),
	}
	if *withPreview {
		opts = append(opts, export.WithPreviewRenderer(preview.Render))
	}
	exporter := export.NewExporter(client, opts...)

	if *templateID != 0 {
		if err := exporter.ExportOne(ctx, *templateID, *outDir); err != nil {
			log.Fatalf("Export of template %d failed: %v", *templateID, err)
		}
		log.Printf("Exported template %d to %v", *templateID, *outDir)
		return
	}

	res, err := exporter.ExportAll(ctx, *outDir)
	if stream != nil {
		stream.Close()
	}
	if err != nil {
		// The run never got going (listing failed); item failures are
		// reported below and do not reach this branch.
		log.Fatalf("Export failed: %v", err)
	}

	printSummary(res)

	if len(res.Errors) > 0 {
		reportPath := filepath.Join(filepath.Dir(*outDir), filepath.Base(*outDir)+"_failures.csv")
		if err := export.WriteFailureCSV(res, reportPath); err != nil {
			log.Printf("Could not write failure report: %v", err)
		} else {
			log.Printf("Failure report: %v", reportPath)
		}
	}
}

func printSummary(res *export.Result) {
	fmt.Println()
	fmt.Printf("Export run %v complete\n", res.RunID)
	fmt.Printf("  Total:     %d\n", res.Total)
	fmt.Printf("  Succeeded: %d\n", res.Succeeded)
	fmt.Printf("  Failed:    %d\n", res.Failed)
	fmt.Printf("  Output:    %v\n", res.OutputDir)
	if res.ArchivePath != "" {
		fmt.Printf("  Archive:   %v\n", res.ArchivePath)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  Warning:   %v\n", w)
	}
	if len(res.Errors) > 0 {
		fmt.Println("Failures:")
		for _, ie := range res.Errors {
			fmt.Printf("  %d: %v\n", ie.ID, ie.Message)
		}
	}
}
