// Package main provides the offline maintenance tool for a PixVault mirror.
// It checks the download tree against the registry and the remote catalog,
// re-downloading anything that went missing locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pixvault/pixvault-server/internal/catalog"
	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/logger"
	"github.com/pixvault/pixvault-server/internal/maintenance"
	"github.com/pixvault/pixvault-server/internal/store/sqlite"
)

func main() {
	files := flag.Bool("files", false, "verify that every recorded file exists on disk")
	bookmarks := flag.Bool("bookmarks", false, "verify that every remote bookmark is mirrored")
	strict := flag.Bool("strict", false, "exit non-zero when any check fails")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if !*files && !*bookmarks {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -files and/or -bookmarks")
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	store, err := sqlite.Open(cfg.Storage.DatabasePath, log.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	client := catalog.New(catalog.Config{
		BaseURL:       cfg.Catalog.BaseURL,
		AuthURL:       cfg.Catalog.AuthURL,
		RefreshToken:  cfg.Catalog.RefreshToken,
		RestrictModes: cfg.Catalog.RestrictModes(),
		MaxPages:      cfg.Catalog.MaxPages,
	}, log.Logger)

	ctx := context.Background()
	if err := client.Authenticate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}

	verifier := maintenance.New(client, store, cfg.Storage.DownloadPath, log.Logger)

	failed := 0
	if *files {
		report, err := verifier.VerifyFiles(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "File verification aborted: %v\n", err)
			os.Exit(1)
		}
		printReport("Files", report)
		failed += report.Failed
	}
	if *bookmarks {
		report, err := verifier.VerifyBookmarks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bookmark verification aborted: %v\n", err)
			os.Exit(1)
		}
		printReport("Bookmarks", report)
		failed += report.Failed
	}

	if *strict && failed > 0 {
		os.Exit(1)
	}
}

func printReport(name string, r maintenance.Report) {
	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("  checked:  %d\n", r.Checked)
	fmt.Printf("  missing:  %d\n", r.Missing)
	fmt.Printf("  repaired: %d\n", r.Repaired)
	fmt.Printf("  failed:   %d\n", r.Failed)
}
