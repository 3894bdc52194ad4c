package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/app/bootstrap"
	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/flora"
	"github.com/aihub/flora-search/internal/ingest"
	"github.com/aihub/flora-search/internal/logger"
)

// importArgs is the parsed command line.
type importArgs struct {
	CSVFile    string
	Start      int
	End        *int
	NoDownload bool
	ImgDir     string
}

func newImportCmd(run func(cmd *cobra.Command, a importArgs) error) *cobra.Command {
	var (
		a   importArgs
		end int
	)
	cmd := &cobra.Command{
		Use:   "import [csv_file]",
		Short: "Import flowers from a CSV file into the search index",
		Long: `Reads flower rows from a CSV file, downloads their images and writes
text and image embeddings to the vector index.
Without an argument the configured CSV file is used.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				a.CSVFile = args[0]
			}
			if cmd.Flags().Changed("end") {
				a.End = &end
			}
			return run(cmd, a)
		},
	}

	cmd.Flags().IntVar(&a.Start, "start", 0, "first row to import (0-based)")
	cmd.Flags().IntVar(&end, "end", 0, "row to stop before (exclusive); defaults to the end of the file")
	cmd.Flags().BoolVar(&a.NoDownload, "no-download", false, "use cached images only, do not re-download")
	cmd.Flags().StringVar(&a.ImgDir, "img-dir", "", "image cache directory (default from config, img)")
	return cmd
}

func runImport(cmd *cobra.Command, a importArgs) error {
	app, err := bootstrap.Init()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			logger.Warn("Shutdown failed", zap.Error(err))
		}
		logger.Sync()
	}()

	cfg := app.Config.Import
	if a.CSVFile == "" {
		a.CSVFile = cfg.CSVFile
	}
	if a.ImgDir == "" {
		a.ImgDir = cfg.ImageDir
	}

	imageFetcher, err := fetcher.New(fetcher.Options{
		Dir:       a.ImgDir,
		CacheOnly: a.NoDownload,
		Timeout:   cfg.FetchTimeout,
		Mirror:    app.Mirror,
		Logger:    logger.Named("fetcher"),
	})
	if err != nil {
		return err
	}

	importer := ingest.NewImporter(app.Store, imageFetcher, ingest.Options{
		Events: app.Events,
		Logger: logger.Named("import"),
		OnRow: func(row int, f flora.Flower) {
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d: %s\n", row, f.CommonName)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := importer.Import(ctx, ingest.NewCSVFile(a.CSVFile), a.Start, a.End)
	if err != nil {
		return fmt.Errorf("import %s: %w", a.CSVFile, err)
	}

	logger.Info("Import finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("image_failures", report.ImageFailures))
	fmt.Fprintf(cmd.OutOrStdout(), "Import complete! %d entries added to DB.\n", report.Added())
	return nil
}

func main() {
	if err := newImportCmd(runImport).Execute(); err != nil {
		os.Exit(1)
	}
}
