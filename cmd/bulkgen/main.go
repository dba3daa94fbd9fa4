// Command bulkgen generates descriptions for every product in a CSV or XLSX file
// by calling a running generation API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/raushankrgupta/product-descriptions-ai/bulk"
	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/sheets"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
)

type options struct {
	file        string
	tone        string
	language    string
	contentType string
	apiURL      string
	out         string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.file, "file", "", "CSV or XLSX file with product_name and description columns")
	flag.StringVar(&opts.tone, "tone", bulk.DefaultTone, "tone of voice")
	flag.StringVar(&opts.language, "language", models.DefaultLanguage, "output language")
	flag.StringVar(&opts.contentType, "content-type", string(models.ContentTypeProductDescription), "product_description or social_media_post")
	flag.StringVar(&opts.apiURL, "api", envOr("GENERATION_API_URL", "http://localhost:8080"), "base URL of the generation API")
	flag.StringVar(&opts.out, "out", "generated_products", "output path without extension")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if opts.file == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := utils.NewLogger(*logLevel, "text")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := generation.NewClient(opts.apiURL, &http.Client{}, logger)
	if err := run(ctx, opts, gen, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, opts options, gen generation.Generator, out io.Writer, logger logrus.FieldLogger) error {
	if !sheets.IsSupported(opts.file) {
		return sheets.ErrInvalidFileType
	}
	settings, err := bulk.NormalizeSettings(bulk.Settings{
		Tone:        opts.tone,
		Language:    opts.language,
		ContentType: models.ContentType(opts.contentType),
	})
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.file, err)
	}
	records, err := sheets.ParseFile(opts.file, data)
	if err != nil {
		return err
	}

	report, err := bulk.NewPipeline(gen, logger).Run(ctx, records, settings, func(p models.Progress) {
		if p.Current > 0 {
			fmt.Fprintf(out, "\r%d/%d Generating content for: %s", p.Current, p.Total, p.CurrentLabel)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	csvData, err := sheets.WriteCSV(report.Outcomes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out+".csv", csvData, 0o644); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	xlsxData, err := sheets.WriteExcel(report.Outcomes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out+".xlsx", xlsxData, 0o644); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}

	fmt.Fprintf(out, "Successfully generated descriptions for %d of %d products.\n", report.SuccessCount, len(report.Outcomes))
	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(out, "Failed rows:")
		for _, f := range failures {
			fmt.Fprintf(out, "  - %s: %s\n", f.ProductName, f.Error)
		}
	}
	fmt.Fprintf(out, "Results written to %s.csv and %s.xlsx\n", opts.out, opts.out)
	return nil
}
