package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/partsdesk/partsdesk/internal/poimport"
	"github.com/partsdesk/partsdesk/internal/poimport/sheet"
)

// Exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitUsage        = 2
	exitGroupsFailed = 10
)

type connector func(ctx context.Context) (poimport.Importer, func(), error)

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer, connect connector) int {
	fs := flag.NewFlagSet("poimport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "spreadsheet to import (.xlsx, .xlsm or .csv)")
	tax := fs.String("tax", "", "tax percent for new purchase orders (default from IMPORT_TAX_PERCENT)")
	shipping := fs.String("shipping", "0", "shipping charges for new purchase orders")
	dryRun := fs.Bool("dry-run", false, "roll back every group and only report what would change")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *file == "" {
		_, _ = fmt.Fprintln(stderr, "poimport: -file is required")
		fs.Usage()
		return exitUsage
	}

	opts, err := parseOptions(*tax, *shipping, *dryRun)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "poimport: %v\n", err)
		return exitUsage
	}

	rows, err := readFile(*file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "poimport: %v\n", err)
		return exitError
	}

	importer, cleanup, err := connect(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "poimport: connect: %v\n", err)
		return exitError
	}
	if cleanup != nil {
		defer cleanup()
	}

	report, err := importer.Import(ctx, rows, opts)
	if err != nil {
		if errors.Is(err, poimport.ErrImportRunning) {
			_, _ = fmt.Fprintln(stderr, "poimport: another import is running, try again later")
		} else {
			_, _ = fmt.Fprintf(stderr, "poimport: %v\n", err)
		}
		return exitError
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_, _ = fmt.Fprintf(stderr, "poimport: encode report: %v\n", err)
		return exitError
	}
	if report.Summary.Failed > 0 {
		return exitGroupsFailed
	}
	return exitOK
}

func parseOptions(tax, shipping string, dryRun bool) (poimport.Options, error) {
	opts := poimport.Options{DryRun: dryRun}
	if tax != "" {
		v, err := decimal.NewFromString(tax)
		if err != nil || v.IsNegative() || v.GreaterThan(decimal.NewFromInt(100)) {
			return opts, fmt.Errorf("invalid -tax %q", tax)
		}
		opts.TaxPercent = &v
	}
	v, err := decimal.NewFromString(shipping)
	if err != nil || v.IsNegative() {
		return opts, fmt.Errorf("invalid -shipping %q", shipping)
	}
	opts.ShippingCharges = v
	return opts, nil
}

func readFile(path string) ([]poimport.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheet.Read(path, f)
}
