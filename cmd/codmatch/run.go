package main

import (
	"context"
	"fmt"
	"log"

	"github.com/codmatch/backend/internal/app"
	"github.com/codmatch/backend/internal/usecase"
	"github.com/spf13/pflag"
)

func runInvoice(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	result, err := a.InvoicePipeline().Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d invoice files, %d lines, %d matched, %d movements", len(result.Files), result.Lines, len(result.Matches), len(result.Movements))
	log.Printf("[CLI] Codes filled: %d (kept %d, unmatched %d)", result.Reconcile.Filled, result.Reconcile.Kept, result.Reconcile.Unmatched)
	if result.ReportPath != "" {
		log.Printf("[CLI] Report: %s", result.ReportPath)
	}
	log.Printf("[CLI] Catalog: %s", result.OutputPath)
	return nil
}

func runMagazine(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	result, err := a.MagazinePipeline().Match(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d magazine products, %d matched; report: %s", result.Records, len(result.Matches), result.ReportPath)
	return nil
}

func runMergeReport(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	result, err := a.MagazinePipeline().Merge(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d report rows, %d codes filled; catalog: %s", result.ReportRows, result.Reconcile.Filled, result.OutputPath)
	return nil
}

func runMerge(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	result, err := a.WorkbookMerger().Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d known codes, %d filled; catalog: %s", result.Known, result.Reconcile.Filled, result.OutputPath)
	return nil
}

func runDuplicates(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	output := a.Config.Duplicates.OutputPath
	report, err := usecase.QuarantineCatalog(ctx, a.Workbooks, a.Recorder(), a.CatalogSource(), output)
	if err != nil {
		return err
	}
	if len(report.Groups) == 0 {
		log.Printf("[CLI] No duplicated codes; catalog copied to %s", output)
		return nil
	}
	log.Printf("[CLI] Duplicated codes: %v", report.Identifiers())
	log.Printf("[CLI] %d rows cleared; catalog: %s", report.Cleared, output)
	return nil
}

func runRetail(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	lookup, err := a.RetailLookup()
	if err != nil {
		return err
	}
	result, err := lookup.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d without code, %d searched, %d found; catalog: %s", result.Missing, result.Searched, result.Found, result.OutputPath)
	for _, name := range result.NotFound {
		log.Printf("[CLI]   NÃO ENCONTRADO: %s", name)
	}
	return nil
}

func runSales(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	result, err := a.SalesTidier().Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[CLI] %d sales rows numbered, %d dropped; saved to %s", result.Rows, result.Dropped, result.OutputPath)
	return nil
}

func runRuns(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
	if a.Ledger == nil {
		return fmt.Errorf("no run ledger configured (set store.path or --store)")
	}
	limit, err := fs.GetInt("limit")
	if err != nil {
		return err
	}
	runs, err := a.Ledger.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt.Valid {
			finished = r.FinishedAt.Time.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%4d  %-10s %-8s %s  %s  records=%d accepted=%d filled=%d  %s\n",
			r.ID, r.Pipeline, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished,
			r.Records, r.Accepted, r.Filled, r.Output)
	}
	return nil
}
