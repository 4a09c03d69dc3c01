package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/codmatch/backend/config"
	"github.com/codmatch/backend/internal/app"
	"github.com/spf13/pflag"
)

// command is one codmatch subcommand. flags declares the command's flags and
// returns the config keys they override.
type command struct {
	summary string
	flags   func(fs *pflag.FlagSet) map[string]string
	run     func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"invoice": {
		summary: "match invoice lines to the catalog, fill codes and append stock movements",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.String("dir", "", "directory holding the invoice workbooks")
			fs.String("pattern", "", "invoice file glob inside --dir")
			fs.Float64("threshold", 0, "minimum token-sort score (exclusive)")
			fs.String("report", "", "matched lines report workbook")
			fs.StringP("output", "o", "", "output catalog workbook")
			return map[string]string{
				"invoice.dir":         "dir",
				"invoice.pattern":     "pattern",
				"invoice.threshold":   "threshold",
				"invoice.report_path": "report",
				"invoice.output_path": "output",
			}
		},
		run: runInvoice,
	},
	"magazine": {
		summary: "match magazine products to the catalog and write the match report",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.String("csv", "", "magazine products CSV")
			fs.Float64("threshold", 0, "minimum sequence score (inclusive)")
			fs.String("report", "", "match report CSV")
			return map[string]string{
				"magazine.csv_path":    "csv",
				"magazine.threshold":   "threshold",
				"magazine.report_path": "report",
			}
		},
		run: runMagazine,
	},
	"merge-report": {
		summary: "fill blank catalog codes from the magazine match report",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.String("report", "", "match report CSV")
			fs.StringP("output", "o", "", "output catalog workbook")
			return map[string]string{
				"magazine.report_path": "report",
				"magazine.output_path": "output",
			}
		},
		run: runMergeReport,
	},
	"merge": {
		summary: "fill blank catalog codes from an updated copy of the catalog",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.String("updated", "", "updated catalog workbook")
			fs.String("updated-sheet", "", "sheet of the updated workbook")
			fs.StringP("output", "o", "", "output catalog workbook")
			return map[string]string{
				"merge.updated_path":  "updated",
				"merge.updated_sheet": "updated-sheet",
				"merge.output_path":   "output",
			}
		},
		run: runMerge,
	},
	"duplicates": {
		summary: "blank every code shared by more than one catalog row",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.StringP("output", "o", "", "output catalog workbook")
			return map[string]string{"duplicates.output_path": "output"}
		},
		run: runDuplicates,
	},
	"retail": {
		summary: "look up missing codes on the retailer site",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.StringP("output", "o", "", "output catalog workbook")
			fs.Int("max-block-retries", 0, "reconnects allowed per blocked page (0 = unbounded)")
			fs.Bool("search-engine", true, "fall back to a web search when the retailer finds nothing")
			return map[string]string{
				"retail.output_path":           "output",
				"retail.max_block_retries":     "max-block-retries",
				"retail.search_engine.enabled": "search-engine",
			}
		},
		run: runRetail,
	},
	"sales": {
		summary: "clean sales observations and number the products",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.String("input", "", "sales workbook")
			fs.String("sales-sheet", "", "sales sheet name")
			fs.StringP("output", "o", "", "output workbook")
			return map[string]string{
				"sales.path":        "input",
				"sales.sheet":       "sales-sheet",
				"sales.output_path": "output",
			}
		},
		run: runSales,
	},
	"runs": {
		summary: "list recent runs from the ledger",
		flags: func(fs *pflag.FlagSet) map[string]string {
			fs.Int("limit", 20, "number of runs to show")
			return nil
		},
		run: runRuns,
	},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		usage()
		os.Exit(2)
	}

	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "codmatch: unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	fs := pflag.NewFlagSet("codmatch "+name, pflag.ExitOnError)
	bindings := commonFlags(fs)
	for key, flag := range cmd.flags(fs) {
		bindings[key] = flag
	}
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.LoadWithFlags(fs, bindings)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, a, fs); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[CLI] %s interrupted", name)
		} else {
			log.Printf("[CLI] %s failed: %v", name, err)
		}
		a.Close()
		os.Exit(1)
	}
}

// commonFlags declares the flags every command accepts
func commonFlags(fs *pflag.FlagSet) map[string]string {
	fs.StringP("config", "c", "", "config file (default: config.yaml in . or ./config)")
	fs.String("catalog", "", "catalog workbook")
	fs.String("sheet", "", "catalog sheet")
	fs.String("store", "", "sqlite run ledger (empty disables it)")
	fs.Bool("debug", false, "verbose matching logs")
	return map[string]string{
		"catalog.path":  "catalog",
		"catalog.sheet": "sheet",
		"store.path":    "store",
		"logging.debug": "debug",
	}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: codmatch <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-13s %s\n", name, commands[name].summary)
	}
	b.WriteString("\nRun 'codmatch <command> --help' for the flags of a command.\n")
	fmt.Fprint(os.Stderr, b.String())
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
