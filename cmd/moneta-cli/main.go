// Command moneta-cli runs imports, exports and reports against the local
// database without starting the web server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"moneta/internal/adapters"
	"moneta/internal/cli"
	"moneta/internal/core"
	applog "moneta/internal/log"
	"moneta/internal/services"
)

var errUsage = errors.New("usage")

const usage = `Usage: moneta-cli <command> [flags]

Commands:
  import FILE                              import a .csv or .xlsx file
  export [-o FILE] [-type T] [-range R]    write transactions as CSV
  stats [-type T] [-range R]               print income, expenses and balance
  categories [-type T]                     list categories
  clear -yes                               delete all transactions

Ranges: all, week, month, 3months, year
`

type app struct {
	tx       *services.TransactionService
	importer *services.ImportService
	exporter *services.ExportService
	stdout   io.Writer
	now      func() time.Time
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cli.LoadEnvFile()
	// Logs go to stderr so that export output on stdout stays clean.
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := adapters.NewAMQPClient(cfg)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without events", "error", err)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	publisher := adapters.Publisher(amqpClient)

	a := &app{
		tx:       services.NewTransactionService(repo, publisher),
		importer: services.NewImportService(repo, publisher),
		exporter: services.NewExportService(repo),
		stdout:   os.Stdout,
		now:      time.Now,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "import":
		return a.runImport(ctx, rest)
	case "export":
		return a.runExport(ctx, rest)
	case "stats":
		return a.runStats(ctx, rest)
	case "categories":
		return a.runCategories(ctx, rest)
	case "clear":
		return a.runClear(ctx, rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// filterFlags registers -type and -range and returns a func building the
// filter once the flags are parsed.
func (a *app) filterFlags(fs *flag.FlagSet) func() (core.Filter, error) {
	typ := fs.String("type", "", "income, expense or all")
	rng := fs.String("range", core.RangeAll, "all, week, month, 3months or year")
	return func() (core.Filter, error) {
		t, err := core.ParseFilterType(*typ)
		if err != nil {
			return core.Filter{}, fmt.Errorf("-type %q: %w", *typ, err)
		}
		return core.Filter{Type: t, Range: core.RangePreset(*rng, a.now())}, nil
	}
}

func (a *app) runImport(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import needs exactly one file: %w", errUsage)
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := a.importer.Import(ctx, filepath.Base(path), f)
	if err != nil && !errors.Is(err, services.ErrNoValidRows) {
		return err
	}

	fmt.Fprintf(a.stdout, "Imported %d transactions, skipped %d rows\n", result.Imported, result.Skipped)
	for _, name := range result.CreatedCategories {
		fmt.Fprintf(a.stdout, "  new category: %s\n", name)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(a.stdout, "  line %d: %s\n", e.Line, e.Reason)
	}
	return err
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	out := fs.String("o", "", "output file (default stdout)")
	filter := a.filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	f, err := filter()
	if err != nil {
		return err
	}

	if *out == "" {
		_, err := a.exporter.Export(ctx, f, a.stdout)
		return err
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := a.exporter.Export(ctx, f, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*out)
		return err
	}
	fmt.Fprintf(a.stdout, "Exported %d transactions to %s\n", n, *out)
	return nil
}

func (a *app) runStats(ctx context.Context, args []string) error {
	fs := newFlagSet("stats")
	filter := a.filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	f, err := filter()
	if err != nil {
		return err
	}

	stats, err := a.tx.Stats(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Income:       %s\n", core.FormatCurrency(stats.TotalIncome.Cents))
	fmt.Fprintf(a.stdout, "Expenses:     %s\n", core.FormatCurrency(stats.TotalExpense.Cents))
	fmt.Fprintf(a.stdout, "Balance:      %s\n", core.FormatCurrency(stats.Balance.Cents))
	fmt.Fprintf(a.stdout, "Transactions: %d\n", stats.TotalTransactions)
	return nil
}

func (a *app) runCategories(ctx context.Context, args []string) error {
	fs := newFlagSet("categories")
	typ := fs.String("type", "", "income, expense or all")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	t, err := core.ParseFilterType(*typ)
	if err != nil {
		return fmt.Errorf("-type %q: %w", *typ, err)
	}

	cats, err := a.tx.Categories(ctx, t)
	if err != nil {
		return err
	}
	for _, c := range cats {
		fmt.Fprintf(a.stdout, "%4d  %-8s %s\n", c.ID, c.Type, c.Name)
	}
	return nil
}

func (a *app) runClear(ctx context.Context, args []string) error {
	fs := newFlagSet("clear")
	yes := fs.Bool("yes", false, "confirm deleting all data")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	if !*yes {
		return errors.New("refusing to clear data without -yes")
	}

	n, err := a.tx.ClearAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %d transactions\n", n)
	return nil
}
