package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/suistorage/suis3/blob"
	"github.com/suistorage/suis3/config"
	"github.com/suistorage/suis3/gateway"
	"github.com/suistorage/suis3/store"
	"github.com/suistorage/suis3/txn"
)

var (
	logger       *slog.Logger
	configPath   string
	endpointFlag string
	verbose      bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the configuration file. Defaults to built-in testnet coordinates.")
	flag.StringVar(&endpointFlag, "gateway", "", "Ledger gateway endpoint override.")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging.")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	store  *store.Gateway
	ledger *gateway.Client

	// default event filter for watch: the deployed contract's event prefix
	eventFilter string
}

func buildApp(cfg *config.Config) (*app, error) {
	ledger, err := gateway.New(&gateway.Config{
		Endpoint:   cfg.Gateway.Endpoint,
		ApiKey:     cfg.Gateway.ApiKey,
		SkipVerify: cfg.Gateway.SkipVerify,
		Timeout:    cfg.Gateway.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger gateway client: %w", err)
	}

	builder := txn.NewBuilder(ledger, txn.Coordinates{
		Package:             cfg.Contract.Package,
		Module:              cfg.Contract.Module,
		BucketsRoot:         cfg.Contract.BucketsRoot,
		ClockID:             cfg.Contract.Clock.ID,
		ClockInitialVersion: cfg.Contract.Clock.InitialVersion,
		GasBudget:           cfg.Contract.GasBudget,
	}, logger)

	blobs := blob.New(cfg.Walrus.Binary, logger)

	return &app{
		store:       store.New(logger, builder, blobs),
		ledger:      ledger,
		eventFilter: cfg.Contract.Package + "::" + cfg.Contract.Module,
	}, nil
}

func main() {
	flag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
	if endpointFlag != "" {
		cfg.Gateway.Endpoint = endpointFlag
	}

	a, err := buildApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		runPrompt(ctx, a)
		return
	}

	if err := dispatch(ctx, a, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func dispatch(ctx context.Context, a *app, command string, args []string) error {
	switch command {
	case "la":
		return handleListBuckets(ctx, a, args)
	case "ls":
		return handleList(ctx, a, args, false)
	case "ll":
		return handleList(ctx, a, args, true)
	case "mb":
		return handleMakeBucket(ctx, a, args)
	case "rb":
		return handleRemoveBucket(ctx, a, args)
	case "put":
		return handlePut(ctx, a, args)
	case "get":
		return handleGet(ctx, a, args)
	case "cat":
		return handleCat(ctx, a, args)
	case "del", "rm":
		return handleDelete(ctx, a, args)
	case "tag":
		return handleTag(ctx, a, args)
	case "watch":
		return handleWatch(ctx, a, args)
	case "status":
		return handleStatus(ctx, a, args)
	case "help":
		printUsage()
		return nil
	default:
		return &usageError{msg: fmt.Sprintf("unknown command '%s', try 'help'", command)}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [args...]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  %s\n", color.GreenString("la"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("ls"), color.CyanString("[suis3://<bucket>]"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("ll"), color.CyanString("[suis3://<bucket>]"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("mb"), color.CyanString("suis3://<bucket>"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("rb"), color.CyanString("suis3://<bucket>"))
	fmt.Fprintf(os.Stderr, "  %s %s %s\n", color.GreenString("put"), color.CyanString("<file>"), color.CyanString("suis3://<bucket>[/<object>]"))
	fmt.Fprintf(os.Stderr, "  %s %s %s\n", color.GreenString("get"), color.CyanString("suis3://<bucket>/<object>"), color.CyanString("[dest]"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("cat"), color.CyanString("suis3://<bucket>/<object>"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("del|rm"), color.CyanString("suis3://<bucket>/<object>"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("tag ls|list"), color.CyanString("suis3://<uri>"))
	fmt.Fprintf(os.Stderr, "  %s %s %s\n", color.GreenString("tag add|put"), color.CyanString("suis3://<uri>"), color.CyanString("<tag>..."))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("tag del|rm"), color.CyanString("suis3://<uri>"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("watch"), color.CyanString("[filter]"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("status"), color.CyanString("<blob-id>"))
}

func handleListBuckets(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return &usageError{msg: "la takes no arguments"}
	}
	buckets, err := a.store.ListBuckets(ctx)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		fmt.Printf("%s  %s\n", formatTS(uint64(b.CreateTS)), color.CyanString(b.Name))
	}
	return nil
}

func handleList(ctx context.Context, a *app, args []string, long bool) error {
	// without a URI these list buckets, same as la
	if len(args) == 0 {
		return handleListBuckets(ctx, a, nil)
	}
	if len(args) != 1 {
		return &usageError{msg: "usage: ls|ll [suis3://<bucket>]"}
	}
	objects, err := a.store.ListObjects(ctx, args[0])
	if err != nil {
		return err
	}
	for _, o := range objects {
		if !long {
			fmt.Println(o.URI)
			continue
		}
		fmt.Printf("%s  %12d  %s  %s\n",
			formatTS(uint64(o.LastWriteTS)),
			uint64(o.Size),
			color.CyanString(o.URI),
			strings.Join(o.Tags, ","),
		)
	}
	return nil
}

func handleMakeBucket(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "usage: mb suis3://<bucket>"}
	}
	if err := a.store.CreateBucket(ctx, args[0]); err != nil {
		return err
	}
	color.HiGreen("OK")
	return nil
}

func handleRemoveBucket(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "usage: rb suis3://<bucket>"}
	}
	if err := a.store.DeleteBucket(ctx, args[0]); err != nil {
		return err
	}
	color.HiGreen("OK")
	return nil
}

func handlePut(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return &usageError{msg: "usage: put <file> suis3://<bucket>[/<object>]"}
	}
	meta, err := a.store.Put(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Stored blob %s (%d bytes, persisted until epoch %d)\n",
		color.CyanString(meta.BlobID), meta.Size, meta.EpochTill)
	color.HiGreen("OK")
	return nil
}

func handleGet(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return &usageError{msg: "usage: get suis3://<bucket>/<object> [dest]"}
	}
	dest := ""
	if len(args) == 2 {
		dest = args[1]
	}
	written, err := a.store.Get(ctx, args[0], dest)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", color.CyanString(written))
	return nil
}

func handleCat(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "usage: cat suis3://<bucket>/<object>"}
	}
	return a.store.Cat(ctx, args[0], os.Stdout)
}

func handleDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "usage: del suis3://<bucket>/<object>"}
	}
	if err := a.store.Delete(ctx, args[0]); err != nil {
		return err
	}
	color.HiGreen("OK")
	return nil
}

func handleTag(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return &usageError{msg: "usage: tag ls|add|del suis3://<uri> [tags...]"}
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "ls", "list":
		tags, err := a.store.ListTags(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	case "add", "put":
		if len(rest) < 2 {
			return &usageError{msg: "usage: tag add suis3://<uri> <tag>..."}
		}
		if err := a.store.AddTags(ctx, rest[0], rest[1:]); err != nil {
			return err
		}
		color.HiGreen("OK")
		return nil
	case "del", "rm":
		if err := a.store.RemoveTags(ctx, rest[0]); err != nil {
			return err
		}
		color.HiGreen("OK")
		return nil
	default:
		return &usageError{msg: fmt.Sprintf("unknown tag subcommand '%s'", sub)}
	}
}

func handleWatch(ctx context.Context, a *app, args []string) error {
	filter := a.eventFilter
	if len(args) > 0 {
		filter = args[0]
	}
	fmt.Fprintf(os.Stderr, "Watching contract events, Ctrl-C to stop.\n")
	return a.ledger.SubscribeEvents(ctx, filter, func(ev gateway.Event) {
		fmt.Printf("%s  %s  %s\n",
			time.Now().Local().Format(time.RFC3339),
			color.GreenString(ev.Type),
			string(ev.ParsedJSON),
		)
	})
}

func handleStatus(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return &usageError{msg: "usage: status <blob-id>"}
	}
	epoch, err := a.store.BlobStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Persisted until epoch %d\n", epoch)
	return nil
}

// formatTS renders a ledger millisecond timestamp in local time. The
// conversion happens here only; everything below the presentation layer
// carries the raw value.
func formatTS(ms uint64) string {
	return time.UnixMilli(int64(ms)).Local().Format("2006-01-02 15:04:05")
}

func runPrompt(ctx context.Context, a *app) {
	prompt := color.New(color.FgGreen).SprintFunc()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Interactive mode. Type 'help' for commands, 'quit' to exit.")
	for {
		fmt.Printf("%s ", prompt("suis3 >"))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := dispatch(ctx, a, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
