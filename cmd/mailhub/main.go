package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tmaeda/mailhub/internal/classify"
	"github.com/tmaeda/mailhub/internal/engine"
	"github.com/tmaeda/mailhub/internal/model"
	"github.com/tmaeda/mailhub/internal/remote"
	"github.com/tmaeda/mailhub/internal/store"
)

const usage = `usage: mailhub <command> [flags]

commands:
  fetch        sync the configured window from the aggregating mailbox
  list         show one page of messages
  rules        list promo rules
  reclassify   apply current rules to existing messages
  validate     check the IMAP connection and credentials
`

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	// Environment wins over file for credentials, so secrets can stay out
	// of the config file.
	if v := os.Getenv("MAILHUB_EMAIL"); v != "" {
		cfg.Account.Email = v
	}
	if v := os.Getenv("MAILHUB_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("opening store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	classifier := classify.New(st)
	fetcher := remote.NewFetcher(cfg.Account, st)
	sender := remote.NewSender(cfg.Account)
	deleter := remote.NewClient(cfg.Account)
	eng := engine.New(st, classifier, fetcher, sender, deleter, cfg, logger)

	ctx := context.Background()

	if err := run(ctx, eng, cfg, os.Args[1], os.Args[2:]); err != nil {
		logger.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, eng *engine.Engine, cfg *model.AppConfig, command string, args []string) error {
	switch command {
	case "fetch":
		return runFetch(ctx, eng, cfg)
	case "list":
		return runList(ctx, eng, args)
	case "rules":
		return runRules(ctx, eng)
	case "reclassify":
		moved, err := eng.Reclassify(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("moved %d messages to promo\n", moved)
		return nil
	case "validate":
		if err := cfg.Validate(); err != nil {
			return err
		}
		return remote.NewClient(cfg.Account).ValidateConnection(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runFetch(ctx context.Context, eng *engine.Engine, cfg *model.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	result, err := eng.Fetch(ctx, func(current, total int) {
		fmt.Printf("\rfetching %d/%d", current, total)
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nfetched %d messages, %d new\n", result.Fetched, result.New)
	return nil
}

func runList(ctx context.Context, eng *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	promo := fs.Bool("promo", false, "show the promo bucket instead of the inbox")
	provider := fs.String("provider", "", "restrict to one provider key")
	folder := fs.String("folder", "", "restrict to one folder")
	search := fs.String("search", "", "search expression (tokens AND, keyword OR)")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := store.MessageFilter{Promo: *promo, Search: *search}
	if *provider != "" {
		filter.Provider = provider
	}
	if *folder != "" {
		filter.Folder = folder
	}

	result, err := eng.Query(ctx, filter, store.Page{Number: *page, Size: store.DefaultPageSize})
	if err != nil {
		return err
	}

	for _, msg := range result.Messages {
		marker := " "
		if !msg.Read {
			marker = "*"
		}
		fmt.Printf("%s %-19s  %-30.30s  %s\n", marker, msg.DisplayDate, msg.Sender, msg.Subject)
	}
	fmt.Printf("page %d/%d (%d messages)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

func runRules(ctx context.Context, eng *engine.Engine) error {
	rules, err := eng.ListRules(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		target := "(promo box)"
		if rule.TargetFolder != nil {
			target = *rule.TargetFolder
		}
		fmt.Printf("%-40s -> %-20s matches=%d\n", rule.SenderPattern, target, rule.MatchCount)
	}
	return nil
}
