package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"weekly-menu-planner/internal/backend"
	"weekly-menu-planner/internal/config"
	"weekly-menu-planner/internal/database"
	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/logger"
	"weekly-menu-planner/internal/metrics"
	"weekly-menu-planner/internal/preview"
	"weekly-menu-planner/internal/retry"
	"weekly-menu-planner/internal/selector"
	"weekly-menu-planner/internal/tui"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "tui":
		err = runTUI(ctx, cfg)
	case "suggest":
		err = runSuggest(ctx, cfg, os.Args[2:])
	case "metrics":
		err = runMetrics(ctx, cfg, os.Args[2:])
	case "metrics-cleanup":
		err = runCleanup(ctx, cfg, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func printUsage() {
	fmt.Println("Usage: menu-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  tui                Pick this week's recipes interactively")
	fmt.Println("  suggest            Print suggestions, optionally build a grocery list for -select")
	fmt.Println("  metrics            Show recent recipe service calls")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}

// services holds what every controller-backed command needs.
type services struct {
	db       *database.DB
	store    *metrics.Store
	recorder *metrics.Recorder
}

func openServices(cfg *config.Config, log logger.Logger) (*services, error) {
	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := metrics.NewStore(db.SQL)
	// The CLI has no /metrics endpoint; a private registry keeps the
	// collectors usable without exporting them.
	collectors := metrics.NewCollectors(prometheus.NewRegistry())
	return &services{
		db:       db,
		store:    store,
		recorder: metrics.NewRecorder(store, collectors, log),
	}, nil
}

func (s *services) Close() { s.store.Close() }

func newController(cfg *config.Config, s *services, surface selector.Surface, log logger.Logger) *selector.Controller {
	client := backend.NewClient(cfg, backend.WithObserver(s.recorder))

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay

	return selector.New(client, surface,
		selector.WithLogger(log),
		selector.WithRetryPolicy(policy),
	)
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	logPath := filepath.Join(filepath.Dir(cfg.MetricsDBPath), "menu-planner.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	appLog, err := logger.NewToFile(cfg.LogLevel, logPath)
	if err != nil {
		return err
	}
	defer appLog.Sync()

	s, err := openServices(cfg, appLog)
	if err != nil {
		return err
	}
	defer s.Close()

	surface := tui.NewSurface()
	ctl := newController(cfg, s, surface, appLog)
	app := tui.NewApp(ctl, surface, preview.NewFetcher(nil), cfg.ExportDir, appLog)
	return app.Run(ctx)
}

// consoleSurface prints notifications and nothing else.
type consoleSurface struct{}

func (consoleSurface) Render(selector.View) {}

func (consoleSurface) Notify(n selector.Notification) {
	fmt.Printf("[%s] %s\n", n.Level, n.Message)
}

func (consoleSurface) SetLoading(text string, loading bool) {
	if loading {
		fmt.Println(text)
	}
}

func runSuggest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	fresh := fs.Bool("fresh", false, "Ask the service for fresh recipes from the web")
	pick := fs.String("select", "", "Comma-separated recipe ids to select")
	format := fs.String("format", "txt", "Grocery list export format: txt, md or xlsx")
	fs.Parse(args)

	exportFormat, err := grocery.ParseFormat(*format)
	if err != nil {
		return err
	}

	appLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer appLog.Sync()

	s, err := openServices(cfg, appLog)
	if err != nil {
		return err
	}
	defer s.Close()

	ctl := newController(cfg, s, consoleSurface{}, appLog)
	if err := ctl.Load(ctx, *fresh); err != nil {
		return err
	}

	if *pick == "" {
		for _, r := range ctl.Snapshot().Displayed {
			fmt.Printf("%-12s %s (%s, %s, %s)\n", r.ID, r.Name, r.Protein, r.Cuisine, r.PrepTime)
		}
		return nil
	}

	for _, id := range strings.Split(*pick, ",") {
		if _, err := ctl.Toggle(ctx, strings.TrimSpace(id)); err != nil {
			return err
		}
	}
	if o := ctl.Snapshot().Overlap; o != nil {
		fmt.Printf("Ingredient overlap: %d shared of %d, %d%% efficiency\n", len(o.SharedIngredients), o.TotalUnique, o.Efficiency)
	}

	list, err := ctl.RequestGroceryList(ctx)
	if err != nil {
		return err
	}
	path, err := list.Export(cfg.ExportDir, exportFormat)
	if err != nil {
		return err
	}
	fmt.Printf("Grocery list saved to %s\n", path)
	return nil
}

func runMetrics(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	days := fs.Int("days", 7, "Report on the last N days")
	fs.Parse(args)

	s, err := openServices(cfg, logger.NewNop())
	if err != nil {
		return err
	}
	defer s.Close()

	usage, err := s.store.GetDailyUsage(ctx, *days)
	if err != nil {
		return err
	}
	summary, err := s.store.GetCallSummary(ctx, *days)
	if err != nil {
		return err
	}

	fmt.Printf("Recipe service calls, last %d days\n\n", *days)
	for _, d := range usage {
		fmt.Printf("  %s  %4d calls  %3d failed  avg %dms\n", d.Date, d.TotalCalls, d.Failures, d.AvgLatencyMS)
	}
	fmt.Println()
	for _, c := range summary {
		fmt.Printf("  %-20s %4d calls  %3d failed  avg %dms\n", c.Call, c.TotalCalls, c.Failures, c.AvgLatencyMS)
	}

	h := metrics.GetSysHealth(filepath.Dir(cfg.MetricsDBPath))
	fmt.Printf("\nData directory: %s\n", h.DataDiskSize)
	return nil
}

func runCleanup(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "Keep records for the last N days")
	fs.Parse(args)

	s, err := openServices(cfg, logger.NewNop())
	if err != nil {
		return err
	}
	defer s.Close()

	affected, err := s.store.Cleanup(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("Successfully removed %d old metric records.\n", affected)
	return nil
}
