package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appvariation "github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/application/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/persistence"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/scheduler"
)

func main() {
	var (
		marketplaceID string
		monitor       bool
		list          persistence.ListFilter
		familyID      string
	)
	flag.StringVar(&marketplaceID, "marketplace", "", "Marketplace id (defaults to spapi.marketplace_id)")
	flag.BoolVar(&monitor, "monitor", true, "Wait for the provider verdict after publishing")
	flag.StringVar(&list.Status, "status", "", "list/feeds: family status or feed outcome to match")
	flag.StringVar(&familyID, "family", "", "feeds: only this family's submissions")
	flag.StringVar(&list.OrderBy, "sort", "", "list/feeds: column to order by")
	flag.StringVar(&list.OrderDir, "order", "desc", "list/feeds: asc or desc")
	flag.IntVar(&list.Page, "page", 1, "list/feeds: page number")
	flag.IntVar(&list.PageSize, "page-size", 50, "list/feeds: rows per page")
	flag.Usage = printUsage
	flag.Parse()

	command := "run"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if marketplaceID == "" {
		marketplaceID = cfg.SPAPI.MarketplaceID
	}
	list.MarketplaceID = marketplaceID
	if familyID != "" {
		if list.FamilyID, err = uuid.Parse(familyID); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -family: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := shutdownContext()
		defer cancel()
		a.close(shutdownCtx)
	}()

	a.log.Info("Starting variationd",
		zap.String("command", command),
		zap.String("env", cfg.App.Env),
		zap.String("marketplace", marketplaceID),
	)

	switch command {
	case "run":
		err = a.run(ctx)
	case "detect":
		err = a.detect(ctx, marketplaceID, args)
	case "create":
		err = a.create(ctx, marketplaceID, args)
	case "publish":
		err = a.publish(ctx, args, monitor)
	case "sync":
		err = a.syncOnce(ctx, args)
	case "resume":
		err = a.resume(ctx)
	case "list":
		err = a.listFamilies(ctx, list)
	case "feeds":
		err = a.listFeeds(ctx, list)
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		a.log.Error("Command failed", zap.String("command", command), zap.Error(err))
		stop()
		a.close(context.Background())
		os.Exit(1)
	}
}

// run resumes pending feed monitoring and schedules family syncs until a
// shutdown signal arrives
func (a *app) run(ctx context.Context) error {
	resumeDone := make(chan struct{})
	go func() {
		defer close(resumeDone)
		if err := a.resume(ctx); err != nil {
			a.log.Error("Feed monitoring resume failed", zap.Error(err))
		}
	}()

	if a.cfg.Sync.Enabled {
		s, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			Interval:        a.cfg.Sync.Interval,
			RefreshInterval: a.cfg.Sync.RefreshInterval,
			JobTimeout:      a.cfg.Sync.JobTimeout,
		}, a.families, a.sync, a.log)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start sync scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := shutdownContext()
			defer cancel()
			if err := s.Stop(stopCtx); err != nil {
				a.log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		a.log.Info("Sync scheduler started",
			zap.Duration("interval", a.cfg.Sync.Interval),
			zap.Int("families", s.Len()),
		)
	}

	<-ctx.Done()
	a.log.Info("Shutting down")
	<-resumeDone
	return nil
}

// detect analyzes the given SKUs and prints the result as JSON
func (a *app) detect(ctx context.Context, marketplaceID string, skus []string) error {
	if len(skus) == 0 {
		return fmt.Errorf("detect needs at least one SKU")
	}
	result, err := a.detection.Detect(ctx, marketplaceID, skus)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// create saves a family from a CreateFamilyCommand read as JSON from a file,
// or from stdin when no file or "-" is given
func (a *app) create(ctx context.Context, marketplaceID string, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) > 1 {
		return fmt.Errorf("create takes at most one file")
	}
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	cmd, err := readCreateCommand(in, marketplaceID)
	if err != nil {
		return err
	}
	family, err := a.service.CreateFamily(ctx, cmd)
	if err != nil {
		return err
	}
	return printJSON(family)
}

// readCreateCommand decodes one command, filling the marketplace from the
// -marketplace flag or config when the document leaves it empty
func readCreateCommand(r io.Reader, marketplaceID string) (appvariation.CreateFamilyCommand, error) {
	var cmd appvariation.CreateFamilyCommand
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return cmd, fmt.Errorf("decode create command: %w", err)
	}
	if cmd.MarketplaceID == "" {
		cmd.MarketplaceID = marketplaceID
	}
	return cmd, nil
}

func (a *app) publish(ctx context.Context, args []string, monitor bool) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	var failed int
	for _, out := range a.service.PublishBatch(ctx, ids, monitor) {
		fields := []zap.Field{
			zap.String("family_id", out.FamilyID.String()),
			zap.String("feed_id", out.FeedID),
			zap.String("state", string(out.State)),
		}
		if out.Err != nil {
			failed++
			a.log.Warn("Publish failed", append(fields, zap.Error(out.Err))...)
			continue
		}
		a.log.Info("Published", fields...)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d families failed to publish", failed, len(ids))
	}
	return nil
}

// syncOnce syncs the given families, or every syncable family when none is given
func (a *app) syncOnce(ctx context.Context, args []string) error {
	if len(args) == 0 {
		failures, err := a.sync.SyncAll(ctx)
		if err != nil {
			return err
		}
		for id, ferr := range failures {
			a.log.Warn("Family sync failed", zap.String("family_id", id.String()), zap.Error(ferr))
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d families failed to sync", len(failures))
		}
		return nil
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		summary, err := a.sync.Sync(ctx, id)
		if err != nil {
			return err
		}
		a.log.Info("Family synced",
			zap.String("family_id", id.String()),
			zap.Int("inventory_synced", summary.InventorySynced),
			zap.Int("pricing_synced", summary.PricingSynced),
			zap.Int("errors", summary.Errors),
		)
	}
	return nil
}

func (a *app) resume(ctx context.Context) error {
	outcomes, err := a.service.ResumeMonitoring(ctx)
	if err != nil {
		return err
	}
	for _, out := range outcomes {
		fields := []zap.Field{
			zap.String("family_id", out.FamilyID.String()),
			zap.String("feed_id", out.FeedID),
			zap.String("state", string(out.State)),
		}
		if out.Err != nil {
			a.log.Warn("Resumed feed did not succeed", append(fields, zap.Error(out.Err))...)
			continue
		}
		a.log.Info("Resumed feed concluded", fields...)
	}
	return nil
}

// listFamilies prints one page of families as JSON
func (a *app) listFamilies(ctx context.Context, filter persistence.ListFilter) error {
	families, total, err := a.families.List(ctx, filter)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"total": total, "page": filter.Page, "families": families})
}

// listFeeds prints one page of feed submissions as JSON
func (a *app) listFeeds(ctx context.Context, filter persistence.ListFilter) error {
	feeds, total, err := a.submissions.List(ctx, filter)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"total": total, "page": filter.Page, "feeds": feeds})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one family id is required")
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid family id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: variationd [flags] [command] [args]

Commands:
  run                  Resume pending feeds and run the sync scheduler (default)
  detect <sku>...      Analyze SKUs and print candidate families as JSON
  create [file|-]      Create a family from a JSON create command (stdin by default)
  publish <id>...      Publish families' relationship feeds
  sync [id]...         Sync inventory and pricing once (all syncable families when no id)
  resume               Re-monitor feeds that have no verdict yet
  list                 Print families (-status, -sort, -order, -page, -page-size)
  feeds                Print feed submissions (-family, -status matches the outcome)

Flags:`)
	flag.PrintDefaults()
}
