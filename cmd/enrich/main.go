// Command enrich is the research controller (spec.md §6): it drives the
// per-person, per-source control loop against the roster, and offers a
// handful of operator actions against the durable stores without running
// a search (review, summary, stats, errors, reset, submit-approved).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/api"
	"github.com/kindred-labs/genealogy-enrich/internal/api/middleware"
	"github.com/kindred-labs/genealogy-enrich/internal/browser"
	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
	"github.com/kindred-labs/genealogy-enrich/internal/dedup"
	"github.com/kindred-labs/genealogy-enrich/internal/errorlog"
	"github.com/kindred-labs/genealogy-enrich/internal/extract"
	"github.com/kindred-labs/genealogy-enrich/internal/location"
	"github.com/kindred-labs/genealogy-enrich/internal/orchestrator"
	"github.com/kindred-labs/genealogy-enrich/internal/ratelimit"
	"github.com/kindred-labs/genealogy-enrich/internal/roster"
	"github.com/kindred-labs/genealogy-enrich/internal/sources"
	"github.com/kindred-labs/genealogy-enrich/internal/staging"
	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

type flags struct {
	limit          int
	all            bool
	source         string
	minScore       float64
	sequential     bool
	workers        int
	verbose        bool
	review         bool
	summary        bool
	submitApproved bool
	stats          bool
	reset          bool
	errorsFlag     bool
	clearErrors    bool
	initConfig     bool
	httpAddr       string
}

func parseFlags(args []string) flags {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)

	f := flags{}
	fs.IntVar(&f.limit, "limit", 0, "cap the number of people processed this run")
	fs.BoolVar(&f.all, "all", false, "process every unsearched person (no cap)")
	fs.StringVar(&f.source, "source", "", "restrict the run to one source key")
	fs.Float64Var(&f.minScore, "min-score", 0, "staging threshold (default 80)")
	fs.BoolVar(&f.sequential, "sequential", false, "disable per-person source parallelism")
	fs.IntVar(&f.workers, "workers", 0, "max parallel source workers per person (default 16)")
	fs.BoolVar(&f.verbose, "verbose", false, "log per-source progress")
	fs.BoolVar(&f.verbose, "v", false, "shorthand for --verbose")
	fs.BoolVar(&f.review, "review", false, "interactively review pending staged findings")
	fs.BoolVar(&f.summary, "summary", false, "print staged-findings summary counts")
	fs.BoolVar(&f.submitApproved, "submit-approved", false, "push approved findings to the roster")
	fs.BoolVar(&f.stats, "stats", false, "print dedup and rate-limiter totals")
	fs.BoolVar(&f.reset, "reset", false, "clear the dedup store")
	fs.BoolVar(&f.errorsFlag, "errors", false, "print the error-journal summary")
	fs.BoolVar(&f.clearErrors, "clear-errors", false, "clear the error journal")
	fs.BoolVar(&f.initConfig, "init-config", false, "write an example config file and exit")
	fs.StringVar(&f.httpAddr, "http-addr", "", "also serve the read-only monitoring surface on this host:port")

	_ = fs.Parse(args)

	return f
}

func main() {
	logLevel := appconfig.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	f := parseFlags(os.Args[1:])

	if f.initConfig {
		runInitConfig(logger)
		return
	}

	cfg := appconfig.Load(logger)

	ctx := context.Background()

	backend, err := storage.Open(ctx, storage.FromAppConfig(cfg.Database), logger)
	if err != nil {
		logger.Error("open storage backend failed", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	dedupStore, err := dedup.Open(ctx, backend)
	if err != nil {
		logger.Error("open dedup store failed", "error", err)
		os.Exit(1)
	}

	stagingStore := staging.New(backend)
	errorLog := errorlog.New(backend)
	limiter := ratelimit.NewDefault()

	if f.httpAddr != "" {
		startMonitoringServer(f.httpAddr, cfg, stagingStore, errorLog, dedupStore, limiter, logger)
	}

	switch {
	case f.reset:
		runReset(ctx, dedupStore, logger)
	case f.errorsFlag:
		runErrorSummary(ctx, errorLog, logger)
	case f.clearErrors:
		runClearErrors(ctx, errorLog, logger)
	case f.stats:
		runStats(ctx, dedupStore, limiter, logger)
	case f.summary:
		runSummary(ctx, stagingStore, logger)
	case f.review:
		runReview(ctx, stagingStore, logger)
	case f.submitApproved:
		runSubmitApproved(ctx, cfg, stagingStore, limiter, logger)
	default:
		os.Exit(runResearch(ctx, f, cfg, dedupStore, stagingStore, errorLog, limiter, logger))
	}
}

func runInitConfig(logger *slog.Logger) {
	path, err := appconfig.Path()
	if err != nil {
		logger.Error("resolve config path failed", "error", err)
		os.Exit(1)
	}

	if err := appconfig.WriteExample(path); err != nil {
		logger.Error("write example config failed", "path", path, "error", err)
		os.Exit(1)
	}

	fmt.Printf("wrote example config to %s\n", path)
}

func runReset(ctx context.Context, dedupStore *dedup.Store, logger *slog.Logger) {
	if err := dedupStore.Clear(ctx); err != nil {
		logger.Error("clear dedup store failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("dedup store cleared")
}

func runErrorSummary(ctx context.Context, errorLog *errorlog.Log, logger *slog.Logger) {
	summary, err := errorLog.Summarize(ctx)
	if err != nil {
		logger.Error("summarize error journal failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("errors: %d total\n", summary.Total)

	for errType, count := range summary.ByType {
		fmt.Printf("  %-12s %d\n", errType, count)
	}

	for key, count := range summary.BySource {
		fmt.Printf("  %-20s %d\n", key, count)
	}
}

func runClearErrors(ctx context.Context, errorLog *errorlog.Log, logger *slog.Logger) {
	if err := errorLog.Clear(ctx); err != nil {
		logger.Error("clear error journal failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("error journal cleared")
}

func runStats(ctx context.Context, dedupStore *dedup.Store, limiter *ratelimit.Limiter, logger *slog.Logger) {
	stats, err := dedupStore.Stats(ctx)
	if err != nil {
		logger.Error("read dedup stats failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("searched: %d (errors: %d)\n", stats.TotalSearched, stats.ErrorCount)

	requestStats := limiter.AllStats()

	for key, processed := range stats.BySource {
		rs := requestStats[key]
		fmt.Printf("  %-20s processed=%-6d requests=%-6d last=%s\n",
			key, processed, rs.RequestCount, rs.LastRequest.Format(time.RFC3339))
	}
}

func runSummary(ctx context.Context, stagingStore *staging.Store, logger *slog.Logger) {
	summary, err := stagingStore.Summary(ctx)
	if err != nil {
		logger.Error("read staging summary failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("staged findings: %d total (%d pending, %d approved, %d rejected)\n",
		summary.Total, summary.Pending, summary.Approved, summary.Rejected)

	for key, count := range summary.BySource {
		fmt.Printf("  %-20s %d\n", key, count)
	}
}

// runReview walks every pending finding, printing its candidate record and
// asking the operator to approve, reject, or skip it.
func runReview(ctx context.Context, stagingStore *staging.Store, logger *slog.Logger) {
	pending, err := stagingStore.GetPending(ctx)
	if err != nil {
		logger.Error("read pending findings failed", "error", err)
		os.Exit(1)
	}

	if len(pending) == 0 {
		fmt.Println("no pending findings")
		return
	}

	reader := bufio.NewScanner(os.Stdin)

	for _, finding := range pending {
		fmt.Printf("\n[%d] %s via %s (score %.0f)\n%s\n%s\n",
			finding.ID, finding.PersonName, finding.SourceKey, finding.MatchScore,
			finding.SourceURL, string(finding.ExtractedRecord))
		fmt.Print("approve / reject / skip? [a/r/s]: ")

		if !reader.Scan() {
			break
		}

		switch strings.ToLower(strings.TrimSpace(reader.Text())) {
		case "a":
			if err := stagingStore.Approve(ctx, finding.ID, ""); err != nil {
				logger.Error("approve finding failed", "id", finding.ID, "error", err)
			}
		case "r":
			if err := stagingStore.Reject(ctx, finding.ID, ""); err != nil {
				logger.Error("reject finding failed", "id", finding.ID, "error", err)
			}
		default:
			continue
		}
	}
}

// runSubmitApproved pushes every approved finding to the roster, prompting
// once for confirmation before any network call is made (spec.md §6).
func runSubmitApproved(ctx context.Context, cfg appconfig.Config, stagingStore *staging.Store, limiter *ratelimit.Limiter, logger *slog.Logger) {
	approved, err := stagingStore.GetApproved(ctx)
	if err != nil {
		logger.Error("read approved findings failed", "error", err)
		os.Exit(1)
	}

	if len(approved) == 0 {
		fmt.Println("no approved findings to submit")
		return
	}

	fmt.Printf("submit %d approved finding(s) to the roster? [y/N]: ", len(approved))

	reader := bufio.NewScanner(os.Stdin)
	if !reader.Scan() || strings.ToLower(strings.TrimSpace(reader.Text())) != "y" {
		fmt.Println("submission cancelled")
		return
	}

	rosterClient := roster.New(cfg.API.Endpoint, cfg.API.Key, limiter)
	if !rosterClient.Configured() {
		logger.Error("roster is not configured; set api.endpoint and api.key")
		os.Exit(1)
	}

	submitted := 0

	for _, finding := range approved {
		result, err := rosterClient.Submit(ctx, roster.SubmitRequest{
			PersonID:         finding.PersonID,
			SourceDescriptor: finding.SourceKey,
			Confidence:       int(math.Round(finding.MatchScore)),
			Findings:         finding.ExtractedRecord,
			AgentID:          "genealogy-enrich",
		})
		if err != nil {
			logger.Error("submit finding failed", "id", finding.ID, "error", err)

			continue
		}

		if result.Success {
			submitted++
		}
	}

	fmt.Printf("submitted %d/%d finding(s)\n", submitted, len(approved))
}

func startMonitoringServer(
	addr string,
	cfg appconfig.Config,
	stagingStore *staging.Store,
	errorLog *errorlog.Log,
	dedupStore *dedup.Store,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) {
	serverCfg := api.LoadServerConfig()
	serverCfg.APIKey = cfg.API.Key

	if host, port, ok := strings.Cut(addr, ":"); ok {
		serverCfg.Host = host

		if portNum, err := strconv.Atoi(port); err == nil {
			serverCfg.Port = portNum
		}
	}

	rateLimiter := middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	server := api.NewServer(&serverCfg,
		rateLimiter,
		api.StagingSummaryProvider{Store: stagingStore},
		api.ErrorLogProvider{Log: errorLog},
		api.SourceStatsProvider{Dedup: dedupStore, Limiter: limiter},
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("monitoring server stopped", "error", err)
		}
	}()

	logger.Info("monitoring surface started", "address", serverCfg.Address())
}

// runResearch drives the control loop and returns the process exit code:
// non-zero when any per-source worker this run raised a fatal-classified
// error (spec.md §6).
func runResearch(
	ctx context.Context,
	f flags,
	cfg appconfig.Config,
	dedupStore *dedup.Store,
	stagingStore *staging.Store,
	errorLog *errorlog.Log,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) int {
	sourceRegistry, err := sources.Load()
	if err != nil {
		logger.Error("load source registry failed", "error", err)
		return 1
	}

	locationResolver, err := location.Load()
	if err != nil {
		logger.Error("load gazetteer failed", "error", err)
		return 1
	}

	extractRegistry := extract.NewRegistry()

	browserCfg := browser.Config{DebugHost: cfg.Chrome.DebugHost, DebugPort: cfg.Chrome.DebugPort}

	browserPool, err := browser.Connect(ctx, browserCfg, logger)
	if err != nil {
		logger.Error("connect to browser failed", "error", err)
		return 1
	}
	defer browserPool.Close()

	rosterClient := roster.New(cfg.API.Endpoint, cfg.API.Key, limiter)

	orch := orchestrator.New(
		rosterClient, sourceRegistry, extractRegistry, locationResolver,
		browserPool, limiter, dedupStore, stagingStore, errorLog, logger,
	)

	limit := f.limit
	if f.all {
		limit = 0
	}

	opts := orchestrator.Options{
		Limit:        limit,
		SourceFilter: f.source,
		MinScore:     int(math.Round(f.minScore)),
		Sequential:   f.sequential,
		MaxWorkers:   f.workers,
		Verbose:      f.verbose,
	}

	summary, err := orch.Run(ctx, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("research run failed", "error", err)
		return 1
	}

	logger.Info("research run complete",
		"people_processed", summary.PeopleProcessed,
		"people_skipped", summary.PeopleSkipped,
		"findings_staged", summary.FindingsStaged,
		"source_errors", summary.SourceErrors,
		"bot_checks", summary.BotChecks,
		"daily_limits", summary.DailyLimits,
	)

	if summary.SourceErrors > 0 {
		return 1
	}

	return 0
}
