package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pilot/internal/browser"
	"pilot/internal/cache"
	"pilot/internal/config"
	"pilot/internal/logging"
	"pilot/internal/oracle"
	"pilot/internal/orchestrator"
	"pilot/internal/runner"
	"pilot/internal/tcase"
	"pilot/internal/types"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// generate/analyze flags
	suitePath string
	caseTitle string
	caseURL   string
	caseSteps []string
	caseMode  string

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "pilot - cached, self-repairing UI test generation",
	Long: `pilot turns natural-language test steps into runnable browser tests.

Each step is resolved against the live page by an LLM oracle, executed,
and recorded; the recorded trail is synthesized into a test file, which
is verified by running it and repaired from runtime evidence when it
fails. Oracle decisions are memoized in a pluggable cache keyed by a
fingerprint of the step and the observed page, so repeated runs on an
unchanged application skip the LLM entirely.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Dir:        cfg.Logging.Dir,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return err
		}
		logging.Boot("pilot %s starting", cfg.Version)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// generateCmd runs the full pipeline for a suite file or a single case.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and verify browser tests from natural-language steps",
	Long: `Runs the full pipeline: navigate, resolve each step against the live
page (cache first, oracle on miss), execute, synthesize a test file,
verify it by running it, repair on failure.

Examples:
  pilot generate --suite cases.yaml
  pilot generate --title "login works" --url https://example.com \
      --step "fill the email field with user@example.com" \
      --step "fill the password field with hunter2" \
      --step "click the login button"`,
	RunE: runGenerate,
}

// analyzeCmd plans instructions without touching the page.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Plan instructions for a test case without executing them",
	RunE:  runAnalyze,
}

// cacheCmd groups cache maintenance.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the decision cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [fingerprint...]",
	Short: "Remove cached decisions, all of them or by fingerprint",
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show decision cache statistics",
	RunE:  runCacheStats,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pilot.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{generateCmd, analyzeCmd} {
		cmd.Flags().StringVar(&suitePath, "suite", "", "YAML suite file with test cases")
		cmd.Flags().StringVar(&caseTitle, "title", "", "test case title")
		cmd.Flags().StringVar(&caseURL, "url", "", "start URL")
		cmd.Flags().StringArrayVar(&caseSteps, "step", nil, "natural-language step (repeatable, in order)")
	}
	generateCmd.Flags().StringVar(&caseMode, "mode", "auto", "generation mode: step-by-step, fast, auto")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(generateCmd, analyzeCmd, cacheCmd)
}

// loadRequests resolves the suite flag or the single-case flags.
func loadRequests() ([]types.GenerationRequest, error) {
	if suitePath != "" {
		return tcase.LoadFile(suitePath)
	}
	req, err := tcase.FromFlags(caseTitle, caseURL, caseSteps, caseMode)
	if err != nil {
		return nil, err
	}
	return []types.GenerationRequest{req}, nil
}

// openStepCache opens the configured backend wrapped in the degrading
// cache layer. The caller owns Close.
func openStepCache() (*cache.StepCache, error) {
	provider, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open cache backend %q: %w", cfg.Cache.Backend, err)
	}
	return cache.NewStepCache(provider), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	requests, err := loadRequests()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := oracle.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	stepCache, err := openStepCache()
	if err != nil {
		return err
	}
	defer stepCache.Close()

	verifier, err := runner.NewExecRunner(cfg.Runner)
	if err != nil {
		return err
	}
	persister := runner.NewFilePersister(cfg.Execution.OutputDir)

	factory := func(ctx context.Context) (*orchestrator.Orchestrator, func(), error) {
		driver, err := browser.NewRodDriver(ctx, cfg.Browser)
		if err != nil {
			return nil, nil, err
		}
		orch := orchestrator.New(
			cfg.Execution,
			driver,
			stepCache,
			oracle.NewStepAnalyzer(llm),
			oracle.NewCodeGenerator(llm),
			verifier,
			persister,
		)
		return orch, func() { _ = driver.Close() }, nil
	}

	pool := orchestrator.NewPool(cfg.Execution.Concurrency, cfg.Execution.CaseTimeoutDuration(), factory)
	results, firstErr := pool.Run(ctx, requests)

	failed := 0
	for _, res := range results {
		if res.Result.Success {
			fmt.Printf("PASS  %-40s -> %s\n", res.Title, res.SavedTo)
		} else {
			failed++
			fmt.Printf("FAIL  %-40s %s\n", res.Title, res.Result.Message)
		}
	}
	fmt.Printf("\n%d/%d test cases generated\n", len(results)-failed, len(results))

	if firstErr != nil {
		return fmt.Errorf("%d of %d cases failed", failed, len(results))
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	requests, err := loadRequests()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := oracle.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	stepCache, err := openStepCache()
	if err != nil {
		return err
	}
	defer stepCache.Close()

	driver, err := browser.NewRodDriver(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer driver.Close()

	orch := orchestrator.New(
		cfg.Execution,
		driver,
		stepCache,
		oracle.NewStepAnalyzer(llm),
		oracle.NewCodeGenerator(llm),
		nil, nil,
	)

	for _, req := range requests {
		tc := types.NewTestCase(req.Title, req.Steps)
		plan, err := orch.AnalyzeOnly(ctx, tc, req.URL)
		if err != nil {
			return fmt.Errorf("analyze %q: %w", req.Title, err)
		}
		fmt.Printf("%s:\n", req.Title)
		for i, in := range plan {
			fmt.Printf("  %d. %s %s %s\n", i+1, in.Action, in.Locator, in.Value)
		}
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	provider, err := cache.Open(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache backend %q: %w", cfg.Cache.Backend, err)
	}
	defer provider.Close()

	ctx := context.Background()
	if len(args) == 0 {
		n, err := cache.Clear(ctx, provider)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d cached decisions\n", n)
		return nil
	}

	for _, key := range args {
		if err := provider.Invalidate(ctx, strings.TrimSpace(key)); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	fmt.Printf("invalidated %d fingerprints\n", len(args))
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	provider, err := cache.Open(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache backend %q: %w", cfg.Cache.Backend, err)
	}
	defer provider.Close()

	n, err := cache.Count(context.Background(), provider)
	if err != nil {
		return err
	}
	fmt.Printf("backend:  %s\n", cfg.Cache.Backend)
	fmt.Printf("entries:  %d\n", n)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
