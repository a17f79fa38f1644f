package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pharmadoc/internal/cache"
	"pharmadoc/internal/classify"
	"pharmadoc/internal/config"
	"pharmadoc/internal/extract"
	"pharmadoc/internal/logging"
	"pharmadoc/internal/oracle"
	"pharmadoc/internal/pipeline"
	"pharmadoc/internal/sanitize"
)

const version = "1.0.0"

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string
	workspace  string

	// Analyze flags
	stpPath     string
	mfrPath     string
	productName string
	dosageForm  string
	noCache     bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pharmadoc",
	Short: "pharmadoc - pharmaceutical document intelligence",
	Long: `pharmadoc turns noisy STP (Standard Testing Procedure) and MFR
(Master Formula Record) documents into reconciled structured records and
renders a deterministic process validation verdict.

Extraction runs multiple oracle passes and reconciles disagreement; the
regulatory engine never lets missing evidence pass as compliance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if apiKey != "" {
			cfg.Oracle.APIKey = apiKey
		}
		if workspace != "" {
			cfg.Workspace = workspace
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(cfg.Workspace); err != nil {
			logger.Warn("category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an STP/MFR document pair and render the validation verdict",
	Long: `Runs the full pipeline on a document pair:
  1. Normalize and classify each document
  2. Consensus-extract structured records (multiple oracle passes)
  3. Sanitize and validate the extracted data
  4. Assemble batch evidence and apply the regulatory rule chain

The verdict is written to stdout as JSON.

Example:
  pharmadoc analyze --stp stp.txt --mfr mfr.txt --product "Ciproxin Injection" --dosage-form Injection`,
	RunE: runAnalyze,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify a document as STP or MFR",
	Long: `Classifies a single document. The keyword heuristic always answers;
when an API key is configured the oracle verifies the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction result cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired extraction results",
	RunE:  runCachePrune,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pharmadoc %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory for cache and logs")

	analyzeCmd.Flags().StringVar(&stpPath, "stp", "", "Path to the STP document text (required)")
	analyzeCmd.Flags().StringVar(&mfrPath, "mfr", "", "Path to the MFR document text (required)")
	analyzeCmd.Flags().StringVar(&productName, "product", "", "Product name")
	analyzeCmd.Flags().StringVar(&dosageForm, "dosage-form", "", "Dosage form (e.g. Injection, Tablet)")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the extraction cache")
	analyzeCmd.MarkFlagRequired("stp")
	analyzeCmd.MarkFlagRequired("mfr")

	cacheCmd.AddCommand(cachePruneCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	return filepath.Join(".pharmadoc", "config.yaml")
}

// buildClient constructs the oracle client from config. Returns an error when
// no API key is available: extraction cannot run without the oracle.
func buildClient() (*oracle.GeminiClient, error) {
	if cfg.Oracle.APIKey == "" {
		return nil, errors.New("no API key configured (set GEMINI_API_KEY or pass --api-key)")
	}
	gc := oracle.DefaultGeminiConfig(cfg.Oracle.APIKey)
	if cfg.Oracle.Model != "" {
		gc.Model = cfg.Oracle.Model
	}
	if cfg.Oracle.BaseURL != "" {
		gc.BaseURL = cfg.Oracle.BaseURL
	}
	if cfg.Oracle.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = cfg.Oracle.MaxOutputTokens
	}
	gc.Timeout = cfg.GetOracleTimeout()
	gc.Temperature = cfg.Oracle.Temperature
	return oracle.NewGeminiClientWithConfig(gc), nil
}

// openCache opens the configured cache store, or returns nil when caching is
// disabled. A cache that fails to open degrades to uncached operation.
func openCache() *cache.Store {
	if !cfg.Cache.Enabled || noCache {
		return nil
	}
	store, err := cache.OpenTTL(cfg.Cache.Path, cfg.GetCacheTTL())
	if err != nil {
		logger.Warn("cache unavailable, extraction will not be cached",
			zap.String("path", cfg.Cache.Path), zap.Error(err))
		return nil
	}
	return store
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	client, err := buildClient()
	if err != nil {
		return err
	}

	stpText, err := os.ReadFile(stpPath)
	if err != nil {
		return fmt.Errorf("failed to read STP document: %w", err)
	}
	mfrText, err := os.ReadFile(mfrPath)
	if err != nil {
		return fmt.Errorf("failed to read MFR document: %w", err)
	}

	store := openCache()
	if store != nil {
		defer store.Close()
	}

	extractor := extract.New(client, store, extract.Options{
		Passes:      cfg.Extraction.Passes,
		MaxAttempts: cfg.Extraction.MaxAttempts,
		Strategy:    strategyFromConfig(cfg.Extraction.Strategy),
	})
	p := pipeline.New(client, extractor)

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	meta := pipeline.Meta{ProductName: productName, DosageForm: dosageForm}
	start := time.Now()
	logger.Info("starting document pair analysis",
		zap.String("stp", stpPath), zap.String("mfr", mfrPath),
		zap.String("product", productName))

	verdict, err := p.AnalyzePair(ctx, meta,
		pipeline.Document{Name: filepath.Base(stpPath), Text: string(stpText)},
		pipeline.Document{Name: filepath.Base(mfrPath), Text: string(mfrText)})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	logger.Info("analysis complete",
		zap.String("compliance", string(verdict.Decision.ComplianceLevel)),
		zap.Int("batches", len(verdict.Batches)),
		zap.Duration("elapsed", time.Since(start)))

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	fmt.Println(string(out))

	if len(verdict.SanityIssues) > 0 {
		return fmt.Errorf("verdict failed sanity check: %v", verdict.SanityIssues)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	text := sanitize.NormalizeText(string(raw))

	// Classification works without an oracle; the heuristic answers alone.
	var client oracle.Client
	if gc, err := buildClient(); err == nil {
		client = gc
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	docType := classify.Classify(ctx, client, text)
	fmt.Println(string(docType))
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	if !cfg.Cache.Enabled {
		fmt.Println("cache disabled")
		return nil
	}
	store, err := cache.OpenTTL(cfg.Cache.Path, cfg.GetCacheTTL())
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	n, err := store.Prune()
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	fmt.Printf("pruned %d expired entries\n", n)
	return nil
}

func strategyFromConfig(name string) extract.Strategy {
	if name == "judge" {
		return extract.StrategyJudge
	}
	return extract.StrategyReconcile
}
