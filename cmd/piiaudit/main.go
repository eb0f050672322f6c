package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/anonymize"
	"github.com/lgpdkit/pii-sentinel/internal/audit"
	"github.com/lgpdkit/pii-sentinel/internal/config"
	"github.com/lgpdkit/pii-sentinel/internal/dataset"
	"github.com/lgpdkit/pii-sentinel/internal/logger"
	"github.com/lgpdkit/pii-sentinel/internal/pii"
	"github.com/lgpdkit/pii-sentinel/internal/risk"
	"github.com/lgpdkit/pii-sentinel/internal/vaultstore"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/default.yaml", "Configuration file path")
		inputFile   = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON)")
		outputFile  = flag.String("output", "", "Output file for the anonymized dataset (default: <input>_anonimizado.csv)")
		methodsFile = flag.String("methods", "", "JSON file mapping columns to anonymization methods")
		reportFile  = flag.String("report", "", "Write the audit report as JSON to this path")
		scanOnly    = flag.Bool("scan-only", false, "Only scan for PII, don't anonymize")
		strictMode  = flag.Bool("strict", false, "Refuse to hash with a weak salt")
		sampleRows  = flag.Int("generate-sample", 0, "Generate a sample dataset with this many rows and exit")
		seed        = flag.Int64("seed", 0, "Seed for sample generation and noise reproducibility")
		runID       = flag.String("run-id", "", "Persist the token vault under this run ID (requires vault store)")
		detokenize  = flag.String("detokenize", "", "Resolve a token from a persisted vault and exit (requires --run-id)")
	)
	flag.Parse()

	if *inputFile == "" && *sampleRows == 0 && *detokenize == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input clientes.csv --scan-only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input clientes.csv --methods plano.json --output saida.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --generate-sample 100 --output dados_exemplo.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --run-id lote-2026-08 --detokenize TOK_00000001\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	switch {
	case *sampleRows > 0:
		if err := generateSample(*sampleRows, *seed, *outputFile, log); err != nil {
			log.Fatal("Sample generation failed", zap.Error(err))
		}

	case *detokenize != "":
		if err := resolveToken(ctx, cfg, *runID, *detokenize, log); err != nil {
			log.Fatal("Detokenization failed", zap.Error(err))
		}

	default:
		if err := runAudit(ctx, cfg, log, auditOptions{
			inputFile:   *inputFile,
			outputFile:  *outputFile,
			methodsFile: *methodsFile,
			reportFile:  *reportFile,
			scanOnly:    *scanOnly,
			strictMode:  *strictMode,
			seed:        *seed,
			runID:       *runID,
		}); err != nil {
			log.Fatal("Audit failed", zap.Error(err))
		}
	}
}

type auditOptions struct {
	inputFile   string
	outputFile  string
	methodsFile string
	reportFile  string
	scanOnly    bool
	strictMode  bool
	seed        int64
	runID       string
}

// runAudit loads the dataset, scans it, and unless --scan-only is set runs
// the full scan, anonymize, re-scan loop and writes the anonymized output
func runAudit(ctx context.Context, cfg *config.Config, log *logger.Logger, opts auditOptions) error {
	ds, err := dataset.Load(opts.inputFile)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	log.Info("Dataset loaded",
		zap.String("file", opts.inputFile),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.ColumnNames())))

	detector := pii.NewDetector(pii.NewDefaultRegistry(), pii.Options{
		ContentThreshold: cfg.Detection.ContentThreshold,
		NameThreshold:    cfg.Detection.NameThreshold,
		SampleSize:       cfg.Detection.SampleSize,
	}, log.WithComponent("detector").Logger)

	if opts.scanOnly {
		result := detector.Detect(ds)
		risk.Annotate(result)
		printScanSummary(result)
		if opts.reportFile != "" {
			return writeJSON(opts.reportFile, result)
		}
		return nil
	}

	salt, err := resolveSalt(cfg, log)
	if err != nil {
		return err
	}

	var vault *anonymize.TokenVault
	var store *vaultstore.Store
	if opts.runID != "" {
		if !cfg.Vault.Enabled {
			return fmt.Errorf("--run-id requires the vault store to be enabled in config")
		}
		store, err = vaultstore.NewStore(&vaultstore.Config{
			DatabaseURL:     cfg.Vault.DatabaseURL,
			MaxOpenConns:    cfg.Vault.MaxOpenConns,
			MaxIdleConns:    cfg.Vault.MaxIdleConns,
			ConnMaxLifetime: cfg.Vault.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Vault.ConnMaxIdleTime,
		}, log.WithComponent("vaultstore").Logger)
		if err != nil {
			return err
		}
		defer store.Close()

		vault, err = store.Load(ctx, opts.runID, cfg.Anonymization.TokenPrefix)
		if err != nil {
			return err
		}
	}

	engine := anonymize.NewEngineWithVault(anonymize.Config{
		Salt:        salt,
		StrictMode:  cfg.Anonymization.StrictMode || opts.strictMode,
		TokenPrefix: cfg.Anonymization.TokenPrefix,
		Workers:     cfg.Anonymization.Workers,
		Seed:        opts.seed,
	}, vault, log.WithComponent("engine").Logger)

	orch := audit.New(detector, engine, log.WithComponent("audit").Logger)

	specs, err := resolvePlan(orch, ds, opts.methodsFile)
	if err != nil {
		return err
	}

	result, err := orch.Run(ds, specs)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(ctx, opts.runID, engine.Vault()); err != nil {
			return err
		}
	}

	outputPath := opts.outputFile
	if outputPath == "" {
		outputPath = defaultOutputPath(opts.inputFile)
	}
	if err := dataset.WriteCSV(result.Output, outputPath); err != nil {
		return fmt.Errorf("failed to write anonymized dataset: %w", err)
	}

	printScanSummary(result.ScanBefore)
	fmt.Printf("\nAnonymized %d columns (%d rows) -> %s\n",
		len(result.Report.Columns), result.Report.RowCount, outputPath)
	fmt.Printf("Finding reduction: %.0f%%\n", result.ReductionRatio*100)
	if failed := result.Report.FailedColumns(); len(failed) > 0 {
		fmt.Printf("Failed columns: %s\n", strings.Join(failed, ", "))
	}

	if opts.reportFile != "" {
		return writeJSON(opts.reportFile, result)
	}
	return nil
}

// resolveSalt uses the configured salt when present; otherwise it generates
// one for this invocation
func resolveSalt(cfg *config.Config, log *logger.Logger) (anonymize.Salt, error) {
	if cfg.Anonymization.HashSalt != "" {
		return anonymize.NewSalt(cfg.Anonymization.HashSalt), nil
	}
	salt, err := anonymize.GenerateSalt()
	if err != nil {
		return anonymize.Salt{}, err
	}
	log.Warn("No hash salt configured, generated one for this run; hashes will differ between runs",
		zap.String("hint", "set SENTINEL_ANONYMIZATION_HASH_SALT for stable hashes"))
	return salt, nil
}

// resolvePlan reads the methods file, or derives a plan from the scan's risk
// levels when none is given
func resolvePlan(orch *audit.Orchestrator, ds *dataset.Dataset, methodsFile string) ([]anonymize.Spec, error) {
	if methodsFile == "" {
		return audit.DefaultPlan(orch.Scan(ds)), nil
	}

	data, err := os.ReadFile(methodsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read methods file: %w", err)
	}

	var methods map[string]anonymize.MethodConfig
	if err := json.Unmarshal(data, &methods); err != nil {
		return nil, fmt.Errorf("invalid methods file: %w", err)
	}
	return anonymize.ParseSpecs(methods)
}

// generateSample writes a synthetic Brazilian customer dataset
func generateSample(rows int, seed int64, outputPath string, log *logger.Logger) error {
	if outputPath == "" {
		outputPath = "dados_exemplo.csv"
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ds := dataset.GenerateSample(rows, seed)
	if err := dataset.WriteCSV(ds, outputPath); err != nil {
		return err
	}

	log.Info("Sample dataset generated",
		zap.String("file", outputPath),
		zap.Int("rows", rows),
		zap.Int64("seed", seed))
	return nil
}

// resolveToken loads a persisted vault and resolves one token
func resolveToken(ctx context.Context, cfg *config.Config, runID, token string, log *logger.Logger) error {
	if runID == "" {
		return fmt.Errorf("--detokenize requires --run-id")
	}
	if !cfg.Vault.Enabled {
		return fmt.Errorf("detokenization requires the vault store to be enabled in config")
	}

	store, err := vaultstore.NewStore(&vaultstore.Config{
		DatabaseURL:     cfg.Vault.DatabaseURL,
		MaxOpenConns:    cfg.Vault.MaxOpenConns,
		MaxIdleConns:    cfg.Vault.MaxIdleConns,
		ConnMaxLifetime: cfg.Vault.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Vault.ConnMaxIdleTime,
	}, log.WithComponent("vaultstore").Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	vault, err := store.Load(ctx, runID, cfg.Anonymization.TokenPrefix)
	if err != nil {
		return err
	}

	value, err := vault.Detokenize(token)
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

// printScanSummary prints findings grouped by risk, highest first
func printScanSummary(result *pii.ScanResult) {
	fmt.Printf("Scanned %s: %d rows, %d columns, %d findings\n",
		result.SourceName, result.RowCount, result.ColumnsAnalyzed, len(result.Findings))

	for _, f := range result.Findings {
		fmt.Printf("  [%s] %-20s %-15s ratio=%.2f occurrences=%d (%s)\n",
			f.Risk, f.Column, f.Category, f.MatchRatio, f.OccurrenceCount, f.DetectionMethod)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: column %s skipped %d cells (%s)\n", w.Column, w.Skipped, w.Reason)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("  -> %s\n", rec)
	}
}

func defaultOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	return base + "_anonimizado.csv"
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
