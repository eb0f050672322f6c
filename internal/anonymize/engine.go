package anonymize

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/dataset"
)

// Config controls one engine instance
type Config struct {
	Salt       Salt
	StrictMode bool
	// TokenPrefix prefixes generated vault tokens; defaults to "TOK_"
	TokenPrefix string
	// Workers caps concurrent column transforms; 0 means sequential
	Workers int
	// Seed fixes the noise randomness for reproducible runs; 0 derives a
	// seed from the clock
	Seed int64
}

// Engine dispatches anonymization specs over a dataset. Every engine owns its
// token vault; vaults are never shared across concurrent runs.
type Engine struct {
	cfg    Config
	vault  *TokenVault
	logger *zap.Logger
}

// NewEngine creates an engine with a fresh token vault
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		vault:  NewTokenVault(cfg.TokenPrefix),
		logger: logger,
	}
}

// NewEngineWithVault creates an engine around a previously restored vault,
// so tokens stay stable across runs that share a vault snapshot
func NewEngineWithVault(cfg Config, vault *TokenVault, logger *zap.Logger) *Engine {
	engine := NewEngine(cfg, logger)
	if vault != nil {
		engine.vault = vault
	}
	return engine
}

// Vault exposes the engine's token vault for detokenization and persistence
func (e *Engine) Vault() *TokenVault {
	return e.vault
}

// Apply validates every spec, then transforms the named columns one at a
// time. Validation failures abort the whole batch before any transform runs;
// transform-time failures abort only the affected column and are reported.
func (e *Engine) Apply(table dataset.Table, specs []Spec) (*dataset.Dataset, *Report, error) {
	start := time.Now()

	if err := e.validate(table, specs); err != nil {
		return nil, nil, err
	}

	base := materialize(table)
	report := &Report{
		Timestamp:  start,
		SourceName: base.Name,
		RowCount:   base.RowCount(),
		Columns:    make([]ColumnReport, len(specs)),
	}

	type outcome struct {
		values []dataset.Value
		err    error
	}
	outcomes := make([]outcome, len(specs))

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(specs) {
		workers = len(specs)
	}

	// Columns are independent; only the vault is shared, and it locks
	// internally. Each column gets its own deterministic noise source.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				spec := specs[i]
				column, _ := base.Column(spec.Column)
				values, err := e.transform(column, spec.Method)
				outcomes[i] = outcome{values: values, err: err}
			}
		}()
	}
	for i := range specs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := base.Clone()
	for i, spec := range specs {
		column, _ := base.Column(spec.Column)
		entry := ColumnReport{
			Column: spec.Column,
			Method: spec.Method.Name(),
		}

		if outcomes[i].err != nil {
			colErr := &ColumnError{Column: spec.Column, Method: spec.Method.Name(), Err: outcomes[i].err}
			entry.Error = colErr.Error()
			e.logger.Warn("Column transform failed",
				zap.String("column", spec.Column),
				zap.String("method", spec.Method.Name()),
				zap.Error(outcomes[i].err))
		} else {
			var err error
			out, err = out.WithColumn(spec.Column, outcomes[i].values)
			if err != nil {
				return nil, nil, err
			}
			entry.RowsProcessed = base.RowCount()
			entry.BeforeSample = sampleValues(column.Values)
			entry.AfterSample = sampleValues(outcomes[i].values)
			e.logger.Info("Column anonymized",
				zap.String("column", spec.Column),
				zap.String("method", spec.Method.Name()),
				zap.Int("rows", base.RowCount()))
		}

		report.Columns[i] = entry
	}

	report.Duration = time.Since(start)
	return out, report, nil
}

// Detokenize recovers an original value from this engine's vault
func (e *Engine) Detokenize(token string) (string, error) {
	return e.vault.Detokenize(token)
}

// validate checks the whole batch before any transform executes
func (e *Engine) validate(table dataset.Table, specs []Spec) error {
	seen := make(map[string]bool, len(specs))
	needsHash := false

	for _, spec := range specs {
		if spec.Method == nil {
			return &ConfigError{Column: spec.Column, Reason: "missing method"}
		}
		if _, ok := table.Column(spec.Column); !ok {
			return &ConfigError{Column: spec.Column, Method: spec.Method.Name(),
				Reason: "column not found in dataset"}
		}
		if seen[spec.Column] {
			return &ConfigError{Column: spec.Column, Method: spec.Method.Name(),
				Reason: "duplicate spec for column"}
		}
		seen[spec.Column] = true

		if err := spec.Method.validate(); err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Column = spec.Column
			}
			return err
		}

		if _, ok := spec.Method.(Hash); ok {
			needsHash = true
		}
	}

	if needsHash {
		score := EvaluateStrength(e.cfg.Salt)
		if !IsAcceptable(score, e.cfg.StrictMode) {
			return &InsecureSaltError{Score: score, Source: e.cfg.Salt.Source}
		}
		if score == StrengthWeak {
			e.logger.Warn("Weak salt in use for hashing; set a 32+ byte salt for production",
				zap.String("source", e.cfg.Salt.Source.String()))
		}
	}

	return nil
}

// transform materializes one column's anonymized values
func (e *Engine) transform(column *dataset.Column, method Method) ([]dataset.Value, error) {
	switch m := method.(type) {
	case Mask:
		return applyMask(column, m)
	case Hash:
		return applyHash(column, m, e.cfg.Salt)
	case Pseudonymize:
		return applyPseudonymize(column, m)
	case Generalize:
		return applyGeneralize(column, m)
	case Suppress:
		return applySuppress(column, m)
	case Tokenize:
		return applyTokenize(column, e.vault)
	case Noise:
		return applyNoise(column, m, e.columnRand(column.Name))
	default:
		return nil, &ConfigError{Method: method.Name(), Reason: "unknown anonymization method"}
	}
}

// columnRand derives a per-column random source so concurrent columns never
// share state and fixed seeds reproduce exact output
func (e *Engine) columnRand(column string) *rand.Rand {
	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	h := fnv.New64a()
	h.Write([]byte(column))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

// materialize converts any table into a concrete dataset
func materialize(table dataset.Table) *dataset.Dataset {
	if ds, ok := table.(*dataset.Dataset); ok {
		return ds
	}
	out := dataset.New("table")
	for _, name := range table.ColumnNames() {
		column, ok := table.Column(name)
		if !ok {
			continue
		}
		out.AddColumn(name, column.Values)
	}
	return out
}

// sampleValues returns up to three non-null stringified cells
func sampleValues(values []dataset.Value) []string {
	var out []string
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		out = append(out, v.Text())
		if len(out) == 3 {
			break
		}
	}
	return out
}
