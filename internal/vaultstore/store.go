// Package vaultstore persists token vaults in PostgreSQL. Durability is a
// collaborator concern: the anonymization engine never touches the database;
// callers load a vault before a run and save it afterwards inside one
// transactional boundary.
package vaultstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/anonymize"
)

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Store handles vault persistence with PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to the database and ensures the vault schema exists
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize vault store: %w", err)
	}

	logger.Info("Vault store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the connection and creates the vault table
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS token_vaults (
			run_id         TEXT NOT NULL,
			value_hash     TEXT NOT NULL,
			token          TEXT NOT NULL,
			original_value TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (run_id, value_hash),
			UNIQUE (run_id, token)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create vault table: %w", err)
	}

	return nil
}

// Save writes a vault snapshot for a run inside one transaction. Existing
// entries for the run are replaced, keeping the stored vault consistent with
// the in-memory one (load-modify-save).
func (s *Store) Save(ctx context.Context, runID string, vault *anonymize.TokenVault) error {
	entries := vault.Entries()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM token_vaults WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to clear previous vault snapshot: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO token_vaults (run_id, value_hash, token, original_value)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vault insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, runID, entry.ValueHash, entry.Token, entry.Value); err != nil {
			return fmt.Errorf("failed to insert vault entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vault snapshot: %w", err)
	}

	s.logger.Info("Vault snapshot saved",
		zap.String("run_id", runID),
		zap.Int("entries", len(entries)))

	return nil
}

// Load restores a persisted vault for a run, enabling re-identification
// across runs
func (s *Store) Load(ctx context.Context, runID string, prefix string) (*anonymize.TokenVault, error) {
	var entries []anonymize.VaultEntry
	query := `
		SELECT value_hash, token, original_value
		FROM token_vaults
		WHERE run_id = $1
		ORDER BY token`
	if err := s.db.SelectContext(ctx, &entries, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load vault entries: %w", err)
	}

	vault := anonymize.NewTokenVault(prefix)
	if err := vault.Restore(entries); err != nil {
		return nil, err
	}

	s.logger.Info("Vault snapshot loaded",
		zap.String("run_id", runID),
		zap.Int("entries", len(entries)))

	return vault, nil
}

// DeleteRun removes a run's vault snapshot
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM token_vaults WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete vault snapshot: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil {
		s.logger.Info("Vault snapshot deleted",
			zap.String("run_id", runID),
			zap.Int64("entries", affected))
	}

	return nil
}

// ListRuns returns the run IDs with stored vaults
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	var runs []string
	query := `SELECT DISTINCT run_id FROM token_vaults ORDER BY run_id`
	if err := s.db.SelectContext(ctx, &runs, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list vault runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in log output
func maskDatabaseURL(databaseURL string) string {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "****")
	}
	return parsed.String()
}
