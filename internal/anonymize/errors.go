package anonymize

import "fmt"

// ConfigError reports an invalid anonymization spec: an unknown method, a
// malformed parameter, or a column absent from the dataset. A ConfigError is
// fatal to the whole batch; nothing is anonymized.
type ConfigError struct {
	Column string
	Method string
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	msg := "invalid anonymization config"
	if e.Column != "" {
		msg += fmt.Sprintf(" for column %q", e.Column)
	}
	if e.Method != "" {
		msg += fmt.Sprintf(" (method %s)", e.Method)
	}
	if e.Param != "" {
		msg += fmt.Sprintf(", parameter %q", e.Param)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InsecureSaltError is raised in strict mode when a Hash spec would run with
// a weak salt. It is raised before any row is processed.
type InsecureSaltError struct {
	Score  StrengthScore
	Source SaltSource
}

func (e *InsecureSaltError) Error() string {
	return fmt.Sprintf("insecure salt (%s, source %s): strict mode requires at least a moderate salt for hashing",
		e.Score, e.Source)
}

// DetokenizeError reports a token with no vault entry. It invalidates only
// the single lookup, not the vault.
type DetokenizeError struct {
	Token string
}

func (e *DetokenizeError) Error() string {
	return fmt.Sprintf("no vault entry for token %q", e.Token)
}

// ColumnError records a transform-time failure for one column. Other columns
// are still processed; the caller decides whether to accept a partial result.
type ColumnError struct {
	Column string
	Method string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q (%s): %v", e.Column, e.Method, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}
