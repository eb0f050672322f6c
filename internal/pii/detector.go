package pii

import (
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/dataset"
)

const maxSampleValues = 5

// Options control detection thresholds and sampling
type Options struct {
	// ContentThreshold is the minimum match ratio for a regex finding when
	// the column name gives no evidence.
	ContentThreshold float64
	// NameThreshold replaces ContentThreshold when the column name matches a
	// category alias; name evidence is treated as a strong prior.
	NameThreshold float64
	// SampleSize caps how many non-null cells per column are pattern-matched.
	SampleSize int
}

// DefaultOptions returns the documented default thresholds
func DefaultOptions() Options {
	return Options{
		ContentThreshold: 0.8,
		NameThreshold:    0.3,
		SampleSize:       1000,
	}
}

// Detector applies a pattern registry to tabular data. Detection is a pure
// function of (table, registry, options); the detector holds no per-scan state.
type Detector struct {
	registry *Registry
	opts     Options
	logger   *zap.Logger
}

// NewDetector creates a detector
func NewDetector(registry *Registry, opts Options, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// Detect scans every column of the table and returns the findings
func (d *Detector) Detect(table dataset.Table) *ScanResult {
	start := time.Now()

	sourceName := "unknown"
	if ds, ok := table.(*dataset.Dataset); ok && ds.Name != "" {
		sourceName = ds.Name
	}

	result := &ScanResult{
		Timestamp:  start,
		SourceName: sourceName,
		RowCount:   table.RowCount(),
	}

	for _, name := range table.ColumnNames() {
		column, ok := table.Column(name)
		if !ok {
			continue
		}
		result.ColumnsAnalyzed++

		findings, warning := d.scanColumn(column, result.RowCount)
		result.Findings = append(result.Findings, findings...)
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
			d.logger.Warn("Cells skipped during pattern matching",
				zap.String("column", warning.Column),
				zap.Int("skipped", warning.Skipped),
				zap.String("reason", warning.Reason))
		}
	}

	result.Duration = time.Since(start)

	d.logger.Info("PII scan completed",
		zap.String("source", result.SourceName),
		zap.Int("rows", result.RowCount),
		zap.Int("columns_analyzed", result.ColumnsAnalyzed),
		zap.Int("findings", len(result.Findings)),
		zap.Duration("duration", result.Duration))

	return result
}

// scanColumn evaluates one column against every rule
func (d *Detector) scanColumn(column *dataset.Column, rowCount int) ([]ColumnFinding, *Warning) {
	nonNull := column.NonNullCount()
	if nonNull == 0 {
		// Empty columns never produce findings
		return nil, nil
	}

	aliasMatches := d.registry.MatchAliases(column.Name)

	// Collect the string cells eligible for pattern matching. Cells that are
	// not valid UTF-8 are skipped and excluded from the sample.
	var sampled []string
	skipped := 0
	for _, v := range column.Values {
		if len(sampled) >= d.opts.SampleSize {
			break
		}
		if v.Kind() != dataset.KindString {
			continue
		}
		text := v.Text()
		if !utf8.ValidString(text) {
			skipped++
			continue
		}
		sampled = append(sampled, text)
	}

	var warning *Warning
	if skipped > 0 {
		warning = &Warning{
			Column:  column.Name,
			Skipped: skipped,
			Reason:  "invalid UTF-8",
		}
	}

	var findings []ColumnFinding
	for _, rule := range d.registry.Rules() {
		nameEvidence := aliasMatches[rule.Category]

		// Content path: regex over the sampled string cells
		if rule.Pattern != nil && len(sampled) > 0 {
			matches := 0
			var samples []string
			for _, text := range sampled {
				if rule.Pattern.MatchString(text) {
					matches++
					if len(samples) < maxSampleValues {
						samples = append(samples, text)
					}
				}
			}

			ratio := float64(matches) / float64(len(sampled))
			threshold := d.opts.ContentThreshold
			if nameEvidence {
				threshold = d.opts.NameThreshold
			}

			if matches > 0 && ratio >= threshold {
				occurrences := int(math.Round(ratio * float64(nonNull)))
				if occurrences > rowCount {
					occurrences = rowCount
				}
				findings = append(findings, ColumnFinding{
					Column:          column.Name,
					Category:        rule.Category,
					OccurrenceCount: occurrences,
					SampleSize:      len(sampled),
					MatchRatio:      ratio,
					DetectionMethod: MethodRegex,
					SampleValues:    samples,
				})
				continue
			}
		}

		// Name path: alias evidence alone, for categories without a content
		// pattern and for non-string columns regex never sees.
		if nameEvidence && (rule.Pattern == nil || len(sampled) == 0) {
			occurrences := nonNull
			if occurrences > rowCount {
				occurrences = rowCount
			}
			findings = append(findings, ColumnFinding{
				Column:          column.Name,
				Category:        rule.Category,
				OccurrenceCount: occurrences,
				SampleSize:      nonNull,
				MatchRatio:      1.0,
				DetectionMethod: MethodColumnName,
			})
		}
	}

	return findings, warning
}
