package pii

import "time"

// Category identifies a kind of personally identifiable information. The set
// is closed; detection rules, risk levels, and recommendations are keyed by it.
type Category string

const (
	CategoryCPF         Category = "cpf"
	CategoryCNPJ        Category = "cnpj"
	CategoryRG          Category = "rg"
	CategoryCNH         Category = "cnh"
	CategoryPassport    Category = "passport"
	CategoryEmail       Category = "email"
	CategoryPhone       Category = "phone"
	CategoryCreditCard  Category = "credit_card"
	CategoryBankAccount Category = "bank_account"
	CategoryPostalCode  Category = "postal_code"
	CategoryAddress     Category = "address"
	CategoryName        Category = "name"
	CategoryDateOfBirth Category = "date_of_birth"
	CategoryHealthData  Category = "health_data"
	CategoryBiometric   Category = "biometric"
	CategoryGeneric     Category = "generic"
)

// Categories lists every category in a stable order
func Categories() []Category {
	return []Category{
		CategoryCPF, CategoryCNPJ, CategoryRG, CategoryCNH, CategoryPassport,
		CategoryEmail, CategoryPhone, CategoryCreditCard, CategoryBankAccount,
		CategoryPostalCode, CategoryAddress, CategoryName, CategoryDateOfBirth,
		CategoryHealthData, CategoryBiometric, CategoryGeneric,
	}
}

// RiskLevel is the ordinal sensitivity classification of a finding
type RiskLevel int

const (
	RiskLow RiskLevel = iota + 1
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the lowercase level name
func (r RiskLevel) String() string {
	switch r {
	case RiskCritical:
		return "critical"
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	case RiskLow:
		return "low"
	default:
		return "unknown"
	}
}

// Levels lists risk levels from most to least severe
func Levels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}
}

// DetectionMethod records which evidence path produced a finding
type DetectionMethod string

const (
	MethodRegex      DetectionMethod = "regex"
	MethodColumnName DetectionMethod = "column_name"
)

// ColumnFinding is one detected (column, category) pair. Findings are never
// mutated after the scan except for risk annotation by the classifier.
type ColumnFinding struct {
	Column          string          `json:"column"`
	Category        Category        `json:"category"`
	Risk            RiskLevel       `json:"risk_level"`
	OccurrenceCount int             `json:"occurrence_count"`
	SampleSize      int             `json:"sample_size"`
	MatchRatio      float64         `json:"match_ratio"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	SampleValues    []string        `json:"sample_values,omitempty"`
}

// Warning reports cells that could not be evaluated for pattern matching.
// Warnings are informational; the scan continues without the affected cells.
type Warning struct {
	Column  string `json:"column"`
	Skipped int    `json:"skipped"`
	Reason  string `json:"reason"`
}

// ScanResult is the immutable outcome of one scan invocation
type ScanResult struct {
	Timestamp       time.Time       `json:"timestamp"`
	SourceName      string          `json:"source_name"`
	RowCount        int             `json:"row_count"`
	ColumnsAnalyzed int             `json:"columns_analyzed"`
	Findings        []ColumnFinding `json:"findings"`
	RiskSummary     map[string]int  `json:"risk_summary,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Warnings        []Warning       `json:"warnings,omitempty"`
	Duration        time.Duration   `json:"duration"`
}

// FindingsForColumn returns the findings recorded for one column
func (r *ScanResult) FindingsForColumn(column string) []ColumnFinding {
	var out []ColumnFinding
	for _, f := range r.Findings {
		if f.Column == column {
			out = append(out, f)
		}
	}
	return out
}

// ContentFindings returns only regex-evidence findings. Name-heuristic
// findings survive anonymization because the column name is unchanged, so
// audit comparisons use this subset.
func (r *ScanResult) ContentFindings() []ColumnFinding {
	var out []ColumnFinding
	for _, f := range r.Findings {
		if f.DetectionMethod == MethodRegex {
			out = append(out, f)
		}
	}
	return out
}
