// Package risk maps detected PII categories to regulatory risk levels and
// produces remediation recommendations. The taxonomy is fixed; classification
// is a pure lookup with no state.
package risk

import (
	"fmt"

	"github.com/lgpdkit/pii-sentinel/internal/pii"
)

// taxonomy is the fixed category-to-risk mapping
var taxonomy = map[pii.Category]pii.RiskLevel{
	pii.CategoryHealthData:  pii.RiskCritical,
	pii.CategoryBiometric:   pii.RiskCritical,
	pii.CategoryCPF:         pii.RiskHigh,
	pii.CategoryCNPJ:        pii.RiskHigh,
	pii.CategoryRG:          pii.RiskHigh,
	pii.CategoryCNH:         pii.RiskHigh,
	pii.CategoryPassport:    pii.RiskHigh,
	pii.CategoryCreditCard:  pii.RiskHigh,
	pii.CategoryBankAccount: pii.RiskHigh,
	pii.CategoryName:        pii.RiskMedium,
	pii.CategoryEmail:       pii.RiskMedium,
	pii.CategoryPhone:       pii.RiskMedium,
	pii.CategoryDateOfBirth: pii.RiskMedium,
	pii.CategoryAddress:     pii.RiskMedium,
	pii.CategoryPostalCode:  pii.RiskLow,
	pii.CategoryGeneric:     pii.RiskLow,
}

// recommendations is the per-category remediation lookup table
var recommendations = map[pii.Category]string{
	pii.CategoryCPF:         "apply hashing or tokenization to protect the identifier",
	pii.CategoryCNPJ:        "apply hashing or tokenization to protect the identifier",
	pii.CategoryRG:          "apply hashing or suppression; RG numbers have no analytical value",
	pii.CategoryCNH:         "apply hashing or suppression; CNH numbers have no analytical value",
	pii.CategoryPassport:    "apply hashing or suppression; passport numbers have no analytical value",
	pii.CategoryEmail:       "consider partial masking (e.g. j***@domain) for logs and reports",
	pii.CategoryPhone:       "mask all digits except the area code",
	pii.CategoryCreditCard:  "tokenize immediately; storing card numbers in clear violates PCI-DSS",
	pii.CategoryBankAccount: "hash account identifiers or generalize amounts into ranges",
	pii.CategoryPostalCode:  "generalize to the first digits to keep regional granularity",
	pii.CategoryAddress:     "suppress or generalize to city level",
	pii.CategoryName:        "pseudonymize with a consistent synthetic name pool",
	pii.CategoryDateOfBirth: "generalize to year or age range",
	pii.CategoryHealthData:  "requires a specific legal basis (LGPD Art. 11); anonymize or remove",
	pii.CategoryBiometric:   "requires a specific legal basis (LGPD Art. 11); anonymize or remove",
	pii.CategoryGeneric:     "review the column and document the processing purpose",
}

// Classify returns the risk level for a category
func Classify(category pii.Category) pii.RiskLevel {
	if level, ok := taxonomy[category]; ok {
		return level
	}
	return pii.RiskLow
}

// Recommend returns the remediation text for a category
func Recommend(category pii.Category) string {
	if text, ok := recommendations[category]; ok {
		return text
	}
	return recommendations[pii.CategoryGeneric]
}

// ColumnRisk returns the maximum risk across a column's findings, or zero
// when the column has none
func ColumnRisk(result *pii.ScanResult, column string) pii.RiskLevel {
	var max pii.RiskLevel
	for _, f := range result.FindingsForColumn(column) {
		if f.Risk > max {
			max = f.Risk
		}
	}
	return max
}

// Summarize counts columns (not findings) per risk level, so a column that
// matched several categories is counted once at its maximum level
func Summarize(result *pii.ScanResult) map[string]int {
	perColumn := make(map[string]pii.RiskLevel)
	for _, f := range result.Findings {
		level := f.Risk
		if level == 0 {
			level = Classify(f.Category)
		}
		if level > perColumn[f.Column] {
			perColumn[f.Column] = level
		}
	}

	summary := make(map[string]int, len(pii.Levels()))
	for _, level := range pii.Levels() {
		summary[level.String()] = 0
	}
	for _, level := range perColumn {
		summary[level.String()]++
	}
	return summary
}

// Annotate fills in risk levels, the risk summary, and aggregated
// recommendations on a scan result
func Annotate(result *pii.ScanResult) {
	for i := range result.Findings {
		result.Findings[i].Risk = Classify(result.Findings[i].Category)
	}
	result.RiskSummary = Summarize(result)
	result.Recommendations = Recommendations(result)
}

// Recommendations derives deterministic, actionable guidance from the
// findings of one scan
func Recommendations(result *pii.ScanResult) []string {
	var out []string

	criticalColumns := make(map[string]bool)
	hasIdentifier := false
	hasHealth := false
	hasEmail := false
	for _, f := range result.Findings {
		level := f.Risk
		if level == 0 {
			level = Classify(f.Category)
		}
		if level == pii.RiskCritical {
			criticalColumns[f.Column] = true
		}
		switch f.Category {
		case pii.CategoryCPF, pii.CategoryCNPJ:
			hasIdentifier = true
		case pii.CategoryHealthData:
			hasHealth = true
		case pii.CategoryEmail:
			hasEmail = true
		}
	}

	if len(criticalColumns) > 0 {
		out = append(out, fmt.Sprintf(
			"URGENT: %d column(s) with CRITICAL data detected. Anonymize or remove them immediately.",
			len(criticalColumns)))
	}
	if hasIdentifier {
		out = append(out, "CPF/CNPJ detected: use salted hashing or tokenization to protect these identifiers.")
	}
	if hasHealth {
		out = append(out, "Health data detected: processing requires a specific legal basis (LGPD Art. 11).")
	}
	if hasEmail {
		out = append(out, "Emails detected: consider partial masking (e.g. j***@domain) in logs and reports.")
	}
	if len(result.Findings) > 0 {
		out = append(out, "Document the processing purpose of every identified personal data field (LGPD Art. 37).")
	}

	return out
}
