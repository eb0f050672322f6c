package audit

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/anonymize"
	"github.com/lgpdkit/pii-sentinel/internal/dataset"
	"github.com/lgpdkit/pii-sentinel/internal/pii"
)

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	detector := pii.NewDetector(pii.NewDefaultRegistry(), pii.DefaultOptions(), zap.NewNop())
	engine := anonymize.NewEngine(anonymize.Config{
		Salt: anonymize.NewSalt(strings.Repeat("Ab1", 11)),
		Seed: 42,
	}, zap.NewNop())
	return New(detector, engine, zap.NewNop())
}

func customerDataset(rows int) *dataset.Dataset {
	cpfs := make([]dataset.Value, rows)
	emails := make([]dataset.Value, rows)
	for i := 0; i < rows; i++ {
		cpfs[i] = dataset.String(fmt.Sprintf("%03d.%03d.%03d-%02d", i, i+1, i+2, i%100))
		emails[i] = dataset.String(fmt.Sprintf("cliente%d@example.com", i))
	}
	ds := dataset.New("clientes")
	ds.AddColumn("cpf", cpfs)
	ds.AddColumn("email", emails)
	return ds
}

// TestScanAnnotates tests that orchestrated scans carry risk annotations
func TestScanAnnotates(t *testing.T) {
	orch := newOrchestrator(t)
	result := orch.Scan(customerDataset(10))

	if len(result.Findings) == 0 {
		t.Fatal("No findings on a dataset full of PII")
	}
	for _, f := range result.Findings {
		if f.Risk == 0 {
			t.Errorf("Finding %s/%s has no risk level", f.Column, f.Category)
		}
	}
	if result.RiskSummary == nil {
		t.Error("Risk summary missing")
	}
}

// TestRunReducesFindings tests the full loop on a PII-heavy dataset
func TestRunReducesFindings(t *testing.T) {
	orch := newOrchestrator(t)
	ds := customerDataset(50)

	result, err := orch.Run(ds, []anonymize.Spec{
		{Column: "cpf", Method: anonymize.Hash{TruncateLen: 12}},
		{Column: "email", Method: anonymize.Suppress{}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.ReductionRatio < 0 || result.ReductionRatio > 1 {
		t.Errorf("Reduction ratio %f outside [0, 1]", result.ReductionRatio)
	}
	if result.ReductionRatio == 0 {
		t.Error("Hashing and suppression should eliminate content findings")
	}

	// Content evidence is gone after the run
	if n := len(result.ScanAfter.ContentFindings()); n != 0 {
		t.Errorf("%d content findings survived anonymization", n)
	}

	// The input was not mutated
	before, _ := ds.Column("cpf")
	if !strings.Contains(before.Values[0].Text(), ".") {
		t.Error("Run mutated the input dataset")
	}
}

// TestResidualNameFindings tests that name-heuristic findings persist, since
// anonymization never renames columns
func TestResidualNameFindings(t *testing.T) {
	orch := newOrchestrator(t)

	ds := dataset.New("folha")
	ds.AddColumn("salario", []dataset.Value{dataset.Number(3500), dataset.Number(4200)})

	result, err := orch.Run(ds, []anonymize.Spec{
		{Column: "salario", Method: anonymize.Noise{Percentage: 0.1}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	found := false
	for _, f := range result.ScanAfter.Findings {
		if f.Column == "salario" && f.DetectionMethod == pii.MethodColumnName {
			found = true
		}
	}
	if !found {
		t.Error("Name-heuristic finding should survive anonymization")
	}
}

// TestReductionRatioEdges tests the ratio edge cases
func TestReductionRatioEdges(t *testing.T) {
	t.Run("CleanInput", func(t *testing.T) {
		orch := newOrchestrator(t)

		ds := dataset.New("limpo")
		ds.AddColumn("quantidade", []dataset.Value{dataset.Number(1), dataset.Number(2)})

		result, err := orch.Run(ds, []anonymize.Spec{
			{Column: "quantidade", Method: anonymize.Noise{Percentage: 0.05}},
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.ReductionRatio != 1.0 {
			t.Errorf("Empty before-scan should count as full reduction, got %f", result.ReductionRatio)
		}
	})

	t.Run("Clamped", func(t *testing.T) {
		if got := reductionRatio(2, 5); got != 0 {
			t.Errorf("More findings after than before should clamp to 0, got %f", got)
		}
		if got := reductionRatio(4, 1); got != 0.75 {
			t.Errorf("reductionRatio(4, 1) = %f, want 0.75", got)
		}
	})
}

// TestDefaultPlan tests the risk-driven plan derivation
func TestDefaultPlan(t *testing.T) {
	scan := &pii.ScanResult{
		Findings: []pii.ColumnFinding{
			{Column: "diagnostico", Category: pii.CategoryHealthData, Risk: pii.RiskCritical},
			{Column: "cpf", Category: pii.CategoryCPF, Risk: pii.RiskHigh},
			{Column: "email", Category: pii.CategoryEmail, Risk: pii.RiskMedium},
			{Column: "cep", Category: pii.CategoryPostalCode, Risk: pii.RiskLow},
			// A second finding for a planned column must not produce a duplicate Spec
			{Column: "cpf", Category: pii.CategoryCNH, Risk: pii.RiskHigh},
		},
	}

	specs := DefaultPlan(scan)
	if len(specs) != 4 {
		t.Fatalf("Expected 4 specs, got %d", len(specs))
	}

	byColumn := make(map[string]anonymize.Method)
	for _, s := range specs {
		byColumn[s.Column] = s.Method
	}

	if _, ok := byColumn["diagnostico"].(anonymize.Hash); !ok {
		t.Errorf("Critical column should be hashed, got %T", byColumn["diagnostico"])
	}
	if _, ok := byColumn["cpf"].(anonymize.Hash); !ok {
		t.Errorf("High column should be hashed, got %T", byColumn["cpf"])
	}
	if _, ok := byColumn["email"].(anonymize.Mask); !ok {
		t.Errorf("Medium column should be masked, got %T", byColumn["email"])
	}
	if _, ok := byColumn["cep"].(anonymize.Generalize); !ok {
		t.Errorf("Low column should be generalized, got %T", byColumn["cep"])
	}
}

// TestDefaultPlanEndToEnd tests that the derived plan actually runs
func TestDefaultPlanEndToEnd(t *testing.T) {
	orch := newOrchestrator(t)
	ds := customerDataset(20)

	specs := DefaultPlan(orch.Scan(ds))
	if len(specs) == 0 {
		t.Fatal("Derived plan is empty")
	}

	result, err := orch.Run(ds, specs)
	if err != nil {
		t.Fatalf("Run with derived plan failed: %v", err)
	}
	if result.ReductionRatio <= 0 {
		t.Errorf("Derived plan should reduce findings, got ratio %f", result.ReductionRatio)
	}
}
