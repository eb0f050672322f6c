package anonymize

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/dataset"
)

func strongTestSalt() Salt {
	return NewSalt(strings.Repeat("Ab1", 11)) // 33 bytes, three classes
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{Salt: strongTestSalt(), Seed: 42}, zap.NewNop())
}

func singleColumn(t *testing.T, name string, values ...dataset.Value) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("test")
	if err := ds.AddColumn(name, values); err != nil {
		t.Fatalf("AddColumn failed: %v", err)
	}
	return ds
}

func columnValues(t *testing.T, ds *dataset.Dataset, name string) []dataset.Value {
	t.Helper()
	col, ok := ds.Column(name)
	if !ok {
		t.Fatalf("Column %q missing from output", name)
	}
	return col.Values
}

// TestMask tests length-preserving masking
func TestMask(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("PreservesLength", func(t *testing.T) {
		ds := singleColumn(t, "cpf",
			dataset.String("123.456.789-00"),
			dataset.String("98765432100"),
		)

		out, _, err := engine.Apply(ds, []Spec{
			{Column: "cpf", Method: Mask{VisiblePrefix: 3, VisibleSuffix: 2}},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "cpf")
		if got := values[0].Text(); got != "123*********00" {
			t.Errorf("Masked value = %q, want 123*********00", got)
		}
		for i, v := range values {
			orig, _ := ds.Column("cpf")
			if utf8.RuneCountInString(v.Text()) != utf8.RuneCountInString(orig.Values[i].Text()) {
				t.Errorf("Row %d: mask changed the length", i)
			}
		}
	})

	t.Run("UnicodeSafe", func(t *testing.T) {
		ds := singleColumn(t, "nome", dataset.String("José Düñez"))

		out, _, err := engine.Apply(ds, []Spec{
			{Column: "nome", Method: Mask{VisiblePrefix: 2, VisibleSuffix: 2}},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		got := columnValues(t, out, "nome")[0].Text()
		if utf8.RuneCountInString(got) != utf8.RuneCountInString("José Düñez") {
			t.Errorf("Masked value %q has wrong rune count", got)
		}
		if !strings.HasPrefix(got, "Jo") || !strings.HasSuffix(got, "ez") {
			t.Errorf("Visible edges lost: %q", got)
		}
	})

	t.Run("WindowsWiderThanValue", func(t *testing.T) {
		ds := singleColumn(t, "uf", dataset.String("SP"))

		out, _, err := engine.Apply(ds, []Spec{
			{Column: "uf", Method: Mask{VisiblePrefix: 5, VisibleSuffix: 5}},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got := columnValues(t, out, "uf")[0].Text(); len(got) != 2 {
			t.Errorf("Masked value %q should keep length 2", got)
		}
	})

	t.Run("NullsUntouched", func(t *testing.T) {
		ds := singleColumn(t, "cpf", dataset.Null(), dataset.String("123.456.789-00"))

		out, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Mask{}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !columnValues(t, out, "cpf")[0].IsNull() {
			t.Error("Null cell should stay null after masking")
		}
	})
}

// TestHash tests deterministic salted hashing
func TestHash(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		engine := newTestEngine(t)
		ds := singleColumn(t, "cpf",
			dataset.String("123.456.789-00"),
			dataset.String("123.456.789-00"),
			dataset.String("987.654.321-00"),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Hash{}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "cpf")
		if values[0].Text() != values[1].Text() {
			t.Error("Equal inputs must hash equally")
		}
		if values[0].Text() == values[2].Text() {
			t.Error("Distinct inputs should not collide")
		}
		if len(values[0].Text()) != 64 {
			t.Errorf("Full digest should be 64 hex chars, got %d", len(values[0].Text()))
		}
	})

	t.Run("Truncate", func(t *testing.T) {
		engine := newTestEngine(t)
		ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

		out, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Hash{TruncateLen: 12}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got := columnValues(t, out, "cpf")[0].Text(); len(got) != 12 {
			t.Errorf("Truncated digest length = %d, want 12", len(got))
		}
	})

	t.Run("SaltChangesDigest", func(t *testing.T) {
		ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

		a := NewEngine(Config{Salt: NewSalt(strings.Repeat("Xy9", 11))}, zap.NewNop())
		b := NewEngine(Config{Salt: strongTestSalt()}, zap.NewNop())

		outA, _, _ := a.Apply(ds, []Spec{{Column: "cpf", Method: Hash{}}})
		outB, _, _ := b.Apply(ds, []Spec{{Column: "cpf", Method: Hash{}}})

		if columnValues(t, outA, "cpf")[0].Text() == columnValues(t, outB, "cpf")[0].Text() {
			t.Error("Different salts produced the same digest")
		}
	})
}

// TestStrictSalt tests the pre-flight salt check
func TestStrictSalt(t *testing.T) {
	t.Run("WeakSaltRejectedBeforeProcessing", func(t *testing.T) {
		engine := NewEngine(Config{Salt: NewSalt("abc"), StrictMode: true}, zap.NewNop())
		ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

		out, report, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Hash{}}})
		if err == nil {
			t.Fatal("Strict mode with a weak salt must fail")
		}
		var saltErr *InsecureSaltError
		if !errors.As(err, &saltErr) {
			t.Fatalf("Expected InsecureSaltError, got %T", err)
		}
		if out != nil || report != nil {
			t.Error("No output may be produced when the salt check fails")
		}
	})

	t.Run("WeakSaltAllowedWithoutHash", func(t *testing.T) {
		engine := NewEngine(Config{Salt: NewSalt("abc"), StrictMode: true}, zap.NewNop())
		ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

		if _, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Mask{}}}); err != nil {
			t.Errorf("Salt check should only guard hashing: %v", err)
		}
	})

	t.Run("ModerateSaltAccepted", func(t *testing.T) {
		engine := NewEngine(Config{Salt: NewSalt(strings.Repeat("a", 32)), StrictMode: true}, zap.NewNop())
		ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

		if _, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Hash{}}}); err != nil {
			t.Errorf("Moderate salt should pass strict mode: %v", err)
		}
	})
}

// TestValidationFailures tests batch-fatal config errors
func TestValidationFailures(t *testing.T) {
	engine := newTestEngine(t)
	ds := singleColumn(t, "cpf", dataset.String("123.456.789-00"))

	t.Run("UnknownColumn", func(t *testing.T) {
		_, _, err := engine.Apply(ds, []Spec{{Column: "rg", Method: Mask{}}})
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected ConfigError, got %v", err)
		}
		if ce.Column != "rg" {
			t.Errorf("Error should name the column, got %q", ce.Column)
		}
	})

	t.Run("DuplicateColumn", func(t *testing.T) {
		_, _, err := engine.Apply(ds, []Spec{
			{Column: "cpf", Method: Mask{}},
			{Column: "cpf", Method: Hash{}},
		})
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected ConfigError, got %v", err)
		}
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		_, _, err := engine.Apply(ds, []Spec{{Column: "cpf", Method: Hash{TruncateLen: 99}}})
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected ConfigError, got %v", err)
		}
	})
}

// TestGeneralize tests numeric binning and categorical folding
func TestGeneralize(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("NumericRangesAndLabels", func(t *testing.T) {
		ds := singleColumn(t, "idade",
			dataset.Number(25), dataset.Number(50), dataset.Number(70),
			dataset.Number(30), dataset.Number(100),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "idade", Method: Generalize{
			Bins:   4,
			Ranges: []float64{18, 30, 45, 60, 100},
			Labels: []string{"18-30", "31-45", "46-60", "60+"},
		}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "idade")
		want := []string{"18-30", "46-60", "60+", "31-45", "60+"}
		for i, w := range want {
			if got := values[i].Text(); got != w {
				t.Errorf("Row %d: got %q, want %q", i, got, w)
			}
		}
	})

	t.Run("NumericEqualWidth", func(t *testing.T) {
		ds := singleColumn(t, "salario",
			dataset.Number(1000), dataset.Number(5000), dataset.Number(9000),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "salario", Method: Generalize{Bins: 2}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "salario")
		if values[0].Text() != "1000-5000" {
			t.Errorf("Low bin label = %q", values[0].Text())
		}
		if values[2].Text() != "5000-9000" {
			t.Errorf("High bin label = %q", values[2].Text())
		}
		// Upper boundary of the final bin is inclusive
		if values[2].Text() != values[1].Text() {
			t.Errorf("5000 belongs to the upper bin, got %q", values[1].Text())
		}
	})

	t.Run("CategoricalAllowList", func(t *testing.T) {
		ds := singleColumn(t, "departamento",
			dataset.String("TI"), dataset.String("RH"), dataset.String("Jurídico"),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "departamento", Method: Generalize{
			AllowList: []string{"TI", "RH"},
		}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "departamento")
		if values[0].Text() != "TI" || values[1].Text() != "RH" {
			t.Error("Allow-listed values must pass through unchanged")
		}
		if values[2].Text() != "Outros" {
			t.Errorf("Out-of-list value = %q, want Outros", values[2].Text())
		}
	})

	t.Run("CategoricalTopFrequency", func(t *testing.T) {
		ds := singleColumn(t, "cidade",
			dataset.String("São Paulo"), dataset.String("São Paulo"),
			dataset.String("São Paulo"), dataset.String("Teresina"),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "cidade", Method: Generalize{Bins: 2}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "cidade")
		if values[0].Text() != "São Paulo" {
			t.Errorf("Most frequent value should survive, got %q", values[0].Text())
		}
		if values[3].Text() != "Outros" {
			t.Errorf("Tail value = %q, want Outros", values[3].Text())
		}
	})
}

// TestPseudonymize tests deterministic pool substitution
func TestPseudonymize(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("ConsistentAndFromPool", func(t *testing.T) {
		ds := singleColumn(t, "nome",
			dataset.String("Ana Silva"), dataset.String("Ana Silva"),
			dataset.String("Bruno Souza"),
		)

		out, _, err := engine.Apply(ds, []Spec{{Column: "nome", Method: Pseudonymize{CategoryHint: "name"}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		values := columnValues(t, out, "nome")
		if values[0].Text() != values[1].Text() {
			t.Error("Same input should map to the same pseudonym")
		}
		inPool := false
		for _, candidate := range pseudonymPools["name"] {
			if values[0].Text() == candidate {
				inPool = true
			}
		}
		if !inPool {
			t.Errorf("Pseudonym %q not from the name pool", values[0].Text())
		}
	})

	t.Run("UnknownHintFallsBackToOpaqueID", func(t *testing.T) {
		ds := singleColumn(t, "codigo", dataset.String("XYZ-1"))

		out, _, err := engine.Apply(ds, []Spec{{Column: "codigo", Method: Pseudonymize{}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got := columnValues(t, out, "codigo")[0].Text(); !strings.HasPrefix(got, "ID_") {
			t.Errorf("Fallback pseudonym = %q, want ID_ prefix", got)
		}
	})
}

// TestSuppress tests unconditional replacement
func TestSuppress(t *testing.T) {
	engine := newTestEngine(t)
	ds := singleColumn(t, "rg", dataset.String("12.345.678-9"), dataset.Null())

	out, _, err := engine.Apply(ds, []Spec{{Column: "rg", Method: Suppress{}}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	values := columnValues(t, out, "rg")
	for i, v := range values {
		if v.Text() != "[SUPRIMIDO]" {
			t.Errorf("Row %d = %q, want [SUPRIMIDO]; suppression replaces nulls too", i, v.Text())
		}
	}
}

// TestTokenizeMethod tests vault-backed tokenization through the engine
func TestTokenizeMethod(t *testing.T) {
	engine := newTestEngine(t)
	ds := singleColumn(t, "email",
		dataset.String("ana@example.com"),
		dataset.String("bruno@example.com"),
		dataset.String("ana@example.com"),
	)

	out, _, err := engine.Apply(ds, []Spec{{Column: "email", Method: Tokenize{}}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	values := columnValues(t, out, "email")
	if values[0].Text() != values[2].Text() {
		t.Error("Repeated value must receive the same token")
	}
	if values[0].Text() == values[1].Text() {
		t.Error("Distinct values must receive distinct tokens")
	}
	if engine.Vault().Len() != 2 {
		t.Errorf("Vault should hold 2 entries, got %d", engine.Vault().Len())
	}

	original, err := engine.Detokenize(values[0].Text())
	if err != nil {
		t.Fatalf("Detokenize failed: %v", err)
	}
	if original != "ana@example.com" {
		t.Errorf("Detokenized value = %q", original)
	}
}

// TestNoise tests bounded numeric perturbation
func TestNoise(t *testing.T) {
	t.Run("PercentageBounds", func(t *testing.T) {
		engine := newTestEngine(t)
		values := make([]dataset.Value, 200)
		for i := range values {
			values[i] = dataset.Number(1000)
		}
		ds := singleColumn(t, "salario", values...)

		out, _, err := engine.Apply(ds, []Spec{{Column: "salario", Method: Noise{Percentage: 0.1}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		for i, v := range columnValues(t, out, "salario") {
			f, ok := v.Float()
			if !ok {
				t.Fatalf("Row %d is not numeric", i)
			}
			if f < 900 || f > 1100 {
				t.Errorf("Row %d: %f outside [900, 1100]", i, f)
			}
		}
	})

	t.Run("SeedReproducible", func(t *testing.T) {
		ds := singleColumn(t, "valor", dataset.Number(500), dataset.Number(800))

		a := NewEngine(Config{Salt: strongTestSalt(), Seed: 7}, zap.NewNop())
		b := NewEngine(Config{Salt: strongTestSalt(), Seed: 7}, zap.NewNop())

		outA, _, _ := a.Apply(ds, []Spec{{Column: "valor", Method: Noise{Percentage: 0.2}}})
		outB, _, _ := b.Apply(ds, []Spec{{Column: "valor", Method: Noise{Percentage: 0.2}}})

		va := columnValues(t, outA, "valor")
		vb := columnValues(t, outB, "valor")
		for i := range va {
			fa, _ := va[i].Float()
			fb, _ := vb[i].Float()
			if fa != fb {
				t.Errorf("Row %d: same seed produced %f and %f", i, fa, fb)
			}
		}
	})

	t.Run("ClampFloor", func(t *testing.T) {
		engine := newTestEngine(t)
		values := make([]dataset.Value, 100)
		for i := range values {
			values[i] = dataset.Number(0.5)
		}
		ds := singleColumn(t, "valor", values...)

		out, _, err := engine.Apply(ds, []Spec{{Column: "valor", Method: Noise{NoiseLevel: 5, Clamp: true}}})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		for i, v := range columnValues(t, out, "valor") {
			if f, _ := v.Float(); f < 0 {
				t.Errorf("Row %d: %f below the clamp floor", i, f)
			}
		}
	})
}

// TestPartialFailure tests column-granular error isolation
func TestPartialFailure(t *testing.T) {
	engine := newTestEngine(t)

	ds := dataset.New("test")
	ds.AddColumn("nome", []dataset.Value{dataset.String("Ana Silva")})
	ds.AddColumn("observacao", []dataset.Value{dataset.String("texto livre")})

	out, report, err := engine.Apply(ds, []Spec{
		{Column: "nome", Method: Mask{}},
		// Noise on a string column fails at transform time, not validation
		{Column: "observacao", Method: Noise{Percentage: 0.1}},
	})
	if err != nil {
		t.Fatalf("Partial failure must not abort the batch: %v", err)
	}

	failed := report.FailedColumns()
	if len(failed) != 1 || failed[0] != "observacao" {
		t.Errorf("FailedColumns = %v, want [observacao]", failed)
	}

	// The healthy column was still processed
	if got := columnValues(t, out, "nome")[0].Text(); got != strings.Repeat("*", len("Ana Silva")) {
		t.Errorf("Masked name = %q", got)
	}
	// The failed column passes through unchanged
	if got := columnValues(t, out, "observacao")[0].Text(); got != "texto livre" {
		t.Errorf("Failed column mutated: %q", got)
	}
}

// TestConcurrentColumns tests that the worker pool matches sequential output
func TestConcurrentColumns(t *testing.T) {
	ds := dataset.New("test")
	ds.AddColumn("cpf", []dataset.Value{dataset.String("123.456.789-00")})
	ds.AddColumn("nome", []dataset.Value{dataset.String("Ana Silva")})
	ds.AddColumn("salario", []dataset.Value{dataset.Number(3500)})
	ds.AddColumn("email", []dataset.Value{dataset.String("ana@example.com")})

	specs := []Spec{
		{Column: "cpf", Method: Hash{TruncateLen: 12}},
		{Column: "nome", Method: Mask{VisiblePrefix: 1}},
		{Column: "salario", Method: Noise{Percentage: 0.1}},
		{Column: "email", Method: Tokenize{}},
	}

	sequential := NewEngine(Config{Salt: strongTestSalt(), Seed: 3, Workers: 1}, zap.NewNop())
	parallel := NewEngine(Config{Salt: strongTestSalt(), Seed: 3, Workers: 4}, zap.NewNop())

	outSeq, _, errSeq := sequential.Apply(ds, specs)
	outPar, _, errPar := parallel.Apply(ds, specs)
	if errSeq != nil || errPar != nil {
		t.Fatalf("Apply failed: %v / %v", errSeq, errPar)
	}

	for _, col := range []string{"cpf", "nome", "salario", "email"} {
		vs := columnValues(t, outSeq, col)
		vp := columnValues(t, outPar, col)
		for i := range vs {
			if vs[i].Text() != vp[i].Text() {
				t.Errorf("Column %s row %d: %q vs %q", col, i, vs[i].Text(), vp[i].Text())
			}
		}
	}
}

// TestMaskHelpers tests the convenience maskers for reports and logs
func TestMaskHelpers(t *testing.T) {
	t.Run("MaskCPF", func(t *testing.T) {
		if got := MaskCPF("529.982.247-25"); got != "529.***.***-25" {
			t.Errorf("MaskCPF = %q", got)
		}
		if got := MaskCPF("123"); got != "***.***.***-**" {
			t.Errorf("Malformed CPF should fully mask, got %q", got)
		}
	})

	t.Run("MaskEmail", func(t *testing.T) {
		if got := MaskEmail("joana@example.com"); got != "j****@example.com" {
			t.Errorf("MaskEmail = %q", got)
		}
		if got := MaskEmail("not-an-email"); got != "***@***.***" {
			t.Errorf("Malformed email should fully mask, got %q", got)
		}
	})

	t.Run("MaskPhone", func(t *testing.T) {
		if got := MaskPhone("(11) 91234-5678"); got != "(11) *****-****" {
			t.Errorf("MaskPhone = %q", got)
		}
	})
}
