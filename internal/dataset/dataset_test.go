package dataset

import (
	"path/filepath"
	"testing"
)

// TestValue tests cell typing and conversions
func TestValue(t *testing.T) {
	t.Run("Null", func(t *testing.T) {
		v := Null()
		if !v.IsNull() {
			t.Error("Null value not reported as null")
		}
		if v.Text() != "" {
			t.Errorf("Null text should be empty, got %q", v.Text())
		}
		if _, ok := v.Float(); ok {
			t.Error("Null should not convert to float")
		}
	})

	t.Run("String", func(t *testing.T) {
		v := String("123.456.789-00")
		if v.Kind() != KindString {
			t.Errorf("Expected string kind, got %v", v.Kind())
		}
		if v.Text() != "123.456.789-00" {
			t.Errorf("Unexpected text: %q", v.Text())
		}
		if _, ok := v.Float(); ok {
			t.Error("Non-numeric string should not convert to float")
		}
	})

	t.Run("NumericString", func(t *testing.T) {
		v := String("3500.50")
		f, ok := v.Float()
		if !ok {
			t.Fatal("Numeric string should convert to float")
		}
		if f != 3500.50 {
			t.Errorf("Expected 3500.50, got %f", f)
		}
	})

	t.Run("Number", func(t *testing.T) {
		v := Number(42)
		if v.Kind() != KindNumber {
			t.Errorf("Expected number kind, got %v", v.Kind())
		}
		if v.Text() != "42" {
			t.Errorf("Expected text 42, got %q", v.Text())
		}
	})
}

// TestColumnKind tests kind inference over mixed contents
func TestColumnKind(t *testing.T) {
	tests := []struct {
		name   string
		values []Value
		want   ColumnKind
	}{
		{"empty", []Value{Null(), Null()}, ColumnEmpty},
		{"strings", []Value{String("a"), Null(), String("b")}, ColumnString},
		{"numbers", []Value{Number(1), Number(2)}, ColumnNumeric},
		{"mixed", []Value{Number(1), String("a")}, ColumnMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := &Column{Name: tt.name, Values: tt.values}
			if got := col.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDataset tests column management and copy-on-write semantics
func TestDataset(t *testing.T) {
	t.Run("AddColumn", func(t *testing.T) {
		ds := New("test")
		if err := ds.AddColumn("a", []Value{String("x"), String("y")}); err != nil {
			t.Fatalf("AddColumn failed: %v", err)
		}
		if err := ds.AddColumn("a", []Value{String("z"), String("w")}); err == nil {
			t.Error("Duplicate column name should be rejected")
		}
		if err := ds.AddColumn("b", []Value{String("z")}); err == nil {
			t.Error("Mismatched column length should be rejected")
		}
		if ds.RowCount() != 2 {
			t.Errorf("Expected 2 rows, got %d", ds.RowCount())
		}
	})

	t.Run("WithColumn", func(t *testing.T) {
		ds := New("test")
		ds.AddColumn("a", []Value{String("x")})
		ds.AddColumn("b", []Value{String("y")})

		replaced, err := ds.WithColumn("a", []Value{String("masked")})
		if err != nil {
			t.Fatalf("WithColumn failed: %v", err)
		}

		// Original is untouched
		orig, _ := ds.Column("a")
		if orig.Values[0].Text() != "x" {
			t.Errorf("Original column mutated: %q", orig.Values[0].Text())
		}
		repl, _ := replaced.Column("a")
		if repl.Values[0].Text() != "masked" {
			t.Errorf("Replacement not applied: %q", repl.Values[0].Text())
		}

		if _, err := ds.WithColumn("missing", []Value{String("x")}); err == nil {
			t.Error("WithColumn on unknown column should fail")
		}
	})
}

// TestDetectFileFormat tests extension-based format detection
func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		file string
		want FileFormat
	}{
		{"data.csv", FormatCSV},
		{"data.parquet", FormatParquet},
		{"data.json", FormatJSON},
		{"data.jsonl", FormatJSON},
		{"data.PARQUET", FormatParquet},
		{"data", FormatCSV},
	}

	for _, tt := range tests {
		if got := DetectFileFormat(tt.file); got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %v, want %v", tt.file, got, tt.want)
		}
	}
}

// TestCSVRoundTrip tests that write-then-load preserves the dataset
func TestCSVRoundTrip(t *testing.T) {
	ds := New("roundtrip")
	ds.AddColumn("nome", []Value{String("Ana Silva"), String("Bruno Souza"), Null()})
	ds.AddColumn("cpf", []Value{String("123.456.789-00"), Null(), String("987.654.321-00")})
	ds.AddColumn("salario", []Value{Number(3500.5), Number(4200), Null()})

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(ds, path); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.RowCount() != 3 {
		t.Fatalf("Expected 3 rows, got %d", loaded.RowCount())
	}
	if len(loaded.ColumnNames()) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(loaded.ColumnNames()))
	}

	cpf, _ := loaded.Column("cpf")
	if cpf.Values[0].Text() != "123.456.789-00" {
		t.Errorf("CPF not preserved: %q", cpf.Values[0].Text())
	}
	if !cpf.Values[1].IsNull() {
		t.Error("Empty cell should load as null")
	}

	salario, _ := loaded.Column("salario")
	if salario.Kind() != ColumnNumeric {
		t.Errorf("Numeric column not detected after round trip: %v", salario.Kind())
	}
	f, _ := salario.Values[0].Float()
	if f != 3500.5 {
		t.Errorf("Expected 3500.5, got %f", f)
	}
}

// TestGenerateSample tests the synthetic dataset generator
func TestGenerateSample(t *testing.T) {
	t.Run("Shape", func(t *testing.T) {
		ds := GenerateSample(50, 1)
		if ds.RowCount() != 50 {
			t.Errorf("Expected 50 rows, got %d", ds.RowCount())
		}
		for _, col := range []string{"nome_completo", "cpf", "email", "telefone", "salario"} {
			if _, ok := ds.Column(col); !ok {
				t.Errorf("Missing expected column %q", col)
			}
		}
	})

	t.Run("Reproducible", func(t *testing.T) {
		a := GenerateSample(10, 42)
		b := GenerateSample(10, 42)

		colA, _ := a.Column("cpf")
		colB, _ := b.Column("cpf")
		for i := range colA.Values {
			if colA.Values[i].Text() != colB.Values[i].Text() {
				t.Fatalf("Same seed produced different CPFs at row %d", i)
			}
		}
	})

	t.Run("SalaryIsNumeric", func(t *testing.T) {
		ds := GenerateSample(20, 7)
		col, _ := ds.Column("salario")
		if col.Kind() != ColumnNumeric {
			t.Errorf("salario should be numeric, got %v", col.Kind())
		}
	})
}
