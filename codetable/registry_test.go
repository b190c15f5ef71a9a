package codetable

import (
	"strings"
	"testing"
)

const testDefs = `{
  "HL70301": {
    "name": "Universal ID Type",
    "description": "Universal ID type",
    "codes": ["DNS", "GUID", "ISO", "L", "M", "UUID"],
    "preferred": ["L"]
  },
  "HL70070": {
    "name": "Specimen Source Codes",
    "codes": ["BLD", "SER", "UR", "OTH"],
    "preferred": ["SER", "BLD", "OTH"]
  },
  "HL70999": {
    "name": "Empty Table",
    "codes": []
  }
}`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Load(strings.NewReader(testDefs))
	if r.Count() != 3 {
		t.Fatalf("Count() = %d; want 3", r.Count())
	}
	return r
}

func TestIsValid(t *testing.T) {
	r := loadTestRegistry(t)

	t.Run("member code", func(t *testing.T) {
		if !r.IsValid("HL70301", "L") {
			t.Error("IsValid(HL70301, L) = false")
		}
	})
	t.Run("non-member code", func(t *testing.T) {
		if r.IsValid("HL70301", "HIPEHOS") {
			t.Error("IsValid(HL70301, HIPEHOS) = true")
		}
	})
	t.Run("unknown table is never valid", func(t *testing.T) {
		if r.IsValid("HL70042", "L") {
			t.Error("unknown table treated as valid")
		}
	})
	t.Run("empty table", func(t *testing.T) {
		if r.IsValid("HL70999", "X") {
			t.Error("empty table treated as valid")
		}
	})
}

func TestSuggestReplacement(t *testing.T) {
	r := loadTestRegistry(t)

	t.Run("identifier table prefers local", func(t *testing.T) {
		got, ok := r.SuggestReplacement("HL70301", "HIPEHOS")
		if !ok || got != "L" {
			t.Errorf("SuggestReplacement = %q, %v; want L, true", got, ok)
		}
	})

	t.Run("categorical table preference order", func(t *testing.T) {
		got, ok := r.SuggestReplacement("HL70070", "ACNE")
		if !ok || got != "SER" {
			t.Errorf("SuggestReplacement = %q, %v; want SER, true", got, ok)
		}
	})

	t.Run("lexicographic fallback without preferences", func(t *testing.T) {
		reg := NewRegistry()
		reg.Load(strings.NewReader(`{"HL70001": {"name": "Sex", "codes": ["M", "F", "U"]}}`))
		got, ok := reg.SuggestReplacement("HL70001", "X")
		if !ok || got != "F" {
			t.Errorf("SuggestReplacement = %q, %v; want F, true", got, ok)
		}
	})

	t.Run("empty table yields nothing", func(t *testing.T) {
		if _, ok := r.SuggestReplacement("HL70999", "X"); ok {
			t.Error("SuggestReplacement on empty table returned ok")
		}
	})

	t.Run("absent table yields nothing", func(t *testing.T) {
		if _, ok := r.SuggestReplacement("HL70042", "X"); ok {
			t.Error("SuggestReplacement on absent table returned ok")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first, _ := r.SuggestReplacement("HL70070", "ACNE")
		for i := 0; i < 20; i++ {
			got, _ := r.SuggestReplacement("HL70070", "ACNE")
			if got != first {
				t.Fatalf("suggestion changed between calls: %q != %q", got, first)
			}
		}
	})
}

func TestTableAccessors(t *testing.T) {
	r := loadTestRegistry(t)

	tab := r.Table("HL70301")
	if tab == nil {
		t.Fatal("Table(HL70301) = nil")
	}
	if tab.Name != "Universal ID Type" {
		t.Errorf("Name = %q", tab.Name)
	}
	codes := tab.Codes()
	if len(codes) != 6 || codes[0] != "DNS" {
		t.Errorf("Codes() = %v", codes)
	}

	ids := r.TableIDs()
	want := []string{"HL70070", "HL70301", "HL70999"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("TableIDs() = %v; want %v", ids, want)
		}
	}
}
