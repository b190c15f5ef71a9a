package rules

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gohl7/corrector/codetable"
	"github.com/gohl7/corrector/diagnostic"
	"github.com/gohl7/corrector/hl7msg"
	"github.com/gohl7/corrector/hl7path"
)

const testMessage = `<?xml version="1.0" encoding="utf-8"?>
<SIU_S12 xmlns="urn:hl7-org:v2xml">
  <MSH>
    <MSH.1>|</MSH.1>
    <MSH.10>3988215</MSH.10>
  </MSH>
  <SCH>
    <SCH.2>
      <EI.1>74043860</EI.1>
      <EI.2>AMNCH</EI.2>
      <EI.3>1049</EI.3>
      <EI.4>HIPEHOS</EI.4>
    </SCH.2>
    <SCH.6>
      <CE.1>D.N.A.</CE.1>
      <CE.2>D.N.A.</CE.2>
      <CE.3></CE.3>
    </SCH.6>
    <SCH.25>
      <CE.1>Cancelled</CE.1>
      <CE.2>Cancelled prior to starting</CE.2>
      <CE.3>WRONG</CE.3>
    </SCH.25>
  </SCH>
</SIU_S12>`

const testTables = `{
  "HL70301": {
    "name": "Universal ID Type",
    "codes": ["DNS", "GUID", "ISO", "L", "M", "UUID"],
    "preferred": ["L"]
  },
  "HL70278": {
    "name": "Filler Status Codes",
    "codes": ["Booked", "Cancelled", "Complete", "Pending"],
    "preferred": ["Pending"]
  },
  "HL70276": {
    "name": "Appointment Reason Codes",
    "codes": ["CHECKUP", "FOLLOWUP", "ROUTINE"],
    "preferred": ["ROUTINE"]
  }
}`

func testRegistry(t *testing.T) *codetable.Registry {
	t.Helper()
	r := codetable.NewRegistry()
	r.Load(strings.NewReader(testTables))
	return r
}

func codeDiag(location, value, table string) diagnostic.Diagnostic {
	return diagnostic.Diagnostic{
		Category: "Code Not Found",
		Severity: diagnostic.SeverityError,
		Priority: diagnostic.PriorityMandatory,
		Location: location,
		Description: "The value '" + value + "' at location " + location +
			" is not member of the value set [" + table + "]",
	}
}

func missingDiag(location, what string) diagnostic.Diagnostic {
	return diagnostic.Diagnostic{
		Category:    "Usage",
		Severity:    diagnostic.SeverityError,
		Priority:    diagnostic.PriorityMandatory,
		Location:    location,
		Description: "The required Field " + what + " is missing",
	}
}

func TestInvalidCodeCorrection(t *testing.T) {
	reg := testRegistry(t)
	e := New(reg)

	d := codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL70301")
	out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})

	if len(records) != 1 {
		t.Fatalf("got %d records; want 1: %+v", len(records), records)
	}
	rec := records[0]
	if rec.Rule != CategoryInvalidCode || rec.OldValue != "HIPEHOS" || rec.NewValue != "L" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Diagnostic != d.Description {
		t.Error("record does not carry the triggering diagnostic text")
	}
	if !bytes.Contains(out, []byte("<EI.4>L</EI.4>")) {
		t.Error("EI.4 not corrected")
	}
	if !reg.IsValid("HL70301", rec.NewValue) {
		t.Error("applied suggestion is not valid in its table")
	}

	// Anchored editing: the unrelated SCH.25 designator is untouched.
	if !bytes.Contains(out, []byte("<CE.3>WRONG</CE.3>")) {
		t.Error("unrelated content disturbed")
	}
}

func TestDesignatorCorrection(t *testing.T) {
	// SCH-25.1 holds "Cancelled", a valid HL70278 code; the defect is the
	// accompanying designator in CE.3.
	d := codeDiag("hl7/shortpath:SCH[1]-25[1].1", "Cancelled", "HL70278")

	t.Run("canonical strategy", func(t *testing.T) {
		e := New(testRegistry(t))
		out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})

		if len(records) != 1 {
			t.Fatalf("got %d records; want 1", len(records))
		}
		rec := records[0]
		if rec.OldValue != "WRONG" || rec.NewValue != "HL70278" {
			t.Errorf("record = %+v", rec)
		}
		if rec.Location != "SCH[1]-25[1].3" {
			t.Errorf("Location = %q; want the designator component", rec.Location)
		}
		if !bytes.Contains(out, []byte("<CE.3>HL70278</CE.3>")) {
			t.Error("designator not set to canonical table id")
		}
		// The valid code itself is never overwritten.
		if !bytes.Contains(out, []byte("<CE.1>Cancelled</CE.1>")) {
			t.Error("valid code was overwritten")
		}
	})

	t.Run("clear strategy", func(t *testing.T) {
		e := New(testRegistry(t), WithDesignatorStrategy(DesignatorClear))
		out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})

		if len(records) != 1 {
			t.Fatalf("got %d records; want 1", len(records))
		}
		if records[0].NewValue != "" {
			t.Errorf("NewValue = %q; want empty", records[0].NewValue)
		}
		if bytes.Contains(out, []byte("<CE.3>WRONG</CE.3>")) {
			t.Error("designator not cleared")
		}
		if !bytes.Contains(out, []byte("<CE.1>Cancelled</CE.1>")) {
			t.Error("valid code was overwritten")
		}
	})

	t.Run("idempotent once applied", func(t *testing.T) {
		e := New(testRegistry(t))
		out, _ := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		_, records := e.Apply(out, []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("second pass produced records: %+v", records)
		}
	})
}

func TestMissingFieldInsertion(t *testing.T) {
	e := New(testRegistry(t))

	d := missingDiag("hl7/shortpath:SCH[1]-20[1]", "SCH-20 (Entered By Person)")
	out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})

	if len(records) != 1 {
		t.Fatalf("got %d records; want 1: %+v", len(records), records)
	}
	if records[0].Rule != CategoryMissingField {
		t.Errorf("Rule = %q", records[0].Rule)
	}
	if !bytes.Contains(out, []byte("<SCH.20><XCN.1>UNKNOWN</XCN.1>")) {
		t.Errorf("SCH.20 not inserted:\n%s", out)
	}

	// Field ordering preserved: SCH.20 lands after SCH.6 and SCH.2.
	s := string(out)
	if strings.Index(s, "<SCH.20>") < strings.Index(s, "<SCH.6>") {
		t.Error("SCH.20 inserted out of order")
	}
	if strings.Index(s, "<SCH.20>") > strings.Index(s, "<SCH.25>") {
		t.Error("SCH.20 inserted after SCH.25")
	}

	// Second pass is a no-op because the field now exists.
	_, records = e.Apply(out, []diagnostic.Diagnostic{d})
	if len(records) != 0 {
		t.Errorf("second pass produced records: %+v", records)
	}
}

func TestMissingComponentInsertion(t *testing.T) {
	e := New(testRegistry(t))

	d := diagnostic.Diagnostic{
		Category:    "Usage",
		Severity:    diagnostic.SeverityError,
		Priority:    diagnostic.PriorityMandatory,
		Location:    "hl7/shortpath:SCH[1]-6[1].3",
		Description: "The required Component SCH-6.3 (name of coding system) is empty",
	}
	out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})

	if len(records) != 1 {
		t.Fatalf("got %d records; want 1: %+v", len(records), records)
	}
	if records[0].Rule != CategoryMissingComponent || records[0].NewValue != "HL70276" {
		t.Errorf("record = %+v", records[0])
	}
	if !bytes.Contains(out, []byte("<CE.3>HL70276</CE.3>")) {
		t.Error("SCH-6.3 not filled")
	}
}

func TestRuleNoOps(t *testing.T) {
	e := New(testRegistry(t))

	t.Run("stale literal", func(t *testing.T) {
		// The message has HIPEHOS at SCH-2.4, not OLDVALUE.
		d := codeDiag("hl7/shortpath:SCH[1]-2[1].4", "OLDVALUE", "HL70301")
		out, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
		if !bytes.Contains(out, []byte("<EI.4>HIPEHOS</EI.4>")) {
			t.Error("message modified on stale diagnostic")
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		d := codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL79999")
		_, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
	})

	t.Run("unparseable address", func(t *testing.T) {
		d := codeDiag("not-an-address", "HIPEHOS", "HL70301")
		_, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
	})

	t.Run("missing field outside allow-list", func(t *testing.T) {
		d := missingDiag("hl7/shortpath:SCH[1]-16[1]", "SCH-16 (Filler Contact Person)")
		_, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
	})

	t.Run("absent segment", func(t *testing.T) {
		d := codeDiag("hl7/shortpath:OBX[1]-5[1].1", "X", "HL70301")
		_, records := e.Apply([]byte(testMessage), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
	})

	t.Run("unparseable message", func(t *testing.T) {
		d := codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL70301")
		out, records := e.Apply([]byte(`<?xml version="1.0"?><broken`), []diagnostic.Diagnostic{d})
		if len(records) != 0 {
			t.Errorf("records = %+v; want none", records)
		}
		if !bytes.Contains(out, []byte("<broken")) {
			t.Error("input bytes lost")
		}
	})
}

func TestNormalizationRecords(t *testing.T) {
	e := New(testRegistry(t))

	raw := append([]byte("\ufeff"), []byte(`<SIU_S12 xmlns="urn:hl7-org:v2xml"><MSH><MSH.1>|</MSH.1></MSH></SIU_S12>`)...)
	out, records := e.Apply(raw, nil)

	if len(records) != 2 {
		t.Fatalf("got %d records; want 2 (bom + declaration): %+v", len(records), records)
	}
	for _, rec := range records {
		if rec.Rule != CategoryNormalization {
			t.Errorf("Rule = %q; want normalization", rec.Rule)
		}
	}

	// Idempotence: a second pass over normalized output yields no records.
	_, records = e.Apply(out, nil)
	if len(records) != 0 {
		t.Errorf("second normalization pass produced records: %+v", records)
	}
}

func TestApplyDeterminism(t *testing.T) {
	diags := []diagnostic.Diagnostic{
		codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL70301"),
		missingDiag("hl7/shortpath:SCH[1]-20[1]", "SCH-20 (Entered By Person)"),
	}

	e := New(testRegistry(t))
	out1, recs1 := e.Apply([]byte(testMessage), diags)
	out2, recs2 := e.Apply([]byte(testMessage), diags)

	if !bytes.Equal(out1, out2) {
		t.Error("outputs differ across identical runs")
	}
	if len(recs1) != len(recs2) {
		t.Fatalf("record counts differ: %d vs %d", len(recs1), len(recs2))
	}
	for i := range recs1 {
		if recs1[i] != recs2[i] {
			t.Errorf("record %d differs: %+v vs %+v", i, recs1[i], recs2[i])
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := New(testRegistry(t))
	in := []byte(testMessage)
	orig := append([]byte(nil), in...)

	d := codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL70301")
	e.Apply(in, []diagnostic.Diagnostic{d})

	if !bytes.Equal(in, orig) {
		t.Error("input slice was mutated")
	}
}

func TestPlaceholderKey(t *testing.T) {
	p, _ := hl7path.Parse("SCH[1]-6[1].3")
	if got := placeholderKey(p); got != "SCH-6.3" {
		t.Errorf("placeholderKey = %q", got)
	}
	p, _ = hl7path.Parse("SCH-20")
	if got := placeholderKey(p); got != "SCH-20" {
		t.Errorf("placeholderKey = %q", got)
	}
}

// Reparse guards against the engine producing output the model itself
// cannot read back.
func TestOutputReparses(t *testing.T) {
	e := New(testRegistry(t))
	diags := []diagnostic.Diagnostic{
		codeDiag("hl7/shortpath:SCH[1]-2[1].4", "HIPEHOS", "HL70301"),
		missingDiag("hl7/shortpath:SCH[1]-20[1]", "SCH-20 (Entered By Person)"),
	}
	out, _ := e.Apply([]byte(testMessage), diags)
	if _, err := hl7msg.Parse(out); err != nil {
		t.Fatalf("corrected output does not reparse: %v", err)
	}
}
