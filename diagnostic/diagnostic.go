// Package diagnostic defines the nonconformities reported by the external
// validator, aligned with the Gazelle EVS constraint report.
package diagnostic

import "regexp"

// Severity is the severity reported for a constraint.
type Severity string

// Severity constants as emitted by the validator.
const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Priority is the conformance priority of a constraint.
type Priority string

// Priority constants as emitted by the validator.
const (
	PriorityMandatory   Priority = "MANDATORY"
	PriorityRecommended Priority = "RECOMMENDED"
	PriorityPermitted   Priority = "PERMITTED"
)

// Diagnostic is one reported nonconformity. The offending literal value
// and the referenced value-set identifier are not structured fields in the
// report; they are embedded in the free-text Description and extracted by
// the accessor methods.
type Diagnostic struct {
	// Category is the constraint type reported by the validator,
	// e.g. "Code Not Found" or "Usage".
	Category string

	// Severity of the finding.
	Severity Severity

	// Priority of the violated constraint.
	Priority Priority

	// Location is the address of the finding inside the validated
	// message, in shortpath notation.
	Location string

	// Description is the free-text explanation of the finding.
	Description string
}

// Blocking reports whether the diagnostic prevents the message from
// passing validation. Only mandatory errors do; recommended warnings are
// advisory.
func (d Diagnostic) Blocking() bool {
	return d.Priority == PriorityMandatory && d.Severity == SeverityError
}

// Prose patterns used by the validator's diagnostic descriptions, e.g.
//
//	The value 'HIPEHOS' at location Component SCH-2.4 (universal ID type)
//	is not member of the value set [HL70301]
//	The required Field SCH-20 (Entered By Person) is missing
var (
	offendingValueRe = regexp.MustCompile(`[Vv]alue '([^']*)'`)
	valueSetRe       = regexp.MustCompile(`value set \[([A-Za-z0-9]+)\]`)
	missingRe        = regexp.MustCompile(`required (?:Field|Component|field|component) .* is (?:missing|empty)`)
	emptyRe          = regexp.MustCompile(`is (?:empty|present but empty)`)
)

// OffendingValue extracts the literal value the validator quoted in the
// description. ok is false when no quoted value is present.
func (d Diagnostic) OffendingValue() (string, bool) {
	m := offendingValueRe.FindStringSubmatch(d.Description)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValueSet extracts the value-set (code table) identifier referenced by
// the description. ok is false when none is referenced.
func (d Diagnostic) ValueSet() (string, bool) {
	m := valueSetRe.FindStringSubmatch(d.Description)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ReportsCodeMembership reports whether the diagnostic describes a value
// rejected against a value set.
func (d Diagnostic) ReportsCodeMembership() bool {
	_, ok := d.ValueSet()
	return ok
}

// ReportsMissing reports whether the diagnostic describes an absent or
// empty required field or component.
func (d Diagnostic) ReportsMissing() bool {
	return missingRe.MatchString(d.Description) || emptyRe.MatchString(d.Description)
}

// Blocking filters a diagnostic list down to the entries that block a
// pass, preserving order.
func Blocking(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Blocking() {
			out = append(out, d)
		}
	}
	return out
}

// Advisory filters a diagnostic list down to the non-blocking entries,
// preserving order.
func Advisory(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if !d.Blocking() {
			out = append(out, d)
		}
	}
	return out
}
