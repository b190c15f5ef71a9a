// Package rules implements the correction rule engine: a pure
// transformation from (message bytes, diagnostics) to (new message bytes,
// applied correction records).
//
// Rules run in a single deterministic pass and are individually
// idempotent. A rule whose target cannot be located in the current message
// (the diagnostic went stale after an earlier correction) is a no-op; rule
// failures never abort the pass and never touch unrelated content.
package rules

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gohl7/corrector/codetable"
	"github.com/gohl7/corrector/diagnostic"
	"github.com/gohl7/corrector/hl7msg"
	"github.com/gohl7/corrector/hl7path"
)

// Category identifies the rule that produced a correction.
type Category string

// Rule categories.
const (
	CategoryNormalization    Category = "structural-normalization"
	CategoryInvalidCode      Category = "invalid-code"
	CategoryMissingField     Category = "missing-field"
	CategoryMissingComponent Category = "missing-component"
)

// Record is one applied correction. Every record traces to exactly one
// diagnostic, except normalization records, whose Diagnostic field carries
// the normalization description instead.
type Record struct {
	Rule       Category
	Location   string
	OldValue   string
	NewValue   string
	Diagnostic string
}

// DesignatorStrategy selects the replacement written to a coding-system
// designator component when the coded value itself is valid and only the
// designator is defective.
type DesignatorStrategy string

// Designator strategies.
const (
	// DesignatorCanonical sets the designator to the canonical table
	// identifier referenced by the diagnostic.
	DesignatorCanonical DesignatorStrategy = "canonical"

	// DesignatorClear empties the designator component.
	DesignatorClear DesignatorStrategy = "clear"
)

// designatorComponent is the coding-system designator position within
// coded fields (CE.3, "name of coding system").
const designatorComponent = 3

// Engine applies correction rules against a code table registry.
// The zero value is not usable; construct with New.
type Engine struct {
	registry     *codetable.Registry
	strategy     DesignatorStrategy
	placeholders map[string]string
}

// Option configures the Engine.
type Option func(*Engine)

// WithDesignatorStrategy selects the designator correction strategy.
func WithDesignatorStrategy(s DesignatorStrategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithPlaceholders replaces the allow-list of insertable placeholders.
// Keys address a field ("SCH-20") or a component ("SCH-6.3"); field values
// are v2.xml fragments, component values are scalar code strings.
func WithPlaceholders(p map[string]string) Option {
	return func(e *Engine) {
		e.placeholders = p
	}
}

// New creates an Engine backed by the given registry.
func New(registry *codetable.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		strategy:     DesignatorCanonical,
		placeholders: DefaultPlaceholders(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalize applies the unconditional structural normalization rules and
// reports them as correction records. It is safe to run repeatedly.
func Normalize(message []byte) ([]byte, []Record) {
	out, changes := hl7msg.Normalize(message)
	records := make([]Record, 0, len(changes))
	for _, ch := range changes {
		records = append(records, Record{
			Rule:       CategoryNormalization,
			Location:   "message",
			Diagnostic: ch.Description,
		})
	}
	return out, records
}

// Apply runs one correction pass. It returns the corrected message bytes
// and the records of every correction applied; when nothing applies the
// input bytes come back unchanged. Apply never modifies its inputs and has
// no side effects beyond the returned values.
func (e *Engine) Apply(message []byte, diags []diagnostic.Diagnostic) ([]byte, []Record) {
	out, records := Normalize(message)

	doc, err := hl7msg.Parse(out)
	if err != nil {
		logrus.WithError(err).Warn("rules: message not parseable, structured rules skipped")
		return out, records
	}

	edited := false
	for _, d := range diags {
		path, err := hl7path.Parse(d.Location)
		if err != nil {
			logrus.WithField("location", d.Location).
				Debug("rules: unparseable diagnostic address skipped")
			continue
		}

		var rec *Record
		switch {
		case d.ReportsCodeMembership():
			rec = e.applyCodeRule(doc, path, d)
		case d.ReportsMissing():
			rec = e.applyInsertionRule(doc, path, d)
		}
		if rec != nil {
			records = append(records, *rec)
			edited = true
		}
	}

	if edited {
		out = doc.Bytes()
	}
	return out, records
}

// applyCodeRule handles "value not permitted in value set X" diagnostics.
// When the addressed value is genuinely invalid it is replaced with the
// registry's suggestion. When the value is itself valid, the defect is its
// accompanying coding-system designator; only the designator is corrected,
// never the code, since overwriting a valid code would be a regression.
func (e *Engine) applyCodeRule(doc *hl7msg.Message, path hl7path.Path, d diagnostic.Diagnostic) *Record {
	table, _ := d.ValueSet()
	literal, ok := d.OffendingValue()
	if !ok {
		return nil
	}

	current, ok := doc.Value(path)
	if !ok || current != literal {
		// Stale diagnostic: the message changed since it was reported.
		return nil
	}

	if current != "" && e.registry.IsValid(table, current) {
		return e.correctDesignator(doc, path, table, d)
	}

	replacement, ok := e.registry.SuggestReplacement(table, current)
	if !ok {
		// No registry entry for the referenced table.
		return nil
	}
	if !doc.SetValue(path, replacement) {
		return nil
	}
	return &Record{
		Rule:       CategoryInvalidCode,
		Location:   path.String(),
		OldValue:   current,
		NewValue:   replacement,
		Diagnostic: d.Description,
	}
}

func (e *Engine) correctDesignator(doc *hl7msg.Message, path hl7path.Path, table string, d diagnostic.Diagnostic) *Record {
	desig := path
	desig.Component = designatorComponent

	want := ""
	if e.strategy == DesignatorCanonical {
		want = table
	}

	old, _ := doc.Value(desig)
	if old == want {
		return nil
	}
	if !doc.SetValue(desig, want) {
		return nil
	}
	return &Record{
		Rule:       CategoryInvalidCode,
		Location:   desig.String(),
		OldValue:   old,
		NewValue:   want,
		Diagnostic: d.Description,
	}
}

// applyInsertionRule handles absent or empty required fields and
// components. Only locations on the placeholder allow-list are filled;
// everything else stays outstanding for human follow-up.
func (e *Engine) applyInsertionRule(doc *hl7msg.Message, path hl7path.Path, d diagnostic.Diagnostic) *Record {
	key := placeholderKey(path)
	placeholder, ok := e.placeholders[key]
	if !ok {
		return nil
	}

	if path.Component > 0 {
		return e.insertComponent(doc, path, placeholder, d)
	}
	return e.insertField(doc, path, placeholder, d)
}

func (e *Engine) insertComponent(doc *hl7msg.Message, path hl7path.Path, value string, d diagnostic.Diagnostic) *Record {
	field := doc.ResolveField(path)
	if field == nil {
		// Component insertion is scoped to an already-present field.
		return nil
	}
	if current, ok := doc.Value(path); ok && current != "" {
		return nil
	}
	if !doc.SetValue(path, value) {
		return nil
	}
	return &Record{
		Rule:       CategoryMissingComponent,
		Location:   path.String(),
		NewValue:   value,
		Diagnostic: d.Description,
	}
}

func (e *Engine) insertField(doc *hl7msg.Message, path hl7path.Path, fragment string, d diagnostic.Diagnostic) *Record {
	seg := doc.Segment(path.Segment, path.SegmentRep)
	if seg == nil {
		return nil
	}
	if seg.Field(path.Field, 1) != nil {
		// Already present: stale diagnostic or a previous pass filled it.
		return nil
	}

	frag, err := hl7msg.Parse([]byte(fragment))
	if err != nil {
		logrus.WithError(err).WithField("placeholder", placeholderKey(path)).
			Warn("rules: malformed placeholder fragment skipped")
		return nil
	}
	if frag.Root.Name != fmt.Sprintf("%s.%d", path.Segment, path.Field) {
		logrus.WithField("placeholder", placeholderKey(path)).
			Warn("rules: placeholder fragment does not match its location")
		return nil
	}

	seg.InsertField(frag.Root)
	return &Record{
		Rule:       CategoryMissingField,
		Location:   path.String(),
		NewValue:   strings.TrimSpace(fragment),
		Diagnostic: d.Description,
	}
}

func placeholderKey(p hl7path.Path) string {
	key := fmt.Sprintf("%s-%d", p.Segment, p.Field)
	if p.Component > 0 {
		key = fmt.Sprintf("%s.%d", key, p.Component)
	}
	return key
}
