// Package hl7path parses the location addresses reported by the Gazelle
// EVS validator into structured segment/field/component paths.
//
// Addresses use the HL7 v2 "shortpath" notation, optionally prefixed with
// the scheme emitted by the validator:
//
//	hl7/shortpath:SCH[1]-2[1].4
//	SCH[1]-20[1]
//	MSH-9
//
// Repetition indices and the component part are optional; both default to
// the first occurrence.
package hl7path

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrUnparseable is returned when an address does not match the
// segment-field[.component] grammar. Callers must treat such addresses as
// non-actionable and skip them.
var ErrUnparseable = errors.New("unparseable location address")

// Prefix is the address scheme emitted by the Gazelle validator.
const Prefix = "hl7/shortpath:"

// Path is a structured address inside an HL7 v2 message.
type Path struct {
	// Segment is the three-character segment name (e.g. "SCH").
	Segment string

	// SegmentRep is the 1-based segment repetition.
	SegmentRep int

	// Field is the 1-based field number within the segment.
	Field int

	// FieldRep is the 1-based field repetition.
	FieldRep int

	// Component is the 1-based component number, or 0 when the address
	// targets the whole field.
	Component int
}

// shortpathRe matches SEG[rep]-field[rep].component with optional
// repetition and component parts.
var shortpathRe = regexp.MustCompile(
	`^(?:hl7/shortpath:)?([A-Z][A-Z0-9]{2})(?:\[(\d+)\])?-(\d+)(?:\[(\d+)\])?(?:\.(\d+))?$`)

// Parse decodes a validator location address into a Path.
// Parsing is deterministic: the same address always yields the same Path.
func Parse(addr string) (Path, error) {
	m := shortpathRe.FindStringSubmatch(addr)
	if m == nil {
		return Path{}, fmt.Errorf("%w: %q", ErrUnparseable, addr)
	}

	p := Path{
		Segment:    m[1],
		SegmentRep: 1,
		FieldRep:   1,
	}

	var err error
	if p.Field, err = strconv.Atoi(m[3]); err != nil || p.Field < 1 {
		return Path{}, fmt.Errorf("%w: %q", ErrUnparseable, addr)
	}
	if m[2] != "" {
		if p.SegmentRep, err = strconv.Atoi(m[2]); err != nil || p.SegmentRep < 1 {
			return Path{}, fmt.Errorf("%w: %q", ErrUnparseable, addr)
		}
	}
	if m[4] != "" {
		if p.FieldRep, err = strconv.Atoi(m[4]); err != nil || p.FieldRep < 1 {
			return Path{}, fmt.Errorf("%w: %q", ErrUnparseable, addr)
		}
	}
	if m[5] != "" {
		if p.Component, err = strconv.Atoi(m[5]); err != nil || p.Component < 1 {
			return Path{}, fmt.Errorf("%w: %q", ErrUnparseable, addr)
		}
	}

	return p, nil
}

// String renders the path in shortpath notation without the scheme prefix.
func (p Path) String() string {
	s := fmt.Sprintf("%s[%d]-%d[%d]", p.Segment, p.SegmentRep, p.Field, p.FieldRep)
	if p.Component > 0 {
		s += fmt.Sprintf(".%d", p.Component)
	}
	return s
}

// FieldPath returns a copy of the path with the component part removed.
func (p Path) FieldPath() Path {
	p.Component = 0
	return p
}
