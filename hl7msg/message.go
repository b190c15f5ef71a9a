// Package hl7msg provides an addressable document model for HL7 v2.xml
// messages (urn:hl7-org:v2xml encoding).
//
// A message parses into a tree of elements: the root message element
// contains segments (directly or inside group elements such as
// SIU_S12.PATIENT), segments contain fields named SEG.n, and fields
// contain typed components named like EI.4 or CE.3. Diagnostic locations
// resolve to a specific node handle, mutations go through that handle, and
// the tree re-serializes without disturbing unrelated content.
package hl7msg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gohl7/corrector/hl7path"
)

// Node is a member of the document tree: either an *Element or a Text.
type Node interface {
	writeTo(b *strings.Builder)
}

// Element is a single XML element with its attributes and ordered children.
type Element struct {
	Name     string
	Attr     []xml.Attr
	Children []Node
}

// Text is a run of character data between elements.
type Text struct {
	Value string
}

// Message is a parsed HL7 v2.xml document.
type Message struct {
	Root *Element
}

// Parse decodes message bytes into a Message. A leading byte-order mark is
// tolerated. The input must contain exactly one root element.
func Parse(data []byte) (*Message, error) {
	data = bytes.TrimPrefix(data, []byte(bomUTF8))

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no root element found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			// Skip the declaration, comments and whitespace before the root.
			continue
		}

		root, err := parseElement(dec, start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}
		return &Message{Root: root}, nil
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{
		Name: start.Name.Local,
		Attr: copyAttrs(start.Attr),
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.EndElement:
			return el, nil
		case xml.CharData:
			el.Children = append(el.Children, Text{Value: string(t)})
		default:
			// Comments and processing instructions inside the message body
			// carry no HL7 content; drop them.
		}
	}
}

func copyAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]xml.Attr, len(attrs))
	copy(out, attrs)
	return out
}

// Bytes serializes the message back to v2.xml, prefixed with an XML
// declaration.
func (m *Message) Bytes() []byte {
	var b strings.Builder
	b.WriteString(xmlDeclaration)
	b.WriteString("\n")
	m.Root.writeTo(&b)
	return []byte(b.String())
}

// Escaping is deliberately minimal so that whitespace text nodes between
// elements round-trip byte for byte; encoding/xml's EscapeText would turn
// newlines and tabs into character references.
var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
)

func (e *Element) writeTo(b *strings.Builder) {
	b.WriteString("<")
	b.WriteString(e.Name)
	for _, a := range e.Attr {
		b.WriteString(" ")
		b.WriteString(attrName(a.Name))
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Value))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	for _, c := range e.Children {
		c.writeTo(b)
	}
	b.WriteString("</")
	b.WriteString(e.Name)
	b.WriteString(">")
}

func (t Text) writeTo(b *strings.Builder) {
	b.WriteString(textEscaper.Replace(t.Value))
}

func attrName(n xml.Name) string {
	switch {
	case n.Space == "xmlns":
		return "xmlns:" + n.Local
	case n.Space != "":
		return n.Space + ":" + n.Local
	default:
		return n.Local
	}
}

// Type returns the message structure name taken from the root element,
// e.g. "SIU_S12".
func (m *Message) Type() string {
	return m.Root.Name
}

// MessageType maps the root element of a serialized message to its HL7
// message type code (e.g. "SIU_S12" -> "SIU^S12"). ok is false when the
// content is not parseable or the root is not a recognized structure name.
func MessageType(data []byte) (string, bool) {
	msg, err := Parse(data)
	if err != nil {
		return "", false
	}
	name := msg.Type()
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "^" + parts[1], true
}

// Text returns the concatenated character data directly under the element,
// with surrounding whitespace trimmed.
func (e *Element) Text() string {
	var b strings.Builder
	for _, c := range e.Children {
		if t, ok := c.(Text); ok {
			b.WriteString(t.Value)
		}
	}
	return strings.TrimSpace(b.String())
}

// SetText replaces the element's content with a single text node.
func (e *Element) SetText(value string) {
	e.Children = []Node{Text{Value: value}}
}

// Elements returns the element children in document order.
func (e *Element) Elements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// Segment finds the rep-th occurrence (1-based) of the named segment,
// searching through group elements depth-first. Returns nil when absent.
func (m *Message) Segment(name string, rep int) *Element {
	if rep < 1 {
		rep = 1
	}
	count := 0
	return findSegment(m.Root, name, rep, &count)
}

func findSegment(el *Element, name string, rep int, count *int) *Element {
	for _, child := range el.Elements() {
		if child.Name == name {
			*count++
			if *count == rep {
				return child
			}
			continue
		}
		// Group elements are named like SIU_S12.PATIENT; segments never
		// nest inside other segments, so only descend into groups.
		if strings.Contains(child.Name, ".") || strings.Contains(child.Name, "_") {
			if found := findSegment(child, name, rep, count); found != nil {
				return found
			}
		}
	}
	return nil
}

// Field finds the rep-th occurrence of field n inside a segment element.
// Fields are elements named SEG.n. Returns nil when absent.
func (e *Element) Field(n, rep int) *Element {
	if rep < 1 {
		rep = 1
	}
	want := e.Name + "." + strconv.Itoa(n)
	count := 0
	for _, child := range e.Elements() {
		if child.Name == want {
			count++
			if count == rep {
				return child
			}
		}
	}
	return nil
}

// Component finds component n inside a field element. Components are the
// typed children of a field, named like EI.4 or CE.3; the type prefix
// varies by field, so matching goes by the numeric suffix. Returns nil
// when absent.
func (e *Element) Component(n int) *Element {
	suffix := "." + strconv.Itoa(n)
	for _, child := range e.Elements() {
		if strings.HasSuffix(child.Name, suffix) && !strings.Contains(strings.TrimSuffix(child.Name, suffix), ".") {
			return child
		}
	}
	return nil
}

// ComponentType reports the data type prefix of the field's existing
// components (e.g. "CE" for children CE.1, CE.2). ok is false when the
// field has no typed components to infer from.
func (e *Element) ComponentType() (string, bool) {
	for _, child := range e.Elements() {
		if idx := strings.LastIndex(child.Name, "."); idx > 0 {
			return child.Name[:idx], true
		}
	}
	return "", false
}

// Resolve walks a parsed location path to its node. When the path carries
// a component number the component element is returned, otherwise the
// field element. Returns nil when any step of the path is absent.
func (m *Message) Resolve(p hl7path.Path) *Element {
	seg := m.Segment(p.Segment, p.SegmentRep)
	if seg == nil {
		return nil
	}
	field := seg.Field(p.Field, p.FieldRep)
	if field == nil {
		return nil
	}
	if p.Component == 0 {
		return field
	}
	return field.Component(p.Component)
}

// ResolveField walks a location path to its field element, ignoring any
// component part. Returns nil when the segment or field is absent.
func (m *Message) ResolveField(p hl7path.Path) *Element {
	seg := m.Segment(p.Segment, p.SegmentRep)
	if seg == nil {
		return nil
	}
	return seg.Field(p.Field, p.FieldRep)
}

// Value reads the scalar value addressed by the path. For a field without
// typed components this is the field text itself; for component paths it
// is the component text. ok is false when the node is absent.
func (m *Message) Value(p hl7path.Path) (string, bool) {
	node := m.Resolve(p)
	if node == nil {
		return "", false
	}
	return node.Text(), true
}

// SetValue overwrites the scalar value addressed by the path. When the
// path names a component that is absent from a present field, the
// component element is created, typed after its siblings. Returns false
// when the target cannot be located or typed.
func (m *Message) SetValue(p hl7path.Path, value string) bool {
	if p.Component == 0 {
		field := m.ResolveField(p)
		if field == nil {
			return false
		}
		field.SetText(value)
		return true
	}

	field := m.ResolveField(p)
	if field == nil {
		return false
	}
	if comp := field.Component(p.Component); comp != nil {
		comp.SetText(value)
		return true
	}

	prefix, ok := field.ComponentType()
	if !ok {
		return false
	}
	comp := &Element{Name: prefix + "." + strconv.Itoa(p.Component)}
	comp.SetText(value)
	field.insertComponent(comp, p.Component)
	return true
}

// insertComponent places a new component in numeric order among its
// siblings, after any leading text node used for indentation.
func (e *Element) insertComponent(comp *Element, n int) {
	e.insertOrdered(comp, n)
}

// InsertField adds a pre-built field element to a segment, keeping the
// SEG.n children in numeric order. The element's name must already be
// SEG.n for this segment. Existing fields with the same number are left
// in place; the new field goes after them.
func (e *Element) InsertField(field *Element) {
	n := numberSuffix(field.Name)
	e.insertOrdered(field, n)
}

func (e *Element) insertOrdered(el *Element, n int) {
	// Find the first element child whose numeric suffix exceeds n.
	insertAt := len(e.Children)
	for i, c := range e.Children {
		child, ok := c.(*Element)
		if !ok {
			continue
		}
		if m := numberSuffix(child.Name); m > n {
			insertAt = i
			break
		}
	}
	e.Children = append(e.Children, nil)
	copy(e.Children[insertAt+1:], e.Children[insertAt:])
	e.Children[insertAt] = el
}

func numberSuffix(name string) int {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// FieldNumbers lists the distinct field numbers present in a segment, in
// ascending order.
func (e *Element) FieldNumbers() []int {
	seen := map[int]bool{}
	var out []int
	prefix := e.Name + "."
	for _, child := range e.Elements() {
		if !strings.HasPrefix(child.Name, prefix) {
			continue
		}
		if n := numberSuffix(child.Name); n > 0 && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
