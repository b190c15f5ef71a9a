package hl7msg

import "bytes"

const (
	bomUTF8        = "\ufeff"
	xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>`
)

// ChangeKind identifies a structural normalization step.
type ChangeKind string

// Normalization steps.
const (
	ChangeBOMRemoval     ChangeKind = "bom-removal"
	ChangeXMLDeclaration ChangeKind = "xml-declaration"
)

// Change describes one normalization applied to a message.
type Change struct {
	Kind        ChangeKind
	Description string
}

// Normalize strips a leading UTF-8 byte-order mark and ensures the message
// starts with an XML declaration. The Gazelle XML-to-ER7 converter rejects
// messages carrying a BOM, so this always runs before the first submission.
//
// Normalize is idempotent: re-running it on already-normalized bytes
// returns the input unchanged with no reported changes.
func Normalize(data []byte) ([]byte, []Change) {
	var changes []Change

	if bytes.HasPrefix(data, []byte(bomUTF8)) {
		data = bytes.TrimPrefix(data, []byte(bomUTF8))
		changes = append(changes, Change{
			Kind:        ChangeBOMRemoval,
			Description: "removed UTF-8 byte order mark",
		})
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("<?xml")) {
		out := make([]byte, 0, len(xmlDeclaration)+1+len(data))
		out = append(out, xmlDeclaration...)
		out = append(out, '\n')
		out = append(out, data...)
		data = out
		changes = append(changes, Change{
			Kind:        ChangeXMLDeclaration,
			Description: "added XML declaration header",
		})
	}

	return data, changes
}
