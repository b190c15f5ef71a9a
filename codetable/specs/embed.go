// Package specs embeds the default HL7 v2.4 code table definitions.
//
// The JSON files map table identifiers to their display name, description,
// valid codes and preferred replacement candidates. Deployments with their
// own governed definitions load them at runtime instead via
// codetable.(*Registry).LoadFile.
package specs

import "embed"

// Tables holds the embedded table definition files.
//
//go:embed tables/*.json
var Tables embed.FS
