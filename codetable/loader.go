package codetable

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gohl7/corrector/codetable/specs"
)

// tableDef is the declarative JSON shape of one table:
//
//	{
//	  "HL70301": {
//	    "name": "Universal ID Type",
//	    "description": "...",
//	    "codes": ["DNS", "GUID", ...],
//	    "preferred": ["L"]
//	  }
//	}
type tableDef struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Codes       []string `json:"codes"`
	Preferred   []string `json:"preferred,omitempty"`
}

// Load reads table definitions from r into the registry. Correction is
// best-effort, so a malformed source degrades to whatever was already
// loaded, with a warning, rather than failing the caller.
func (r *Registry) Load(src io.Reader) {
	data, err := io.ReadAll(src)
	if err != nil {
		logrus.WithError(err).Warn("codetable: failed to read table definitions")
		return
	}
	r.loadJSON(data, "reader")
}

// LoadFile reads table definitions from a JSON file. A missing or
// unreadable file degrades to an empty load with a warning.
func (r *Registry) LoadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).
			Warn("codetable: table definitions not found, registry stays empty")
		return
	}
	r.loadJSON(data, path)
}

// LoadDefaults loads the embedded HL7 v2.4 table definitions.
func (r *Registry) LoadDefaults() {
	sub, err := fs.Sub(specs.Tables, "tables")
	if err != nil {
		logrus.WithError(err).Warn("codetable: embedded tables unavailable")
		return
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		logrus.WithError(err).Warn("codetable: embedded tables unavailable")
		return
	}
	for _, entry := range entries {
		data, err := fs.ReadFile(sub, entry.Name())
		if err != nil {
			logrus.WithError(err).WithField("file", entry.Name()).
				Warn("codetable: skipping embedded table file")
			continue
		}
		r.loadJSON(data, entry.Name())
	}
}

func (r *Registry) loadJSON(data []byte, source string) {
	var defs map[string]tableDef
	if err := json.Unmarshal(data, &defs); err != nil {
		logrus.WithError(err).WithField("source", source).
			Warn("codetable: malformed table definitions ignored")
		return
	}

	loaded := 0
	for id, def := range defs {
		if len(def.Codes) == 0 {
			logrus.WithField("table", id).Debug("codetable: table has no codes")
		}
		r.add(newTable(id, def.Name, def.Description, def.Codes, def.Preferred))
		loaded++
	}
	logrus.WithFields(logrus.Fields{"source": source, "tables": loaded}).
		Debug("codetable: loaded table definitions")
}
