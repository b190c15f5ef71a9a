package evs

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/gohl7/corrector/diagnostic"
)

// Report is a parsed EVS validation report.
type Report struct {
	// Result is the overall verdict reported by the validator, for
	// example PASSED or FAILED.
	Result string

	// Errors and Warnings are the validator's own counters.
	Errors   int
	Warnings int

	// Diagnostics holds the failed constraints in document order.
	Diagnostics []diagnostic.Diagnostic

	// Ref and Permalink identify the submission the report belongs to.
	// They are set by the client, not parsed from the report body.
	Ref       *SubmissionRef
	Permalink string
}

// Passed reports whether the validator accepted the message.
func (r *Report) Passed() bool {
	return r.Result == "PASSED" || r.Result == "DONE_PASSED"
}

// Blocking returns the diagnostics that must be corrected.
func (r *Report) Blocking() []diagnostic.Diagnostic {
	return diagnostic.Blocking(r.Diagnostics)
}

// Advisory returns the diagnostics that do not block acceptance.
func (r *Report) Advisory() []diagnostic.Diagnostic {
	return diagnostic.Advisory(r.Diagnostics)
}

type constraintXML struct {
	Priority    string `xml:"priority,attr"`
	Severity    string `xml:"severity,attr"`
	TestResult  string `xml:"testResult,attr"`
	Description string `xml:"constraintDescription"`
	Location    string `xml:"locationInValidatedObject"`
	Type        string `xml:"constraintType"`
}

// ParseReport parses a detailed validation report. Only failed
// constraints become diagnostics; passed and skipped checks are dropped.
func ParseReport(r io.Reader) (*Report, error) {
	report := &Report{}
	decoder := xml.NewDecoder(r)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed validation report: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "validationOverview":
			report.Result = attrValue(start, "validationOverallResult")
			if err := decoder.Skip(); err != nil {
				return nil, fmt.Errorf("malformed validation report: %w", err)
			}
		case "counters":
			report.Errors = attrInt(start, "numberOfErrors")
			report.Warnings = attrInt(start, "numberOfWarnings")
			if err := decoder.Skip(); err != nil {
				return nil, fmt.Errorf("malformed validation report: %w", err)
			}
		case "constraint":
			var c constraintXML
			if err := decoder.DecodeElement(&c, &start); err != nil {
				return nil, fmt.Errorf("malformed constraint: %w", err)
			}
			if c.TestResult != "FAILED" {
				continue
			}
			report.Diagnostics = append(report.Diagnostics, diagnostic.Diagnostic{
				Category:    c.Type,
				Severity:    diagnostic.Severity(c.Severity),
				Priority:    diagnostic.Priority(c.Priority),
				Location:    c.Location,
				Description: c.Description,
			})
		}
	}

	if report.Result == "" {
		return nil, fmt.Errorf("validation report has no overview")
	}
	return report, nil
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func attrInt(start xml.StartElement, name string) int {
	n, err := strconv.Atoi(attrValue(start, name))
	if err != nil {
		return 0
	}
	return n
}
