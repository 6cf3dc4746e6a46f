package checker

import (
	"fmt"
	"strings"
)

// Kind classifies a finding.
type Kind string

const (
	// ParseError means the document could not be deserialised. It replaces
	// every other finding.
	ParseError Kind = "parse"
	// SchemaViolation is a required tag that is absent.
	SchemaViolation Kind = "schema"
	// FragmentSyntaxError is an embedded fragment that does not compile.
	FragmentSyntaxError Kind = "syntax"
	// MissingAssertion is a validate fragment with no assertion in it.
	MissingAssertion Kind = "assertion"
)

// InvalidStructure is the whole report for a document that fails to parse.
const InvalidStructure = "Invalid YAML structure"

// Diagnostic is a single validator finding.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Path    string `json:"path"`              // colon-joined tags of the enclosing node
	Tag     string `json:"tag,omitempty"`     // missing tag, for SchemaViolation
	Message string `json:"message,omitempty"` // compiler output, for FragmentSyntaxError
}

// Line renders the diagnostic as it appears in a report. Every line but a
// parse error starts with a newline, so a report is the plain concatenation
// of its lines.
func (d *Diagnostic) Line() string {
	switch d.Kind {
	case ParseError:
		return InvalidStructure
	case SchemaViolation:
		if d.Path == "" {
			return fmt.Sprintf("\nMissing tag %s", d.Tag)
		}
		return fmt.Sprintf("\n%s: Missing tag %s", d.Path, d.Tag)
	case MissingAssertion:
		return fmt.Sprintf("\n%s: Missing assertion", d.Path)
	default:
		return "\n" + d.Message
	}
}

func (d *Diagnostic) Error() string {
	return strings.TrimPrefix(d.Line(), "\n")
}

// Report concatenates the lines of diags. An empty report means success.
func Report(diags []*Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(d.Line())
	}
	return b.String()
}
