package xsd

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Severity represents the severity level of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Position contains source position information for a node
type Position struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int64  `json:"offset"`
}

// Violation is an instance validation error.
type Violation struct {
	Element   xmldom.Element
	Attribute string
	Code      string
	Message   string
	Expected  []string
	Actual    string
	Position  Position
}

// Error renders the violation as reported to users: the message followed by
// the position when one is known.
func (v Violation) Error() string {
	if v.Position.Line > 0 {
		return fmt.Sprintf("%s Line %d, position %d.", v.Message, v.Position.Line, v.Position.Column)
	}
	return v.Message
}

// SchemaError is a problem found while loading or compiling schemas.
type SchemaError struct {
	Message   string
	SourceURI string
	Line      int
	Column    int
	Severity  Severity
}

// Error renders the error with the document URI and position appended, for
// example "... An error occurred at file:///s.xsd, (3, 4)."
func (e *SchemaError) Error() string {
	if e.SourceURI == "" {
		return e.Message
	}
	return fmt.Sprintf("%s An error occurred at %s, (%d, %d).", e.Message, e.SourceURI, e.Line, e.Column)
}

// Diagnostic is the structured form of a violation, used for logging.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Position  Position `json:"position"`
	Tag       string   `json:"tag,omitempty"`
	Attribute string   `json:"attribute,omitempty"`
	Expected  []string `json:"expected,omitempty"`
}

// Diagnostics converts violations found in fileName.
func Diagnostics(fileName string, violations []Violation) []Diagnostic {
	out := make([]Diagnostic, 0, len(violations))
	for _, v := range violations {
		pos := v.Position
		pos.File = fileName
		d := Diagnostic{
			Severity:  SeverityError,
			Code:      v.Code,
			Message:   v.Message,
			Position:  pos,
			Attribute: v.Attribute,
			Expected:  v.Expected,
		}
		if v.Element != nil {
			d.Tag = string(v.Element.LocalName())
		}
		out = append(out, d)
	}
	return out
}

// Fields flattens d for structured loggers.
func (d Diagnostic) Fields() map[string]any {
	fields := map[string]any{
		"code":   d.Code,
		"line":   d.Position.Line,
		"column": d.Position.Column,
	}
	if d.Tag != "" {
		fields["tag"] = d.Tag
	}
	if d.Attribute != "" {
		fields["attribute"] = d.Attribute
	}
	if len(d.Expected) > 0 {
		fields["expected"] = strings.Join(d.Expected, ", ")
	}
	return fields
}

// positionOf gets the position of an element or, when attrName is set, of
// one of its attributes.
func positionOf(elem xmldom.Element, attrName string) Position {
	if elem == nil {
		return Position{}
	}

	if attrName != "" {
		if attr := elem.GetAttributeNode(xmldom.DOMString(attrName)); attr != nil {
			line, col, offset := attr.Position()
			if line > 0 {
				return Position{Line: line, Column: col, Offset: offset}
			}
		}
	}

	line, col, offset := elem.Position()
	return Position{Line: line, Column: col, Offset: offset}
}
