package xsd

import (
	"sync"

	"github.com/spf13/afero"
)

// SchemaSet compiles schema documents into one Schema that instances are
// validated against. It keeps every compile error so callers can report the
// first or all of them; a set with errors still validates with whatever
// compiled.
type SchemaSet struct {
	fs       afero.Fs
	schema   *Schema
	loaded   map[string]bool
	errors   []*SchemaError
	warnings []*SchemaError

	mu sync.Mutex
}

// NewSchemaSet creates an empty set reading documents from fs.
func NewSchemaSet(fs afero.Fs) *SchemaSet {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SchemaSet{
		fs:     fs,
		schema: newSchema(),
		loaded: make(map[string]bool),
	}
}

// Add loads the schema document at location together with everything it
// includes and imports, then compiles the set. targetNamespace is an
// optional hint: when set it must match the document's targetNamespace, or
// it becomes the namespace of a document that declares none. The returned
// error is the first compile error this call produced.
func (ss *SchemaSet) Add(targetNamespace, location string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	before := len(ss.errors)
	loader := newSchemaLoader(ss.fs, ss.schema, ss.loaded)
	loader.loadRoot(targetNamespace, location)
	ss.errors = append(ss.errors, loader.errors...)
	ss.warnings = append(ss.warnings, loader.warnings...)

	ss.errors = append(ss.errors, compile(ss.schema)...)

	if len(ss.errors) > before {
		return ss.errors[before]
	}
	return nil
}

// Errors returns every compile error in the order found.
func (ss *SchemaSet) Errors() []*SchemaError {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return append([]*SchemaError(nil), ss.errors...)
}

// Warnings returns the problems that did not fail compilation, such as an
// include that could not be read.
func (ss *SchemaSet) Warnings() []*SchemaError {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return append([]*SchemaError(nil), ss.warnings...)
}

// Schema returns the compiled components.
func (ss *SchemaSet) Schema() *Schema {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.schema
}
