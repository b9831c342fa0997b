package xsd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/agentflare-ai/go-xmlvalidator/internal/charset"
	"github.com/spf13/afero"
)

// loadKind tells the loader how a document was reached, which decides the
// target namespace rules applied to it.
type loadKind uint8

const (
	loadRoot loadKind = iota
	loadInclude
	loadImport
)

// schemaLoader reads schema documents into a Schema, following xs:include
// and xs:import. Documents are keyed by path and effective target namespace
// so cycles terminate and a chameleon document can be included into more
// than one namespace.
type schemaLoader struct {
	fs       afero.Fs
	schema   *Schema
	loaded   map[string]bool
	errors   []*SchemaError
	warnings []*SchemaError
}

func newSchemaLoader(fs afero.Fs, schema *Schema, loaded map[string]bool) *schemaLoader {
	return &schemaLoader{fs: fs, schema: schema, loaded: loaded}
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fileURI renders path the way schema errors report document locations.
func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// resolveRelative resolves a schemaLocation against the including document.
func resolveRelative(location, base string) string {
	if filepath.IsAbs(location) {
		return filepath.Clean(location)
	}
	return filepath.Join(filepath.Dir(base), location)
}

// loadDocument reads and parses one schema document.
func (sl *schemaLoader) loadDocument(path string) (root xmldom.Element, err error) {
	f, err := sl.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if data, err = charset.ToUTF8(data); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			root, err = nil, fmt.Errorf("%v", r)
		}
	}()
	doc, err := xmldom.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.DocumentElement() == nil {
		return nil, errors.New("Root element is missing.")
	}
	return doc.DocumentElement(), nil
}

// loadRoot loads the document given to SchemaSet.Add. namespace is the
// optional target namespace hint.
func (sl *schemaLoader) loadRoot(namespace, location string) {
	if isRemote(location) {
		sl.errors = append(sl.errors, &SchemaError{Message: "Resolving of external URIs was prohibited.", Severity: SeverityError})
		return
	}
	path := filepath.Clean(location)
	root, err := sl.loadDocument(path)
	if err != nil {
		sl.errors = append(sl.errors, &SchemaError{Message: err.Error(), SourceURI: fileURI(path), Severity: SeverityError})
		return
	}
	sl.process(root, path, namespace, loadRoot)
}

// process checks and parses one document, then follows its includes and
// imports. expected is the hint for the root document, the including
// document's namespace for includes and the import's namespace for imports.
func (sl *schemaLoader) process(root xmldom.Element, path, expected string, kind loadKind) {
	uri := fileURI(path)
	structural := NewSchemaValidator(uri).ValidateSchema(root)
	sl.errors = append(sl.errors, structural...)
	if !isSchemaElement(root, "schema") {
		return
	}

	at := sourceOf(uri, root)
	tns := string(root.GetAttribute("targetNamespace"))
	if hasAttr(root, "targetNamespace") && tns == "" {
		sl.errors = append(sl.errors, at.errorf("The targetNamespace attribute cannot have empty string as its value."))
	}

	doc := &schemaDoc{
		path:               path,
		uri:                uri,
		targetNamespace:    tns,
		elementQualified:   attr(root, "elementFormDefault") == "qualified",
		attributeQualified: attr(root, "attributeFormDefault") == "qualified",
	}

	switch kind {
	case loadRoot:
		if expected != "" {
			if tns == "" {
				doc.targetNamespace, doc.chameleon = expected, true
			} else if tns != expected {
				sl.errors = append(sl.errors, at.errorf("The targetNamespace parameter '%s' should be the same value as the targetNamespace '%s' of the schema.", expected, tns))
			}
		}
	case loadInclude:
		if tns == "" && expected != "" {
			doc.targetNamespace, doc.chameleon = expected, true
		} else if tns != expected {
			sl.errors = append(sl.errors, at.errorf("The targetNamespace '%s' of included/redefined schema should be the same as the targetNamespace '%s' of the including schema.", tns, expected))
			return
		}
	case loadImport:
		if tns != expected {
			sl.errors = append(sl.errors, at.errorf("The namespace attribute '%s' of an import should be the same value as the targetNamespace '%s' of the imported schema.", expected, tns))
			return
		}
	}

	key := path + "|" + doc.targetNamespace
	if sl.loaded[key] {
		return
	}
	sl.loaded[key] = true
	sl.schema.addNamespace(doc.targetNamespace)

	p := &docParser{schema: sl.schema, doc: doc}
	p.parseSchema(root)
	sl.errors = append(sl.errors, p.errs...)

	for _, child := range xsdChildren(root) {
		switch string(child.LocalName()) {
		case "include":
			sl.follow(doc, child, doc.targetNamespace, loadInclude)
		case "import":
			ns := string(child.GetAttribute("namespace"))
			if ns == doc.targetNamespace {
				if ns == "" {
					sl.errors = append(sl.errors, sourceOf(uri, child).errorf("The enclosing <schema> must have a targetNamespace, if the Namespace attribute is absent on the import element."))
				} else {
					sl.errors = append(sl.errors, sourceOf(uri, child).errorf("Namespace attribute of an import must not match the real value of the enclosing targetNamespace of the <schema>."))
				}
				continue
			}
			sl.follow(doc, child, ns, loadImport)
		}
	}
}

// follow loads the document named by an include or import. Documents that
// cannot be read are warnings; the references they would have satisfied
// are reported when the set is compiled.
func (sl *schemaLoader) follow(from *schemaDoc, elem xmldom.Element, expected string, kind loadKind) {
	location := attr(elem, "schemaLocation")
	if location == "" {
		return
	}
	at := sourceOf(from.uri, elem)
	if isRemote(location) {
		sl.errors = append(sl.errors, at.errorf("Resolving of external URIs was prohibited."))
		return
	}

	path := resolveRelative(location, from.path)
	root, err := sl.loadDocument(path)
	if err != nil {
		w := at.errorf("Cannot load the schema from the location '%s' - %v", location, err)
		if kind == loadImport {
			w = at.errorf("Cannot load the schema for the namespace '%s' - %v", expected, err)
		}
		w.Severity = SeverityWarning
		sl.warnings = append(sl.warnings, w)
		return
	}
	sl.process(root, path, expected, kind)
}
