package xsd

import (
	"fmt"
	"strconv"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-xmlvalidator/internal/xpath"
)

// allowedAttributes lists the unqualified attributes each schema element
// may carry besides id.
var allowedAttributes = map[string][]string{
	"schema":         {"targetNamespace", "version", "elementFormDefault", "attributeFormDefault", "blockDefault", "finalDefault"},
	"element":        {"name", "ref", "type", "substitutionGroup", "minOccurs", "maxOccurs", "default", "fixed", "nillable", "abstract", "final", "block", "form"},
	"attribute":      {"name", "ref", "type", "use", "default", "fixed", "form"},
	"complexType":    {"name", "mixed", "abstract", "final", "block"},
	"simpleType":     {"name", "final"},
	"sequence":       {"minOccurs", "maxOccurs"},
	"choice":         {"minOccurs", "maxOccurs"},
	"all":            {"minOccurs", "maxOccurs"},
	"group":          {"name", "ref", "minOccurs", "maxOccurs"},
	"attributeGroup": {"name", "ref"},
	"any":            {"namespace", "processContents", "minOccurs", "maxOccurs"},
	"anyAttribute":   {"namespace", "processContents"},
	"restriction":    {"base"},
	"extension":      {"base"},
	"list":           {"itemType"},
	"union":          {"memberTypes"},
	"simpleContent":  {},
	"complexContent": {"mixed"},
	"include":        {"schemaLocation"},
	"import":         {"namespace", "schemaLocation"},
	"redefine":       {"schemaLocation"},
	"key":            {"name"},
	"keyref":         {"name", "refer"},
	"unique":         {"name"},
	"selector":       {"xpath"},
	"field":          {"xpath"},
	"annotation":     {},
	"appinfo":        {"source"},
	"documentation":  {"source"},
	"notation":       {"name", "public", "system"},
	"length":         {"value", "fixed"},
	"minLength":      {"value", "fixed"},
	"maxLength":      {"value", "fixed"},
	"pattern":        {"value"},
	"enumeration":    {"value"},
	"whiteSpace":     {"value", "fixed"},
	"minInclusive":   {"value", "fixed"},
	"maxInclusive":   {"value", "fixed"},
	"minExclusive":   {"value", "fixed"},
	"maxExclusive":   {"value", "fixed"},
	"totalDigits":    {"value", "fixed"},
	"fractionDigits": {"value", "fixed"},
}

// SchemaValidator checks that a schema document is a structurally valid XML
// Schema before its components are parsed.
type SchemaValidator struct {
	uri    string
	errors []*SchemaError
	ids    map[string]bool
}

// NewSchemaValidator creates a validator for the document at uri.
func NewSchemaValidator(uri string) *SchemaValidator {
	return &SchemaValidator{uri: uri, ids: make(map[string]bool)}
}

// ValidateSchema validates the schema rooted at root.
func (sv *SchemaValidator) ValidateSchema(root xmldom.Element) []*SchemaError {
	sv.errors = nil
	sv.ids = make(map[string]bool)

	if !isSchemaElement(root, "schema") {
		sv.addErrorAt(root, "The root element of a W3C XML Schema should be <schema> and its namespace should be '%s'.", XSDNamespace)
		return sv.errors
	}
	sv.validateElement(root, "")
	return sv.errors
}

func isSchemaElement(elem xmldom.Element, local string) bool {
	return elem != nil && string(elem.NamespaceURI()) == XSDNamespace && string(elem.LocalName()) == local
}

func (sv *SchemaValidator) addErrorAt(elem xmldom.Element, format string, args ...any) {
	sv.errors = append(sv.errors, sourceOf(sv.uri, elem).errorf(format, args...))
}

// validateElement recursively validates an element and its children
func (sv *SchemaValidator) validateElement(elem xmldom.Element, parent string) {
	local := string(elem.LocalName())
	if string(elem.NamespaceURI()) != XSDNamespace {
		sv.addErrorAt(elem, "The '%s' element is not supported in this context.", nameOf(elem).Qualified())
		return
	}
	allowed, known := allowedAttributes[local]
	if !known {
		sv.addErrorAt(elem, "The '%s' element is not supported in this context.", nameOf(elem).Qualified())
		return
	}

	sv.validateAttributes(elem, allowed)
	sv.validateIDAttribute(elem)

	global := parent == "schema"
	switch local {
	case "schema":
		sv.validateFormDefault(elem, "elementFormDefault")
		sv.validateFormDefault(elem, "attributeFormDefault")
	case "element":
		sv.validateElementDecl(elem, global)
	case "attribute":
		sv.validateAttributeDecl(elem, global)
	case "complexType", "simpleType":
		sv.validateTypeDef(elem, global)
	case "group", "attributeGroup":
		sv.validateGroupDef(elem, global)
	case "sequence", "choice", "all", "any":
		sv.validateOccurs(elem)
		if local == "all" {
			sv.validateAllGroup(elem)
		}
		if local == "any" {
			sv.validateProcessContents(elem)
		}
	case "anyAttribute":
		sv.validateProcessContents(elem)
	case "restriction", "list", "union":
		if parent == "simpleType" {
			sv.validateSimpleDerivation(elem, local)
		} else if local == "restriction" {
			sv.requireAttribute(elem, "base")
		}
	case "extension":
		sv.requireAttribute(elem, "base")
	case "include":
		sv.requireAttribute(elem, "schemaLocation")
	case "redefine":
		sv.addErrorAt(elem, "The 'redefine' element is not supported.")
	case "key", "keyref", "unique":
		sv.validateIdentityConstraint(elem, local)
	case "selector", "field":
		sv.validateXPathElement(elem, local)
	case "appinfo", "documentation":
		// Any content is allowed.
		return
	case "length", "minLength", "maxLength", "pattern", "enumeration", "whiteSpace",
		"minInclusive", "maxInclusive", "minExclusive", "maxExclusive", "totalDigits", "fractionDigits":
		sv.requireAttribute(elem, "value")
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child != nil {
			sv.validateElement(child, local)
		}
	}
}

func (sv *SchemaValidator) validateAttributes(elem xmldom.Element, allowed []string) {
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil || xpath.IsNamespaceDeclaration(a) || string(a.NamespaceURI()) != "" {
			continue
		}
		name := string(a.LocalName())
		if name == "id" || contains(allowed, name) {
			continue
		}
		sv.addErrorAt(elem, "The '%s' attribute is not supported in this context.", name)
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// validateIDAttribute checks that id values are NCNames, unique within the
// document.
func (sv *SchemaValidator) validateIDAttribute(elem xmldom.Element) {
	if !hasAttr(elem, "id") {
		return
	}
	id := attr(elem, "id")
	if !isNCName(id) {
		sv.addErrorAt(elem, "The 'id' attribute is invalid - The value '%s' is invalid according to its datatype '%s:ID'.", id, XSDNamespace)
		return
	}
	if sv.ids[id] {
		sv.addErrorAt(elem, "'%s' is already used as an ID.", id)
		return
	}
	sv.ids[id] = true
}

func (sv *SchemaValidator) requireAttribute(elem xmldom.Element, name string) bool {
	if !hasAttr(elem, name) {
		sv.addErrorAt(elem, "The required attribute '%s' is missing.", name)
		return false
	}
	return true
}

func (sv *SchemaValidator) forbidAttributes(elem xmldom.Element, names ...string) {
	for _, name := range names {
		if hasAttr(elem, name) {
			sv.addErrorAt(elem, "The '%s' attribute is not supported in this context.", name)
		}
	}
}

func (sv *SchemaValidator) validateName(elem xmldom.Element) {
	if name := attr(elem, "name"); !isNCName(name) {
		sv.addErrorAt(elem, "The 'name' attribute is invalid - The value '%s' is invalid according to its datatype '%s:NCName'.", name, XSDNamespace)
	}
}

func (sv *SchemaValidator) validateBoolean(elem xmldom.Element, names ...string) {
	for _, name := range names {
		if !hasAttr(elem, name) {
			continue
		}
		if value := attr(elem, name); validateBoolean(value) != nil {
			sv.addErrorAt(elem, "The '%s' attribute is invalid - The value '%s' is invalid according to its datatype '%s:boolean'.", name, value, XSDNamespace)
		}
	}
}

func (sv *SchemaValidator) validateFormDefault(elem xmldom.Element, name string) {
	if !hasAttr(elem, name) {
		return
	}
	switch value := attr(elem, name); value {
	case "qualified", "unqualified":
	default:
		sv.addErrorAt(elem, "The '%s' attribute is invalid - The value '%s' is invalid according to its datatype '%s:formChoice'.", name, value, XSDNamespace)
	}
}

func (sv *SchemaValidator) validateElementDecl(elem xmldom.Element, global bool) {
	sv.validateBoolean(elem, "nillable", "abstract")
	sv.validateFormDefault(elem, "form")
	sv.validateDefaultFixed(elem)
	sv.validateInlineType(elem)

	if global {
		sv.forbidAttributes(elem, "ref", "minOccurs", "maxOccurs", "form")
		if sv.requireAttribute(elem, "name") {
			sv.validateName(elem)
		}
		return
	}

	sv.forbidAttributes(elem, "substitutionGroup", "final")
	sv.validateOccurs(elem)
	hasName, hasRef := hasAttr(elem, "name"), hasAttr(elem, "ref")
	if hasName == hasRef {
		sv.addErrorAt(elem, "For element declaration either the name or the ref attribute must be present, but not both.")
		return
	}
	if hasName {
		sv.validateName(elem)
		return
	}
	for _, name := range []string{"type", "nillable", "default", "fixed", "block", "form", "abstract"} {
		if hasAttr(elem, name) {
			sv.addErrorAt(elem, "If ref is present, all of <complexType>, <simpleType>, <key>, <keyref>, <unique>, nillable, default, fixed, form, block and type must be absent.")
			return
		}
	}
}

func (sv *SchemaValidator) validateAttributeDecl(elem xmldom.Element, global bool) {
	sv.validateFormDefault(elem, "form")
	sv.validateDefaultFixed(elem)
	sv.validateInlineType(elem)

	if global {
		sv.forbidAttributes(elem, "ref", "use", "form")
		if sv.requireAttribute(elem, "name") {
			sv.validateName(elem)
			if attr(elem, "name") == "xmlns" {
				sv.addErrorAt(elem, "The value 'xmlns' cannot be used as the name of an attribute declaration.")
			}
		}
		return
	}

	hasName, hasRef := hasAttr(elem, "name"), hasAttr(elem, "ref")
	if hasName == hasRef {
		sv.addErrorAt(elem, "For attribute '%s', either the name or the ref attribute must be present, but not both.", attr(elem, "name"))
		return
	}
	if hasName {
		sv.validateName(elem)
	}

	use := attr(elem, "use")
	switch use {
	case "", "optional", "required", "prohibited":
	default:
		sv.addErrorAt(elem, "The 'use' attribute is invalid - The value '%s' is invalid according to its datatype '%s:NMTOKEN' - The Enumeration constraint failed.", use, XSDNamespace)
		return
	}
	if hasAttr(elem, "default") && use != "" && use != "optional" {
		sv.addErrorAt(elem, "The value of the 'use' attribute must be 'optional' if the 'default' attribute is present.")
	}
}

func (sv *SchemaValidator) validateDefaultFixed(elem xmldom.Element) {
	if hasAttr(elem, "default") && hasAttr(elem, "fixed") {
		sv.addErrorAt(elem, "The fixed and default attributes cannot both be present.")
	}
}

// validateInlineType rejects a type attribute combined with an anonymous
// type definition.
func (sv *SchemaValidator) validateInlineType(elem xmldom.Element) {
	if !hasAttr(elem, "type") && !hasAttr(elem, "ref") {
		return
	}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "simpleType", "complexType":
			if hasAttr(elem, "type") {
				sv.addErrorAt(elem, "The type attribute cannot be present with either simpleType or complexType.")
			} else {
				sv.addErrorAt(elem, "If ref is present, all of <complexType>, <simpleType>, <key>, <keyref>, <unique>, nillable, default, fixed, form, block and type must be absent.")
			}
			return
		}
	}
}

func (sv *SchemaValidator) validateTypeDef(elem xmldom.Element, global bool) {
	sv.validateBoolean(elem, "mixed", "abstract")
	if global {
		if sv.requireAttribute(elem, "name") {
			sv.validateName(elem)
		}
	} else {
		sv.forbidAttributes(elem, "name")
	}

	if string(elem.LocalName()) != "simpleType" {
		return
	}
	count := 0
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "restriction", "list", "union":
			count++
		}
	}
	if count != 1 {
		sv.addErrorAt(elem, "A simpleType must contain exactly one of restriction, list or union.")
	}
}

func (sv *SchemaValidator) validateGroupDef(elem xmldom.Element, global bool) {
	if global {
		sv.forbidAttributes(elem, "ref", "minOccurs", "maxOccurs")
		if sv.requireAttribute(elem, "name") {
			sv.validateName(elem)
		}
		return
	}
	sv.forbidAttributes(elem, "name")
	if sv.requireAttribute(elem, "ref") && string(elem.LocalName()) == "group" {
		sv.validateOccurs(elem)
	}
}

func (sv *SchemaValidator) validateOccurs(elem xmldom.Element) {
	minValue, maxValue := 1, 1
	if hasAttr(elem, "minOccurs") {
		value := attr(elem, "minOccurs")
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			sv.addErrorAt(elem, "The 'minOccurs' attribute is invalid - The value '%s' is invalid according to its datatype '%s:nonNegativeInteger'.", value, XSDNamespace)
			return
		}
		minValue = n
	}
	if hasAttr(elem, "maxOccurs") {
		value := attr(elem, "maxOccurs")
		if value == "unbounded" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			sv.addErrorAt(elem, "The 'maxOccurs' attribute is invalid - The value '%s' is invalid according to its datatype '%s:allNNI'.", value, XSDNamespace)
			return
		}
		maxValue = n
	}
	if minValue > maxValue {
		sv.addErrorAt(elem, "minOccurs value cannot be greater than maxOccurs value.")
	}
}

func (sv *SchemaValidator) validateAllGroup(elem xmldom.Element) {
	if maxValue := attr(elem, "maxOccurs"); maxValue != "" && maxValue != "1" {
		sv.addErrorAt(elem, "The {max occurs} of an all model group must be 1.")
	}
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) != "element" {
			sv.addErrorAt(child, "The content of an all model group must be element declarations.")
			continue
		}
		if maxValue := attr(child, "maxOccurs"); maxValue != "" && maxValue != "0" && maxValue != "1" {
			sv.addErrorAt(child, "The {max occurs} of all the particles in the {particles} of an all group must be 0 or 1.")
		}
	}
}

func (sv *SchemaValidator) validateProcessContents(elem xmldom.Element) {
	if !hasAttr(elem, "processContents") {
		return
	}
	switch value := attr(elem, "processContents"); value {
	case "strict", "lax", "skip":
	default:
		sv.addErrorAt(elem, "The 'processContents' attribute is invalid - The value '%s' is invalid according to its datatype '%s:NMTOKEN' - The Enumeration constraint failed.", value, XSDNamespace)
	}
}

// validateSimpleDerivation checks the restriction, list or union of a
// simpleType: exactly one of the attribute reference or inline type.
func (sv *SchemaValidator) validateSimpleDerivation(elem xmldom.Element, local string) {
	inline := 0
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) == "simpleType" {
			inline++
		}
	}

	switch local {
	case "restriction":
		if hasAttr(elem, "base") == (inline > 0) || inline > 1 {
			sv.addErrorAt(elem, "The base attribute must be specified or a simpleType child must be present, but not both.")
		}
	case "list":
		if hasAttr(elem, "itemType") == (inline > 0) || inline > 1 {
			sv.addErrorAt(elem, "Either the itemType attribute or the simpleType child must be present, but not both.")
		}
	case "union":
		if attr(elem, "memberTypes") == "" && inline == 0 {
			sv.addErrorAt(elem, "Either the memberTypes attribute must be non-empty or there must be at least one simpleType child.")
		}
	}
}

func (sv *SchemaValidator) validateIdentityConstraint(elem xmldom.Element, local string) {
	if sv.requireAttribute(elem, "name") {
		sv.validateName(elem)
	}
	if local == "keyref" {
		sv.requireAttribute(elem, "refer")
	}

	selectors, fields := 0, 0
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "selector":
			selectors++
		case "field":
			fields++
		}
	}
	if selectors != 1 || fields == 0 {
		sv.addErrorAt(elem, "The %s constraint '%s' must have exactly one selector and at least one field.", local, attr(elem, "name"))
	}
}

func (sv *SchemaValidator) validateXPathElement(elem xmldom.Element, local string) {
	if !sv.requireAttribute(elem, "xpath") {
		return
	}
	if attr(elem, "xpath") == "" {
		sv.addErrorAt(elem, "The XPath of the %s cannot be empty.", local)
	}
}

func (sv *SchemaValidator) String() string {
	return fmt.Sprintf("SchemaValidator(%s, %d errors)", sv.uri, len(sv.errors))
}
