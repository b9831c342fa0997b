package xsd

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-xmlvalidator/internal/xpath"
)

const (
	elementNode = 1
	textNode    = 3
	cdataNode   = 4
)

type idref struct {
	value string
	elem  xmldom.Element
	attr  string
}

// Validator validates XML documents against a compiled SchemaSet.
type Validator struct {
	schema     *Schema
	ids        map[string]xmldom.Element
	idRefs     []idref
	violations []Violation
	identity   *IdentityConstraintValidator
	counter    int
}

// NewValidator creates a validator for the components of set.
func NewValidator(set *SchemaSet) *Validator {
	return &Validator{schema: set.Schema()}
}

// Validate validates doc and returns the violations in document order.
func (v *Validator) Validate(doc xmldom.Document) []Violation {
	v.violations = nil
	v.ids = make(map[string]xmldom.Element)
	v.idRefs = nil
	v.identity = NewIdentityConstraintValidator()
	v.counter = 0

	var root xmldom.Element
	if doc != nil {
		root = doc.DocumentElement()
	}
	if root == nil {
		return []Violation{{Code: "cvc-elt.1", Message: "Root element is missing."}}
	}

	decl := v.schema.ElementDecls[nameOf(root)]
	if decl == nil {
		v.report(root, "", "cvc-elt.1", "The '%s' element is not declared.", nameOf(root).Qualified())
		return v.violations
	}
	v.validateElement(root, decl, newScope())

	for _, ref := range v.idRefs {
		if _, ok := v.ids[ref.value]; !ok {
			v.report(ref.elem, ref.attr, "cvc-id.1", "Reference to undeclared ID is '%s'.", ref.value)
		}
	}
	v.violations = append(v.violations, v.identity.Validate()...)
	return v.violations
}

func (v *Validator) report(elem xmldom.Element, attr, code, format string, args ...any) {
	v.violations = append(v.violations, Violation{
		Element:   elem,
		Attribute: attr,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Position:  positionOf(elem, attr),
	})
}

func (v *Validator) add(violation *Violation) {
	if violation != nil {
		v.violations = append(v.violations, *violation)
	}
}

// xsiAttr returns an attribute in the XML Schema instance namespace.
func xsiAttr(elem xmldom.Element, local string) (string, bool) {
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a != nil && string(a.NamespaceURI()) == XSINamespace && string(a.LocalName()) == local {
			return string(a.NodeValue()), true
		}
	}
	return "", false
}

func elementChildren(elem xmldom.Element) []xmldom.Element {
	var out []xmldom.Element
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		if child := children.Item(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// textContent concatenates the text and CDATA children of elem. before is
// the number of element children that precede the first non-whitespace
// text, or -1 when all text is whitespace.
func textContent(elem xmldom.Element) (text string, before int) {
	var sb strings.Builder
	before = -1
	elements := 0
	nodes := elem.ChildNodes()
	for i := uint(0); i < nodes.Length(); i++ {
		node := nodes.Item(i)
		if node == nil {
			continue
		}
		switch node.NodeType() {
		case textNode, cdataNode:
			value := string(node.NodeValue())
			sb.WriteString(value)
			if before < 0 && strings.TrimSpace(value) != "" {
				before = elements
			}
		case elementNode:
			elements++
		}
	}
	return sb.String(), before
}

// validateElement validates elem against decl and then its subtree.
func (v *Validator) validateElement(elem xmldom.Element, decl *ElementDecl, scope nsScope) {
	scope = scope.push(elem)
	start := v.counter
	v.counter++
	name := nameOf(elem).Qualified()

	if decl.Abstract {
		v.report(elem, "", "cvc-elt.2", "The element '%s' is abstract or its type is abstract.", name)
	}

	t := decl.Type
	if t == nil {
		t = AnyType
	}
	if value, ok := xsiAttr(elem, "type"); ok {
		if xt := v.xsiType(elem, value, scope); xt != nil {
			if !derivesFrom(xt, t) {
				v.report(elem, "", "cvc-elt.4.3", "The xsi:type attribute value '%s' is not valid for the element '%s', either because it is not a type validly derived from the type in the schema, or because it has xsi:type derivation blocked.", xt.Name().Qualified(), name)
			} else {
				t = xt
			}
		}
	}
	if ct, ok := t.(*ComplexType); ok && ct.Abstract {
		v.report(elem, "", "cvc-type.2", "The element '%s' is abstract or its type is abstract.", name)
	}

	nilled := v.checkNil(elem, decl)
	v.validateAttributes(elem, t)
	if !nilled {
		v.validateContent(elem, decl, t, scope)
	}

	if len(decl.Constraints) > 0 {
		v.identity.addScope(&identityScope{elem: elem, decl: decl, start: start, end: v.counter})
	}
}

// xsiType resolves an xsi:type value in the instance namespace scope.
func (v *Validator) xsiType(elem xmldom.Element, value string, scope nsScope) Type {
	qn, _, ok := scope.resolveQName(value)
	var t Type
	if ok {
		t = v.schema.LookupType(qn)
	}
	if t == nil {
		shown := strings.TrimSpace(value)
		if ok {
			shown = qn.Qualified()
		}
		v.report(elem, "", "cvc-elt.4.2", "This is an invalid xsi:type '%s'.", shown)
		return nil
	}
	return t
}

// checkNil handles xsi:nil and reports whether the element is nilled.
func (v *Validator) checkNil(elem xmldom.Element, decl *ElementDecl) bool {
	value, ok := xsiAttr(elem, "nil")
	if !ok {
		return false
	}
	norm := strings.TrimSpace(value)
	if err := validateBoolean(norm); err != nil {
		v.report(elem, "", "cvc-datatype-valid", "The '%s:nil' attribute is invalid - The value '%s' is invalid according to its datatype '%s:boolean' - %s", XSINamespace, value, XSDNamespace, err.Error())
		return false
	}
	if !decl.Nillable {
		v.report(elem, "", "cvc-elt.3.1", "If the 'nillable' attribute is false in the schema, the 'xsi:nil' attribute must not be present in the instance.")
		return false
	}
	if norm != "true" && norm != "1" {
		return false
	}
	text, _ := textContent(elem)
	if text != "" || len(elementChildren(elem)) > 0 {
		v.report(elem, "", "cvc-elt.3.2.1", "The element '%s' cannot contain text or element information items when it is nil.", nameOf(elem).Qualified())
	}
	if decl.HasFixed {
		v.report(elem, "", "cvc-elt.3.2.2", "There must be no fixed value when an attribute is 'xsi:nil' and has a value of 'true'.")
	}
	return true
}

func isXSIAttribute(local string) bool {
	switch local {
	case "type", "nil", "schemaLocation", "noNamespaceSchemaLocation":
		return true
	}
	return false
}

// validateAttributes checks the attributes of elem against the uses and
// wildcard of its type, then reports missing required attributes.
func (v *Validator) validateAttributes(elem xmldom.Element, t Type) {
	var (
		uses     []*AttributeDecl
		wildcard *AnyAttribute
	)
	if ct, ok := t.(*ComplexType); ok {
		uses, wildcard = ct.AttributeUses, ct.AttributeWildcard
	}

	seen := make(map[QName]bool)
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil || xpath.IsNamespaceDeclaration(a) {
			continue
		}
		name := QName{Namespace: string(a.NamespaceURI()), Local: string(a.LocalName())}
		attrName := string(a.NodeName())
		value := string(a.NodeValue())
		if name.Namespace == XSINamespace && isXSIAttribute(name.Local) {
			continue
		}

		if use := findUse(uses, name); use != nil {
			seen[name] = true
			v.validateAttributeValue(elem, attrName, use, value)
			continue
		}

		if wildcard == nil || !wildcard.Allows(name.Namespace) {
			v.report(elem, attrName, "cvc-complex-type.3.2.2", "The '%s' attribute is not declared.", name.Qualified())
			continue
		}
		if wildcard.ProcessContents == SkipProcess {
			continue
		}
		if decl := v.schema.LookupAttribute(name); decl != nil {
			v.validateAttributeValue(elem, attrName, decl, value)
		} else if wildcard.ProcessContents == StrictProcess {
			v.report(elem, attrName, "cvc-wildcard.2", "The '%s' attribute is not declared.", name.Qualified())
		}
	}

	for _, use := range uses {
		if use.Use == RequiredUse && !seen[use.Name] {
			v.report(elem, "", "cvc-complex-type.4", "The required attribute '%s' is missing.", use.Name.Qualified())
		}
	}
}

func findUse(uses []*AttributeDecl, name QName) *AttributeDecl {
	for _, u := range uses {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func (v *Validator) validateAttributeValue(elem xmldom.Element, attrName string, decl *AttributeDecl, value string) {
	st := decl.Type
	if st == nil {
		st = anySimpleType()
	}
	norm, err := st.check(value)
	if err != nil {
		v.report(elem, attrName, "cvc-attribute.3", "The '%s' attribute is invalid - %s", decl.Name.Qualified(), err.Error())
		return
	}
	v.add(ValidateAttributeFixed(elem, attrName, decl, value))
	v.trackIDs(elem, attrName, st, norm)
}

// trackIDs records ID values and IDREF references of a valid value.
func (v *Validator) trackIDs(elem xmldom.Element, attrName string, st *SimpleType, norm string) {
	switch st.idKind() {
	case idValue:
		if _, dup := v.ids[norm]; dup {
			v.report(elem, attrName, "cvc-id.2", "'%s' is already used as an ID.", norm)
			return
		}
		v.ids[norm] = elem
	case idrefValue:
		v.idRefs = append(v.idRefs, idref{value: norm, elem: elem, attr: attrName})
	case idrefsValue:
		for _, item := range strings.Fields(norm) {
			v.idRefs = append(v.idRefs, idref{value: item, elem: elem, attr: attrName})
		}
	}
}

// validateContent checks the children and text of elem against t.
func (v *Validator) validateContent(elem xmldom.Element, decl *ElementDecl, t Type, scope nsScope) {
	children := elementChildren(elem)
	text, textAfter := textContent(elem)
	name := describeName(nameOf(elem))

	if st := valueType(t); st != nil {
		if len(children) > 0 {
			v.report(children[0], "", "cvc-type.3.1.2", "The element %s cannot contain child element %s because the parent element's content model is text only.", name, describeName(nameOf(children[0])))
			return
		}
		value := elementValue(decl, text, text == "")
		norm, err := st.check(value)
		if err != nil {
			v.report(elem, "", "cvc-type.3.1.3", "The '%s' element is invalid - %s", nameOf(elem).Qualified(), err.Error())
			return
		}
		v.add(ValidateElementFixed(elem, decl, st, value))
		v.trackIDs(elem, "", st, norm)
		return
	}

	ct, ok := t.(*ComplexType)
	if !ok {
		return
	}

	switch ct.ContentType {
	case EmptyContent:
		if len(children) > 0 {
			v.report(children[0], "", "cvc-complex-type.2.1", "The element %s cannot contain child element %s because the parent element's content model is empty.", name, describeName(nameOf(children[0])))
			return
		}
		if textAfter >= 0 {
			v.report(elem, "", "cvc-complex-type.2.1", "The element %s cannot contain text. Content model is empty.", name)
		}
		return
	case ElementOnlyContent:
		if textAfter >= 0 {
			msg := fmt.Sprintf("The element %s cannot contain text.", name)
			if expected := expectedAt(v.schema, ct.Particle, children[:textAfter]); len(expected) > 0 {
				msg += " List of possible elements expected: " + describeExpected(expected) + "."
			}
			v.violations = append(v.violations, Violation{
				Element:  elem,
				Code:     "cvc-complex-type.2.3",
				Message:  msg,
				Position: positionOf(elem, ""),
			})
		}
	case MixedContent:
		if len(children) == 0 {
			v.add(ValidateElementFixed(elem, decl, nil, elementValue(decl, text, text == "")))
		}
	}

	if ct.Particle == nil {
		if len(children) > 0 {
			v.report(children[0], "", "cvc-complex-type.2.1", "The element %s cannot contain child element %s because the parent element's content model is empty.", name, describeName(nameOf(children[0])))
		}
		return
	}

	bindings, failure := matchContent(v.schema, ct.Particle, children)
	if failure != nil {
		v.validateChildren(children, failure.Matched, scope)
		v.reportContentFailure(elem, name, children, failure)
		return
	}
	v.validateChildren(children, bindings, scope)
}

func (v *Validator) reportContentFailure(elem xmldom.Element, name string, children []xmldom.Element, failure *contentFailure) {
	suffix := ""
	if len(failure.Expected) > 0 {
		suffix = " List of possible elements expected: " + describeExpected(failure.Expected) + "."
	}
	if failure.Index < 0 {
		v.violations = append(v.violations, Violation{
			Element:  elem,
			Code:     "cvc-complex-type.2.4.b",
			Message:  fmt.Sprintf("The element %s has incomplete content.%s", name, suffix),
			Expected: expectedNames(failure.Expected),
			Position: positionOf(elem, ""),
		})
		return
	}
	child := children[failure.Index]
	v.violations = append(v.violations, Violation{
		Element:  child,
		Code:     "cvc-complex-type.2.4.a",
		Message:  fmt.Sprintf("The element %s has invalid child element %s.%s", name, describeName(nameOf(child)), suffix),
		Expected: expectedNames(failure.Expected),
		Actual:   nameOf(child).Qualified(),
		Position: positionOf(child, ""),
	})
}

// validateChildren descends into children using the particles they were
// bound to. Children without a binding are left alone.
func (v *Validator) validateChildren(children []xmldom.Element, bindings []*binding, scope nsScope) {
	for i, b := range bindings {
		if b == nil || i >= len(children) {
			continue
		}
		switch {
		case b.decl != nil:
			v.validateElement(children[i], b.decl, scope)
		case b.wildcard != nil:
			v.validateWildcardChild(children[i], b.wildcard.ProcessContents, scope)
		}
	}
}

// validateWildcardChild validates an element matched by a wildcard
// according to its processContents mode.
func (v *Validator) validateWildcardChild(elem xmldom.Element, mode ProcessContentsMode, scope nsScope) {
	if mode == SkipProcess {
		return
	}
	if decl := v.schema.ElementDecls[nameOf(elem)]; decl != nil {
		v.validateElement(elem, decl, scope)
		return
	}
	if _, ok := xsiAttr(elem, "type"); ok {
		v.validateElement(elem, &ElementDecl{Name: nameOf(elem), Type: AnyType}, scope)
		return
	}
	if mode == StrictProcess {
		v.report(elem, "", "cvc-elt.1", "The '%s' element is not declared.", nameOf(elem).Qualified())
		return
	}

	// Lax: validate whatever has a global declaration.
	scope = scope.push(elem)
	v.counter++
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		a := attrs.Item(i)
		if a == nil || xpath.IsNamespaceDeclaration(a) {
			continue
		}
		name := QName{Namespace: string(a.NamespaceURI()), Local: string(a.LocalName())}
		if decl := v.schema.LookupAttribute(name); decl != nil {
			v.validateAttributeValue(elem, string(a.NodeName()), decl, string(a.NodeValue()))
		}
	}
	for _, child := range elementChildren(elem) {
		v.validateWildcardChild(child, LaxProcess, scope)
	}
}
