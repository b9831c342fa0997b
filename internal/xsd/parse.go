package xsd

import (
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-xmlvalidator/internal/xpath"
)

// schemaDoc is one schema document as loaded into a set.
type schemaDoc struct {
	path               string
	uri                string
	targetNamespace    string
	elementQualified   bool
	attributeQualified bool
	// chameleon is set for a no-namespace document included into a
	// namespace; its unqualified references take the including namespace.
	chameleon bool
}

// docParser turns the top-level components of one schema document into
// Schema components. References are recorded by name and resolved when the
// set is compiled.
type docParser struct {
	schema *Schema
	doc    *schemaDoc
	errs   []*SchemaError
}

func (p *docParser) errorf(elem xmldom.Element, format string, args ...any) {
	p.errs = append(p.errs, sourceOf(p.doc.uri, elem).errorf(format, args...))
}

func (p *docParser) src(elem xmldom.Element) source {
	return sourceOf(p.doc.uri, elem)
}

func (p *docParser) qname(elem xmldom.Element, scope nsScope, value string) (QName, bool) {
	name, prefix, ok := scope.resolveQName(value)
	if !ok {
		p.errorf(elem, "'%s' is an undeclared prefix.", prefix)
		return QName{}, false
	}
	if prefix == "" && name.Namespace == "" && p.doc.chameleon {
		name.Namespace = p.doc.targetNamespace
	}
	return name, true
}

// qnameOrZero is qname for optional references: an unresolvable value is
// reported and leaves the zero QName, which later stages treat as absent.
func (p *docParser) qnameOrZero(elem xmldom.Element, scope nsScope, value string) QName {
	q, _ := p.qname(elem, scope, value)
	return q
}

func (p *docParser) name(local string) QName {
	return QName{Namespace: p.doc.targetNamespace, Local: local}
}

func parseOccurs(elem xmldom.Element, name string, defaultValue int) int {
	value := attr(elem, name)
	if value == "" {
		return defaultValue
	}
	if value == "unbounded" {
		return -1
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}

func (p *docParser) parseSchema(root xmldom.Element) {
	scope := newScope().push(root)
	for _, child := range xsdChildren(root) {
		switch string(child.LocalName()) {
		case "element":
			p.parseElement(child, scope, true)
		case "attribute":
			p.parseAttribute(child, scope, true)
		case "simpleType":
			p.parseSimpleType(child, scope, p.name(attr(child, "name")))
		case "complexType":
			p.parseComplexType(child, scope, p.name(attr(child, "name")))
		case "group":
			p.parseGroupDef(child, scope)
		case "attributeGroup":
			p.parseAttributeGroupDef(child, scope)
		}
	}
}

func (p *docParser) registerType(elem xmldom.Element, t Type) {
	name := t.Name()
	if name.Local == "" {
		return
	}
	if _, exists := p.schema.TypeDefs[name]; exists {
		kind := "simpleType"
		if _, ok := t.(*ComplexType); ok {
			kind = "complexType"
		}
		p.errorf(elem, "The %s '%s' has already been declared.", kind, name.Qualified())
		return
	}
	p.schema.TypeDefs[name] = t
}

// parseElement parses an element declaration. Local declarations and
// references are returned as particles.
func (p *docParser) parseElement(elem xmldom.Element, scope nsScope, global bool) Particle {
	scope = scope.push(elem)

	if !global && hasAttr(elem, "ref") {
		ref, ok := p.qname(elem, scope, attr(elem, "ref"))
		er := &ElementRef{
			Ref:    ref,
			MinOcc: parseOccurs(elem, "minOccurs", 1),
			MaxOcc: parseOccurs(elem, "maxOccurs", 1),
			src:    p.src(elem),
		}
		if ok {
			p.schema.elementRefs = append(p.schema.elementRefs, er)
		}
		return er
	}

	local := attr(elem, "name")
	if local == "" {
		return nil
	}

	decl := &ElementDecl{
		MinOcc:   1,
		MaxOcc:   1,
		Global:   global,
		Nillable: parseBool(attr(elem, "nillable")),
		Abstract: parseBool(attr(elem, "abstract")),
		src:      p.src(elem),
	}
	if global || p.qualified(elem, p.doc.elementQualified) {
		decl.Name = p.name(local)
	} else {
		decl.Name = QName{Local: local}
	}
	if !global {
		decl.MinOcc = parseOccurs(elem, "minOccurs", 1)
		decl.MaxOcc = parseOccurs(elem, "maxOccurs", 1)
	}
	if global && hasAttr(elem, "substitutionGroup") {
		decl.SubstitutionGroup = p.qnameOrZero(elem, scope, attr(elem, "substitutionGroup"))
	}
	if hasAttr(elem, "default") {
		decl.HasDefault = true
		decl.Default = string(elem.GetAttribute("default"))
	}
	if hasAttr(elem, "fixed") {
		decl.HasFixed = true
		decl.Fixed = string(elem.GetAttribute("fixed"))
	}
	if hasAttr(elem, "type") {
		decl.TypeName = p.qnameOrZero(elem, scope, attr(elem, "type"))
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "simpleType":
			decl.Type = p.parseSimpleType(child, scope, QName{})
		case "complexType":
			decl.Type = p.parseComplexType(child, scope, QName{})
		case "key":
			p.addConstraint(decl, child, scope, KeyConstraint)
		case "keyref":
			p.addConstraint(decl, child, scope, KeyRefConstraint)
		case "unique":
			p.addConstraint(decl, child, scope, UniqueConstraint)
		}
	}

	p.schema.elements = append(p.schema.elements, decl)
	if global {
		if _, exists := p.schema.ElementDecls[decl.Name]; exists {
			p.errorf(elem, "The global element '%s' has already been declared.", decl.Name.Qualified())
		} else {
			p.schema.ElementDecls[decl.Name] = decl
		}
	}
	return decl
}

// qualified applies the form attribute, falling back to the schema default.
func (p *docParser) qualified(elem xmldom.Element, byDefault bool) bool {
	switch attr(elem, "form") {
	case "qualified":
		return true
	case "unqualified":
		return false
	}
	return byDefault
}

func (p *docParser) addConstraint(decl *ElementDecl, elem xmldom.Element, scope nsScope, kind IdentityConstraintKind) {
	scope = scope.push(elem)
	ic := &IdentityConstraint{
		Name: p.name(attr(elem, "name")),
		Kind: kind,
		src:  p.src(elem),
	}
	if kind == KeyRefConstraint {
		ic.ReferName = p.qnameOrZero(elem, scope, attr(elem, "refer"))
	}

	for _, child := range xsdChildren(elem) {
		childScope := scope.push(child)
		expr := attr(child, "xpath")
		switch string(child.LocalName()) {
		case "selector":
			sel, err := xpath.CompileSelector(expr, childScope.resolver())
			if err != nil {
				p.errorf(child, "The XPath '%s' of the selector is invalid: %v.", expr, err)
				continue
			}
			ic.Selector = sel
		case "field":
			field, err := xpath.CompileField(expr, childScope.resolver())
			if err != nil {
				p.errorf(child, "The XPath '%s' of the field is invalid: %v.", expr, err)
				continue
			}
			ic.Fields = append(ic.Fields, field)
		}
	}
	if ic.Selector == nil || len(ic.Fields) == 0 {
		// The structure check reports the missing selector or field.
		return
	}

	if _, exists := p.schema.Constraints[ic.Name]; exists {
		p.errorf(elem, "The identity constraint '%s' has already been declared.", ic.Name.Qualified())
		return
	}
	p.schema.Constraints[ic.Name] = ic
	p.schema.constraints = append(p.schema.constraints, ic)
	decl.Constraints = append(decl.Constraints, ic)
}

func (p *docParser) parseSimpleType(elem xmldom.Element, scope nsScope, name QName) *SimpleType {
	scope = scope.push(elem)
	st := &SimpleType{QName: name, src: p.src(elem)}

	for _, child := range xsdChildren(elem) {
		childScope := scope.push(child)
		switch string(child.LocalName()) {
		case "restriction":
			st.restriction = true
			if hasAttr(child, "base") {
				st.BaseName = p.qnameOrZero(child, childScope, attr(child, "base"))
			}
			p.parseRestrictionBody(st, child, childScope)
		case "list":
			st.Variety = ListVariety
			if hasAttr(child, "itemType") {
				st.ItemName = p.qnameOrZero(child, childScope, attr(child, "itemType"))
			}
			for _, inline := range xsdChildren(child) {
				if string(inline.LocalName()) == "simpleType" {
					st.Item = p.parseSimpleType(inline, childScope, QName{})
				}
			}
		case "union":
			st.Variety = UnionVariety
			for _, member := range strings.Fields(attr(child, "memberTypes")) {
				if q, ok := p.qname(child, childScope, member); ok {
					st.MemberNames = append(st.MemberNames, q)
				}
			}
			for _, inline := range xsdChildren(child) {
				if string(inline.LocalName()) == "simpleType" {
					st.Members = append(st.Members, p.parseSimpleType(inline, childScope, QName{}))
				}
			}
		}
	}

	p.schema.simpleTypes = append(p.schema.simpleTypes, st)
	p.registerType(elem, st)
	return st
}

// parseRestrictionBody reads the inline base type and the facets of a
// restriction into st.
func (p *docParser) parseRestrictionBody(st *SimpleType, elem xmldom.Element, scope nsScope) {
	for _, child := range xsdChildren(elem) {
		local := string(child.LocalName())
		switch local {
		case "simpleType":
			st.Base = p.parseSimpleType(child, scope, QName{})
		case "whiteSpace":
			value := attr(child, "value")
			switch value {
			case WhiteSpacePreserve, WhiteSpaceReplace, WhiteSpaceCollapse:
				st.WhiteSpace = value
			default:
				p.errorf(child, "The value '%s' is not valid for the 'whiteSpace' facet.", value)
			}
		case "length", "minLength", "maxLength", "pattern", "enumeration",
			"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
			"totalDigits", "fractionDigits":
			value := string(child.GetAttribute("value"))
			if local != "pattern" && local != "enumeration" {
				value = attr(child, "value")
			}
			f, err := ParseFacet(local, value)
			if err != nil {
				p.errorf(child, "%s", err.Error())
				continue
			}
			st.Facets = mergeFacet(st.Facets, f)
		}
	}
}

func (p *docParser) parseComplexType(elem xmldom.Element, scope nsScope, name QName) *ComplexType {
	scope = scope.push(elem)
	ct := &ComplexType{
		QName:    name,
		Abstract: parseBool(attr(elem, "abstract")),
		Mixed:    parseBool(attr(elem, "mixed")),
		src:      p.src(elem),
	}

	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "simpleContent":
			ct.SimpleContent = true
			p.parseContentDerivation(ct, child, scope)
		case "complexContent":
			if hasAttr(child, "mixed") {
				ct.Mixed = parseBool(attr(child, "mixed"))
			}
			p.parseContentDerivation(ct, child, scope)
		case "sequence", "choice", "all", "group":
			ct.Content = p.parseParticle(child, scope)
		default:
			p.parseAttributeChild(child, scope, &ct.Attributes, &ct.AttributeGroup, &ct.AnyAttribute)
		}
	}

	p.schema.complexTypes = append(p.schema.complexTypes, ct)
	p.registerType(elem, ct)
	return ct
}

func (p *docParser) parseContentDerivation(ct *ComplexType, elem xmldom.Element, scope nsScope) {
	scope = scope.push(elem)
	for _, child := range xsdChildren(elem) {
		childScope := scope.push(child)
		switch string(child.LocalName()) {
		case "extension":
			ct.Derivation = Extension
		case "restriction":
			ct.Derivation = Restriction
		default:
			continue
		}
		ct.BaseName = p.qnameOrZero(child, childScope, attr(child, "base"))

		if ct.SimpleContent && ct.Derivation == Restriction {
			facets := &SimpleType{restriction: true, src: p.src(child)}
			p.parseRestrictionBody(facets, child, childScope)
			ct.ContentFacets = facets
		}

		for _, part := range xsdChildren(child) {
			switch string(part.LocalName()) {
			case "sequence", "choice", "all", "group":
				ct.Content = p.parseParticle(part, childScope)
			default:
				p.parseAttributeChild(part, childScope, &ct.Attributes, &ct.AttributeGroup, &ct.AnyAttribute)
			}
		}
	}
}

// parseAttributeChild handles the attribute-related children shared by
// complex types, derivations and attribute groups.
func (p *docParser) parseAttributeChild(elem xmldom.Element, scope nsScope, attrs *[]*AttributeDecl, groups *[]QName, wildcard **AnyAttribute) {
	switch string(elem.LocalName()) {
	case "attribute":
		if a := p.parseAttribute(elem, scope, false); a != nil {
			*attrs = append(*attrs, a)
		}
	case "attributeGroup":
		if ref, ok := p.qname(elem, scope.push(elem), attr(elem, "ref")); ok {
			*groups = append(*groups, ref)
		}
	case "anyAttribute":
		*wildcard = &AnyAttribute{
			Namespace:       attr(elem, "namespace"),
			ProcessContents: processMode(attr(elem, "processContents")),
			TargetNamespace: p.doc.targetNamespace,
		}
	}
}

func (p *docParser) parseParticle(elem xmldom.Element, scope nsScope) Particle {
	switch string(elem.LocalName()) {
	case "element":
		return p.parseElement(elem, scope, false)
	case "group":
		scope = scope.push(elem)
		ref, ok := p.qname(elem, scope, attr(elem, "ref"))
		gr := &GroupRef{
			Ref:    ref,
			MinOcc: parseOccurs(elem, "minOccurs", 1),
			MaxOcc: parseOccurs(elem, "maxOccurs", 1),
			src:    p.src(elem),
		}
		if ok {
			p.schema.groupRefs = append(p.schema.groupRefs, gr)
		}
		return gr
	case "sequence", "choice", "all":
		return p.parseModelGroup(elem, scope)
	case "any":
		return &AnyElement{
			Namespace:       attr(elem, "namespace"),
			ProcessContents: processMode(attr(elem, "processContents")),
			TargetNamespace: p.doc.targetNamespace,
			MinOcc:          parseOccurs(elem, "minOccurs", 1),
			MaxOcc:          parseOccurs(elem, "maxOccurs", 1),
		}
	}
	return nil
}

func (p *docParser) parseModelGroup(elem xmldom.Element, scope nsScope) *ModelGroup {
	scope = scope.push(elem)
	mg := &ModelGroup{
		Kind:   ModelGroupKind(elem.LocalName()),
		MinOcc: parseOccurs(elem, "minOccurs", 1),
		MaxOcc: parseOccurs(elem, "maxOccurs", 1),
		src:    p.src(elem),
	}
	for _, child := range xsdChildren(elem) {
		if particle := p.parseParticle(child, scope); particle != nil {
			mg.Particles = append(mg.Particles, particle)
		}
	}
	return mg
}

func (p *docParser) parseGroupDef(elem xmldom.Element, scope nsScope) {
	scope = scope.push(elem)
	name := p.name(attr(elem, "name"))

	mg := &ModelGroup{Kind: SequenceGroup, src: p.src(elem)}
	for _, child := range xsdChildren(elem) {
		switch string(child.LocalName()) {
		case "sequence", "choice", "all":
			mg = p.parseModelGroup(child, scope)
		}
	}
	mg.Name = name
	mg.MinOcc, mg.MaxOcc = 1, 1

	if _, exists := p.schema.Groups[name]; exists {
		p.errorf(elem, "The group '%s' has already been declared.", name.Qualified())
		return
	}
	p.schema.Groups[name] = mg
	p.schema.groups = append(p.schema.groups, mg)
}

func (p *docParser) parseAttribute(elem xmldom.Element, scope nsScope, global bool) *AttributeDecl {
	scope = scope.push(elem)
	a := &AttributeDecl{Use: OptionalUse, Global: global, src: p.src(elem)}

	if !global {
		if use := attr(elem, "use"); use != "" {
			a.Use = AttributeUse(use)
		}
	}
	if hasAttr(elem, "default") {
		a.HasDefault = true
		a.Default = string(elem.GetAttribute("default"))
	}
	if hasAttr(elem, "fixed") {
		a.HasFixed = true
		a.Fixed = string(elem.GetAttribute("fixed"))
	}

	if !global && hasAttr(elem, "ref") {
		ref, ok := p.qname(elem, scope, attr(elem, "ref"))
		if !ok {
			return nil
		}
		a.Ref = ref
		a.Name = ref
		p.schema.attributes = append(p.schema.attributes, a)
		return a
	}

	local := attr(elem, "name")
	if local == "" {
		return nil
	}
	if global || p.qualified(elem, p.doc.attributeQualified) {
		a.Name = p.name(local)
	} else {
		a.Name = QName{Local: local}
	}
	if hasAttr(elem, "type") {
		a.TypeName = p.qnameOrZero(elem, scope, attr(elem, "type"))
	}
	for _, child := range xsdChildren(elem) {
		if string(child.LocalName()) == "simpleType" {
			a.Type = p.parseSimpleType(child, scope, QName{})
		}
	}

	p.schema.attributes = append(p.schema.attributes, a)
	if global {
		if _, exists := p.schema.AttributeDecls[a.Name]; exists {
			p.errorf(elem, "The global attribute '%s' has already been declared.", a.Name.Qualified())
		} else {
			p.schema.AttributeDecls[a.Name] = a
		}
	}
	return a
}

func (p *docParser) parseAttributeGroupDef(elem xmldom.Element, scope nsScope) {
	scope = scope.push(elem)
	ag := &AttributeGroup{Name: p.name(attr(elem, "name")), src: p.src(elem)}
	for _, child := range xsdChildren(elem) {
		p.parseAttributeChild(child, scope, &ag.Attributes, &ag.Refs, &ag.AnyAttribute)
	}

	if _, exists := p.schema.AttributeGroups[ag.Name]; exists {
		p.errorf(elem, "The attributeGroup '%s' has already been declared.", ag.Name.Qualified())
		return
	}
	p.schema.AttributeGroups[ag.Name] = ag
	p.schema.attrGroups = append(p.schema.attrGroups, ag)
}
