package xsd

// AnyType is xs:anyType, the root of the type hierarchy. It accepts any
// attributes and any mixed content, validating what it can laxly.
var AnyType = &ComplexType{
	QName:       QName{Namespace: XSDNamespace, Local: "anyType"},
	Mixed:       true,
	ContentType: MixedContent,
	Particle: &ModelGroup{
		Kind: SequenceGroup,
		Particles: []Particle{
			&AnyElement{Namespace: "##any", ProcessContents: LaxProcess, MinOcc: 0, MaxOcc: -1},
		},
		MinOcc: 1,
		MaxOcc: 1,
		state:  resolved,
	},
	AttributeWildcard: &AnyAttribute{Namespace: "##any", ProcessContents: LaxProcess},
	state:             resolved,
}

func anySimpleType() *SimpleType {
	return builtinTypes["anySimpleType"]
}

// compiler binds the references recorded by the parser and computes the
// effective content and attributes of complex types. References that cannot
// be resolved are reported and replaced by xs:anyType or xs:anySimpleType
// so the rest of the set stays usable.
type compiler struct {
	schema *Schema
	errs   []*SchemaError
}

func (c *compiler) errorf(at source, format string, args ...any) {
	c.errs = append(c.errs, at.errorf(format, args...))
}

// compile resolves every component added since the last call.
func compile(s *Schema) []*SchemaError {
	c := &compiler{schema: s}

	for _, st := range s.simpleTypes {
		c.simpleType(st)
	}
	for _, a := range s.attributes {
		c.attribute(a)
	}
	for _, ag := range s.attrGroups {
		c.attributeGroup(ag)
	}
	for _, gr := range s.groupRefs {
		c.groupRef(gr)
	}
	for _, mg := range s.groups {
		c.modelGroup(mg)
	}
	for _, e := range s.elements {
		c.element(e)
	}
	for _, er := range s.elementRefs {
		c.elementRef(er)
	}
	for _, ct := range s.complexTypes {
		c.complexType(ct)
	}
	c.substitutionGroups()
	for _, ic := range s.constraints {
		c.constraint(ic)
	}

	// References are bound once; the component lists stay for later
	// compilations, which skip what is already resolved.
	s.elementRefs = nil
	s.groupRefs = nil
	s.constraints = nil
	return c.errs
}

// lookupSimpleType resolves a type name that must denote a simple type.
func (c *compiler) lookupSimpleType(at source, name QName) *SimpleType {
	t := c.schema.LookupType(name)
	switch t := t.(type) {
	case nil:
		c.errorf(at, "Type '%s' is not declared.", name.Qualified())
	case *SimpleType:
		return t
	default:
		c.errorf(at, "Type '%s' is not a simple type.", name.Qualified())
	}
	return anySimpleType()
}

// simpleType resolves st and everything it is derived from. It reports false
// when st is part of a circular derivation.
func (c *compiler) simpleType(st *SimpleType) bool {
	if st == nil || st.state == resolved {
		return true
	}
	if st.state == resolving {
		c.errorf(st.src, "The simpleType '%s' has a circular definition.", st.QName.Qualified())
		return false
	}
	st.state = resolving
	defer func() { st.state = resolved }()

	switch st.Variety {
	case ListVariety:
		if st.Item == nil {
			if st.ItemName.IsZero() {
				st.Item = anySimpleType()
			} else {
				st.Item = c.lookupSimpleType(st.src, st.ItemName)
			}
		}
		if !c.simpleType(st.Item) {
			st.Item = anySimpleType()
		}
		if st.Item.Variety == ListVariety {
			c.errorf(st.src, "A list type cannot have a list type as its item type.")
		}
		return true

	case UnionVariety:
		members := make([]*SimpleType, 0, len(st.MemberNames)+len(st.Members))
		for _, name := range st.MemberNames {
			members = append(members, c.lookupSimpleType(st.src, name))
		}
		members = append(members, st.Members...)
		for i, m := range members {
			if !c.simpleType(m) {
				members[i] = anySimpleType()
			}
		}
		st.Members = members
		return true
	}

	if !st.restriction {
		return true
	}
	if st.Base == nil {
		if st.BaseName.IsZero() {
			st.Base = anySimpleType()
		} else {
			st.Base = c.lookupSimpleType(st.src, st.BaseName)
		}
	}
	if !c.simpleType(st.Base) {
		st.Base = anySimpleType()
	}

	base := st.Base
	st.Variety = base.Variety
	st.Item = base.Item
	st.Members = base.Members
	c.checkFacets(st)
	return true
}

// checkFacets verifies that the facet values of one restriction step are
// valid for its base type.
func (c *compiler) checkFacets(st *SimpleType) {
	minLength, maxLength := -1, -1
	for _, f := range st.Facets {
		switch f := f.(type) {
		case *boundFacet:
			if _, err := st.Base.check(f.Value); err != nil {
				c.errorf(st.src, "The '%s' facet is invalid - %s", f.Name(), err.Error())
			}
		case *EnumerationFacet:
			for _, v := range f.Values {
				if _, err := st.Base.check(v); err != nil {
					c.errorf(st.src, "Enumeration facet value '%s' is invalid - %s", v, err.Error())
				}
			}
		case *MinLengthFacet:
			minLength = f.Value
		case *MaxLengthFacet:
			maxLength = f.Value
		}
	}
	if minLength >= 0 && maxLength >= 0 && minLength > maxLength {
		c.errorf(st.src, "It is an error for minLength to be greater than maxLength.")
	}
}

func (c *compiler) attribute(a *AttributeDecl) {
	if a == nil || a.state != unresolved {
		return
	}
	a.state = resolving
	defer func() { a.state = resolved }()

	switch {
	case !a.Ref.IsZero():
		g := c.schema.LookupAttribute(a.Ref)
		if g == nil {
			c.errorf(a.src, "The '%s' attribute is not declared.", a.Ref.Qualified())
			a.Type = anySimpleType()
			return
		}
		c.attribute(g)
		a.Type = g.Type
		if !a.HasFixed && g.HasFixed {
			a.Fixed, a.HasFixed = g.Fixed, true
		}
		if !a.HasDefault && !a.HasFixed && g.HasDefault {
			a.Default, a.HasDefault = g.Default, true
		}
	case a.Type != nil:
		if !c.simpleType(a.Type) {
			a.Type = anySimpleType()
		}
	case a.TypeName.IsZero():
		a.Type = anySimpleType()
	default:
		a.Type = c.lookupSimpleType(a.src, a.TypeName)
		c.simpleType(a.Type)
	}

	if a.HasDefault {
		if _, err := a.Type.check(a.Default); err != nil {
			c.errorf(a.src, "The 'default' attribute is invalid - %s", err.Error())
		}
	}
	if a.HasFixed {
		if _, err := a.Type.check(a.Fixed); err != nil {
			c.errorf(a.src, "The 'fixed' attribute is invalid - %s", err.Error())
		}
	}
}

// attributeUses flattens declared attributes and referenced attribute
// groups into a list of uses and a wildcard.
func (c *compiler) attributeUses(at source, attrs []*AttributeDecl, refs []QName, wildcard *AnyAttribute) ([]*AttributeDecl, *AnyAttribute) {
	var uses []*AttributeDecl
	for _, a := range attrs {
		c.attribute(a)
		uses = addUse(uses, a)
	}
	for _, ref := range refs {
		g := c.schema.AttributeGroups[ref]
		if g == nil {
			c.errorf(at, "Reference to undeclared attribute group '%s'.", ref.Qualified())
			continue
		}
		if !c.attributeGroup(g) {
			continue
		}
		for _, a := range g.uses {
			uses = addUse(uses, a)
		}
		if wildcard == nil {
			wildcard = g.wildcard
		}
	}
	return uses, wildcard
}

// addUse appends a, replacing an earlier use of the same name.
func addUse(uses []*AttributeDecl, a *AttributeDecl) []*AttributeDecl {
	for i, u := range uses {
		if u.Name == a.Name {
			uses[i] = a
			return uses
		}
	}
	return append(uses, a)
}

func (c *compiler) attributeGroup(ag *AttributeGroup) bool {
	switch ag.state {
	case resolved:
		return true
	case resolving:
		c.errorf(ag.src, "Circular attribute group reference '%s'.", ag.Name.Qualified())
		return false
	}
	ag.state = resolving
	ag.uses, ag.wildcard = c.attributeUses(ag.src, ag.Attributes, ag.Refs, ag.AnyAttribute)
	ag.state = resolved
	return true
}

func (c *compiler) groupRef(gr *GroupRef) {
	if gr.Group != nil {
		return
	}
	if gr.Group = c.schema.Groups[gr.Ref]; gr.Group == nil {
		c.errorf(gr.src, "Reference to undeclared model group '%s'.", gr.Ref.Qualified())
	}
}

// modelGroup checks that a named group does not contain itself. Offending
// references are unbound so content matching terminates.
func (c *compiler) modelGroup(mg *ModelGroup) bool {
	switch mg.state {
	case resolved:
		return true
	case resolving:
		return false
	}
	mg.state = resolving
	defer func() { mg.state = resolved }()
	c.walkGroup(mg, mg)
	return true
}

func (c *compiler) walkGroup(owner, mg *ModelGroup) {
	for _, p := range mg.Particles {
		switch p := p.(type) {
		case *GroupRef:
			if p.Group == nil {
				continue
			}
			if !c.modelGroup(p.Group) {
				c.errorf(p.src, "Circular group reference '%s'.", p.Ref.Qualified())
				p.Group = nil
			}
		case *ModelGroup:
			c.walkGroup(owner, p)
		}
	}
}

func (c *compiler) element(e *ElementDecl) bool {
	switch e.state {
	case resolved:
		return true
	case resolving:
		c.errorf(e.src, "Circular substitution group affiliation for element '%s'.", e.Name.Qualified())
		return false
	}
	e.state = resolving
	defer func() { e.state = resolved }()

	if !e.SubstitutionGroup.IsZero() {
		head := c.schema.ElementDecls[e.SubstitutionGroup]
		switch {
		case head == nil:
			c.errorf(e.src, "The '%s' element is not declared.", e.SubstitutionGroup.Qualified())
		case c.element(head):
			e.Head = head
		}
	}

	switch {
	case e.Type != nil:
	case !e.TypeName.IsZero():
		if e.Type = c.schema.LookupType(e.TypeName); e.Type == nil {
			c.errorf(e.src, "Type '%s' is not declared.", e.TypeName.Qualified())
			e.Type = AnyType
		}
	case e.Head != nil:
		e.Type = e.Head.Type
	default:
		e.Type = AnyType
	}
	c.resolveType(e.Type)

	if e.Head != nil && !derivesFrom(e.Type, e.Head.Type) {
		c.errorf(e.src, "The type of element '%s' must be derived from the type of the substitution group head '%s'.", e.Name.Qualified(), e.Head.Name.Qualified())
	}

	if st := valueType(e.Type); st != nil {
		if e.HasDefault {
			if _, err := st.check(e.Default); err != nil {
				c.errorf(e.src, "The 'default' attribute is invalid - %s", err.Error())
			}
		}
		if e.HasFixed {
			if _, err := st.check(e.Fixed); err != nil {
				c.errorf(e.src, "The 'fixed' attribute is invalid - %s", err.Error())
			}
		}
	} else if ct, ok := e.Type.(*ComplexType); ok && (e.HasDefault || e.HasFixed) && ct.ContentType != MixedContent {
		c.errorf(e.src, "The element cannot have a value constraint because its type is not simple or mixed.")
	}
	return true
}

func (c *compiler) resolveType(t Type) {
	switch t := t.(type) {
	case *SimpleType:
		c.simpleType(t)
	case *ComplexType:
		c.complexType(t)
	}
}

func (c *compiler) elementRef(er *ElementRef) {
	if er.Decl != nil {
		return
	}
	if er.Decl = c.schema.ElementDecls[er.Ref]; er.Decl == nil {
		c.errorf(er.src, "The '%s' element is not declared.", er.Ref.Qualified())
	}
}

// complexType computes the effective content and attribute uses of ct. It
// reports false when ct is part of a circular derivation.
func (c *compiler) complexType(ct *ComplexType) bool {
	switch ct.state {
	case resolved:
		return true
	case resolving:
		c.errorf(ct.src, "The complexType '%s' has a circular definition.", ct.QName.Qualified())
		return false
	}
	ct.state = resolving
	defer func() { ct.state = resolved }()

	var base *ComplexType
	switch {
	case ct.Derivation == NoDerivation:
		ct.Base = AnyType
	default:
		t := c.schema.LookupType(ct.BaseName)
		if t == nil {
			if !ct.BaseName.IsZero() {
				c.errorf(ct.src, "Type '%s' is not declared.", ct.BaseName.Qualified())
			}
			if ct.SimpleContent {
				t = anySimpleType()
			} else {
				t = AnyType
			}
		}
		switch bt := t.(type) {
		case *ComplexType:
			if !c.complexType(bt) {
				bt = AnyType
			}
			base = bt
			ct.Base = bt
		case *SimpleType:
			c.simpleType(bt)
			ct.Base = bt
		}
	}

	if ct.SimpleContent {
		c.simpleContent(ct, base)
	} else {
		c.complexContent(ct, base)
	}
	c.effectiveAttributes(ct, base)
	return true
}

func (c *compiler) simpleContent(ct *ComplexType, base *ComplexType) {
	ct.ContentType = SimpleContentKind
	ct.Particle = nil

	if st, ok := ct.Base.(*SimpleType); ok {
		if ct.Derivation == Restriction {
			c.errorf(ct.src, "A complexType with simpleContent cannot restrict the simple type '%s'.", st.DisplayName())
		}
		ct.SimpleType = st
		return
	}

	var content *SimpleType
	switch {
	case base == nil:
	case base.ContentType == SimpleContentKind:
		content = base.SimpleType
	case base.ContentType == MixedContent && ct.Derivation == Restriction && ct.ContentFacets != nil && ct.ContentFacets.Base != nil:
	default:
		c.errorf(ct.src, "The base type '%s' of a complexType with simpleContent must have simple content.", base.QName.Qualified())
	}
	if content == nil {
		content = anySimpleType()
	}

	if ct.Derivation == Restriction && ct.ContentFacets != nil {
		facets := ct.ContentFacets
		if facets.Base == nil {
			facets.Base = content
		}
		c.simpleType(facets)
		content = facets
	}
	ct.SimpleType = content
}

// isEmptyParticle reports whether p can only ever match nothing.
func isEmptyParticle(p Particle) bool {
	switch p := p.(type) {
	case nil:
		return true
	case *ModelGroup:
		if p.MaxOcc == 0 {
			return true
		}
		for _, child := range p.Particles {
			if !isEmptyParticle(child) {
				return false
			}
		}
		return true
	case *GroupRef:
		return p.MaxOcc == 0 || p.Group == nil || isEmptyParticle(p.Group)
	}
	return p.MaxOccurs() == 0
}

func (c *compiler) complexContent(ct *ComplexType, base *ComplexType) {
	own := ct.Content
	if isEmptyParticle(own) {
		own = nil
	}
	mixed := ct.Mixed

	switch {
	case base == nil:
		if _, ok := ct.Base.(*SimpleType); ok {
			c.errorf(ct.src, "The base type of a complexType with complexContent must be a complex type.")
			ct.Base = AnyType
		}
		ct.Particle = own
	case ct.Derivation == Extension:
		if base.ContentType == SimpleContentKind {
			c.errorf(ct.src, "The complexType '%s' with simple content cannot be extended by complexContent.", base.QName.Qualified())
		}
		switch {
		case own == nil:
			ct.Particle = base.Particle
			mixed = base.ContentType == MixedContent
		case base.Particle == nil:
			ct.Particle = own
		default:
			if (base.ContentType == MixedContent) != mixed {
				c.errorf(ct.src, "The derived type and the base type must have the same content type.")
			}
			ct.Particle = &ModelGroup{
				Kind:      SequenceGroup,
				Particles: []Particle{base.Particle, own},
				MinOcc:    1,
				MaxOcc:    1,
				state:     resolved,
			}
		}
	default:
		ct.Particle = own
	}

	switch {
	case ct.Particle == nil && mixed:
		ct.ContentType = MixedContent
	case ct.Particle == nil:
		ct.ContentType = EmptyContent
	case mixed:
		ct.ContentType = MixedContent
	default:
		ct.ContentType = ElementOnlyContent
	}
}

// effectiveAttributes merges ct's own attribute uses with those inherited
// from base. Extension adds to the base; restriction may override or
// prohibit base uses.
func (c *compiler) effectiveAttributes(ct *ComplexType, base *ComplexType) {
	own, wildcard := c.attributeUses(ct.src, ct.Attributes, ct.AttributeGroup, ct.AnyAttribute)

	var uses []*AttributeDecl
	if base != nil && base != AnyType {
		uses = append(uses, base.AttributeUses...)
	}
	for _, a := range own {
		if a.Use == ProhibitedUse {
			uses = removeUse(uses, a.Name)
			continue
		}
		uses = addUse(uses, a)
	}
	ct.AttributeUses = uses

	if wildcard == nil && ct.Derivation == Extension && base != nil {
		wildcard = base.AttributeWildcard
	}
	ct.AttributeWildcard = wildcard
}

func removeUse(uses []*AttributeDecl, name QName) []*AttributeDecl {
	out := uses[:0:0]
	for _, u := range uses {
		if u.Name != name {
			out = append(out, u)
		}
	}
	return out
}

// substitutionGroups rebuilds the transitive member lists of every head.
func (c *compiler) substitutionGroups() {
	s := c.schema
	s.SubstitutionGroups = make(map[QName][]*ElementDecl)
	for _, e := range s.elements {
		if !e.Global || e.Head == nil {
			continue
		}
		seen := map[*ElementDecl]bool{e: true}
		for h := e.Head; h != nil && !seen[h]; h = h.Head {
			seen[h] = true
			s.SubstitutionGroups[h.Name] = append(s.SubstitutionGroups[h.Name], e)
		}
	}
}

func (c *compiler) constraint(ic *IdentityConstraint) {
	if ic.Kind != KeyRefConstraint || ic.Refer != nil || ic.ReferName.IsZero() {
		return
	}
	refer := c.schema.Constraints[ic.ReferName]
	if refer == nil || refer.Kind == KeyRefConstraint {
		c.errorf(ic.src, "The Keyref '%s' cannot find the referred key or unique '%s'.", ic.Name.Qualified(), ic.ReferName.Qualified())
		return
	}
	if len(refer.Fields) != len(ic.Fields) {
		c.errorf(ic.src, "The cardinality of the fields in the keyref '%s' must be the same as that of the referred key '%s'.", ic.Name.Qualified(), refer.Name.Qualified())
		return
	}
	ic.Refer = refer
}

// derivesFrom reports whether t is base or derived from it.
func derivesFrom(t, base Type) bool {
	if base == nil || base == Type(AnyType) {
		return true
	}
	if bst, ok := base.(*SimpleType); ok && bst.builtin != nil && bst.builtin.Name == "anySimpleType" {
		switch t := t.(type) {
		case *SimpleType:
			return true
		case *ComplexType:
			return t.ContentType == SimpleContentKind
		}
	}
	for cur, steps := t, 0; cur != nil && steps < 256; cur, steps = cur.BaseType(), steps+1 {
		if sameType(cur, base) {
			return true
		}
	}
	// A member of a union derives from the union.
	if ust, ok := base.(*SimpleType); ok && ust.Variety == UnionVariety {
		for _, m := range ust.Members {
			if derivesFrom(t, m) {
				return true
			}
		}
	}
	return false
}

func sameType(a, b Type) bool {
	switch a := a.(type) {
	case *SimpleType:
		b, ok := b.(*SimpleType)
		return ok && a == b
	case *ComplexType:
		b, ok := b.(*ComplexType)
		return ok && a == b
	}
	return false
}

// valueType returns the simple type that governs the text of an element of
// type t, or nil when t does not have simple content.
func valueType(t Type) *SimpleType {
	switch t := t.(type) {
	case *SimpleType:
		return t
	case *ComplexType:
		if t.ContentType == SimpleContentKind {
			return t.SimpleType
		}
	}
	return nil
}
