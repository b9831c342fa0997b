package xsd

import (
	"fmt"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-xmlvalidator/internal/xpath"
)

const (
	// XSDNamespace is the XML Schema namespace
	XSDNamespace = "http://www.w3.org/2001/XMLSchema"
	// XSINamespace is the XML Schema instance namespace
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	// XMLNamespace is the namespace bound to the xml prefix
	XMLNamespace = "http://www.w3.org/XML/1998/namespace"
)

// Schema holds the components of every schema document loaded into a
// SchemaSet. Maps give lookup by name; the slices keep declaration order so
// compilation and error reporting are deterministic.
type Schema struct {
	ElementDecls       map[QName]*ElementDecl
	TypeDefs           map[QName]Type
	AttributeDecls     map[QName]*AttributeDecl
	AttributeGroups    map[QName]*AttributeGroup
	Groups             map[QName]*ModelGroup
	Constraints        map[QName]*IdentityConstraint
	SubstitutionGroups map[QName][]*ElementDecl // head -> transitive members

	elements     []*ElementDecl
	elementRefs  []*ElementRef
	groupRefs    []*GroupRef
	simpleTypes  []*SimpleType
	complexTypes []*ComplexType
	attributes   []*AttributeDecl
	attrGroups   []*AttributeGroup
	groups       []*ModelGroup
	constraints  []*IdentityConstraint
	namespaces   []string
}

func newSchema() *Schema {
	return &Schema{
		ElementDecls:       make(map[QName]*ElementDecl),
		TypeDefs:           make(map[QName]Type),
		AttributeDecls:     make(map[QName]*AttributeDecl),
		AttributeGroups:    make(map[QName]*AttributeGroup),
		Groups:             make(map[QName]*ModelGroup),
		Constraints:        make(map[QName]*IdentityConstraint),
		SubstitutionGroups: make(map[QName][]*ElementDecl),
	}
}

// TargetNamespaces returns the target namespaces of the loaded documents in
// load order.
func (s *Schema) TargetNamespaces() []string {
	return append([]string(nil), s.namespaces...)
}

func (s *Schema) addNamespace(ns string) {
	for _, existing := range s.namespaces {
		if existing == ns {
			return
		}
	}
	s.namespaces = append(s.namespaces, ns)
}

// LookupType finds a named type, including the built-in types.
func (s *Schema) LookupType(name QName) Type {
	if name.Namespace == XSDNamespace {
		if bt := builtinSimpleType(name.Local); bt != nil {
			return bt
		}
		if name.Local == "anyType" {
			return AnyType
		}
	}
	if t, ok := s.TypeDefs[name]; ok {
		return t
	}
	return nil
}

// LookupAttribute finds a global attribute declaration, including the
// attributes of the xml namespace.
func (s *Schema) LookupAttribute(name QName) *AttributeDecl {
	if decl, ok := s.AttributeDecls[name]; ok {
		return decl
	}
	if name.Namespace == XMLNamespace {
		return xmlAttributes[name.Local]
	}
	return nil
}

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns the string representation of a QName
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

// Qualified renders the name as namespace:local, the form used in messages.
func (q QName) Qualified() string {
	if q.Namespace == "" {
		return q.Local
	}
	return q.Namespace + ":" + q.Local
}

func (q QName) IsZero() bool {
	return q.Namespace == "" && q.Local == ""
}

func nameOf(elem xmldom.Element) QName {
	return QName{Namespace: string(elem.NamespaceURI()), Local: string(elem.LocalName())}
}

// source records where a component was declared.
type source struct {
	uri  string
	line int
	col  int
}

func sourceOf(uri string, elem xmldom.Element) source {
	line, col, _ := elem.Position()
	return source{uri: uri, line: line, col: col}
}

func (s source) errorf(format string, args ...any) *SchemaError {
	return &SchemaError{
		Message:   fmt.Sprintf(format, args...),
		SourceURI: s.uri,
		Line:      s.line,
		Column:    s.col,
		Severity:  SeverityError,
	}
}

type resolveState uint8

const (
	unresolved resolveState = iota
	resolving
	resolved
)

// ElementDecl represents an element declaration. Local declarations are also
// particles of their enclosing content model.
type ElementDecl struct {
	Name              QName
	TypeName          QName
	Type              Type
	MinOcc            int
	MaxOcc            int // -1 for unbounded
	Nillable          bool
	Abstract          bool
	Global            bool
	SubstitutionGroup QName
	Head              *ElementDecl
	Default           string
	Fixed             string
	HasDefault        bool
	HasFixed          bool
	Constraints       []*IdentityConstraint

	src   source
	state resolveState
}

func (ed *ElementDecl) MinOccurs() int { return ed.MinOcc }
func (ed *ElementDecl) MaxOccurs() int { return ed.MaxOcc }

// Type is the interface for all XSD types
type Type interface {
	Name() QName
	BaseType() Type
}

// DerivationMethod is how a type was derived from its base.
type DerivationMethod string

const (
	NoDerivation DerivationMethod = ""
	Extension    DerivationMethod = "extension"
	Restriction  DerivationMethod = "restriction"
)

// ContentKind classifies what a complex type allows as children.
type ContentKind uint8

const (
	EmptyContent ContentKind = iota
	SimpleContentKind
	ElementOnlyContent
	MixedContent
)

// ComplexType represents an XSD complex type. The parsed fields describe the
// declaration; the effective fields are filled in by compilation and are what
// instance validation uses.
type ComplexType struct {
	QName          QName
	Abstract       bool
	Mixed          bool
	SimpleContent  bool
	Derivation     DerivationMethod
	BaseName       QName
	Content        Particle
	Attributes     []*AttributeDecl
	AttributeGroup []QName
	AnyAttribute   *AnyAttribute
	// ContentFacets holds the facets of a simpleContent restriction.
	ContentFacets *SimpleType

	Base              Type
	ContentType       ContentKind
	Particle          Particle
	SimpleType        *SimpleType
	AttributeUses     []*AttributeDecl
	AttributeWildcard *AnyAttribute

	src   source
	state resolveState
}

func (ct *ComplexType) Name() QName { return ct.QName }

func (ct *ComplexType) BaseType() Type {
	if ct.Base == nil {
		return nil
	}
	return ct.Base
}

// Particle represents a particle in a content model
type Particle interface {
	MinOccurs() int
	MaxOccurs() int
}

// ModelGroup represents a group of elements
type ModelGroup struct {
	Name      QName // set for named groups
	Kind      ModelGroupKind
	Particles []Particle
	MinOcc    int
	MaxOcc    int

	src   source
	state resolveState
}

func (mg *ModelGroup) MinOccurs() int { return mg.MinOcc }
func (mg *ModelGroup) MaxOccurs() int { return mg.MaxOcc }

// ModelGroupKind represents the kind of model group
type ModelGroupKind string

const (
	SequenceGroup ModelGroupKind = "sequence"
	ChoiceGroup   ModelGroupKind = "choice"
	AllGroup      ModelGroupKind = "all"
)

// ElementRef represents a reference to a global element
type ElementRef struct {
	Ref    QName
	Decl   *ElementDecl
	MinOcc int
	MaxOcc int

	src source
}

func (er *ElementRef) MinOccurs() int { return er.MinOcc }
func (er *ElementRef) MaxOccurs() int { return er.MaxOcc }

// GroupRef represents a reference to a named model group
type GroupRef struct {
	Ref    QName
	Group  *ModelGroup
	MinOcc int
	MaxOcc int

	src source
}

func (gr *GroupRef) MinOccurs() int { return gr.MinOcc }
func (gr *GroupRef) MaxOccurs() int { return gr.MaxOcc }

// AnyElement represents xs:any wildcard
type AnyElement struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	TargetNamespace string
	MinOcc          int
	MaxOcc          int
}

func (ae *AnyElement) MinOccurs() int { return ae.MinOcc }
func (ae *AnyElement) MaxOccurs() int { return ae.MaxOcc }

// AnyAttribute represents xs:anyAttribute
type AnyAttribute struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	TargetNamespace string
}

// AttributeDecl represents an attribute declaration or, inside a complex
// type or attribute group, an attribute use.
type AttributeDecl struct {
	Name       QName
	Ref        QName
	TypeName   QName
	Type       *SimpleType
	Use        AttributeUse
	Default    string
	Fixed      string
	HasDefault bool
	HasFixed   bool
	Global     bool

	src   source
	state resolveState
}

// AttributeUse represents attribute use
type AttributeUse string

const (
	OptionalUse   AttributeUse = "optional"
	RequiredUse   AttributeUse = "required"
	ProhibitedUse AttributeUse = "prohibited"
)

// AttributeGroup represents a group of attributes
type AttributeGroup struct {
	Name         QName
	Attributes   []*AttributeDecl
	Refs         []QName
	AnyAttribute *AnyAttribute

	uses     []*AttributeDecl
	wildcard *AnyAttribute
	src      source
	state    resolveState
}

// IdentityConstraintKind represents the type of identity constraint
type IdentityConstraintKind string

const (
	KeyConstraint    IdentityConstraintKind = "key"
	KeyRefConstraint IdentityConstraintKind = "keyref"
	UniqueConstraint IdentityConstraintKind = "unique"
)

// IdentityConstraint represents an identity constraint (key, keyref, or unique)
type IdentityConstraint struct {
	Name      QName
	Kind      IdentityConstraintKind
	Selector  *xpath.Expr
	Fields    []*xpath.Expr
	ReferName QName
	Refer     *IdentityConstraint

	src source
}
