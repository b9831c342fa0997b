package xsd

import (
	"fmt"
	"strings"
)

// Variety is the shape of a simple type's values.
type Variety uint8

const (
	AtomicVariety Variety = iota
	ListVariety
	UnionVariety
)

// SimpleType represents an XSD simple type. Each restriction step is its own
// SimpleType whose Base points one step up the chain; the chain ends at a
// built-in type.
type SimpleType struct {
	QName       QName
	Variety     Variety
	BaseName    QName
	Base        *SimpleType
	Facets      []FacetValidator
	WhiteSpace  string
	ItemName    QName
	Item        *SimpleType
	MemberNames []QName
	Members     []*SimpleType

	builtin *BuiltinType
	// restriction is set for types declared with xs:restriction, as opposed
	// to xs:list or xs:union.
	restriction bool
	src         source
	state       resolveState
}

func (st *SimpleType) Name() QName { return st.QName }

func (st *SimpleType) BaseType() Type {
	if st.Base != nil {
		return st.Base
	}
	if st.builtin != nil && st.builtin.Name == "anySimpleType" {
		return AnyType
	}
	if st.Variety != AtomicVariety {
		return builtinTypes["anySimpleType"]
	}
	return nil
}

// IsBuiltin reports whether st is one of the predefined XSD types.
func (st *SimpleType) IsBuiltin() bool {
	return st.builtin != nil
}

// DisplayName is the name used for st in messages. Anonymous types are
// shown as their nearest named ancestor.
func (st *SimpleType) DisplayName() string {
	for t := st; t != nil; t = t.Base {
		if !t.QName.IsZero() {
			return t.QName.Qualified()
		}
	}
	switch st.Variety {
	case ListVariety:
		return "list"
	case UnionVariety:
		return "union"
	}
	return builtinTypes["anySimpleType"].QName.Qualified()
}

func (st *SimpleType) whiteSpace() string {
	switch st.Variety {
	case ListVariety:
		return WhiteSpaceCollapse
	case UnionVariety:
		return WhiteSpacePreserve
	}
	for t := st; t != nil; t = t.Base {
		if t.WhiteSpace != "" {
			return t.WhiteSpace
		}
	}
	return WhiteSpacePreserve
}

// lexical returns the built-in type whose lexical space st restricts.
func (st *SimpleType) lexical() *BuiltinType {
	for t := st; t != nil; t = t.Base {
		if t.builtin != nil {
			return t.builtin
		}
	}
	return nil
}

// primitiveName returns the primitive built-in that st is derived from, or
// "" for lists, unions and anySimpleType.
func primitiveName(st *SimpleType) string {
	if st == nil || st.Variety != AtomicVariety {
		return ""
	}
	for t := st; t != nil; t = t.Base {
		if t.builtin == nil {
			continue
		}
		if t.builtin.Base == "anySimpleType" {
			return t.builtin.Name
		}
	}
	return ""
}

// derivesFromBuiltin reports whether name appears on st's built-in chain.
func (st *SimpleType) derivesFromBuiltin(name string) bool {
	for t := st; t != nil; t = t.Base {
		if t.builtin != nil && t.builtin.Name == name {
			return true
		}
	}
	return false
}

type idKind uint8

const (
	notID idKind = iota
	idValue
	idrefValue
	idrefsValue
)

func (st *SimpleType) idKind() idKind {
	switch {
	case st == nil:
		return notID
	case st.Variety == ListVariety:
		if st.Item.idKind() == idrefValue {
			return idrefsValue
		}
	case st.Variety == AtomicVariety && st.derivesFromBuiltin("ID"):
		return idValue
	case st.Variety == AtomicVariety && st.derivesFromBuiltin("IDREF"):
		return idrefValue
	}
	return notID
}

// Validate checks value against st and returns its whitespace-normalized
// form.
func (st *SimpleType) Validate(value string) (string, error) {
	norm := NormalizeWhiteSpace(value, st.whiteSpace())

	switch st.Variety {
	case ListVariety:
		if err := st.validateList(norm); err != nil {
			return norm, err
		}
	case UnionVariety:
		if err := st.validateUnion(value); err != nil {
			return norm, err
		}
	default:
		if b := st.lexical(); b != nil && b.Validator != nil {
			if err := b.Validator(norm); err != nil {
				return norm, err
			}
		}
	}

	for t := st; t != nil && t.builtin == nil; t = t.Base {
		if err := ValidateFacets(norm, t.Facets, st); err != nil {
			return norm, err
		}
	}
	return norm, nil
}

// validateList validates each item of a list value against the item type.
func (st *SimpleType) validateList(value string) error {
	items := strings.Fields(value)
	if st.builtin != nil && len(items) == 0 {
		return invalidLexical(value, st.builtin.Name)
	}
	if st.Item == nil {
		return nil
	}
	for _, item := range items {
		if _, err := st.Item.Validate(item); err != nil {
			return err
		}
	}
	return nil
}

// validateUnion accepts a value valid against any one of the member types.
func (st *SimpleType) validateUnion(value string) error {
	if len(st.Members) == 0 {
		return nil
	}
	for _, member := range st.Members {
		if _, err := member.Validate(value); err == nil {
			return nil
		}
	}
	return fmt.Errorf("The value '%s' is not valid according to any of the memberTypes of the union.", value)
}

// ValueError is returned when a value does not conform to its simple type.
type ValueError struct {
	Value string
	Type  *SimpleType
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("The value '%s' is invalid according to its datatype '%s' - %s", e.Value, e.Type.DisplayName(), e.Err.Error())
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// check validates value and wraps a failure in a ValueError.
func (st *SimpleType) check(value string) (string, error) {
	norm, err := st.Validate(value)
	if err != nil {
		return norm, &ValueError{Value: value, Type: st, Err: err}
	}
	return norm, nil
}
