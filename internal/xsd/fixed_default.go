package xsd

import (
	"fmt"

	"github.com/agentflare-ai/go-xmldom"
)

// elementValue returns the value an element of simple type is validated
// with. An element with no content takes its fixed or default value.
func elementValue(decl *ElementDecl, text string, empty bool) string {
	if !empty || decl == nil {
		return text
	}
	switch {
	case decl.HasFixed:
		return decl.Fixed
	case decl.HasDefault:
		return decl.Default
	}
	return text
}

// ValidateElementFixed checks the value of an element against the fixed
// value of its declaration. st is nil for mixed content, which is compared
// as a plain string.
func ValidateElementFixed(elem xmldom.Element, decl *ElementDecl, st *SimpleType, value string) *Violation {
	if decl == nil || !decl.HasFixed {
		return nil
	}
	equal := value == decl.Fixed
	if st != nil {
		equal = equalValues(value, decl.Fixed, st)
	}
	if equal {
		return nil
	}
	return &Violation{
		Element:  elem,
		Code:     "cvc-elt.5.2.2.2",
		Message:  fmt.Sprintf("The value of the '%s' element does not equal its fixed value.", nameOf(elem).Qualified()),
		Expected: []string{decl.Fixed},
		Actual:   value,
		Position: positionOf(elem, ""),
	}
}

// ValidateAttributeFixed checks an attribute value against the fixed value
// of its declaration.
func ValidateAttributeFixed(elem xmldom.Element, attrName string, decl *AttributeDecl, value string) *Violation {
	if decl == nil || !decl.HasFixed {
		return nil
	}
	if equalValues(value, decl.Fixed, decl.Type) {
		return nil
	}
	return &Violation{
		Element:   elem,
		Attribute: attrName,
		Code:      "cvc-attribute.4",
		Message:   fmt.Sprintf("The value of the '%s' attribute does not equal its fixed value.", decl.Name.Qualified()),
		Expected:  []string{decl.Fixed},
		Actual:    value,
		Position:  positionOf(elem, attrName),
	}
}
