package xsd

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// identityScope is one instance of an element whose declaration carries
// identity constraints. start and end number the elements of its subtree in
// document order, so scopes nested inside it can be found.
type identityScope struct {
	elem  xmldom.Element
	decl  *ElementDecl
	start int
	end   int
}

// keyTable maps a key sequence to the element that produced it.
type keyTable map[string]xmldom.Element

// IdentityConstraintValidator checks xs:key, xs:unique and xs:keyref for
// the scopes recorded during validation.
type IdentityConstraintValidator struct {
	scopes     []*identityScope
	tables     map[*identityScope]map[*IdentityConstraint]keyTable
	violations []Violation
}

// NewIdentityConstraintValidator creates a validator with no scopes.
func NewIdentityConstraintValidator() *IdentityConstraintValidator {
	return &IdentityConstraintValidator{
		tables: make(map[*identityScope]map[*IdentityConstraint]keyTable),
	}
}

func (v *IdentityConstraintValidator) addScope(s *identityScope) {
	v.scopes = append(v.scopes, s)
}

// Validate evaluates every constraint in every recorded scope.
func (v *IdentityConstraintValidator) Validate() []Violation {
	v.violations = nil
	for _, s := range v.scopes {
		for _, ic := range s.decl.Constraints {
			if ic.Kind != KeyRefConstraint {
				v.table(s, ic)
			}
		}
	}
	for _, s := range v.scopes {
		for _, ic := range s.decl.Constraints {
			if ic.Kind == KeyRefConstraint && ic.Refer != nil {
				v.validateKeyRef(s, ic)
			}
		}
	}
	return v.violations
}

func (v *IdentityConstraintValidator) report(elem xmldom.Element, code, format string, args ...any) {
	v.violations = append(v.violations, Violation{
		Element:  elem,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: positionOf(elem, ""),
	})
}

// keySequence evaluates the fields of ic for one selected node. ok is false
// when a field selects nothing.
func (v *IdentityConstraintValidator) keySequence(ic *IdentityConstraint, node xmldom.Element) (values []string, ok bool) {
	values = make([]string, 0, len(ic.Fields))
	for _, field := range ic.Fields {
		matches := field.Evaluate(node)
		switch len(matches) {
		case 0:
			return nil, false
		case 1:
			values = append(values, strings.Join(strings.Fields(matches[0].Value), " "))
		default:
			v.report(node, "cvc-identity-constraint.3", "The field '%s' is expecting at the most one value.", field.String())
			return nil, false
		}
	}
	return values, true
}

// table builds the key table of a key or unique constraint in one scope,
// reporting duplicates and missing keys.
func (v *IdentityConstraintValidator) table(s *identityScope, ic *IdentityConstraint) keyTable {
	if t, ok := v.tables[s][ic]; ok {
		return t
	}
	t := make(keyTable)
	for _, node := range ic.Selector.Select(s.elem) {
		values, ok := v.keySequence(ic, node)
		if !ok {
			if ic.Kind == KeyConstraint {
				v.report(node, "cvc-identity-constraint.4.2.1", "The identity constraint '%s' validation has failed. Either a key is missing or the existing key has an empty node.", ic.Name.Qualified())
			}
			continue
		}
		key := strings.Join(values, "\x00")
		if _, dup := t[key]; dup {
			v.report(node, "cvc-identity-constraint.4.1", "There is a duplicate key sequence '%s' for the '%s' key or unique identity constraint.", strings.Join(values, " "), ic.Name.Qualified())
			continue
		}
		t[key] = node
	}
	if v.tables[s] == nil {
		v.tables[s] = make(map[*IdentityConstraint]keyTable)
	}
	v.tables[s][ic] = t
	return t
}

// validateKeyRef checks that every key sequence selected by a keyref
// appears in a table of the referenced constraint within the scope.
func (v *IdentityConstraintValidator) validateKeyRef(s *identityScope, ic *IdentityConstraint) {
	var tables []keyTable
	for _, inner := range v.scopes {
		if inner.start < s.start || inner.start >= s.end {
			continue
		}
		for _, c := range inner.decl.Constraints {
			if c == ic.Refer {
				tables = append(tables, v.table(inner, c))
			}
		}
	}

	for _, node := range ic.Selector.Select(s.elem) {
		values, ok := v.keySequence(ic, node)
		if !ok {
			continue
		}
		key := strings.Join(values, "\x00")
		found := false
		for _, t := range tables {
			if _, found = t[key]; found {
				break
			}
		}
		if !found {
			v.report(node, "cvc-identity-constraint.4.3", "The key sequence '%s' in '%s' Keyref fails to refer to some key.", strings.Join(values, " "), ic.Name.Qualified())
		}
	}
}
