package xsd

import (
	"fmt"
	"strings"
)

// ProcessContentsMode defines how wildcard content should be processed
type ProcessContentsMode string

const (
	// StrictProcess requires the element/attribute to be validated against its declaration
	StrictProcess ProcessContentsMode = "strict"
	// LaxProcess validates if a declaration is found, otherwise allows it
	LaxProcess ProcessContentsMode = "lax"
	// SkipProcess allows the element/attribute without validation
	SkipProcess ProcessContentsMode = "skip"
)

// WildcardNamespaceConstraint represents namespace constraints for wildcards
type WildcardNamespaceConstraint struct {
	Mode       string   // "##any", "##other" or "list"
	Namespaces []string // for "list"; ##targetNamespace and ##local already resolved
}

// ParseNamespaceConstraint parses the namespace attribute of xs:any or
// xs:anyAttribute declared in a schema whose target namespace is tns.
func ParseNamespaceConstraint(value, tns string) *WildcardNamespaceConstraint {
	value = strings.TrimSpace(value)
	switch value {
	case "", "##any":
		return &WildcardNamespaceConstraint{Mode: "##any"}
	case "##other":
		return &WildcardNamespaceConstraint{Mode: "##other", Namespaces: []string{tns}}
	}

	constraint := &WildcardNamespaceConstraint{Mode: "list"}
	for _, ns := range strings.Fields(value) {
		switch ns {
		case "##targetNamespace":
			ns = tns
		case "##local":
			ns = ""
		}
		constraint.Namespaces = append(constraint.Namespaces, ns)
	}
	return constraint
}

// Matches checks if a namespace matches this constraint
func (c *WildcardNamespaceConstraint) Matches(namespace string) bool {
	switch c.Mode {
	case "##any":
		return true
	case "##other":
		// ##other excludes unqualified names as well as the target namespace.
		return namespace != "" && namespace != c.Namespaces[0]
	default:
		for _, ns := range c.Namespaces {
			if ns == namespace {
				return true
			}
		}
		return false
	}
}

// Describe renders the constraint for "expected" lists in messages.
func (c *WildcardNamespaceConstraint) Describe() string {
	switch c.Mode {
	case "##any":
		return "any element"
	case "##other":
		if c.Namespaces[0] == "" {
			return "any element in any namespace"
		}
		return fmt.Sprintf("any element in namespace other than '%s'", c.Namespaces[0])
	}
	quoted := make([]string, 0, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		quoted = append(quoted, "'"+ns+"'")
	}
	return "any element in namespace " + strings.Join(quoted, ", ")
}

func processMode(value string) ProcessContentsMode {
	switch ProcessContentsMode(value) {
	case LaxProcess:
		return LaxProcess
	case SkipProcess:
		return SkipProcess
	}
	return StrictProcess
}

func (ae *AnyElement) constraint() *WildcardNamespaceConstraint {
	return ParseNamespaceConstraint(ae.Namespace, ae.TargetNamespace)
}

// Allows reports whether an element in namespace ns matches the wildcard.
func (ae *AnyElement) Allows(ns string) bool {
	return ae.constraint().Matches(ns)
}

// Allows reports whether an attribute in namespace ns matches the wildcard.
func (aa *AnyAttribute) Allows(ns string) bool {
	return ParseNamespaceConstraint(aa.Namespace, aa.TargetNamespace).Matches(ns)
}
