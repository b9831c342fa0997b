package xsd

import (
	"strings"

	"github.com/agentflare-ai/go-xmldom"

	"github.com/agentflare-ai/go-xmlvalidator/internal/xpath"
)

// nsScope maps prefixes to namespace URIs for one point in a document. The
// empty prefix holds the default namespace. Scopes are copied on write, so a
// parent scope is never changed by its children.
type nsScope map[string]string

func newScope() nsScope {
	return nsScope{"xml": XMLNamespace}
}

// push returns the scope in effect inside elem.
func (s nsScope) push(elem xmldom.Element) nsScope {
	var next nsScope
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		prefix, ok := xpath.NamespaceDeclaration(attr)
		if !ok {
			continue
		}
		if next == nil {
			next = make(nsScope, len(s)+1)
			for k, v := range s {
				next[k] = v
			}
		}
		next[prefix] = string(attr.NodeValue())
	}
	if next == nil {
		return s
	}
	return next
}

// resolver adapts the scope for XPath compilation. Only declared prefixes
// resolve; the default namespace never applies to XPath names.
func (s nsScope) resolver() xpath.Resolver {
	return func(prefix string) (string, bool) {
		ns, ok := s[prefix]
		return ns, ok && prefix != ""
	}
}

// resolveQName resolves a prefixed name against the scope. ok is false
// when the prefix is not declared.
func (s nsScope) resolveQName(value string) (QName, string, bool) {
	value = strings.TrimSpace(value)
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		return QName{Namespace: s[""], Local: value}, "", true
	}
	ns, ok := s[prefix]
	if !ok {
		return QName{}, prefix, false
	}
	return QName{Namespace: ns, Local: local}, prefix, true
}

// xsdChildren returns the XML Schema element children of elem, skipping
// annotations.
func xsdChildren(elem xmldom.Element) []xmldom.Element {
	var out []xmldom.Element
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		if string(child.LocalName()) == "annotation" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// attr returns the trimmed value of an unqualified attribute.
func attr(elem xmldom.Element, name string) string {
	return strings.TrimSpace(string(elem.GetAttribute(xmldom.DOMString(name))))
}

func hasAttr(elem xmldom.Element, name string) bool {
	return elem.HasAttribute(xmldom.DOMString(name))
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}
