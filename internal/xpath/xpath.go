// Package xpath implements the restricted XPath subset used by XML Schema
// identity constraints: child and attribute steps, a leading ".//", name
// tests with wildcards and "|" unions.
package xpath

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Resolver maps a namespace prefix to its URI.
type Resolver func(prefix string) (string, bool)

// NameTest matches an element or attribute name.
type NameTest struct {
	Namespace    string
	Local        string
	AnyNamespace bool
	AnyLocal     bool
}

// Matches reports whether ns/local satisfies the test.
func (n NameTest) Matches(ns, local string) bool {
	if !n.AnyNamespace && n.Namespace != ns {
		return false
	}
	return n.AnyLocal || n.Local == local
}

type path struct {
	descendant bool
	steps      []NameTest
	attr       *NameTest
}

// Expr is a compiled selector or field expression.
type Expr struct {
	source string
	paths  []path
}

// Match is one node selected by a field expression.
type Match struct {
	Element     xmldom.Element
	IsAttribute bool
	Value       string
}

// String returns the source text of the expression.
func (e *Expr) String() string {
	return e.source
}

// CompileSelector compiles an xs:selector expression. Selectors may only
// select elements.
func CompileSelector(expr string, resolve Resolver) (*Expr, error) {
	e, err := compile(expr, resolve)
	if err != nil {
		return nil, err
	}
	for _, p := range e.paths {
		if p.attr != nil {
			return nil, fmt.Errorf("the selector '%s' cannot select attributes", expr)
		}
	}
	return e, nil
}

// CompileField compiles an xs:field expression.
func CompileField(expr string, resolve Resolver) (*Expr, error) {
	return compile(expr, resolve)
}

func compile(expr string, resolve Resolver) (*Expr, error) {
	raw, err := parser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("invalid XPath expression '%s': %w", expr, err)
	}

	e := &Expr{source: expr}
	for _, rp := range raw.Paths {
		p := path{descendant: rp.Descendant}
		for i, step := range rp.Steps {
			if step.Self {
				continue
			}
			test, err := nameTest(step.Name, resolve)
			if err != nil {
				return nil, err
			}
			if step.attribute() {
				if i != len(rp.Steps)-1 {
					return nil, fmt.Errorf("invalid XPath expression '%s': attribute step must be last", expr)
				}
				p.attr = &test
				continue
			}
			p.steps = append(p.steps, test)
		}
		e.paths = append(e.paths, p)
	}
	return e, nil
}

func nameTest(name string, resolve Resolver) (NameTest, error) {
	if name == "*" {
		return NameTest{AnyNamespace: true, AnyLocal: true}, nil
	}

	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return NameTest{Local: name}, nil
	}

	ns, ok := "", false
	if resolve != nil {
		ns, ok = resolve(prefix)
	}
	if !ok {
		return NameTest{}, fmt.Errorf("'%s' is an undeclared prefix", prefix)
	}
	if local == "*" {
		return NameTest{Namespace: ns, AnyLocal: true}, nil
	}
	return NameTest{Namespace: ns, Local: local}, nil
}

// Select returns the elements selected from ctx in document order.
func (e *Expr) Select(ctx xmldom.Element) []xmldom.Element {
	var out []xmldom.Element
	e.walk(ctx, func(elem xmldom.Element, _ []int) {
		out = append(out, elem)
	})
	return out
}

// Evaluate returns the nodes selected by a field expression from ctx.
func (e *Expr) Evaluate(ctx xmldom.Element) []Match {
	var out []Match
	e.walk(ctx, func(elem xmldom.Element, matched []int) {
		elementAdded := false
		for _, idx := range matched {
			p := e.paths[idx]
			if p.attr == nil {
				if !elementAdded {
					out = append(out, Match{Element: elem, Value: string(elem.TextContent())})
					elementAdded = true
				}
				continue
			}
			out = append(out, attributeMatches(elem, *p.attr)...)
		}
	})
	return out
}

func (e *Expr) maxDepth() int {
	depth := 0
	for _, p := range e.paths {
		if p.descendant {
			return -1
		}
		if len(p.steps) > depth {
			depth = len(p.steps)
		}
	}
	return depth
}

// walk visits ctx and its descendants in document order, calling visit with
// the indexes of the paths that select each node.
func (e *Expr) walk(ctx xmldom.Element, visit func(xmldom.Element, []int)) {
	limit := e.maxDepth()

	var rec func(elem xmldom.Element, stack []xmldom.Element)
	rec = func(elem xmldom.Element, stack []xmldom.Element) {
		var matched []int
		for i, p := range e.paths {
			if p.selects(stack) {
				matched = append(matched, i)
			}
		}
		if len(matched) > 0 {
			visit(elem, matched)
		}

		if limit >= 0 && len(stack) >= limit {
			return
		}
		children := elem.Children()
		for i := uint(0); i < children.Length(); i++ {
			child := children.Item(i)
			if child == nil {
				continue
			}
			rec(child, append(stack, child))
		}
	}
	rec(ctx, nil)
}

// selects reports whether the element at the end of stack (relative to the
// context node) is selected by the element steps of p.
func (p path) selects(stack []xmldom.Element) bool {
	depth := len(stack)
	steps := len(p.steps)
	if p.descendant {
		if depth < steps {
			return false
		}
	} else if depth != steps {
		return false
	}

	offset := depth - steps
	for i, test := range p.steps {
		elem := stack[offset+i]
		if !test.Matches(string(elem.NamespaceURI()), string(elem.LocalName())) {
			return false
		}
	}
	return true
}

func attributeMatches(elem xmldom.Element, test NameTest) []Match {
	var out []Match
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil || IsNamespaceDeclaration(attr) {
			continue
		}
		if test.Matches(string(attr.NamespaceURI()), string(attr.LocalName())) {
			out = append(out, Match{Element: elem, IsAttribute: true, Value: string(attr.NodeValue())})
		}
	}
	return out
}

const xmlnsNamespace = "http://www.w3.org/2000/xmlns/"

// IsNamespaceDeclaration reports whether attr is an xmlns or xmlns:prefix
// attribute.
func IsNamespaceDeclaration(attr xmldom.Node) bool {
	_, ok := NamespaceDeclaration(attr)
	return ok
}

// NamespaceDeclaration returns the prefix bound by attr, or "" for a default
// namespace declaration. go-xmldom reports xmlns:p with namespace "xmlns"
// and local name "p", and a bare xmlns with local name "xmlns".
func NamespaceDeclaration(attr xmldom.Node) (prefix string, ok bool) {
	name := string(attr.NodeName())
	ns := string(attr.NamespaceURI())
	local := string(attr.LocalName())
	switch {
	case name == "xmlns" || local == "xmlns":
		return "", true
	case strings.HasPrefix(name, "xmlns:"):
		return name[len("xmlns:"):], true
	case ns == xmlnsNamespace || ns == "xmlns":
		return local, true
	}
	return "", false
}
